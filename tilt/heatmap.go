package tilt

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
)

// ImageFormat selects the heatmap output format.
type ImageFormat int

const (
	FormatPNG ImageFormat = iota
	FormatSVG
	FormatBoth
)

// ParseImageFormat accepts "png", "svg" or "both".
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png", "":
		return FormatPNG, nil
	case "svg":
		return FormatSVG, nil
	case "both":
		return FormatBoth, nil
	}
	return FormatPNG, fmt.Errorf("unknown image format %q (want png, svg or both)", s)
}

// ClusterLayers groups vertical coordinates into layers. Sorted unique
// values are chained into one group while each is within tolerance of the
// previous one; each group is reported by its mean.
func ClusterLayers(zs []float64, tolerance float64) []float64 {
	if len(zs) == 0 {
		return nil
	}
	sorted := append([]float64(nil), zs...)
	sort.Float64s(sorted)

	var layers []float64
	var sum float64
	var n int
	prev := math.NaN()
	for _, z := range sorted {
		if z == prev {
			continue
		}
		if n > 0 && math.Abs(z-prev) > tolerance {
			layers = append(layers, sum/float64(n))
			sum, n = 0, 0
		}
		sum += z
		n++
		prev = z
	}
	return append(layers, sum/float64(n))
}

// LayerGrid is one layer of rotation angles binned onto a regular in-plane
// grid. Values is indexed [row][col]; row 0 holds the smallest y bin.
// Empty cells are NaN.
type LayerGrid struct {
	Z      float64
	XBins  []int
	YBins  []int
	Values [][]float64
	Extent orb.Bound // in-plane extent of the layer's centers
}

// Rows returns the number of y bins.
func (g LayerGrid) Rows() int { return len(g.YBins) }

// Cols returns the number of x bins.
func (g LayerGrid) Cols() int { return len(g.XBins) }

// MaxAbs returns the largest |value| in the grid, ignoring empty cells.
func (g LayerGrid) MaxAbs() float64 {
	var m float64
	for _, row := range g.Values {
		for _, v := range row {
			if !math.IsNaN(v) && math.Abs(v) > m {
				m = math.Abs(v)
			}
		}
	}
	return m
}

// BuildLayerGrids clusters records into layers along z and bins each layer
// by round(x/binWidth), round(y/binWidth). Only occupied bins get a row or
// column. A record within tolerance of two layers appears in both; when two
// records share a bin the later one wins.
func BuildLayerGrids(records []AngleRecord, binWidth, tolerance float64) []LayerGrid {
	zs := make([]float64, len(records))
	for i, r := range records {
		zs[i] = r.Z
	}

	var grids []LayerGrid
	for _, z := range ClusterLayers(zs, tolerance) {
		var layer []AngleRecord
		var mp orb.MultiPoint
		for _, r := range records {
			if math.Abs(r.Z-z) <= tolerance {
				layer = append(layer, r)
				mp = append(mp, orb.Point{r.X, r.Y})
			}
		}

		xb := make([]int, len(layer))
		yb := make([]int, len(layer))
		for i, r := range layer {
			xb[i] = int(math.RoundToEven(r.X / binWidth))
			yb[i] = int(math.RoundToEven(r.Y / binWidth))
		}
		xs, xIndex := denseIndex(xb)
		ys, yIndex := denseIndex(yb)

		values := make([][]float64, len(ys))
		for j := range values {
			values[j] = make([]float64, len(xs))
			for i := range values[j] {
				values[j][i] = math.NaN()
			}
		}
		for i, r := range layer {
			values[yIndex[yb[i]]][xIndex[xb[i]]] = r.RotationAngleDeg
		}

		grids = append(grids, LayerGrid{
			Z:      z,
			XBins:  xs,
			YBins:  ys,
			Values: values,
			Extent: mp.Bound(),
		})
	}
	return grids
}

// denseIndex returns the sorted unique values of bins and their positions.
func denseIndex(bins []int) ([]int, map[int]int) {
	index := make(map[int]int)
	var unique []int
	for _, b := range bins {
		if _, ok := index[b]; !ok {
			index[b] = 0
			unique = append(unique, b)
		}
	}
	sort.Ints(unique)
	for i, b := range unique {
		index[b] = i
	}
	return unique, index
}
