package tilt

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterLayers(t *testing.T) {
	tests := []struct {
		name string
		zs   []float64
		tol  float64
		want []float64
	}{
		{"empty", nil, 0.5, nil},
		{"single", []float64{3}, 0.5, []float64{3}},
		{"duplicates collapse", []float64{2, 2, 2, 6}, 0.5, []float64{2, 6}},
		{"chained within tolerance", []float64{0, 0.4, 0.8, 1.2, 5}, 0.5, []float64{0.6, 5}},
		{"unsorted input", []float64{8, 0.1, 4, 0}, 0.5, []float64{0.05, 4, 8}},
		{"zero tolerance", []float64{1, 1.0001}, 0, []float64{1, 1.0001}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClusterLayers(tt.zs, tt.tol)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestBuildLayerGrids(t *testing.T) {
	records := []AngleRecord{
		{Center: 0, X: 0, Y: 0, Z: 1.0, RotationAngleDeg: 1},
		{Center: 1, X: 2.1, Y: 0, Z: 1.1, RotationAngleDeg: -2},
		{Center: 2, X: 0, Y: 3.9, Z: 0.9, RotationAngleDeg: 3},
		{Center: 3, X: 0, Y: 0, Z: 5, RotationAngleDeg: 4},
	}
	grids := BuildLayerGrids(records, 1.0, 0.5)
	require.Len(t, grids, 2)

	g := grids[0]
	assert.InDelta(t, 1.0, g.Z, 1e-12)
	assert.Equal(t, []int{0, 2}, g.XBins)
	assert.Equal(t, []int{0, 4}, g.YBins)
	assert.Equal(t, 2, g.Rows())
	assert.Equal(t, 2, g.Cols())
	assert.Equal(t, 1.0, g.Values[0][0])
	assert.Equal(t, -2.0, g.Values[0][1])
	assert.Equal(t, 3.0, g.Values[1][0])
	assert.True(t, math.IsNaN(g.Values[1][1]))
	assert.Equal(t, 3.0, g.MaxAbs())
	assert.Equal(t, 2.1, g.Extent.Max.X())
	assert.Equal(t, 3.9, g.Extent.Max.Y())

	assert.Equal(t, 5.0, grids[1].Z)
	assert.Equal(t, [][]float64{{4}}, grids[1].Values)
}

func TestBuildLayerGridsRoundsHalfToEven(t *testing.T) {
	records := []AngleRecord{
		{X: 0.5, Y: 1.5, Z: 0, RotationAngleDeg: 1},
		{X: 2.5, Y: 0, Z: 0, RotationAngleDeg: 2},
	}
	g := BuildLayerGrids(records, 1.0, 0.5)[0]
	assert.Equal(t, []int{0, 2}, g.XBins)
	assert.Equal(t, []int{0, 2}, g.YBins)
}

func TestParseImageFormat(t *testing.T) {
	for in, want := range map[string]ImageFormat{"": FormatPNG, "PNG": FormatPNG, "svg": FormatSVG, "both": FormatBoth} {
		got, err := ParseImageFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseImageFormat("gif")
	assert.Error(t, err)
}

func TestDivergingColor(t *testing.T) {
	assert.Equal(t, seismicStops[2], divergingColor(0, 5))
	assert.Equal(t, seismicStops[4], divergingColor(5, 5))
	assert.Equal(t, seismicStops[0], divergingColor(-9, 5), "values are clamped")
	assert.Equal(t, seismicStops[1], divergingColor(-2.5, 5))
	assert.Equal(t, emptyCell, divergingColor(math.NaN(), 5))
	assert.Equal(t, seismicStops[2], divergingColor(3, 0))
}

func sampleGrid() LayerGrid {
	return BuildLayerGrids([]AngleRecord{
		{X: 0, Y: 0, Z: 2, RotationAngleDeg: 5},
		{X: 1, Y: 0, Z: 2, RotationAngleDeg: -5},
		{X: 0, Y: 2, Z: 2, RotationAngleDeg: 0},
	}, 1.0, 0.5)[0]
}

func TestRenderPNG(t *testing.T) {
	g := sampleGrid()
	r := NewHeatmapRenderer(10)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPNG(&buf, g))
	img, err := png.Decode(&buf)
	require.NoError(t, err)

	b := img.Bounds()
	assert.Equal(t, 2*10+labelHeight, b.Dy())
	assert.GreaterOrEqual(t, b.Dx(), 2*10)

	// row 0 is drawn at the bottom
	assertPixel(t, img, 5, b.Dy()-5, seismicStops[4])
	assertPixel(t, img, 15, b.Dy()-5, seismicStops[0])
	assertPixel(t, img, 5, b.Dy()-15, seismicStops[2])
	assertPixel(t, img, 15, b.Dy()-15, emptyCell)
}

func assertPixel(t *testing.T, img image.Image, x, y int, want color.RGBA) {
	t.Helper()
	r, g, b, _ := img.At(x, y).RGBA()
	got := [3]int{int(r >> 8), int(g >> 8), int(b >> 8)}
	for k, w := range [3]int{int(want.R), int(want.G), int(want.B)} {
		if d := got[k] - w; d < -2 || d > 2 {
			t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			return
		}
	}
}

func TestRenderSVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewHeatmapRenderer(0).RenderSVG(&buf, sampleGrid()))
	out := buf.String()
	assert.True(t, strings.Contains(out, "<svg"), "not an SVG document")
	assert.Contains(t, out, "</svg>")
}

func TestWriteLayers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "maps")
	grids := BuildLayerGrids([]AngleRecord{
		{X: 0, Y: 0, Z: 1.234, RotationAngleDeg: 1},
		{X: 0, Y: 0, Z: 7, RotationAngleDeg: 2},
	}, 1.0, 0.5)

	paths, err := NewHeatmapRenderer(8).WriteLayers(dir, grids, FormatBoth)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "rotation_heatmap_z1.23.png"),
		filepath.Join(dir, "rotation_heatmap_z1.23.svg"),
		filepath.Join(dir, "rotation_heatmap_z7.00.png"),
		filepath.Join(dir, "rotation_heatmap_z7.00.svg"),
	}, paths)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	paths, err = NewHeatmapRenderer(8).WriteLayers(dir, grids[:1], FormatSVG)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "rotation_heatmap_z1.23.svg")}, paths)
}
