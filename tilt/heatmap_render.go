package tilt

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"path/filepath"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	labelHeight = 18 // PNG pixels reserved above the grid for the layer label
	svgCellSize = 10.0
)

var emptyCell = color.RGBA{220, 220, 220, 255}

// seismicStops approximates matplotlib's "seismic" diverging colormap,
// evaluated at -1, -0.5, 0, 0.5 and 1.
var seismicStops = [5]color.RGBA{
	{0, 0, 77, 255},
	{0, 0, 255, 255},
	{255, 255, 255, 255},
	{255, 0, 0, 255},
	{128, 0, 0, 255},
}

// HeatmapRenderer draws LayerGrids as PNG or SVG images. Colors are scaled
// symmetrically per layer so that zero rotation is white.
type HeatmapRenderer struct {
	CellSize int // PNG pixels per bin
	Logger   *zap.Logger
}

// NewHeatmapRenderer creates a renderer with the given PNG cell size.
func NewHeatmapRenderer(cellSize int) *HeatmapRenderer {
	if cellSize <= 0 {
		cellSize = 40
	}
	return &HeatmapRenderer{CellSize: cellSize, Logger: zap.NewNop()}
}

// divergingColor maps v in [-vmax, vmax] onto the seismic colormap.
func divergingColor(v, vmax float64) color.RGBA {
	if math.IsNaN(v) {
		return emptyCell
	}
	if vmax <= 0 {
		return seismicStops[2]
	}
	t := clamp(v/vmax, -1, 1)
	pos := (t + 1) * 2 // 0..4
	i := int(math.Floor(pos))
	if i >= len(seismicStops)-1 {
		return seismicStops[len(seismicStops)-1]
	}
	f := pos - float64(i)
	a, b := seismicStops[i], seismicStops[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + f*(float64(y)-float64(x))))
	}
	return color.RGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), 255}
}

func layerLabel(g LayerGrid) string {
	return fmt.Sprintf("z=%.2f  x[%.1f,%.1f] y[%.1f,%.1f]  max|rot|=%.2f deg",
		g.Z, g.Extent.Min.X(), g.Extent.Max.X(), g.Extent.Min.Y(), g.Extent.Max.Y(), g.MaxAbs())
}

// cellRenderer is implemented by both the svg and rasterizer renderers.
type cellRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// renderCells paints a white background of width x height and one square of
// side cell per bin. Canvas coordinates grow upwards, so row 0 is at the
// bottom.
func renderCells(r cellRenderer, g LayerGrid, cell, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	r.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	vmax := g.MaxAbs()
	for j, row := range g.Values {
		for i, v := range row {
			style := canvas.DefaultStyle
			style.Fill = canvas.Paint{Color: divergingColor(v, vmax)}
			style.Stroke = canvas.Paint{Color: canvas.Transparent}

			x, y := float64(i)*cell, float64(j)*cell
			cp := &canvas.Path{}
			cp.MoveTo(x, y)
			cp.LineTo(x+cell, y)
			cp.LineTo(x+cell, y+cell)
			cp.LineTo(x, y+cell)
			cp.Close()
			r.RenderPath(cp, style, canvas.Identity)
		}
	}
}

// RenderPNG rasterizes g at one pixel per canvas unit, with a text label in
// a strip above the grid.
func (r *HeatmapRenderer) RenderPNG(w io.Writer, g LayerGrid) error {
	cs := r.CellSize
	width := g.Cols() * cs
	if minWidth := len(layerLabel(g))*7 + 8; width < minWidth {
		width = minWidth
	}
	height := g.Rows()*cs + labelHeight

	rast := rasterizer.New(float64(width), float64(height), canvas.DPMM(1), canvas.DefaultColorSpace)
	renderCells(rast, g, float64(cs), float64(width), float64(height))
	drawText(rast, 4, 13, layerLabel(g), color.RGBA{0, 0, 0, 255})
	return png.Encode(w, rast)
}

// drawText renders text onto an image at the specified baseline position.
func drawText(img draw.Image, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// RenderSVG draws g as one filled square per bin.
func (r *HeatmapRenderer) RenderSVG(w io.Writer, g LayerGrid) error {
	width := math.Max(float64(g.Cols())*svgCellSize, svgCellSize)
	height := math.Max(float64(g.Rows())*svgCellSize, svgCellSize)
	svgRenderer := svg.New(w, width, height, nil)
	renderCells(svgRenderer, g, svgCellSize, width, height)
	return svgRenderer.Close()
}

// LayerFileName returns the image file name for a layer.
func LayerFileName(z float64, ext string) string {
	return fmt.Sprintf("rotation_heatmap_z%.2f.%s", z, ext)
}

// WriteLayers renders every grid into dir and returns the written paths.
func (r *HeatmapRenderer) WriteLayers(dir string, grids []LayerGrid, format ImageFormat) ([]string, error) {
	type target struct {
		ext    string
		render func(io.Writer, LayerGrid) error
	}
	var targets []target
	if format == FormatPNG || format == FormatBoth {
		targets = append(targets, target{"png", r.RenderPNG})
	}
	if format == FormatSVG || format == FormatBoth {
		targets = append(targets, target{"svg", r.RenderSVG})
	}

	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var written []string
	for _, g := range grids {
		for _, t := range targets {
			path := filepath.Join(dir, LayerFileName(g.Z, t.ext))
			err := WriteFileAtomic(path, func(w io.Writer) error {
				return t.render(w, g)
			})
			if err != nil {
				return written, fmt.Errorf("rendering layer z=%.2f: %w", g.Z, err)
			}
			logger.Info("heatmap written", zap.String("path", path),
				zap.Int("rows", g.Rows()), zap.Int("cols", g.Cols()))
			written = append(written, path)
		}
	}
	return written, nil
}
