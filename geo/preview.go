package geo

import (
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// Preview renders a feature collection and optional group boxes as vector
// graphics, for eyeballing conversion output without a GIS. Coordinates are
// drawn in geographic units; Scale shrinks them to a reasonable page size.
type Preview struct {
	Features   *FeatureCollection
	Groups     []BoundingGroup
	Scale      float64           // canvas units per geographic unit
	Padding    float64           // padding in canvas units
	Resolution canvas.Resolution // PNG output resolution
}

// NewPreview creates a preview with defaults sized for typical UTM extents.
func NewPreview(fc *FeatureCollection) *Preview {
	return &Preview{
		Features:   fc,
		Scale:      1.0,
		Padding:    10.0,
		Resolution: canvas.DPI(300),
	}
}

var (
	previewFill    = color.RGBA{R: 70, G: 105, B: 166, A: 90}
	previewStroke  = color.RGBA{R: 0, G: 0, B: 139, A: 255}
	previewGroupCl = color.RGBA{R: 139, G: 0, B: 0, A: 255}
)

// canvasRenderer is the interface both the svg and rasterizer backends
// implement.
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the preview as an SVG document.
func (p *Preview) RenderToSVG(w io.Writer) error {
	minX, minY, maxX, maxY, ok := p.worldBounds()
	if !ok {
		return nil
	}

	width := (maxX-minX)*p.Scale + 2*p.Padding
	height := (maxY-minY)*p.Scale + 2*p.Padding

	svgRenderer := svg.New(w, width, height, nil)
	p.renderToCanvas(svgRenderer, minX, minY, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the preview as a PNG raster.
func (p *Preview) RenderToPNG(w io.Writer) error {
	minX, minY, maxX, maxY, ok := p.worldBounds()
	if !ok {
		return nil
	}

	width := (maxX-minX)*p.Scale + 2*p.Padding
	height := (maxY-minY)*p.Scale + 2*p.Padding

	rast := rasterizer.New(width, height, p.Resolution, canvas.DefaultColorSpace)
	p.renderToCanvas(rast, minX, minY, width, height)
	return png.Encode(w, rast)
}

func (p *Preview) renderToCanvas(renderer canvasRenderer, minX, minY, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	toCanvas := func(x, y float64) (float64, float64) {
		return (x-minX)*p.Scale + p.Padding, (y-minY)*p.Scale + p.Padding
	}

	featStyle := canvas.DefaultStyle
	featStyle.Fill = canvas.Paint{Color: previewFill}
	featStyle.Stroke = canvas.Paint{Color: previewStroke}
	featStyle.StrokeWidth = 1.0

	if p.Features != nil {
		for _, f := range p.Features.Features {
			for _, ring := range f.Geometry {
				if len(ring) == 0 {
					continue
				}
				cp := &canvas.Path{}
				for i, pt := range ring {
					cx, cy := toCanvas(pt[0], pt[1])
					if i == 0 {
						cp.MoveTo(cx, cy)
					} else {
						cp.LineTo(cx, cy)
					}
				}
				cp.Close()
				renderer.RenderPath(cp, featStyle, canvas.Identity)
			}
		}
	}

	groupStyle := canvas.DefaultStyle
	groupStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	groupStyle.Stroke = canvas.Paint{Color: previewGroupCl}
	groupStyle.StrokeWidth = 1.5
	groupStyle.Dashes = []float64{4.0, 4.0}

	for _, g := range p.Groups {
		cp := &canvas.Path{}
		for i, pt := range g.Ring() {
			cx, cy := toCanvas(pt[0], pt[1])
			if i == 0 {
				cp.MoveTo(cx, cy)
			} else {
				cp.LineTo(cx, cy)
			}
		}
		renderer.RenderPath(cp, groupStyle, canvas.Identity)
	}
}

// worldBounds computes the drawing extent over features and group boxes.
func (p *Preview) worldBounds() (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = math.MaxFloat64, math.MaxFloat64
	maxX, maxY = -math.MaxFloat64, -math.MaxFloat64

	grow := func(x, y float64) {
		minX = min(minX, x)
		minY = min(minY, y)
		maxX = max(maxX, x)
		maxY = max(maxY, y)
		ok = true
	}

	if p.Features != nil {
		for _, f := range p.Features.Features {
			for _, ring := range f.Geometry {
				for _, pt := range ring {
					grow(pt[0], pt[1])
				}
			}
		}
	}
	for _, g := range p.Groups {
		grow(g.MinX, g.MinY)
		grow(g.MaxX, g.MaxY)
	}
	return minX, minY, maxX, maxY, ok
}
