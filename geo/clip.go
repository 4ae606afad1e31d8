package geo

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// nodata is the sentinel written to clipped-out pixels: transparent black,
// matching the "invalid areas go to zero" policy of the rest of the toolkit.
var nodata = color.NRGBA{}

// ClipRaster cuts the sub-raster covering the polygon's pixel extent and
// masks every pixel whose center falls outside the polygon with the nodata
// sentinel. The returned clip carries its own affine model so it can be
// saved as a georeferenced raster.
//
// Returns ErrEmptyClip when the polygon does not overlap the raster extent
// at all; callers treat that as "no output for this polygon" and continue.
// A singular transform surfaces as ErrSingularTransform and is fatal for the
// whole raster.
func ClipRaster(r *Raster, poly orb.Polygon) (*RasterClip, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if _, err := r.Transform.Invert(); err != nil {
		return nil, err
	}
	if len(poly) == 0 || len(poly[0]) < 3 {
		return nil, fmt.Errorf("%w: degenerate polygon", ErrEmptyClip)
	}

	// Geographic footprint of the raster: the four pixel corners mapped
	// forward. Under rotation/shear this is a quadrilateral; its bound is a
	// conservative axis-aligned cover, which is all the pre-clip needs.
	footprint := r.Transform.PixelRectToGeoPolygon(PixelRect{
		ColMax: float64(r.Width),
		RowMax: float64(r.Height),
	})

	// Cheap rejection plus mask simplification: restrict the polygon to the
	// raster's geographic bound before the per-pixel containment loop.
	clipped := clip.Polygon(footprint.Bound(), poly.Clone())
	if len(clipped) == 0 || len(clipped[0]) < 3 {
		return nil, ErrEmptyClip
	}

	window, err := pixelWindow(r, clipped)
	if err != nil {
		return nil, err
	}
	if window.Empty() {
		return nil, ErrEmptyClip
	}

	out := image.NewNRGBA(image.Rect(0, 0, window.Dx(), window.Dy()))
	kept := 0
	for row := window.Min.Y; row < window.Max.Y; row++ {
		for col := window.Min.X; col < window.Max.X; col++ {
			// Test against the pixel center.
			x, y := r.Transform.PixelToGeo(float64(col)+0.5, float64(row)+0.5)
			if planar.PolygonContains(clipped, orb.Point{x, y}) {
				out.SetNRGBA(col-window.Min.X, row-window.Min.Y, r.At(col, row))
				kept++
			} else {
				out.SetNRGBA(col-window.Min.X, row-window.Min.Y, nodata)
			}
		}
	}
	if kept == 0 {
		// Bounds overlapped but no pixel center landed inside the polygon.
		return nil, ErrEmptyClip
	}

	return &RasterClip{
		Window:    window,
		Image:     out,
		Transform: r.Transform.Translate(float64(window.Min.X), float64(window.Min.Y)),
		CRS:       r.CRS,
	}, nil
}

// pixelWindow maps the polygon's geographic bound into pixel space and
// intersects it with the raster extent. All four bound corners go through
// the inverse transform so rotated georeferencing still yields a covering
// window.
func pixelWindow(r *Raster, poly orb.Polygon) (image.Rectangle, error) {
	b := poly.Bound()
	corners := [4]orb.Point{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
	}

	minCol, minRow := math.MaxFloat64, math.MaxFloat64
	maxCol, maxRow := -math.MaxFloat64, -math.MaxFloat64
	for _, c := range corners {
		col, row, err := r.Transform.GeoToPixel(c[0], c[1])
		if err != nil {
			return image.Rectangle{}, err
		}
		minCol = min(minCol, col)
		minRow = min(minRow, row)
		maxCol = max(maxCol, col)
		maxRow = max(maxRow, row)
	}

	window := image.Rect(
		int(math.Floor(minCol)), int(math.Floor(minRow)),
		int(math.Ceil(maxCol)), int(math.Ceil(maxRow)),
	)
	return window.Intersect(image.Rect(0, 0, r.Width, r.Height)), nil
}
