package geo

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/paulmach/orb"
)

// testRaster builds a 10x10 in-memory raster with the north-up transform and
// a unique color per pixel so clip output can be traced back to its source.
func testRaster() *Raster {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for row := 0; row < 10; row++ {
		for col := 0; col < 10; col++ {
			img.SetNRGBA(col, row, color.NRGBA{R: uint8(col * 20), G: uint8(row * 20), B: 7, A: 255})
		}
	}
	return &Raster{
		Path:      "test.tif",
		Image:     img,
		Width:     10,
		Height:    10,
		Bands:     3,
		Transform: northUp(),
		CRS:       "EPSG:32633",
		HasGeoref: true,
	}
}

func TestClipRasterWindow(t *testing.T) {
	r := testRaster()
	poly := square(102, 194, 106, 198)

	clip, err := ClipRaster(r, poly)
	if err != nil {
		t.Fatalf("ClipRaster: %v", err)
	}

	if want := image.Rect(2, 2, 6, 6); clip.Window != want {
		t.Errorf("Window = %v, want %v", clip.Window, want)
	}
	if b := clip.Image.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Errorf("clip image is %dx%d, want 4x4", b.Dx(), b.Dy())
	}
	if clip.CRS != r.CRS {
		t.Errorf("CRS = %q, want %q", clip.CRS, r.CRS)
	}

	// The derived transform must anchor at the window origin.
	if !almostEqual(clip.Transform.Tx, 102) || !almostEqual(clip.Transform.Ty, 198) {
		t.Errorf("clip transform anchor = (%g, %g), want (102, 198)",
			clip.Transform.Tx, clip.Transform.Ty)
	}
	if clip.Transform.A != r.Transform.A || clip.Transform.D != r.Transform.D {
		t.Error("linear part of the transform changed")
	}

	// Every window pixel is inside the polygon here, so the data must match
	// the source exactly.
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			want := r.At(col+2, row+2)
			if got := clip.Image.NRGBAAt(col, row); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", col, row, got, want)
			}
		}
	}
}

func TestClipRasterMasksOutside(t *testing.T) {
	r := testRaster()
	// Triangle on the window's diagonal: part of the bounding window lies
	// outside the polygon and must come back as nodata.
	poly := orb.Polygon{{{102, 194}, {106, 194}, {102, 198}, {102, 194}}}

	clip, err := ClipRaster(r, poly)
	if err != nil {
		t.Fatalf("ClipRaster: %v", err)
	}

	var kept, masked int
	b := clip.Image.Bounds()
	for row := b.Min.Y; row < b.Max.Y; row++ {
		for col := b.Min.X; col < b.Max.X; col++ {
			if clip.Image.NRGBAAt(col, row) == nodata {
				masked++
			} else {
				kept++
			}
		}
	}
	if kept == 0 || masked == 0 {
		t.Errorf("triangle clip: %d kept, %d masked, want both nonzero", kept, masked)
	}
}

func TestClipRasterDisjoint(t *testing.T) {
	r := testRaster()
	if _, err := ClipRaster(r, square(500, 500, 510, 510)); !errors.Is(err, ErrEmptyClip) {
		t.Errorf("disjoint polygon: err = %v, want ErrEmptyClip", err)
	}
}

func TestClipRasterNoPixelCenterInside(t *testing.T) {
	r := testRaster()
	// Overlaps the raster but slips between pixel centers.
	if _, err := ClipRaster(r, square(102.6, 197.6, 102.9, 197.9)); !errors.Is(err, ErrEmptyClip) {
		t.Errorf("sub-pixel polygon: err = %v, want ErrEmptyClip", err)
	}
}

func TestClipRasterDegeneratePolygon(t *testing.T) {
	r := testRaster()
	if _, err := ClipRaster(r, orb.Polygon{}); !errors.Is(err, ErrEmptyClip) {
		t.Errorf("empty polygon: err = %v, want ErrEmptyClip", err)
	}
}

func TestClipRasterSingularTransform(t *testing.T) {
	r := testRaster()
	r.Transform = AffineMatrix{A: 1, B: 2, C: 2, D: 4}

	if _, err := ClipRaster(r, square(0, 0, 5, 5)); !errors.Is(err, ErrSingularTransform) {
		t.Errorf("singular transform: err = %v, want ErrSingularTransform", err)
	}
}

func TestClipRasterInvalidRaster(t *testing.T) {
	r := testRaster()
	r.Width = 99 // disagrees with the pixel buffer

	if _, err := ClipRaster(r, square(102, 194, 106, 198)); err == nil {
		t.Error("expected validation error for mismatched dimensions")
	}
}
