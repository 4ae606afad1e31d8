package geo

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestStretchToImage(t *testing.T) {
	// 16-bit gradient: after the percentile stretch the darkest and brightest
	// valid pixels must span close to the full 8-bit range.
	src := image.NewGray16(image.Rect(0, 0, 100, 1))
	for x := 0; x < 100; x++ {
		src.SetGray16(x, 0, color.Gray16{Y: uint16(x * 600)})
	}

	out := StretchToImage(src)
	lo := out.NRGBAAt(5, 0) // inside the stretched range
	hi := out.NRGBAAt(95, 0)
	if lo.R > 30 {
		t.Errorf("low pixel stretched to %d, want near 0", lo.R)
	}
	if hi.R < 225 {
		t.Errorf("high pixel stretched to %d, want near 255", hi.R)
	}
	if lo.A != 255 || hi.A != 255 {
		t.Error("valid pixels must come out opaque")
	}
}

func TestStretchToImageNodata(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	src.SetNRGBA(2, 0, color.NRGBA{R: 250, G: 250, B: 250, A: 0}) // nodata
	src.SetNRGBA(3, 0, color.NRGBA{R: 100, G: 100, B: 100, A: 255})

	out := StretchToImage(src)
	if got := out.NRGBAAt(2, 0); got != (color.NRGBA{A: 255}) {
		t.Errorf("nodata pixel = %v, want opaque black", got)
	}
}

func TestStretchToImageAllNodata(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	out := StretchToImage(src) // every pixel has alpha 0
	if b := out.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Errorf("output bounds = %v", b)
	}
}

func TestSplitSquares(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 450, 250))
	tiles := SplitSquares(src, 200)

	// 450x250 at 200px tiles: 2 columns, 1 row; the remainder is dropped.
	if len(tiles) != 2 {
		t.Fatalf("got %d tiles, want 2", len(tiles))
	}
	for i, tile := range tiles {
		if b := tile.Image.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
			t.Errorf("tile %d is %dx%d, want 200x200", i, b.Dx(), b.Dy())
		}
	}
	if tiles[0].Row != 0 || tiles[0].Col != 0 || tiles[1].Row != 0 || tiles[1].Col != 1 {
		t.Errorf("tile order = (%d,%d), (%d,%d), want row-major",
			tiles[0].Row, tiles[0].Col, tiles[1].Row, tiles[1].Col)
	}
}

func TestSplitSquaresContent(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}

	tiles := SplitSquares(src, 2)
	if len(tiles) != 4 {
		t.Fatalf("got %d tiles, want 4", len(tiles))
	}
	// Bottom-right tile starts at (2,2) in the source.
	br := tiles[3]
	if got := br.Image.NRGBAAt(0, 0); got.R != 2 || got.G != 2 {
		t.Errorf("tile (1,1) origin pixel = %v, want source (2,2)", got)
	}
}

func TestSplitSquaresDegenerate(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	if tiles := SplitSquares(src, 0); tiles != nil {
		t.Errorf("size 0 returned %d tiles", len(tiles))
	}
	if tiles := SplitSquares(src, 300); tiles != nil {
		t.Errorf("oversized tile returned %d tiles", len(tiles))
	}
}

func TestDrawBoxes(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 50, G: 50, B: 50, A: 255})
		}
	}

	lines := []YoloLine{{Class: 1, CenterX: 0.5, CenterY: 0.5, Width: 0.4, Height: 0.4}}
	if err := DrawBoxes(img, lines); err != nil {
		t.Fatalf("DrawBoxes: %v", err)
	}

	// Box spans pixels 30..70; the top edge must be the outline color and the
	// interior untouched.
	if got := img.NRGBAAt(50, 30); got != boxOutline {
		t.Errorf("top edge pixel = %v, want %v", got, boxOutline)
	}
	if got := img.NRGBAAt(50, 50); got == boxOutline {
		t.Error("interior pixel was painted over")
	}
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	if err := WritePNG(&buf, img); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}

	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 3 || b.Dy() != 3 {
		t.Errorf("decoded bounds = %v", b)
	}
}
