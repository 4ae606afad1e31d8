package geo

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Percentile bounds for the contrast stretch. Satellite and aerial TIFFs
// routinely carry a handful of extreme pixels, so min/max scaling washes the
// image out; the 2-98 stretch is the conventional fix.
const (
	stretchLow  = 2.0
	stretchHigh = 98.0
)

// StretchToImage rescales each color channel so its 2nd..98th percentile
// range maps to 0..255. Fully transparent pixels are treated as nodata: they
// are excluded from the percentile computation and come out black.
func StretchToImage(src image.Image) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	// 16-bit histograms per channel, valid pixels only.
	var hist [3][]int
	for c := range hist {
		hist[c] = make([]int, 65536)
	}
	valid := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if a == 0 {
				continue
			}
			hist[0][r]++
			hist[1][g]++
			hist[2][bl]++
			valid++
		}
	}
	if valid == 0 {
		return out
	}

	var lo, hi [3]float64
	for c := range hist {
		lo[c] = histPercentile(hist[c], valid, stretchLow)
		hi[c] = histPercentile(hist[c], valid, stretchHigh)
		if hi[c] <= lo[c] {
			hi[c] = lo[c] + 1
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if a == 0 {
				out.SetNRGBA(x, y, color.NRGBA{A: 255})
				continue
			}
			out.SetNRGBA(x, y, color.NRGBA{
				R: stretchChannel(float64(r), lo[0], hi[0]),
				G: stretchChannel(float64(g), lo[1], hi[1]),
				B: stretchChannel(float64(bl), lo[2], hi[2]),
				A: 255,
			})
		}
	}
	return out
}

// histPercentile returns the channel value at the given percentile of a
// 16-bit histogram with total samples.
func histPercentile(hist []int, total int, pct float64) float64 {
	target := pct / 100.0 * float64(total)
	cum := 0
	for v, n := range hist {
		cum += n
		if float64(cum) >= target {
			return float64(v)
		}
	}
	return 65535
}

func stretchChannel(v, lo, hi float64) uint8 {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return uint8((v - lo) / (hi - lo) * 255)
}

// WritePNG encodes an image as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// Tile is one square cut out of a larger image.
type Tile struct {
	Row   int
	Col   int
	Image *image.NRGBA
}

// SplitSquares cuts the image into size x size tiles, dropping the partial
// remainder at the right and bottom edges the way the training pipeline
// expects. Returns tiles in row-major order.
func SplitSquares(src image.Image, size int) []Tile {
	if size <= 0 {
		return nil
	}
	b := src.Bounds()
	rows := b.Dy() / size
	cols := b.Dx() / size

	var tiles []Tile
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			tile := image.NewNRGBA(image.Rect(0, 0, size, size))
			for y := 0; y < size; y++ {
				for x := 0; x < size; x++ {
					tile.Set(x, y, src.At(b.Min.X+col*size+x, b.Min.Y+row*size+y))
				}
			}
			tiles = append(tiles, Tile{Row: row, Col: col, Image: tile})
		}
	}
	return tiles
}

var boxOutline = color.NRGBA{R: 255, A: 255}

// DrawBoxes draws YOLO detections on the image: red two-pixel outlines plus
// the class id label in the upper-left corner of each box.
func DrawBoxes(img *image.NRGBA, lines []YoloLine) error {
	b := img.Bounds()
	for _, ln := range lines {
		rect, err := DecodeYoloLine(ln, b.Dx(), b.Dy())
		if err != nil {
			return err
		}
		drawRectOutline(img, rect, 2)
		drawLabel(img, fmt.Sprintf("%d", ln.Class), int(rect.ColMin)+3, int(rect.RowMin)+13)
	}
	return nil
}

func drawRectOutline(img *image.NRGBA, r PixelRect, width int) {
	x0, y0 := int(r.ColMin), int(r.RowMin)
	x1, y1 := int(r.ColMax), int(r.RowMax)
	for w := 0; w < width; w++ {
		for x := x0; x <= x1; x++ {
			img.SetNRGBA(x, y0+w, boxOutline)
			img.SetNRGBA(x, y1-w, boxOutline)
		}
		for y := y0; y <= y1; y++ {
			img.SetNRGBA(x0+w, y, boxOutline)
			img.SetNRGBA(x1-w, y, boxOutline)
		}
	}
}

func drawLabel(img *image.NRGBA, text string, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(boxOutline),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
