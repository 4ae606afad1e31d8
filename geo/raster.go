package geo

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// Raster is a georeferenced raster image. Pixel data comes from the TIFF
// itself; the affine model comes from an ESRI world file sidecar (.tfw or
// .wld) and the CRS tag from a .prj sidecar, both optional. GeoTIFF tags are
// not decoded; rasters without a world file carry the identity transform and
// an empty CRS.
type Raster struct {
	Path      string
	Image     image.Image
	Width     int
	Height    int
	Bands     int
	Transform AffineMatrix
	CRS       string
	HasGeoref bool
}

// OpenRaster loads a TIFF plus its georeferencing sidecars.
func OpenRaster(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening raster: %w", err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	r := &Raster{
		Path:      path,
		Image:     img,
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
		Bands:     bandCount(img),
		Transform: Identity(),
	}

	if m, ok, err := loadSidecarTransform(path); err != nil {
		return nil, err
	} else if ok {
		r.Transform = m
		r.HasGeoref = true
	}

	if crs, err := loadSidecarCRS(path); err != nil {
		return nil, err
	} else {
		r.CRS = crs
	}

	return r, nil
}

// Validate checks that the declared dimensions agree with the pixel buffer.
// A mismatch means the raster metadata cannot be trusted and the pairing
// using this raster should be rejected.
func (r *Raster) Validate() error {
	if r.Image == nil {
		return fmt.Errorf("raster %s has no pixel data", r.Path)
	}
	b := r.Image.Bounds()
	if r.Width != b.Dx() || r.Height != b.Dy() {
		return fmt.Errorf("raster %s declares %dx%d but pixel buffer is %dx%d",
			r.Path, r.Width, r.Height, b.Dx(), b.Dy())
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("raster %s has empty extent", r.Path)
	}
	return nil
}

// At returns the pixel at (col, row) in NRGBA form.
func (r *Raster) At(col, row int) color.NRGBA {
	b := r.Image.Bounds()
	return color.NRGBAModel.Convert(r.Image.At(b.Min.X+col, b.Min.Y+row)).(color.NRGBA)
}

// SaveClip writes a clipped window as a deflate-compressed TIFF next to a
// world file (and a .prj when the CRS is known), so the output is itself a
// georeferenced raster.
func SaveClip(clip *RasterClip, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	opts := &tiff.Options{Compression: tiff.Deflate}
	if err := tiff.Encode(f, clip.Image, opts); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	worldPath := replaceExt(path, ".tfw")
	if err := os.WriteFile(worldPath, []byte(FormatWorldFile(clip.Transform)), 0644); err != nil {
		return fmt.Errorf("writing world file: %w", err)
	}

	if clip.CRS != "" {
		prjPath := replaceExt(path, ".prj")
		if err := os.WriteFile(prjPath, []byte(clip.CRS), 0644); err != nil {
			return fmt.Errorf("writing prj file: %w", err)
		}
	}

	return nil
}

// bandCount reports the band count the detection pipeline cares about:
// single-band for grayscale data, three otherwise. Alpha is a mask, not a
// band.
func bandCount(img image.Image) int {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	default:
		return 3
	}
}

func loadSidecarTransform(rasterPath string) (AffineMatrix, bool, error) {
	for _, ext := range []string{".tfw", ".wld"} {
		p := replaceExt(rasterPath, ext)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		m, err := LoadWorldFile(p)
		if err != nil {
			return AffineMatrix{}, false, fmt.Errorf("world file %s: %w", p, err)
		}
		return m, true, nil
	}
	return AffineMatrix{}, false, nil
}

func loadSidecarCRS(rasterPath string) (string, error) {
	p := replaceExt(rasterPath, ".prj")
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", p, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
