package geo

import (
	"image"

	"github.com/paulmach/orb"
)

// AffineMatrix is the 6-parameter georeferencing model of a raster:
//
//	geoX = A*col + B*row + Tx
//	geoY = C*col + D*row + Ty
//
// Column/row are pixel indices with the origin in the upper-left corner.
// The matrix is a value type; once derived for a raster it is never mutated.
type AffineMatrix struct {
	A  float64 `json:"a"`
	B  float64 `json:"b"`
	Tx float64 `json:"tx"`
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	Ty float64 `json:"ty"`
}

// Identity returns an identity matrix (no transformation)
func Identity() AffineMatrix {
	return AffineMatrix{A: 1, B: 0, Tx: 0, C: 0, D: 1, Ty: 0}
}

// PixelRect is an axis-aligned rectangle in pixel coordinates plus the
// detection class it belongs to. ColMin/RowMin is the upper-left corner.
type PixelRect struct {
	ColMin float64
	RowMin float64
	ColMax float64
	RowMax float64
	Class  int
}

// Width returns the rectangle width in pixels
func (r PixelRect) Width() float64 { return r.ColMax - r.ColMin }

// Height returns the rectangle height in pixels
func (r PixelRect) Height() float64 { return r.RowMax - r.RowMin }

// YoloLine is one normalized detection: class id plus center/size, all four
// floats relative to the image dimensions and inside [0,1].
type YoloLine struct {
	Class   int
	CenterX float64
	CenterY float64
	Width   float64
	Height  float64
}

// Feature pairs a polygon geometry with its attribute row. Attribute values
// are carried as the strings the vector collaborator stores them as.
type Feature struct {
	Geometry   orb.Polygon
	Attributes map[string]string
}

// Attr returns the value of the named attribute and whether it is present.
func (f Feature) Attr(name string) (string, bool) {
	v, ok := f.Attributes[name]
	return v, ok
}

// FeatureCollection is a set of features sharing one attribute schema and
// one coordinate reference system. CRS is an opaque tag (the .prj sidecar
// contents); it is compared, never interpreted.
type FeatureCollection struct {
	Fields   []string
	Features []Feature
	CRS      string
}

// HasField reports whether the named field exists in the schema.
func (fc *FeatureCollection) HasField(name string) bool {
	for _, f := range fc.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// BoundingGroup is the reduction of one attribute group to its minimal
// axis-aligned rectangle. Re-derived on every aggregation run.
type BoundingGroup struct {
	Key   string
	MinX  float64
	MinY  float64
	MaxX  float64
	MaxY  float64
	Count int
}

// Ring returns the group rectangle as a closed ring (5 vertices, CCW).
func (g BoundingGroup) Ring() orb.Ring {
	return orb.Ring{
		{g.MinX, g.MinY},
		{g.MaxX, g.MinY},
		{g.MaxX, g.MaxY},
		{g.MinX, g.MaxY},
		{g.MinX, g.MinY},
	}
}

// RasterClip is the result of clipping a raster against a polygon: the pixel
// window inside the source raster, the masked pixel data (pixels outside the
// polygon are the transparent-black nodata sentinel), and the affine model of
// the window itself.
type RasterClip struct {
	Window    image.Rectangle
	Image     *image.NRGBA
	Transform AffineMatrix
	CRS       string
}
