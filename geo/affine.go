package geo

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// singularEps is the determinant threshold below which the 2x2 linear part
// of an affine model is treated as non-invertible.
const singularEps = 1e-12

// PixelToGeo maps a pixel coordinate (column, row) to geographic coordinates.
// Pure arithmetic, no error conditions.
func (m AffineMatrix) PixelToGeo(col, row float64) (x, y float64) {
	return m.A*col + m.B*row + m.Tx, m.C*col + m.D*row + m.Ty
}

// GeoToPixel maps a geographic coordinate back to (column, row) using the
// inverse of the 2x2 linear part. Returns ErrSingularTransform when the
// determinant is (near) zero; degenerate raster metadata must surface rather
// than silently mapping everything to one point.
func (m AffineMatrix) GeoToPixel(x, y float64) (col, row float64, err error) {
	det := m.A*m.D - m.B*m.C
	if math.Abs(det) < singularEps {
		return 0, 0, ErrSingularTransform
	}
	dx := x - m.Tx
	dy := y - m.Ty
	invDet := 1.0 / det
	return (m.D*dx - m.B*dy) * invDet, (m.A*dy - m.C*dx) * invDet, nil
}

// Invert computes the full inverse transform, so that
// inv.PixelToGeo == m.GeoToPixel. Returns ErrSingularTransform when the
// linear part is not invertible.
func (m AffineMatrix) Invert() (AffineMatrix, error) {
	det := m.A*m.D - m.B*m.C
	if math.Abs(det) < singularEps {
		return AffineMatrix{}, ErrSingularTransform
	}

	invDet := 1.0 / det
	return AffineMatrix{
		A:  m.D * invDet,
		B:  -m.B * invDet,
		Tx: (m.B*m.Ty - m.D*m.Tx) * invDet,
		C:  -m.C * invDet,
		D:  m.A * invDet,
		Ty: (m.C*m.Tx - m.A*m.Ty) * invDet,
	}, nil
}

// Multiply composes two affine transforms: result = m * n.
// Applying the result is equivalent to applying n first, then m.
func Multiply(m, n AffineMatrix) AffineMatrix {
	return AffineMatrix{
		A:  m.A*n.A + m.B*n.C,
		B:  m.A*n.B + m.B*n.D,
		Tx: m.A*n.Tx + m.B*n.Ty + m.Tx,
		C:  m.C*n.A + m.D*n.C,
		D:  m.C*n.B + m.D*n.D,
		Ty: m.C*n.Tx + m.D*n.Ty + m.Ty,
	}
}

// Translate returns the transform shifted so that pixel (col, row) becomes
// its origin. Used to derive the georeferencing of a clipped sub-raster: the
// linear part is unchanged, only the anchor moves.
func (m AffineMatrix) Translate(col, row float64) AffineMatrix {
	x, y := m.PixelToGeo(col, row)
	out := m
	out.Tx = x
	out.Ty = y
	return out
}

// PixelRectToGeoPolygon maps all four corners of a pixel rectangle through
// the affine model, preserving corner order (UL, UR, LR, LL). The result is
// a closed quadrilateral ring and is deliberately NOT re-normalized to an
// axis-aligned box: the affine model may include rotation or shear, and the
// downstream intersection logic handles general polygons.
func (m AffineMatrix) PixelRectToGeoPolygon(r PixelRect) orb.Polygon {
	corners := [4][2]float64{
		{r.ColMin, r.RowMin},
		{r.ColMax, r.RowMin},
		{r.ColMax, r.RowMax},
		{r.ColMin, r.RowMax},
	}

	ring := make(orb.Ring, 0, 5)
	for _, c := range corners {
		x, y := m.PixelToGeo(c[0], c[1])
		ring = append(ring, orb.Point{x, y})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// ParseWorldFile parses the six-line ESRI world file format:
// A (x pixel size), C (row rotation), B (column rotation), D (y pixel size,
// usually negative), Tx, Ty (geographic coordinates of the upper-left pixel
// center). Blank lines are ignored.
func ParseWorldFile(data []byte) (AffineMatrix, error) {
	var vals []float64
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return AffineMatrix{}, fmt.Errorf("world file line %d: %w", i+1, err)
		}
		vals = append(vals, v)
	}
	if len(vals) != 6 {
		return AffineMatrix{}, fmt.Errorf("world file has %d values, want 6", len(vals))
	}

	// World file order is A, C, B, D, Tx, Ty.
	return AffineMatrix{
		A:  vals[0],
		C:  vals[1],
		B:  vals[2],
		D:  vals[3],
		Tx: vals[4],
		Ty: vals[5],
	}, nil
}

// LoadWorldFile reads and parses a world file from disk.
func LoadWorldFile(path string) (AffineMatrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AffineMatrix{}, fmt.Errorf("reading world file: %w", err)
	}
	return ParseWorldFile(data)
}

// FormatWorldFile renders the transform in six-line world file order.
func FormatWorldFile(m AffineMatrix) string {
	var b strings.Builder
	for _, v := range []float64{m.A, m.C, m.B, m.D, m.Tx, m.Ty} {
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		b.WriteByte('\n')
	}
	return b.String()
}
