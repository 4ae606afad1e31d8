package geo

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

// northUp is the usual satellite-tile transform: one unit per pixel, row
// axis pointing south.
func northUp() AffineMatrix {
	return AffineMatrix{A: 1, B: 0, Tx: 100, C: 0, D: -1, Ty: 200}
}

func TestPixelToGeo(t *testing.T) {
	tests := []struct {
		name     string
		m        AffineMatrix
		col, row float64
		wantX    float64
		wantY    float64
	}{
		{
			name: "identity",
			m:    Identity(),
			col:  10, row: 20,
			wantX: 10, wantY: 20,
		},
		{
			name: "north-up tile",
			m:    northUp(),
			col:  10, row: 20,
			wantX: 110, wantY: 180,
		},
		{
			name: "origin maps to anchor",
			m:    northUp(),
			col:  0, row: 0,
			wantX: 100, wantY: 200,
		},
		{
			name: "sheared",
			m:    AffineMatrix{A: 2, B: 0.5, Tx: 0, C: -0.5, D: 2, Ty: 0},
			col:  4, row: 2,
			wantX: 9, wantY: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := tt.m.PixelToGeo(tt.col, tt.row)
			if !almostEqual(x, tt.wantX) || !almostEqual(y, tt.wantY) {
				t.Errorf("PixelToGeo(%g, %g) = (%g, %g), want (%g, %g)",
					tt.col, tt.row, x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestGeoToPixel(t *testing.T) {
	m := northUp()
	col, row, err := m.GeoToPixel(110, 180)
	if err != nil {
		t.Fatalf("GeoToPixel: %v", err)
	}
	if !almostEqual(col, 10) || !almostEqual(row, 20) {
		t.Errorf("GeoToPixel(110, 180) = (%g, %g), want (10, 20)", col, row)
	}
}

func TestGeoToPixelSingular(t *testing.T) {
	singular := AffineMatrix{A: 1, B: 2, C: 2, D: 4, Tx: 0, Ty: 0}
	if _, _, err := singular.GeoToPixel(1, 1); !errors.Is(err, ErrSingularTransform) {
		t.Errorf("GeoToPixel on singular matrix: err = %v, want ErrSingularTransform", err)
	}
	if _, err := singular.Invert(); !errors.Is(err, ErrSingularTransform) {
		t.Errorf("Invert on singular matrix: err = %v, want ErrSingularTransform", err)
	}
}

func TestAffineRoundTrip(t *testing.T) {
	matrices := []AffineMatrix{
		Identity(),
		northUp(),
		{A: 0.5, B: 0.1, Tx: -431.25, C: -0.1, D: 0.5, Ty: 8812.5},
		{A: 2, B: -3, Tx: 7, C: 5, D: 1, Ty: -2},
	}
	points := [][2]float64{{0, 0}, {10, 20}, {-5, 3.75}, {1e6, 1e6}}

	for _, m := range matrices {
		for _, p := range points {
			x, y := m.PixelToGeo(p[0], p[1])
			col, row, err := m.GeoToPixel(x, y)
			if err != nil {
				t.Fatalf("GeoToPixel: %v", err)
			}
			if math.Abs(col-p[0]) > 1e-6 || math.Abs(row-p[1]) > 1e-6 {
				t.Errorf("round trip %v through %+v = (%g, %g)", p, m, col, row)
			}
		}
	}
}

func TestInvertMatchesGeoToPixel(t *testing.T) {
	m := AffineMatrix{A: 0.5, B: 0.1, Tx: 100, C: -0.1, D: -0.5, Ty: 200}
	inv, err := m.Invert()
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}

	x, y := m.PixelToGeo(42, 17)
	col1, row1 := inv.PixelToGeo(x, y)
	col2, row2, err := m.GeoToPixel(x, y)
	if err != nil {
		t.Fatalf("GeoToPixel: %v", err)
	}
	if !almostEqual(col1, col2) || !almostEqual(row1, row2) {
		t.Errorf("Invert and GeoToPixel disagree: (%g, %g) vs (%g, %g)", col1, row1, col2, row2)
	}

	if got := Multiply(m, inv); !almostEqual(got.A, 1) || !almostEqual(got.D, 1) ||
		!almostEqual(got.B, 0) || !almostEqual(got.C, 0) ||
		!almostEqual(got.Tx, 0) || !almostEqual(got.Ty, 0) {
		t.Errorf("m * inv = %+v, want identity", got)
	}
}

func TestPixelRectToGeoPolygon(t *testing.T) {
	rect := PixelRect{ColMin: 10, RowMin: 20, ColMax: 30, RowMax: 40}

	t.Run("north-up keeps corners axis-aligned", func(t *testing.T) {
		poly := northUp().PixelRectToGeoPolygon(rect)
		if len(poly) != 1 || len(poly[0]) != 5 {
			t.Fatalf("expected single closed 5-vertex ring, got %v", poly)
		}
		ring := poly[0]
		want := [][2]float64{{110, 180}, {130, 180}, {130, 160}, {110, 160}, {110, 180}}
		for i, w := range want {
			if !almostEqual(ring[i][0], w[0]) || !almostEqual(ring[i][1], w[1]) {
				t.Errorf("vertex %d = %v, want %v", i, ring[i], w)
			}
		}
	})

	t.Run("rotated transform produces non-axis-aligned quad", func(t *testing.T) {
		// 45 degree rotation: the output must stay a rotated quadrilateral,
		// not collapse to an axis-aligned box.
		s := math.Sqrt2 / 2
		rot := AffineMatrix{A: s, B: -s, Tx: 0, C: s, D: s, Ty: 0}
		ring := rot.PixelRectToGeoPolygon(rect)[0]

		axisAligned := true
		for i := 0; i < 4; i++ {
			dx := ring[i+1][0] - ring[i][0]
			dy := ring[i+1][1] - ring[i][1]
			if !almostEqual(dx, 0) && !almostEqual(dy, 0) {
				axisAligned = false
			}
		}
		if axisAligned {
			t.Error("rotated rectangle came back axis-aligned")
		}
	})
}

func TestWorldFileRoundTrip(t *testing.T) {
	m := AffineMatrix{A: 0.5, B: 0.0, Tx: 432123.25, C: 0.0, D: -0.5, Ty: 6772000.75}

	parsed, err := ParseWorldFile([]byte(FormatWorldFile(m)))
	if err != nil {
		t.Fatalf("ParseWorldFile: %v", err)
	}
	if parsed != m {
		t.Errorf("round trip = %+v, want %+v", parsed, m)
	}
}

func TestParseWorldFileErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"too few values", "1\n0\n0\n-1\n"},
		{"garbage line", "1\n0\nnope\n-1\n100\n200\n"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseWorldFile([]byte(tt.data)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	m := northUp()
	shifted := m.Translate(5, 10)

	// Pixel (0,0) of the shifted frame must land where (5,10) did in the
	// original, and the linear part must be untouched.
	x, y := shifted.PixelToGeo(0, 0)
	wantX, wantY := m.PixelToGeo(5, 10)
	if !almostEqual(x, wantX) || !almostEqual(y, wantY) {
		t.Errorf("shifted origin = (%g, %g), want (%g, %g)", x, y, wantX, wantY)
	}
	if shifted.A != m.A || shifted.B != m.B || shifted.C != m.C || shifted.D != m.D {
		t.Errorf("linear part changed: %+v", shifted)
	}
}
