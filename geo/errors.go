package geo

import (
	"errors"
	"fmt"
	"strings"
)

// Errors shared across the package. Per-item errors carry enough context to
// report the skipped item; run-level errors abort the operation.
var (
	// ErrSingularTransform means the 2x2 linear part of an affine model has a
	// zero determinant, so geographic coordinates cannot be mapped back to
	// pixels. This indicates corrupt georeferencing and is fatal per raster.
	ErrSingularTransform = errors.New("geo: singular affine transform")

	// ErrEmptyClip means a clip polygon does not intersect the raster's pixel
	// extent at all. Recoverable: the caller records it and moves on.
	ErrEmptyClip = errors.New("geo: polygon does not intersect raster extent")
)

// MalformedAnnotationError describes one YOLO detection line that could not
// be parsed. Fatal for the line only; the rest of the file keeps processing.
type MalformedAnnotationError struct {
	Line    int // 1-based line number within the annotation file
	Content string
	Reason  string
}

func (e *MalformedAnnotationError) Error() string {
	return fmt.Sprintf("geo: malformed annotation at line %d (%q): %s", e.Line, e.Content, e.Reason)
}

// MissingFieldError means the requested group field does not exist in the
// feature schema at all. This is a configuration mistake and aborts the run,
// as opposed to a field that is merely null on some rows.
type MissingFieldError struct {
	Field     string
	Available []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("geo: group field %q not in schema (available: %s)",
		e.Field, strings.Join(e.Available, ", "))
}

// CRSMismatchError means a raster and a vector input disagree on coordinate
// reference system. The pairing is rejected; sibling pairings continue.
type CRSMismatchError struct {
	RasterCRS string
	VectorCRS string
}

func (e *CRSMismatchError) Error() string {
	return fmt.Sprintf("geo: CRS mismatch between raster (%q) and vector (%q)", e.RasterCRS, e.VectorCRS)
}

// SameCRS compares two CRS tags as opaque strings. Empty tags are treated as
// unknown and never cause a mismatch, matching the collaborator contract that
// georeferencing sidecars may be absent.
func SameCRS(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return true
	}
	return a == b
}
