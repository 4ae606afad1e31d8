package geo

import (
	"iter"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Intersects reports whether two polygons share any area or touch on their
// boundary. It handles general (rotated, concave) polygons, polygons with
// holes, and degenerate inputs: empty geometries are never intersecting and
// nothing here panics on zero-area or self-touching rings.
//
// The test is edge-based: any pair of crossing or touching outer-ring edges
// means intersection, and full containment is caught by testing one vertex
// of each polygon against the other. Symmetric by construction.
func Intersects(a, b orb.Polygon) bool {
	ra := outerRing(a)
	rb := outerRing(b)
	if len(ra) == 0 || len(rb) == 0 {
		return false
	}

	if !a.Bound().Intersects(b.Bound()) {
		return false
	}

	// Any edge pair crossing or touching.
	for i := 0; i < len(ra); i++ {
		p1 := ra[i]
		p2 := ra[(i+1)%len(ra)]
		for j := 0; j < len(rb); j++ {
			q1 := rb[j]
			q2 := rb[(j+1)%len(rb)]
			if segmentsIntersect(p1, p2, q1, q2) {
				return true
			}
		}
	}

	// No edge contact: one polygon may lie entirely inside the other.
	// PolygonContains respects holes, so a polygon sitting inside a hole of
	// the other is correctly reported as non-intersecting.
	if planar.PolygonContains(b, ra[0]) {
		return true
	}
	if planar.PolygonContains(a, rb[0]) {
		return true
	}

	return false
}

// IntersectsBox reports whether a polygon intersects or touches an
// axis-aligned bounding box.
func IntersectsBox(p orb.Polygon, b orb.Bound) bool {
	return Intersects(p, orb.Polygon{b.ToRing()})
}

// Matches returns the reference features whose geometry intersects the
// candidate polygon, in input order. The sequence is lazy, finite, and
// single-use: once fully consumed within a call it is not restartable.
func Matches(refs []Feature, candidate orb.Polygon) iter.Seq[Feature] {
	return func(yield func(Feature) bool) {
		for _, ref := range refs {
			if Intersects(ref.Geometry, candidate) {
				if !yield(ref) {
					return
				}
			}
		}
	}
}

// Partition splits candidates into those that intersect at least one
// reference polygon and those that intersect none. Every candidate lands in
// exactly one of the two slices and input order is preserved, so repeated
// runs over the same inputs produce identical output files.
func Partition(refs []Feature, candidates []Feature) (hit, miss []Feature) {
	for _, cand := range candidates {
		matched := false
		for _, ref := range refs {
			if Intersects(ref.Geometry, cand.Geometry) {
				matched = true
				break
			}
		}
		if matched {
			hit = append(hit, cand)
		} else {
			miss = append(miss, cand)
		}
	}
	return hit, miss
}

// outerRing returns the exterior ring of a polygon without a duplicated
// closing vertex, or nil for empty geometry.
func outerRing(p orb.Polygon) orb.Ring {
	if len(p) == 0 || len(p[0]) == 0 {
		return nil
	}
	r := p[0]
	if len(r) > 1 && r[0] == r[len(r)-1] {
		r = r[:len(r)-1]
	}
	return r
}

// cross returns the cross product of vectors PQ and PR.
func cross(p, q, r orb.Point) float64 {
	return (q[0]-p[0])*(r[1]-p[1]) - (q[1]-p[1])*(r[0]-p[0])
}

// onSegment reports whether q lies on segment p-r, assuming the three points
// are collinear.
func onSegment(p, q, r orb.Point) bool {
	return q[0] >= min(p[0], r[0]) && q[0] <= max(p[0], r[0]) &&
		q[1] >= min(p[1], r[1]) && q[1] <= max(p[1], r[1])
}

// segmentsIntersect reports whether segments p1-p2 and q1-q2 share any
// point, including endpoint touches and collinear overlap.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	if d1 == 0 && onSegment(q1, p1, q2) {
		return true
	}
	if d2 == 0 && onSegment(q1, p2, q2) {
		return true
	}
	if d3 == 0 && onSegment(p1, q1, p2) {
		return true
	}
	if d4 == 0 && onSegment(p1, q2, p2) {
		return true
	}

	return false
}
