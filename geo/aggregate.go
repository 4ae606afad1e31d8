package geo

import (
	"math"
	"sort"
)

// UngroupedKey is the bucket for features whose attribute row has no value
// for the group field. Such features are aggregated and reported, never
// silently dropped.
const UngroupedKey = "<null>"

// Aggregate groups the collection's features by the raw value of groupField
// and reduces each group to the minimal axis-aligned rectangle covering
// every vertex of every member geometry.
//
// Groups are returned sorted by key so repeated runs produce identical
// output; the min/max reduction itself is order-independent, so permuting
// the input features never changes a group's coordinates.
//
// A groupField absent from the collection schema is a configuration error
// and returns *MissingFieldError; a field present in the schema but empty on
// some rows buckets those rows under UngroupedKey.
func Aggregate(fc *FeatureCollection, groupField string) ([]BoundingGroup, error) {
	if !fc.HasField(groupField) {
		return nil, &MissingFieldError{Field: groupField, Available: fc.Fields}
	}

	groups := make(map[string]*BoundingGroup)
	for _, f := range fc.Features {
		key, ok := f.Attr(groupField)
		if !ok || key == "" {
			key = UngroupedKey
		}

		g, exists := groups[key]
		if !exists {
			g = &BoundingGroup{
				Key:  key,
				MinX: math.MaxFloat64,
				MinY: math.MaxFloat64,
				MaxX: -math.MaxFloat64,
				MaxY: -math.MaxFloat64,
			}
			groups[key] = g
		}

		for _, ring := range f.Geometry {
			for _, p := range ring {
				g.MinX = min(g.MinX, p[0])
				g.MinY = min(g.MinY, p[1])
				g.MaxX = max(g.MaxX, p[0])
				g.MaxY = max(g.MaxY, p[1])
			}
		}
		g.Count++
	}

	out := make([]BoundingGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
