package geo

import (
	"fmt"
	"os"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// ReadShapefile loads a polygon feature collection with its attribute schema.
// Attribute values come back as the strings the DBF stores. The CRS tag is
// taken from the .prj sidecar when present. Non-polygon shapes are skipped
// with a count in the error-free return; the collaborator contract only
// covers polygons and degenerate 4-vertex rectangles.
func ReadShapefile(path string) (*FeatureCollection, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening shapefile: %w", err)
	}
	defer r.Close()

	fields := r.Fields()
	names := make([]string, len(fields))
	for i := range fields {
		names[i] = fields[i].String()
	}

	fc := &FeatureCollection{Fields: names}
	for r.Next() {
		row, shape := r.Shape()

		poly := shapeToPolygon(shape)
		if poly == nil {
			continue
		}

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			v := strings.TrimSpace(r.ReadAttribute(row, i))
			if v != "" {
				attrs[name] = v
			}
		}
		fc.Features = append(fc.Features, Feature{Geometry: poly, Attributes: attrs})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	crs, err := loadSidecarCRS(path)
	if err != nil {
		return nil, err
	}
	fc.CRS = crs

	return fc, nil
}

// WriteShapefile persists the collection as a polygon shapefile, writing
// every schema field as a string attribute and a .prj sidecar when the CRS
// is known.
func WriteShapefile(path string, fc *FeatureCollection) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("creating shapefile: %w", err)
	}

	fields := make([]shp.Field, len(fc.Fields))
	for i, name := range fc.Fields {
		fields[i] = shp.StringField(name, 64)
	}
	w.SetFields(fields)

	for row, f := range fc.Features {
		w.Write(polygonToShape(f.Geometry))
		for col, name := range fc.Fields {
			if err := w.WriteAttribute(row, col, f.Attributes[name]); err != nil {
				w.Close()
				return fmt.Errorf("writing attribute %s of row %d: %w", name, row, err)
			}
		}
	}
	w.Close()

	if fc.CRS != "" {
		if err := os.WriteFile(replaceExt(path, ".prj"), []byte(fc.CRS), 0644); err != nil {
			return fmt.Errorf("writing prj file: %w", err)
		}
	}

	return nil
}

// shapeToPolygon converts a shapefile polygon to an orb.Polygon, one ring
// per part. Returns nil for non-polygon shapes.
func shapeToPolygon(s shp.Shape) orb.Polygon {
	p, ok := s.(*shp.Polygon)
	if !ok || len(p.Points) == 0 {
		return nil
	}

	poly := make(orb.Polygon, 0, len(p.Parts))
	for i, start := range p.Parts {
		end := int32(len(p.Points))
		if i+1 < len(p.Parts) {
			end = p.Parts[i+1]
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		if len(ring) > 0 {
			poly = append(poly, ring)
		}
	}
	if len(poly) == 0 {
		return nil
	}
	return poly
}

// polygonToShape converts an orb.Polygon to a shapefile polygon, closing
// each ring if the source left it open.
func polygonToShape(poly orb.Polygon) *shp.Polygon {
	parts := make([][]shp.Point, 0, len(poly))
	for _, ring := range poly {
		if len(ring) == 0 {
			continue
		}
		pts := make([]shp.Point, 0, len(ring)+1)
		for _, p := range ring {
			pts = append(pts, shp.Point{X: p[0], Y: p[1]})
		}
		if pts[0] != pts[len(pts)-1] {
			pts = append(pts, pts[0])
		}
		parts = append(parts, pts)
	}
	return (*shp.Polygon)(shp.NewPolyLine(parts))
}

// GroupsToCollection converts aggregation output back into a feature
// collection so it can be persisted with the group key and member count
// preserved.
func GroupsToCollection(groups []BoundingGroup, groupField, crs string) *FeatureCollection {
	fc := &FeatureCollection{
		Fields: []string{groupField, "count"},
		CRS:    crs,
	}
	for _, g := range groups {
		fc.Features = append(fc.Features, Feature{
			Geometry: orb.Polygon{g.Ring()},
			Attributes: map[string]string{
				groupField: g.Key,
				"count":    fmt.Sprintf("%d", g.Count),
			},
		})
	}
	return fc
}

// RectsToCollection converts geographic rectangles (decoded detections
// mapped through an affine model) into a feature collection carrying the
// class label, mirroring the yolo2shp output schema.
func RectsToCollection(rects []PixelRect, transform AffineMatrix, crs string) *FeatureCollection {
	fc := &FeatureCollection{
		Fields: []string{"class_id"},
		CRS:    crs,
	}
	for _, r := range rects {
		fc.Features = append(fc.Features, Feature{
			Geometry: transform.PixelRectToGeoPolygon(r),
			Attributes: map[string]string{
				"class_id": fmt.Sprintf("%d", r.Class),
			},
		})
	}
	return fc
}
