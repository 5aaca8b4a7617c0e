package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/fieldmap/internal/core/domain"
)

// Geometry converts a feature to its orb geometry. Polygon rings are closed
// by repeating the first vertex.
func Geometry(f domain.Feature) orb.Geometry {
	switch f.Kind {
	case domain.KindPoint:
		if len(f.Vertices) == 0 {
			return orb.Point{}
		}
		return ToOrb(f.Vertices[0])
	case domain.KindPolygon:
		ring := make(orb.Ring, 0, len(f.Vertices)+1)
		for _, v := range f.Vertices {
			ring = append(ring, ToOrb(v))
		}
		if len(ring) > 0 && !ring.Closed() {
			ring = append(ring, ring[0])
		}
		return orb.Polygon{ring}
	default:
		ls := make(orb.LineString, 0, len(f.Vertices))
		for _, v := range f.Vertices {
			ls = append(ls, ToOrb(v))
		}
		return ls
	}
}

// Feature converts a map feature to a GeoJSON feature carrying its ID,
// kind, vertex count and path length.
func Feature(f domain.Feature) *geojson.Feature {
	gf := geojson.NewFeature(Geometry(f))
	gf.ID = f.ID
	gf.Properties["kind"] = f.Kind.String()
	gf.Properties["vertices"] = len(f.Vertices)
	if f.Kind != domain.KindPoint {
		gf.Properties["length_m"] = PathLength(f.Vertices, f.Kind.Closed())
	}
	return gf
}

// FeatureCollection encodes features, plus an optional GPS fix as a point
// with the "gps" role, as a GeoJSON FeatureCollection.
func FeatureCollection(features []domain.Feature, fix *domain.GeoPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(Feature(f))
	}
	if fix != nil {
		gps := geojson.NewFeature(ToOrb(*fix))
		gps.Properties["role"] = "gps"
		if fix.Accuracy.Valid {
			gps.Properties["accuracy_m"] = fix.Accuracy.Value
		}
		if fix.Altitude.Valid {
			gps.Properties["altitude_m"] = fix.Altitude.Value
		}
		fc.Append(gps)
	}
	return fc
}
