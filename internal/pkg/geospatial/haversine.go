package geospatial

import (
	"math"

	"github.com/samirrijal/fieldmap/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// PathLength returns the length in meters of the path through vertices.
// Closed paths include the segment back to the first vertex.
func PathLength(vertices []domain.GeoPoint, closed bool) float64 {
	if len(vertices) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(vertices); i++ {
		a, b := vertices[i-1], vertices[i]
		total += Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
	}
	if closed {
		a, b := vertices[len(vertices)-1], vertices[0]
		total += Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
	}
	return total
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
