package geospatial

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/samirrijal/fieldmap/internal/core/domain"
)

// ToOrb converts a point to orb's [lon, lat] order.
func ToOrb(p domain.GeoPoint) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Bound returns the minimal axis-aligned box covering points. It returns
// the zero Bounds for an empty slice.
func Bound(points []domain.GeoPoint) domain.Bounds {
	if len(points) == 0 {
		return domain.Bounds{}
	}
	mp := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		mp = append(mp, ToOrb(p))
	}
	b := mp.Bound()
	return domain.Bounds{
		MinLat: b.Bottom(),
		MinLon: b.Left(),
		MaxLat: b.Top(),
		MaxLon: b.Right(),
	}
}

// Scale grows (factor > 1) or shrinks a box about its centre.
func Scale(b domain.Bounds, factor float64) domain.Bounds {
	c := b.Center()
	halfH := b.Height() * factor / 2
	halfW := b.Width() * factor / 2
	return domain.Bounds{
		MinLat: c.Lat - halfH,
		MinLon: c.Lon - halfW,
		MaxLat: c.Lat + halfH,
		MaxLon: c.Lon + halfW,
	}
}

// FitWithMargin returns the box a viewport must show so that b occupies
// scaleFactor of each of its dimensions. The result is clamped to WGS 84,
// so near the poles or the antimeridian the margin is cut short.
func FitWithMargin(b domain.Bounds, scaleFactor float64) domain.Bounds {
	return Clamp(Scale(b, 1/scaleFactor))
}

// Clamp limits a box to latitudes [-90, 90] and longitudes [-180, 180].
func Clamp(b domain.Bounds) domain.Bounds {
	return domain.Bounds{
		MinLat: math.Max(b.MinLat, -90),
		MinLon: math.Max(b.MinLon, -180),
		MaxLat: math.Min(b.MaxLat, 90),
		MaxLon: math.Min(b.MaxLon, 180),
	}
}

// ZoomForBounds estimates the web map zoom level at which b fills one
// 256px tile: each level halves the visible span. Zero-extent dimensions
// are ignored; the result is never negative.
func ZoomForBounds(b domain.Bounds) float64 {
	zoom := math.Inf(1)
	if w := b.Width(); w > 0 {
		zoom = math.Log2(360 / w)
	}
	if h := b.Height(); h > 0 {
		zoom = math.Min(zoom, math.Log2(180/h))
	}
	if math.IsInf(zoom, 1) || zoom < 0 {
		return 0
	}
	return zoom
}

// Degenerate reports whether the box has no extent in either dimension.
func Degenerate(b domain.Bounds) bool {
	return b.Width() == 0 && b.Height() == 0
}
