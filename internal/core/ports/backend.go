package ports

import "github.com/samirrijal/fieldmap/internal/core/domain"

// RenderBackend draws the map. Implementations may call BackendEvents from
// any goroutine; the controller marshals those calls onto its owner loop.
type RenderBackend interface {
	// Attach starts the backend. It must report BackendReady exactly once.
	Attach(events BackendEvents)
	Detach()

	// Center and Zoom return ok=false when the backend cannot be queried
	// synchronously.
	Center() (domain.GeoPoint, bool)
	Zoom() (float64, bool)

	SetCenter(center domain.GeoPoint)
	ZoomToPoint(center domain.GeoPoint, zoom float64)
	FitBounds(box domain.Bounds)

	// ShowFeature adds or redraws a feature; RemoveFeature drops it.
	ShowFeature(feature domain.Feature)
	RemoveFeature(id int)

	// ShowLocation draws the GPS marker; nil hides it.
	ShowLocation(fix *domain.GeoPoint)
}

// BackendEvents is the callback surface a RenderBackend drives.
type BackendEvents interface {
	BackendReady(err error)
	Click(point domain.GeoPoint)
	LongPress(point domain.GeoPoint)
}

// LocationProvider acquires GPS fixes. The sink is called from the
// provider's own goroutine.
type LocationProvider interface {
	Start(sink func(fix domain.GeoPoint)) error
	Stop() error
}

// Dispatcher hands work to the owner loop. Post must be safe to call from
// any goroutine and must not block.
type Dispatcher interface {
	Post(fn func())
}
