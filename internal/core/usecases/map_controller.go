package usecases

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/core/ports"
	"github.com/samirrijal/fieldmap/internal/pkg/geospatial"
)

// DefaultPointZoom is the close-up zoom used by ZoomToPoint.
const DefaultPointZoom = 16

// Options configures a MapController.
type Options struct {
	// PointZoom is the zoom ZoomToPoint uses; DefaultPointZoom if zero.
	PointZoom float64
	// Initial is the viewport reported before the backend is queryable.
	Initial domain.Viewport
	Logger  *slog.Logger
	// OnChange, if set, runs on the owner loop after every change to the
	// features or the GPS fix.
	OnChange func()
}

// MapController is the map surface a host UI drives. It composes a
// FeatureStore and a LocationTracker and forwards viewport commands to a
// RenderBackend. All methods must be called on the dispatcher's owner loop;
// listeners are always invoked there.
type MapController struct {
	backend    ports.RenderBackend
	dispatcher ports.Dispatcher
	features   *FeatureStore
	tracker    *LocationTracker
	listeners  *listenerRegistry
	log        *slog.Logger

	pointZoom float64
	center    domain.GeoPoint
	zoom      float64

	attached   bool
	readyFired bool
	ready      bool
	released   bool
	onReady    ReadyListener
	onChange   func()
}

// NewMapController creates a detached controller.
func NewMapController(backend ports.RenderBackend, provider ports.LocationProvider, dispatcher ports.Dispatcher, opts Options) *MapController {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	pointZoom := opts.PointZoom
	if pointZoom <= 0 {
		pointZoom = DefaultPointZoom
	}

	listeners := newListenerRegistry()
	m := &MapController{
		backend:    backend,
		dispatcher: dispatcher,
		features:   NewFeatureStore(),
		tracker:    newLocationTracker(provider, dispatcher, listeners, log),
		listeners:  listeners,
		log:        log.With("component", "map_controller"),
		pointZoom:  pointZoom,
		center:     opts.Initial.Center,
		zoom:       opts.Initial.Zoom,
		onChange:   opts.OnChange,
	}
	m.tracker.onFix = func(fix domain.GeoPoint) {
		m.backend.ShowLocation(&fix)
	}
	m.tracker.onRecord = m.changed
	return m
}

// Attach starts the backend. listener runs once on the owner loop with the
// controller when the backend is ready, or with nil if it failed.
func (m *MapController) Attach(listener ReadyListener) error {
	if m.attached {
		return domain.ErrAlreadyAttached
	}
	m.attached = true
	m.onReady = listener
	m.backend.Attach(backendEvents{m})
	return nil
}

// Ready reports whether the backend finished initialising successfully.
func (m *MapController) Ready() bool { return m.ready }

func (m *MapController) handleReady(err error) {
	if m.readyFired || m.released {
		return
	}
	m.readyFired = true

	listener := m.onReady
	m.onReady = nil
	if err != nil {
		if !errors.Is(err, domain.ErrBackendInit) {
			err = fmt.Errorf("%w: %v", domain.ErrBackendInit, err)
		}
		m.log.Error("map backend failed to initialise", "error", err)
		if listener != nil {
			listener(nil)
		}
		return
	}
	m.ready = true
	m.log.Info("map backend ready")
	if listener != nil {
		listener(m)
	}
}

// Release tears the surface down: GPS is disabled, queued GPS callbacks are
// discarded, listeners are cleared and the backend is detached. Events that
// arrive afterwards are dropped.
func (m *MapController) Release() {
	if m.released {
		return
	}
	m.tracker.release()
	m.listeners.reset()
	m.onReady = nil
	if m.attached {
		m.backend.Detach()
	}
	m.released = true
	m.log.Debug("map controller released")
}

// -- viewport --

// Center returns the point shown at the centre of the map.
func (m *MapController) Center() domain.GeoPoint {
	if c, ok := m.backend.Center(); ok {
		return c
	}
	return m.center
}

// Zoom returns the current zoom level.
func (m *MapController) Zoom() float64 {
	if z, ok := m.backend.Zoom(); ok {
		return z
	}
	return m.zoom
}

// SetCenter recentres the map, leaving zoom unchanged.
func (m *MapController) SetCenter(center domain.GeoPoint) {
	if m.released {
		return
	}
	m.center = center
	m.backend.SetCenter(center)
}

// ZoomToPoint centres on p at the configured close-up zoom.
func (m *MapController) ZoomToPoint(p domain.GeoPoint) {
	m.ZoomToPointAt(p, m.pointZoom)
}

// ZoomToPointAt centres on p at the given zoom.
func (m *MapController) ZoomToPointAt(p domain.GeoPoint, zoom float64) {
	if m.released {
		return
	}
	m.center = p
	m.zoom = zoom
	m.backend.ZoomToPoint(p, zoom)
}

// ZoomToBoundingBox fits the viewport so the box around points occupies
// scaleFactor of each viewport dimension; 0.8 leaves a 10% margin on every
// side.
func (m *MapController) ZoomToBoundingBox(points []domain.GeoPoint, scaleFactor float64) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: no points to fit", domain.ErrInvalidInput)
	}
	if math.IsNaN(scaleFactor) || scaleFactor <= 0 || scaleFactor > 1 {
		return fmt.Errorf("%w: scale factor %v not in (0, 1]", domain.ErrInvalidInput, scaleFactor)
	}

	if m.released {
		return nil
	}

	box := geospatial.Bound(points)
	if geospatial.Degenerate(box) {
		m.ZoomToPoint(box.Center())
		return nil
	}

	fit := geospatial.FitWithMargin(box, scaleFactor)
	m.center = box.Center()
	m.zoom = geospatial.ZoomForBounds(fit)
	m.backend.FitBounds(fit)
	return nil
}

// -- features --

// AddFeature adds a polyline or, if closed, a polygon and returns its ID.
func (m *MapController) AddFeature(vertices []domain.GeoPoint, closed bool) (int, error) {
	if m.released {
		return 0, domain.ErrReleased
	}
	id, err := m.features.Add(vertices, closed)
	if err != nil {
		return 0, err
	}
	m.redraw(id)
	m.changed()
	return id, nil
}

// AddPoint adds an editable point and returns its ID, or 0 once the
// controller is released.
func (m *MapController) AddPoint(p domain.GeoPoint) int {
	if m.released {
		return 0
	}
	id := m.features.AddPoint(p)
	m.redraw(id)
	m.changed()
	return id
}

// AppendVertex appends p to a polyline or polygon. An unknown ID yields
// ErrUnknownFeature and changes nothing.
func (m *MapController) AppendVertex(id int, p domain.GeoPoint) error {
	if m.released {
		return domain.ErrReleased
	}
	if err := m.features.Append(id, p); err != nil {
		m.log.Debug("append to unknown feature", "feature_id", id)
		return err
	}
	m.redraw(id)
	m.changed()
	return nil
}

// Vertices returns a copy of a polyline's or polygon's vertices; empty if
// id does not name one.
func (m *MapController) Vertices(id int) []domain.GeoPoint {
	return m.features.Vertices(id)
}

// Feature returns a copy of one feature.
func (m *MapController) Feature(id int) (domain.Feature, bool) {
	return m.features.Feature(id)
}

// Features returns copies of all features ordered by ID.
func (m *MapController) Features() []domain.Feature {
	return m.features.Features()
}

// RemoveFeature removes a feature; unknown IDs are ignored.
func (m *MapController) RemoveFeature(id int) {
	if m.released {
		return
	}
	if m.features.Remove(id) {
		m.backend.RemoveFeature(id)
		m.changed()
	}
}

// ClearFeatures removes every feature. IDs keep increasing afterwards.
func (m *MapController) ClearFeatures() {
	if m.released {
		return
	}
	ids := m.features.Clear()
	for _, id := range ids {
		m.backend.RemoveFeature(id)
	}
	if len(ids) > 0 {
		m.changed()
	}
}

func (m *MapController) redraw(id int) {
	if f, ok := m.features.Feature(id); ok {
		m.backend.ShowFeature(f)
	}
}

func (m *MapController) changed() {
	if m.onChange != nil && !m.released {
		m.onChange()
	}
}

// -- GPS --

// SetGPSEnabled starts or stops GPS tracking. While enabled the last fix is
// shown on the map and every fix reaches the GPS listener.
func (m *MapController) SetGPSEnabled(enabled bool) error {
	if m.released {
		return domain.ErrReleased
	}
	wasEnabled := m.tracker.Enabled()
	if err := m.tracker.SetEnabled(enabled); err != nil {
		return err
	}
	switch {
	case wasEnabled && !enabled:
		m.backend.ShowLocation(nil)
	case !wasEnabled && enabled:
		if fix, ok := m.tracker.LastFix(); ok {
			m.backend.ShowLocation(&fix)
		}
	}
	return nil
}

// GPSEnabled reports whether GPS tracking is on.
func (m *MapController) GPSEnabled() bool { return m.tracker.Enabled() }

// GPSLocation returns the last fix, if there has been one.
func (m *MapController) GPSLocation() (domain.GeoPoint, bool) {
	return m.tracker.LastFix()
}

// GPSState returns the tracker state.
func (m *MapController) GPSState() TrackerState { return m.tracker.State() }

// RunOnGPSReady runs cb with the current fix now, or once with the next
// fix. Hosts should disable GPS or Release before tearing down the surface
// that registered cb.
func (m *MapController) RunOnGPSReady(cb PointListener) {
	m.tracker.OnReady(cb)
}

// SetGPSListener sets or clears the per-fix listener.
func (m *MapController) SetGPSListener(cb PointListener) {
	m.tracker.SetFixListener(cb)
}

// -- gestures --

// SetClickListener sets or clears the click listener.
func (m *MapController) SetClickListener(cb PointListener) {
	m.listeners.set(slotClick, cb)
}

// SetLongPressListener sets or clears the long-press listener.
func (m *MapController) SetLongPressListener(cb PointListener) {
	m.listeners.set(slotLongPress, cb)
}

func (m *MapController) handleGesture(s slot, p domain.GeoPoint) {
	if m.released {
		return
	}
	m.listeners.fire(s, p)
}

// backendEvents posts backend callbacks onto the owner loop. It keeps
// BackendReady and friends off the controller's public surface.
type backendEvents struct {
	m *MapController
}

func (e backendEvents) BackendReady(err error) {
	e.m.dispatcher.Post(func() { e.m.handleReady(err) })
}

func (e backendEvents) Click(p domain.GeoPoint) {
	e.m.dispatcher.Post(func() { e.m.handleGesture(slotClick, p) })
}

func (e backendEvents) LongPress(p domain.GeoPoint) {
	e.m.dispatcher.Post(func() { e.m.handleGesture(slotLongPress, p) })
}
