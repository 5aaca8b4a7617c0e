package backend

import (
	"sync"

	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/core/ports"
	"github.com/samirrijal/fieldmap/internal/pkg/geospatial"
	"github.com/samirrijal/fieldmap/internal/pkg/metrics"
)

var _ ports.RenderBackend = (*Headless)(nil)

// Op identifies a recorded render command.
type Op string

const (
	OpAttach        Op = "attach"
	OpDetach        Op = "detach"
	OpSetCenter     Op = "set_center"
	OpZoomToPoint   Op = "zoom_to_point"
	OpFitBounds     Op = "fit_bounds"
	OpShowFeature   Op = "show_feature"
	OpRemoveFeature Op = "remove_feature"
	OpShowLocation  Op = "show_location"
)

// Command is one recorded call on a Headless backend.
type Command struct {
	Op       Op
	Point    domain.GeoPoint
	Zoom     float64
	Bounds   domain.Bounds
	Feature  domain.Feature
	ID       int
	Location *domain.GeoPoint
}

// Headless is an in-memory backend that draws nothing. It keeps a
// queryable viewport, the features it was asked to show and a log of every
// command, which makes it the backend of choice for tests and for hosts
// without a display.
type Headless struct {
	// InitErr, if set before Attach, is reported instead of success.
	InitErr error

	mu       sync.Mutex
	events   ports.BackendEvents
	viewport domain.Viewport
	features map[int]domain.Feature
	location *domain.GeoPoint
	commands []Command
}

// NewHeadless creates a Headless backend showing initial.
func NewHeadless(initial domain.Viewport) *Headless {
	return &Headless{
		viewport: initial,
		features: make(map[int]domain.Feature),
	}
}

func (h *Headless) Attach(events ports.BackendEvents) {
	h.mu.Lock()
	h.events = events
	err := h.InitErr
	h.record(Command{Op: OpAttach})
	h.mu.Unlock()

	events.BackendReady(err)
}

func (h *Headless) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
	h.record(Command{Op: OpDetach})
}

func (h *Headless) Center() (domain.GeoPoint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewport.Center, true
}

func (h *Headless) Zoom() (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewport.Zoom, true
}

func (h *Headless) SetCenter(center domain.GeoPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewport.Center = center
	h.record(Command{Op: OpSetCenter, Point: center})
}

func (h *Headless) ZoomToPoint(center domain.GeoPoint, zoom float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewport = domain.Viewport{Center: center, Zoom: zoom}
	h.record(Command{Op: OpZoomToPoint, Point: center, Zoom: zoom})
}

// FitBounds recentres on the box at the zoom a single tile would need.
func (h *Headless) FitBounds(box domain.Bounds) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewport = domain.Viewport{Center: box.Center(), Zoom: geospatial.ZoomForBounds(box)}
	h.record(Command{Op: OpFitBounds, Bounds: box})
}

func (h *Headless) ShowFeature(feature domain.Feature) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.features[feature.ID] = feature
	h.record(Command{Op: OpShowFeature, Feature: feature, ID: feature.ID})
}

func (h *Headless) RemoveFeature(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.features, id)
	h.record(Command{Op: OpRemoveFeature, ID: id})
}

func (h *Headless) ShowLocation(fix *domain.GeoPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if fix != nil {
		p := *fix
		fix = &p
	}
	h.location = fix
	h.record(Command{Op: OpShowLocation, Location: fix})
}

// Tap simulates a click at p.
func (h *Headless) Tap(p domain.GeoPoint) {
	if ev := h.currentEvents(); ev != nil {
		metrics.Gestures.WithLabelValues(string(KindHeadless), "click").Inc()
		ev.Click(p)
	}
}

// Press simulates a long press at p.
func (h *Headless) Press(p domain.GeoPoint) {
	if ev := h.currentEvents(); ev != nil {
		metrics.Gestures.WithLabelValues(string(KindHeadless), "long_press").Inc()
		ev.LongPress(p)
	}
}

// Commands returns a copy of the command log.
func (h *Headless) Commands() []Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Command(nil), h.commands...)
}

// Last returns the most recent command with the given op.
func (h *Headless) Last(op Op) (Command, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.commands) - 1; i >= 0; i-- {
		if h.commands[i].Op == op {
			return h.commands[i], true
		}
	}
	return Command{}, false
}

// Shown returns the feature currently drawn under id.
func (h *Headless) Shown(id int) (domain.Feature, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.features[id]
	return f, ok
}

// ShownCount returns how many features are drawn.
func (h *Headless) ShownCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.features)
}

// Location returns the GPS marker, or nil if hidden.
func (h *Headless) Location() *domain.GeoPoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.location
}

func (h *Headless) currentEvents() ports.BackendEvents {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events
}

// record must be called with h.mu held.
func (h *Headless) record(c Command) {
	h.commands = append(h.commands, c)
	metrics.RenderCommands.WithLabelValues(string(KindHeadless), string(c.Op)).Inc()
}
