package usecases

import "github.com/samirrijal/fieldmap/internal/core/domain"

// PointListener receives a point: a GPS fix, a click or a long press.
type PointListener func(point domain.GeoPoint)

// ReadyListener receives the controller once the backend is ready, or nil
// if the backend failed to initialise.
type ReadyListener func(m *MapController)

type slot string

const (
	slotFix       slot = "fix"
	slotClick     slot = "click"
	slotLongPress slot = "long_press"
)

// listenerRegistry holds at most one PointListener per slot.
type listenerRegistry struct {
	handlers map[slot]PointListener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{handlers: make(map[slot]PointListener)}
}

// set replaces the listener in s; nil clears it.
func (r *listenerRegistry) set(s slot, l PointListener) {
	if l == nil {
		delete(r.handlers, s)
		return
	}
	r.handlers[s] = l
}

// fire invokes the listener in s, if any, and reports whether one ran.
func (r *listenerRegistry) fire(s slot, p domain.GeoPoint) bool {
	l, ok := r.handlers[s]
	if !ok {
		return false
	}
	l(p)
	return true
}

func (r *listenerRegistry) reset() {
	r.handlers = make(map[slot]PointListener)
}
