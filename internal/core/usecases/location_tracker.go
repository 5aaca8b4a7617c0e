package usecases

import (
	"fmt"
	"log/slog"

	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/core/ports"
)

// TrackerState is the combined GPS enablement and fix state.
type TrackerState int

const (
	DisabledNoFix TrackerState = iota
	DisabledHasFix
	EnabledNoFix
	EnabledHasFix
)

func (s TrackerState) String() string {
	switch s {
	case DisabledNoFix:
		return "disabled_no_fix"
	case DisabledHasFix:
		return "disabled_has_fix"
	case EnabledNoFix:
		return "enabled_no_fix"
	case EnabledHasFix:
		return "enabled_has_fix"
	default:
		return fmt.Sprintf("TrackerState(%d)", int(s))
	}
}

// LocationTracker owns GPS enablement, the last known fix, the queue of
// one-shot ready callbacks and the persistent fix listener.
//
// Fixes arrive on the provider's goroutine and are posted to the dispatcher;
// everything else runs on the owner loop.
type LocationTracker struct {
	provider   ports.LocationProvider
	dispatcher ports.Dispatcher
	listeners  *listenerRegistry
	log        *slog.Logger

	enabled  bool
	fix      domain.GeoPoint
	hasFix   bool
	pending  []PointListener
	released bool

	// onFix runs after the listener for every fix received while enabled.
	onFix func(fix domain.GeoPoint)
	// onRecord runs last for every fix recorded.
	onRecord func()
}

// NewLocationTracker creates a tracker in the DisabledNoFix state.
func NewLocationTracker(provider ports.LocationProvider, dispatcher ports.Dispatcher) *LocationTracker {
	return newLocationTracker(provider, dispatcher, newListenerRegistry(), slog.Default())
}

func newLocationTracker(provider ports.LocationProvider, dispatcher ports.Dispatcher, listeners *listenerRegistry, log *slog.Logger) *LocationTracker {
	return &LocationTracker{
		provider:   provider,
		dispatcher: dispatcher,
		listeners:  listeners,
		log:        log.With("component", "location_tracker"),
	}
}

// SetEnabled starts or stops fix acquisition. Setting the current value
// again does nothing and does not touch the provider. If the provider fails
// to start, the tracker stays disabled.
func (t *LocationTracker) SetEnabled(enabled bool) error {
	if t.released || enabled == t.enabled {
		return nil
	}

	if enabled {
		if err := t.provider.Start(t.receive); err != nil {
			return fmt.Errorf("start location provider: %w", err)
		}
		t.enabled = true
		t.log.Debug("gps enabled", "state", t.State().String())
		return nil
	}

	t.enabled = false
	if err := t.provider.Stop(); err != nil {
		t.log.Warn("stop location provider", "error", err)
	}
	t.log.Debug("gps disabled", "state", t.State().String(), "pending", len(t.pending))
	return nil
}

// Enabled reports whether fix acquisition is active.
func (t *LocationTracker) Enabled() bool { return t.enabled }

// LastFix returns the most recent fix, if any. Disabling GPS keeps it.
func (t *LocationTracker) LastFix() (domain.GeoPoint, bool) {
	return t.fix, t.hasFix
}

// State returns the current state machine state.
func (t *LocationTracker) State() TrackerState {
	switch {
	case t.enabled && t.hasFix:
		return EnabledHasFix
	case t.enabled:
		return EnabledNoFix
	case t.hasFix:
		return DisabledHasFix
	default:
		return DisabledNoFix
	}
}

// Pending returns the number of queued one-shot callbacks.
func (t *LocationTracker) Pending() int { return len(t.pending) }

// OnReady calls cb with the last fix right away if there is one, otherwise
// queues it for the next fix. Each callback runs at most once.
func (t *LocationTracker) OnReady(cb PointListener) {
	if cb == nil || t.released {
		return
	}
	if t.hasFix {
		cb(t.fix)
		return
	}
	t.pending = append(t.pending, cb)
}

// SetFixListener replaces the persistent fix listener; nil clears it.
func (t *LocationTracker) SetFixListener(cb PointListener) {
	t.listeners.set(slotFix, cb)
}

// receive is the provider sink. It may run on any goroutine.
func (t *LocationTracker) receive(fix domain.GeoPoint) {
	t.dispatcher.Post(func() { t.handleFix(fix) })
}

// handleFix records the fix, drains the one-shot queue in FIFO order and
// then notifies the fix listener if GPS is enabled.
func (t *LocationTracker) handleFix(fix domain.GeoPoint) {
	if t.released {
		return
	}

	t.fix = fix
	t.hasFix = true

	queued := t.pending
	t.pending = nil
	for _, cb := range queued {
		cb(fix)
	}
	if len(queued) > 0 {
		t.log.Debug("ready callbacks drained", "count", len(queued), "fix", fix.String())
	}

	if t.enabled {
		t.listeners.fire(slotFix, fix)
		if t.onFix != nil {
			t.onFix(fix)
		}
	}
	if t.onRecord != nil {
		t.onRecord()
	}
}

// release stops acquisition and drops queued callbacks. Fixes that were
// already posted become no-ops.
func (t *LocationTracker) release() {
	if t.released {
		return
	}
	_ = t.SetEnabled(false)
	if n := len(t.pending); n > 0 {
		t.log.Debug("discarding ready callbacks", "count", n)
	}
	t.pending = nil
	t.released = true
}
