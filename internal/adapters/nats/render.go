package natsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/core/ports"
	"github.com/samirrijal/fieldmap/internal/pkg/metrics"
)

const backendLabel = "nats"

var _ ports.RenderBackend = (*RenderBackend)(nil)

// RenderBackend implements ports.RenderBackend by publishing render
// commands for a remote renderer:
//
//	<prefix>.viewport         ViewportMessage
//	<prefix>.feature.upsert   domain.Feature
//	<prefix>.feature.remove   RemoveMessage
//	<prefix>.location         LocationMessage
//
// Gestures come back on <prefix>.input.click and <prefix>.input.longpress.
// The remote viewport cannot be queried synchronously.
type RenderBackend struct {
	conn   *nats.Conn
	prefix string
	log    *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewRenderBackend creates a backend publishing under prefix.
func NewRenderBackend(conn *nats.Conn, prefix string) *RenderBackend {
	return &RenderBackend{
		conn:   conn,
		prefix: prefix,
		log:    slog.Default().With("component", "nats_render_backend"),
	}
}

// Subject returns the full subject for a suffix such as "viewport".
func (b *RenderBackend) Subject(suffix string) string {
	return b.prefix + "." + suffix
}

func (b *RenderBackend) Attach(events ports.BackendEvents) {
	if b.conn == nil || b.conn.IsClosed() {
		events.BackendReady(fmt.Errorf("%w: nats connection unavailable", domain.ErrBackendInit))
		return
	}

	inputs := []struct {
		suffix  string
		gesture string
		deliver func(domain.GeoPoint)
	}{
		{"input.click", "click", events.Click},
		{"input.longpress", "long_press", events.LongPress},
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, in := range inputs {
		in := in
		sub, err := b.conn.Subscribe(b.Subject(in.suffix), func(msg *nats.Msg) {
			p, err := DecodeGesture(msg.Data)
			if err != nil {
				b.log.Warn("dropping gesture", "subject", msg.Subject, "error", err)
				return
			}
			metrics.Gestures.WithLabelValues(backendLabel, in.gesture).Inc()
			in.deliver(p)
		})
		if err != nil {
			b.unsubscribeLocked()
			events.BackendReady(fmt.Errorf("%w: subscribe %s: %v", domain.ErrBackendInit, in.suffix, err))
			return
		}
		b.subs = append(b.subs, sub)
	}

	b.log.Info("render backend attached", "prefix", b.prefix)
	events.BackendReady(nil)
}

func (b *RenderBackend) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribeLocked()
}

func (b *RenderBackend) unsubscribeLocked() {
	for _, s := range b.subs {
		_ = s.Unsubscribe()
	}
	b.subs = nil
}

func (b *RenderBackend) Center() (domain.GeoPoint, bool) { return domain.GeoPoint{}, false }

func (b *RenderBackend) Zoom() (float64, bool) { return 0, false }

func (b *RenderBackend) SetCenter(center domain.GeoPoint) {
	b.publish("viewport", "set_center", ViewportMessage{Op: "set_center", Center: &center})
}

func (b *RenderBackend) ZoomToPoint(center domain.GeoPoint, zoom float64) {
	b.publish("viewport", "zoom_to_point", ViewportMessage{Op: "zoom_to_point", Center: &center, Zoom: &zoom})
}

func (b *RenderBackend) FitBounds(box domain.Bounds) {
	b.publish("viewport", "fit_bounds", ViewportMessage{Op: "fit_bounds", Bounds: &box})
}

func (b *RenderBackend) ShowFeature(feature domain.Feature) {
	b.publish("feature.upsert", "show_feature", feature)
}

func (b *RenderBackend) RemoveFeature(id int) {
	b.publish("feature.remove", "remove_feature", RemoveMessage{ID: id})
}

func (b *RenderBackend) ShowLocation(fix *domain.GeoPoint) {
	b.publish("location", "show_location", LocationMessage{Visible: fix != nil, Fix: fix})
}

func (b *RenderBackend) publish(suffix, command string, v any) {
	if b.conn == nil {
		return
	}
	if err := publishJSON(context.Background(), b.conn, b.Subject(suffix), v); err != nil {
		b.log.Warn("render publish failed", "command", command, "error", err)
		return
	}
	metrics.RenderCommands.WithLabelValues(backendLabel, command).Inc()
}
