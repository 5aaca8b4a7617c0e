package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/fieldmap/internal/core/usecases"
	"github.com/samirrijal/fieldmap/internal/pkg/telemetry"
)

// Runner runs fn on the map's owner loop and waits for it.
type Runner interface {
	Call(ctx context.Context, fn func()) error
}

// Pinger is a cache that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds everything the HTTP handlers need.
type Dependencies struct {
	Map  *usecases.MapController
	Loop Runner

	// Optional.
	NATS         *nats.Conn
	Cache        Pinger
	RenderPrefix string

	// FitScale is used by /v1/viewport/fit when the request has none.
	FitScale float64
	// CallTimeout bounds the wait for the owner loop; 5s if zero.
	CallTimeout time.Duration
}

// onLoop runs fn against the map on the owner loop.
func (d *Dependencies) onLoop(ctx context.Context, fn func(m *usecases.MapController)) error {
	timeout := d.CallTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := telemetry.Tracer("http").Start(ctx, "owner_loop.call")
	defer span.End()
	err := d.Loop.Call(ctx, func() { fn(d.Map) })
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
