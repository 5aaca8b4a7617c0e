package natsadapter

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/core/ports"
	"github.com/samirrijal/fieldmap/internal/pkg/metrics"
)

const providerLabel = "nats"

var _ ports.LocationProvider = (*LocationProvider)(nil)

// LocationProvider implements ports.LocationProvider on top of a GPS
// daemon that publishes FixMessage values on a subject and listens for
// ControlMessage values on another.
type LocationProvider struct {
	conn           *nats.Conn
	fixSubject     string
	controlSubject string
	log            *slog.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewLocationProvider creates a provider; nothing is subscribed until Start.
func NewLocationProvider(conn *nats.Conn, fixSubject, controlSubject string) *LocationProvider {
	return &LocationProvider{
		conn:           conn,
		fixSubject:     fixSubject,
		controlSubject: controlSubject,
		log:            slog.Default().With("component", "nats_location_provider"),
	}
}

// Start subscribes to fixes and asks the daemon to acquire. sink runs on
// the NATS client's goroutine.
func (p *LocationProvider) Start(sink func(fix domain.GeoPoint)) error {
	if p.conn == nil {
		return errors.New("nats connection unavailable")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sub != nil {
		return nil
	}

	sub, err := p.conn.Subscribe(p.fixSubject, func(msg *nats.Msg) {
		fix, err := DecodeFix(msg.Data)
		if err != nil {
			metrics.FixesRejected.WithLabelValues(providerLabel, rejectReason(err)).Inc()
			p.log.Warn("dropping fix", "subject", msg.Subject, "error", err)
			return
		}
		metrics.FixesReceived.WithLabelValues(providerLabel).Inc()
		sink(fix)
	})
	if err != nil {
		return err
	}
	p.sub = sub

	if err := publishJSON(context.Background(), p.conn, p.controlSubject, ControlMessage{Enabled: true}); err != nil {
		p.log.Warn("gps control publish failed", "error", err)
	}
	p.log.Info("location provider started", "subject", p.fixSubject)
	return nil
}

// Stop unsubscribes and asks the daemon to stop acquiring.
func (p *LocationProvider) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sub == nil {
		return nil
	}

	err := p.sub.Unsubscribe()
	p.sub = nil
	if perr := publishJSON(context.Background(), p.conn, p.controlSubject, ControlMessage{Enabled: false}); perr != nil {
		p.log.Warn("gps control publish failed", "error", perr)
	}
	p.log.Info("location provider stopped")
	return err
}
