package usecases

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/core/ports"
	"github.com/samirrijal/fieldmap/internal/pkg/geospatial"
	"github.com/samirrijal/fieldmap/internal/pkg/telemetry"
)

type snapshot struct {
	features []domain.Feature
	fix      *domain.GeoPoint
}

// SnapshotPublisher writes the latest feature collection to a cache so that
// other services can read what the map shows. Publish never blocks; if the
// writer is busy, older snapshots are replaced by newer ones.
type SnapshotPublisher struct {
	cache ports.CacheService
	key   string
	ttl   time.Duration
	next  chan snapshot
	log   *slog.Logger

	// OnWrite, if set, is called after each cache write with its error.
	OnWrite func(err error)
}

// NewSnapshotPublisher creates a publisher that stores snapshots under key.
// A nil logger means slog.Default().
func NewSnapshotPublisher(cache ports.CacheService, key string, ttl time.Duration, log *slog.Logger) *SnapshotPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &SnapshotPublisher{
		cache: cache,
		key:   key,
		ttl:   ttl,
		next:  make(chan snapshot, 1),
		log:   log.With("component", "snapshot_publisher"),
	}
}

// Publish queues a snapshot. features must not be modified afterwards; the
// controller's Features already returns copies.
func (p *SnapshotPublisher) Publish(features []domain.Feature, fix *domain.GeoPoint) {
	s := snapshot{features: features, fix: fix}
	for {
		select {
		case p.next <- s:
			return
		default:
		}
		// Drop the stale snapshot and retry.
		select {
		case <-p.next:
		default:
		}
	}
}

// Run writes snapshots until ctx is cancelled.
func (p *SnapshotPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-p.next:
			err := p.write(ctx, s)
			if err != nil {
				p.log.Warn("snapshot write failed", "key", p.key, "error", err)
			}
			if p.OnWrite != nil {
				p.OnWrite(err)
			}
		}
	}
}

func (p *SnapshotPublisher) write(ctx context.Context, s snapshot) error {
	ctx, span := telemetry.Tracer("usecases").Start(ctx, "snapshot.write")
	defer span.End()
	span.SetAttributes(
		attribute.String("cache.key", p.key),
		attribute.Int("snapshot.features", len(s.features)),
	)

	data, err := geospatial.FeatureCollection(s.features, s.fix).MarshalJSON()
	if err == nil {
		err = p.cache.Set(ctx, p.key, data, int(p.ttl.Seconds()))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
