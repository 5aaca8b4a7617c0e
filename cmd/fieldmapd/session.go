package main

import (
	"log/slog"

	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/core/usecases"
	"github.com/samirrijal/fieldmap/internal/pkg/config"
	"github.com/samirrijal/fieldmap/internal/pkg/metrics"
)

// session is the host side of the map: what a field client does once the
// map is up. All methods run on the owner loop. changed is the controller's
// OnChange hook, so every mutation refreshes the snapshot, whether it came
// from a gesture, a fix or the REST API.
type session struct {
	m         *usecases.MapController
	snapshots *usecases.SnapshotPublisher
	cfg       *config.Config

	traceID int
}

func (s *session) onMapReady(m *usecases.MapController) {
	if m == nil {
		slog.Error("map unavailable; serving API without a backend")
		return
	}

	m.SetClickListener(func(p domain.GeoPoint) {
		id := m.AddPoint(p)
		slog.Info("point added", "feature_id", id, "at", p.String())
	})
	m.SetLongPressListener(func(p domain.GeoPoint) {
		m.ZoomToPoint(p)
	})

	if s.cfg.GPS.RecordTrace {
		m.RunOnGPSReady(s.startTrace)
		m.SetGPSListener(s.extendTrace)
	}

	if s.cfg.GPS.EnableOnStart {
		if err := m.SetGPSEnabled(true); err != nil {
			slog.Warn("gps not started", "error", err)
		}
	}
	s.changed()
}

// startTrace opens the GPS trace at the first fix and zooms to it.
func (s *session) startTrace(fix domain.GeoPoint) {
	id, err := s.m.AddFeature([]domain.GeoPoint{fix}, false)
	if err != nil {
		slog.Error("start trace", "error", err)
		return
	}
	s.traceID = id
	s.m.ZoomToPoint(fix)
	slog.Info("gps trace started", "feature_id", id, "at", fix.String())
}

// extendTrace appends later fixes. If the trace was removed through the
// API, a new one is started.
func (s *session) extendTrace(fix domain.GeoPoint) {
	if s.traceID == 0 {
		// The ready queue runs before this listener, so the first fix
		// already started the trace.
		return
	}
	last := s.m.Vertices(s.traceID)
	if n := len(last); n > 0 && last[n-1] == fix {
		return
	}
	if err := s.m.AppendVertex(s.traceID, fix); err != nil {
		s.startTrace(fix)
	}
}

func (s *session) changed() {
	if s.m == nil {
		return
	}
	features := s.m.Features()
	metrics.FeaturesLive.Set(float64(len(features)))
	if s.snapshots == nil {
		return
	}
	var fix *domain.GeoPoint
	if p, ok := s.m.GPSLocation(); ok {
		fix = &p
	}
	s.snapshots.Publish(features, fix)
}
