// Command gpssim stands in for a GPS daemon during development. It waits
// for a ControlMessage with enabled=true on the control subject and then
// publishes a fix every second, walking a circle around the configured
// initial map centre, until told to stop.
package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/fieldmap/internal/adapters/nats"
	"github.com/samirrijal/fieldmap/internal/pkg/config"
	"github.com/samirrijal/fieldmap/internal/pkg/logging"
)

const (
	interval     = 1 * time.Second
	radiusDeg    = 0.002
	stepsPerLoop = 120
	accuracyM    = 5.0
)

func main() {
	cfg, err := config.Load("gpssim")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	nc, err := natsadapter.Connect(cfg.NATS.URL, "gpssim")
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer nc.Drain()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var enabled atomic.Bool
	_, err = nc.Subscribe(cfg.NATS.ControlSubject, func(msg *nats.Msg) {
		var ctl natsadapter.ControlMessage
		if err := json.Unmarshal(msg.Data, &ctl); err != nil {
			slog.Warn("bad control message", "error", err)
			return
		}
		if enabled.Swap(ctl.Enabled) != ctl.Enabled {
			slog.Info("acquisition toggled", "enabled", ctl.Enabled)
		}
	})
	if err != nil {
		log.Fatalf("subscribe %s: %v", cfg.NATS.ControlSubject, err)
	}

	slog.Info("gps simulator ready", "fix_subject", cfg.NATS.FixSubject,
		"center_lat", cfg.Map.InitialLat, "center_lon", cfg.Map.InitialLon)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	step := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("gps simulator stopped")
			return
		case now := <-ticker.C:
			if !enabled.Load() {
				continue
			}
			msg := fixAt(cfg.Map.InitialLat, cfg.Map.InitialLon, step, now)
			data, _ := json.Marshal(msg)
			if err := nc.Publish(cfg.NATS.FixSubject, data); err != nil {
				slog.Warn("publish fix", "error", err)
				continue
			}
			step++
		}
	}
}

func fixAt(lat, lon float64, step int, now time.Time) natsadapter.FixMessage {
	theta := 2 * math.Pi * float64(step%stepsPerLoop) / stepsPerLoop
	fLat := lat + radiusDeg*math.Sin(theta)
	fLon := lon + radiusDeg*math.Cos(theta)/math.Max(math.Cos(lat*math.Pi/180), 0.01)
	acc := accuracyM
	t := now.UTC()
	return natsadapter.FixMessage{Lat: &fLat, Lon: &fLon, Accuracy: &acc, Time: &t}
}
