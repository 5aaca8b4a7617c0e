package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/fieldmap/internal/adapters/backend"
	"github.com/samirrijal/fieldmap/internal/adapters/http"
	natsadapter "github.com/samirrijal/fieldmap/internal/adapters/nats"
	"github.com/samirrijal/fieldmap/internal/adapters/valkey"
	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/core/usecases"
	"github.com/samirrijal/fieldmap/internal/pkg/config"
	"github.com/samirrijal/fieldmap/internal/pkg/dispatch"
	"github.com/samirrijal/fieldmap/internal/pkg/logging"
	"github.com/samirrijal/fieldmap/internal/pkg/metrics"
	"github.com/samirrijal/fieldmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("fieldmapd")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// NATS carries GPS fixes and, for the nats backend, render commands.
	nc, err := natsadapter.Connect(cfg.NATS.URL, "fieldmapd")
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer nc.Drain()

	// Owner loop: every map call and every map callback runs here.
	loop := dispatch.New()
	go loop.Run(ctx)

	initial := domain.Viewport{
		Center: domain.NewGeoPoint(cfg.Map.InitialLat, cfg.Map.InitialLon),
		Zoom:   cfg.Map.InitialZoom,
	}
	renderer, err := backend.New(backend.Kind(cfg.Map.Backend), backend.Options{
		Initial: initial,
		Conn:    nc,
		Prefix:  cfg.NATS.RenderPrefix,
	})
	if err != nil {
		log.Fatalf("map backend: %v", err)
	}
	provider := natsadapter.NewLocationProvider(nc, cfg.NATS.FixSubject, cfg.NATS.ControlSubject)

	// Snapshots of the map for other services (optional)
	var snapshots *usecases.SnapshotPublisher
	var cache *valkey.Cache
	if cfg.Valkey.Addr != "" {
		cache, err = valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, snapshots disabled", "error", err)
		} else {
			defer cache.Close()
			snapshots = usecases.NewSnapshotPublisher(cache, cfg.Valkey.SnapshotKey, cfg.Valkey.SnapshotTTLDuration(), slog.Default())
			snapshots.OnWrite = func(err error) {
				result := "ok"
				if err != nil {
					result = "error"
				}
				metrics.SnapshotWrites.WithLabelValues(result).Inc()
			}
			go snapshots.Run(ctx)
		}
	}

	session := &session{snapshots: snapshots, cfg: cfg}
	m := usecases.NewMapController(renderer, provider, loop, usecases.Options{
		PointZoom: cfg.Map.PointZoom,
		Initial:   initial,
		Logger:    logging.Component("map"),
		OnChange:  session.changed,
	})
	session.m = m

	if err := loop.Call(ctx, func() {
		if err := m.Attach(session.onMapReady); err != nil {
			slog.Error("attach map", "error", err)
		}
	}); err != nil {
		log.Fatalf("attach map: %v", err)
	}

	deps := &http.Dependencies{
		Map:          m,
		Loop:         loop,
		NATS:         nc,
		RenderPrefix: cfg.NATS.RenderPrefix,
		FitScale:     cfg.Map.FitScale,
	}
	if cache != nil {
		deps.Cache = cache
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "fieldmap",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("fieldmap server starting", "addr", addr, "backend", cfg.Map.Backend)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// Stop GPS and detach the backend before the loop goes away.
	if err := loop.Call(shutdownCtx, m.Release); err != nil {
		slog.Warn("release map", "error", err)
	}
	loop.Close()

	slog.Info("server stopped")
}
