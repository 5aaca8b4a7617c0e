package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldmap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fieldmap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fieldmap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Owner loop
	DispatchTasks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldmap",
		Subsystem: "dispatch",
		Name:      "tasks_total",
		Help:      "Tasks executed on the owner loop",
	})

	DispatchDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldmap",
		Subsystem: "dispatch",
		Name:      "dropped_total",
		Help:      "Tasks discarded because the owner loop was closed",
	})

	DispatchPanics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldmap",
		Subsystem: "dispatch",
		Name:      "panics_total",
		Help:      "Tasks that panicked on the owner loop",
	})

	DispatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fieldmap",
		Subsystem: "dispatch",
		Name:      "queue_depth",
		Help:      "Tasks waiting for the owner loop",
	})

	// GPS
	FixesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldmap",
		Subsystem: "gps",
		Name:      "fixes_received_total",
		Help:      "GPS fixes received from the location provider",
	}, []string{"provider"})

	FixesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldmap",
		Subsystem: "gps",
		Name:      "fixes_rejected_total",
		Help:      "GPS fix messages that failed to decode or validate",
	}, []string{"provider", "reason"})

	// Map
	FeaturesLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fieldmap",
		Subsystem: "map",
		Name:      "features_live",
		Help:      "Editable features currently on the map",
	})

	RenderCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldmap",
		Subsystem: "map",
		Name:      "render_commands_total",
		Help:      "Commands sent to the rendering backend",
	}, []string{"backend", "command"})

	Gestures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldmap",
		Subsystem: "map",
		Name:      "gestures_total",
		Help:      "Clicks and long presses reported by the rendering backend",
	}, []string{"backend", "gesture"})

	// Snapshots
	SnapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldmap",
		Subsystem: "snapshot",
		Name:      "writes_total",
		Help:      "Feature snapshot writes to the cache",
	}, []string{"result"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fieldmap",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
