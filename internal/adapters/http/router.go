package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/fieldmap/internal/pkg/metrics"
)

// SetupRoutes registers the REST and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(TracingMiddleware())
	app.Use(RequestLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 600 requests per minute per IP; a field client polls the location often.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	v1.Get("/features", ListFeaturesHandler(deps))
	v1.Post("/features", AddFeatureHandler(deps))
	v1.Delete("/features", ClearFeaturesHandler(deps))
	v1.Post("/points", AddPointHandler(deps))
	v1.Get("/features/:id", GetFeatureHandler(deps))
	v1.Delete("/features/:id", RemoveFeatureHandler(deps))
	v1.Post("/features/:id/vertices", AppendVertexHandler(deps))

	v1.Get("/location", GetLocationHandler(deps))
	v1.Put("/location", SetLocationHandler(deps))

	v1.Get("/viewport", GetViewportHandler(deps))
	v1.Put("/viewport/center", SetCenterHandler(deps))
	v1.Post("/viewport/zoom", ZoomHandler(deps))
	v1.Post("/viewport/fit", FitHandler(deps))

	// WebSocket relay of render commands; needs NATS.
	if deps.NATS == nil {
		return
	}
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS, deps.RenderPrefix)))
}
