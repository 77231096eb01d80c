package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/docflow-api/internal/config"
	"github.com/noah-isme/docflow-api/internal/handler"
	"github.com/noah-isme/docflow-api/internal/middleware"
	"github.com/noah-isme/docflow-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	FormHandler        *handler.FormHandler
	DocumentHandler    *handler.DocumentHandler
	ActivityLogHandler *handler.ActivityLogHandler
	JWTMiddleware      fiber.Handler
	HealthProbes       []handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	limit := middleware.RateLimit("docflow", cfg.RateLimitPerMinute, time.Minute)

	if deps.FormHandler != nil {
		deps.FormHandler.Register(app.Group("/forms", jwtMiddleware, limit))
	}

	if deps.DocumentHandler != nil {
		deps.DocumentHandler.Register(app.Group("/documents", jwtMiddleware, limit))
	}

	if deps.ActivityLogHandler != nil {
		deps.ActivityLogHandler.Register(app.Group("/documentActivityLogs", jwtMiddleware, limit))
	}
}
