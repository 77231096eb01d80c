package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/docflow-api/internal/observability"
)

// Observability records request metrics and writes one structured log line
// per request, tagged with the caller and tenant when known.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if c.Path() == "/metrics" {
			return err
		}

		elapsed := time.Since(start)
		route := routeTemplate(c)
		status := c.Response().StatusCode()
		recordRequest(c.Method(), route, status, elapsed)
		logRequest(logger, c, route, status, elapsed)

		return err
	}
}

func recordRequest(method, route string, status int, elapsed time.Duration) {
	statusLabel := strconv.Itoa(status)
	observability.APIRequests().WithLabelValues(method, route, statusLabel).Inc()
	observability.APILatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
	if status >= fiber.StatusBadRequest {
		observability.APIErrors().WithLabelValues(method, route, statusLabel).Inc()
	}
}

func logRequest(logger zerolog.Logger, c *fiber.Ctx, route string, status int, elapsed time.Duration) {
	fields := logger.With().
		Str("correlation_id", RequestCorrelationID(c)).
		Str("method", c.Method()).
		Str("route", route).
		Int("status", status).
		Dur("latency", elapsed)
	if userID, ok := c.Locals("user_id").(uint); ok {
		fields = fields.Uint("user_id", userID).Str("role", roleFromLocals(c))
	}
	if clientID, ok := c.Locals("client_id").(uint); ok {
		fields = fields.Uint("client_id", clientID)
	}
	requestLogger := fields.Logger()

	switch {
	case status >= fiber.StatusInternalServerError:
		requestLogger.Error().Msg("request failed")
	case status >= fiber.StatusBadRequest:
		requestLogger.Warn().Msg("request rejected")
	default:
		requestLogger.Info().Msg("request completed")
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" {
		return route.Path
	}
	return c.Path()
}
