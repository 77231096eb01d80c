package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/noah-isme/docflow-api/internal/config"
	"github.com/noah-isme/docflow-api/internal/utils"
)

const healthProbeTimeout = 2 * time.Second

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthProbe checks one backing service. A failing required probe makes the
// service unavailable; an optional one only degrades it.
type HealthProbe struct {
	Name     string
	Required bool
	Check    func(ctx context.Context) error
}

// DatabaseProbe pings the approval and audit database.
func DatabaseProbe(db *gorm.DB) HealthProbe {
	return HealthProbe{Name: "database", Required: true, Check: func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}
}

// RedisProbe pings the audit cache.
func RedisProbe(client *redis.Client) HealthProbe {
	return HealthProbe{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// NATSProbe reports whether the activity fan-out connection is up.
func NATSProbe(conn *nats.Conn) HealthProbe {
	return HealthProbe{Name: "nats", Check: func(context.Context) error {
		if !conn.IsConnected() {
			return errors.New("nats connection " + conn.Status().String())
		}
		return nil
	}}
}

// HealthCheck reports service identity and the state of each probe.
func HealthCheck(cfg config.Config, probes ...HealthProbe) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthProbeTimeout)
		defer cancel()

		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if len(probes) > 0 {
			payload.Dependencies = make(map[string]string, len(probes))
		}

		for _, probe := range probes {
			if err := probe.Check(ctx); err != nil {
				payload.Dependencies[probe.Name] = "down"
				switch {
				case probe.Required:
					payload.Status = "unavailable"
				case payload.Status == "ok":
					payload.Status = "degraded"
				}
				continue
			}
			payload.Dependencies[probe.Name] = "up"
		}

		if payload.Status == "unavailable" {
			return utils.Fail(c, fiber.StatusServiceUnavailable, "service unavailable", payload)
		}
		return utils.SendSuccess(c, "service "+payload.Status, payload)
	}
}
