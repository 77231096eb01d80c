package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/docflow-api/internal/utils"
)

const keyRateLimited = "errors.rate_limited"

// RateLimit throttles each authenticated caller within its tenant. Requests
// without an identity are keyed by IP.
func RateLimit(scope string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 120
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return rateLimitKey(scope, c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.FailWithKey(c, fiber.StatusTooManyRequests, "too many requests", keyRateLimited)
		},
	})
}

func rateLimitKey(scope string, c *fiber.Ctx) string {
	userID, ok := c.Locals("user_id").(uint)
	if !ok || userID == 0 {
		return fmt.Sprintf("%s:ip:%s", scope, c.IP())
	}
	clientID, _ := c.Locals("client_id").(uint)
	return fmt.Sprintf("%s:%d:%d", scope, clientID, userID)
}
