package middlewares

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"vivienda_backend/internals/metrics"
)

const (
	SubmissionLimitMax    = 6
	SubmissionLimitWindow = time.Minute
)

// ClientKey is the first hop of X-Forwarded-For, the address the platform
// proxy saw. Without the header it falls back to the socket address.
func ClientKey(c *fiber.Ctx) string {
	if xff := strings.TrimSpace(c.Get(fiber.HeaderXForwardedFor)); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if ip := c.IP(); ip != "" {
		return ip
	}
	return "unknown"
}

// SubmissionRateLimiter allows six public submissions per client per minute.
func SubmissionRateLimiter(m *metrics.Metrics) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          SubmissionLimitMax,
		Expiration:   SubmissionLimitWindow,
		KeyGenerator: ClientKey,
		LimitReached: func(c *fiber.Ctx) error {
			m.SubmissionResult(metrics.ResultRateLimited)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"ok":      false,
				"message": "Demasiados intentos. Intente nuevamente pronto.",
			})
		},
	})
}

// LoginRateLimiter is stricter: five admin login attempts per minute.
func LoginRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          5,
		Expiration:   1 * time.Minute,
		KeyGenerator: ClientKey,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"status":  "error",
				"message": "Demasiados intentos de inicio de sesion. Intente en un momento.",
			})
		},
	})
}
