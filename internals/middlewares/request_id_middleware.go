package middlewares

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

const LocRequestID = "request_id"

type requestIDKey struct{}

// RequestIDMiddleware keeps an incoming X-Request-ID or mints one, echoes it
// on the response and puts a request scoped logger on the user context. The
// user context also carries the request deadline.
func RequestIDMiddleware(log *logrus.Logger, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		if rid == "" || len(rid) > 128 {
			rid = utils.UUIDv4()
		}
		c.Locals(LocRequestID, rid)
		c.Set(fiber.HeaderXRequestID, rid)

		entry := log.WithField("request_id", rid)
		ctx := context.WithValue(c.UserContext(), requestIDKey{}, entry)
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()
		entry.WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.OriginalURL(),
			"status": c.Response().StatusCode(),
			"dur":    time.Since(start).String(),
		}).Debug("[REQ]")
		return err
	}
}

func RequestID(c *fiber.Ctx) string {
	if v, ok := c.Locals(LocRequestID).(string); ok {
		return v
	}
	return ""
}

// LoggerFrom returns the request scoped entry, or one built on fallback.
func LoggerFrom(ctx context.Context, fallback *logrus.Logger) *logrus.Entry {
	if e, ok := ctx.Value(requestIDKey{}).(*logrus.Entry); ok {
		return e
	}
	return logrus.NewEntry(fallback)
}
