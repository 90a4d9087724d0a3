package middlewares

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

// RecoveryMiddleware turns a panic into a 500 and logs it with the request id.
func RecoveryMiddleware(log *logrus.Logger) fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.WithFields(logrus.Fields{
				"request_id": RequestID(c),
				"method":     c.Method(),
				"path":       c.Path(),
			}).Error(fmt.Sprintf("[Recovery] panic: %v", e))
		},
	})
}
