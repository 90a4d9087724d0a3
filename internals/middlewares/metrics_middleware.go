package middlewares

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"vivienda_backend/internals/metrics"
)

// MetricsMiddleware counts requests by route template, not raw path, so ids
// in the URL do not blow up label cardinality.
func MetricsMiddleware(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		} else if c.Path() == "/" {
			route = "/"
		}
		m.ObserveRequest(c.Method(), route, strconv.Itoa(status), time.Since(start))
		return err
	}
}
