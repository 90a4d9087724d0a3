package routes

import (
	"context"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	routeDetails "vivienda_backend/internals/route/details"
)

func BaseRoutes(app *fiber.App, deps routeDetails.IntakeDeps) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Vivienda intake API 🚀")
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		dbStatus := "Connected"
		serverStatus := "OK"
		httpStatus := fiber.StatusOK
		if err := deps.Store.Ping(ctx); err != nil {
			dbStatus = "Database connection error"
			serverStatus = "DOWN"
			httpStatus = fiber.StatusServiceUnavailable
		}

		return c.Status(httpStatus).JSON(fiber.Map{
			"status":         serverStatus,
			"database":       dbStatus,
			"server_time":    time.Now().Format(time.RFC3339),
			"uptime_seconds": int(time.Since(startTime).Seconds()),
			"environment":    os.Getenv("RAILWAY_ENVIRONMENT"),
		})
	})

	if deps.Metrics != nil {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(deps.Metrics.Handler())
		app.Get("/metrics", func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	}
}
