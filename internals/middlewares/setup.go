package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"vivienda_backend/internals/configs"
	"vivienda_backend/internals/metrics"
	"vivienda_backend/internals/middlewares/logger"
)

// RequestTimeout covers a multipart submission with photo uploads.
const RequestTimeout = 30 * time.Second

// SetupMiddlewares installs the global chain in the order requests see it.
func SetupMiddlewares(app *fiber.App, cfg configs.AppConfig, log *logrus.Logger, m *metrics.Metrics) {
	app.Use(RequestIDMiddleware(log, RequestTimeout))
	app.Use(RecoveryMiddleware(log))
	app.Use(logger.LoggerMiddleware())
	app.Use(CorsMiddleware(cfg.CorsAllowOrigins))
	app.Use(MetricsMiddleware(m))
}
