package route

import (
	"github.com/gofiber/fiber/v2"

	"vivienda_backend/internals/features/intake/forms/controller"
)

func FormPublicRoutes(public fiber.Router, schema *controller.SchemaController, cron *controller.CronController) {
	forms := public.Group("/forms")
	forms.Get("/:slug/schema", schema.GetSchema)

	public.Get("/cron/ping", cron.Ping)
}
