package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"vivienda_backend/internals/middlewares/auth"
	routeDetails "vivienda_backend/internals/route/details"
)

var startTime = time.Now()

func SetupRoutes(app *fiber.App, deps routeDetails.IntakeDeps) {
	startTime = time.Now()

	deps.Log.Info("[INFO] Setting up base routes...")
	BaseRoutes(app, deps)

	// ===================== GROUPS =====================

	public := app.Group("/api")

	admin := app.Group("/api/admin",
		auth.AdminAuth(deps.AdminJWTSecret, deps.AdminOpenWithoutSecret, deps.Log),
		auth.OnlyRoles("Solo administradores", auth.AdminRole),
	)

	// ===================== MOUNT ROUTES =====================

	deps.Log.Info("[INFO] Mounting intake routes...")
	routeDetails.IntakePublicRoutes(public, deps)
	routeDetails.IntakeAdminRoutes(admin, deps)
}
