package route

import (
	"github.com/gofiber/fiber/v2"

	"vivienda_backend/internals/features/intake/assessments/controller"
)

func AssessmentAdminRoutes(admin fiber.Router, ctrl *controller.AdminSubmissionController) {
	g := admin.Group("/submissions")
	g.Get("/", ctrl.List)
	g.Get("/:id", ctrl.Detail)
	g.Put("/:id", ctrl.Edit)
	g.Delete("/:id", ctrl.Delete)
}
