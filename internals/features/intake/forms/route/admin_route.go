package route

import (
	"github.com/gofiber/fiber/v2"

	"vivienda_backend/internals/features/intake/forms/controller"
)

func FormAdminRoutes(admin fiber.Router, ctrl *controller.SchemaController) {
	forms := admin.Group("/forms/:slug")
	forms.Post("/questions", ctrl.CreateQuestion)
	forms.Post("/sections/:sectionKey/rename", ctrl.RenameSection)
	forms.Post("/sections/:sectionKey/reorder", ctrl.ReorderSection)

	questions := admin.Group("/questions")
	questions.Put("/:id", ctrl.UpdateQuestion)
	questions.Delete("/:id", ctrl.DeleteQuestion)
}
