package controller

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vivienda_backend/internals/features/intake/forms/dto"
	fservice "vivienda_backend/internals/features/intake/forms/service"
	"vivienda_backend/internals/features/intake/store"
	helper "vivienda_backend/internals/helpers"
)

type SchemaController struct {
	Engine   *fservice.SchemaEngine
	Validate *validator.Validate
	Log      *logrus.Logger
}

func NewSchemaController(engine *fservice.SchemaEngine, log *logrus.Logger) *SchemaController {
	return &SchemaController{Engine: engine, Validate: validator.New(), Log: log}
}

// respond maps engine and store errors onto the JSON envelope.
func (ctrl *SchemaController) respond(c *fiber.Ctx, err error, op string) error {
	if verr, ok := helper.AsValidationError(err); ok {
		fields := make(map[string][]string, len(verr.Fields))
		for k, msg := range verr.Fields {
			fields[k] = []string{msg}
		}
		return helper.JsonValidationError(c, fields)
	}
	switch {
	case store.IsNotFound(err):
		return helper.JsonError(c, fiber.StatusNotFound, "Pregunta no encontrada")
	case store.IsConflict(err, store.ConflictUnique), store.IsConflict(err, store.ConflictForeignKey):
		return helper.JsonError(c, fiber.StatusConflict, "El formulario cambio mientras se editaba, intente de nuevo")
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return helper.JsonError(c, fe.Code, fe.Message)
	}
	ctrl.Log.WithError(err).WithField("op", op).Error("[SchemaController] request failed")
	return helper.JsonError(c, fiber.StatusInternalServerError, "No fue posible actualizar el formulario")
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Params("id")))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Identificador invalido")
	}
	return id, nil
}

// GET /api/forms/:slug/schema
func (ctrl *SchemaController) GetSchema(c *fiber.Ctx) error {
	schema, err := ctrl.Engine.LoadSchema(c.UserContext(), c.Params("slug"))
	if err != nil {
		return ctrl.respond(c, err, "load schema")
	}
	return helper.JsonOK(c, "ok", dto.ToSchemaResponse(schema))
}

// POST /api/admin/forms/:slug/questions
func (ctrl *SchemaController) CreateQuestion(c *fiber.Ctx) error {
	var req dto.QuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Solicitud invalida")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidatorFieldErrors(err))
	}

	ctx := c.UserContext()
	form, err := ctrl.Engine.GetOrCreateFormBySlug(ctx, c.Params("slug"))
	if err != nil {
		return ctrl.respond(c, err, "create question")
	}
	q, err := ctrl.Engine.CreateQuestion(ctx, form.FormID, req.ToInput())
	if err != nil {
		return ctrl.respond(c, err, "create question")
	}
	return helper.JsonCreated(c, "Pregunta creada", dto.ToQuestionResponse(*q))
}

// PUT /api/admin/questions/:id
func (ctrl *SchemaController) UpdateQuestion(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return ctrl.respond(c, err, "update question")
	}
	var req dto.QuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Solicitud invalida")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidatorFieldErrors(err))
	}

	q, err := ctrl.Engine.UpdateQuestion(c.UserContext(), id, req.ToInput())
	if err != nil {
		return ctrl.respond(c, err, "update question")
	}
	return helper.JsonUpdated(c, "Pregunta actualizada", dto.ToQuestionResponse(*q))
}

// DELETE /api/admin/questions/:id
func (ctrl *SchemaController) DeleteQuestion(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return ctrl.respond(c, err, "delete question")
	}
	soft, err := ctrl.Engine.DeleteQuestion(c.UserContext(), id)
	if err != nil {
		return ctrl.respond(c, err, "delete question")
	}
	msg := "Pregunta eliminada"
	if soft {
		msg = "La pregunta tiene respuestas, se desactivo"
	}
	return helper.JsonDeleted(c, msg, fiber.Map{"id": id, "deactivated": soft})
}

// POST /api/admin/forms/:slug/sections/:sectionKey/rename
func (ctrl *SchemaController) RenameSection(c *fiber.Ctx) error {
	var req dto.RenameSectionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Solicitud invalida")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidatorFieldErrors(err))
	}

	ctx := c.UserContext()
	form, err := ctrl.Engine.GetOrCreateFormBySlug(ctx, c.Params("slug"))
	if err != nil {
		return ctrl.respond(c, err, "rename section")
	}
	key, touched, err := ctrl.Engine.RenameSection(ctx, form.FormID, c.Params("sectionKey"), req.SectionTitle)
	if err != nil {
		return ctrl.respond(c, err, "rename section")
	}
	return helper.JsonUpdated(c, "Seccion actualizada", fiber.Map{
		"section_key":   key,
		"section_title": strings.TrimSpace(req.SectionTitle),
		"updated":       touched,
	})
}

// POST /api/admin/forms/:slug/sections/:sectionKey/reorder
func (ctrl *SchemaController) ReorderSection(c *fiber.Ctx) error {
	var req dto.ReorderSectionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Solicitud invalida")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidatorFieldErrors(err))
	}

	ctx := c.UserContext()
	form, err := ctrl.Engine.GetOrCreateFormBySlug(ctx, c.Params("slug"))
	if err != nil {
		return ctrl.respond(c, err, "reorder section")
	}
	applied, err := ctrl.Engine.ReorderSectionQuestions(ctx, form.FormID, c.Params("sectionKey"), req.ParsedIDs())
	if err != nil {
		return ctrl.respond(c, err, "reorder section")
	}
	return helper.JsonUpdated(c, "ok", fiber.Map{"applied": applied})
}
