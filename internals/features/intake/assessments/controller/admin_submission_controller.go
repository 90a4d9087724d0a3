package controller

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vivienda_backend/internals/features/intake/assessments/dto"
	"vivienda_backend/internals/features/intake/assessments/service"
	"vivienda_backend/internals/features/intake/store"
	helper "vivienda_backend/internals/helpers"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

type AdminSubmissionController struct {
	Service  *service.AdminService
	Validate *validator.Validate
	Log      *logrus.Logger
}

func NewAdminSubmissionController(svc *service.AdminService, log *logrus.Logger) *AdminSubmissionController {
	return &AdminSubmissionController{Service: svc, Validate: validator.New(), Log: log}
}

func (ctrl *AdminSubmissionController) fail(c *fiber.Ctx, err error, op string) error {
	switch {
	case store.IsNotFound(err):
		return helper.JsonError(c, fiber.StatusNotFound, "Solicitud no encontrada")
	case store.IsConflict(err, store.ConflictUnique), store.IsConflict(err, store.ConflictForeignKey):
		return helper.JsonError(c, fiber.StatusConflict, "La solicitud cambio mientras se editaba, intente de nuevo")
	}
	ctrl.Log.WithError(err).WithField("op", op).Error("[AdminSubmission] request failed")
	return helper.JsonError(c, fiber.StatusInternalServerError, "No fue posible completar la operacion")
}

func submissionID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Params("id")))
	return id, err == nil
}

// GET /api/admin/submissions?year=&status=&page=&per_page=
func (ctrl *AdminSubmissionController) List(c *fiber.Ctx) error {
	var q dto.SummaryQuery
	if err := c.QueryParser(&q); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Parametros invalidos")
	}
	if err := ctrl.Validate.Struct(q); err != nil {
		return helper.JsonValidationError(c, helper.ValidatorFieldErrors(err))
	}

	p := helper.ResolvePaging(c, defaultPerPage, maxPerPage)
	rows, total, err := ctrl.Service.Summaries(c.UserContext(), q.Filter(p))
	if err != nil {
		return ctrl.fail(c, err, "list submissions")
	}
	out := dto.ToSummaryResponses(rows)
	return helper.JsonList(c, "ok", out, helper.BuildPaginationFromPage(total, p.Page, p.PerPage, len(out)))
}

// GET /api/admin/submissions/:id
func (ctrl *AdminSubmissionController) Detail(c *fiber.Ctx) error {
	id, ok := submissionID(c)
	if !ok {
		return helper.JsonError(c, fiber.StatusBadRequest, "Identificador invalido")
	}
	d, err := ctrl.Service.Detail(c.UserContext(), id)
	if err != nil {
		return ctrl.fail(c, err, "submission detail")
	}
	return helper.JsonOK(c, "ok", dto.ToSubmissionDetailResponse(d))
}

// PUT /api/admin/submissions/:id
func (ctrl *AdminSubmissionController) Edit(c *fiber.Ctx) error {
	id, ok := submissionID(c)
	if !ok {
		return helper.JsonError(c, fiber.StatusBadRequest, "Identificador invalido")
	}
	var req dto.EditSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Solicitud invalida")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidatorFieldErrors(err))
	}

	stats, err := ctrl.Service.Edit(c.UserContext(), id, req.ToInput())
	if err != nil {
		return ctrl.fail(c, err, "edit submission")
	}
	return helper.JsonUpdated(c, "Solicitud actualizada", dto.ToEditSubmissionResponse(id, stats))
}

// DELETE /api/admin/submissions/:id
func (ctrl *AdminSubmissionController) Delete(c *fiber.Ctx) error {
	id, ok := submissionID(c)
	if !ok {
		return helper.JsonError(c, fiber.StatusBadRequest, "Identificador invalido")
	}
	applicantDeleted, err := ctrl.Service.Delete(c.UserContext(), id)
	if err != nil {
		return ctrl.fail(c, err, "delete submission")
	}
	return helper.JsonDeleted(c, "Solicitud eliminada", fiber.Map{"id": id, "applicant_deleted": applicantDeleted})
}
