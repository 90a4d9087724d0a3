package controller

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"vivienda_backend/internals/features/intake/assessments/dto"
	"vivienda_backend/internals/features/intake/assessments/service"
	helper "vivienda_backend/internals/helpers"
	"vivienda_backend/internals/metrics"
	"vivienda_backend/internals/middlewares"
)

const locSubmission = "submission_form"

type SubmissionController struct {
	Service *service.SubmissionService
	Metrics *metrics.Metrics
	Log     *logrus.Logger
	Now     func() time.Time
}

func NewSubmissionController(svc *service.SubmissionService, m *metrics.Metrics, log *logrus.Logger) *SubmissionController {
	return &SubmissionController{Service: svc, Metrics: m, Log: log, Now: time.Now}
}

func reject(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"ok": false, "message": message})
}

// Guard decodes the submission once and drops spam before the rate limiter
// counts the request.
func (ctrl *SubmissionController) Guard(c *fiber.Ctx) error {
	form, err := dto.ParseSubmission(c)
	if err != nil {
		ctrl.Metrics.SubmissionResult(metrics.ResultRejected)
		return reject(c, fiber.StatusBadRequest, "Solicitud invalida.")
	}
	if form.LikelySpam(ctrl.Now()) {
		ctrl.Metrics.SubmissionResult(metrics.ResultSpam)
		middlewares.LoggerFrom(c.UserContext(), ctrl.Log).
			WithField("form_slug", form.FormSlug).Info("[Submission] blocked by spam guard")
		return reject(c, fiber.StatusBadRequest, "Envio bloqueado por proteccion anti-spam.")
	}
	c.Locals(locSubmission, form)
	return c.Next()
}

// POST /api/assessments
func (ctrl *SubmissionController) Submit(c *fiber.Ctx) error {
	form, ok := c.Locals(locSubmission).(*dto.SubmissionForm)
	if !ok {
		var err error
		if form, err = dto.ParseSubmission(c); err != nil {
			return reject(c, fiber.StatusBadRequest, "Solicitud invalida.")
		}
	}

	res, err := ctrl.Service.Submit(c.UserContext(), form.ToInput())
	if err != nil {
		if verr, ok := helper.AsValidationError(err); ok {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"ok": false, "errors": verr.Fields})
		}
		if errors.Is(err, service.ErrNoActiveQuestions) {
			return reject(c, fiber.StatusUnprocessableEntity, "No hay preguntas activas en este formulario.")
		}
		middlewares.LoggerFrom(c.UserContext(), ctrl.Log).
			WithError(err).WithField("form_slug", form.FormSlug).Error("[Submission] could not store submission")
		return reject(c, fiber.StatusInternalServerError, "No fue posible guardar el formulario en este momento.")
	}

	if !form.IsJSON && strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMETextHTML) {
		return c.Redirect("/apply/"+url.PathEscape(res.FormSlug)+"?submitted=1", fiber.StatusSeeOther)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ok":      true,
		"message": "Formulario recibido correctamente.",
		"data":    dto.ToSubmissionResponse(res),
	})
}
