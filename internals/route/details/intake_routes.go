package details

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	AssessmentController "vivienda_backend/internals/features/intake/assessments/controller"
	AssessmentRoutes "vivienda_backend/internals/features/intake/assessments/route"
	AssessmentService "vivienda_backend/internals/features/intake/assessments/service"
	FormController "vivienda_backend/internals/features/intake/forms/controller"
	FormRoutes "vivienda_backend/internals/features/intake/forms/route"
	FormService "vivienda_backend/internals/features/intake/forms/service"
	"vivienda_backend/internals/features/intake/store"
	"vivienda_backend/internals/metrics"
)

// IntakeDeps is everything the intake routes need, built once in main.
type IntakeDeps struct {
	Store       store.Store
	Schema      *FormService.SchemaEngine
	Submissions *AssessmentService.SubmissionService
	Admin       *AssessmentService.AdminService
	Metrics     *metrics.Metrics
	Log         *logrus.Logger

	DefaultSlug            string
	CronSecret             string
	AdminJWTSecret         string
	AdminPasswordHash      string
	AdminOpenWithoutSecret bool
}

func IntakePublicRoutes(public fiber.Router, d IntakeDeps) {
	schemaCtrl := FormController.NewSchemaController(d.Schema, d.Log)
	cronCtrl := FormController.NewCronController(d.Store, d.CronSecret, d.DefaultSlug, d.Log)
	FormRoutes.FormPublicRoutes(public, schemaCtrl, cronCtrl)

	submitCtrl := AssessmentController.NewSubmissionController(d.Submissions, d.Metrics, d.Log)
	AssessmentRoutes.AssessmentPublicRoutes(public, submitCtrl, d.Metrics)

	authCtrl := AssessmentController.NewAdminAuthController(d.AdminPasswordHash, d.AdminJWTSecret, d.Log)
	AssessmentRoutes.AdminAuthRoutes(public, authCtrl)
}

func IntakeAdminRoutes(admin fiber.Router, d IntakeDeps) {
	FormRoutes.FormAdminRoutes(admin, FormController.NewSchemaController(d.Schema, d.Log))
	AssessmentRoutes.AssessmentAdminRoutes(admin, AssessmentController.NewAdminSubmissionController(d.Admin, d.Log))
}
