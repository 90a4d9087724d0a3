package route

import (
	"github.com/gofiber/fiber/v2"

	"vivienda_backend/internals/features/intake/assessments/controller"
	"vivienda_backend/internals/metrics"
	"vivienda_backend/internals/middlewares"
)

// AssessmentPublicRoutes mounts the applicant facing submission endpoint.
// The spam guard runs before the limiter so bots do not eat the budget of
// the client they share an address with.
func AssessmentPublicRoutes(public fiber.Router, ctrl *controller.SubmissionController, m *metrics.Metrics) {
	public.Post("/assessments",
		ctrl.Guard,
		middlewares.SubmissionRateLimiter(m),
		ctrl.Submit,
	)
}

func AdminAuthRoutes(public fiber.Router, ctrl *controller.AdminAuthController) {
	public.Post("/auth/admin/login", middlewares.LoginRateLimiter(), ctrl.Login)
}
