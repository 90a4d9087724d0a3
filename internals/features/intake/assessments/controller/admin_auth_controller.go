package controller

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"vivienda_backend/internals/features/intake/assessments/dto"
	helper "vivienda_backend/internals/helpers"
	"vivienda_backend/internals/middlewares/auth"
)

// AdminAuthController trades the operator password for a short lived token.
type AdminAuthController struct {
	PasswordHash string
	Secret       string
	Validate     *validator.Validate
	Log          *logrus.Logger
	Now          func() time.Time
}

func NewAdminAuthController(passwordHash, secret string, log *logrus.Logger) *AdminAuthController {
	return &AdminAuthController{
		PasswordHash: strings.TrimSpace(passwordHash),
		Secret:       strings.TrimSpace(secret),
		Validate:     validator.New(),
		Log:          log,
		Now:          time.Now,
	}
}

// POST /api/auth/admin/login
func (ctrl *AdminAuthController) Login(c *fiber.Ctx) error {
	if ctrl.PasswordHash == "" || ctrl.Secret == "" {
		return helper.JsonError(c, fiber.StatusServiceUnavailable, "Acceso de administrador no configurado")
	}

	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Solicitud invalida")
	}
	if err := ctrl.Validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidatorFieldErrors(err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ctrl.PasswordHash), []byte(req.Password)); err != nil {
		ctrl.Log.WithField("ip", c.IP()).Warn("[AdminAuth] wrong password")
		return helper.JsonError(c, fiber.StatusUnauthorized, "Credenciales invalidas")
	}

	token, exp, err := auth.IssueAdminToken(ctrl.Secret, ctrl.Now())
	if err != nil {
		ctrl.Log.WithError(err).Error("[AdminAuth] could not sign token")
		return helper.JsonError(c, fiber.StatusInternalServerError, "No fue posible iniciar sesion")
	}
	return helper.JsonOK(c, "Sesion iniciada", dto.AdminLoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
	})
}
