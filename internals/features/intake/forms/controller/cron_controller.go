package controller

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"vivienda_backend/internals/features/intake/store"
	helper "vivienda_backend/internals/helpers"
)

// CronController answers the external keep-alive pinger. It touches the
// database with a one-row lookup so the pool and the instance stay warm.
type CronController struct {
	Store       store.Store
	Secret      string
	DefaultSlug string
	Log         *logrus.Logger
}

func NewCronController(st store.Store, secret, defaultSlug string, log *logrus.Logger) *CronController {
	return &CronController{Store: st, Secret: strings.TrimSpace(secret), DefaultSlug: defaultSlug, Log: log}
}

// GET /api/cron/ping
func (ctrl *CronController) Ping(c *fiber.Ctx) error {
	if ctrl.Secret != "" {
		authz := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") || strings.TrimSpace(authz[7:]) != ctrl.Secret {
			return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized")
		}
	}

	_, err := ctrl.Store.FindFormBySlug(c.UserContext(), ctrl.DefaultSlug)
	if err != nil && !store.IsNotFound(err) {
		ctrl.Log.WithError(err).Warn("[Cron] keep-alive lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "db"})
	}
	return c.JSON(fiber.Map{"ok": true})
}
