package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

const (
	AdminSubject  = "admin"
	AdminRole     = "admin"
	AdminTokenTTL = 12 * time.Hour

	LocAdminClaims = "admin_claims"
	LocRole        = "role"
)

var ErrMissingSecret = errors.New("admin jwt secret is not configured")

// IssueAdminToken signs an HS256 token for the operator account.
func IssueAdminToken(secret string, now time.Time) (string, time.Time, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", time.Time{}, ErrMissingSecret
	}
	exp := now.Add(AdminTokenTTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  AdminSubject,
		"role": AdminRole,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// AdminAuth guards the admin group. Without a secret the group answers 503,
// unless openWithoutSecret is set (development only), in which case every
// request passes as admin.
func AdminAuth(secret string, openWithoutSecret bool, log *logrus.Logger) fiber.Handler {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		if openWithoutSecret {
			log.Warn("[AdminAuth] no secret configured, admin routes are open (development)")
			return func(c *fiber.Ctx) error {
				c.Locals(LocRole, AdminRole)
				return c.Next()
			}
		}
		log.Error("[AdminAuth] no secret configured, admin routes are closed")
		return func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Acceso de administrador no configurado")
		}
	}

	return func(c *fiber.Ctx) error {
		raw := ""
		if authz := strings.TrimSpace(c.Get(fiber.HeaderAuthorization)); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			raw = strings.TrimSpace(authz[7:])
		} else {
			raw = strings.TrimSpace(c.Cookies("admin_token"))
		}
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}

		claims := jwt.MapClaims{}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !tok.Valid {
			log.WithError(err).WithField("path", c.Path()).Debug("[AdminAuth] token rejected")
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}
		if strClaim(claims, "sub") != AdminSubject {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
		}

		c.Locals(LocAdminClaims, claims)
		c.Locals(LocRole, strClaim(claims, "role"))
		return c.Next()
	}
}

// OnlyRoles rejects requests whose role local is not in roles.
func OnlyRoles(message string, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(LocRole).(string)
		if !ok || role == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Role not found")
		}
		for _, allowed := range roles {
			if role == allowed {
				return c.Next()
			}
		}
		if message == "" {
			message = "Forbidden"
		}
		return fiber.NewError(fiber.StatusForbidden, message)
	}
}

func strClaim(m jwt.MapClaims, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
