package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-assignment-api/internal/utils"
)

// RequireRole admits callers whose token role is one of roles. Requests that
// reached it without a role are treated as unauthenticated.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(localUserRole).(string)
		role = normalizeRole(role)
		if role == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "missing role claim")
		}
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
