package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// Auth role constants used by the WithAuth helper.
const (
	AuthRoleAny     = "any"
	AuthRoleStudent = "student"
	AuthRoleTeacher = "teacher"
	AuthRoleAdmin   = "admin"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	// Roles lists the accepted roles. Empty or AuthRoleAny accepts every authenticated user.
	Roles []string
	// AllowAnonymous lets requests without a user through when Roles accepts any role.
	AllowAnonymous bool
}

// WithAuth wraps a handler with authentication and role guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	allowed := make(map[string]struct{}, len(opts.Roles))
	for _, role := range opts.Roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" && normalized != AuthRoleAny {
			allowed[normalized] = struct{}{}
		}
	}
	anyRole := len(allowed) == 0

	return func(c *fiber.Ctx) error {
		userID := c.Locals(LocalUserID)
		if userID == nil {
			if anyRole && opts.AllowAnonymous {
				return handler(c)
			}
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		if anyRole {
			return handler(c)
		}

		role := normalizeRoleValue(c.Locals(LocalUserRole))
		if _, ok := allowed[role]; !ok {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"role": role})
		}

		return handler(c)
	}
}
