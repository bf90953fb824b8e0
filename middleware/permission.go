package middleware

import (
	"slices"

	"github.com/gofiber/fiber/v2"
)

// RequireRoles returns a middleware that lets the request through only when
// the caller holds one of the roles. It must run after JWTMiddleware.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(string)
		if !ok || role == "" {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized: User ID not found", nil)
		}
		if !slices.Contains(roles, role) {
			return JsonResponse(c, fiber.StatusForbidden, false, "You do not have permission to access this resource!", nil)
		}
		return c.Next()
	}
}
