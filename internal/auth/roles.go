package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RequirePrivileged restricts a route to the privileged identity.
func RequirePrivileged() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if !principal.Privileged {
			return fiber.NewError(http.StatusForbidden, "privileged identity required")
		}
		return c.Next()
	}
}
