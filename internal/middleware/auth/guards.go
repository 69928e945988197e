package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/zeng7cd/go-api-boilerplate/internal/httperr"
)

// RequireRoles passes when the principal holds at least one of roles.
// Run it after Require; a missing principal reads as an absent token.
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return httperr.Unauthorized(httperr.CodeTokenRequired, "authorization token required")
			}
			for _, role := range roles {
				if id.HasRole(role) {
					return next(c)
				}
			}
			return httperr.Forbidden("insufficient role")
		}
	}
}

// RequirePermissions passes only when the principal holds every one of perms.
func RequirePermissions(perms ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return httperr.Unauthorized(httperr.CodeTokenRequired, "authorization token required")
			}
			for _, perm := range perms {
				if !id.HasPermission(perm) {
					return httperr.Forbidden("insufficient permissions")
				}
			}
			return next(c)
		}
	}
}
