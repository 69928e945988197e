// Package httpserver declares the route surface. Controllers are described
// here and registered into the routing registry; the registrar does the
// mounting. Keeping declarations in one place gives the documentation
// endpoint a stable, reviewable route table.
package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zeng7cd/go-api-boilerplate/internal/handlers"
	authmw "github.com/zeng7cd/go-api-boilerplate/internal/middleware/auth"
	"github.com/zeng7cd/go-api-boilerplate/internal/middleware/ratelimit"
	"github.com/zeng7cd/go-api-boilerplate/internal/observability"
	"github.com/zeng7cd/go-api-boilerplate/internal/routing"
)

// Deps carries the constructed handlers the declarations reference.
type Deps struct {
	Auth    *handlers.Auth
	Profile *handlers.Profile
	System  *handlers.System
}

// Controllers declares the full route surface. Nothing is mounted until the
// registrar compiles the registry.
func Controllers(d *Deps) []*routing.Controller {
	auth := routing.NewController("/auth",
		routing.Describe("token lifecycle"),
	)
	auth.POST("/login", d.Auth.Login,
		routing.Describe("authenticate and issue a token pair"),
		routing.Validate(handlers.LoginRequest{}),
		routing.RateLimit(ratelimit.Config{
			Window:  15 * time.Minute,
			Max:     20,
			Message: "too many login attempts, please try again later",
		}),
	)
	auth.POST("/refresh", d.Auth.Refresh,
		routing.Describe("rotate the token pair"),
		routing.Validate(handlers.RefreshRequest{}),
		routing.RateLimit(ratelimit.Config{Window: 15 * time.Minute, Max: 60}),
	)
	auth.POST("/logout", d.Auth.Logout,
		routing.Describe("revoke the presented tokens"),
		routing.Auth(),
		routing.Validate(handlers.LogoutRequest{}),
	)
	auth.POST("/revoke", d.Auth.Revoke,
		routing.Describe("revoke every token of a subject"),
		routing.Auth(),
		routing.Use(authmw.RequirePermissions("users:revoke")),
		routing.Validate(handlers.RevokeRequest{}),
	)

	profile := routing.NewController("/profile",
		routing.Describe("principal profiles"),
		routing.Auth(),
	)
	profile.GET("/me", d.Profile.Me,
		routing.Describe("current principal"),
	)
	profile.GET("/:id", d.Profile.Get,
		routing.Describe("look up a user"),
		routing.Use(authmw.RequirePermissions("users:read")),
	)
	profile.DELETE("/:id", d.Profile.Delete,
		routing.Describe("delete a user"),
		routing.Use(authmw.RequireRoles("admin")),
	)

	system := routing.NewController("",
		routing.Describe("operational endpoints"),
		routing.SystemRoute(),
	)
	system.GET("/health/live", d.System.Live,
		routing.Describe("liveness probe"),
	)
	system.GET("/health/ready", d.System.Readiness,
		routing.Describe("readiness probe"),
	)
	system.GET("/docs/routes", d.System.RouteDocs,
		routing.Describe("compiled route table"),
	)
	system.GET("/metrics", echo.WrapHandler(observability.Handler()),
		routing.Describe("prometheus metrics"),
	)

	return []*routing.Controller{auth, profile, system}
}
