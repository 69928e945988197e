package routing

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeng7cd/go-api-boilerplate/internal/middleware/ratelimit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc {
	return next
}

// fullRegistrar wires every middleware slot with a pass-through so compile
// never fails on missing wiring.
func fullRegistrar(prefix string) *Registrar {
	return &Registrar{
		APIPrefix: prefix,
		Logger:    discardLogger(),
		Auth:      passThrough,
		Validate:  func(any) echo.MiddlewareFunc { return passThrough },
		RateLimit: func(string, ratelimit.Config) echo.MiddlewareFunc { return passThrough },
	}
}

func TestChainRunsInFixedOrder(t *testing.T) {
	var order []string
	mark := func(name string) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				order = append(order, name)
				return next(c)
			}
		}
	}

	r := &Registrar{
		APIPrefix: "/api/v1",
		Logger:    discardLogger(),
		Auth:      mark("auth"),
		Validate:  func(any) echo.MiddlewareFunc { return mark("validate") },
		RateLimit: func(string, ratelimit.Config) echo.MiddlewareFunc { return mark("ratelimit") },
	}

	ctrl := NewController("/things", Use(mark("controller-mw-1"), mark("controller-mw-2")))
	ctrl.POST("/create", func(c echo.Context) error {
		order = append(order, "handler")
		return c.NoContent(http.StatusOK)
	},
		Auth(),
		Use(mark("route-mw")),
		Validate(struct{}{}),
		RateLimit(ratelimit.Config{}),
	)

	reg := NewRegistry()
	require.NoError(t, reg.Register(ctrl))

	e := echo.New()
	r.Mount(e, reg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/things/create", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{
		"ratelimit",
		"validate",
		"auth",
		"controller-mw-1",
		"controller-mw-2",
		"route-mw",
		"handler",
	}, order)
}

func TestMountPrefixesRoutes(t *testing.T) {
	r := fullRegistrar("/api/v1")

	api := NewController("/profile")
	api.GET("/me", okHandler)

	sys := NewController("/health", SystemRoute())
	sys.GET("/live", okHandler)

	reg := NewRegistry()
	require.NoError(t, reg.Register(api, sys))

	e := echo.New()
	r.Mount(e, reg)

	get := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("/api/v1/profile/me"))
	assert.Equal(t, http.StatusNotFound, get("/profile/me"))

	// System controllers bypass the API prefix entirely.
	assert.Equal(t, http.StatusOK, get("/health/live"))
	assert.Equal(t, http.StatusNotFound, get("/api/v1/health/live"))
}

func TestCompileResolvesAuthFlags(t *testing.T) {
	r := fullRegistrar("/api/v1")

	guarded := NewController("/admin", Auth())
	guarded.GET("/secret", okHandler)
	guarded.GET("/ping", okHandler, Public())

	open := NewController("/open")
	open.GET("/status", okHandler)
	open.POST("/locked", okHandler, Auth())

	reg := NewRegistry()
	require.NoError(t, reg.Register(guarded, open))

	compiled := r.Compile(reg)
	require.Len(t, compiled, 4)

	byPath := make(map[string]CompiledRoute, len(compiled))
	for _, cr := range compiled {
		byPath[cr.Method+" "+cr.Path] = cr
	}

	assert.True(t, byPath["GET /api/v1/admin/secret"].Auth)
	assert.False(t, byPath["GET /api/v1/admin/ping"].Auth)
	assert.False(t, byPath["GET /api/v1/open/status"].Auth)
	assert.True(t, byPath["POST /api/v1/open/locked"].Auth)
}

func TestCompileSkipsBrokenControllers(t *testing.T) {
	r := fullRegistrar("")

	good := NewController("/good")
	good.GET("/ok", okHandler)

	nilHandler := NewController("/nil-handler")
	nilHandler.GET("/x", nil)

	badMethod := NewController("/bad-method")
	badMethod.Add("FETCH", "/x", okHandler)

	duplicate := NewController("/duplicate")
	duplicate.GET("/x", okHandler)
	duplicate.Add("get", "/x", okHandler)

	badPath := NewController("/bad-path")
	badPath.GET("no-slash", okHandler)

	badProto := NewController("/bad-proto")
	badProto.POST("/x", okHandler, Validate(42))

	reg := NewRegistry()
	require.NoError(t, reg.Register(good, nilHandler, badMethod, duplicate, badPath, badProto))

	compiled := r.Compile(reg)

	// Only the well-formed controller survives; the rest are logged and
	// skipped without aborting the pass.
	require.Len(t, compiled, 1)
	assert.Equal(t, "/good/ok", compiled[0].Path)
}

func TestCompileRejectsAuthWithoutGate(t *testing.T) {
	r := &Registrar{Logger: discardLogger()}

	ctrl := NewController("/locked", Auth())
	ctrl.GET("/x", okHandler)

	reg := NewRegistry()
	require.NoError(t, reg.Register(ctrl))

	assert.Empty(t, r.Compile(reg))
}

func TestControllerDefaultsApplyToRoutes(t *testing.T) {
	type inheritedForm struct{}
	type ownForm struct{}

	var rateLimited []string
	var validated []any

	r := &Registrar{
		APIPrefix: "/api/v1",
		Logger:    discardLogger(),
		Validate: func(proto any) echo.MiddlewareFunc {
			validated = append(validated, proto)
			return passThrough
		},
		RateLimit: func(route string, cfg ratelimit.Config) echo.MiddlewareFunc {
			rateLimited = append(rateLimited, route)
			return passThrough
		},
	}

	ctrl := NewController("/forms",
		RateLimit(ratelimit.Config{Max: 5}),
		Validate(inheritedForm{}),
	)
	ctrl.POST("/inherit", okHandler)
	ctrl.POST("/own", okHandler, Validate(ownForm{}))

	reg := NewRegistry()
	require.NoError(t, reg.Register(ctrl))

	compiled := r.Compile(reg)
	require.Len(t, compiled, 2)
	assert.True(t, compiled[0].RateLimited)
	assert.True(t, compiled[1].RateLimited)
	assert.Equal(t, []string{"POST /api/v1/forms/inherit", "POST /api/v1/forms/own"}, rateLimited)

	// The route-scoped prototype wins over the controller default.
	assert.Equal(t, []any{inheritedForm{}, ownForm{}}, validated)
}

func TestTableProjection(t *testing.T) {
	r := fullRegistrar("/api/v1")

	ctrl := NewController("/auth", Describe("authentication lifecycle"))
	ctrl.POST("/login", okHandler,
		Describe("issue a token pair"),
		Validate(struct{}{}),
		RateLimit(ratelimit.Config{Max: 10}),
	)
	ctrl.POST("/logout", okHandler, Auth(), Describe("revoke the presented token"))

	reg := NewRegistry()
	require.NoError(t, reg.Register(ctrl))

	table := Table(r.Compile(reg))
	require.Len(t, table, 2)

	login := table[0]
	assert.Equal(t, "POST", login.Method)
	assert.Equal(t, "/api/v1/auth/login", login.Path)
	assert.Equal(t, "/auth", login.Controller)
	assert.Equal(t, "issue a token pair", login.Description)
	assert.False(t, login.Auth)
	assert.True(t, login.Validated)
	assert.True(t, login.RateLimited)

	logout := table[1]
	assert.True(t, logout.Auth)
	assert.False(t, logout.RateLimited)
}

func TestMountedHandlerErrorsReachErrorHandler(t *testing.T) {
	r := fullRegistrar("")

	var handled error
	ctrl := NewController("/boom")
	ctrl.GET("/x", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	reg := NewRegistry()
	require.NoError(t, reg.Register(ctrl))

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		handled = err
		_ = c.NoContent(http.StatusTeapot)
	}
	r.Mount(e, reg)

	req := httptest.NewRequest(http.MethodGet, "/boom/x", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Error(t, handled)
}
