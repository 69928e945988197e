package routing

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zeng7cd/go-api-boilerplate/internal/middleware/ratelimit"
)

var allowedMethods = map[string]struct{}{
	echo.GET:     {},
	echo.POST:    {},
	echo.PUT:     {},
	echo.PATCH:   {},
	echo.DELETE:  {},
	echo.OPTIONS: {},
	echo.HEAD:    {},
}

// Registrar compiles a Registry into mounted echo routes. Middleware comes
// in as factories so the declaration layer stays free of token, cache and
// validator wiring.
type Registrar struct {
	APIPrefix string
	Logger    *slog.Logger

	// Auth is the authorization gate placed on routes that require it.
	Auth echo.MiddlewareFunc
	// Validate builds a validation middleware from a payload prototype.
	Validate func(prototype any) echo.MiddlewareFunc
	// RateLimit builds a route-private limiter; route labels the metric.
	RateLimit func(route string, cfg ratelimit.Config) echo.MiddlewareFunc
}

// CompiledRoute is one route with its assembled chain and the metadata the
// documentation surface exposes.
type CompiledRoute struct {
	Method      string
	Path        string // full mounted path
	Controller  string // controller prefix
	Description string
	Auth        bool
	Validated   bool
	RateLimited bool
	System      bool

	handler    echo.HandlerFunc
	middleware []echo.MiddlewareFunc
}

func (r *Registrar) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Compile walks the registry once and builds one chain per route in the
// fixed order: rate limit, validation, authorization, controller middleware,
// route middleware, handler. A controller whose metadata cannot be resolved
// is logged and skipped, so one bad module does not take down the whole
// route table.
func (r *Registrar) Compile(reg *Registry) []CompiledRoute {
	var compiled []CompiledRoute
	for _, c := range reg.Controllers() {
		routes, err := r.compileController(c)
		if err != nil {
			r.log().Error("skipping controller", "prefix", c.prefix, "error", err)
			continue
		}
		compiled = append(compiled, routes...)
	}
	return compiled
}

func (r *Registrar) compileController(c *Controller) ([]CompiledRoute, error) {
	if err := validPathPart(c.prefix); err != nil {
		return nil, fmt.Errorf("controller prefix %q: %w", c.prefix, err)
	}

	seen := make(map[string]struct{}, len(c.routes))
	out := make([]CompiledRoute, 0, len(c.routes))

	for _, rt := range c.routes {
		method := strings.ToUpper(rt.method)
		if _, ok := allowedMethods[method]; !ok {
			return nil, fmt.Errorf("route %q %q: unsupported method", rt.method, rt.path)
		}
		if rt.handler == nil {
			return nil, fmt.Errorf("route %s %q: nil handler", method, rt.path)
		}
		if err := validPathPart(rt.path); err != nil {
			return nil, fmt.Errorf("route %s %q: %w", method, rt.path, err)
		}

		key := method + " " + rt.path
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("route %s %q: declared twice", method, rt.path)
		}
		seen[key] = struct{}{}

		mounted := r.mountPath(c, rt)
		needsAuth := rt.requiresAuth(c)
		if needsAuth && r.Auth == nil {
			return nil, fmt.Errorf("route %s %q: authorization required but no gate is wired", method, rt.path)
		}

		cr := CompiledRoute{
			Method:      method,
			Path:        mounted,
			Controller:  c.prefix,
			Description: rt.description,
			Auth:        needsAuth,
			System:      c.system,
			handler:     rt.handler,
		}

		var chain []echo.MiddlewareFunc
		if cfg := rt.effectiveRateLimit(c); cfg != nil {
			if r.RateLimit == nil {
				return nil, fmt.Errorf("route %s %q: rate limit declared but no limiter is wired", method, rt.path)
			}
			chain = append(chain, r.RateLimit(method+" "+mounted, *cfg))
			cr.RateLimited = true
		}
		if proto := rt.effectiveValidate(c); proto != nil {
			if r.Validate == nil {
				return nil, fmt.Errorf("route %s %q: validation declared but no validator is wired", method, rt.path)
			}
			if !structPrototype(proto) {
				return nil, fmt.Errorf("route %s %q: validation prototype must be a struct, got %T", method, rt.path, proto)
			}
			chain = append(chain, r.Validate(proto))
			cr.Validated = true
		}
		if needsAuth {
			chain = append(chain, r.Auth)
		}
		chain = append(chain, c.middleware...)
		chain = append(chain, rt.middleware...)
		cr.middleware = chain

		out = append(out, cr)
	}
	return out, nil
}

func (r *Registrar) mountPath(c *Controller, rt *Route) string {
	mounted := c.prefix + rt.path
	if !c.system {
		mounted = r.APIPrefix + mounted
	}
	if mounted == "" {
		mounted = "/"
	}
	return mounted
}

func validPathPart(p string) error {
	if p == "" {
		return nil
	}
	if !strings.HasPrefix(p, "/") {
		return errors.New("must start with '/'")
	}
	return nil
}

func structPrototype(proto any) bool {
	t := reflect.TypeOf(proto)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t != nil && t.Kind() == reflect.Struct
}

// Mount compiles the registry and registers every route with e. The
// compiled table is returned for the documentation surface.
func (r *Registrar) Mount(e *echo.Echo, reg *Registry) []CompiledRoute {
	compiled := r.Compile(reg)
	for i := range compiled {
		cr := &compiled[i]
		e.Add(cr.Method, cr.Path, cr.handler, cr.middleware...)
		r.log().Debug("route mounted",
			"method", cr.Method, "path", cr.Path,
			"auth", cr.Auth, "rate_limited", cr.RateLimited)
	}
	r.log().Info("route table mounted", "routes", len(compiled))
	return compiled
}

// RouteInfo is the documentation projection of a compiled route.
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Controller  string `json:"controller,omitempty"`
	Description string `json:"description,omitempty"`
	Auth        bool   `json:"auth"`
	Validated   bool   `json:"validated"`
	RateLimited bool   `json:"rateLimited"`
	System      bool   `json:"system,omitempty"`
}

// Table projects compiled routes for the documentation endpoint.
func Table(compiled []CompiledRoute) []RouteInfo {
	infos := make([]RouteInfo, 0, len(compiled))
	for _, cr := range compiled {
		infos = append(infos, RouteInfo{
			Method:      cr.Method,
			Path:        cr.Path,
			Controller:  cr.Controller,
			Description: cr.Description,
			Auth:        cr.Auth,
			Validated:   cr.Validated,
			RateLimited: cr.RateLimited,
			System:      cr.System,
		})
	}
	return infos
}
