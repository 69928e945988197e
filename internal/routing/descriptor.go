// Package routing turns declarative controller and route descriptions into
// mounted echo routes. Feature packages declare controllers at startup,
// register them in a Registry, and the Registrar compiles the registry once
// into per-route middleware chains. After compilation the metadata is frozen;
// dispatch never consults it again.
package routing

import (
	"github.com/labstack/echo/v4"

	"github.com/zeng7cd/go-api-boilerplate/internal/middleware/ratelimit"
)

type authMode int

const (
	authInherit authMode = iota
	authRequired
	authPublic
)

// settings are the declaration knobs shared by controllers and routes.
// Route-scoped values override the controller's defaults.
type settings struct {
	description string
	middleware  []echo.MiddlewareFunc
	auth        authMode
	validate    any
	rateLimit   *ratelimit.Config
	system      bool
}

// Option configures a controller or route declaration.
type Option func(*settings)

// Describe attaches documentation text, surfaced by the route table.
func Describe(text string) Option {
	return func(s *settings) { s.description = text }
}

// Use appends middleware in declaration order. On a controller it runs for
// every route; on a route it runs after the controller's middleware.
func Use(mw ...echo.MiddlewareFunc) Option {
	return func(s *settings) { s.middleware = append(s.middleware, mw...) }
}

// Auth requires a verified bearer token. On a controller it becomes the
// default for all routes; a route can opt back out with Public.
func Auth() Option {
	return func(s *settings) { s.auth = authRequired }
}

// Public exempts the declaration from the controller's Auth default.
func Public() Option {
	return func(s *settings) { s.auth = authPublic }
}

// Validate binds and validates request payloads against prototype before
// anything authorization-dependent runs.
func Validate(prototype any) Option {
	return func(s *settings) { s.validate = prototype }
}

// RateLimit throttles with a route-private fixed window. It always runs
// first in the chain.
func RateLimit(cfg ratelimit.Config) Option {
	return func(s *settings) { s.rateLimit = &cfg }
}

// SystemRoute mounts the controller's routes without the API prefix.
// Controller scope only.
func SystemRoute() Option {
	return func(s *settings) { s.system = true }
}

// Controller groups routes under a shared path prefix with controller-wide
// middleware and defaults.
type Controller struct {
	prefix string
	settings
	routes []*Route
}

func NewController(prefix string, opts ...Option) *Controller {
	c := &Controller{prefix: prefix}
	for _, opt := range opts {
		opt(&c.settings)
	}
	return c
}

// Prefix returns the controller's path prefix.
func (c *Controller) Prefix() string { return c.prefix }

// Route is one declared operation. Declaration order is preserved through
// compilation so documentation output is stable.
type Route struct {
	method  string
	path    string
	handler echo.HandlerFunc
	settings
}

// Add declares a route. Method strings are validated at compile time, not
// here, so a bad declaration skips its controller instead of panicking the
// process.
func (c *Controller) Add(method, path string, h echo.HandlerFunc, opts ...Option) {
	rt := &Route{method: method, path: path, handler: h}
	for _, opt := range opts {
		opt(&rt.settings)
	}
	c.routes = append(c.routes, rt)
}

func (c *Controller) GET(path string, h echo.HandlerFunc, opts ...Option) {
	c.Add(echo.GET, path, h, opts...)
}

func (c *Controller) POST(path string, h echo.HandlerFunc, opts ...Option) {
	c.Add(echo.POST, path, h, opts...)
}

func (c *Controller) PUT(path string, h echo.HandlerFunc, opts ...Option) {
	c.Add(echo.PUT, path, h, opts...)
}

func (c *Controller) PATCH(path string, h echo.HandlerFunc, opts ...Option) {
	c.Add(echo.PATCH, path, h, opts...)
}

func (c *Controller) DELETE(path string, h echo.HandlerFunc, opts ...Option) {
	c.Add(echo.DELETE, path, h, opts...)
}

func (c *Controller) OPTIONS(path string, h echo.HandlerFunc, opts ...Option) {
	c.Add(echo.OPTIONS, path, h, opts...)
}

func (c *Controller) HEAD(path string, h echo.HandlerFunc, opts ...Option) {
	c.Add(echo.HEAD, path, h, opts...)
}

// requiresAuth resolves the route's effective auth requirement against the
// controller default.
func (rt *Route) requiresAuth(c *Controller) bool {
	switch rt.auth {
	case authRequired:
		return true
	case authPublic:
		return false
	default:
		return c.auth == authRequired
	}
}

func (rt *Route) effectiveValidate(c *Controller) any {
	if rt.validate != nil {
		return rt.validate
	}
	return c.validate
}

func (rt *Route) effectiveRateLimit(c *Controller) *ratelimit.Config {
	if rt.rateLimit != nil {
		return rt.rateLimit
	}
	return c.rateLimit
}
