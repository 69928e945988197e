// Package ratelimit throttles a single route with a fixed window per client
// IP. Each guarded route owns its own limiter, so one hot endpoint cannot
// starve the rest of the API.
package ratelimit

import (
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zeng7cd/go-api-boilerplate/internal/httperr"
	"github.com/zeng7cd/go-api-boilerplate/internal/observability"
)

const (
	defaultWindow  = time.Minute
	defaultMax     = 100
	defaultMessage = "too many requests, please try again later"

	// Expired windows are swept when the map grows past this on insert.
	sweepThreshold = 1024
)

type Config struct {
	Window  time.Duration
	Max     int
	Message string
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	if c.Max <= 0 {
		c.Max = defaultMax
	}
	if c.Message == "" {
		c.Message = defaultMessage
	}
	return c
}

type window struct {
	start time.Time
	count int
}

// Limiter counts requests per client key within the configured window.
type Limiter struct {
	cfg   Config
	route string

	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// New builds a limiter for one route. route labels the rejection metric.
func New(route string, cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg.withDefaults(),
		route:   route,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Middleware rejects with 429 and a Retry-After once a caller exhausts the
// window. It runs before validation and authorization, so over-limit callers
// cost nothing further.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, retryAfter := l.allow(clientKey(c))
			if !allowed {
				observability.RateLimitRejected.WithLabelValues(l.route).Inc()
				herr := httperr.New(http.StatusTooManyRequests, httperr.CodeRateLimited, l.cfg.Message)
				herr.RetryAfter = retryAfter
				return herr
			}
			return next(c)
		}
	}
}

func (l *Limiter) allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		if !ok && len(l.windows) >= sweepThreshold {
			l.sweep(now)
		}
		l.windows[key] = &window{start: now, count: 1}
		return true, 0
	}

	if w.count < l.cfg.Max {
		w.count++
		return true, 0
	}

	return false, retryAfterSeconds(l.cfg.Window - now.Sub(w.start))
}

func (l *Limiter) sweep(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.cfg.Window {
			delete(l.windows, key)
		}
	}
}

// retryAfterSeconds rounds the remaining window up to whole seconds, never
// below one so clients always back off.
func retryAfterSeconds(remaining time.Duration) int {
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// clientKey normalizes the caller address so IPv4 and its IPv6-mapped form
// count against the same window.
func clientKey(c echo.Context) string {
	ip := c.RealIP()
	if addr, err := netip.ParseAddr(ip); err == nil {
		return addr.Unmap().String()
	}
	return ip
}
