package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/zeng7cd/go-api-boilerplate/internal/blacklist"
	"github.com/zeng7cd/go-api-boilerplate/internal/config"
	"github.com/zeng7cd/go-api-boilerplate/internal/events"
	"github.com/zeng7cd/go-api-boilerplate/internal/handlers"
	"github.com/zeng7cd/go-api-boilerplate/internal/httperr"
	"github.com/zeng7cd/go-api-boilerplate/internal/httpserver"
	"github.com/zeng7cd/go-api-boilerplate/internal/identity"
	"github.com/zeng7cd/go-api-boilerplate/internal/logging"
	authmw "github.com/zeng7cd/go-api-boilerplate/internal/middleware/auth"
	"github.com/zeng7cd/go-api-boilerplate/internal/middleware/ratelimit"
	"github.com/zeng7cd/go-api-boilerplate/internal/middleware/validate"
	"github.com/zeng7cd/go-api-boilerplate/internal/routing"
	"github.com/zeng7cd/go-api-boilerplate/internal/tokens"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	tokenSvc, err := tokens.NewService(tokens.Config{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		Issuer:        "go-api-boilerplate",
	})
	if err != nil {
		log.Fatal(err)
	}

	var (
		cache blacklist.Cache
		rdb   *redis.Client
		ready func(c echo.Context) error
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache = blacklist.NewRedisCache(rdb)
		ready = func(c echo.Context) error {
			return rdb.Ping(c.Request().Context()).Err()
		}
		logger.Info("revocation store backed by redis", "addr", cfg.RedisAddr)
	} else {
		cache = blacklist.NewMemoryCache()
		logger.Warn("REDIS_ADDR not set, revocations are process-local")
	}
	deny := blacklist.NewStore(cache, logger)

	users := identity.NewMemoryStore()
	if err := seedAdmin(users, logger); err != nil {
		log.Fatal(err)
	}

	var producer *events.Producer
	if cfg.KafkaAddress != "" {
		producer = events.NewProducer(cfg.KafkaAddress)
	} else {
		logger.Warn("KAFKA_ADDRESS not set, auth events are disabled")
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), logging.RequestLogger(logger))
	httperr.Register(e)

	gate := &authmw.Middleware{Tokens: tokenSvc, Revocations: deny}

	registrar := &routing.Registrar{
		APIPrefix: cfg.APIPrefix,
		Logger:    logger,
		Auth:      gate.Require(),
		Validate:  validate.Middleware,
		RateLimit: func(route string, cfg ratelimit.Config) echo.MiddlewareFunc {
			return ratelimit.New(route, cfg).Middleware()
		},
	}

	// The docs route serves the compiled table, itself included, so the
	// closure reads a variable that is bound only after Mount returns.
	var table []routing.RouteInfo

	deps := httpserver.Deps{
		Auth:    &handlers.Auth{Store: users, Tokens: tokenSvc, Deny: deny, Events: producer},
		Profile: &handlers.Profile{Store: users},
		System: &handlers.System{
			Routes: func() []routing.RouteInfo { return table },
			Ready:  ready,
		},
	}

	reg := routing.NewRegistry()
	if err := reg.Register(httpserver.Controllers(&deps)...); err != nil {
		log.Fatal(err)
	}
	table = routing.Table(registrar.Mount(e, reg))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// seedAdmin provisions a bootstrap account so a fresh deployment can log in.
// Without ADMIN_EMAIL and ADMIN_PASSWORD the store starts empty and every
// login fails until an operator wires a real identity backend.
func seedAdmin(users *identity.MemoryStore, logger *slog.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		logger.Warn("ADMIN_EMAIL/ADMIN_PASSWORD not set, no users seeded")
		return nil
	}

	u, err := users.AddWithPassword(identity.User{
		Identity: identity.Identity{
			Email:       email,
			Username:    "admin",
			Roles:       []string{"admin"},
			Permissions: []string{"users:read", "users:revoke"},
		},
	}, password)
	if err != nil {
		return err
	}
	logger.Info("admin user seeded", "id", u.ID, "email", email)
	return nil
}
