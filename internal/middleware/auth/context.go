package auth

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/zeng7cd/go-api-boilerplate/internal/identity"
	"github.com/zeng7cd/go-api-boilerplate/internal/tokens"
)

const (
	identityKey = "auth.identity"
	claimsKey   = "auth.claims"
	rawTokenKey = "auth.token"
)

type ctxKey struct{}

// WithIdentity attaches id to ctx for consumers below the HTTP layer.
func WithIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext reads the principal from a request context.
func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(identity.Identity)
	return id, ok
}

// IdentityFrom reads the principal the gate attached to the echo context.
func IdentityFrom(c echo.Context) (identity.Identity, bool) {
	id, ok := c.Get(identityKey).(identity.Identity)
	return id, ok
}

// ClaimsFrom reads the verified access claims from the echo context.
func ClaimsFrom(c echo.Context) (*tokens.AccessClaims, bool) {
	claims, ok := c.Get(claimsKey).(*tokens.AccessClaims)
	return claims, ok
}

// RawTokenFrom reads the compact token string the request presented.
func RawTokenFrom(c echo.Context) (string, bool) {
	raw, ok := c.Get(rawTokenKey).(string)
	return raw, ok && raw != ""
}
