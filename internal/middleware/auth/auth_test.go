package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeng7cd/go-api-boilerplate/internal/blacklist"
	"github.com/zeng7cd/go-api-boilerplate/internal/httperr"
	"github.com/zeng7cd/go-api-boilerplate/internal/identity"
	"github.com/zeng7cd/go-api-boilerplate/internal/tokens"
)

const testSecret = "middleware-test-secret"

type errBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testEnv struct {
	e      *echo.Echo
	svc    *tokens.Service
	store  *blacklist.Store
	mw     *Middleware
	called *bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	svc, err := tokens.NewService(tokens.Config{
		AccessSecret: testSecret,
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := blacklist.NewStore(blacklist.NewMemoryCache(), log)

	e := echo.New()
	httperr.Register(e)

	called := false
	env := &testEnv{
		e:      e,
		svc:    svc,
		store:  store,
		mw:     &Middleware{Tokens: svc, Revocations: store},
		called: &called,
	}

	e.GET("/protected", func(c echo.Context) error {
		called = true
		id, _ := IdentityFrom(c)
		return c.JSON(http.StatusOK, id)
	}, env.mw.Require())

	return env
}

func (env *testEnv) get(authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errBody {
	t.Helper()
	var body errBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestMissingTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httperr.CodeTokenRequired, decodeError(t, rec).Error.Code)
	assert.False(t, *env.called)
}

func TestMalformedAuthorizationHeaderRejected(t *testing.T) {
	env := newTestEnv(t)

	for _, header := range []string{"Basic abc123", "Bearer", "Bearer   "} {
		rec := env.get(header)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Equal(t, httperr.CodeTokenRequired, decodeError(t, rec).Error.Code)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("Bearer not-a-jwt")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httperr.CodeInvalidToken, decodeError(t, rec).Error.Code)
}

func TestExpiredTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	claims := &tokens.AccessClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec := env.get("Bearer " + raw)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httperr.CodeInvalidToken, decodeError(t, rec).Error.Code)
}

func TestRefreshTokenAtAccessPositionRejected(t *testing.T) {
	env := newTestEnv(t)

	refresh, err := env.svc.IssueRefreshToken("user-1")
	require.NoError(t, err)

	rec := env.get("Bearer " + refresh)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httperr.CodeInvalidToken, decodeError(t, rec).Error.Code)
	assert.False(t, *env.called)
}

func TestRevokedTokenRejectedWithRevokedCode(t *testing.T) {
	env := newTestEnv(t)

	raw, err := env.svc.IssueAccessToken(identity.Identity{ID: "user-1", Username: "alice"})
	require.NoError(t, err)
	require.NoError(t, env.store.RevokeToken(context.Background(), raw))

	rec := env.get("Bearer " + raw)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeError(t, rec)
	// A still-valid but denied token must be reported as revoked, not invalid.
	assert.Equal(t, httperr.CodeTokenRevoked, body.Error.Code)
	assert.NotEqual(t, httperr.CodeInvalidToken, body.Error.Code)
}

func TestSubjectRevocationRejectsAllTokens(t *testing.T) {
	env := newTestEnv(t)

	raw, err := env.svc.IssueAccessToken(identity.Identity{ID: "user-7"})
	require.NoError(t, err)
	require.NoError(t, env.store.RevokeAllForSubject(context.Background(), "user-7", time.Hour))

	rec := env.get("Bearer " + raw)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httperr.CodeUserTokensRevoked, decodeError(t, rec).Error.Code)
}

func TestValidTokenAdmitted(t *testing.T) {
	env := newTestEnv(t)

	id := identity.Identity{
		ID:          "user-1",
		Email:       "alice@example.com",
		Username:    "alice",
		Roles:       []string{"admin"},
		Permissions: []string{"users:read"},
	}
	raw, err := env.svc.IssueAccessToken(id)
	require.NoError(t, err)

	rec := env.get("Bearer " + raw)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *env.called)

	var got identity.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got)
}

func TestGateAttachesPrincipalEverywhere(t *testing.T) {
	env := newTestEnv(t)

	id := identity.Identity{ID: "user-1", Username: "alice"}
	raw, err := env.svc.IssueAccessToken(id)
	require.NoError(t, err)

	env.e.GET("/introspect", func(c echo.Context) error {
		claims, ok := ClaimsFrom(c)
		require.True(t, ok)
		assert.Equal(t, "user-1", claims.Subject)

		presented, ok := RawTokenFrom(c)
		require.True(t, ok)
		assert.Equal(t, raw, presented)

		fromCtx, ok := IdentityFromContext(c.Request().Context())
		require.True(t, ok)
		assert.Equal(t, id, fromCtx)
		return c.NoContent(http.StatusOK)
	}, env.mw.Require())

	req := httptest.NewRequest(http.MethodGet, "/introspect", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+raw)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
