// Package handlers contains the HTTP handlers mounted through the routing
// declarations. They stay thin: payloads arrive already validated, auth
// already verified, and failures are returned as typed errors for the
// centralized responder.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zeng7cd/go-api-boilerplate/internal/blacklist"
	"github.com/zeng7cd/go-api-boilerplate/internal/events"
	"github.com/zeng7cd/go-api-boilerplate/internal/hash"
	"github.com/zeng7cd/go-api-boilerplate/internal/httperr"
	"github.com/zeng7cd/go-api-boilerplate/internal/identity"
	"github.com/zeng7cd/go-api-boilerplate/internal/logging"
	authmw "github.com/zeng7cd/go-api-boilerplate/internal/middleware/auth"
	"github.com/zeng7cd/go-api-boilerplate/internal/middleware/validate"
	"github.com/zeng7cd/go-api-boilerplate/internal/observability"
	"github.com/zeng7cd/go-api-boilerplate/internal/tokens"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RevokeRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
}

// Auth serves the token lifecycle: login, refresh rotation, logout and
// administrative subject-wide revocation.
type Auth struct {
	Store  identity.Store
	Tokens *tokens.Service
	Deny   *blacklist.Store
	Events *events.Producer
}

// payload fetches the validated body; a nil result means the route was
// mounted without its validation declaration, which is a wiring defect.
func payload[T any](c echo.Context) (*T, error) {
	p := validate.Payload[T](c)
	if p == nil {
		return nil, httperr.New(http.StatusInternalServerError, httperr.CodeInternal, "internal server error").
			WithInternal(errors.New("route mounted without validation middleware"))
	}
	return p, nil
}

func (h *Auth) publish(c echo.Context, key string, event map[string]any) {
	if h.Events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Events.PublishEvent(ctx, events.AuthTopic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Warn("event_publish_failed", "error", err)
	}
}

func (h *Auth) issuePair(id identity.Identity) (access, refresh string, err error) {
	access, err = h.Tokens.IssueAccessToken(id)
	if err != nil {
		return "", "", err
	}
	refresh, err = h.Tokens.IssueRefreshToken(id.ID)
	if err != nil {
		return "", "", err
	}

	observability.TokensIssued.WithLabelValues("access").Inc()
	observability.TokensIssued.WithLabelValues("refresh").Inc()
	return access, refresh, nil
}

func (h *Auth) tokenResponse(c echo.Context, access, refresh string) error {
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"expires_in":    int(h.Tokens.AccessTTL().Seconds()),
	})
}

func (h *Auth) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")
	req, err := payload[LoginRequest](c)
	if err != nil {
		return err
	}

	user, err := h.Store.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			l.Warn("login_failed", "status", 401, "reason", "unknown_email")
			return httperr.Unauthorized(httperr.CodeInvalidCredentials, "invalid email or password")
		}
		return err
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "status", 401, "reason", "bad_password", "user_id", user.ID)
		return httperr.Unauthorized(httperr.CodeInvalidCredentials, "invalid email or password")
	}

	access, refresh, err := h.issuePair(user.Identity)
	if err != nil {
		return err
	}

	l.Info("login_successful", "user_id", user.ID)
	h.publish(c, user.ID, map[string]any{
		"type":     "user_login",
		"userID":   user.ID,
		"username": user.Username,
	})
	return h.tokenResponse(c, access, refresh)
}

// Refresh rotates the token pair. The presented refresh token is verified,
// checked against both deny-list markers, then retired so it cannot be
// replayed.
func (h *Auth) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")
	req, err := payload[RefreshRequest](c)
	if err != nil {
		return err
	}

	claims, err := h.Tokens.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "invalid_token")
		return httperr.Unauthorized(httperr.CodeInvalidToken, "invalid or expired token").WithInternal(err)
	}
	if h.Deny.IsRevoked(ctx, claims.ID) {
		l.Warn("refresh_failed", "status", 401, "reason", "token_revoked", "user_id", claims.Subject)
		return httperr.Unauthorized(httperr.CodeTokenRevoked, "token has been revoked")
	}
	if h.Deny.IsSubjectRevoked(ctx, claims.Subject) {
		l.Warn("refresh_failed", "status", 401, "reason", "user_tokens_revoked", "user_id", claims.Subject)
		return httperr.Unauthorized(httperr.CodeUserTokensRevoked, "all tokens for this user have been revoked")
	}

	user, err := h.Store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "unknown_subject", "user_id", claims.Subject)
			return httperr.Unauthorized(httperr.CodeInvalidToken, "invalid or expired token")
		}
		return err
	}

	access, refresh, err := h.issuePair(user.Identity)
	if err != nil {
		return err
	}

	// Retire the used refresh token. Losing this write widens the replay
	// window but must not fail the rotation.
	if err := h.Deny.RevokeToken(ctx, req.RefreshToken); err != nil {
		l.Warn("refresh_rotation_revoke_failed", "error", err, "user_id", claims.Subject)
	}

	l.Info("refresh_successful", "user_id", user.ID)
	h.publish(c, user.ID, map[string]any{
		"type":   "token_refreshed",
		"userID": user.ID,
	})
	return h.tokenResponse(c, access, refresh)
}

// Logout revokes the presented access token and, when the client supplies
// one, its refresh token. Revoking the access token must succeed for the
// logout to count.
func (h *Auth) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	raw, ok := authmw.RawTokenFrom(c)
	if !ok {
		return httperr.Unauthorized(httperr.CodeTokenRequired, "authorization token required")
	}
	if err := h.Deny.RevokeToken(ctx, raw); err != nil {
		l.Error("logout_failed", "status", 500, "reason", "cannot revoke access token", "error", err)
		return err
	}

	if req := validate.Payload[LogoutRequest](c); req != nil && req.RefreshToken != "" {
		// Best effort: a refresh token that cannot be decoded poses no
		// replay risk worth failing the logout over.
		if err := h.Deny.RevokeToken(ctx, req.RefreshToken); err != nil {
			l.Warn("logout_refresh_revoke_skipped", "error", err)
		}
	}

	subject := ""
	if claims, ok := authmw.ClaimsFrom(c); ok {
		subject = claims.Subject
	}

	l.Info("logout_successful", "user_id", subject)
	h.publish(c, subject, map[string]any{
		"type":   "user_logout",
		"userID": subject,
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Revoke denies every outstanding token of a subject for the refresh-token
// horizon. Guarded by the users:revoke permission at declaration.
func (h *Auth) Revoke(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_revoke")
	req, err := payload[RevokeRequest](c)
	if err != nil {
		return err
	}

	if err := h.Deny.RevokeAllForSubject(ctx, req.SubjectID, h.Tokens.RefreshTTL()); err != nil {
		l.Error("revoke_failed", "status", 500, "subject_id", req.SubjectID, "error", err)
		return err
	}

	actor := ""
	if id, ok := authmw.IdentityFrom(c); ok {
		actor = id.ID
	}

	l.Info("revoke_successful", "subject_id", req.SubjectID, "actor_id", actor)
	h.publish(c, req.SubjectID, map[string]any{
		"type":      "user_tokens_revoked",
		"subjectID": req.SubjectID,
		"actorID":   actor,
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "all tokens revoked", "subject_id": req.SubjectID})
}
