// Package httperr is the single place request failures are rendered. Every
// handler and middleware returns an error; the handler registered here turns
// it into the uniform {"error":{"code","message"}} envelope. Internal detail
// stays in the log, never in the response body.
package httperr

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/zeng7cd/go-api-boilerplate/internal/logging"
)

// Machine-readable failure codes carried in the response envelope.
const (
	CodeTokenRequired      = "TOKEN_REQUIRED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeUserTokensRevoked  = "USER_TOKENS_REVOKED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeForbidden          = "FORBIDDEN"
	CodeRateLimited        = "RATE_LIMITED"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is a request-terminating failure with a stable machine code.
type Error struct {
	Status     int
	Code       string
	Message    string
	RetryAfter int   // seconds; rendered as a Retry-After header when > 0
	Internal   error // logged, never exposed
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Internal }

// WithInternal keeps the wire-visible part of e and attaches cause for the log.
func (e *Error) WithInternal(cause error) *Error {
	clone := *e
	clone.Internal = cause
	return &clone
}

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func Unauthorized(code, message string) *Error {
	return New(http.StatusUnauthorized, code, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, CodeForbidden, message)
}

type envelope struct {
	Error body `json:"error"`
}

type body struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// Register installs the centralized responder on e. All failures funnel here:
// typed *Error values, echo's own HTTPErrors (404, 405, bind failures) and
// anything unexpected, which is masked as a 500.
func Register(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		herr := normalize(err)

		l := logging.FromContext(c.Request().Context())
		if herr.Status >= http.StatusInternalServerError {
			l.Error("request failed", "code", herr.Code, "status", herr.Status, "error", errDetail(herr))
		} else {
			l.Warn("request rejected", "code", herr.Code, "status", herr.Status, "error", errDetail(herr))
		}

		if herr.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(herr.RetryAfter))
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(herr.Status)
		} else {
			werr = c.JSON(herr.Status, envelope{Error: body{
				Code:       herr.Code,
				Message:    herr.Message,
				RetryAfter: herr.RetryAfter,
			}})
		}
		if werr != nil {
			l.Error("writing error response", "error", werr)
		}
	}
}

func normalize(err error) *Error {
	switch v := err.(type) {
	case *Error:
		return v
	case *echo.HTTPError:
		msg := http.StatusText(v.Code)
		if s, ok := v.Message.(string); ok {
			msg = s
		}
		return &Error{Status: v.Code, Code: codeForStatus(v.Code), Message: msg, Internal: v.Internal}
	default:
		return &Error{
			Status:   http.StatusInternalServerError,
			Code:     CodeInternal,
			Message:  "internal server error",
			Internal: err,
		}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusUnauthorized:
		return CodeInvalidToken
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusBadRequest:
		return CodeBadRequest
	default:
		if status >= 500 {
			return CodeInternal
		}
		return CodeBadRequest
	}
}

func errDetail(e *Error) string {
	if e.Internal != nil {
		return e.Internal.Error()
	}
	return e.Message
}
