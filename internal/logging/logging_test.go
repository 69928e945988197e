package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	logger := New("debug")
	ctx := IntoContext(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
	// No logger attached falls back to the process default instead of nil.
	assert.NotNil(t, FromContext(context.Background()))
}

func TestNewHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn")

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}

func TestNewFallsBackToInfoOnUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "noisy")

	logger.Debug("dropped")
	logger.Info("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}

func TestRequestLoggerEmitsCompletionLine(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, "info")

	e := echo.New()
	e.Use(RequestLogger(base))
	e.GET("/ping", func(c echo.Context) error {
		// The request-scoped logger must be reachable downstream.
		assert.NotNil(t, FromContext(c.Request().Context()))
		return c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request completed", line["msg"])
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/ping", line["path"])
	assert.Equal(t, float64(http.StatusOK), line["status"])
	assert.Equal(t, "req-123", line["request_id"])
	assert.Equal(t, "req-123", rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestLoggerPicksUpGeneratedRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, "info")

	// Mounted after the request id middleware, the logger must carry the
	// generated id even though the client sent none.
	e := echo.New()
	e.Use(middleware.RequestID(), RequestLogger(base))
	e.GET("/ping", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	generated := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, generated)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, generated, line["request_id"])
}

func TestRequestLoggerRoutesErrorsToErrorHandler(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, "info")

	e := echo.New()
	var handled error
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		handled = err
		_ = c.NoContent(http.StatusInternalServerError)
	}
	e.Use(RequestLogger(base))
	e.GET("/boom", func(echo.Context) error {
		return errors.New("kaput")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.ErrorContains(t, handled, "kaput")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, float64(http.StatusInternalServerError), line["status"])
}
