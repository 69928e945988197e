package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zeng7cd/go-api-boilerplate/internal/routing"
)

// System serves the operational endpoints mounted outside the API prefix.
type System struct {
	// Routes supplies the compiled route table; it is bound after Mount, so
	// the table includes every route, these included.
	Routes func() []routing.RouteInfo
	// Ready reports nil when downstream dependencies answer. Nil means no
	// readiness dependencies are wired.
	Ready func(c echo.Context) error
}

func (h *System) Live(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *System) Readiness(c echo.Context) error {
	if h.Ready != nil {
		if err := h.Ready(c); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// RouteDocs renders the declaration metadata for the documentation
// generator.
func (h *System) RouteDocs(c echo.Context) error {
	var table []routing.RouteInfo
	if h.Routes != nil {
		table = h.Routes()
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":  len(table),
		"routes": table,
	})
}
