package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zeng7cd/go-api-boilerplate/internal/httperr"
	"github.com/zeng7cd/go-api-boilerplate/internal/identity"
	"github.com/zeng7cd/go-api-boilerplate/internal/logging"
	authmw "github.com/zeng7cd/go-api-boilerplate/internal/middleware/auth"
)

// Profile is the demo guarded resource; it exists so the pipeline has
// something real to protect.
type Profile struct {
	Store identity.Store
}

// Me returns the principal exactly as the token carried it.
func (h *Profile) Me(c echo.Context) error {
	id, ok := authmw.IdentityFrom(c)
	if !ok {
		return httperr.Unauthorized(httperr.CodeTokenRequired, "authorization token required")
	}
	return c.JSON(http.StatusOK, id)
}

func (h *Profile) Get(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := h.Store.FindByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return httperr.New(http.StatusNotFound, httperr.CodeNotFound, "user not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, user.Identity)
}

func (h *Profile) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile_delete")
	subjectID := c.Param("id")

	if err := h.Store.Delete(ctx, subjectID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return httperr.New(http.StatusNotFound, httperr.CodeNotFound, "user not found")
		}
		l.Error("delete_failed", "status", 500, "subject_id", subjectID, "error", err)
		return err
	}

	l.Info("delete_successful", "subject_id", subjectID)
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted", "id": subjectID})
}
