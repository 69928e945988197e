// Package validate rejects malformed request payloads before any
// authorization-dependent middleware spends work on them. A route declares a
// prototype struct; each request binds into a fresh copy, runs the struct
// rules and stores the result for the handler.
package validate

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/zeng7cd/go-api-boilerplate/internal/httperr"
)

const payloadKey = "validate.payload"

var validate = validator.New()

// Middleware binds and validates the request against prototype, a struct
// value or pointer carrying `validate` tags.
func Middleware(prototype any) echo.MiddlewareFunc {
	typ := reflect.TypeOf(prototype)
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("validate: prototype must be a struct, got %s", typ.Kind()))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			payload := reflect.New(typ).Interface()

			if err := c.Bind(payload); err != nil {
				return httperr.New(http.StatusBadRequest, httperr.CodeValidationFailed,
					"malformed request body").WithInternal(err)
			}
			if err := validate.Struct(payload); err != nil {
				return httperr.New(http.StatusBadRequest, httperr.CodeValidationFailed,
					failureMessage(err)).WithInternal(err)
			}

			c.Set(payloadKey, payload)
			return next(c)
		}
	}
}

// Payload returns the validated request body for a route declared with a
// prototype of type T. It is nil when no validation middleware ran.
func Payload[T any](c echo.Context) *T {
	payload, _ := c.Get(payloadKey).(*T)
	return payload
}

func failureMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return fmt.Sprintf("field %s failed validation (%s)", first.Field(), first.Tag())
	}
	return "request validation failed"
}
