// Package handlers adapts the lead and campaign services to HTTP.
package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadflow/pkg/domain"
)

// parseID reads a positive numeric path parameter
func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, domain.NewValidationError(fmt.Sprintf("%s must be a positive number", name))
	}
	return uint(id), nil
}

// bindJSON binds and validates a request body
func bindJSON(c echo.Context, v *validator.Validate, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return domain.NewValidationError("invalid request body")
	}
	if err := v.Struct(dst); err != nil {
		return domain.NewValidationError(validationMessage(err))
	}
	return nil
}

// validationMessage lists the failing fields of a validator error
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid request data"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

// optionalInt parses an integer query parameter that may be absent
func optionalInt(c echo.Context, name string) (*int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &v, nil
}

// intParam parses an integer query parameter with a fallback
func intParam(c echo.Context, name string, fallback int) int {
	if v, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return v
	}
	return fallback
}
