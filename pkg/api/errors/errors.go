// Package errors renders domain errors as JSON HTTP responses.
package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// StatusCode maps a domain error code to its HTTP status
func StatusCode(code string) int {
	switch code {
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodePrecondition, domain.ErrCodeConflict:
		return http.StatusConflict
	case domain.ErrCodeTransport:
		return http.StatusBadGateway
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err as {"error": code, "message": text}. Errors without
// a domain code are logged and answered with a generic 500.
func Respond(c echo.Context, log logger.Logger, err error) error {
	code := domain.GetErrorCode(err)
	status := StatusCode(code)

	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", status,
			"error", err,
		)
	} else {
		log.Debug("request rejected", "path", c.Request().URL.Path, "code", code, "error", err)
	}

	return c.JSON(status, models.ErrorResponse{
		Error:   code,
		Message: domain.PublicMessage(err),
	})
}

// ValidationError answers 400 for a malformed request body or query
func ValidationError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   domain.ErrCodeValidation,
		Message: message,
	})
}
