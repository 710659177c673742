package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadflow/pkg/domain"
)

// HeaderAPIKey carries the static API key
const HeaderAPIKey = "X-API-Key"

// RequireAPIKey rejects requests whose X-API-Key header does not equal
// key. An empty key rejects everything.
func RequireAPIKey(key string) echo.MiddlewareFunc {
	expected := []byte(key)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := []byte(c.Request().Header.Get(HeaderAPIKey))
			if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error":   domain.ErrCodeUnauthorized,
					"message": "missing or invalid API key",
				})
			}
			return next(c)
		}
	}
}
