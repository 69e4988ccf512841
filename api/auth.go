package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

const apiKeyHeader = "X-API-Key"

// RequireAPIKey guards routes with a shared secret in the X-API-Key header.
// An empty configured key disables the check, which is how local development
// runs.
func RequireAPIKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" {
				return next(c)
			}
			got := c.Request().Header.Get(apiKeyHeader)
			if got == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing API key"})
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid API key"})
			}
			return next(c)
		}
	}
}
