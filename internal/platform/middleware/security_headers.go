package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets defensive response headers. Photo and document
// downloads keep their caching headers; JSON responses are never cached.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if !isDownload(c.Request().URL.Path) {
				h.Set("Cache-Control", "no-store")
			}
			return next(c)
		}
	}
}

func isDownload(path string) bool {
	return strings.Contains(path, "/photos/") || strings.HasSuffix(path, "/download")
}
