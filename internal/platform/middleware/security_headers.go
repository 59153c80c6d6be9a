package middleware

import (
	"github.com/labstack/echo/v4"
)

// apiHeaders are set on every response. Record payloads carry patient data,
// so responses are never cached.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
}

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders sets the JSON API response headers. HSTS is only sent when
// strictTransport is true, which main enables outside development.
func SecurityHeaders(strictTransport bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if strictTransport {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			return next(c)
		}
	}
}
