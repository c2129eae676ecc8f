// Package middleware holds echo middleware shared across animarr's JSON API:
// there is no bundled web UI to protect, only the show-tracking and
// job-trigger endpoints under /api plus the plain /health and /status
// probes, so the policy here is deliberately narrow.
package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// SameOriginCORS allows CORS requests only from the same host the server is
// accessed on, any port. This lets a locally-run dashboard or CLI talk to
// the daemon's API from another port on the same machine (e.g. a companion
// tool on :3000 calling the daemon on :8080) without opening the API up to
// arbitrary remote origins.
func SameOriginCORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get("Origin")
			if origin == "" {
				return next(c)
			}

			originURL, err := url.Parse(origin)
			if err != nil {
				return next(c)
			}

			requestHost := c.Request().Host
			// Strip port from request host for comparison
			requestHostname := requestHost
			if idx := strings.LastIndex(requestHost, ":"); idx != -1 {
				requestHostname = requestHost[:idx]
			}

			// Allow if origin hostname matches request hostname (any port)
			if originURL.Hostname() == requestHostname {
				h := c.Response().Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
				h.Set("Access-Control-Allow-Credentials", "true")

				if c.Request().Method == http.MethodOptions {
					return c.NoContent(http.StatusNoContent)
				}
			}

			return next(c)
		}
	}
}

// baseSecurityHeaders are applied to every response regardless of path,
// since every route on this server returns JSON or a plain health probe,
// never rendered HTML that would need a looser policy.
var baseSecurityHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "SAMEORIGIN",
	"X-XSS-Protection":        "1; mode=block",
	"Referrer-Policy":         "strict-origin-when-cross-origin",
	"Content-Security-Policy": "frame-ancestors 'self'",
}

// SecurityHeaders sets a fixed set of hardening headers on every response
// and additionally disables caching on show/job responses under /api, so a
// stale "enqueued" or "pending" status is never served from a shared cache.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for name, value := range baseSecurityHeaders {
				h.Set(name, value)
			}

			if strings.HasPrefix(c.Request().URL.Path, "/api") {
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
				h.Set("Pragma", "no-cache")
			}

			return next(c)
		}
	}
}
