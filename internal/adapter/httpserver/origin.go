package httpserver

import (
	"log/slog"
	"net/url"

	apperrors "github.com/jakegt1/twitch-events/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

// originGuard rejects browser requests from other sites. Requests without an Origin header
// (curl, same-origin GETs) pass. The app origin is derived from the OAuth redirect URI.
func originGuard(redirectURI string, isDevelopment bool) echo.MiddlewareFunc {
	appOrigin := extractOrigin(redirectURI)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if origin == "" || origin == appOrigin || (isDevelopment && isLocalhostOrigin(origin)) {
				return next(c)
			}

			slog.WarnContext(c.Request().Context(), "Cross-origin request rejected", "origin", origin, "path", c.Path())
			return apperrors.AuthError("cross-origin request rejected", nil).WithField("origin", origin)
		}
	}
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
