package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/jakegt1/twitch-events/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

const twitchAuthURL = "https://id.twitch.tv/oauth2/authorize"

var errTokenStored = errors.New("new access token stored")

type tokenRequest struct {
	AccessToken string `json:"access_token"`
}

func (s *Server) registerAuthRoutes(sameOrigin, rateLimiter echo.MiddlewareFunc) {
	s.echo.GET("/auth/login", s.handleLogin)
	s.echo.GET("/auth/callback", s.handleCallback)
	s.echo.POST("/auth/token", s.handleStoreToken, sameOrigin, rateLimiter)
}

// authorizeURL builds the implicit grant redirect. Twitch returns the token in the URL fragment.
func (s *Server) authorizeURL() string {
	params := url.Values{}
	params.Set("client_id", s.config.TwitchClientID)
	params.Set("redirect_uri", s.config.TwitchRedirectURI)
	params.Set("response_type", "token")
	params.Set("scope", s.config.TwitchScopes)
	return twitchAuthURL + "?" + params.Encode()
}

func (s *Server) handleLogin(c echo.Context) error {
	if err := c.Redirect(http.StatusFound, s.authorizeURL()); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

// handleCallback serves the page that lifts the token out of the fragment, which never
// reaches the server.
func (s *Server) handleCallback(c echo.Context) error {
	return s.renderTemplate(c, "callback.html", nil)
}

func (s *Server) handleStoreToken(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	token := strings.TrimSpace(req.AccessToken)
	if token == "" {
		return apperrors.ValidationError("access_token is required").WithField("field", "access_token")
	}

	ctx := c.Request().Context()
	if err := s.store.SetToken(ctx, token); err != nil {
		return apperrors.InternalError("failed to store access token", err)
	}

	slog.InfoContext(ctx, "Access token stored, reloading")
	s.reloader.Reload(errTokenStored)

	return c.NoContent(http.StatusNoContent)
}
