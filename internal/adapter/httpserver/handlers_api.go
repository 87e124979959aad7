package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jakegt1/twitch-events/internal/notify"
	apperrors "github.com/jakegt1/twitch-events/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

var errManualReload = errors.New("reload requested from the web UI")

type indexPage struct {
	State    string
	HasToken bool
	Entries  []notify.Entry
	LastSeq  uint64
}

type notificationsResponse struct {
	Entries []notify.Entry `json:"entries"`
	LastSeq uint64         `json:"last_seq"`
}

type statusResponse struct {
	State         string `json:"state"`
	SessionID     string `json:"session_id,omitempty"`
	HasToken      bool   `json:"has_token"`
	Notifications int    `json:"notifications"`
}

func (s *Server) registerAPIRoutes(sameOrigin, reloadLimiter echo.MiddlewareFunc) {
	api := s.echo.Group("/api")
	api.GET("/notifications", s.handleNotifications)
	api.GET("/status", s.handleStatus)
	api.POST("/reload", s.handleReload, sameOrigin, reloadLimiter)
}

func (s *Server) handleIndex(c echo.Context) error {
	hasToken, err := s.store.HasToken(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to read credentials", err)
	}

	entries := s.feed.Since(0)
	return s.renderTemplate(c, "index.html", indexPage{
		State:    s.session.State().String(),
		HasToken: hasToken,
		Entries:  entries,
		LastSeq:  lastSeq(entries, 0),
	})
}

func (s *Server) handleNotifications(c echo.Context) error {
	var since uint64
	if raw := c.QueryParam("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return apperrors.ValidationError("since must be a non-negative integer").WithField("since", raw)
		}
		since = v
	}

	entries := s.feed.Since(since)
	if err := c.JSON(http.StatusOK, notificationsResponse{Entries: entries, LastSeq: lastSeq(entries, since)}); err != nil {
		return fmt.Errorf("failed to write notifications response: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(c echo.Context) error {
	hasToken, err := s.store.HasToken(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to read credentials", err)
	}

	resp := statusResponse{
		State:         s.session.State().String(),
		SessionID:     s.session.SessionID(),
		HasToken:      hasToken,
		Notifications: s.feed.Len(),
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write status response: %w", err)
	}
	return nil
}

func (s *Server) handleReload(c echo.Context) error {
	slog.InfoContext(c.Request().Context(), "Reload requested")
	s.reloader.Reload(errManualReload)

	if err := c.JSON(http.StatusAccepted, map[string]string{"status": "reloading"}); err != nil {
		return fmt.Errorf("failed to write reload response: %w", err)
	}
	return nil
}

func lastSeq(entries []notify.Entry, fallback uint64) uint64 {
	if len(entries) == 0 {
		return fallback
	}
	return entries[len(entries)-1].Seq
}
