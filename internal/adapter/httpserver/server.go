package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/jakegt1/twitch-events/internal/adapter/metrics"
	"github.com/jakegt1/twitch-events/internal/app"
	"github.com/jakegt1/twitch-events/internal/domain"
	"github.com/jakegt1/twitch-events/internal/notify"
	"github.com/jakegt1/twitch-events/internal/platform/config"
	"github.com/jakegt1/twitch-events/web"
	"github.com/labstack/echo/v4"
)

type sessionStatus interface {
	State() app.SessionState
	SessionID() string
}

type notificationFeed interface {
	Since(seq uint64) []notify.Entry
	Len() int
}

// Deps are the collaborators the HTTP surface reads from and acts on.
type Deps struct {
	Store          domain.CredentialStore
	Feed           notificationFeed
	Session        sessionStatus
	Reloader       domain.Reloader
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
	HealthChecks   []HealthCheck
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	store          domain.CredentialStore
	feed           notificationFeed
	session        sessionStatus
	reloader       domain.Reloader
	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler

	templates    *template.Template
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	templates, err := template.ParseFS(web.TemplateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		config:         cfg,
		store:          deps.Store,
		feed:           deps.Feed,
		session:        deps.Session,
		reloader:       deps.Reloader,
		httpMetrics:    deps.HTTPMetrics,
		metricsHandler: deps.MetricsHandler,
		templates:      templates,
		healthChecks:   deps.HealthChecks,
		startTime:      time.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) renderTemplate(c echo.Context, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Template execution failed", "path", c.Request().URL.Path, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
		return nil
	}
	if err := c.HTMLBlob(http.StatusOK, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}
