package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jakegt1/twitch-events/internal/adapter/console"
	"github.com/jakegt1/twitch-events/internal/adapter/httpserver"
	"github.com/jakegt1/twitch-events/internal/adapter/memory"
	"github.com/jakegt1/twitch-events/internal/adapter/metrics"
	"github.com/jakegt1/twitch-events/internal/adapter/redis"
	"github.com/jakegt1/twitch-events/internal/adapter/twitch"
	"github.com/jakegt1/twitch-events/internal/app"
	"github.com/jakegt1/twitch-events/internal/domain"
	"github.com/jakegt1/twitch-events/internal/notify"
	"github.com/jakegt1/twitch-events/internal/platform/config"
	"github.com/jakegt1/twitch-events/internal/platform/crypto"
	"github.com/jakegt1/twitch-events/internal/platform/logging"
	"github.com/jakegt1/twitch-events/internal/platform/version"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 10 * time.Second

var errReloadSignal = errors.New("SIGHUP received")

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupStore returns the credential store and a cleanup func.
func setupStore(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (domain.CredentialStore, func()) {
	if cfg.CredentialStore != config.CredentialStoreRedis {
		return memory.NewCredentialStore(), func() {}
	}

	tokenCipher, err := crypto.New(cfg.TokenEncryptionKey)
	if err != nil {
		slog.Error("Failed to create token cipher", "error", err)
		os.Exit(1)
	}

	redisMetrics := metrics.NewRedisMetrics(reg)
	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewMetricsHook(redisMetrics))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	// installed after connecting so the startup ping retries are not cut short
	client.AddHook(redis.NewCircuitBreakerHook(redisMetrics))
	return redis.NewCredentialStore(client, redis.WithCipher(tokenCipher)), func() { _ = client.Close() }
}

func seedToken(ctx context.Context, cfg *config.Config, store domain.CredentialStore) {
	if cfg.TwitchAccessToken == "" {
		return
	}
	if err := store.SetToken(ctx, cfg.TwitchAccessToken); err != nil {
		slog.Error("Failed to seed access token", "error", err)
		os.Exit(1)
	}
	slog.Info("Access token seeded from environment")
}

func runConsole(ctx context.Context, wg *sync.WaitGroup, feed *notify.Feed) {
	renderer := console.NewRenderer(os.Stdout, lipgloss.NewRenderer(os.Stdout))
	wg.Go(func() {
		if err := renderer.Run(ctx, feed); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Console renderer stopped", "error", err)
		}
	})
}

func watchReloadSignal(ctx context.Context, sup *app.Supervisor) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				slog.Info("Reload signal received")
				sup.Reload(errReloadSignal)
			}
		}
	}()
}

func runGracefulShutdown(srv *httpserver.Server, stop context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Version)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	registry := metrics.NewRegistry()

	store, closeStore := setupStore(ctx, cfg, registry)
	defer closeStore()
	seedToken(ctx, cfg, store)

	eventSubMetrics := metrics.NewEventSubMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	feed := notify.NewFeed(clock)
	sup := app.NewSupervisor(store, eventSubMetrics)

	client := twitch.NewClient(cfg.TwitchClientID, store,
		twitch.WithAPIURL(cfg.TwitchAPIURL),
		twitch.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		twitch.WithReloader(sup),
	)

	session := app.NewSessionHandler(app.SessionConfig{
		Dialer:        twitch.NewDialer(cfg.EventSubURL),
		Decode:        twitch.DecodeFrame,
		Subscriptions: client,
		Sink:          feed,
		Clock:         clock,
		Metrics:       eventSubMetrics,
	})

	srv, err := httpserver.NewServer(cfg, httpserver.Deps{
		Store:          store,
		Feed:           feed,
		Session:        session,
		Reloader:       sup,
		HTTPMetrics:    httpMetrics,
		MetricsHandler: metrics.Handler(registry),
		HealthChecks: []httpserver.HealthCheck{
			{Name: "credential_store", Check: store.Ping},
		},
	})
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	if cfg.ConsoleOutput {
		runConsole(ctx, &wg, feed)
	}

	wg.Go(func() {
		if err := sup.Run(ctx, session); err != nil {
			slog.Error("Supervisor stopped", "error", err)
		}
	})
	watchReloadSignal(ctx, sup)

	done := runGracefulShutdown(srv, stop)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		stop()
		wg.Wait()
		os.Exit(1)
	}

	<-done
	wg.Wait()
	slog.Info("Shutdown complete")
}
