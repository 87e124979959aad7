package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	CredentialStoreMemory = "memory"
	CredentialStoreRedis  = "redis"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	TwitchClientID    string `env:"TWITCH_CLIENT_ID"`
	TwitchAccessToken string `env:"TWITCH_ACCESS_TOKEN"`
	TwitchRedirectURI string `env:"TWITCH_REDIRECT_URI" default:"http://localhost:8080/auth/callback"`
	TwitchScopes      string `env:"TWITCH_SCOPES" default:"user:read:chat moderator:read:followers"`
	TwitchAPIURL      string `env:"TWITCH_API_URL" default:"https://api.twitch.tv/helix"`
	EventSubURL       string `env:"EVENTSUB_WEBSOCKET_URL" default:"wss://eventsub.wss.twitch.tv/ws"`

	CredentialStore string `env:"CREDENTIAL_STORE" default:"memory"`
	RedisURL        string `env:"REDIS_URL"`

	// 64 hex chars. Seals the access token in Redis when set.
	TokenEncryptionKey string `env:"TOKEN_ENCRYPTION_KEY"`

	ConsoleOutput bool          `env:"CONSOLE_OUTPUT" default:"true"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsDevelopment reports whether the app runs outside production.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv != "production"
}

func validate(cfg *Config) error {
	if cfg.TwitchClientID == "" {
		return errors.New("TWITCH_CLIENT_ID is required")
	}

	for name, raw := range map[string]string{
		"TWITCH_REDIRECT_URI":    cfg.TwitchRedirectURI,
		"TWITCH_API_URL":         cfg.TwitchAPIURL,
		"EVENTSUB_WEBSOCKET_URL": cfg.EventSubURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}

	if scheme := strings.SplitN(cfg.EventSubURL, "://", 2)[0]; scheme != "ws" && scheme != "wss" {
		return fmt.Errorf("EVENTSUB_WEBSOCKET_URL must use ws or wss, got %q", scheme)
	}

	switch cfg.CredentialStore {
	case CredentialStoreMemory:
	case CredentialStoreRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required")
		}
	default:
		return fmt.Errorf("CREDENTIAL_STORE must be %q or %q, got %q", CredentialStoreMemory, CredentialStoreRedis, cfg.CredentialStore)
	}

	if k := cfg.TokenEncryptionKey; k != "" {
		if _, err := hex.DecodeString(k); err != nil || len(k) != 64 {
			return errors.New("TOKEN_ENCRYPTION_KEY must be 64 hex characters")
		}
	}

	if cfg.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}

	return nil
}
