// Package redis persists credentials in Redis so a restart keeps the user logged in.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakegt1/twitch-events/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
)

var pingPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Redis ping failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

// NewClient parses redisURL, installs hooks and pings the server until it answers or the
// policy gives up.
func NewClient(ctx context.Context, redisURL string, hooks ...goredis.Hook) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)
	for _, hook := range hooks {
		client.AddHook(hook)
	}
	err = retry.DoVoid(ctx, pingPolicy, retry.Always, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
