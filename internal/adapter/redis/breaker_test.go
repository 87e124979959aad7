package redis

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jakegt1/twitch-events/internal/adapter/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingProcess(context.Context, goredis.Cmder) error {
	return errors.New("connection refused")
}

func tripBreaker(t *testing.T, hook *CircuitBreakerHook, n int) {
	t.Helper()
	ctx := context.Background()
	process := hook.ProcessHook(failingProcess)
	for range n {
		_ = process(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	}
}

func TestCircuitBreakerHook_StartsClosed(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	ctx := context.Background()

	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return nil })
	for range 10 {
		require.NoError(t, process(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	}

	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_OpensAfterConsecutiveFailures(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	hook := NewCircuitBreakerHook(m, WithBreakerFailures(3))

	tripBreaker(t, hook, 2)
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())

	tripBreaker(t, hook, 1)
	assert.Equal(t, circuitbreaker.OpenState, hook.State())
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.BreakerState) == 2 &&
			testutil.ToFloat64(m.BreakerTransitions.WithLabelValues(circuitbreaker.OpenState.String())) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCircuitBreakerHook_MissingKeyDoesNotTrip(t *testing.T) {
	hook := NewCircuitBreakerHook(nil, WithBreakerFailures(2))
	ctx := context.Background()

	missing := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })
	for range 5 {
		assert.ErrorIs(t, missing(ctx, goredis.NewStringCmd(ctx, "get", "key")), goredis.Nil)
	}

	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_FailsFastWhenOpen(t *testing.T) {
	hook := NewCircuitBreakerHook(nil, WithBreakerFailures(2))
	tripBreaker(t, hook, 2)
	require.Equal(t, circuitbreaker.OpenState, hook.State())

	ctx := context.Background()
	called := false
	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		called = true
		return nil
	})
	cmd := goredis.NewStringCmd(ctx, "get", "key")
	err := process(ctx, cmd)

	require.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, cmd.Err(), circuitbreaker.ErrOpen)
	assert.False(t, called, "redis must not be called while the breaker is open")

	dialed := false
	dial := hook.DialHook(func(context.Context, string, string) (net.Conn, error) {
		dialed = true
		return nil, nil
	})
	_, err = dial(ctx, "tcp", "127.0.0.1:6379")
	require.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.False(t, dialed)

	cmds := []goredis.Cmder{goredis.NewStatusCmd(ctx, "set", "a", "1"), goredis.NewIntCmd(ctx, "del", "b")}
	pipeline := hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error { return nil })
	require.ErrorIs(t, pipeline(ctx, cmds), circuitbreaker.ErrOpen)
	for _, c := range cmds {
		assert.ErrorIs(t, c.Err(), circuitbreaker.ErrOpen)
	}
}

func TestCircuitBreakerHook_ClosesAfterSuccessfulTrial(t *testing.T) {
	hook := NewCircuitBreakerHook(nil, WithBreakerFailures(2), WithBreakerDelay(50*time.Millisecond))
	tripBreaker(t, hook, 2)
	require.Equal(t, circuitbreaker.OpenState, hook.State())

	time.Sleep(100 * time.Millisecond)

	ctx := context.Background()
	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return nil })
	require.NoError(t, process(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCredentialStore_FailsFastWhileRedisIsDown(t *testing.T) {
	hook := NewCircuitBreakerHook(nil, WithBreakerFailures(2), WithBreakerDelay(time.Minute))
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	client.AddHook(hook)
	store := NewCredentialStore(client)
	ctx := context.Background()

	for range 2 {
		err := store.Ping(ctx)
		require.Error(t, err)
	}
	require.Equal(t, circuitbreaker.OpenState, hook.State())

	start := time.Now()
	assert.ErrorIs(t, store.Ping(ctx), circuitbreaker.ErrOpen)
	_, err := store.Token(ctx)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	_, err = store.HasToken(ctx)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
