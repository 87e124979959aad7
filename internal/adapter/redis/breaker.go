package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jakegt1/twitch-events/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultBreakerFailures = 5
	defaultBreakerDelay    = 30 * time.Second
)

// CircuitBreakerHook rejects commands while Redis keeps failing, so token
// lookups and health checks return at once instead of waiting on dial timeouts.
// Rejected commands fail with an error wrapping circuitbreaker.ErrOpen.
type CircuitBreakerHook struct {
	cb circuitbreaker.CircuitBreaker[any]
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

type breakerSettings struct {
	failures uint
	delay    time.Duration
}

// BreakerOption tunes a CircuitBreakerHook.
type BreakerOption func(*breakerSettings)

// WithBreakerFailures sets how many consecutive failures open the breaker.
func WithBreakerFailures(n uint) BreakerOption {
	return func(s *breakerSettings) { s.failures = n }
}

// WithBreakerDelay sets how long the breaker stays open before letting a trial command through.
func WithBreakerDelay(d time.Duration) BreakerOption {
	return func(s *breakerSettings) { s.delay = d }
}

// NewCircuitBreakerHook builds a breaker that opens after consecutive failures
// and closes again after one successful trial command. m may be nil.
func NewCircuitBreakerHook(m *metrics.RedisMetrics, opts ...BreakerOption) *CircuitBreakerHook {
	settings := breakerSettings{failures: defaultBreakerFailures, delay: defaultBreakerDelay}
	for _, opt := range opts {
		opt(&settings)
	}

	cb := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(settings.failures).
		WithDelay(settings.delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Redis circuit breaker state changed", "from", e.OldState.String(), "to", e.NewState.String())
			if m != nil {
				m.BreakerTransitions.WithLabelValues(e.NewState.String()).Inc()
				m.BreakerState.Set(stateValue(e.NewState))
			}
		}).
		Build()

	return &CircuitBreakerHook{cb: cb}
}

// State returns the breaker's current state.
func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}

func stateValue(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !h.cb.TryAcquirePermit() {
			return nil, fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}
		conn, err := next(ctx, network, addr)
		h.record(err)
		return conn, err
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			err := fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
			cmd.SetErr(err)
			return err
		}
		err := next(ctx, cmd)
		h.record(err)
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			err := fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
			for _, cmd := range cmds {
				cmd.SetErr(err)
			}
			return err
		}
		err := next(ctx, cmds)
		h.record(err)
		return err
	}
}

func (h *CircuitBreakerHook) record(err error) {
	// a missing key means Redis answered
	if err != nil && !errors.Is(err, goredis.Nil) {
		h.cb.RecordError(err)
		return
	}
	h.cb.RecordSuccess()
}
