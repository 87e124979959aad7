package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultPollInitial = 500 * time.Millisecond
	defaultPollMax     = 10 * time.Second
)

var (
	ErrReloadRequested = errors.New("reload requested")
	errNoToken         = errors.New("no access token stored yet")
)

// Runner runs one connection until it ends.
type Runner interface {
	Run(ctx context.Context) error
}

type TokenChecker interface {
	HasToken(ctx context.Context) (bool, error)
}

// Supervisor performs the hard reset. After a connection ends it waits for a reload
// request and never reconnects on its own.
type Supervisor struct {
	tokens      TokenChecker
	metrics     ReloadMetrics
	pollInitial time.Duration
	pollMax     time.Duration

	mu      sync.Mutex
	cancel  context.CancelCauseFunc
	reloads chan error
}

func NewSupervisor(tokens TokenChecker, m ReloadMetrics) *Supervisor {
	if m == nil {
		m = noopMetrics{}
	}
	return &Supervisor{
		tokens:      tokens,
		metrics:     m,
		pollInitial: defaultPollInitial,
		pollMax:     defaultPollMax,
		reloads:     make(chan error, 1),
	}
}

// Reload cancels the running connection and queues a restart. It never blocks.
func (s *Supervisor) Reload(reason error) {
	if reason == nil {
		reason = ErrReloadRequested
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel(reason)
	}
	select {
	case s.reloads <- reason:
	default:
	}

	s.metrics.ObserveReload()
}

// Run blocks until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context, runner Runner) error {
	for {
		if err := s.awaitCredentials(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		runCtx, cancel := context.WithCancelCause(ctx)
		s.mu.Lock()
		s.drainReloads()
		s.cancel = cancel
		s.mu.Unlock()

		err := runner.Run(runCtx)

		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel(nil)

		if ctx.Err() != nil {
			return nil
		}
		slog.InfoContext(ctx, "Connection ended, waiting for reload", "error", err)

		select {
		case reason := <-s.reloads:
			slog.InfoContext(ctx, "Reloading", "reason", reason)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Supervisor) awaitCredentials(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.pollInitial
	b.MaxInterval = s.pollMax
	b.Reset()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := s.tokens.HasToken(ctx)
		if err != nil {
			return struct{}{}, err
		}
		if !ok {
			return struct{}{}, errNoToken
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.DebugContext(ctx, "Waiting for credentials", "error", err, "next_check", next.String())
		}),
	)
	return err
}

// drainReloads discards requests queued before a fresh connection starts. Callers hold s.mu.
func (s *Supervisor) drainReloads() {
	for {
		select {
		case <-s.reloads:
		default:
			return
		}
	}
}
