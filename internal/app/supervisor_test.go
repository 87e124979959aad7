package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jakegt1/twitch-events/internal/adapter/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type switchTokens struct {
	has atomic.Bool
}

func (s *switchTokens) HasToken(context.Context) (bool, error) {
	return s.has.Load(), nil
}

// blockingRunner records each run and blocks until its context ends or release is called.
type blockingRunner struct {
	mu      sync.Mutex
	runs    int
	causes  []error
	started chan struct{}
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 10), release: make(chan struct{}, 10)}
}

func (r *blockingRunner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
	r.started <- struct{}{}

	select {
	case <-ctx.Done():
		r.mu.Lock()
		r.causes = append(r.causes, context.Cause(ctx))
		r.mu.Unlock()
		return context.Cause(ctx)
	case <-r.release:
		return errors.New("socket closed")
	}
}

func (r *blockingRunner) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func waitStarted(t *testing.T, r *blockingRunner) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not start")
	}
}

func fastSupervisor(tokens TokenChecker, m ReloadMetrics) *Supervisor {
	s := NewSupervisor(tokens, m)
	s.pollInitial = time.Millisecond
	s.pollMax = 5 * time.Millisecond
	return s
}

func TestSupervisor_WaitsForCredentials(t *testing.T) {
	tokens := &switchTokens{}
	runner := newBlockingRunner()
	sup := fastSupervisor(tokens, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sup.Run(ctx, runner) }()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, runner.runCount())

	tokens.has.Store(true)
	waitStarted(t, runner)
	assert.Equal(t, 1, runner.runCount())
}

func TestSupervisor_ReloadCancelsAndRestarts(t *testing.T) {
	tokens := &switchTokens{}
	tokens.has.Store(true)
	runner := newBlockingRunner()
	m := metrics.NewEventSubMetrics(prometheus.NewRegistry())
	sup := fastSupervisor(tokens, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sup.Run(ctx, runner) }()

	waitStarted(t, runner)
	fatal := errors.New("create failed")
	sup.Reload(fatal)
	waitStarted(t, runner)

	assert.Equal(t, 2, runner.runCount())
	runner.mu.Lock()
	assert.Equal(t, []error{fatal}, runner.causes)
	runner.mu.Unlock()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reloads))
}

func TestSupervisor_DisconnectDoesNotReconnect(t *testing.T) {
	tokens := &switchTokens{}
	tokens.has.Store(true)
	runner := newBlockingRunner()
	sup := fastSupervisor(tokens, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sup.Run(ctx, runner) }()

	waitStarted(t, runner)
	runner.release <- struct{}{}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, runner.runCount())

	sup.Reload(nil)
	waitStarted(t, runner)
	assert.Equal(t, 2, runner.runCount())
}

func TestSupervisor_ReloadAfterCredentialResetWaitsForNewToken(t *testing.T) {
	tokens := &switchTokens{}
	tokens.has.Store(true)
	runner := newBlockingRunner()
	sup := fastSupervisor(tokens, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sup.Run(ctx, runner) }()

	waitStarted(t, runner)
	tokens.has.Store(false)
	sup.Reload(errors.New("token wiped"))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, runner.runCount())

	tokens.has.Store(true)
	waitStarted(t, runner)
	assert.Equal(t, 2, runner.runCount())
}

func TestSupervisor_ReloadNeverBlocks(t *testing.T) {
	sup := NewSupervisor(&switchTokens{}, nil)

	done := make(chan struct{})
	go func() {
		for range 5 {
			sup.Reload(nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Reload blocked")
	}
}

func TestSupervisor_ReturnsOnShutdown(t *testing.T) {
	tokens := &switchTokens{}
	tokens.has.Store(true)
	runner := newBlockingRunner()
	sup := fastSupervisor(tokens, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(ctx, runner) }()

	waitStarted(t, runner)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
