package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jakegt1/twitch-events/internal/domain"
	"github.com/jakegt1/twitch-events/internal/platform/correlation"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultKeepaliveTimeout applies until the welcome frame announces the real one.
	DefaultKeepaliveTimeout = 10 * time.Second
	DefaultKeepaliveGrace   = 5 * time.Second
)

var ErrKeepaliveTimeout = errors.New("no frame received within keepalive timeout")

type SessionState int

const (
	StateConnecting SessionState = iota
	StateBound
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateBound:
		return "bound"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var (
	connectingNotification = domain.NormalizedEvent{
		Severity: domain.SeverityInfo,
		Header:   "Connecting",
		Body:     "Connected to Twitch EventSub, waiting for a session.",
	}
	readyNotification = domain.NormalizedEvent{
		Severity: domain.SeveritySuccess,
		Header:   "Ready",
		Body:     "Subscribed to chat messages and follows.",
	}
	disconnectedNotification = domain.NormalizedEvent{
		Severity: domain.SeverityError,
		Header:   "Disconnected",
		Body:     "Lost the connection to Twitch. Reload to reconnect.",
	}
)

// FrameDecoder turns one raw socket message into an InboundFrame.
type FrameDecoder func(raw []byte) (domain.InboundFrame, error)

type SessionConfig struct {
	Dialer        domain.SocketDialer
	Decode        FrameDecoder
	Subscriptions domain.SubscriptionService
	Sink          domain.NotificationSink
	Clock         clockwork.Clock
	Metrics       SessionMetrics

	// Kinds defaults to domain.SubscriptionKinds.
	Kinds          []domain.SubscriptionKind
	KeepaliveGrace time.Duration
}

// SessionHandler runs the connection state machine. Run may be called again after it
// returns. Frames are handled one at a time on the calling goroutine.
type SessionHandler struct {
	dialer  domain.SocketDialer
	decode  FrameDecoder
	subs    domain.SubscriptionService
	sink    domain.NotificationSink
	clock   clockwork.Clock
	metrics SessionMetrics
	kinds   []domain.SubscriptionKind
	grace   time.Duration

	mu        sync.RWMutex
	state     SessionState
	sessionID string
}

func NewSessionHandler(cfg SessionConfig) *SessionHandler {
	h := &SessionHandler{
		dialer:  cfg.Dialer,
		decode:  cfg.Decode,
		subs:    cfg.Subscriptions,
		sink:    cfg.Sink,
		clock:   cfg.Clock,
		metrics: cfg.Metrics,
		kinds:   cfg.Kinds,
		grace:   cfg.KeepaliveGrace,
	}
	if h.metrics == nil {
		h.metrics = noopMetrics{}
	}
	if h.clock == nil {
		h.clock = clockwork.NewRealClock()
	}
	if len(h.kinds) == 0 {
		h.kinds = domain.SubscriptionKinds
	}
	if h.grace <= 0 {
		h.grace = DefaultKeepaliveGrace
	}
	return h
}

func (h *SessionHandler) State() SessionState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// SessionID is empty unless the handler is Bound.
func (h *SessionHandler) SessionID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessionID
}

// Run dials one connection and processes frames until the socket closes or ctx is
// cancelled. It always ends Disconnected with exactly one error notification.
func (h *SessionHandler) Run(ctx context.Context) error {
	ctx, connID := correlation.WithNewID(ctx)
	h.setState(StateConnecting, "")

	socket, err := h.dialer.Dial(ctx)
	if err != nil {
		h.observeConnection("error")
		err = fmt.Errorf("failed to connect: %w", err)
		h.disconnect(ctx, err)
		return err
	}
	h.observeConnection("success")

	slog.InfoContext(ctx, "EventSub socket opened", "connection_id", connID)
	h.notify(connectingNotification)

	stopClose := context.AfterFunc(ctx, func() { _ = socket.Close() })
	defer stopClose()

	var timedOut atomic.Bool
	watchdog := h.clock.AfterFunc(DefaultKeepaliveTimeout+h.grace, func() {
		timedOut.Store(true)
		_ = socket.Close()
	})
	defer watchdog.Stop()

	err = h.readLoop(ctx, socket, watchdog)
	switch {
	case ctx.Err() != nil:
		err = context.Cause(ctx)
	case timedOut.Load():
		err = ErrKeepaliveTimeout
	}

	_ = socket.Close()
	h.disconnect(ctx, err)
	return err
}

func (h *SessionHandler) readLoop(ctx context.Context, socket domain.EventSocket, watchdog clockwork.Timer) error {
	keepalive := DefaultKeepaliveTimeout

	for {
		raw, err := socket.ReadMessage()
		if err != nil {
			return fmt.Errorf("socket read failed: %w", err)
		}
		// Handling a frame may take several API round trips.
		watchdog.Stop()

		frame, err := h.decode(raw)
		if err != nil {
			slog.WarnContext(ctx, "Dropping undecodable frame", "error", err)
			h.metrics.ObserveDecodeError()
			watchdog.Reset(keepalive + h.grace)
			continue
		}

		meta := frame.Meta()
		h.metrics.ObserveFrame(meta.MessageType)

		switch f := frame.(type) {
		case domain.WelcomeFrame:
			if f.KeepaliveTimeout > 0 {
				keepalive = f.KeepaliveTimeout
			}
			if err := h.reconcile(ctx, f.Session); err != nil {
				return err
			}
		case domain.NotificationFrame:
			h.onNotification(ctx, f)
		case domain.KeepaliveFrame:
			slog.DebugContext(ctx, "Keepalive received", "message_id", meta.MessageID)
		case domain.ReconnectFrame:
			slog.WarnContext(ctx, "Reconnect requested by Twitch, ignoring", "reconnect_url", f.ReconnectURL)
		case domain.RevocationFrame:
			slog.WarnContext(ctx, "Subscription revoked", "subscription_id", f.SubscriptionID, "type", meta.SubscriptionType, "status", f.Status)
		default:
			slog.InfoContext(ctx, "Dropping unknown frame", "message_type", meta.MessageType, "subscription_type", meta.SubscriptionType)
		}

		watchdog.Reset(keepalive + h.grace)
	}
}

// reconcile replaces every server-side subscription with a fresh set bound to session.
// Delete failures are tolerated. The first failed create aborts.
func (h *SessionHandler) reconcile(ctx context.Context, session domain.Session) error {
	start := h.clock.Now()
	slog.InfoContext(ctx, "Session welcome received", "session_id", session.ID)

	outcomes, err := h.subs.DeleteAllSubscriptions(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to list subscriptions for cleanup", "error", err)
		h.observeOp("list", err)
	}
	for _, o := range outcomes {
		h.observeOp("delete", o.Err)
		if o.Err != nil {
			slog.WarnContext(ctx, "Failed to delete stale subscription", "subscription_id", o.SubscriptionID, "error", o.Err)
		}
	}

	for _, kind := range h.kinds {
		id, err := h.subs.CreateSubscription(ctx, session.ID, kind, kind.Version())
		h.observeOp("create", err)
		if err != nil {
			return fmt.Errorf("failed to create %s subscription: %w", kind, err)
		}
		slog.DebugContext(ctx, "Subscription registered", "subscription_id", id, "type", kind)
	}

	h.setState(StateBound, session.ID)
	h.metrics.ObserveReconciliation(h.clock.Since(start))

	slog.InfoContext(ctx, "Session bound", "session_id", session.ID, "subscriptions", len(h.kinds),
		"stale_deleted", len(outcomes)-len(domain.FailedDeletes(outcomes)))
	h.notify(readyNotification)
	return nil
}

func (h *SessionHandler) onNotification(ctx context.Context, f domain.NotificationFrame) {
	if h.State() != StateBound {
		slog.WarnContext(ctx, "Dropping notification received before session was bound", "type", f.Kind, "message_id", f.MessageID)
		return
	}
	h.notify(Normalize(f.Kind, f.Event, f.Timestamp))
}

func (h *SessionHandler) disconnect(ctx context.Context, cause error) {
	h.setState(StateDisconnected, "")
	slog.WarnContext(ctx, "EventSub session disconnected", "error", cause)
	h.notify(disconnectedNotification)
}

func (h *SessionHandler) setState(state SessionState, sessionID string) {
	h.mu.Lock()
	h.state = state
	h.sessionID = sessionID
	h.mu.Unlock()

	h.metrics.SetSessionState(state.String())
}

func (h *SessionHandler) notify(event domain.NormalizedEvent) {
	h.sink.Append(event)
	h.metrics.ObserveNotification(string(event.Severity))
}

func (h *SessionHandler) observeOp(operation string, err error) {
	h.metrics.ObserveSubscriptionOp(operation, err)
}

func (h *SessionHandler) observeConnection(result string) {
	h.metrics.ObserveConnection(result)
}
