package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EventSubMetrics tracks the EventSub session lifecycle and subscription reconciliation.
type EventSubMetrics struct {
	Connections            *prometheus.CounterVec
	FramesReceived         *prometheus.CounterVec
	FrameDecodeErrors      prometheus.Counter
	NotificationsAppended  *prometheus.CounterVec
	SubscriptionOps        *prometheus.CounterVec
	ReconciliationDuration prometheus.Histogram
	SessionState           *prometheus.GaugeVec
	Reloads                prometheus.Counter
}

func NewEventSubMetrics(reg prometheus.Registerer) *EventSubMetrics {
	m := &EventSubMetrics{
		Connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventsub",
			Name:      "connections_total",
			Help:      "EventSub socket connection attempts by result.",
		}, []string{"result"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventsub",
			Name:      "frames_received_total",
			Help:      "Inbound EventSub frames by message type.",
		}, []string{"message_type"}),
		FrameDecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventsub",
			Name:      "frame_decode_errors_total",
			Help:      "Inbound frames that could not be decoded.",
		}),
		NotificationsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventsub",
			Name:      "notifications_appended_total",
			Help:      "Notifications appended to the feed by severity.",
		}, []string{"severity"}),
		SubscriptionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventsub",
			Name:      "subscription_operations_total",
			Help:      "Subscription create and delete calls by result.",
		}, []string{"operation", "result"}),
		ReconciliationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "eventsub",
			Name:      "reconciliation_duration_seconds",
			Help:      "Time from welcome frame to ready notification.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		SessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "eventsub",
			Name:      "session_state",
			Help:      "1 for the current session state, absent otherwise.",
		}, []string{"state"}),
		Reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventsub",
			Name:      "reloads_total",
			Help:      "Hard resets requested after fatal failures or by the user.",
		}),
	}

	reg.MustRegister(
		m.Connections,
		m.FramesReceived,
		m.FrameDecodeErrors,
		m.NotificationsAppended,
		m.SubscriptionOps,
		m.ReconciliationDuration,
		m.SessionState,
		m.Reloads,
	)
	return m
}

// SetSessionState leaves exactly one state series set.
func (m *EventSubMetrics) SetSessionState(state string) {
	m.SessionState.Reset()
	m.SessionState.WithLabelValues(state).Set(1)
}

// ObserveSubscriptionOp counts one create or delete call.
func (m *EventSubMetrics) ObserveSubscriptionOp(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.SubscriptionOps.WithLabelValues(operation, result).Inc()
}

func (m *EventSubMetrics) ObserveConnection(result string) {
	m.Connections.WithLabelValues(result).Inc()
}

func (m *EventSubMetrics) ObserveFrame(messageType string) {
	m.FramesReceived.WithLabelValues(messageType).Inc()
}

func (m *EventSubMetrics) ObserveDecodeError() {
	m.FrameDecodeErrors.Inc()
}

func (m *EventSubMetrics) ObserveNotification(severity string) {
	m.NotificationsAppended.WithLabelValues(severity).Inc()
}

func (m *EventSubMetrics) ObserveReconciliation(elapsed time.Duration) {
	m.ReconciliationDuration.Observe(elapsed.Seconds())
}

func (m *EventSubMetrics) ObserveReload() {
	m.Reloads.Inc()
}
