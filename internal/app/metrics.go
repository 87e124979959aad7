package app

import "time"

// SessionMetrics receives observations from the session handler.
type SessionMetrics interface {
	ObserveConnection(result string)
	ObserveFrame(messageType string)
	ObserveDecodeError()
	ObserveNotification(severity string)
	ObserveSubscriptionOp(operation string, err error)
	ObserveReconciliation(elapsed time.Duration)
	SetSessionState(state string)
}

// ReloadMetrics counts hard resets.
type ReloadMetrics interface {
	ObserveReload()
}

type noopMetrics struct{}

func (noopMetrics) ObserveConnection(string)            {}
func (noopMetrics) ObserveFrame(string)                 {}
func (noopMetrics) ObserveDecodeError()                 {}
func (noopMetrics) ObserveNotification(string)          {}
func (noopMetrics) ObserveSubscriptionOp(string, error) {}
func (noopMetrics) ObserveReconciliation(time.Duration) {}
func (noopMetrics) SetSessionState(string)              {}
func (noopMetrics) ObserveReload()                      {}
