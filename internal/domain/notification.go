package domain

type Severity string

const (
	SeverityPlain   Severity = "plain"
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// NormalizedEvent is the only shape the display layer understands.
type NormalizedEvent struct {
	Severity Severity `json:"severity"`
	Header   string   `json:"header"`
	Body     string   `json:"body"`
}

// NotificationSink is an ordered, append-only list of notifications.
type NotificationSink interface {
	Append(event NormalizedEvent)
}
