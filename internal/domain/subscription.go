package domain

import (
	"context"
	"time"
)

// SubscriptionKind is the closed set of EventSub subscription types this client registers.
type SubscriptionKind string

const (
	SubscriptionChatMessage SubscriptionKind = "channel.chat.message"
	SubscriptionFollow      SubscriptionKind = "channel.follow"
)

// SubscriptionKinds is the fixed registration list, in creation order.
var SubscriptionKinds = []SubscriptionKind{SubscriptionChatMessage, SubscriptionFollow}

// Version returns the EventSub version tag the platform requires for the kind.
func (k SubscriptionKind) Version() string {
	switch k {
	case SubscriptionChatMessage:
		return "1"
	case SubscriptionFollow:
		return "2"
	default:
		return ""
	}
}

func ParseSubscriptionKind(s string) (SubscriptionKind, bool) {
	switch SubscriptionKind(s) {
	case SubscriptionChatMessage, SubscriptionFollow:
		return SubscriptionKind(s), true
	default:
		return "", false
	}
}

// Session is issued by the platform on connect and lives as long as one socket connection.
type Session struct {
	ID          string
	ConnectedAt time.Time
}

// Subscription is a server-side registration routing one event kind to a session.
type Subscription struct {
	ID        string
	Type      SubscriptionKind
	Version   string
	Status    string
	SessionID string
}

type User struct {
	ID          string
	Login       string
	DisplayName string
}

// DeleteOutcome is the result of deleting one subscription during a bulk delete.
type DeleteOutcome struct {
	SubscriptionID string
	Err            error
}

// FailedDeletes returns the outcomes that did not succeed.
func FailedDeletes(outcomes []DeleteOutcome) []DeleteOutcome {
	var failed []DeleteOutcome
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// SubscriptionService manages EventSub subscriptions on the platform for the current user.
type SubscriptionService interface {
	DeleteAllSubscriptions(ctx context.Context) ([]DeleteOutcome, error)
	CreateSubscription(ctx context.Context, sessionID string, kind SubscriptionKind, version string) (string, error)
}

// Reloader performs the hard reset that follows a fatal subscription failure.
type Reloader interface {
	Reload(reason error)
}
