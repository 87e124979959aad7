package app

import (
	"fmt"
	"strings"

	"github.com/jakegt1/twitch-events/internal/domain"
)

const (
	unknownHeader = "Unknown"
	unknownBody   = "Received an event this client does not understand."
	emptyChatBody = "(empty message)"
)

// UnknownEvent is shown for any kind or payload the normalizer cannot map.
var UnknownEvent = domain.NormalizedEvent{
	Severity: domain.SeverityPlain,
	Header:   unknownHeader,
	Body:     unknownBody,
}

// Normalize maps a notification payload to the display shape. timestamp is the
// frame's message_timestamp and is used verbatim.
func Normalize(kind domain.SubscriptionKind, event domain.Event, timestamp string) domain.NormalizedEvent {
	switch kind {
	case domain.SubscriptionChatMessage:
		if e, ok := event.(domain.ChatMessageEvent); ok {
			return domain.NormalizedEvent{
				Severity: domain.SeverityPlain,
				Header:   header(e.ChatterUserName, timestamp),
				Body:     chatBody(e.Message.Text),
			}
		}
	case domain.SubscriptionFollow:
		if e, ok := event.(domain.FollowEvent); ok {
			return domain.NormalizedEvent{
				Severity: domain.SeverityInfo,
				Header:   header(e.UserName, timestamp),
				Body:     fmt.Sprintf("%s followed the channel!", e.UserName),
			}
		}
	}
	return UnknownEvent
}

func chatBody(text string) string {
	if strings.TrimSpace(text) == "" {
		return emptyChatBody
	}
	return text
}

func header(actor, timestamp string) string {
	return actor + " | " + timestamp
}
