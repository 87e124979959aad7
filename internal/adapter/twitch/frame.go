package twitch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jakegt1/twitch-events/internal/domain"
)

type wireFrame struct {
	Metadata struct {
		MessageID        string `json:"message_id"`
		MessageType      string `json:"message_type"`
		MessageTimestamp string `json:"message_timestamp"`
		SubscriptionType string `json:"subscription_type"`
	} `json:"metadata"`
	Payload struct {
		Session      *wireSession      `json:"session"`
		Subscription *wireSubscription `json:"subscription"`
		Event        json.RawMessage   `json:"event"`
	} `json:"payload"`
}

type wireSession struct {
	ID                      string    `json:"id"`
	Status                  string    `json:"status"`
	KeepaliveTimeoutSeconds *int      `json:"keepalive_timeout_seconds"`
	ReconnectURL            *string   `json:"reconnect_url"`
	ConnectedAt             time.Time `json:"connected_at"`
}

type wireSubscription struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// DecodeFrame parses one raw socket message into its InboundFrame variant.
// Errors wrap domain.ErrMalformedFrame.
func DecodeFrame(raw []byte) (domain.InboundFrame, error) {
	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedFrame, err)
	}

	meta := domain.FrameMetadata{
		MessageID:        w.Metadata.MessageID,
		MessageType:      w.Metadata.MessageType,
		Timestamp:        w.Metadata.MessageTimestamp,
		SubscriptionType: w.Metadata.SubscriptionType,
	}
	if meta.SubscriptionType == "" && w.Payload.Subscription != nil {
		meta.SubscriptionType = w.Payload.Subscription.Type
	}

	switch meta.MessageType {
	case domain.MessageTypeWelcome:
		return decodeWelcome(meta, w.Payload.Session)
	case domain.MessageTypeKeepalive:
		return domain.KeepaliveFrame{FrameMetadata: meta}, nil
	case domain.MessageTypeNotification:
		return decodeNotification(meta, w.Payload.Event)
	case domain.MessageTypeReconnect:
		f := domain.ReconnectFrame{FrameMetadata: meta}
		if s := w.Payload.Session; s != nil && s.ReconnectURL != nil {
			f.ReconnectURL = *s.ReconnectURL
		}
		return f, nil
	case domain.MessageTypeRevocation:
		f := domain.RevocationFrame{FrameMetadata: meta}
		if s := w.Payload.Subscription; s != nil {
			f.SubscriptionID = s.ID
			f.Status = s.Status
		}
		return f, nil
	default:
		return domain.UnknownFrame{FrameMetadata: meta}, nil
	}
}

func decodeWelcome(meta domain.FrameMetadata, s *wireSession) (domain.InboundFrame, error) {
	if s == nil || s.ID == "" {
		return nil, fmt.Errorf("%w: welcome without session id", domain.ErrMalformedFrame)
	}

	f := domain.WelcomeFrame{
		FrameMetadata: meta,
		Session:       domain.Session{ID: s.ID, ConnectedAt: s.ConnectedAt},
	}
	if s.KeepaliveTimeoutSeconds != nil {
		f.KeepaliveTimeout = time.Duration(*s.KeepaliveTimeoutSeconds) * time.Second
	}
	return f, nil
}

func decodeNotification(meta domain.FrameMetadata, raw json.RawMessage) (domain.InboundFrame, error) {
	kind, ok := domain.ParseSubscriptionKind(meta.SubscriptionType)
	if !ok {
		return domain.UnknownFrame{FrameMetadata: meta}, nil
	}

	var event domain.Event
	switch kind {
	case domain.SubscriptionChatMessage:
		var e domain.ChatMessageEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: %s event: %w", domain.ErrMalformedFrame, kind, err)
		}
		event = e
	case domain.SubscriptionFollow:
		var e domain.FollowEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: %s event: %w", domain.ErrMalformedFrame, kind, err)
		}
		event = e
	}

	return domain.NotificationFrame{FrameMetadata: meta, Kind: kind, Event: event}, nil
}
