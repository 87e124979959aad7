package domain

import "time"

// Message types on the EventSub WebSocket transport.
const (
	MessageTypeWelcome      = "session_welcome"
	MessageTypeKeepalive    = "session_keepalive"
	MessageTypeNotification = "notification"
	MessageTypeReconnect    = "session_reconnect"
	MessageTypeRevocation   = "revocation"
)

// FrameMetadata is the envelope shared by every inbound frame.
type FrameMetadata struct {
	MessageID        string
	MessageType      string
	Timestamp        string
	SubscriptionType string
}

func (m FrameMetadata) Meta() FrameMetadata { return m }

func (FrameMetadata) isFrame() {}

// InboundFrame is one decoded socket message. The set of variants is closed:
// WelcomeFrame, NotificationFrame, KeepaliveFrame, ReconnectFrame, RevocationFrame, UnknownFrame.
type InboundFrame interface {
	Meta() FrameMetadata
	isFrame()
}

type WelcomeFrame struct {
	FrameMetadata
	Session          Session
	KeepaliveTimeout time.Duration
}

type NotificationFrame struct {
	FrameMetadata
	Kind  SubscriptionKind
	Event Event
}

type KeepaliveFrame struct {
	FrameMetadata
}

type ReconnectFrame struct {
	FrameMetadata
	ReconnectURL string
}

type RevocationFrame struct {
	FrameMetadata
	SubscriptionID string
	Status         string
}

// UnknownFrame covers unrecognized message types and notifications for unregistered kinds.
type UnknownFrame struct {
	FrameMetadata
}
