package twitch

import (
	"testing"
	"time"

	"github.com/jakegt1/twitch-events/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame_Welcome(t *testing.T) {
	raw := `{
		"metadata": {"message_id": "m1", "message_type": "session_welcome", "message_timestamp": "2024-01-01T00:00:00Z"},
		"payload": {"session": {"id": "S1", "status": "connected", "keepalive_timeout_seconds": 10, "reconnect_url": null, "connected_at": "2024-01-01T00:00:00Z"}}
	}`

	frame, err := DecodeFrame([]byte(raw))
	require.NoError(t, err)

	welcome, ok := frame.(domain.WelcomeFrame)
	require.True(t, ok, "got %T", frame)
	assert.Equal(t, "S1", welcome.Session.ID)
	assert.Equal(t, 10*time.Second, welcome.KeepaliveTimeout)
	assert.Equal(t, "m1", welcome.Meta().MessageID)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), welcome.Session.ConnectedAt)
}

func TestDecodeFrame_WelcomeWithoutSessionIsMalformed(t *testing.T) {
	for _, raw := range []string{
		`{"metadata": {"message_type": "session_welcome"}, "payload": {}}`,
		`{"metadata": {"message_type": "session_welcome"}, "payload": {"session": {"id": ""}}}`,
	} {
		_, err := DecodeFrame([]byte(raw))
		assert.ErrorIs(t, err, domain.ErrMalformedFrame)
	}
}

func TestDecodeFrame_InvalidJSON(t *testing.T) {
	_, err := DecodeFrame([]byte(`{not json`))
	assert.ErrorIs(t, err, domain.ErrMalformedFrame)
}

func TestDecodeFrame_ChatNotification(t *testing.T) {
	raw := `{
		"metadata": {"message_type": "notification", "message_timestamp": "T1", "subscription_type": "channel.chat.message"},
		"payload": {
			"subscription": {"id": "sub-1", "type": "channel.chat.message", "status": "enabled"},
			"event": {"chatter_user_name": "bob", "chatter_user_login": "bob", "message_id": "x", "message": {"text": "hi"}, "color": "#FF0000"}
		}
	}`

	frame, err := DecodeFrame([]byte(raw))
	require.NoError(t, err)

	n, ok := frame.(domain.NotificationFrame)
	require.True(t, ok, "got %T", frame)
	assert.Equal(t, domain.SubscriptionChatMessage, n.Kind)
	assert.Equal(t, "T1", n.Timestamp)

	event, ok := n.Event.(domain.ChatMessageEvent)
	require.True(t, ok)
	assert.Equal(t, "bob", event.ChatterUserName)
	assert.Equal(t, "hi", event.Message.Text)
	assert.Equal(t, "#FF0000", event.Color)
}

func TestDecodeFrame_FollowNotification(t *testing.T) {
	raw := `{
		"metadata": {"message_type": "notification", "message_timestamp": "T2", "subscription_type": "channel.follow"},
		"payload": {"event": {"user_id": "7", "user_login": "alice", "user_name": "Alice", "followed_at": "2024-02-03T04:05:06Z"}}
	}`

	frame, err := DecodeFrame([]byte(raw))
	require.NoError(t, err)

	n := frame.(domain.NotificationFrame)
	event, ok := n.Event.(domain.FollowEvent)
	require.True(t, ok)
	assert.Equal(t, "Alice", event.UserName)
	assert.Equal(t, time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC), event.FollowedAt)
}

func TestDecodeFrame_SubscriptionTypeFallsBackToPayload(t *testing.T) {
	raw := `{
		"metadata": {"message_type": "notification"},
		"payload": {"subscription": {"type": "channel.follow"}, "event": {"user_name": "Alice"}}
	}`

	frame, err := DecodeFrame([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionFollow, frame.(domain.NotificationFrame).Kind)
}

func TestDecodeFrame_BadEventPayloadIsMalformed(t *testing.T) {
	raw := `{"metadata": {"message_type": "notification", "subscription_type": "channel.follow"}, "payload": {"event": "oops"}}`

	_, err := DecodeFrame([]byte(raw))
	assert.ErrorIs(t, err, domain.ErrMalformedFrame)
}

func TestDecodeFrame_Variants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{
			name: "keepalive",
			raw:  `{"metadata": {"message_type": "session_keepalive"}, "payload": {}}`,
			want: domain.KeepaliveFrame{},
		},
		{
			name: "unknown subscription type",
			raw:  `{"metadata": {"message_type": "notification", "subscription_type": "channel.raid"}, "payload": {"event": {}}}`,
			want: domain.UnknownFrame{},
		},
		{
			name: "absent subscription type",
			raw:  `{"metadata": {"message_type": "notification"}, "payload": {"event": {}}}`,
			want: domain.UnknownFrame{},
		},
		{
			name: "unknown message type",
			raw:  `{"metadata": {"message_type": "notifaction"}, "payload": {}}`,
			want: domain.UnknownFrame{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := DecodeFrame([]byte(tt.raw))
			require.NoError(t, err)
			assert.IsType(t, tt.want, frame)
		})
	}
}

func TestDecodeFrame_ReconnectAndRevocation(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{
		"metadata": {"message_type": "session_reconnect"},
		"payload": {"session": {"id": "S1", "reconnect_url": "wss://example.test/ws?id=1"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "wss://example.test/ws?id=1", frame.(domain.ReconnectFrame).ReconnectURL)

	frame, err = DecodeFrame([]byte(`{
		"metadata": {"message_type": "revocation", "subscription_type": "channel.follow"},
		"payload": {"subscription": {"id": "sub-9", "type": "channel.follow", "status": "authorization_revoked"}}
	}`))
	require.NoError(t, err)
	rev := frame.(domain.RevocationFrame)
	assert.Equal(t, "sub-9", rev.SubscriptionID)
	assert.Equal(t, "authorization_revoked", rev.Status)
	assert.Equal(t, "channel.follow", rev.SubscriptionType)
}
