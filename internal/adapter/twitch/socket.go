package twitch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jakegt1/twitch-events/internal/domain"
	"github.com/jakegt1/twitch-events/internal/platform/version"
)

const (
	DefaultEventSubURL = "wss://eventsub.wss.twitch.tv/ws"
	closeWriteDeadline = time.Second
	maxMessageSize     = 512 * 1024
)

// Dialer opens EventSub websocket connections.
type Dialer struct {
	URL    string
	Dialer *websocket.Dialer
}

func NewDialer(url string) *Dialer {
	return &Dialer{URL: url, Dialer: websocket.DefaultDialer}
}

func (d *Dialer) Dial(ctx context.Context) (domain.EventSocket, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial eventsub %s (status %d): %w", d.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial eventsub %s: %w", d.URL, err)
	}
	conn.SetReadLimit(maxMessageSize)

	return &Socket{conn: conn}, nil
}

// Socket is a read-only view of one EventSub connection. Close is idempotent and
// safe to call from any goroutine while ReadMessage is blocked.
type Socket struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// ReadMessage returns the next text frame. Binary frames are skipped.
func (s *Socket) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteDeadline))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
