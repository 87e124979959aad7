package domain

import "context"

// EventSocket is one live connection to the EventSub feed.
// ReadMessage blocks until the next text frame arrives or the socket is closed.
type EventSocket interface {
	ReadMessage() ([]byte, error)
	Close() error
}

type SocketDialer interface {
	Dial(ctx context.Context) (EventSocket, error)
}
