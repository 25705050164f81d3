package socket

import (
	"context"
	"time"

	"github.com/vogiaan1904/voyage-sync/internal/models"
)

// ReadyState mirrors the WebSocket readyState values.
type ReadyState int32

const (
	StateConnecting ReadyState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ReadyState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Live reports whether the handle is dialing or connected.
func (s ReadyState) Live() bool {
	return s == StateConnecting || s == StateOpen
}

func (s ReadyState) ConnState() models.ConnState {
	switch s {
	case StateConnecting:
		return models.ConnStateConnecting
	case StateOpen:
		return models.ConnStateOpen
	default:
		return models.ConnStateClosed
	}
}

// Handle is one logical socket. It may redial underneath; its ReadyState
// reflects the current physical connection.
type Handle interface {
	ID() string
	ReadyState() ReadyState
	Send(ctx context.Context, data []byte) error
	// Close tears the socket down and cancels any pending reconnect.
	Close() error
	// OnMessage sets the receiver for inbound frames. Frames that arrive
	// before a receiver is set are held and replayed in order.
	OnMessage(fn func(data []byte))
}

type Transport interface {
	Connect(ctx context.Context, url string) (Handle, error)
}

// URLBuilder resolves the endpoint for a connection key.
type URLBuilder interface {
	URL(key models.ConnKey) (string, error)
}

type URLBuilderFunc func(key models.ConnKey) (string, error)

func (f URLBuilderFunc) URL(key models.ConnKey) (string, error) { return f(key) }

// Message is one inbound frame. Data is owned by the receiver.
type Message struct {
	Key        models.ConnKey
	HandleID   string
	Data       []byte
	ReceivedAt time.Time
}
