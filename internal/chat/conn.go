// Package chat provides the client-side chat state: the connection lifecycle,
// the dispatch log and the outbound send path.
package chat

import (
	"context"
	"errors"
)

// ErrPeerClosed is returned by Conn.Read when the remote end ended the
// connection in an orderly way (close frame or EOF).
var ErrPeerClosed = errors.New("connection closed by peer")

// Conn abstracts the persistent channel.
// This interface isolates transport details from chat logic.
type Conn interface {
	// Read blocks until the next inbound frame and returns its payload.
	// Returns ErrPeerClosed when the peer closed the connection.
	Read(ctx context.Context) ([]byte, error)

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Dialer opens a persistent channel addressed by identity.
type Dialer interface {
	Dial(ctx context.Context, identity string) (Conn, error)
}

// Sender submits one outbound message over the request channel.
// A nil error means the request completed, not that it was delivered.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// OutboundMessage is built at send time and discarded after submission.
type OutboundMessage struct {
	Sender   string
	Receiver string
	Body     string
}
