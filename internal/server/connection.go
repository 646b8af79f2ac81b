package server

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
)

const closeWriteTimeout = time.Second

// Client is one upgraded WebSocket connection registered under an identity.
type Client struct {
	ID       uuid.UUID
	Identity string

	conn     net.Conn
	reader   io.Reader
	outgoing chan []byte

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newClient(identity string, conn net.Conn, reader io.Reader, buffer int) *Client {
	return &Client{
		ID:       uuid.New(),
		Identity: identity,
		conn:     conn,
		reader:   reader,
		outgoing: make(chan []byte, buffer),
	}
}

// write sends one whole frame. Data and control frames share this path so
// they never interleave on the wire.
func (c *Client) write(op ws.OpCode, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.conn, op, payload)
}

// readFrame returns the next client frame with its payload unmasked.
func (c *Client) readFrame() (ws.Frame, error) {
	frame, err := ws.ReadFrame(c.reader)
	if err != nil {
		return frame, err
	}
	if frame.Header.Masked {
		frame = ws.UnmaskFrameInPlace(frame)
	}
	return frame, nil
}

// Close sends a going-away close frame and closes the connection.
func (c *Client) Close() {
	c.closeWith(ws.NewCloseFrameBody(ws.StatusGoingAway, ""))
}

// closeWith sends a close frame carrying body, then closes the connection.
// Only the first call has an effect.
func (c *Client) closeWith(body []byte) {
	c.closeOnce.Do(func() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
		_ = c.write(ws.OpClose, body)
		_ = c.conn.Close()
	})
}

// RemoteAddr returns the remote address for logging.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
