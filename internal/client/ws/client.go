// Package ws provides the WebSocket side of the chat client.
package ws

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/omochice/toy-direct-chat/internal/chat"
	"github.com/omochice/toy-direct-chat/pkg/protocol"
)

// Dialer opens ws://<host>/ws/<identity>.
type Dialer struct {
	baseURL string
	dialer  ws.Dialer
}

// NewDialer creates a Dialer for host, given as host:port or as a ws:// or
// wss:// URL.
func NewDialer(host string) *Dialer {
	base := strings.TrimRight(host, "/")
	if !strings.HasPrefix(base, "ws://") && !strings.HasPrefix(base, "wss://") {
		base = "ws://" + base
	}
	return &Dialer{baseURL: base}
}

// URL returns the endpoint for identity.
func (d *Dialer) URL(identity string) string {
	return d.baseURL + protocol.SocketPath(identity)
}

// Dial implements chat.Dialer.
func (d *Dialer) Dial(ctx context.Context, identity string) (chat.Conn, error) {
	conn, br, _, err := d.dialer.Dial(ctx, d.URL(identity))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return newConn(conn, br), nil
}

// Conn adapts a client-side gobwas connection to chat.Conn.
// Read must not be called concurrently with itself.
type Conn struct {
	conn      net.Conn
	br        *bufio.Reader
	closeOnce sync.Once
}

// newConn wraps conn. br holds bytes the server sent right after the
// handshake; it is read first and returned to the gobwas pool once empty.
func newConn(conn net.Conn, br *bufio.Reader) *Conn {
	return &Conn{conn: conn, br: br}
}

// reader returns the source of the next frame, releasing br once drained.
func (c *Conn) reader() io.ReadWriter {
	var r io.Reader = c.conn
	if c.br != nil {
		if c.br.Buffered() > 0 {
			r = c.br
		} else {
			ws.PutReader(c.br)
			c.br = nil
		}
	}
	return struct {
		io.Reader
		io.Writer
	}{r, bestEffortWriter{c.conn}}
}

// bestEffortWriter carries control frame replies (pong, close echo). A reply
// that cannot be written must not hide the frame that triggered it.
type bestEffortWriter struct {
	w io.Writer
}

func (b bestEffortWriter) Write(p []byte) (int, error) {
	_, _ = b.w.Write(p)
	return len(p), nil
}

// Read implements chat.Conn.
// Text and binary payloads are returned as is; pings are answered.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	data, _, err := wsutil.ReadServerData(c.reader())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var closed wsutil.ClosedError
		if errors.As(err, &closed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %v", chat.ErrPeerClosed, err)
		}
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return data, nil
}

// Close implements chat.Conn. It sends a normal close frame first.
func (c *Conn) Close() error {
	err := net.ErrClosed
	c.closeOnce.Do(func() {
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, body)
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
