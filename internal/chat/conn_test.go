package chat_test

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/toy-direct-chat/internal/chat"
)

// mockConn is a mock implementation of chat.Conn for testing.
type mockConn struct {
	readCh     chan []byte
	errCh      chan error
	closeCh    chan struct{}
	closeOnce  sync.Once
	closes     atomic.Int32
	remoteAddr string
}

func newMockConn(addr string) *mockConn {
	return &mockConn{
		readCh:     make(chan []byte, 10),
		errCh:      make(chan error, 1),
		closeCh:    make(chan struct{}),
		remoteAddr: addr,
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closeCh:
		return nil, net.ErrClosed
	case err := <-m.errCh:
		return nil, err
	case data, ok := <-m.readCh:
		if !ok {
			return nil, chat.ErrPeerClosed
		}
		return data, nil
	}
}

func (m *mockConn) Close() error {
	m.closes.Add(1)
	m.closeOnce.Do(func() { close(m.closeCh) })
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

// peerClose simulates the server ending the connection.
func (m *mockConn) peerClose() {
	close(m.readCh)
}

// mockDialer hands out conns in order. When gate is set, Dial blocks until
// gate is closed or ctx is done.
type mockDialer struct {
	mu         sync.Mutex
	conns      []*mockConn
	err        error
	gate       chan struct{}
	identities []string
}

func (d *mockDialer) Dial(ctx context.Context, identity string) (chat.Conn, error) {
	d.mu.Lock()
	d.identities = append(d.identities, identity)
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *mockDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.identities...)
}

// mockSender records submitted messages.
type mockSender struct {
	mu   sync.Mutex
	sent []chat.OutboundMessage
	err  error
}

func (s *mockSender) Send(ctx context.Context, msg chat.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *mockSender) messages() []chat.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.OutboundMessage(nil), s.sent...)
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

// Compile-time checks
var (
	_ chat.Conn   = (*mockConn)(nil)
	_ chat.Dialer = (*mockDialer)(nil)
	_ chat.Sender = (*mockSender)(nil)
)
