package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// CloseReason tells why a connection ended. Status and log effects are the
// same for every reason.
type CloseReason int

const (
	CloseUser CloseReason = iota
	ClosePeer
	CloseError
)

// String returns the string representation of CloseReason
func (r CloseReason) String() string {
	switch r {
	case CloseUser:
		return "user"
	case ClosePeer:
		return "peer"
	case CloseError:
		return "error"
	default:
		return "unknown"
	}
}

// CloseEvent is emitted once for every connection attempt that ends,
// including dials that never completed.
type CloseEvent struct {
	Identity string
	Reason   CloseReason
	Err      error
}

// handle is one connection attempt. userClosed is guarded by Manager.mu.
type handle struct {
	identity   string
	conn       Conn
	cancel     context.CancelFunc
	userClosed bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCloseObserver registers fn to receive every CloseEvent.
func WithCloseObserver(fn func(CloseEvent)) ManagerOption {
	return func(m *Manager) {
		m.onClose = fn
	}
}

// Manager owns at most one live connection and turns its lifecycle into
// status changes and dispatch log entries.
//
// connected is true exactly when conn is non-nil; both change together
// under mu. Log appends happen under mu too, so Log observers must not call
// back into the Manager.
type Manager struct {
	dialer  Dialer
	log     *Log
	logger  *slog.Logger
	onClose func(CloseEvent)

	mu        sync.Mutex
	current   *handle // dialing or open
	conn      Conn
	connected bool

	wg sync.WaitGroup
}

// NewManager creates a Manager that dials through dialer and writes to log.
func NewManager(dialer Dialer, log *Log, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		dialer: dialer,
		log:    log,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open connects under identity. It is a no-op when a connection exists, a
// dial is already in flight, or identity is empty. Open returns once the
// dial has resolved; ctx bounds the handshake only. A failed dial is
// reported solely through the close path.
func (m *Manager) Open(ctx context.Context, identity string) {
	if identity == "" {
		m.logger.Debug("Open ignored: empty identity")
		return
	}

	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		m.logger.Debug("Open ignored: connection already exists", "identity", identity)
		return
	}
	dialCtx, cancelDial := context.WithCancel(ctx)
	h := &handle{identity: identity, cancel: cancelDial}
	m.current = h
	m.mu.Unlock()

	conn, err := m.dialer.Dial(dialCtx, identity)
	cancelDial()

	m.mu.Lock()
	if m.current != h {
		// Closed by the user while dialing.
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		m.emit(CloseEvent{Identity: identity, Reason: CloseUser})
		return
	}
	if err != nil {
		m.current = nil
		m.mu.Unlock()
		m.logger.Warn("Failed to open connection", "identity", identity, "error", err)
		m.emit(CloseEvent{Identity: identity, Reason: CloseError, Err: fmt.Errorf("failed to dial: %w", err)})
		return
	}

	readCtx, cancelRead := context.WithCancel(context.Background())
	h.conn = conn
	h.cancel = cancelRead
	m.conn = conn
	m.connected = true
	m.log.Append(CategorySystem, fmt.Sprintf("connected as %s", identity))
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("Connection opened", "identity", identity, "remote", conn.RemoteAddr())
	go m.readLoop(readCtx, h)
}

// Close ends the current connection, or aborts an in-flight dial. Status is
// updated before the transport is torn down. No-op when nothing is open.
func (m *Manager) Close() {
	m.mu.Lock()
	h := m.current
	if h == nil {
		m.mu.Unlock()
		return
	}
	h.userClosed = true
	m.current = nil
	m.conn = nil
	m.connected = false
	conn := h.conn
	m.mu.Unlock()

	h.cancel()
	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Debug("Failed to close connection", "identity", h.identity, "error", err)
		}
	}
}

// Connected reports the connection status.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Current returns the owned connection handle, or nil.
func (m *Manager) Current() Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// Identity returns the identity of the open connection, or "".
func (m *Manager) Identity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return ""
	}
	return m.current.identity
}

// Wait blocks until every read loop started by Open has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) readLoop(ctx context.Context, h *handle) {
	defer m.wg.Done()

	for {
		data, err := h.conn.Read(ctx)
		if err != nil {
			m.handleClosed(h, err)
			return
		}
		m.handleMessage(h, data)
	}
}

// handleMessage appends the payload verbatim.
func (m *Manager) handleMessage(h *handle, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != h {
		m.logger.Debug("Dropping frame from stale connection", "identity", h.identity)
		return
	}
	m.log.Append(CategoryInbound, string(data))
}

func (m *Manager) handleClosed(h *handle, err error) {
	m.mu.Lock()
	reason := CloseError
	switch {
	case h.userClosed:
		reason = CloseUser
		err = nil
	case errors.Is(err, ErrPeerClosed):
		reason = ClosePeer
	}
	if m.current == h {
		m.current = nil
		m.conn = nil
		m.connected = false
	}
	m.mu.Unlock()

	h.cancel()
	if reason != CloseUser {
		_ = h.conn.Close()
	}

	if reason == CloseError {
		m.logger.Warn("Connection lost", "identity", h.identity, "error", err)
	} else {
		m.logger.Info("Connection closed", "identity", h.identity, "reason", reason)
	}
	m.emit(CloseEvent{Identity: h.identity, Reason: reason, Err: err})
}

func (m *Manager) emit(evt CloseEvent) {
	if m.onClose != nil {
		m.onClose(evt)
	}
}
