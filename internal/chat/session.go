package chat

import (
	"context"
	"log/slog"
	"sync"
)

// Session is everything one front end instance owns: identities, the pending
// input, the dispatch log, and the two transport paths. Dispose is its
// teardown boundary.
type Session struct {
	Identities *Identities
	Log        *Log

	manager *Manager
	gateway *Gateway

	mu    sync.Mutex
	input string

	disposeOnce sync.Once
}

// NewSession wires a Session around log using dialer for the persistent
// channel and sender for outbound messages.
func NewSession(dialer Dialer, sender Sender, log *Log, logger *slog.Logger, opts ...ManagerOption) *Session {
	return &Session{
		Identities: NewIdentities(),
		Log:        log,
		manager:    NewManager(dialer, log, logger.With("component", "manager"), opts...),
		gateway:    NewGateway(sender, log, logger.With("component", "gateway")),
	}
}

// Connect opens the connection under the current local identity.
func (s *Session) Connect(ctx context.Context) {
	s.manager.Open(ctx, s.Identities.Local())
}

// Disconnect closes the connection if one is open.
func (s *Session) Disconnect() {
	s.manager.Close()
}

// Connected reports the connection status.
func (s *Session) Connected() bool {
	return s.manager.Connected()
}

// Manager exposes the connection manager.
func (s *Session) Manager() *Manager {
	return s.manager
}

// SetInput replaces the pending input buffer.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

// Input returns the pending input buffer.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Submit sends the pending input from the local to the target identity.
// On success the buffer is cleared unless it was edited meanwhile; on
// failure it is left for a manual retry.
func (s *Session) Submit(ctx context.Context) bool {
	return s.SubmitText(ctx, s.Input())
}

// SubmitText sends body, captured by the caller when the user submitted it,
// from the local to the target identity. On success the input buffer is
// cleared if it still holds body.
func (s *Session) SubmitText(ctx context.Context, body string) bool {
	if !s.gateway.Send(ctx, s.Identities.Local(), s.Identities.Target(), body) {
		return false
	}

	s.mu.Lock()
	if s.input == body {
		s.input = ""
	}
	s.mu.Unlock()
	return true
}

// Dispose closes the connection exactly once, whatever its state, and waits
// for the read loop to exit. Later calls do nothing.
func (s *Session) Dispose() {
	s.disposeOnce.Do(func() {
		s.manager.Close()
		s.manager.Wait()
	})
}
