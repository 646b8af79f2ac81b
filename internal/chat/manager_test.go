package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/omochice/toy-direct-chat/internal/chat"
	"github.com/stretchr/testify/require"
)

type managerFixture struct {
	mgr    *chat.Manager
	log    *chat.Log
	dialer *mockDialer
	events chan chat.CloseEvent
}

func newManagerFixture(conns ...*mockConn) *managerFixture {
	f := &managerFixture{
		log:    chat.NewLog(),
		dialer: &mockDialer{conns: conns},
		events: make(chan chat.CloseEvent, 10),
	}
	f.mgr = chat.NewManager(f.dialer, f.log, testLogger(), chat.WithCloseObserver(func(evt chat.CloseEvent) {
		f.events <- evt
	}))
	return f
}

func (f *managerFixture) nextEvent(t *testing.T) chat.CloseEvent {
	t.Helper()
	select {
	case evt := <-f.events:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close event")
		return chat.CloseEvent{}
	}
}

func requireConsistent(t *testing.T, mgr *chat.Manager) {
	t.Helper()
	require.Equal(t, mgr.Current() != nil, mgr.Connected(), "status must follow the handle")
}

func TestManager_OpenLogsSystemEntry(t *testing.T) {
	req := require.New(t)
	conn := newMockConn("127.0.0.1:8000")
	f := newManagerFixture(conn)

	// When user1 opens a connection
	f.mgr.Open(context.Background(), "user1")
	defer func() { f.mgr.Close(); f.mgr.Wait() }()

	// Then exactly one system entry mentions user1 and status is connected
	entries := f.log.Snapshot()
	req.Len(entries, 1)
	req.Equal(chat.CategorySystem, entries[0].Category)
	req.Contains(entries[0].Text, "user1")
	req.True(f.mgr.Connected())
	req.Equal("user1", f.mgr.Identity())
	req.Equal([]string{"user1"}, f.dialer.dialed())
	requireConsistent(t, f.mgr)
}

func TestManager_InboundFrameIsAppendedVerbatim(t *testing.T) {
	req := require.New(t)
	conn := newMockConn("127.0.0.1:8000")
	f := newManagerFixture(conn)
	f.mgr.Open(context.Background(), "user1")
	defer func() { f.mgr.Close(); f.mgr.Wait() }()

	// When a raw payload arrives
	conn.readCh <- []byte("hello")

	// Then one inbound entry carries exactly that text
	req.Eventually(func() bool { return f.log.Len() == 2 }, time.Second, 5*time.Millisecond)
	last := f.log.Snapshot()[1]
	req.Equal(chat.CategoryInbound, last.Category)
	req.Equal("hello", last.Text)
}

func TestManager_OpenTwiceIsNoop(t *testing.T) {
	req := require.New(t)
	f := newManagerFixture(newMockConn("a"), newMockConn("b"))

	f.mgr.Open(context.Background(), "user1")
	first := f.mgr.Current()
	f.mgr.Open(context.Background(), "user1")
	defer func() { f.mgr.Close(); f.mgr.Wait() }()

	req.Len(f.dialer.dialed(), 1)
	req.Equal(1, f.log.Len())
	req.Same(first, f.mgr.Current())
	requireConsistent(t, f.mgr)
}

func TestManager_OpenWithEmptyIdentityIsNoop(t *testing.T) {
	req := require.New(t)
	f := newManagerFixture()

	f.mgr.Open(context.Background(), "")

	req.Empty(f.dialer.dialed())
	req.False(f.mgr.Connected())
	req.Zero(f.log.Len())
}

func TestManager_CloseWithoutConnectionIsNoop(t *testing.T) {
	req := require.New(t)
	f := newManagerFixture()

	f.mgr.Close()
	f.mgr.Close()

	req.False(f.mgr.Connected())
	req.Nil(f.mgr.Current())
	req.Zero(f.log.Len())
	req.Empty(f.events)
}

func TestManager_UserClose(t *testing.T) {
	req := require.New(t)
	conn := newMockConn("a")
	f := newManagerFixture(conn)
	f.mgr.Open(context.Background(), "user1")

	// When the user closes
	f.mgr.Close()

	// Then status drops synchronously
	req.False(f.mgr.Connected())
	req.Nil(f.mgr.Current())
	requireConsistent(t, f.mgr)

	evt := f.nextEvent(t)
	req.Equal(chat.CloseUser, evt.Reason)
	req.Equal("user1", evt.Identity)
	req.NoError(evt.Err)

	f.mgr.Wait()
	req.GreaterOrEqual(conn.closes.Load(), int32(1))
	// closing adds nothing to the log
	req.Equal(1, f.log.Len())
}

func TestManager_PeerCloseAllowsReopen(t *testing.T) {
	req := require.New(t)
	first, second := newMockConn("a"), newMockConn("b")
	f := newManagerFixture(first, second)
	f.mgr.Open(context.Background(), "user1")
	defer func() { f.mgr.Close(); f.mgr.Wait() }()

	// When the server ends the connection
	first.peerClose()

	// Then the manager converges to not connected
	evt := f.nextEvent(t)
	req.Equal(chat.ClosePeer, evt.Reason)
	req.False(f.mgr.Connected())
	req.Nil(f.mgr.Current())
	requireConsistent(t, f.mgr)

	// And a fresh open is accepted
	f.mgr.Open(context.Background(), "user1")
	req.True(f.mgr.Connected())
	req.Same(second, f.mgr.Current())
	req.Len(f.dialer.dialed(), 2)
	req.Equal(2, f.log.Len())
}

func TestManager_ReadErrorClosesWithErrorReason(t *testing.T) {
	req := require.New(t)
	conn := newMockConn("a")
	f := newManagerFixture(conn)
	f.mgr.Open(context.Background(), "user1")

	readErr := errors.New("connection reset")
	conn.errCh <- readErr

	evt := f.nextEvent(t)
	req.Equal(chat.CloseError, evt.Reason)
	req.ErrorIs(evt.Err, readErr)
	req.False(f.mgr.Connected())
	f.mgr.Wait()
	req.GreaterOrEqual(conn.closes.Load(), int32(1))
	// no distinct error entry for transport failures
	req.Equal(1, f.log.Len())
}

func TestManager_DialFailure(t *testing.T) {
	req := require.New(t)
	dialErr := errors.New("connection refused")
	f := newManagerFixture(newMockConn("a"))
	f.dialer.err = dialErr

	f.mgr.Open(context.Background(), "user1")

	evt := f.nextEvent(t)
	req.Equal(chat.CloseError, evt.Reason)
	req.ErrorIs(evt.Err, dialErr)
	req.False(f.mgr.Connected())
	req.Nil(f.mgr.Current())
	req.Zero(f.log.Len())

	// Given the server comes back, a new open succeeds
	f.dialer.mu.Lock()
	f.dialer.err = nil
	f.dialer.mu.Unlock()
	f.mgr.Open(context.Background(), "user1")
	defer func() { f.mgr.Close(); f.mgr.Wait() }()
	req.True(f.mgr.Connected())
}

func TestManager_CloseWhileDialing(t *testing.T) {
	req := require.New(t)
	f := newManagerFixture(newMockConn("a"))
	f.dialer.gate = make(chan struct{})

	opened := make(chan struct{})
	go func() {
		defer close(opened)
		f.mgr.Open(context.Background(), "user1")
	}()
	req.Eventually(func() bool { return len(f.dialer.dialed()) == 1 }, time.Second, 5*time.Millisecond)

	// A second open during the handshake is ignored
	f.mgr.Open(context.Background(), "user1")
	req.Len(f.dialer.dialed(), 1)

	// When the user closes before the handshake completes
	f.mgr.Close()

	select {
	case <-opened:
	case <-time.After(time.Second):
		t.Fatal("Open did not return after Close")
	}
	evt := f.nextEvent(t)
	req.Equal(chat.CloseUser, evt.Reason)
	req.False(f.mgr.Connected())
	req.Zero(f.log.Len())
}

func TestManager_StaleCloseDoesNotTouchNewConnection(t *testing.T) {
	req := require.New(t)
	first, second := newMockConn("a"), newMockConn("b")
	f := newManagerFixture(first, second)

	f.mgr.Open(context.Background(), "user1")
	f.mgr.Close()
	f.mgr.Open(context.Background(), "user1")
	defer func() { f.mgr.Close(); f.mgr.Wait() }()

	// The first connection's close callback arrives after the reopen
	evt := f.nextEvent(t)
	req.Equal(chat.CloseUser, evt.Reason)

	req.True(f.mgr.Connected())
	req.Same(second, f.mgr.Current())
	requireConsistent(t, f.mgr)

	// frames still flow on the new connection
	second.readCh <- []byte("still here")
	req.Eventually(func() bool { return f.log.Len() == 3 }, time.Second, 5*time.Millisecond)
}

func TestManager_OrderIsArrivalOrder(t *testing.T) {
	req := require.New(t)
	conn := newMockConn("a")
	f := newManagerFixture(conn)
	f.mgr.Open(context.Background(), "user1")
	defer func() { f.mgr.Close(); f.mgr.Wait() }()

	conn.readCh <- []byte("[user2]: one")
	req.Eventually(func() bool { return f.log.Len() == 2 }, time.Second, 5*time.Millisecond)
	f.log.Append(chat.CategoryOutbound, "me: two")
	conn.readCh <- []byte("[user2]: three")
	req.Eventually(func() bool { return f.log.Len() == 4 }, time.Second, 5*time.Millisecond)

	entries := f.log.Snapshot()
	req.Equal("[user2]: one", entries[1].Text)
	req.Equal("me: two", entries[2].Text)
	req.Equal("[user2]: three", entries[3].Text)
}

func TestCloseReason_String(t *testing.T) {
	require.Equal(t, "user", chat.CloseUser.String())
	require.Equal(t, "peer", chat.ClosePeer.String())
	require.Equal(t, "error", chat.CloseError.String())
}
