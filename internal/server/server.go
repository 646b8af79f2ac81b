// Package server implements the relay the chat client talks to: identities
// hold a WebSocket open on /ws/{identity}, and POST /send-message routes a
// message to one of them.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/omochice/toy-direct-chat/pkg/protocol"
)

const (
	// DefaultOutgoingBuffer is the per-client delivery queue length.
	DefaultOutgoingBuffer = 16

	maxRequestBody = 64 << 10
)

// Server accepts WebSocket connections and send requests and routes through a Hub.
type Server struct {
	address        string
	listener       net.Listener
	hub            *Hub
	server         *http.Server
	logger         *slog.Logger
	outgoingBuffer int
	wg             sync.WaitGroup
}

// New creates a relay server listening on address.
// outgoingBuffer <= 0 selects DefaultOutgoingBuffer.
func New(address string, hub *Hub, logger *slog.Logger, outgoingBuffer int) *Server {
	if outgoingBuffer <= 0 {
		outgoingBuffer = DefaultOutgoingBuffer
	}
	s := &Server{
		address:        address,
		hub:            hub,
		logger:         logger,
		outgoingBuffer: outgoingBuffer,
	}
	s.server = &http.Server{Handler: s.Handler()}
	return s
}

// Handler returns the relay routes wrapped in the CORS policy.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{identity}", s.handleWebSocket)
	mux.HandleFunc("POST "+protocol.SendPath, s.handleSend)
	return allowAllOrigins(mux)
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener
	s.logger.Info("Relay server listening", "address", listener.Addr().String())
	return nil
}

// Serve handles connections until Stop. It returns nil after Stop.
func (s *Server) Serve() error {
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Start listens and serves.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop closes the listener and every client connection, then waits for the
// client goroutines to exit.
func (s *Server) Stop() {
	_ = s.server.Close()
	s.hub.CloseAll()
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")
	if identity == "" {
		http.Error(w, "identity is required", http.StatusBadRequest)
		return
	}

	conn, rw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection", "identity", identity, "error", err)
		return
	}

	client := newClient(identity, conn, rw.Reader, s.outgoingBuffer)
	if old := s.hub.Register(client); old != nil {
		s.logger.Info("Replacing connection", "identity", identity, "old", old.ID, "new", client.ID)
		old.Close()
	}
	s.logger.Info("User connected", "identity", identity, "client", client.ID, "remote", client.RemoteAddr())

	s.wg.Add(2)
	go s.handleClient(client)
	go s.writeLoop(client)
}

// handleClient reads until the connection ends. Client frames carry no
// meaning; they only keep the connection alive.
func (s *Server) handleClient(client *Client) {
	defer s.wg.Done()
	defer func() {
		s.hub.Unregister(client)
		close(client.outgoing)
		client.Close()
		s.logger.Info("User disconnected", "identity", client.Identity, "client", client.ID)
	}()

	for {
		frame, err := client.readFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("Error reading from client", "identity", client.Identity, "error", err)
			}
			return
		}

		switch frame.Header.OpCode {
		case ws.OpClose:
			var reply []byte
			if len(frame.Payload) >= 2 {
				code, _ := ws.ParseCloseFrameData(frame.Payload)
				reply = ws.NewCloseFrameBody(code, "")
			}
			client.closeWith(reply)
			return
		case ws.OpPing:
			if err := client.write(ws.OpPong, frame.Payload); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeLoop(client *Client) {
	defer s.wg.Done()
	failed := false
	// keep draining after a failure until the reader closes the queue
	for data := range client.outgoing {
		if failed {
			continue
		}
		if err := client.write(ws.OpText, data); err != nil {
			s.logger.Warn("Failed to write to WebSocket client", "identity", client.Identity, "error", err)
			client.Close()
			failed = true
		}
	}
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var msg protocol.SendRequest
	if err := msg.Decode(data); err != nil {
		s.logger.Debug("Rejected send request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info("Message request", "sender", msg.Sender, "receiver", msg.Receiver)
	if !s.hub.Deliver(msg.Receiver, []byte(protocol.FormatDelivery(msg.Sender, msg.Message))) {
		s.logger.Warn("Message not delivered", "receiver", msg.Receiver, "online", s.hub.Identities())
	}

	w.Header().Set("Content-Type", protocol.ContentType)
	_ = json.NewEncoder(w).Encode(protocol.SendResponse{Status: "Message sent"})
}

// allowAllOrigins answers preflight requests and marks every response as
// readable from any origin.
func allowAllOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "*")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
