// Package protocol defines the wire shapes shared by the chat client and the relay.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

const (
	// SendPath is the request endpoint for outbound messages.
	SendPath = "/send-message"

	// SocketPrefix is the path prefix of the per-identity persistent channel.
	SocketPrefix = "/ws/"

	// ContentType is the only request encoding the relay accepts.
	ContentType = "application/json"
)

// ErrInvalidRequest is returned when a send request is malformed or incomplete.
var ErrInvalidRequest = errors.New("invalid send request")

var validate = validator.New()

// SendRequest is the JSON body of POST /send-message.
type SendRequest struct {
	Sender   string `json:"sender" validate:"required"`
	Receiver string `json:"receiver" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

// SendResponse is what the relay answers on a routed request.
type SendResponse struct {
	Status string `json:"status"`
}

// Encode encodes the request into JSON bytes.
func (r *SendRequest) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode send request: %w", err)
	}
	return data, nil
}

// Decode decodes JSON bytes into the request and validates it.
func (r *SendRequest) Decode(data []byte) error {
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return r.Validate()
}

// Validate reports ErrInvalidRequest when a required field is empty.
func (r *SendRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// SocketPath returns the persistent channel path for identity.
// The identity is escaped so any string stays a single path segment.
func SocketPath(identity string) string {
	return SocketPrefix + url.PathEscape(identity)
}

// FormatDelivery renders a routed message the way the receiver sees it.
func FormatDelivery(sender, message string) string {
	return fmt.Sprintf("[%s]: %s", sender, message)
}
