// Package api provides the request side of the chat client: POST /send-message.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/omochice/toy-direct-chat/internal/chat"
	"github.com/omochice/toy-direct-chat/pkg/protocol"
)

// Poster submits outbound messages to the relay's send endpoint.
type Poster struct {
	endpoint string
	client   *http.Client
}

// NewPoster creates a Poster for host, given as host:port or as an http://
// or https:// URL. A nil client means http.DefaultClient.
func NewPoster(host string, client *http.Client) *Poster {
	base := strings.TrimRight(host, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Poster{
		endpoint: base + protocol.SendPath,
		client:   client,
	}
}

// Endpoint returns the URL requests are posted to.
func (p *Poster) Endpoint() string {
	return p.endpoint
}

// Send implements chat.Sender. Only the request outcome is observed; the
// response body is discarded.
func (p *Poster) Send(ctx context.Context, msg chat.OutboundMessage) error {
	payload := protocol.SendRequest{
		Sender:   msg.Sender,
		Receiver: msg.Receiver,
		Message:  msg.Body,
	}
	data, err := payload.Encode()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", protocol.ContentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to send message: unexpected status %s", resp.Status)
	}
	return nil
}
