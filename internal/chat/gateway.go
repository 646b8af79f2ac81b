package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	errNoSender   = errors.New("sender identity is empty")
	errNoReceiver = errors.New("receiver identity is empty")
)

// Gateway submits outbound messages over the request channel, independent
// of the persistent connection. It only observes local completion: success
// does not mean the receiver got the message.
type Gateway struct {
	sender Sender
	log    *Log
	logger *slog.Logger
}

// NewGateway creates a Gateway.
func NewGateway(sender Sender, log *Log, logger *slog.Logger) *Gateway {
	return &Gateway{
		sender: sender,
		log:    log,
		logger: logger,
	}
}

// Send posts body from sender to receiver and reports whether the request
// completed. An empty body is ignored. Failures become one error entry and
// are never retried.
func (g *Gateway) Send(ctx context.Context, sender, receiver, body string) bool {
	if body == "" {
		return false
	}

	var err error
	switch {
	case sender == "":
		err = errNoSender
	case receiver == "":
		err = errNoReceiver
	default:
		err = g.sender.Send(ctx, OutboundMessage{Sender: sender, Receiver: receiver, Body: body})
	}
	if err != nil {
		g.logger.Warn("Failed to send message", "sender", sender, "receiver", receiver, "error", err)
		g.log.Append(CategoryError, fmt.Sprintf("send failed: %v", err))
		return false
	}

	g.logger.Debug("Message submitted", "sender", sender, "receiver", receiver)
	g.log.Append(CategoryOutbound, fmt.Sprintf("me: %s", body))
	return true
}
