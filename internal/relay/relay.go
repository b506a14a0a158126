// Package relay forwards inbound messages to an outbound channel untouched.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"cloudpico-positioning/internal/message"
)

// Relay republishes every non-empty inbound message on one outbound channel.
type Relay struct {
	pub     message.Publisher
	output  string
	logger  *slog.Logger
	counter atomic.Int64
	unacked atomic.Int64
}

func New(pub message.Publisher, output string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{pub: pub, output: output, logger: logger}
}

// Handle is registered as the inbound message handler. Empty payloads are
// acknowledged and dropped. A publish error is returned so the transport does
// not acknowledge that message.
func (r *Relay) Handle(ctx context.Context, msg message.Message) error {
	n := r.counter.Add(1)
	r.logger.Info("relay: received message", "counter", n, "body", string(msg.Payload))

	if len(msg.Payload) == 0 {
		return nil
	}

	// Payload and user properties only; the envelope belongs to the inbound hop.
	out := msg.Clone()
	out.ContentType = ""
	out.ContentEncoding = ""
	out.MessageID = ""

	if err := r.pub.Publish(ctx, r.output, out); err != nil {
		r.unacked.Add(1)
		return fmt.Errorf("relay message %d to %s: %w", n, r.output, err)
	}
	r.logger.Info("relay: message sent", "counter", n, "channel", r.output)
	return nil
}

// Count is the number of inbound messages seen since start.
func (r *Relay) Count() int64 {
	return r.counter.Load()
}

// Unacked is the number of inbound messages left unacknowledged after a
// failed publish. The broker keeps them in this client's in-flight window.
func (r *Relay) Unacked() int64 {
	return r.unacked.Load()
}
