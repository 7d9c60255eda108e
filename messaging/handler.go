package messaging

import (
	"context"
)

// Handler processes a delivered message. The context carries the trace id
// absorbed from the message headers; for worker deliveries the handler is
// responsible for settling the envelope via Ack, Nack, or Reject.
type Handler interface {
	Handle(ctx context.Context, envelope *Envelope) error
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, envelope *Envelope) error

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, envelope *Envelope) error {
	return f(ctx, envelope)
}
