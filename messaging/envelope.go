package messaging

import (
	"errors"
	"sync/atomic"
)

// ErrNotAcknowledgeable is returned when Ack, Nack, or Reject is called on a
// listener envelope. Listener deliveries are settled by the broker on send;
// acknowledging one is a programming error, not a recoverable condition.
var ErrNotAcknowledgeable = errors.New("messaging: envelope is not acknowledgeable")

// Envelope is the per-delivery view handed to handlers: the deserialized
// content plus routing metadata, and acknowledgement operations when the
// delivery requires them.
//
// Each of Ack, Nack, and Reject is meaningful at most once. The envelope
// records the first settlement so the dispatcher can apply its failure
// policy to unsettled deliveries; repeated calls are passed through to the
// broker, which reports the protocol violation itself.
type Envelope struct {
	content  interface{}
	delivery TransportDelivery
	ackable  bool
	settled  atomic.Bool
}

func newEnvelope(delivery TransportDelivery, content interface{}, ackable bool) *Envelope {
	return &Envelope{
		content:  content,
		delivery: delivery,
		ackable:  ackable,
	}
}

// Content returns the deserialized payload
func (e *Envelope) Content() interface{} {
	return e.content
}

// Tag returns the routing tag the message was published with
func (e *Envelope) Tag() string {
	return e.delivery.RoutingKey()
}

// Headers returns the message headers
func (e *Envelope) Headers() map[string]interface{} {
	return e.delivery.Headers()
}

// ContentType returns the MIME type of the raw payload
func (e *Envelope) ContentType() string {
	return e.delivery.ContentType()
}

// Redelivered reports whether the broker has delivered this message before
func (e *Envelope) Redelivered() bool {
	return e.delivery.Redelivered()
}

// Ackable reports whether the envelope carries acknowledgement operations
func (e *Envelope) Ackable() bool {
	return e.ackable
}

// Settled reports whether Ack, Nack, or Reject has been called
func (e *Envelope) Settled() bool {
	return e.settled.Load()
}

// Ack confirms permanent removal of the message
func (e *Envelope) Ack() error {
	if !e.ackable {
		return ErrNotAcknowledgeable
	}
	e.settled.Store(true)
	return e.delivery.Ack()
}

// Nack requeues the message for redelivery to any consumer of the queue,
// including this one
func (e *Envelope) Nack() error {
	if !e.ackable {
		return ErrNotAcknowledgeable
	}
	e.settled.Store(true)
	return e.delivery.Nack(true)
}

// Reject discards the message without requeue. Rejected messages are lost
// unless the queue has a dead-letter target; handlers wanting redelivery
// must use Nack.
func (e *Envelope) Reject() error {
	if !e.ackable {
		return ErrNotAcknowledgeable
	}
	e.settled.Store(true)
	return e.delivery.Reject(false)
}
