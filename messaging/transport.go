package messaging

import (
	"context"
)

// OutboundMessage carries a serialized payload and its publish attributes
// through the transport
type OutboundMessage struct {
	Body        []byte
	ContentType string
	Headers     map[string]interface{}
	Persistent  bool
}

// TransportPublisher defines the interface for publishing messages through a transport
type TransportPublisher interface {
	// Publish sends a message to a source with the given routing tag
	Publish(ctx context.Context, source, tag string, msg OutboundMessage) error
}

// DeliveryHandler processes a raw delivery from the transport. The context
// carries the consumer's lifetime; it is canceled when the subscription stops.
type DeliveryHandler func(ctx context.Context, delivery TransportDelivery)

// SubscriptionOptions configures a transport subscription
type SubscriptionOptions struct {
	// AutoAck makes the broker consider each delivery settled the moment it
	// is sent over the wire (listener mode). When false the consumer must
	// settle every delivery explicitly (worker mode).
	AutoAck bool

	// Exclusive restricts the queue to this consumer
	Exclusive bool
}

// TransportSubscriber defines the interface for consuming messages through a transport
type TransportSubscriber interface {
	// Subscribe starts delivering messages from a queue to the handler.
	// It returns a consumer tag identifying the subscription. ctx covers
	// setup only; the subscription runs until Unsubscribe regardless of it.
	Subscribe(ctx context.Context, queue string, handler DeliveryHandler, options SubscriptionOptions) (string, error)

	// Unsubscribe stops the subscription with the given consumer tag
	Unsubscribe(consumerTag string) error
}

// TransportDelivery represents a single message delivery from the transport
type TransportDelivery interface {
	// Body returns the raw payload bytes
	Body() []byte

	// RoutingKey returns the tag the message was published with
	RoutingKey() string

	// Headers returns the message headers
	Headers() map[string]interface{}

	// ContentType returns the MIME type of the payload
	ContentType() string

	// Redelivered reports whether the broker has delivered this message before
	Redelivered() bool

	// Ack confirms permanent removal of the message
	Ack() error

	// Nack returns the message to the broker, optionally requeuing it
	Nack(requeue bool) error

	// Reject discards the message, optionally requeuing it
	Reject(requeue bool) error
}

// Topology declares and removes sources and the queues bound to them
type Topology interface {
	// EnsureSource idempotently declares a topic source
	EnsureSource(ctx context.Context, name string) error

	// DeleteSource removes a source; deleting an absent source succeeds
	DeleteSource(ctx context.Context, name string) error

	// DeclareListenerQueue declares an ephemeral exclusive queue bound to the
	// source with the tag filter, returning the broker-assigned queue name
	DeclareListenerQueue(ctx context.Context, source, tagFilter string) (string, error)

	// DeclareWorkerQueue declares (or reuses) the group's durable queue and
	// adds a binding for the tag filter; bindings accumulate across calls
	DeclareWorkerQueue(ctx context.Context, group, source, tagFilter string) (string, error)

	// DeleteWorkerQueue removes the group's queue; absent queues succeed
	DeleteWorkerQueue(ctx context.Context, group string) error
}

// Prober performs existence checks that never create or mutate broker state
type Prober interface {
	// SourceExists reports whether the source exists
	SourceExists(ctx context.Context, name string) (bool, error)

	// QueueExists reports whether the queue exists
	QueueExists(ctx context.Context, name string) (bool, error)
}

// Transport bundles the broker-facing capabilities the messaging layer
// builds on
type Transport interface {
	Publisher() TransportPublisher
	Subscriber() TransportSubscriber
	Topology() Topology
	Prober() Prober

	// Close tears down the transport and all its subscriptions
	Close() error
}
