// Package mercury is a client-side messaging abstraction over a topic-routed
// AMQP broker. It offers three primitives: publish to a named source with a
// routing tag, listen broadcast-style to a source, and consume competitively
// from a named worker group bound to a source. Exchange and queue
// negotiation, binding, and acknowledgement framing stay behind the API.
package mercury

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/wintonpc/mercury-amqp/internal/rabbitmq"
	"github.com/wintonpc/mercury-amqp/messaging"
)

// DefaultPrefetch is the number of unacknowledged worker deliveries the
// shared channel holds when Config.Prefetch is zero
const DefaultPrefetch = 1

// Config describes the broker endpoint and channel settings for a Client
type Config struct {
	Host     string
	Port     int
	VHost    string
	Username string
	Password string

	// Prefetch bounds concurrent unacknowledged worker deliveries; it is
	// the sole concurrency throttle for workers. Zero means DefaultPrefetch.
	Prefetch int
}

// Client is a connected mercury instance. A Client owns one broker
// connection and one shared channel; it is not shared across instances and
// becomes unusable after any fatal transport failure or Close.
type Client struct {
	transport  messaging.Transport
	publisher  *messaging.MessagePublisher
	dispatcher *messaging.Dispatcher
	topology   messaging.Topology
	prober     messaging.Prober
	closed     atomic.Bool
}

// Connect dials the broker and prepares the client. Connection failures are
// fatal: the error is returned and also delivered to the configured
// observer, matching how failures after Connect are reported.
func Connect(ctx context.Context, cfg Config, options ...ClientOption) (*Client, error) {
	opts := applyClientOptions(options)

	if cfg.Host == "" {
		return nil, fmt.Errorf("mercury: config host cannot be empty")
	}
	prefetch := cfg.Prefetch
	if prefetch == 0 {
		prefetch = DefaultPrefetch
	}

	conn, err := rabbitmq.Connect(ctx, rabbitmq.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		VHost:    cfg.VHost,
		Username: cfg.Username,
		Password: cfg.Password,
		Prefetch: prefetch,
	},
		rabbitmq.WithLogger(opts.logger),
		rabbitmq.WithObserver(opts.observer),
	)
	if err != nil {
		return nil, err
	}

	transport := rabbitmq.NewTransport(conn, opts.logger)
	return newClient(transport, opts), nil
}

// newClient assembles a client over any transport; tests use this with an
// in-memory transport
func newClient(transport messaging.Transport, opts clientOptions) *Client {
	publisher := messaging.NewMessagePublisher(
		transport.Publisher(),
		transport.Topology(),
		messaging.WithPublisherLogger(opts.logger),
		messaging.WithSerializer(opts.serializer),
	)
	dispatcher := messaging.NewDispatcher(
		transport.Topology(),
		transport.Subscriber(),
		messaging.WithDispatcherLogger(opts.logger),
		messaging.WithDispatcherSerializer(opts.serializer),
	)

	return &Client{
		transport:  transport,
		publisher:  publisher,
		dispatcher: dispatcher,
		topology:   transport.Topology(),
		prober:     transport.Prober(),
	}
}

// Publish serializes value and sends it to the source. The source is
// declared on first use. The trace id from ctx travels in the message
// headers; WithTag sets the routing tag (default "").
//
// Publish returns once the message is written locally. Publisher confirms
// are enabled on the channel but not awaited, so a return without error is
// not a broker acknowledgement.
func (c *Client) Publish(ctx context.Context, source string, value interface{}, options ...PublishOption) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.publisher.Publish(ctx, source, value, options...)
}

// PublishRaw sends pre-encoded bytes to the source, sniffing the content
// type from the payload unless overridden with WithContentType
func (c *Client) PublishRaw(ctx context.Context, source string, body []byte, options ...PublishOption) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.publisher.PublishRaw(ctx, source, body, options...)
}

// StartListener subscribes broadcast-style to a source. Every listener gets
// its own ephemeral queue and its own copy of each message matching the tag
// filter (default "#"). Listener envelopes cannot be acknowledged.
func (c *Client) StartListener(ctx context.Context, source string, handler Handler, options ...SubscribeOption) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.dispatcher.StartListener(ctx, source, handler, options...)
}

// StartWorker subscribes competitively through the group's shared durable
// queue. Exactly one consumer of the group receives each matching message
// and must settle it with Ack, Nack, or Reject. Calling StartWorker with
// another filter accumulates bindings on the same queue.
func (c *Client) StartWorker(ctx context.Context, group, source string, handler Handler, options ...SubscribeOption) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.dispatcher.StartWorker(ctx, group, source, handler, options...)
}

// DeleteSource removes a source; deleting an absent source succeeds
func (c *Client) DeleteSource(ctx context.Context, source string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.topology.DeleteSource(ctx, source)
}

// DeleteWorkerQueue removes the group's queue; absent queues succeed
func (c *Client) DeleteWorkerQueue(ctx context.Context, group string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.topology.DeleteWorkerQueue(ctx, group)
}

// SourceExists reports whether the source exists without creating it
func (c *Client) SourceExists(ctx context.Context, source string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	return c.prober.SourceExists(ctx, source)
}

// QueueExists reports whether the queue exists without creating it
func (c *Client) QueueExists(ctx context.Context, queue string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	return c.prober.QueueExists(ctx, queue)
}

// Close stops all subscriptions and tears down the connection. It is safe
// to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	stopErr := c.dispatcher.StopAll()
	if err := c.transport.Close(); err != nil {
		return err
	}
	return stopErr
}
