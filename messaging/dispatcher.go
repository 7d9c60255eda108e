package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wintonpc/mercury-amqp/serialization"
	"github.com/wintonpc/mercury-amqp/tracing"
)

// DefaultTagFilter matches every routing tag
const DefaultTagFilter = "#"

// Dispatcher orchestrates subscriptions: it declares the topology for
// listeners and workers, subscribes to their queues, and turns raw
// deliveries into envelope-bearing handler invocations.
//
// Listener subscriptions each get their own ephemeral queue, so every
// listener receives a full copy of matching traffic with no acknowledgement
// required. Worker subscriptions share the group's durable queue; exactly
// one consumer of the group receives each message and must settle it, with
// the channel prefetch bounding unsettled deliveries.
type Dispatcher struct {
	topology   Topology
	subscriber TransportSubscriber
	serializer serialization.Serializer
	logger     *slog.Logger

	mu            sync.Mutex
	subscriptions []subscription
}

type subscription struct {
	consumerTag string
	queue       string
	worker      bool
}

// DispatcherOption configures the Dispatcher
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithDispatcherSerializer sets the payload serializer
func WithDispatcherSerializer(serializer serialization.Serializer) DispatcherOption {
	return func(d *Dispatcher) {
		d.serializer = serializer
	}
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(topology Topology, subscriber TransportSubscriber, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		topology:   topology,
		subscriber: subscriber,
		serializer: serialization.NewJSONSerializer(),
		logger:     slog.Default(),
	}

	for _, opt := range options {
		opt(d)
	}

	return d
}

// SubscribeOptions configures StartListener and StartWorker
type SubscribeOptions struct {
	TagFilter string
}

// SubscribeOption configures subscription behavior
type SubscribeOption func(*SubscribeOptions)

// WithTagFilter sets the binding filter; * matches one dot-separated segment
// and # matches zero or more. The default filter # matches everything.
func WithTagFilter(filter string) SubscribeOption {
	return func(opts *SubscribeOptions) {
		opts.TagFilter = filter
	}
}

// StartListener subscribes broadcast-style to a source. A fresh exclusive
// queue is declared and bound with the tag filter, so each call receives its
// own copy of matching messages. Listener envelopes are not acknowledgeable.
func (d *Dispatcher) StartListener(ctx context.Context, source string, handler Handler, options ...SubscribeOption) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	opts := applySubscribeOptions(options)

	if err := d.topology.EnsureSource(ctx, source); err != nil {
		return err
	}

	queue, err := d.topology.DeclareListenerQueue(ctx, source, opts.TagFilter)
	if err != nil {
		return err
	}

	tag, err := d.subscriber.Subscribe(ctx, queue, d.deliver(queue, handler, false), SubscriptionOptions{
		AutoAck:   true,
		Exclusive: true,
	})
	if err != nil {
		return err
	}

	d.track(subscription{consumerTag: tag, queue: queue})
	d.logger.Info("listener started",
		"source", source,
		"queue", queue,
		"tagFilter", opts.TagFilter,
	)
	return nil
}

// StartWorker subscribes competitively to a source through the group's shared
// durable queue. Calling StartWorker again with a different filter adds a
// binding to the same queue rather than replacing the existing ones. Worker
// envelopes must be settled by the handler.
func (d *Dispatcher) StartWorker(ctx context.Context, group, source string, handler Handler, options ...SubscribeOption) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if group == "" {
		return fmt.Errorf("worker group cannot be empty")
	}
	opts := applySubscribeOptions(options)

	if err := d.topology.EnsureSource(ctx, source); err != nil {
		return err
	}

	queue, err := d.topology.DeclareWorkerQueue(ctx, group, source, opts.TagFilter)
	if err != nil {
		return err
	}

	tag, err := d.subscriber.Subscribe(ctx, queue, d.deliver(queue, handler, true), SubscriptionOptions{
		AutoAck: false,
	})
	if err != nil {
		return err
	}

	d.track(subscription{consumerTag: tag, queue: queue, worker: true})
	d.logger.Info("worker started",
		"group", group,
		"source", source,
		"tagFilter", opts.TagFilter,
	)
	return nil
}

// StopAll cancels every subscription started by this dispatcher
func (d *Dispatcher) StopAll() error {
	d.mu.Lock()
	subs := d.subscriptions
	d.subscriptions = nil
	d.mu.Unlock()

	var firstErr error
	for _, sub := range subs {
		if err := d.subscriber.Unsubscribe(sub.consumerTag); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *Dispatcher) track(sub subscription) {
	d.mu.Lock()
	d.subscriptions = append(d.subscriptions, sub)
	d.mu.Unlock()
}

// deliver adapts a Handler into a transport DeliveryHandler for one queue
func (d *Dispatcher) deliver(queue string, handler Handler, ackable bool) DeliveryHandler {
	return func(ctx context.Context, delivery TransportDelivery) {
		ctx = tracing.Absorb(ctx, delivery.Headers())

		content, err := d.serializer.Deserialize(delivery.Body())
		if err != nil {
			d.logger.Error("failed to deserialize delivery",
				"queue", queue,
				"tag", delivery.RoutingKey(),
				"error", err,
			)
			// A payload that cannot be decoded will never decode on
			// redelivery either; discard instead of requeueing.
			if ackable {
				d.discard(queue, delivery)
			}
			return
		}

		envelope := newEnvelope(delivery, content, ackable)

		if err := d.invoke(ctx, handler, envelope); err != nil {
			d.logger.Error("handler failed",
				"queue", queue,
				"tag", delivery.RoutingKey(),
				"redelivered", delivery.Redelivered(),
				"error", err,
			)
			if ackable && !envelope.Settled() {
				d.discard(queue, delivery)
			}
		}
	}
}

// invoke runs the handler, converting panics into errors so a misbehaving
// handler cannot take down the consumer loop
func (d *Dispatcher) invoke(ctx context.Context, handler Handler, envelope *Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, envelope)
}

// discard settles a failed worker delivery without requeue. Requeueing here
// would redeliver immediately and spin on a deterministic failure.
func (d *Dispatcher) discard(queue string, delivery TransportDelivery) {
	if err := delivery.Nack(false); err != nil {
		d.logger.Error("failed to discard delivery", "queue", queue, "error", err)
	}
}

func applySubscribeOptions(options []SubscribeOption) SubscribeOptions {
	opts := SubscribeOptions{TagFilter: DefaultTagFilter}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}
