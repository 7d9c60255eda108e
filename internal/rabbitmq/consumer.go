package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wintonpc/mercury-amqp/messaging"
)

// Consumer manages subscriptions on the shared channel. Each subscription
// runs its own delivery loop goroutine, so handlers on one subscription
// execute serially while the channel prefetch bounds how many unsettled
// worker deliveries exist across the channel.
type Consumer struct {
	ch     Channel
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*consumerState
}

type consumerState struct {
	queue  string
	cancel context.CancelFunc
	done   chan struct{}
}

// ConsumerOption configures the Consumer
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the logger
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// NewConsumer creates a new consumer on the shared channel
func NewConsumer(ch Channel, options ...ConsumerOption) *Consumer {
	c := &Consumer{
		ch:     ch,
		logger: slog.Default(),
		active: make(map[string]*consumerState),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Subscribe starts consuming from a queue, returning the consumer tag. The
// handler runs on a dedicated goroutine until Unsubscribe or Close, or until
// the delivery stream closes. ctx covers subscription setup only; the
// subscription's lifetime is owned by the Consumer, so a caller's timeout on
// the setup context cannot strand a broker-side consumer that nobody reads.
func (c *Consumer) Subscribe(ctx context.Context, queue string, handler messaging.DeliveryHandler, options messaging.SubscriptionOptions) (string, error) {
	tag := "mercury-" + uuid.NewString()

	deliveries, err := c.ch.Consume(
		queue,
		tag,
		options.AutoAck,
		options.Exclusive,
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return "", &ChannelError{Op: fmt.Sprintf("subscribe to %s", queue), Code: replyCode(err), Err: err}
	}

	consumerCtx, cancel := context.WithCancel(context.Background())
	state := &consumerState{
		queue:  queue,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.active[tag] = state
	c.mu.Unlock()

	go c.consumeLoop(consumerCtx, tag, state, deliveries, handler)

	c.logger.Info("subscribed",
		"queue", queue,
		"consumerTag", tag,
		"autoAck", options.AutoAck,
	)
	return tag, nil
}

func (c *Consumer) consumeLoop(ctx context.Context, tag string, state *consumerState, deliveries <-chan amqp.Delivery, handler messaging.DeliveryHandler) {
	defer func() {
		close(state.done)
		c.mu.Lock()
		delete(c.active, tag)
		c.mu.Unlock()
		c.logger.Info("consumer stopped", "queue", state.queue, "consumerTag", tag)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			handler(ctx, &amqpDelivery{delivery: delivery})
		}
	}
}

// Unsubscribe cancels the subscription with the given consumer tag and waits
// for its loop to drain
func (c *Consumer) Unsubscribe(tag string) error {
	c.mu.Lock()
	state, ok := c.active[tag]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no active consumer with tag %s", tag)
	}

	err := c.ch.Cancel(tag, false)
	state.cancel()
	<-state.done
	if err != nil {
		return &ChannelError{Op: fmt.Sprintf("cancel consumer %s", tag), Code: replyCode(err), Err: err}
	}
	return nil
}

// Close cancels all active subscriptions
func (c *Consumer) Close() error {
	c.mu.Lock()
	tags := make([]string, 0, len(c.active))
	for tag := range c.active {
		tags = append(tags, tag)
	}
	c.mu.Unlock()

	var firstErr error
	for _, tag := range tags {
		if err := c.Unsubscribe(tag); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// amqpDelivery adapts amqp091.Delivery to messaging.TransportDelivery
type amqpDelivery struct {
	delivery amqp.Delivery
}

func (d *amqpDelivery) Body() []byte {
	return d.delivery.Body
}

func (d *amqpDelivery) RoutingKey() string {
	return d.delivery.RoutingKey
}

func (d *amqpDelivery) Headers() map[string]interface{} {
	return d.delivery.Headers
}

func (d *amqpDelivery) ContentType() string {
	return d.delivery.ContentType
}

func (d *amqpDelivery) Redelivered() bool {
	return d.delivery.Redelivered
}

func (d *amqpDelivery) Ack() error {
	return d.delivery.Ack(false)
}

func (d *amqpDelivery) Nack(requeue bool) error {
	return d.delivery.Nack(false, requeue)
}

func (d *amqpDelivery) Reject(requeue bool) error {
	return d.delivery.Reject(requeue)
}
