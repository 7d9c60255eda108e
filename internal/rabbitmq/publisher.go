package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wintonpc/mercury-amqp/messaging"
)

// Publisher sends messages on the shared channel. The channel runs in
// confirm mode, but Publish returns as soon as the write is handed to the
// client library; broker confirmations are not awaited, so completion means
// "written locally", not "accepted by the broker".
type Publisher struct {
	ch     Channel
	logger *slog.Logger
}

// PublisherOption configures the Publisher
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher on the shared channel
func NewPublisher(ch Channel, options ...PublisherOption) *Publisher {
	p := &Publisher{
		ch:     ch,
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Publish sends a message to the source with the given routing tag
func (p *Publisher) Publish(ctx context.Context, source, tag string, msg messaging.OutboundMessage) error {
	deliveryMode := amqp.Transient
	if msg.Persistent {
		deliveryMode = amqp.Persistent
	}

	pub := amqp.Publishing{
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		ContentType:  msg.ContentType,
		Headers:      amqp.Table(msg.Headers),
		DeliveryMode: deliveryMode,
		Body:         msg.Body,
	}

	err := p.ch.PublishWithContext(ctx, source, tag, false, false, pub)
	if err != nil {
		return &ChannelError{Op: fmt.Sprintf("publish to %s", source), Code: replyCode(err), Err: err}
	}
	return nil
}
