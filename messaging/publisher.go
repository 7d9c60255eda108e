package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/wintonpc/mercury-amqp/serialization"
	"github.com/wintonpc/mercury-amqp/tracing"
)

// mimeReadLimit caps how many payload bytes content-type sniffing inspects
const mimeReadLimit = 512

// mimetype.SetLimit mutates package-global state and is not safe against
// concurrent Detect calls, so it is applied exactly once.
var mimeLimitOnce sync.Once

// MessagePublisher serializes payloads and publishes them to sources. The
// target source is declared on first use and cached by the topology layer,
// so repeated publishes to the same source cost one broker round trip.
type MessagePublisher struct {
	transport  TransportPublisher
	topology   Topology
	serializer serialization.Serializer
	logger     *slog.Logger
}

// PublisherOption configures the MessagePublisher
type PublisherOption func(*MessagePublisher)

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *MessagePublisher) {
		p.logger = logger
	}
}

// WithSerializer sets the payload serializer
func WithSerializer(serializer serialization.Serializer) PublisherOption {
	return func(p *MessagePublisher) {
		p.serializer = serializer
	}
}

// NewMessagePublisher creates a new message publisher
func NewMessagePublisher(transport TransportPublisher, topology Topology, options ...PublisherOption) *MessagePublisher {
	p := &MessagePublisher{
		transport:  transport,
		topology:   topology,
		serializer: serialization.NewJSONSerializer(),
		logger:     slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// PublishOptions configures a single publish
type PublishOptions struct {
	Tag         string
	Headers     map[string]interface{}
	Persistent  bool
	ContentType string
}

// PublishOption configures publish behavior
type PublishOption func(*PublishOptions)

// WithTag sets the routing tag matched against binding filters
func WithTag(tag string) PublishOption {
	return func(opts *PublishOptions) {
		opts.Tag = tag
	}
}

// WithHeaders merges custom headers into the message
func WithHeaders(headers map[string]interface{}) PublishOption {
	return func(opts *PublishOptions) {
		if opts.Headers == nil {
			opts.Headers = make(map[string]interface{}, len(headers))
		}
		for k, v := range headers {
			opts.Headers[k] = v
		}
	}
}

// WithPersistent marks the message persistent or transient. Messages are
// persistent by default so they survive a broker restart on durable queues.
func WithPersistent(persistent bool) PublishOption {
	return func(opts *PublishOptions) {
		opts.Persistent = persistent
	}
}

// WithContentType overrides the content type on raw publishes
func WithContentType(contentType string) PublishOption {
	return func(opts *PublishOptions) {
		opts.ContentType = contentType
	}
}

// Publish serializes value and sends it to the source. The trace id from ctx
// is written into the message headers, overriding any caller-supplied value
// for that header.
func (p *MessagePublisher) Publish(ctx context.Context, source string, value interface{}, options ...PublishOption) error {
	opts := applyPublishOptions(options)

	body, err := p.serializer.Serialize(value)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", source, err)
	}

	return p.send(ctx, source, opts, body, p.serializer.ContentType())
}

// PublishRaw sends pre-encoded bytes to the source. The content type is
// sniffed from the payload unless set via WithContentType.
func (p *MessagePublisher) PublishRaw(ctx context.Context, source string, body []byte, options ...PublishOption) error {
	opts := applyPublishOptions(options)

	contentType := opts.ContentType
	if contentType == "" {
		mimeLimitOnce.Do(func() { mimetype.SetLimit(mimeReadLimit) })
		contentType = mimetype.Detect(body).String()
	}

	return p.send(ctx, source, opts, body, contentType)
}

func (p *MessagePublisher) send(ctx context.Context, source string, opts PublishOptions, body []byte, contentType string) error {
	if err := p.topology.EnsureSource(ctx, source); err != nil {
		return err
	}

	headers := tracing.Decorate(ctx, opts.Headers)

	msg := OutboundMessage{
		Body:        body,
		ContentType: contentType,
		Headers:     headers,
		Persistent:  opts.Persistent,
	}

	if err := p.transport.Publish(ctx, source, opts.Tag, msg); err != nil {
		return err
	}

	p.logger.Debug("published message",
		"source", source,
		"tag", opts.Tag,
		"bytes", len(body),
	)
	return nil
}

func applyPublishOptions(options []PublishOption) PublishOptions {
	opts := PublishOptions{Persistent: true}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}
