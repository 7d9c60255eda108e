package mercury

import (
	"errors"
	"log/slog"

	"github.com/wintonpc/mercury-amqp/messaging"
	"github.com/wintonpc/mercury-amqp/serialization"
)

// ErrClosed is returned by operations on a closed Client
var ErrClosed = errors.New("mercury: client is closed")

// Handler processes delivered messages; see messaging.Handler
type Handler = messaging.Handler

// HandlerFunc adapts a function to Handler
type HandlerFunc = messaging.HandlerFunc

// Envelope is the per-delivery view handed to handlers
type Envelope = messaging.Envelope

// ConnectionObserver receives fatal transport failures
type ConnectionObserver = messaging.ConnectionObserver

// PublishOption configures a publish; see WithTag, WithHeaders,
// WithPersistent, WithContentType
type PublishOption = messaging.PublishOption

// SubscribeOption configures StartListener and StartWorker; see WithTagFilter
type SubscribeOption = messaging.SubscribeOption

// WithTag sets the routing tag on a publish
func WithTag(tag string) PublishOption {
	return messaging.WithTag(tag)
}

// WithHeaders merges custom headers into a published message. The trace
// header is always taken from the context, never from these headers.
func WithHeaders(headers map[string]interface{}) PublishOption {
	return messaging.WithHeaders(headers)
}

// WithPersistent marks the message persistent or transient
func WithPersistent(persistent bool) PublishOption {
	return messaging.WithPersistent(persistent)
}

// WithContentType overrides the content type on PublishRaw
func WithContentType(contentType string) PublishOption {
	return messaging.WithContentType(contentType)
}

// WithTagFilter sets the binding filter for a subscription; * matches one
// dot-separated segment, # matches zero or more
func WithTagFilter(filter string) SubscribeOption {
	return messaging.WithTagFilter(filter)
}

type clientOptions struct {
	logger     *slog.Logger
	observer   messaging.ConnectionObserver
	serializer serialization.Serializer
}

// ClientOption configures a Client
type ClientOption func(*clientOptions)

// WithLogger sets the logger used by every component of the client
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithObserver installs the failure observer invoked on fatal connection or
// channel errors
func WithObserver(observer ConnectionObserver) ClientOption {
	return func(o *clientOptions) {
		o.observer = observer
	}
}

// WithSerializer replaces the default JSON payload serializer
func WithSerializer(serializer serialization.Serializer) ClientOption {
	return func(o *clientOptions) {
		o.serializer = serializer
	}
}

func applyClientOptions(options []ClientOption) clientOptions {
	opts := clientOptions{
		logger:     slog.Default(),
		serializer: serialization.NewJSONSerializer(),
	}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}
