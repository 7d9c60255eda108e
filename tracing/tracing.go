package tracing

import (
	"context"

	"github.com/google/uuid"
)

// HeaderName is the message header that carries the trace id across process
// boundaries. Caller-supplied headers never override it; the publisher always
// writes the id taken from the calling context.
const HeaderName = "x-trace-id"

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

var traceIDKey contextKey

// WithTraceID returns a context carrying the given trace id
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// TraceID returns the trace id carried by the context, if any
func TraceID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(traceIDKey).(string)
	return id, ok && id != ""
}

// EnsureTraceID returns a context guaranteed to carry a trace id, generating
// a new one when the context has none
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if id, ok := TraceID(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithTraceID(ctx, id), id
}

// Decorate merges the context's trace id into headers, allocating the map if
// needed. The trace header is always set from the context, not from any value
// already present in headers.
func Decorate(ctx context.Context, headers map[string]interface{}) map[string]interface{} {
	_, id := EnsureTraceID(ctx)
	if headers == nil {
		headers = make(map[string]interface{}, 1)
	}
	headers[HeaderName] = id
	return headers
}

// Absorb returns a context carrying the trace id found in the incoming
// headers. When the headers carry none, a fresh id is generated so every
// handler invocation observes a usable trace id.
func Absorb(ctx context.Context, headers map[string]interface{}) context.Context {
	if id, ok := headers[HeaderName].(string); ok && id != "" {
		return WithTraceID(ctx, id)
	}
	ctx, _ = EnsureTraceID(ctx)
	return ctx
}
