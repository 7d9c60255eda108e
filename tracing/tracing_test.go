package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceID(t *testing.T) {
	t.Run("returns id set on context", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "abc-123")

		id, ok := TraceID(ctx)

		assert.True(t, ok)
		assert.Equal(t, "abc-123", id)
	})

	t.Run("reports absence on bare context", func(t *testing.T) {
		id, ok := TraceID(context.Background())

		assert.False(t, ok)
		assert.Empty(t, id)
	})

	t.Run("treats empty id as absent", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "")

		_, ok := TraceID(ctx)

		assert.False(t, ok)
	})
}

func TestEnsureTraceID(t *testing.T) {
	t.Run("keeps existing id", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "existing")

		ctx2, id := EnsureTraceID(ctx)

		assert.Equal(t, "existing", id)
		assert.Equal(t, ctx, ctx2)
	})

	t.Run("generates id when missing", func(t *testing.T) {
		ctx, id := EnsureTraceID(context.Background())

		assert.NotEmpty(t, id)
		got, ok := TraceID(ctx)
		assert.True(t, ok)
		assert.Equal(t, id, got)
	})
}

func TestDecorate(t *testing.T) {
	t.Run("writes context id into headers", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "trace-x")

		headers := Decorate(ctx, map[string]interface{}{"k": "v"})

		assert.Equal(t, "trace-x", headers[HeaderName])
		assert.Equal(t, "v", headers["k"])
	})

	t.Run("allocates headers when nil", func(t *testing.T) {
		headers := Decorate(context.Background(), nil)

		assert.NotEmpty(t, headers[HeaderName])
	})

	t.Run("overrides caller-supplied trace header", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "from-context")

		headers := Decorate(ctx, map[string]interface{}{HeaderName: "from-caller"})

		assert.Equal(t, "from-context", headers[HeaderName])
	})
}

func TestAbsorb(t *testing.T) {
	t.Run("reads id from headers", func(t *testing.T) {
		headers := map[string]interface{}{HeaderName: "incoming"}

		ctx := Absorb(context.Background(), headers)

		id, ok := TraceID(ctx)
		assert.True(t, ok)
		assert.Equal(t, "incoming", id)
	})

	t.Run("replaces id already on context", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "old")
		headers := map[string]interface{}{HeaderName: "new"}

		ctx = Absorb(ctx, headers)

		id, _ := TraceID(ctx)
		assert.Equal(t, "new", id)
	})

	t.Run("generates id when headers carry none", func(t *testing.T) {
		ctx := Absorb(context.Background(), map[string]interface{}{})

		id, ok := TraceID(ctx)
		assert.True(t, ok)
		assert.NotEmpty(t, id)
	})

	t.Run("ignores non-string header value", func(t *testing.T) {
		ctx := Absorb(context.Background(), map[string]interface{}{HeaderName: 42})

		id, ok := TraceID(ctx)
		assert.True(t, ok)
		assert.NotEmpty(t, id)
		assert.NotEqual(t, "42", id)
	})
}

func TestDecorateAbsorbRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "round-trip")

	headers := Decorate(ctx, nil)
	ctx2 := Absorb(context.Background(), headers)

	id, _ := TraceID(ctx2)
	assert.Equal(t, "round-trip", id)
}
