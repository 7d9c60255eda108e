package rabbitmq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wintonpc/mercury-amqp/messaging"
)

func TestPublisherPublish(t *testing.T) {
	t.Run("publishes with routing tag and attributes", func(t *testing.T) {
		var captured amqp.Publishing
		ch := &mockChannel{}
		ch.On("PublishWithContext", mock.Anything, "orders", "order.created", false, false, mock.Anything).
			Run(func(args mock.Arguments) {
				captured = args.Get(5).(amqp.Publishing)
			}).
			Return(nil)
		p := NewPublisher(ch)

		err := p.Publish(context.Background(), "orders", "order.created", messaging.OutboundMessage{
			Body:        []byte(`{"id":1}`),
			ContentType: "application/json",
			Headers:     map[string]interface{}{"x-trace-id": "t1"},
			Persistent:  true,
		})

		require.NoError(t, err)
		assert.Equal(t, []byte(`{"id":1}`), captured.Body)
		assert.Equal(t, "application/json", captured.ContentType)
		assert.Equal(t, amqp.Table{"x-trace-id": "t1"}, captured.Headers)
		assert.Equal(t, uint8(amqp.Persistent), captured.DeliveryMode)
		assert.NotEmpty(t, captured.MessageId)
		assert.False(t, captured.Timestamp.IsZero())
	})

	t.Run("publishes transient when not persistent", func(t *testing.T) {
		var captured amqp.Publishing
		ch := &mockChannel{}
		ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, false, false, mock.Anything).
			Run(func(args mock.Arguments) {
				captured = args.Get(5).(amqp.Publishing)
			}).
			Return(nil)
		p := NewPublisher(ch)

		err := p.Publish(context.Background(), "orders", "", messaging.OutboundMessage{Body: []byte("x")})

		require.NoError(t, err)
		assert.Equal(t, uint8(amqp.Transient), captured.DeliveryMode)
	})

	t.Run("wraps publish failure as channel error", func(t *testing.T) {
		ch := &mockChannel{}
		ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&amqp.Error{Code: amqp.ChannelError, Reason: "channel closed"})
		p := NewPublisher(ch)

		err := p.Publish(context.Background(), "orders", "t", messaging.OutboundMessage{})

		var chErr *ChannelError
		assert.ErrorAs(t, err, &chErr)
	})
}
