package messaging

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// mockTransportPublisher implements TransportPublisher for testing
type mockTransportPublisher struct {
	mock.Mock
}

func (m *mockTransportPublisher) Publish(ctx context.Context, source, tag string, msg OutboundMessage) error {
	return m.Called(ctx, source, tag, msg).Error(0)
}

// mockTransportSubscriber implements TransportSubscriber for testing
type mockTransportSubscriber struct {
	mock.Mock
}

func (m *mockTransportSubscriber) Subscribe(ctx context.Context, queue string, handler DeliveryHandler, options SubscriptionOptions) (string, error) {
	args := m.Called(ctx, queue, handler, options)
	return args.String(0), args.Error(1)
}

func (m *mockTransportSubscriber) Unsubscribe(consumerTag string) error {
	return m.Called(consumerTag).Error(0)
}

// mockTopology implements Topology for testing
type mockTopology struct {
	mock.Mock
}

func (m *mockTopology) EnsureSource(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockTopology) DeleteSource(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockTopology) DeclareListenerQueue(ctx context.Context, source, tagFilter string) (string, error) {
	args := m.Called(ctx, source, tagFilter)
	return args.String(0), args.Error(1)
}

func (m *mockTopology) DeclareWorkerQueue(ctx context.Context, group, source, tagFilter string) (string, error) {
	args := m.Called(ctx, group, source, tagFilter)
	return args.String(0), args.Error(1)
}

func (m *mockTopology) DeleteWorkerQueue(ctx context.Context, group string) error {
	return m.Called(ctx, group).Error(0)
}

// fakeDelivery is a hand-rolled TransportDelivery that records settlement
// calls
type fakeDelivery struct {
	body        []byte
	routingKey  string
	headers     map[string]interface{}
	contentType string
	redelivered bool

	acks    int
	nacks   int
	rejects int
	requeue bool
}

func (d *fakeDelivery) Body() []byte { return d.body }

func (d *fakeDelivery) RoutingKey() string { return d.routingKey }

func (d *fakeDelivery) Headers() map[string]interface{} { return d.headers }

func (d *fakeDelivery) ContentType() string { return d.contentType }

func (d *fakeDelivery) Redelivered() bool { return d.redelivered }

func (d *fakeDelivery) Ack() error {
	d.acks++
	return nil
}

func (d *fakeDelivery) Nack(requeue bool) error {
	d.nacks++
	d.requeue = requeue
	return nil
}

func (d *fakeDelivery) Reject(requeue bool) error {
	d.rejects++
	d.requeue = requeue
	return nil
}
