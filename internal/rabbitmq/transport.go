package rabbitmq

import (
	"log/slog"

	"github.com/wintonpc/mercury-amqp/messaging"
)

// Transport assembles the AMQP implementations of the messaging interfaces
// around one ConnectionManager and its shared channel.
type Transport struct {
	conn      *ConnectionManager
	topology  *TopologyManager
	prober    *ExistenceProber
	publisher *Publisher
	consumer  *Consumer
}

// NewTransport wires a transport over an established connection
func NewTransport(conn *ConnectionManager, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	ch := conn.Channel()
	return &Transport{
		conn:      conn,
		topology:  NewTopologyManager(ch, WithTopologyLogger(logger)),
		prober:    NewExistenceProber(conn, conn.EscalateChannelError, logger),
		publisher: NewPublisher(ch, WithPublisherLogger(logger)),
		consumer:  NewConsumer(ch, WithConsumerLogger(logger)),
	}
}

// Publisher returns the transport publisher
func (t *Transport) Publisher() messaging.TransportPublisher {
	return t.publisher
}

// Subscriber returns the transport subscriber
func (t *Transport) Subscriber() messaging.TransportSubscriber {
	return t.consumer
}

// Topology returns the topology manager
func (t *Transport) Topology() messaging.Topology {
	return t.topology
}

// Prober returns the existence prober
func (t *Transport) Prober() messaging.Prober {
	return t.prober
}

// Close drains all consumers, then closes the connection
func (t *Transport) Close() error {
	consumerErr := t.consumer.Close()
	if err := t.conn.Close(); err != nil {
		return err
	}
	return consumerErr
}

var _ messaging.Transport = (*Transport)(nil)
