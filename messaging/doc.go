// Package messaging implements the delivery-semantics layer of mercury-amqp.
//
// This package contains:
//   - Dispatcher: declares listener and worker topology, subscribes to
//     queues, and invokes handlers with per-delivery envelopes
//   - MessagePublisher: serializes payloads and publishes them to sources
//     with trace-id propagation
//   - Envelope: the immutable per-delivery view handed to handlers, with
//     acknowledgement operations on worker deliveries
//   - Transport interfaces: the broker-facing seam implemented by
//     internal/rabbitmq and by test doubles
//
// Two delivery modes are supported. Listeners are broadcast subscriptions:
// each one owns an ephemeral exclusive queue and the broker settles
// deliveries on send, so every listener sees every matching message and no
// acknowledgement is possible. Workers are competing consumers on a shared
// durable queue named after their group: each message goes to exactly one
// group member, which must Ack, Nack, or Reject it, with the channel
// prefetch bounding how many deliveries may be outstanding at once.
package messaging
