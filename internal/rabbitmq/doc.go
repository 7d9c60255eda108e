// Package rabbitmq provides the AMQP transport for mercury-amqp.
//
// This package includes:
//   - ConnectionManager: owns the broker connection and the single shared
//     channel, installs close notifications, and escalates failures
//   - TopologyManager: declares sources (durable topic exchanges), listener
//     queues (ephemeral, exclusive), and worker queues (durable, shared)
//   - ExistenceProber: passive declares on disposable channels for
//     side-effect-free existence checks
//   - Publisher and Consumer: publish and subscribe on the shared channel
//   - Transport: assembles the above behind the messaging interfaces
//
// Failure handling is deliberately simple: a lost connection or a protocol
// violation on the shared channel is fatal to the client. There is no
// reconnection or retry in this layer.
package rabbitmq
