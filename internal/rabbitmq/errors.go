package rabbitmq

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrClosed is returned when an operation is attempted on a closed client
	ErrClosed = errors.New("rabbitmq: client is closed")

	// ErrNotConnected is returned when the connection was never established
	ErrNotConnected = errors.New("rabbitmq: not connected")
)

// ConnectionError represents a fatal connection-level failure: the initial
// dial failing or an established connection being lost. There is no retry
// built into this layer; the error reaches the ConnectionObserver and the
// client stops.
type ConnectionError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rabbitmq connection error: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ChannelError represents a fatal protocol violation on a channel, such as a
// double acknowledgement or a declare with conflicting arguments. Channel
// errors on the shared channel close the whole client.
type ChannelError struct {
	Op   string // Operation that failed
	Code int    // AMQP reply code, when known
	Err  error  // Underlying error
}

func (e *ChannelError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("rabbitmq channel error: %s (code %d): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("rabbitmq channel error: %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is the broker's not-found reply to a
// passive declare or a delete against an absent target. This is the only
// failure kind recovered locally; everything else is fatal.
func IsNotFound(err error) bool {
	var amqpErr *amqp.Error
	return errors.As(err, &amqpErr) && amqpErr.Code == amqp.NotFound
}

// replyCode extracts the AMQP reply code from err, or 0 when there is none
func replyCode(err error) int {
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return amqpErr.Code
	}
	return 0
}
