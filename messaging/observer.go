package messaging

// ConnectionObserver receives fatal transport failures. Both callbacks are
// terminal: by the time one fires the client has already closed itself, and
// no reconnection is attempted. Any retry policy belongs to the caller.
type ConnectionObserver interface {
	// OnConnectionLost is invoked when the broker connection drops or the
	// initial dial fails
	OnConnectionLost(err error)

	// OnChannelError is invoked on a protocol violation on the shared
	// channel, with the broker's reply code when known
	OnChannelError(code int, text string)
}
