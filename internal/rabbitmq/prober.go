package rabbitmq

import (
	"context"
	"log/slog"
)

// ExistenceProber answers "does this source/queue exist" without creating
// anything. Each probe runs a passive declare on a disposable channel: a
// failed passive declare leaves its channel in an errored state on AMQP, so
// probing on the shared channel would poison real traffic.
//
// A not-found reply resolves to false. Any other failure is fatal and is
// escalated through the same path as a shared-channel error.
type ExistenceProber struct {
	opener   ChannelOpener
	escalate func(*ChannelError)
	logger   *slog.Logger
}

// NewExistenceProber creates a prober. escalate receives any probe failure
// that is not a not-found reply; it may be nil when no escalation is wanted.
func NewExistenceProber(opener ChannelOpener, escalate func(*ChannelError), logger *slog.Logger) *ExistenceProber {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExistenceProber{
		opener:   opener,
		escalate: escalate,
		logger:   logger,
	}
}

// SourceExists reports whether the source exists, creating nothing
func (p *ExistenceProber) SourceExists(ctx context.Context, name string) (bool, error) {
	return p.probe("probe source", func(ch Channel) error {
		return ch.ExchangeDeclarePassive(name, "topic", true, false, false, false, nil)
	})
}

// QueueExists reports whether the queue exists, creating nothing
func (p *ExistenceProber) QueueExists(ctx context.Context, name string) (bool, error) {
	return p.probe("probe queue", func(ch Channel) error {
		_, err := ch.QueueDeclarePassive(name, true, false, false, false, nil)
		return err
	})
}

func (p *ExistenceProber) probe(op string, declare func(Channel) error) (bool, error) {
	ch, err := p.opener.OpenChannel()
	if err != nil {
		return false, err
	}

	err = declare(ch)
	if err == nil {
		if closeErr := ch.Close(); closeErr != nil {
			p.logger.Warn("failed to close probe channel", "error", closeErr)
		}
		return true, nil
	}

	// The broker already closed the probe channel on failure; Close is a
	// best-effort cleanup for client-side state.
	ch.Close()

	if IsNotFound(err) {
		return false, nil
	}

	chErr := &ChannelError{Op: op, Code: replyCode(err), Err: err}
	if p.escalate != nil {
		p.escalate(chErr)
	}
	return false, chErr
}
