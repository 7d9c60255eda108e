package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// TopologyManager declares sources and the two queue shapes Mercury uses on
// the shared channel. Sources are topic exchanges with fixed attributes;
// declares are idempotent at the broker and additionally cached here so
// repeated EnsureSource calls skip the round trip.
type TopologyManager struct {
	ch     Channel
	logger *slog.Logger

	mu      sync.Mutex
	sources map[string]struct{}
}

// TopologyOption configures the TopologyManager
type TopologyOption func(*TopologyManager)

// WithTopologyLogger sets the logger
func WithTopologyLogger(logger *slog.Logger) TopologyOption {
	return func(tm *TopologyManager) {
		tm.logger = logger
	}
}

// NewTopologyManager creates a new topology manager on the shared channel
func NewTopologyManager(ch Channel, options ...TopologyOption) *TopologyManager {
	tm := &TopologyManager{
		ch:      ch,
		logger:  slog.Default(),
		sources: make(map[string]struct{}),
	}

	for _, opt := range options {
		opt(tm)
	}

	return tm
}

// EnsureSource idempotently declares a durable topic source
func (tm *TopologyManager) EnsureSource(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("source name cannot be empty")
	}

	tm.mu.Lock()
	_, known := tm.sources[name]
	tm.mu.Unlock()
	if known {
		return nil
	}

	err := tm.ch.ExchangeDeclare(
		name,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return &ChannelError{Op: fmt.Sprintf("declare source %s", name), Code: replyCode(err), Err: err}
	}

	tm.mu.Lock()
	tm.sources[name] = struct{}{}
	tm.mu.Unlock()
	return nil
}

// DeleteSource removes a source. Deleting an absent source succeeds; the
// broker treats delete-if-exists as idempotent and a not-found reply is
// mapped to success here.
func (tm *TopologyManager) DeleteSource(ctx context.Context, name string) error {
	tm.mu.Lock()
	delete(tm.sources, name)
	tm.mu.Unlock()

	if err := tm.ch.ExchangeDelete(name, false, false); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return &ChannelError{Op: fmt.Sprintf("delete source %s", name), Code: replyCode(err), Err: err}
	}
	return nil
}

// DeclareListenerQueue declares a broker-named exclusive auto-delete queue
// and binds it to the source with the tag filter. The queue disappears with
// its connection; every listener gets a fresh one.
func (tm *TopologyManager) DeclareListenerQueue(ctx context.Context, source, tagFilter string) (string, error) {
	q, err := tm.ch.QueueDeclare(
		"",    // broker-assigned name
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return "", &ChannelError{Op: "declare listener queue", Code: replyCode(err), Err: err}
	}

	if err := tm.ch.QueueBind(q.Name, tagFilter, source, false, nil); err != nil {
		return "", &ChannelError{Op: fmt.Sprintf("bind listener queue to %s", source), Code: replyCode(err), Err: err}
	}

	tm.logger.Debug("listener queue declared",
		"queue", q.Name,
		"source", source,
		"tagFilter", tagFilter,
	)
	return q.Name, nil
}

// DeclareWorkerQueue declares (or reuses) the group's durable shared queue
// and binds it to the source with the tag filter. Rebinding an existing
// queue with a new filter accumulates bindings; the broker ignores exact
// duplicates.
func (tm *TopologyManager) DeclareWorkerQueue(ctx context.Context, group, source, tagFilter string) (string, error) {
	q, err := tm.ch.QueueDeclare(
		group,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return "", &ChannelError{Op: fmt.Sprintf("declare worker queue %s", group), Code: replyCode(err), Err: err}
	}

	if err := tm.ch.QueueBind(q.Name, tagFilter, source, false, nil); err != nil {
		return "", &ChannelError{Op: fmt.Sprintf("bind worker queue %s to %s", group, source), Code: replyCode(err), Err: err}
	}

	tm.logger.Debug("worker queue declared",
		"queue", q.Name,
		"source", source,
		"tagFilter", tagFilter,
	)
	return q.Name, nil
}

// DeleteWorkerQueue removes the group's queue, succeeding when it is absent
func (tm *TopologyManager) DeleteWorkerQueue(ctx context.Context, group string) error {
	if _, err := tm.ch.QueueDelete(group, false, false, false); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return &ChannelError{Op: fmt.Sprintf("delete worker queue %s", group), Code: replyCode(err), Err: err}
	}
	return nil
}
