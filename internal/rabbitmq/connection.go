package rabbitmq

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wintonpc/mercury-amqp/messaging"
)

// Config describes how to reach the broker and how the shared channel is set
// up. Prefetch bounds the number of unacknowledged worker deliveries the
// channel will hold; it is the sole concurrency throttle for workers.
type Config struct {
	Host     string
	Port     int
	VHost    string
	Username string
	Password string
	Prefetch int
}

// URL assembles the AMQP URI for the configuration
func (c Config) URL() string {
	host := c.Host
	if c.Port != 0 {
		host = c.Host + ":" + strconv.Itoa(c.Port)
	}
	u := url.URL{
		Scheme: "amqp",
		Host:   host,
		Path:   c.VHost,
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u.String()
}

// ConnectionManager owns the broker connection and the single shared channel
// every component publishes and consumes on. It installs close notifications
// on both and escalates any failure through one path: close the client, then
// inform the observer.
//
// There is no reconnection. A lost connection or a poisoned shared channel
// is fatal to the client; callers decide whether to build a new one.
type ConnectionManager struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	observer messaging.ConnectionObserver
	logger   *slog.Logger

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

// ConnectionOption configures the ConnectionManager
type ConnectionOption func(*ConnectionManager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithObserver sets the failure observer
func WithObserver(observer messaging.ConnectionObserver) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.observer = observer
	}
}

// Connect dials the broker and opens the shared channel with the configured
// prefetch and publisher-confirm mode enabled. Confirms are enabled but not
// awaited by publishes; see Publisher.
func Connect(ctx context.Context, cfg Config, options ...ConnectionOption) (*ConnectionManager, error) {
	cm := &ConnectionManager{
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(cm)
	}

	connChan := make(chan *amqp.Connection, 1)
	errChan := make(chan error, 1)
	go func() {
		conn, err := amqp.Dial(cfg.URL())
		if err != nil {
			errChan <- err
			return
		}
		connChan <- conn
	}()

	select {
	case conn := <-connChan:
		cm.conn = conn
	case err := <-errChan:
		connErr := &ConnectionError{Op: "dial", Err: err}
		cm.notifyConnectionLost(connErr)
		return nil, connErr
	case <-ctx.Done():
		// The dial may still complete after we give up; close whatever
		// arrives so the connection does not leak without an owner.
		go func() {
			select {
			case conn := <-connChan:
				conn.Close()
			case <-errChan:
			}
		}()
		connErr := &ConnectionError{Op: "dial", Err: ctx.Err()}
		cm.notifyConnectionLost(connErr)
		return nil, connErr
	}

	ch, err := cm.conn.Channel()
	if err != nil {
		cm.conn.Close()
		return nil, &ConnectionError{Op: "open channel", Err: err}
	}
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		cm.conn.Close()
		return nil, &ChannelError{Op: "set prefetch", Code: replyCode(err), Err: err}
	}
	if err := ch.Confirm(false); err != nil {
		cm.conn.Close()
		return nil, &ChannelError{Op: "enable confirms", Code: replyCode(err), Err: err}
	}
	cm.channel = ch

	go cm.supervise(
		cm.conn.NotifyClose(make(chan *amqp.Error, 1)),
		ch.NotifyClose(make(chan *amqp.Error, 1)),
	)

	cm.logger.Info("connected to broker",
		"host", cfg.Host,
		"vhost", cfg.VHost,
		"prefetch", cfg.Prefetch,
	)
	return cm, nil
}

// Channel returns the shared channel
func (cm *ConnectionManager) Channel() Channel {
	return cm.channel
}

// OpenChannel opens a fresh channel on the connection. Used by the existence
// prober, which must not risk the shared channel.
func (cm *ConnectionManager) OpenChannel() (Channel, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.closed {
		return nil, ErrClosed
	}
	if cm.conn == nil {
		return nil, ErrNotConnected
	}
	ch, err := cm.conn.Channel()
	if err != nil {
		return nil, &ChannelError{Op: "open probe channel", Code: replyCode(err), Err: err}
	}
	return ch, nil
}

// Close tears down the connection. It is safe to call on a manager that
// never connected, and safe to call more than once.
func (cm *ConnectionManager) Close() error {
	if cm == nil {
		return nil
	}

	var err error
	cm.closeOnce.Do(func() {
		cm.mu.Lock()
		cm.closed = true
		conn := cm.conn
		cm.mu.Unlock()

		close(cm.done)
		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}

// EscalateChannelError funnels a fatal channel-level failure through the
// standard path: close the client, then inform the observer. The probe path
// uses this when a disposable channel fails for any reason other than
// not-found.
func (cm *ConnectionManager) EscalateChannelError(chErr *ChannelError) {
	cm.logger.Error("fatal channel error", "op", chErr.Op, "code", chErr.Code, "error", chErr.Err)
	cm.Close()
	if cm.observer != nil {
		cm.observer.OnChannelError(chErr.Code, chErr.Error())
	}
}

// supervise watches both close notifications and escalates the first
// failure. A dying connection also closes its channels, and amqp091 pushes
// the same error to both notification channels in no particular order, so a
// channel-close event is only treated as a channel error after checking that
// the connection itself is not the thing that died.
func (cm *ConnectionManager) supervise(connClose, chanClose chan *amqp.Error) {
	select {
	case <-cm.done:
		return
	case amqpErr, ok := <-connClose:
		if !ok || amqpErr == nil {
			return
		}
		cm.Close()
		cm.notifyConnectionLost(&ConnectionError{Op: "connection lost", Err: amqpErr})
	case amqpErr, ok := <-chanClose:
		if !ok || amqpErr == nil {
			return
		}
		select {
		case connErr, connOk := <-connClose:
			if connOk && connErr != nil {
				cm.Close()
				cm.notifyConnectionLost(&ConnectionError{Op: "connection lost", Err: connErr})
				return
			}
		default:
		}
		cm.EscalateChannelError(&ChannelError{Op: "shared channel", Code: amqpErr.Code, Err: amqpErr})
	}
}

func (cm *ConnectionManager) notifyConnectionLost(err *ConnectionError) {
	cm.logger.Error("connection lost", "error", err)
	if cm.observer != nil {
		cm.observer.OnConnectionLost(err)
	}
}

var _ ChannelOpener = (*ConnectionManager)(nil)
