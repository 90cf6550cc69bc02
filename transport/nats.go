package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/homestream/errors"
	"github.com/c360/homestream/metric"
	"github.com/c360/homestream/pkg/retry"
)

// Status represents the state of the broker connection.
type Status int

// Possible connection statuses
const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type subKey struct {
	topic string
	sink  MessageSink
}

// Conn is the NATS-backed Connection implementation.
type Conn struct {
	url    string
	name   string
	logger *slog.Logger

	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	metrics *metric.Metrics

	// Callbacks, in addition to NATS's built-in handlers
	onDisconnect func(error)
	onReconnect  func()

	status     atomic.Value // stores Status
	reconnects atomic.Int32
	closed     atomic.Bool

	mu   sync.RWMutex
	nc   *nats.Conn
	subs map[subKey]*nats.Subscription
}

// NewConn creates a new broker connection for the given NATS URL.
// The connection is not established until Connect is called.
func NewConn(url string, opts ...Option) (*Conn, error) {
	c := &Conn{
		url:    url,
		name:   "homestream",
		logger: slog.Default(),
		// Sensible defaults
		maxReconnects: -1, // infinite
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  30 * time.Second,
		subs:          make(map[subKey]*nats.Subscription),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Conn", "NewConn", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)
	return c, nil
}

// URL returns the broker URL.
func (c *Conn) URL() string {
	return c.url
}

// Status returns the current connection status.
func (c *Conn) Status() Status {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(Status)
}

// IsConnected returns true if the connection is established.
func (c *Conn) IsConnected() bool {
	return c.Status() == StatusConnected
}

// Reconnects returns the number of reconnections since Connect.
func (c *Conn) Reconnects() int32 {
	return c.reconnects.Load()
}

// Connect establishes the broker connection, retrying transient dial
// failures with backoff until ctx is cancelled or the attempts run out.
func (c *Conn) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.WrapFatal(errors.ErrNotConnected, "Conn", "Connect", "connect after close")
	}

	c.status.Store(StatusConnecting)

	nc, err := retry.DoWithResult(ctx, retry.Quick(), func() (*nats.Conn, error) {
		return nats.Connect(c.url, c.natsOptions()...)
	})
	if err != nil {
		c.status.Store(StatusDisconnected)
		c.setConnectedMetric(false)
		return errors.WrapTransient(err, "Conn", "Connect", "dial broker")
	}

	c.mu.Lock()
	c.nc = nc
	c.mu.Unlock()

	c.status.Store(StatusConnected)
	c.setConnectedMetric(true)
	c.logger.Info("connected to broker", "url", c.url)
	return nil
}

func (c *Conn) natsOptions() []nats.Option {
	return []nats.Option{
		nats.Name(c.name),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.status.Store(StatusReconnecting)
			c.setConnectedMetric(false)
			c.logger.Warn("broker connection lost", "error", err)
			if c.onDisconnect != nil {
				c.onDisconnect(err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.reconnects.Add(1)
			c.status.Store(StatusConnected)
			c.setConnectedMetric(true)
			if c.metrics != nil {
				c.metrics.BrokerReconnects.Inc()
			}
			c.logger.Info("reconnected to broker", "url", c.url)
			if c.onReconnect != nil {
				c.onReconnect()
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.setConnectedMetric(false)
		}),
	}
}

func (c *Conn) setConnectedMetric(connected bool) {
	if c.metrics == nil {
		return
	}
	if connected {
		c.metrics.BrokerConnected.Set(1)
	} else {
		c.metrics.BrokerConnected.Set(0)
	}
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Conn) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	nc := c.nc
	c.nc = nil
	c.subs = make(map[subKey]*nats.Subscription)
	c.mu.Unlock()

	c.status.Store(StatusClosed)
	c.setConnectedMetric(false)

	if nc == nil {
		return nil
	}

	drained := make(chan error, 1)
	go func() {
		drained <- nc.Drain()
	}()

	select {
	case err := <-drained:
		if err != nil {
			nc.Close()
			return errors.WrapTransient(err, "Conn", "Close", "drain connection")
		}
	case <-ctx.Done():
		nc.Close()
		return errors.WrapTransient(ctx.Err(), "Conn", "Close", "drain connection")
	}
	return nil
}

// Subscribe registers sink for all messages matching topic.
// Delivered subjects are mapped back to topic form before reaching the sink.
func (c *Conn) Subscribe(topic string, sink MessageSink) error {
	if sink == nil {
		return errors.WrapInvalid(
			fmt.Errorf("nil message sink"), "Conn", "Subscribe", "sink validation")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nc == nil || !c.nc.IsConnected() {
		return errors.WrapTransient(
			fmt.Errorf("%w: %s", errors.ErrSubscribeFailed, errors.ErrNotConnected),
			"Conn", "Subscribe", "connection check")
	}

	key := subKey{topic: topic, sink: sink}
	if _, exists := c.subs[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("already subscribed to %q", topic),
			"Conn", "Subscribe", "duplicate subscription check")
	}

	sub, err := c.nc.Subscribe(ToSubject(topic), func(msg *nats.Msg) {
		sink.OnMessage(FromSubject(msg.Subject), msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrSubscribeFailed, err),
			"Conn", "Subscribe", "broker subscribe")
	}

	c.subs[key] = sub
	c.logger.Debug("subscribed", "topic", topic)
	return nil
}

// Unsubscribe removes a previously registered (topic, sink) pair.
// Unknown pairs are a no-op so teardown paths stay idempotent.
func (c *Conn) Unsubscribe(topic string, sink MessageSink) error {
	c.mu.Lock()
	key := subKey{topic: topic, sink: sink}
	sub, ok := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()

	if !ok {
		return nil
	}

	if err := sub.Unsubscribe(); err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
		return errors.WrapTransient(err, "Conn", "Unsubscribe", "broker unsubscribe")
	}
	c.logger.Debug("unsubscribed", "topic", topic)
	return nil
}

// Publish sends payload on the given concrete topic.
func (c *Conn) Publish(topic string, payload []byte) error {
	c.mu.RLock()
	nc := c.nc
	c.mu.RUnlock()

	if nc == nil || !nc.IsConnected() {
		return errors.WrapTransient(errors.ErrNotConnected, "Conn", "Publish", "connection check")
	}

	if err := nc.Publish(ToSubject(topic), payload); err != nil {
		return errors.WrapTransient(err, "Conn", "Publish", "broker publish")
	}
	return nil
}
