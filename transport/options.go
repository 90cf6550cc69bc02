package transport

import (
	"log/slog"
	"time"

	"github.com/c360/homestream/metric"
)

// Option is a functional option for configuring a Conn.
type Option func(*Conn) error

// WithName sets the client name reported to the broker.
func WithName(name string) Option {
	return func(c *Conn) error {
		if name != "" {
			c.name = name
		}
		return nil
	}
}

// WithLogger sets a custom logger for the connection.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics wires connection metrics into the given collectors.
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Conn) error {
		c.metrics = m
		return nil
	}
}

// WithMaxReconnects sets the maximum number of reconnection attempts
// (-1 for infinite).
func WithMaxReconnects(max int) Option {
	return func(c *Conn) error {
		c.maxReconnects = max
		return nil
	}
}

// WithReconnectWait sets the wait time between reconnection attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(c *Conn) error {
		if d > 0 {
			c.reconnectWait = d
		}
		return nil
	}
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Conn) error {
		if d > 0 {
			c.timeout = d
		}
		return nil
	}
}

// WithDrainTimeout sets the timeout for draining subscriptions on Close.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Conn) error {
		if d > 0 {
			c.drainTimeout = d
		}
		return nil
	}
}

// WithDisconnectCallback sets a callback for disconnection events.
// This is in addition to the built-in disconnect handling.
func WithDisconnectCallback(fn func(error)) Option {
	return func(c *Conn) error {
		c.onDisconnect = fn
		return nil
	}
}

// WithReconnectCallback sets a callback for reconnection events.
func WithReconnectCallback(fn func()) Option {
	return func(c *Conn) error {
		c.onReconnect = fn
		return nil
	}
}
