package engine

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotStarted     = errors.New("engine not started")
	ErrAlreadyStarted = errors.New("engine already started")
	ErrStopped        = errors.New("engine stopped")
	ErrNilInput       = errors.New("nil handler or input")
)

// Config configures the subscription engine.
type Config struct {
	// SubscriptionTTL is the idle timeout: a subscription not refreshed
	// by another subscribe request within this window is unsubscribed.
	SubscriptionTTL time.Duration

	// SubscriptionUnresponsiveTTL is the recovery timeout: a
	// subscription receiving no messages within this window is recycled
	// with an unsubscribe immediately followed by a fresh subscribe.
	SubscriptionUnresponsiveTTL time.Duration

	// CacheTTL is the storage-level expiry for cached responses.
	CacheTTL time.Duration

	// QueueSize is the initial capacity of the action queue.
	QueueSize int

	// EventBufferSize is the buffer of the exported event channel.
	EventBufferSize int

	// SocketBufferSize is the per-socket inbound message buffer.
	SocketBufferSize int

	// HandshakeTimeout, PingTimeout, PingInterval and WriteTimeout are
	// passed through to each socket client.
	HandshakeTimeout time.Duration
	PingTimeout      time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration

	// ReconnectEnabled turns on automatic redial with exponential
	// backoff after connection failures. Permanent failures, as judged
	// by the provider's ShouldNotRetryConnection, are never retried.
	ReconnectEnabled   bool
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SubscriptionTTL:             120 * time.Second,
		SubscriptionUnresponsiveTTL: 120 * time.Second,
		CacheTTL:                    90 * time.Second,
		QueueSize:                   1024,
		EventBufferSize:             256,
		SocketBufferSize:            10000,
		HandshakeTimeout:            10 * time.Second,
		PingTimeout:                 60 * time.Second,
		PingInterval:                30 * time.Second,
		WriteTimeout:                5 * time.Second,
		ReconnectEnabled:            true,
		ReconnectBaseDelay:          1 * time.Second,
		ReconnectMaxDelay:           60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SubscriptionTTL == 0 {
		c.SubscriptionTTL = d.SubscriptionTTL
	}
	if c.SubscriptionUnresponsiveTTL == 0 {
		c.SubscriptionUnresponsiveTTL = d.SubscriptionUnresponsiveTTL
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.QueueSize == 0 {
		c.QueueSize = d.QueueSize
	}
	if c.EventBufferSize == 0 {
		c.EventBufferSize = d.EventBufferSize
	}
	if c.SocketBufferSize == 0 {
		c.SocketBufferSize = d.SocketBufferSize
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = d.PingInterval
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = d.ReconnectBaseDelay
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = d.ReconnectMaxDelay
	}
	return c
}

// Stats provides a snapshot of engine state.
type Stats struct {
	ActiveConnections   int
	ActiveSubscriptions int
	TotalSubscriptions  int
	QueueDepth          int
}
