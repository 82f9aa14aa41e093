package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPingTimeout                 = 60 * time.Second
	DefaultWriteTimeout                = 5 * time.Second
	DefaultSubscriptionTTL             = 120 * time.Second
	DefaultSubscriptionUnresponsiveTTL = 120 * time.Second
	DefaultQueueSize                   = 1024
	DefaultEventBufferSize             = 256
	DefaultSocketBufferSize            = 10000
	DefaultReconnectBaseDelay          = 1 * time.Second
	DefaultReconnectMaxDelay           = 60 * time.Second
	DefaultCacheBackend                = "local"
	DefaultCacheEntryTTL               = 90 * time.Second
	DefaultRedisAddr                   = "localhost:6379"
	DefaultMetricsPort                 = 9090
	DefaultMetricsPath                 = "/metrics"
)

func (c *Config) applyDefaults() {
	// Endpoint defaults
	if c.Endpoint.PingTimeout == 0 {
		c.Endpoint.PingTimeout = DefaultPingTimeout
	}
	if c.Endpoint.WriteTimeout == 0 {
		c.Endpoint.WriteTimeout = DefaultWriteTimeout
	}

	// Engine defaults
	if c.Engine.SubscriptionTTL == 0 {
		c.Engine.SubscriptionTTL = DefaultSubscriptionTTL
	}
	if c.Engine.SubscriptionUnresponsiveTTL == 0 {
		c.Engine.SubscriptionUnresponsiveTTL = DefaultSubscriptionUnresponsiveTTL
	}
	if c.Engine.QueueSize == 0 {
		c.Engine.QueueSize = DefaultQueueSize
	}
	if c.Engine.EventBufferSize == 0 {
		c.Engine.EventBufferSize = DefaultEventBufferSize
	}
	if c.Engine.SocketBufferSize == 0 {
		c.Engine.SocketBufferSize = DefaultSocketBufferSize
	}

	// Reconnect defaults
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}

	// Cache defaults
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.EntryTTL == 0 {
		c.Cache.EntryTTL = DefaultCacheEntryTTL
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = DefaultRedisAddr
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
