package config

import "time"

// Config is the root configuration for a feedstream instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Endpoint  EndpointConfig  `yaml:"endpoint"`
	Engine    EngineConfig    `yaml:"engine"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Feeds     []FeedConfig    `yaml:"feeds"`
}

// FeedConfig names one pair to subscribe to at startup.
type FeedConfig struct {
	Base  string `yaml:"base"`
	Quote string `yaml:"quote"`
}

// InstanceConfig identifies this adapter instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// EndpointConfig holds the provider WebSocket endpoint settings.
type EndpointConfig struct {
	WSURL        string        `yaml:"ws_url"`
	APIKey       string        `yaml:"api_key"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// EngineConfig holds subscription engine settings.
type EngineConfig struct {
	// SubscriptionTTL is the idle timeout: a subscription not refreshed
	// by a new subscribe request within this window is torn down.
	SubscriptionTTL time.Duration `yaml:"subscription_ttl"`

	// SubscriptionUnresponsiveTTL is the recovery timeout: a subscription
	// receiving no messages within this window is recycled
	// (unsubscribe + resubscribe).
	SubscriptionUnresponsiveTTL time.Duration `yaml:"subscription_unresponsive_ttl"`

	// QueueSize is the initial capacity of the engine action queue.
	QueueSize int `yaml:"queue_size"`

	// EventBufferSize is the buffer of the exported event channel.
	EventBufferSize int `yaml:"event_buffer_size"`

	// SocketBufferSize is the per-socket inbound message buffer.
	SocketBufferSize int `yaml:"socket_buffer_size"`
}

// ReconnectConfig holds automatic reconnection settings.
type ReconnectConfig struct {
	Enabled   bool          `yaml:"enabled"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	// Backend selects the cache implementation: "local" or "redis".
	Backend string `yaml:"backend"`

	// EntryTTL is the storage-level expiry for cached responses.
	EntryTTL time.Duration `yaml:"entry_ttl"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
