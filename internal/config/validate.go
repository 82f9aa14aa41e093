package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Endpoint.WSURL == "" {
		return errors.New("endpoint.ws_url is required")
	}
	if !strings.HasPrefix(c.Endpoint.WSURL, "ws://") && !strings.HasPrefix(c.Endpoint.WSURL, "wss://") {
		return fmt.Errorf("endpoint.ws_url must use ws:// or wss:// scheme, got %q", c.Endpoint.WSURL)
	}

	if c.Engine.SubscriptionTTL <= 0 {
		return errors.New("engine.subscription_ttl must be > 0")
	}
	if c.Engine.SubscriptionUnresponsiveTTL <= 0 {
		return errors.New("engine.subscription_unresponsive_ttl must be > 0")
	}
	if c.Engine.QueueSize < 1 {
		return errors.New("engine.queue_size must be >= 1")
	}
	if c.Engine.SocketBufferSize < 1 {
		return errors.New("engine.socket_buffer_size must be >= 1")
	}

	switch c.Cache.Backend {
	case "local":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", "local", "redis", c.Cache.Backend)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	for i, f := range c.Feeds {
		if f.Base == "" || f.Quote == "" {
			return fmt.Errorf("feeds[%d]: base and quote are required", i)
		}
	}

	return nil
}
