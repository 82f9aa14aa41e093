package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-adapter
endpoint:
  ws_url: wss://stream.example.com/ws
engine:
  subscription_ttl: 90s
  subscription_unresponsive_ttl: 45s
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-adapter" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-adapter")
	}
	if cfg.Endpoint.WSURL != "wss://stream.example.com/ws" {
		t.Errorf("Endpoint.WSURL = %q, want %q", cfg.Endpoint.WSURL, "wss://stream.example.com/ws")
	}
	if cfg.Engine.SubscriptionTTL != 90*time.Second {
		t.Errorf("Engine.SubscriptionTTL = %v, want %v", cfg.Engine.SubscriptionTTL, 90*time.Second)
	}
	if cfg.Engine.SubscriptionUnresponsiveTTL != 45*time.Second {
		t.Errorf("Engine.SubscriptionUnresponsiveTTL = %v, want %v", cfg.Engine.SubscriptionUnresponsiveTTL, 45*time.Second)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret123")

	yaml := `
instance:
  id: test-adapter
endpoint:
  ws_url: wss://stream.example.com/ws
  api_key: ${TEST_API_KEY}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Endpoint.APIKey != "secret123" {
		t.Errorf("Endpoint.APIKey = %q, want %q", cfg.Endpoint.APIKey, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-adapter
endpoint:
  ws_url: wss://stream.example.com/ws
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Engine.SubscriptionTTL != DefaultSubscriptionTTL {
		t.Errorf("Engine.SubscriptionTTL = %v, want default %v", cfg.Engine.SubscriptionTTL, DefaultSubscriptionTTL)
	}
	if cfg.Engine.SubscriptionUnresponsiveTTL != DefaultSubscriptionUnresponsiveTTL {
		t.Errorf("Engine.SubscriptionUnresponsiveTTL = %v, want default %v", cfg.Engine.SubscriptionUnresponsiveTTL, DefaultSubscriptionUnresponsiveTTL)
	}
	if cfg.Cache.Backend != DefaultCacheBackend {
		t.Errorf("Cache.Backend = %q, want default %q", cfg.Cache.Backend, DefaultCacheBackend)
	}
	if cfg.Cache.EntryTTL != DefaultCacheEntryTTL {
		t.Errorf("Cache.EntryTTL = %v, want default %v", cfg.Cache.EntryTTL, DefaultCacheEntryTTL)
	}
	if cfg.Reconnect.BaseDelay != DefaultReconnectBaseDelay {
		t.Errorf("Reconnect.BaseDelay = %v, want default %v", cfg.Reconnect.BaseDelay, DefaultReconnectBaseDelay)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Instance: InstanceConfig{ID: "test"},
			Endpoint: EndpointConfig{WSURL: "wss://stream.example.com/ws"},
			Engine: EngineConfig{
				SubscriptionTTL:             time.Minute,
				SubscriptionUnresponsiveTTL: time.Minute,
				QueueSize:                   1024,
				SocketBufferSize:            1000,
			},
			Cache:   CacheConfig{Backend: "local", EntryTTL: time.Minute},
			Metrics: MetricsConfig{Port: 9090},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing ws url",
			mutate:  func(c *Config) { c.Endpoint.WSURL = "" },
			wantErr: "endpoint.ws_url is required",
		},
		{
			name:    "http scheme rejected",
			mutate:  func(c *Config) { c.Endpoint.WSURL = "https://stream.example.com/ws" },
			wantErr: `endpoint.ws_url must use ws:// or wss:// scheme, got "https://stream.example.com/ws"`,
		},
		{
			name:    "zero subscription ttl",
			mutate:  func(c *Config) { c.Engine.SubscriptionTTL = 0 },
			wantErr: "engine.subscription_ttl must be > 0",
		},
		{
			name:    "zero unresponsive ttl",
			mutate:  func(c *Config) { c.Engine.SubscriptionUnresponsiveTTL = 0 },
			wantErr: "engine.subscription_unresponsive_ttl must be > 0",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			wantErr: `cache.backend must be "local" or "redis", got "memcached"`,
		},
		{
			name: "redis backend requires addr",
			mutate: func(c *Config) {
				c.Cache.Backend = "redis"
				c.Cache.Redis.Addr = ""
			},
			wantErr: "cache.redis.addr is required for the redis backend",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
