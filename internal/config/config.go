// Package config provides configuration loading with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps so
// readers always see a complete, validated configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atelierhq/relay/pkg/types"
)

// Config represents the complete relay configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Adapters []AdapterConfig `yaml:"adapters"`
	Routing  RoutingConfig   `yaml:"routing"`
	Cache    CacheConfig     `yaml:"cache"`
	History  HistoryConfig   `yaml:"history"`
	Webhooks WebhookConfig   `yaml:"webhooks"`
	Probe    ProbeConfig     `yaml:"probe"`
	Logging  LoggingConfig   `yaml:"logging"`
	Metrics  MetricsConfig   `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// AdapterConfig defines a single upstream provider adapter.
type AdapterConfig struct {
	Name     string            `yaml:"name"`
	BaseURL  string            `yaml:"base_url"`
	APIKey   string            `yaml:"api_key"` // plain value or env:// reference
	Endpoint string            `yaml:"endpoint"`
	Headers  map[string]string `yaml:"headers"`
}

// RoutingConfig maps request types to adapters and holds retry settings.
type RoutingConfig struct {
	// Bindings maps request type to adapter name.
	Bindings map[string]string `yaml:"bindings"`

	// PremiumAdapter handles quality-high requests regardless of type.
	PremiumAdapter string `yaml:"premium_adapter"`

	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// CacheConfig selects and tunes the response cache backend.
type CacheConfig struct {
	Backend   string        `yaml:"backend"` // memory, redis
	TTL       time.Duration `yaml:"ttl"`
	Namespace string        `yaml:"namespace"`
	Redis     RedisConfig   `yaml:"redis"`
}

// RedisConfig contains Redis connection settings shared by the cache and
// the execution history store.
type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
}

// HistoryConfig controls the execution recorder.
type HistoryConfig struct {
	Capacity int    `yaml:"capacity"`
	Store    string `yaml:"store"` // none, sqlite, redis
	Path     string `yaml:"path"`  // sqlite file path
	Key      string `yaml:"key"`   // redis key
}

// WebhookConfig holds per-module webhook endpoints plus the global default
// used when a module is disabled or unconfigured.
type WebhookConfig struct {
	Default WebhookEndpoint          `yaml:"default"`
	Modules map[string]WebhookModule `yaml:"modules"`
	// RatePerSecond limits outbound dispatches per module. Zero disables
	// the limiter.
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

// WebhookEndpoint is one POST target with its bearer token reference.
type WebhookEndpoint struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"` // plain value or env:// reference
}

// WebhookModule is a named endpoint that can be switched off, falling back
// to the global default.
type WebhookModule struct {
	Enabled bool            `yaml:"enabled"`
	Webhook WebhookEndpoint `yaml:"webhook"`
}

// ProbeConfig controls proactive health probing of adapter endpoints.
type ProbeConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Path     string        `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Routing: RoutingConfig{
			MaxAttempts:    3,
			BaseDelay:      500 * time.Millisecond,
			MaxDelay:       8 * time.Second,
			AttemptTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			TTL:       5 * time.Minute,
			Namespace: "route",
		},
		History: HistoryConfig{
			Capacity: 100,
			Store:    "none",
		},
		Webhooks: WebhookConfig{
			RateBurst: 1,
		},
		Probe: ProbeConfig{
			Interval: 30 * time.Second,
			Timeout:  10 * time.Second,
			Path:     "/healthz",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	adapterNames := make(map[string]struct{}, len(c.Adapters))
	for i, a := range c.Adapters {
		if a.Name == "" {
			return fmt.Errorf("adapter[%d]: name is required", i)
		}
		if a.BaseURL == "" {
			return fmt.Errorf("adapter[%d] %q: base_url is required", i, a.Name)
		}
		if _, dup := adapterNames[a.Name]; dup {
			return fmt.Errorf("adapter[%d] %q: duplicate adapter name", i, a.Name)
		}
		adapterNames[a.Name] = struct{}{}
	}

	for typ, name := range c.Routing.Bindings {
		if !types.RequestType(typ).Valid() {
			return fmt.Errorf("routing.bindings: unknown request type %q", typ)
		}
		if _, ok := adapterNames[name]; !ok {
			return fmt.Errorf("routing.bindings[%s]: adapter %q is not configured", typ, name)
		}
	}
	if p := c.Routing.PremiumAdapter; p != "" {
		if _, ok := adapterNames[p]; !ok {
			return fmt.Errorf("routing.premium_adapter: adapter %q is not configured", p)
		}
	}
	if c.Routing.MaxAttempts < 1 {
		return fmt.Errorf("routing.max_attempts must be at least 1")
	}
	if c.Routing.BaseDelay < 0 || c.Routing.MaxDelay < 0 || c.Routing.AttemptTimeout < 0 {
		return fmt.Errorf("routing delays cannot be negative")
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if len(c.Cache.Redis.Addrs) == 0 {
			return fmt.Errorf("cache.redis.addrs is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	if c.History.Capacity < 1 {
		return fmt.Errorf("history.capacity must be at least 1")
	}
	switch c.History.Store {
	case "none", "":
	case "sqlite":
		if c.History.Path == "" {
			return fmt.Errorf("history.path is required for the sqlite store")
		}
	case "redis":
		if len(c.Cache.Redis.Addrs) == 0 {
			return fmt.Errorf("cache.redis.addrs is required for the redis history store")
		}
	default:
		return fmt.Errorf("history.store must be none, sqlite or redis, got %q", c.History.Store)
	}

	if c.Probe.Enabled {
		if c.Probe.Interval <= 0 {
			return fmt.Errorf("probe.interval must be positive")
		}
		if c.Probe.Timeout <= 0 {
			return fmt.Errorf("probe.timeout must be positive")
		}
	}

	for name, mod := range c.Webhooks.Modules {
		if mod.Enabled && mod.Webhook.URL == "" {
			return fmt.Errorf("webhooks.modules[%s]: url is required when enabled", name)
		}
	}
	if c.Webhooks.RatePerSecond < 0 {
		return fmt.Errorf("webhooks.rate_per_second cannot be negative")
	}

	return nil
}
