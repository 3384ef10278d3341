package relay

import (
	"log/slog"
	"time"

	"github.com/atelierhq/relay/internal/cache"
	"github.com/atelierhq/relay/internal/recorder"
	"github.com/atelierhq/relay/internal/resilience"
)

// ClientConfig holds all configuration for the relay client.
type ClientConfig struct {
	// Routing
	Bindings       map[RequestType]Adapter
	PremiumAdapter Adapter

	// Resilience
	Retry RetryPolicy

	// Caching
	Cache     Cache // custom cache implementation; nil means in-memory
	CacheTTL  time.Duration
	Namespace string

	// Execution history
	HistoryCapacity int
	HistoryStore    HistoryStore

	// Logging
	Logger *slog.Logger
}

// Option is a function that configures the Client.
type Option func(*ClientConfig)

// defaultConfig returns sensible defaults.
func defaultConfig() *ClientConfig {
	return &ClientConfig{
		Bindings:        make(map[RequestType]Adapter),
		Retry:           resilience.DefaultPolicy(),
		CacheTTL:        5 * time.Minute,
		Namespace:       "route",
		HistoryCapacity: recorder.DefaultCapacity,
		Logger:          slog.Default(),
	}
}

// WithAdapter binds a request type to an adapter.
//
// Example:
//
//	relay.WithAdapter(relay.TypeChatSimple, relay.NewFastChat(url))
func WithAdapter(t RequestType, a Adapter) Option {
	return func(cfg *ClientConfig) {
		cfg.Bindings[t] = a
	}
}

// WithPremiumAdapter sets the adapter used for quality-high requests,
// overriding the type-based binding.
func WithPremiumAdapter(a Adapter) Option {
	return func(cfg *ClientConfig) {
		cfg.PremiumAdapter = a
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(cfg *ClientConfig) {
		cfg.Retry = p
	}
}

// WithCache sets a custom cache implementation.
//
// Example:
//
//	redisCache, _ := relay.NewRedisCache(relay.RedisCacheConfig{Addr: "localhost:6379"})
//	relay.WithCache(redisCache)
func WithCache(c Cache) Option {
	return func(cfg *ClientConfig) {
		cfg.Cache = c
	}
}

// WithCacheTTL sets the response cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(cfg *ClientConfig) {
		cfg.CacheTTL = ttl
	}
}

// WithNamespace sets the cache key namespace, isolating this client's
// entries in a shared backend.
func WithNamespace(ns string) Option {
	return func(cfg *ClientConfig) {
		cfg.Namespace = ns
	}
}

// WithHistoryCapacity caps the execution history ring.
func WithHistoryCapacity(n int) Option {
	return func(cfg *ClientConfig) {
		cfg.HistoryCapacity = n
	}
}

// WithHistoryStore persists the execution history across restarts.
func WithHistoryStore(s HistoryStore) Option {
	return func(cfg *ClientConfig) {
		cfg.HistoryStore = s
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *ClientConfig) {
		cfg.Logger = logger
	}
}

// NewMemoryCache creates the default in-memory cache with the given TTL.
func NewMemoryCache(ttl time.Duration) Cache {
	return cache.NewMemory(cache.MemoryConfig{DefaultTTL: ttl})
}

// RedisCacheConfig configures a Redis-backed response cache.
type RedisCacheConfig = cache.RedisConfig

// NewRedisCache creates a Redis-backed response cache.
func NewRedisCache(cfg RedisCacheConfig) (Cache, error) {
	c, err := cache.NewRedis(cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewSQLiteHistoryStore persists execution history in a local SQLite file.
func NewSQLiteHistoryStore(path string) (HistoryStore, error) {
	s, err := recorder.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
