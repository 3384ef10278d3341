package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/atelierhq/relay"
	"github.com/atelierhq/relay/internal/adapter"
	"github.com/atelierhq/relay/internal/cache"
	"github.com/atelierhq/relay/internal/config"
	"github.com/atelierhq/relay/internal/healthcheck"
	"github.com/atelierhq/relay/internal/recorder"
	"github.com/atelierhq/relay/internal/resilience"
	"github.com/atelierhq/relay/internal/secret"
	"github.com/atelierhq/relay/internal/webhook"
	"github.com/atelierhq/relay/pkg/types"
)

// buildClient assembles the routing client from configuration: adapters with
// resolved credentials, type bindings, the cache backend, the retry policy
// and the execution history store.
func buildClient(ctx context.Context, cfg *config.Config, secrets *secret.Manager, logger *slog.Logger) (*relay.Client, error) {
	adapters := make(map[string]relay.Adapter, len(cfg.Adapters))
	for _, acfg := range cfg.Adapters {
		a, err := buildAdapter(ctx, acfg, secrets)
		if err != nil {
			return nil, fmt.Errorf("adapter %s: %w", acfg.Name, err)
		}
		adapters[acfg.Name] = a
		logger.Info("adapter registered", "name", acfg.Name, "base_url", acfg.BaseURL)
	}

	opts := []relay.Option{
		relay.WithLogger(logger),
		relay.WithCacheTTL(cfg.Cache.TTL),
		relay.WithNamespace(cfg.Cache.Namespace),
		relay.WithHistoryCapacity(cfg.History.Capacity),
		relay.WithRetryPolicy(retryPolicy(cfg.Routing)),
	}

	for typ, name := range cfg.Routing.Bindings {
		opts = append(opts, relay.WithAdapter(types.RequestType(typ), adapters[name]))
	}
	if p := cfg.Routing.PremiumAdapter; p != "" {
		opts = append(opts, relay.WithPremiumAdapter(adapters[p]))
	}

	if cfg.Cache.Backend == "redis" {
		rc, err := relay.NewRedisCache(redisCacheConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		opts = append(opts, relay.WithCache(rc))
	}

	store, err := buildHistoryStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}
	if store != nil {
		opts = append(opts, relay.WithHistoryStore(store))
	}

	return relay.New(opts...)
}

func buildAdapter(ctx context.Context, acfg config.AdapterConfig, secrets *secret.Manager) (relay.Adapter, error) {
	var opts []adapter.HTTPOption
	if acfg.APIKey != "" {
		key, err := secrets.Resolve(ctx, acfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("resolve api key: %w", err)
		}
		opts = append(opts, adapter.WithAPIKey(key))
	}

	info := adapter.Info{
		Name:         acfg.Name,
		Endpoint:     acfg.Endpoint,
		ExtraHeaders: acfg.Headers,
	}
	return adapter.NewHTTP(info, acfg.BaseURL, opts...), nil
}

func retryPolicy(r config.RoutingConfig) relay.RetryPolicy {
	p := resilience.DefaultPolicy()
	p.MaxAttempts = r.MaxAttempts
	if r.BaseDelay > 0 {
		p.BaseDelay = r.BaseDelay
	}
	if r.MaxDelay > 0 {
		p.MaxDelay = r.MaxDelay
	}
	if r.AttemptTimeout > 0 {
		p.AttemptTimeout = r.AttemptTimeout
	}
	return p
}

func redisCacheConfig(cfg *config.Config) cache.RedisConfig {
	rc := cache.DefaultRedisConfig()
	if len(cfg.Cache.Redis.Addrs) > 0 {
		rc.Addr = cfg.Cache.Redis.Addrs[0]
	}
	rc.Password = cfg.Cache.Redis.Password
	rc.DB = cfg.Cache.Redis.DB
	if cfg.Cache.Namespace != "" {
		rc.Namespace = cfg.Cache.Namespace
	}
	rc.DefaultTTL = cfg.Cache.TTL
	return rc
}

func buildHistoryStore(cfg *config.Config) (relay.HistoryStore, error) {
	switch cfg.History.Store {
	case "", "none":
		return nil, nil
	case "sqlite":
		return relay.NewSQLiteHistoryStore(cfg.History.Path)
	case "redis":
		client := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    cfg.Cache.Redis.Addrs,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		return recorder.NewRedisStore(client, cfg.History.Key), nil
	default:
		return nil, fmt.Errorf("unknown history store %q", cfg.History.Store)
	}
}

// buildProber assembles the adapter endpoint prober.
func buildProber(cfg *config.Config, logger *slog.Logger) *healthcheck.Prober {
	targets := make([]healthcheck.Target, 0, len(cfg.Adapters))
	for _, a := range cfg.Adapters {
		targets = append(targets, healthcheck.Target{Name: a.Name, BaseURL: a.BaseURL})
	}
	return healthcheck.NewProber(healthcheck.Config{
		Interval: cfg.Probe.Interval,
		Timeout:  cfg.Probe.Timeout,
		Path:     cfg.Probe.Path,
	}, targets, logger)
}

// buildDispatcher assembles the webhook dispatcher. It shares the retry
// policy and the execution history with the routing client, so dispatch
// records show up in /v1/executions alongside route records; only the
// response cache is private.
func buildDispatcher(cfg *config.Config, cfgManager *config.Manager, client *relay.Client, secrets *secret.Manager, logger *slog.Logger) *webhook.Dispatcher {
	retryer := resilience.New(retryPolicy(cfg.Routing), logger)

	dispatchCache := cache.NewMemory(cache.MemoryConfig{DefaultTTL: cfg.Cache.TTL})

	return webhook.New(cfgManager, retryer, dispatchCache, client.Recorder(), secrets, logger)
}
