package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/atelierhq/relay/internal/adapter"
	"github.com/atelierhq/relay/internal/cache"
	"github.com/atelierhq/relay/internal/metrics"
	"github.com/atelierhq/relay/internal/recorder"
	"github.com/atelierhq/relay/internal/resilience"
	relayerrors "github.com/atelierhq/relay/pkg/errors"
	"github.com/atelierhq/relay/pkg/types"
)

// Client routes requests to adapters with caching, retries and execution
// history.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	bindings *adapter.Bindings
	retryer  *resilience.Retryer
	cache    cache.Cache
	keys     cache.KeyGenerator
	recorder *recorder.Recorder
	logger   *slog.Logger
	config   *ClientConfig

	now func() time.Time
}

// New creates a relay client with the given options.
//
// Example:
//
//	client, err := relay.New(
//	    relay.WithAdapter(relay.TypeChatSimple, relay.NewFastChat(fastURL)),
//	    relay.WithPremiumAdapter(relay.NewDeepChat(deepURL)),
//	    relay.WithCacheTTL(10*time.Minute),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	bindings := adapter.NewBindings()
	for t, a := range cfg.Bindings {
		if err := bindings.Bind(t, a); err != nil {
			return nil, fmt.Errorf("bind adapter: %w", err)
		}
	}
	if cfg.PremiumAdapter != nil {
		bindings.SetPremium(cfg.PremiumAdapter)
	}

	c := cfg.Cache
	if c == nil {
		c = cache.NewMemory(cache.MemoryConfig{DefaultTTL: cfg.CacheTTL})
	}

	store := cfg.HistoryStore
	if store == nil {
		store = recorder.NopStore{}
	}
	rec, err := recorder.New(cfg.HistoryCapacity, store, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init execution history: %w", err)
	}

	return &Client{
		bindings: bindings,
		retryer:  resilience.New(cfg.Retry, cfg.Logger),
		cache:    c,
		keys:     cache.KeyGenerator{Prefix: "relay"},
		recorder: rec,
		logger:   cfg.Logger,
		config:   cfg,
		now:      time.Now,
	}, nil
}

// Route executes one request: validate, consult the cache, resolve an
// adapter and call it under the retry policy. The outcome always comes back
// as a Result; routing failures fill Result.Error rather than surfacing as
// Go errors. Every call writes exactly one execution record.
func (c *Client) Route(ctx context.Context, req Request) *Result {
	start := c.now()

	if err := req.Validate(); err != nil {
		return c.finish(req, start, "", "", false,
			relayerrors.NewMalformedError("", err.Error()))
	}

	key := c.keys.Generate(c.config.Namespace, string(req.Type), req.Prompt, string(req.QualityHint))

	if cached, err := c.cache.Get(ctx, key); err == nil && cached != nil {
		var content string
		if json.Unmarshal(cached, &content) == nil {
			metrics.CacheHits.WithLabelValues(string(req.Type)).Inc()
			return c.finish(req, start, content, "", true, nil)
		}
		// An undecodable entry can only mislead future lookups; drop it and
		// treat this call as a miss.
		c.logger.Warn("dropping undecodable cache entry", "key", key)
		if delErr := c.cache.Delete(ctx, key); delErr != nil {
			c.logger.Warn("cache delete failed", "key", key, "error", delErr)
		}
	}
	metrics.CacheMisses.WithLabelValues(string(req.Type)).Inc()

	a, err := c.bindings.Resolve(req.Type, req.QualityHint)
	if err != nil {
		return c.finish(req, start, "", "", false, relayerrors.AsRouteError("", err))
	}

	timeout := c.config.Retry.AttemptTimeout
	if t := req.Timeout(); t > 0 {
		timeout = t
	}

	var attempts int
	content, err := c.retryer.DoWithAttemptTimeout(ctx, timeout, func(ctx context.Context) (string, error) {
		attempts++
		return a.Call(ctx, req.Prompt, adapter.CallOptions{
			Quality: req.QualityHint,
			Timeout: timeout,
		})
	})
	if attempts > 1 {
		metrics.RetryAttempts.WithLabelValues(a.Name()).Add(float64(attempts - 1))
	}
	if err != nil {
		re := relayerrors.AsRouteError(a.Name(), err)
		if re.Provider == "" {
			re.Provider = a.Name()
		}
		return c.finish(req, start, "", a.Name(), false, re)
	}

	if encoded, encErr := json.Marshal(content); encErr == nil {
		if setErr := c.cache.Set(ctx, key, encoded, c.config.CacheTTL); setErr != nil {
			c.logger.Warn("cache set failed", "key", key, "error", setErr)
		}
	}

	return c.finish(req, start, content, a.Name(), false, nil)
}

// finish writes the single execution record for this route and assembles
// the result.
func (c *Client) finish(req Request, start time.Time, content, provider string, cached bool, re *RouteError) *Result {
	latency := c.now().Sub(start).Milliseconds()

	res := &types.Result{
		Content:         content,
		ProviderID:      provider,
		Cached:          cached,
		ExecutionTimeMs: latency,
		Error:           re,
	}

	status := "success"
	recStatus := recorder.StatusSuccess
	var errMsg string
	if re != nil {
		status = "error"
		recStatus = recorder.StatusError
		errMsg = re.Error()
	}
	metrics.RouteTotal.WithLabelValues(string(req.Type), provider, status).Inc()
	metrics.RouteLatency.WithLabelValues(string(req.Type), provider).Observe(float64(latency) / 1000)

	c.recorder.Record(recorder.Record{
		RequestType: string(req.Type),
		Input:       req.Prompt,
		Output:      content,
		Status:      recStatus,
		LatencyMs:   latency,
		Cached:      cached,
		Error:       errMsg,
	})
	metrics.HistorySize.Set(float64(c.recorder.Len()))

	return res
}

// History returns recorded executions, most recent first. A non-empty
// filterType keeps only records of that request type.
func (c *Client) History(filterType string) []ExecutionRecord {
	return c.recorder.List(filterType)
}

// Recorder exposes the execution history buffer so supporting components,
// like the webhook dispatcher, can record into the same history the client
// serves.
func (c *Client) Recorder() *recorder.Recorder {
	return c.recorder
}

// ClearHistory drops all execution records.
func (c *Client) ClearHistory() {
	c.recorder.Clear()
	metrics.HistorySize.Set(0)
}

// CacheStats returns response cache counters.
func (c *Client) CacheStats() CacheStats {
	return c.cache.Stats()
}

// Ping verifies the cache backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.cache.Ping(ctx)
}

// Close releases the cache and history store.
func (c *Client) Close() error {
	if err := c.recorder.Close(); err != nil {
		return err
	}
	return c.cache.Close()
}
