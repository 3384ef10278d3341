package relay

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/relay/internal/cache"
	"github.com/atelierhq/relay/internal/metrics"
	relayerrors "github.com/atelierhq/relay/pkg/errors"
)

type fakeAdapter struct {
	name    string
	content string
	err     error
	calls   atomic.Int64

	// fn, when set, overrides content/err.
	fn func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Call(ctx context.Context, prompt string, _ CallOptions) (string, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(ctx, prompt)
	}
	return f.content, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithLogger(discard()),
		WithRetryPolicy(RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Nanosecond,
			MaxDelay:    time.Nanosecond,
		}),
	}
	client, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRouteSuccess(t *testing.T) {
	fast := &fakeAdapter{name: "fast-chat", content: "Hi there"}
	client := newTestClient(t, WithAdapter(TypeChatSimple, fast))

	res := client.Route(context.Background(), Request{
		Type:   TypeChatSimple,
		Prompt: "Hello",
	})

	require.True(t, res.OK())
	assert.Equal(t, "Hi there", res.Content)
	assert.Equal(t, "fast-chat", res.ProviderID)
	assert.False(t, res.Cached)
	assert.GreaterOrEqual(t, res.ExecutionTimeMs, int64(0))
}

func TestRouteCacheHit(t *testing.T) {
	fast := &fakeAdapter{name: "fast-chat", content: "Hi there"}
	client := newTestClient(t, WithAdapter(TypeChatSimple, fast))

	req := Request{Type: TypeChatSimple, Prompt: "Hello"}

	first := client.Route(context.Background(), req)
	require.True(t, first.OK())
	assert.False(t, first.Cached)

	second := client.Route(context.Background(), req)
	require.True(t, second.OK())
	assert.True(t, second.Cached)
	assert.Equal(t, "Hi there", second.Content)
	assert.Equal(t, int64(1), fast.calls.Load())
}

func TestRouteCacheKeyIncludesTypeAndQuality(t *testing.T) {
	fast := &fakeAdapter{name: "fast-chat", content: "fast"}
	deep := &fakeAdapter{name: "deep-chat", content: "deep"}
	client := newTestClient(t,
		WithAdapter(TypeChatSimple, fast),
		WithAdapter(TypeChatDeep, deep),
	)

	client.Route(context.Background(), Request{Type: TypeChatSimple, Prompt: "same"})
	res := client.Route(context.Background(), Request{Type: TypeChatDeep, Prompt: "same"})

	require.True(t, res.OK())
	assert.False(t, res.Cached)
	assert.Equal(t, "deep", res.Content)
}

func TestRouteCacheExpiry(t *testing.T) {
	fast := &fakeAdapter{name: "fast-chat", content: "Hi there"}

	mem := cache.NewMemory(cache.MemoryConfig{DefaultTTL: time.Minute})
	now := time.Now()
	mem.SetClock(func() time.Time { return now })

	client := newTestClient(t,
		WithAdapter(TypeChatSimple, fast),
		WithCache(mem),
		WithCacheTTL(time.Minute),
	)

	req := Request{Type: TypeChatSimple, Prompt: "Hello"}
	client.Route(context.Background(), req)

	now = now.Add(2 * time.Minute)
	res := client.Route(context.Background(), req)
	require.True(t, res.OK())
	assert.False(t, res.Cached)
	assert.Equal(t, int64(2), fast.calls.Load())
}

func TestRouteDropsCorruptCacheEntry(t *testing.T) {
	failing := &fakeAdapter{
		name: "fast-chat",
		err:  relayerrors.NewConfigurationError("fast-chat", "bad key"),
	}
	mem := cache.NewMemory(cache.MemoryConfig{DefaultTTL: time.Minute})
	client := newTestClient(t,
		WithAdapter(TypeChatSimple, failing),
		WithCache(mem),
	)

	kg := cache.KeyGenerator{Prefix: "relay"}
	key := kg.Generate("route", string(TypeChatSimple), "Hello", "")
	require.NoError(t, mem.Set(context.Background(), key, []byte("{"), time.Minute))

	res := client.Route(context.Background(), Request{Type: TypeChatSimple, Prompt: "Hello"})
	require.False(t, res.OK())
	assert.False(t, res.Cached)
	assert.Equal(t, int64(1), failing.calls.Load())

	// The undecodable entry was removed, not left to mislead the next lookup.
	got, err := mem.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRoutePremiumOverride(t *testing.T) {
	fast := &fakeAdapter{name: "fast-chat", content: "fast"}
	deep := &fakeAdapter{name: "deep-chat", content: "deep"}
	client := newTestClient(t,
		WithAdapter(TypeChatSimple, fast),
		WithPremiumAdapter(deep),
	)

	res := client.Route(context.Background(), Request{
		Type:        TypeChatSimple,
		Prompt:      "Hello",
		QualityHint: QualityHigh,
	})

	require.True(t, res.OK())
	assert.Equal(t, "deep-chat", res.ProviderID)
	assert.Equal(t, int64(0), fast.calls.Load())
}

func TestRouteUnboundTypeIsConfigurationError(t *testing.T) {
	client := newTestClient(t,
		WithAdapter(TypeChatSimple, &fakeAdapter{name: "fast-chat", content: "x"}),
	)

	res := client.Route(context.Background(), Request{Type: TypeImage, Prompt: "a cat"})

	require.False(t, res.OK())
	assert.Equal(t, relayerrors.KindConfiguration, res.Error.Kind)
	assert.Empty(t, res.Content)
}

func TestRouteInvalidRequest(t *testing.T) {
	client := newTestClient(t,
		WithAdapter(TypeChatSimple, &fakeAdapter{name: "fast-chat", content: "x"}),
	)

	res := client.Route(context.Background(), Request{Type: TypeChatSimple})
	require.False(t, res.OK())

	res = client.Route(context.Background(), Request{Prompt: "hi"})
	require.False(t, res.OK())
}

func TestRouteRetriesThenSucceeds(t *testing.T) {
	var n atomic.Int64
	flaky := &fakeAdapter{name: "fast-chat", fn: func(context.Context, string) (string, error) {
		if n.Add(1) < 3 {
			return "", relayerrors.NewTransientError("fast-chat", "blip")
		}
		return "recovered", nil
	}}
	client := newTestClient(t, WithAdapter(TypeChatSimple, flaky))

	res := client.Route(context.Background(), Request{Type: TypeChatSimple, Prompt: "Hello"})

	require.True(t, res.OK())
	assert.Equal(t, "recovered", res.Content)
	assert.Equal(t, int64(3), n.Load())
}

func TestRouteCountsRetriesOnSuccess(t *testing.T) {
	before := testutil.ToFloat64(metrics.RetryAttempts.WithLabelValues("fast-chat"))

	var n atomic.Int64
	flaky := &fakeAdapter{name: "fast-chat", fn: func(context.Context, string) (string, error) {
		if n.Add(1) < 3 {
			return "", relayerrors.NewTransientError("fast-chat", "blip")
		}
		return "recovered", nil
	}}
	client := newTestClient(t, WithAdapter(TypeChatSimple, flaky))

	res := client.Route(context.Background(), Request{Type: TypeChatSimple, Prompt: "Hello"})
	require.True(t, res.OK())

	after := testutil.ToFloat64(metrics.RetryAttempts.WithLabelValues("fast-chat"))
	assert.Equal(t, float64(2), after-before)
}

func TestRouteExhaustedRetries(t *testing.T) {
	failing := &fakeAdapter{
		name: "fast-chat",
		err:  relayerrors.NewTransientError("fast-chat", "down"),
	}
	client := newTestClient(t, WithAdapter(TypeChatSimple, failing))

	res := client.Route(context.Background(), Request{Type: TypeChatSimple, Prompt: "Hello"})

	require.False(t, res.OK())
	assert.Equal(t, relayerrors.KindExhausted, res.Error.Kind)
	assert.Equal(t, "fast-chat", res.Error.Provider)
	assert.Equal(t, 3, res.Error.Attempts)
	assert.Equal(t, int64(3), failing.calls.Load())
}

func TestRouteTerminalErrorNotRetried(t *testing.T) {
	failing := &fakeAdapter{
		name: "fast-chat",
		err:  relayerrors.NewConfigurationError("fast-chat", "bad key"),
	}
	client := newTestClient(t, WithAdapter(TypeChatSimple, failing))

	res := client.Route(context.Background(), Request{Type: TypeChatSimple, Prompt: "Hello"})

	require.False(t, res.OK())
	assert.Equal(t, relayerrors.KindConfiguration, res.Error.Kind)
	assert.Equal(t, int64(1), failing.calls.Load())
}

func TestRouteFailuresAreNotCached(t *testing.T) {
	failing := &fakeAdapter{
		name: "fast-chat",
		err:  relayerrors.NewConfigurationError("fast-chat", "bad key"),
	}
	client := newTestClient(t, WithAdapter(TypeChatSimple, failing))

	req := Request{Type: TypeChatSimple, Prompt: "Hello"}
	client.Route(context.Background(), req)
	res := client.Route(context.Background(), req)

	require.False(t, res.OK())
	assert.False(t, res.Cached)
	assert.Equal(t, int64(2), failing.calls.Load())
}

func TestRouteRecordsExactlyOnePerCall(t *testing.T) {
	fast := &fakeAdapter{name: "fast-chat", content: "Hi there"}
	client := newTestClient(t, WithAdapter(TypeChatSimple, fast))

	req := Request{Type: TypeChatSimple, Prompt: "Hello"}

	client.Route(context.Background(), req)                                          // miss
	client.Route(context.Background(), req)                                          // hit
	client.Route(context.Background(), Request{Type: TypeImage, Prompt: "a cat"})    // config error
	client.Route(context.Background(), Request{Type: TypeChatSimple})                // invalid

	records := client.History("")
	require.Len(t, records, 4)

	// Newest first.
	assert.Equal(t, "error", string(records[0].Status))
	assert.Equal(t, "error", string(records[1].Status))
	assert.True(t, records[2].Cached)
	assert.False(t, records[3].Cached)

	filtered := client.History(string(TypeChatSimple))
	assert.Len(t, filtered, 3)

	client.ClearHistory()
	assert.Empty(t, client.History(""))
}

func TestCacheStats(t *testing.T) {
	fast := &fakeAdapter{name: "fast-chat", content: "Hi there"}
	client := newTestClient(t, WithAdapter(TypeChatSimple, fast))

	req := Request{Type: TypeChatSimple, Prompt: "Hello"}
	client.Route(context.Background(), req)
	client.Route(context.Background(), req)

	stats := client.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestRouteTimeoutOverride(t *testing.T) {
	slow := &fakeAdapter{name: "fast-chat", fn: func(ctx context.Context, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "too late", nil
		}
	}}
	client := newTestClient(t,
		WithAdapter(TypeChatSimple, slow),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 1}),
	)

	res := client.Route(context.Background(), Request{
		Type:      TypeChatSimple,
		Prompt:    "Hello",
		TimeoutMs: 10,
	})

	// The single attempt times out, so retries exhaust with the timeout
	// preserved as the cause.
	require.False(t, res.OK())
	assert.Equal(t, relayerrors.KindExhausted, res.Error.Kind)
	var cause *relayerrors.RouteError
	require.ErrorAs(t, res.Error.Unwrap(), &cause)
	assert.Equal(t, relayerrors.KindTimeout, cause.Kind)
}
