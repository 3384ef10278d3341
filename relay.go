// Package relay provides request routing with caching, retries and
// execution history as a Go library.
//
// Requests carry a type and an optional quality hint; the client resolves an
// adapter from its binding table, consults the response cache, and executes
// the call under a retry policy. Outcomes come back as data: a failed route
// fills Result.Error instead of returning a Go error, so callers always get
// a uniform envelope.
//
// Basic usage:
//
//	client, err := relay.New(
//	    relay.WithAdapter(relay.TypeChatSimple, relay.NewFastChat("https://fast.internal")),
//	    relay.WithAdapter(relay.TypeChatDeep, relay.NewDeepChat("https://deep.internal")),
//	    relay.WithPremiumAdapter(relay.NewDeepChat("https://deep.internal")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	res := client.Route(ctx, relay.Request{
//	    Type:   relay.TypeChatSimple,
//	    Prompt: "Hello",
//	})
//	if res.OK() {
//	    fmt.Println(res.Content)
//	}
package relay

import (
	"github.com/atelierhq/relay/internal/adapter"
	"github.com/atelierhq/relay/internal/cache"
	"github.com/atelierhq/relay/internal/recorder"
	"github.com/atelierhq/relay/internal/resilience"
	"github.com/atelierhq/relay/pkg/errors"
	"github.com/atelierhq/relay/pkg/types"
)

// Version is the current version of the relay library.
const Version = "1.0.0"

// Re-export core request/response types for convenience.
type (
	// Request is one routable request.
	Request = types.Request

	// RequestType identifies the kind of work requested.
	RequestType = types.RequestType

	// QualityHint is a coarse hint for provider selection.
	QualityHint = types.QualityHint

	// Result is the uniform outcome envelope for routes and dispatches.
	Result = types.Result

	// RouteError is a classified routing failure.
	RouteError = errors.RouteError
)

// Re-export adapter types.
type (
	// Adapter is the uniform call interface over one upstream provider.
	Adapter = adapter.Adapter

	// CallOptions carries per-call parameters beyond the prompt.
	CallOptions = adapter.CallOptions
)

// Re-export cache types.
type (
	// Cache is the response cache interface.
	Cache = cache.Cache

	// CacheStats holds cache counters for monitoring.
	CacheStats = cache.Stats
)

// Re-export history types.
type (
	// ExecutionRecord is one entry in the execution history.
	ExecutionRecord = recorder.Record

	// HistoryStore persists the execution history across restarts.
	HistoryStore = recorder.Store
)

// RetryPolicy controls retry attempts, backoff and per-attempt timeouts.
type RetryPolicy = resilience.Policy

// Re-export request type constants.
const (
	TypeChatSimple = types.TypeChatSimple
	TypeChatDeep   = types.TypeChatDeep
	TypeImage      = types.TypeImage
	TypeVideo      = types.TypeVideo
	TypeSearch     = types.TypeSearch
)

// Re-export quality hint constants.
const (
	QualityLow    = types.QualityLow
	QualityMedium = types.QualityMedium
	QualityHigh   = types.QualityHigh
)

// Re-export error kind constants.
const (
	KindConfiguration = errors.KindConfiguration
	KindTransient     = errors.KindTransient
	KindRateLimit     = errors.KindRateLimit
	KindTimeout       = errors.KindTimeout
	KindMalformed     = errors.KindMalformed
	KindExhausted     = errors.KindExhausted
	KindInternal      = errors.KindInternal
)

// AdapterOption configures a built-in HTTP adapter.
type AdapterOption = adapter.HTTPOption

// Re-export adapter constructors and options.
var (
	NewFastChat  = adapter.NewFastChat
	NewDeepChat  = adapter.NewDeepChat
	NewImageGen  = adapter.NewImageGen
	NewWebSearch = adapter.NewWebSearch
	NewAdapter   = adapter.NewNamed

	WithAPIKey     = adapter.WithAPIKey
	WithHTTPClient = adapter.WithHTTPClient
)

// ParseRequestType validates and normalizes a request type string.
var ParseRequestType = types.ParseRequestType

// IsRetryable reports whether an error is worth retrying.
var IsRetryable = errors.IsRetryable
