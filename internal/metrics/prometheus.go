// Package metrics provides Prometheus metrics for the relay. It tracks
// routing outcomes, cache effectiveness, retry behavior and webhook
// dispatches.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "relay"

// LatencyBuckets defines histogram buckets for latency metrics (in seconds).
var LatencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0,
}

var (
	// RouteTotal counts routed requests by type, provider and outcome.
	RouteTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_total",
			Help:      "Total number of routed requests",
		},
		[]string{"request_type", "provider", "status"},
	)

	// RouteLatency tracks end-to-end routing latency.
	RouteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_latency_seconds",
			Help:      "End-to-end routing latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"request_type", "provider"},
	)

	// CacheHits counts responses served from cache.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"request_type"},
	)

	// CacheMisses counts cache lookups that fell through to a provider.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"request_type"},
	)

	// RetryAttempts counts provider call attempts beyond the first.
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts",
		},
		[]string{"provider"},
	)

	// DispatchTotal counts webhook dispatches by module and outcome.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of webhook dispatches",
		},
		[]string{"module", "status"},
	)

	// DispatchFallbacks counts dispatches that fell back to the default
	// endpoint because the module was disabled or unconfigured.
	DispatchFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_fallbacks_total",
			Help:      "Total number of dispatches routed to the default endpoint",
		},
		[]string{"module"},
	)

	// AdapterUp reports the last probe outcome per adapter (1 up, 0 down).
	AdapterUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "adapter_up",
			Help:      "Whether the adapter endpoint answered its last health probe",
		},
		[]string{"adapter"},
	)

	// HistorySize tracks the number of records in the execution history.
	HistorySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_records",
			Help:      "Current number of execution history records",
		},
	)
)
