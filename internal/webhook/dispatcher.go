// Package webhook delivers module events to configured HTTP endpoints. It
// reuses the routing skeleton: cache lookup first, then a retried POST, and
// exactly one execution record per dispatch.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/atelierhq/relay/internal/cache"
	"github.com/atelierhq/relay/internal/config"
	"github.com/atelierhq/relay/internal/httputil"
	"github.com/atelierhq/relay/internal/metrics"
	"github.com/atelierhq/relay/internal/observability"
	"github.com/atelierhq/relay/internal/recorder"
	"github.com/atelierhq/relay/internal/resilience"
	"github.com/atelierhq/relay/internal/secret"
	relayerrors "github.com/atelierhq/relay/pkg/errors"
	"github.com/atelierhq/relay/pkg/types"
)

const cacheNamespace = "dispatch"

// Payload is one module event to deliver.
type Payload struct {
	Type   string `json:"type"`
	Data   any    `json:"data"`
	Action string `json:"action"`
}

// wireBody is the JSON document POSTed to the endpoint. It is the payload
// plus the dispatch timestamp.
type wireBody struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// Dispatcher sends module events to webhook endpoints resolved from the
// current configuration on every dispatch, so config reloads take effect
// without a restart.
type Dispatcher struct {
	cfg      *config.Manager
	retryer  *resilience.Retryer
	cache    cache.Cache
	keys     cache.KeyGenerator
	recorder *recorder.Recorder
	secrets  *secret.Manager
	client   *http.Client
	redactor *observability.Redactor
	logger   *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	now func() time.Time
}

// New creates a dispatcher. The cache and recorder may be shared with the
// routing client; passing nil for either disables that concern.
func New(cfg *config.Manager, retryer *resilience.Retryer, c cache.Cache, rec *recorder.Recorder, secrets *secret.Manager, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		retryer:  retryer,
		cache:    c,
		keys:     cache.KeyGenerator{Prefix: "relay"},
		recorder: rec,
		secrets:  secrets,
		client:   &http.Client{Timeout: 30 * time.Second},
		redactor: observability.NewRedactor(),
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// SetHTTPClient replaces the HTTP client used for deliveries.
func (d *Dispatcher) SetHTTPClient(c *http.Client) { d.client = c }

// SetClock overrides the time source. Intended for tests.
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }

// Dispatch delivers one event for the named module. Failures come back as
// data: the returned result carries either the endpoint response or a
// classified error, never both.
func (d *Dispatcher) Dispatch(ctx context.Context, module string, p Payload) *types.Result {
	start := d.now()
	cfg := d.cfg.Get()

	endpoint, usedDefault := d.resolveEndpoint(cfg, module)
	label := "webhook:" + module
	if usedDefault {
		metrics.DispatchFallbacks.WithLabelValues(module).Inc()
		d.logger.Warn("webhook module not enabled, using default endpoint",
			"module", module,
			"url", d.redactor.Redact(endpoint.URL),
		)
	}
	if endpoint.URL == "" {
		err := relayerrors.NewConfigurationError(label,
			fmt.Sprintf("no webhook endpoint for module %q and no default configured", module))
		return d.finish(module, label, p, start, "", false, err)
	}

	key, err := d.cacheKey(module, p)
	if err != nil {
		return d.finish(module, label, p, start, "", false,
			relayerrors.NewInternalError(label, fmt.Sprintf("encode payload: %v", err)))
	}

	if d.cache != nil {
		if cached, cacheErr := d.cache.Get(ctx, key); cacheErr == nil && cached != nil {
			var resp string
			if json.Unmarshal(cached, &resp) == nil {
				return d.finish(module, label, p, start, resp, true, nil)
			}
		}
	}

	if err := d.waitLimiter(ctx, cfg, module); err != nil {
		return d.finish(module, label, p, start, "", false,
			relayerrors.NewTransientError(label, fmt.Sprintf("rate limiter: %v", err)))
	}

	resp, err := d.retryer.Do(ctx, func(ctx context.Context) (string, error) {
		return d.deliver(ctx, endpoint, p)
	})
	if err != nil {
		re := relayerrors.AsRouteError(label, err)
		if re.Provider == "" {
			re.Provider = label
		}
		return d.finish(module, label, p, start, "", false, re)
	}

	if d.cache != nil {
		if encoded, encErr := json.Marshal(resp); encErr == nil {
			if setErr := d.cache.Set(ctx, key, encoded, cfg.Cache.TTL); setErr != nil {
				d.logger.Warn("dispatch cache set failed", "error", setErr)
			}
		}
	}
	return d.finish(module, label, p, start, resp, false, nil)
}

// resolveEndpoint picks the module endpoint, falling back to the global
// default when the module is absent or disabled.
func (d *Dispatcher) resolveEndpoint(cfg *config.Config, module string) (config.WebhookEndpoint, bool) {
	mod, ok := cfg.Webhooks.Modules[module]
	if ok && mod.Enabled {
		return mod.Webhook, false
	}
	return cfg.Webhooks.Default, true
}

func (d *Dispatcher) cacheKey(module string, p Payload) (string, error) {
	raw, err := json.Marshal(struct {
		Module string `json:"module"`
		Payload
	}{Module: module, Payload: p})
	if err != nil {
		return "", err
	}
	return d.keys.GenerateFromRaw(cacheNamespace, string(raw)), nil
}

func (d *Dispatcher) waitLimiter(ctx context.Context, cfg *config.Config, module string) error {
	if cfg.Webhooks.RatePerSecond <= 0 {
		return nil
	}

	d.mu.Lock()
	lim, ok := d.limiters[module]
	if !ok {
		burst := cfg.Webhooks.RateBurst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(cfg.Webhooks.RatePerSecond), burst)
		d.limiters[module] = lim
	}
	d.mu.Unlock()

	return lim.Wait(ctx)
}

// deliver POSTs one event and returns the endpoint response body.
func (d *Dispatcher) deliver(ctx context.Context, endpoint config.WebhookEndpoint, p Payload) (string, error) {
	body, err := json.Marshal(wireBody{
		Type:      p.Type,
		Data:      p.Data,
		Action:    p.Action,
		Timestamp: d.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", relayerrors.NewInternalError("", fmt.Sprintf("marshal dispatch body: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return "", relayerrors.NewInternalError("", fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	if endpoint.Token != "" {
		token := endpoint.Token
		if d.secrets != nil {
			token, err = d.secrets.Resolve(ctx, endpoint.Token)
			if err != nil {
				return "", relayerrors.NewConfigurationError("", fmt.Sprintf("resolve webhook token: %v", err))
			}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", relayerrors.NewTransientError("", fmt.Sprintf("dispatch failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := httputil.ReadLimitedBody(resp.Body, httputil.DefaultMaxBodyBytes)
	if err != nil {
		return "", relayerrors.NewTransientError("", fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", relayerrors.FromStatus("", resp.StatusCode, respBody)
	}
	return unwrapResponse(respBody), nil
}

// unwrapResponse extracts the payload from a 2xx body. Endpoints may wrap
// their reply in a {"data": ...} envelope; anything else passes through
// verbatim.
func unwrapResponse(body []byte) string {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Data) == 0 {
		return string(body)
	}
	var s string
	if json.Unmarshal(envelope.Data, &s) == nil {
		return s
	}
	return string(envelope.Data)
}

// finish records the dispatch outcome and builds the result. Every dispatch
// lands here exactly once.
func (d *Dispatcher) finish(module, label string, p Payload, start time.Time, content string, cached bool, err error) *types.Result {
	latency := d.now().Sub(start).Milliseconds()

	res := &types.Result{
		Content:         content,
		ProviderID:      label,
		Cached:          cached,
		ExecutionTimeMs: latency,
	}

	status := "success"
	var errMsg string
	if err != nil {
		status = "error"
		re := relayerrors.AsRouteError(label, err)
		res.Error = re
		errMsg = d.redactor.Redact(re.Error())
	}
	metrics.DispatchTotal.WithLabelValues(module, status).Inc()

	if d.recorder != nil {
		recStatus := recorder.StatusSuccess
		if err != nil {
			recStatus = recorder.StatusError
		}
		d.recorder.Record(recorder.Record{
			RequestType: "dispatch:" + module,
			Input:       p,
			Output:      content,
			Status:      recStatus,
			LatencyMs:   latency,
			Cached:      cached,
			Error:       errMsg,
		})
	}
	return res
}
