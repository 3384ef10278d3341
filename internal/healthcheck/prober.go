// Package healthcheck provides proactive probing of adapter endpoints.
// Probes are advisory: a down adapter is surfaced through logs and metrics,
// routing still attempts the call and relies on retries.
package healthcheck

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atelierhq/relay/internal/metrics"
)

const (
	defaultProbeInterval = 30 * time.Second
	defaultProbeTimeout  = 10 * time.Second
)

// Config controls the prober behavior.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	// Path is appended to each target's base URL.
	Path string
}

// Target is one adapter endpoint to probe.
type Target struct {
	Name    string
	BaseURL string
}

// Prober periodically checks adapter endpoints and tracks their state.
type Prober struct {
	cfg     Config
	targets []Target
	client  *http.Client
	logger  *slog.Logger
	started atomic.Bool

	mu   sync.RWMutex
	down map[string]bool
}

// NewProber creates a prober for the given targets.
func NewProber(cfg Config, targets []Target, logger *slog.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProbeTimeout
	}
	if cfg.Path == "" {
		cfg.Path = "/healthz"
	}
	return &Prober{
		cfg:     cfg,
		targets: targets,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		down:    make(map[string]bool),
	}
}

// Start launches the probe loop. Subsequent calls are no-ops.
func (p *Prober) Start(ctx context.Context) {
	if len(p.targets) == 0 || !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.run(ctx)
}

func (p *Prober) run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Prober) runOnce(ctx context.Context) {
	for _, t := range p.targets {
		err := p.probe(ctx, t)
		p.record(t.Name, err)
	}
}

func (p *Prober) probe(ctx context.Context, t Target) error {
	url := strings.TrimSuffix(t.BaseURL, "/") + p.cfg.Path

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &probeStatusError{status: resp.StatusCode}
	}
	return nil
}

// record updates the per-adapter state and logs transitions only, so a
// persistently down endpoint does not flood the log.
func (p *Prober) record(name string, err error) {
	p.mu.Lock()
	wasDown := p.down[name]
	p.down[name] = err != nil
	p.mu.Unlock()

	if err != nil {
		metrics.AdapterUp.WithLabelValues(name).Set(0)
		if !wasDown {
			p.logger.Warn("adapter probe failed", "adapter", name, "error", err)
		}
		return
	}

	metrics.AdapterUp.WithLabelValues(name).Set(1)
	if wasDown {
		p.logger.Info("adapter recovered", "adapter", name)
	}
}

// Healthy reports the last probe outcome for an adapter. Unknown adapters
// are assumed healthy.
func (p *Prober) Healthy(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.down[name]
}

type probeStatusError struct {
	status int
}

func (e *probeStatusError) Error() string {
	return http.StatusText(e.status)
}
