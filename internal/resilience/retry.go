// Package resilience wraps provider calls with bounded retries, exponential
// backoff, and per-attempt timeouts. Classification of failures as retryable
// or terminal is delegated to the error taxonomy in pkg/errors.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	relayerrors "github.com/atelierhq/relay/pkg/errors"
)

// Policy controls retry behavior.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; doubled each retry.
	BaseDelay time.Duration
	// MaxDelay caps the backoff. Zero disables the cap.
	MaxDelay time.Duration
	// Jitter is the maximum random addition to each wait.
	Jitter time.Duration
	// AttemptTimeout bounds each individual attempt, not the whole sequence.
	// Zero disables the per-attempt bound.
	AttemptTimeout time.Duration
}

// DefaultPolicy returns sensible defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		Jitter:         500 * time.Millisecond,
		AttemptTimeout: 30 * time.Second,
	}
}

// Operation is a single provider or webhook call to be executed under retry.
type Operation func(ctx context.Context) (string, error)

// Retryer executes operations with retry, backoff, and timeout enforcement.
// It is safe for concurrent use.
type Retryer struct {
	policy Policy
	logger *slog.Logger

	randMu sync.Mutex
	rand   *rand.Rand

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Retryer with the given policy.
func New(policy Policy, logger *slog.Logger) *Retryer {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retryer{
		policy: policy,
		logger: logger,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepCtx,
	}
}

// Do executes op under the retryer's policy.
func (r *Retryer) Do(ctx context.Context, op Operation) (string, error) {
	return r.DoWithAttemptTimeout(ctx, r.policy.AttemptTimeout, op)
}

// DoWithAttemptTimeout executes op with a per-attempt timeout override.
//
// Terminal errors propagate immediately. Retryable errors are re-attempted
// up to MaxAttempts total invocations; if all attempts fail, the returned
// error has kind retries_exhausted and wraps the last underlying error.
func (r *Retryer) DoWithAttemptTimeout(ctx context.Context, attemptTimeout time.Duration, op Operation) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := r.backoff(attempt - 1)
			r.logger.Debug("retrying after backoff",
				"attempt", attempt,
				"max_attempts", r.policy.MaxAttempts,
				"wait", wait,
			)
			if err := r.sleep(ctx, wait); err != nil {
				return "", err
			}
		}

		out, err := r.attempt(ctx, attemptTimeout, op)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !relayerrors.IsRetryable(err) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", relayerrors.NewExhaustedError("", r.policy.MaxAttempts, lastErr)
}

// attempt runs one invocation bounded by the per-attempt timeout. An attempt
// killed by its own deadline is converted to a retryable timeout error;
// cancellation of the parent context propagates as-is.
func (r *Retryer) attempt(ctx context.Context, attemptTimeout time.Duration, op Operation) (string, error) {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if attemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, attemptTimeout)
	}
	defer cancel()

	out, err := op(attemptCtx)
	if err == nil {
		return out, nil
	}

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return "", relayerrors.NewTimeoutError("", "attempt timed out after "+attemptTimeout.String())
	}
	return "", err
}

// backoff computes the wait before the (retry+1)-th attempt:
// BaseDelay * 2^(retry-1) plus random jitter, capped at MaxDelay.
func (r *Retryer) backoff(retry int) time.Duration {
	if r.policy.BaseDelay <= 0 {
		return 0
	}

	wait := r.policy.BaseDelay << (retry - 1)
	if r.policy.MaxDelay > 0 && wait > r.policy.MaxDelay {
		wait = r.policy.MaxDelay
	}

	if r.policy.Jitter > 0 {
		r.randMu.Lock()
		jitter := time.Duration(r.rand.Int63n(int64(r.policy.Jitter)))
		r.randMu.Unlock()
		wait += jitter
	}

	if r.policy.MaxDelay > 0 && wait > r.policy.MaxDelay {
		wait = r.policy.MaxDelay
	}
	return wait
}

// SetSleep overrides the backoff sleep. Intended for tests.
func (r *Retryer) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	r.sleep = fn
}

// SetRand overrides the jitter source. Intended for tests.
func (r *Retryer) SetRand(rnd *rand.Rand) {
	r.randMu.Lock()
	defer r.randMu.Unlock()
	r.rand = rnd
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
