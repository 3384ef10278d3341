package resilience

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relayerrors "github.com/atelierhq/relay/pkg/errors"
)

func newTestRetryer(policy Policy) *Retryer {
	r := New(policy, nil)
	r.SetRand(rand.New(rand.NewSource(1)))
	r.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return r
}

func TestRetryer_SuccessFirstAttempt(t *testing.T) {
	r := newTestRetryer(Policy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	calls := 0
	out, err := r.Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, calls)
}

func TestRetryer_RetryableThenSuccess(t *testing.T) {
	r := newTestRetryer(Policy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	calls := 0
	out, err := r.Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", relayerrors.NewTransientError("p", "overloaded")
		}
		return "third time lucky", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "third time lucky", out)
	assert.Equal(t, 3, calls)
}

func TestRetryer_TerminalShortCircuits(t *testing.T) {
	r := newTestRetryer(Policy{MaxAttempts: 5, BaseDelay: time.Millisecond})

	calls := 0
	_, err := r.Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", relayerrors.NewConfigurationError("p", "bad api key")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var re *relayerrors.RouteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, relayerrors.KindConfiguration, re.Kind)
}

func TestRetryer_ExhaustedRetries(t *testing.T) {
	r := newTestRetryer(Policy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	calls := 0
	_, err := r.Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", relayerrors.NewRateLimitError("p", "try later")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var re *relayerrors.RouteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, relayerrors.KindExhausted, re.Kind)
	assert.Equal(t, 3, re.Attempts)
	assert.Contains(t, re.Message, "try later")
}

func TestRetryer_PlainErrorTreatedRetryable(t *testing.T) {
	r := newTestRetryer(Policy{MaxAttempts: 2, BaseDelay: time.Millisecond})

	calls := 0
	_, err := r.Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("connection reset")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryer_AttemptTimeoutIsRetryable(t *testing.T) {
	r := newTestRetryer(Policy{MaxAttempts: 2, BaseDelay: time.Millisecond})

	calls := 0
	out, err := r.DoWithAttemptTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, 2, calls)
}

func TestRetryer_ParentCancellationPropagates(t *testing.T) {
	r := newTestRetryer(Policy{MaxAttempts: 5, BaseDelay: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := r.Do(ctx, func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", relayerrors.NewTransientError("p", "boom")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryer_BackoffDoublesAndCaps(t *testing.T) {
	r := New(Policy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    350 * time.Millisecond,
		Jitter:      0,
	}, nil)

	assert.Equal(t, 100*time.Millisecond, r.backoff(1))
	assert.Equal(t, 200*time.Millisecond, r.backoff(2))
	assert.Equal(t, 350*time.Millisecond, r.backoff(3))
	assert.Equal(t, 350*time.Millisecond, r.backoff(4))
}

func TestRetryer_BackoffJitterRange(t *testing.T) {
	r := New(Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Jitter:      500 * time.Millisecond,
	}, nil)
	r.SetRand(rand.New(rand.NewSource(1)))

	for i := 0; i < 20; i++ {
		got := r.backoff(1)
		assert.GreaterOrEqual(t, got, time.Second)
		assert.Less(t, got, 1500*time.Millisecond)
	}
}
