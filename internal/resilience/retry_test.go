package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSleeper(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDoVal_SucceedsFirstTry(t *testing.T) {
	var delays []time.Duration
	cfg := OracleRetryConfig(5)
	cfg.Sleep = fakeSleeper(&delays)

	val, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Empty(t, delays)
}

func TestDoVal_BackoffSchedule(t *testing.T) {
	var delays []time.Duration
	cfg := OracleRetryConfig(5)
	cfg.Sleep = fakeSleeper(&delays)

	calls := 0
	val, err := DoVal(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		if calls <= 3 {
			return "", NewTransientError(eris.New("too many requests"), 429)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, []time.Duration{6 * time.Second, 12 * time.Second, 24 * time.Second}, delays)
}

func TestDoVal_ExhaustsRetries(t *testing.T) {
	var delays []time.Duration
	cfg := OracleRetryConfig(5)
	cfg.Sleep = fakeSleeper(&delays)

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(eris.New("quota exceeded"), 429)
	})

	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, 6, calls)
	assert.Equal(t, []time.Duration{
		6 * time.Second, 12 * time.Second, 24 * time.Second,
		48 * time.Second, 96 * time.Second,
	}, delays)
}

func TestDoVal_NonTransientIsTerminal(t *testing.T) {
	var delays []time.Duration
	cfg := OracleRetryConfig(5)
	cfg.Sleep = fakeSleeper(&delays)

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, eris.New("invalid api key")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestDoVal_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := OracleRetryConfig(5)
	cfg.Sleep = func(context.Context, time.Duration) error { return nil }

	calls := 0
	_, err := DoVal(ctx, cfg, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(eris.New("429"), 429)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsRateLimited(t *testing.T) {
	assert.False(t, IsRateLimited(nil))
	assert.True(t, IsRateLimited(NewTransientError(eris.New("x"), 429)))
	assert.True(t, IsRateLimited(NewTransientError(eris.New("x"), 529)))
	assert.False(t, IsRateLimited(NewTransientError(eris.New("x"), 500)))
	assert.True(t, IsRateLimited(eris.New("status 429 from upstream")))
	assert.True(t, IsRateLimited(eris.New("Quota exhausted for model")))
	assert.True(t, IsRateLimited(eris.New("rate limit reached")))
	assert.False(t, IsRateLimited(eris.New("bad request")))
	// Wrapped transient errors are still recognized.
	wrapped := eris.Wrap(NewTransientError(eris.New("x"), 429), "oracle: call")
	assert.True(t, IsRateLimited(wrapped))
}
