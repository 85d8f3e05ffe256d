package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/larder/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		MinDelay:    time.Millisecond,
		MaxDelay:    8 * time.Millisecond,
		Multiplier:  2,
	}
}

func TestDo_Success(t *testing.T) {
	attempts := 0
	value, err := Do(context.Background(), fastPolicy(3), "op", func(ctx context.Context) (string, error) {
		attempts++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestDo_EventualSuccess(t *testing.T) {
	attempts := 0
	err := DoErr(context.Background(), fastPolicy(5), "op", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("service unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestDo_AllAttemptsFail(t *testing.T) {
	attempts := 0
	cause := errors.New("request timed out")
	err := DoErr(context.Background(), fastPolicy(3), "stt", func(ctx context.Context) error {
		attempts++
		return cause
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "should attempt exactly MaxAttempts times")

	ce, ok := failure.As(err)
	require.True(t, ok, "exhausted error should be classified")
	assert.Equal(t, failure.KindTimeout, ce.Kind)
	assert.Equal(t, 3, ce.Attempts)
	assert.Equal(t, 3, ce.Context[failure.ContextAttempts])
	assert.Equal(t, "stt", ce.Operation)
	assert.ErrorIs(t, err, cause)
}

func TestDo_QuotaExceededAttemptedOnce(t *testing.T) {
	attempts := 0
	err := DoErr(context.Background(), fastPolicy(5), "extract", func(ctx context.Context) error {
		attempts++
		return errors.New("You exceeded your current quota: insufficient_quota")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, failure.KindQuotaExceeded, failure.KindOf(err))
}

func TestDo_RateLimitedUsesNonDecreasingDelays(t *testing.T) {
	var delays []time.Duration
	policy := fastPolicy(5)
	policy.OnRetry = func(attempt int, delay time.Duration, err *failure.ClassifiedError) {
		assert.Equal(t, failure.KindRateLimited, err.Kind)
		delays = append(delays, delay)
	}

	attempts := 0
	err := DoErr(context.Background(), policy, "transcribe", func(ctx context.Context) error {
		attempts++
		return errors.New("Rate limit reached for requests")
	})
	require.Error(t, err)
	assert.Equal(t, 5, attempts)
	require.Len(t, delays, 4)
	for i := 1; i < len(delays); i++ {
		assert.GreaterOrEqual(t, delays[i], delays[i-1])
	}
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, policy.MinDelay)
		assert.LessOrEqual(t, d, policy.MaxDelay)
	}
}

func TestDo_InvalidMaxAttempts(t *testing.T) {
	err := DoErr(context.Background(), Policy{MaxAttempts: 0}, "op", func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := DoErr(ctx, fastPolicy(10), "op", func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel() // Cancel after second attempt
		}
		return errors.New("server error")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled, "should return context.Canceled")
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestDo_PerAttemptTimeout(t *testing.T) {
	attempts := 0
	policy := fastPolicy(2).WithTimeout(10 * time.Millisecond)
	err := DoErr(context.Background(), policy, "slow", func(ctx context.Context) error {
		attempts++
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, 2, attempts, "timeouts are retried")
	assert.Equal(t, failure.KindTimeout, failure.KindOf(err))
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{MinDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 5*time.Second, p.Delay(4))
	assert.Equal(t, 5*time.Second, p.Delay(40))

	uncapped := Policy{MinDelay: time.Second}
	assert.Equal(t, 8*time.Second, uncapped.Delay(4))
}

func TestPolicy_AttemptTimeout(t *testing.T) {
	p := Policy{Timeout: 10 * time.Second}
	assert.Equal(t, 10*time.Second, p.AttemptTimeout(3))

	p.Progressive = true
	assert.Equal(t, 10*time.Second, p.AttemptTimeout(1))
	assert.Equal(t, 15*time.Second, p.AttemptTimeout(2))
	assert.Equal(t, 20*time.Second, p.AttemptTimeout(3))
}

func TestScaleForFileSize(t *testing.T) {
	base := 60 * time.Second
	assert.Equal(t, base, ScaleForFileSize(base, 5*mb))
	assert.Equal(t, 90*time.Second, ScaleForFileSize(base, 20*mb))
	assert.Equal(t, 120*time.Second, ScaleForFileSize(base, 80*mb))
	assert.Equal(t, 180*time.Second, ScaleForFileSize(base, 500*mb))
}
