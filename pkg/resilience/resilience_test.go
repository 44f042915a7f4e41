package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	var attempts []int
	err := Retry(context.Background(), "sink-write", fastRetry(), func(_ context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestRetryGivesUp(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), "sink-write", fastRetry(), func(context.Context, int) error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var retryErr *RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, "sink-write", retryErr.Op)
	assert.Equal(t, 3, retryErr.Attempts)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	cases := []struct {
		name string
		cfg  func() RetryConfig
		err  error
		want error
	}{
		{
			name: "predicate",
			cfg: func() RetryConfig {
				cfg := fastRetry()
				cfg.Retryable = func(err error) bool { return !errors.Is(err, apperrors.ErrMalformedRecord) }
				return cfg
			},
			err:  apperrors.ErrMalformedRecord,
			want: apperrors.ErrMalformedRecord,
		},
		{name: "permanent", cfg: fastRetry, err: Permanent(apperrors.ErrMalformedRecord), want: apperrors.ErrMalformedRecord},
		{name: "cancelled", cfg: fastRetry, err: fmt.Errorf("publish: %w", context.Canceled), want: context.Canceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), "sink-write", tc.cfg(), func(context.Context, int) error {
				calls++
				return tc.err
			})
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 1, calls)
		})
	}
	assert.NoError(t, Permanent(nil))
}

func TestRetryAbortsDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0
	err := Retry(ctx, "sink-write", cfg, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 10*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 20*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 40*time.Millisecond, cfg.Backoff(3))
	assert.Equal(t, 50*time.Millisecond, cfg.Backoff(4))

	cfg.JitterFraction = 0.5
	for i := 0; i < 50; i++ {
		d := cfg.Backoff(1)
		assert.GreaterOrEqual(t, d, 5*time.Millisecond)
		assert.LessOrEqual(t, d, 15*time.Millisecond)
	}

	assert.Equal(t, DefaultRetryConfig().InitialDelay, RetryConfig{}.Backoff(1))
}

func TestWithTimeoutExpires(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "MONAI_1", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, apperrors.IsSkippable(err))
	assert.Equal(t, "timeout", apperrors.Reason(err))
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "MONAI_1", timeoutErr.InstanceID)
	assert.Equal(t, 10*time.Millisecond, timeoutErr.Limit)
}

func TestWithTimeoutDoesNotWaitForStuckWork(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	start := time.Now()
	err := WithTimeout(context.Background(), 10*time.Millisecond, "MONAI_2", func(context.Context) error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeoutParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithTimeout(ctx, time.Second, "MONAI_3", func(ctx context.Context) error {
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperrors.ErrTimeout)
}

func TestWithTimeoutPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	err := WithTimeout(context.Background(), time.Second, "MONAI_4", func(ctx context.Context) error { return boom })
	assert.Equal(t, boom, err)

	err = WithTimeout(context.Background(), 0, "MONAI_4", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     20 * time.Millisecond,
		OnStateChange:    func(_ string, to State) { transitions = append(transitions, to) },
	})
	fail := func() error { return errors.New("down") }

	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.GetState())
	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}
