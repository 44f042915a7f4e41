package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls exponential backoff for sink writes. Zero
// MaxAttempts, InitialDelay, MaxDelay and Multiplier take the values of
// DefaultRetryConfig; a zero JitterFraction disables jitter.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"maxAttempts" validate:"gte=0"`
	InitialDelay   time.Duration `yaml:"initialDelay" validate:"gte=0"`
	MaxDelay       time.Duration `yaml:"maxDelay" validate:"gte=0"`
	Multiplier     float64       `yaml:"multiplier" validate:"gte=0"`
	JitterFraction float64       `yaml:"jitter" validate:"gte=0,lte=1"`
	// Retryable narrows which errors get another attempt. Permanent and
	// context errors are never retried.
	Retryable func(error) bool `yaml:"-"`
}

// DefaultRetryConfig is three attempts starting at 100ms, doubling up to
// 10s with 10% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// Backoff is the wait after failed attempt n (1-based), capped at MaxDelay.
func (c RetryConfig) Backoff(n int) time.Duration {
	c = c.withDefaults()
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(n-1))
	if c.JitterFraction > 0 {
		d += d * c.JitterFraction * (2*rand.Float64() - 1)
	}
	d = math.Min(d, float64(c.MaxDelay))
	return time.Duration(math.Max(d, 0))
}

func (c RetryConfig) retryable(err error) bool {
	var p *permanentError
	if errors.As(err, &p) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return c.Retryable == nil || c.Retryable(err)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Retry gives up on it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryError is the final failure of Retry.
type RetryError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Retry calls fn with the 1-based attempt number until it succeeds, fails
// with an error that is not retryable, runs out of attempts or ctx ends.
// Every failure is returned as a *RetryError.
func Retry(ctx context.Context, op string, cfg RetryConfig, fn func(ctx context.Context, attempt int) error) error {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", op)

	var lastErr error
	attempt := 0
	for attempt < cfg.MaxAttempts {
		attempt++
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !cfg.retryable(lastErr) || attempt == cfg.MaxAttempts {
			break
		}
		delay := cfg.Backoff(attempt)
		logger.Warn("attempt failed, backing off",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"error", lastErr,
			"next_delay", delay,
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return &RetryError{Op: op, Attempts: attempt, Err: errors.Join(lastErr, ctx.Err())}
		}
	}
	return &RetryError{Op: op, Attempts: attempt, Err: lastErr}
}
