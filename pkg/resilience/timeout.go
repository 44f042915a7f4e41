package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
)

// TimeoutError reports a query context that ran past its budget. It
// matches both apperrors.ErrTimeout and context.DeadlineExceeded.
type TimeoutError struct {
	InstanceID string
	Limit      time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %v (limit: %v)", e.InstanceID, apperrors.ErrTimeout, e.Limit)
}

func (e *TimeoutError) Is(target error) bool {
	return target == apperrors.ErrTimeout || target == context.DeadlineExceeded
}

// WithTimeout runs fn for one query context under a budget of limit. It
// returns as soon as the budget is spent, even if fn has not noticed the
// cancelled context yet. A deadline error that fn returns itself is also
// reported as a *TimeoutError, so the outcome does not depend on which of
// the two is observed first. Cancellation of the parent is passed through
// unchanged. A non-positive limit runs fn directly.
func WithTimeout(ctx context.Context, limit time.Duration, instanceID string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	budgetCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(budgetCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-budgetCtx.Done():
		err = budgetCtx.Err()
	}
	if err == nil {
		return nil
	}
	if parentErr := ctx.Err(); parentErr != nil {
		return fmt.Errorf("%s: %w", instanceID, parentErr)
	}
	if errors.Is(err, context.DeadlineExceeded) && budgetCtx.Err() != nil {
		return &TimeoutError{InstanceID: instanceID, Limit: limit}
	}
	return err
}
