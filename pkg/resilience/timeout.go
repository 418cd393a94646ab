package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/quoteindex/quoteindex/pkg/errors"
)

// Within runs fn under a deadline of limit and stops waiting once it passes.
// Overrunning the limit yields an error matching both apperrors.ErrTimeout
// and context.DeadlineExceeded; cancellation of ctx itself is returned as is.
// fn keeps running in the background after a timeout and must honour its
// context. A non-positive limit calls fn directly.
func Within(ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fn(bounded) }()

	var err error
	select {
	case err = <-done:
	case <-bounded.Done():
		err = bounded.Err()
	}
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded) && bounded.Err() != nil:
		return fmt.Errorf("%s: %w after %v: %w", op, apperrors.ErrTimeout, limit, context.DeadlineExceeded)
	default:
		return err
	}
}
