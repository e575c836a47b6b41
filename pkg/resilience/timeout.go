// Package resilience bounds how long a linker command may run.
package resilience

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/errors"
)

// WithTimeout runs fn under a context that is cancelled after timeout and
// returns its result. A run that overstays the limit yields an ErrTimeout
// AppError even if fn ignores cancellation; a cancelled parent context is
// returned as is. A timeout of zero or less runs fn without a limit.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(timeoutCtx)
		done <- result{v, err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && timeoutCtx.Err() == context.DeadlineExceeded {
			return zero, timedOut(name, timeout)
		}
		return r.val, r.err
	case <-timeoutCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, timedOut(name, timeout)
	}
}

func timedOut(name string, timeout time.Duration) error {
	return errors.Newf(errors.ErrTimeout, errors.ExitTimeout, "%s exceeded its %v limit", name, timeout)
}
