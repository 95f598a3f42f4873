package ingest

import (
	"context"
	"errors"
)

// Permanent marks an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Retry runs op up to attempts times, stopping at the first success, at a
// Permanent error or when ctx is done. It returns the value of the
// successful attempt, the number of attempts made and the last error.
// Failed attempts are retried immediately.
func Retry[T any](ctx context.Context, attempts int, op func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	var (
		zero    T
		lastErr error
	)
	if attempts < 1 {
		attempts = 1
	}
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, i - 1, err
		}
		v, err := op(ctx, i)
		if err == nil {
			return v, i, nil
		}
		var perm *Permanent
		if errors.As(err, &perm) {
			return zero, i, perm.Err
		}
		lastErr = err
	}
	return zero, attempts, lastErr
}
