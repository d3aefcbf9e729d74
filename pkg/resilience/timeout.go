package resilience

import (
	"context"
	"fmt"
	"time"
)

// Operation is the unit of work the resilience layer protects: an opaque
// asynchronous call to an external dependency
type Operation func(ctx context.Context) (interface{}, error)

// runProtected invokes op and normalizes a panic into a regular error, so a
// synchronous throw inside an operation travels the same failure channel as an
// ordinary error
func runProtected(ctx context.Context, op Operation, name string) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("operation '%s' panicked: %v", name, r)
		}
	}()
	return op(ctx)
}

// WithTimeout races op against a deadline. If the deadline elapses first the
// caller receives a TimeoutError immediately. Cancellation is advisory only:
// the operation keeps running in its goroutine and its eventual result is
// discarded, so retried operations should be idempotent.
func WithTimeout(ctx context.Context, op Operation, timeout time.Duration, name string) (interface{}, error) {
	if timeout <= 0 {
		return runProtected(ctx, op, name)
	}

	type outcome struct {
		result interface{}
		err    error
	}

	// Buffered so a late completion never blocks or leaks the goroutine.
	done := make(chan outcome, 1)
	go func() {
		result, err := runProtected(ctx, op, name)
		done <- outcome{result: result, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.result, o.err
	case <-timer.C:
		return nil, &TimeoutError{Operation: name, Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
