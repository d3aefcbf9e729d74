package resilience

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError is returned when an operation does not settle before its deadline.
// The underlying operation is not cancelled and may still complete; its result
// is discarded.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation '%s' timed out after %s", e.Operation, e.Timeout)
}

// CircuitBreakerOpenError is returned when a call is rejected because the
// circuit is open. The wrapped operation was never invoked.
type CircuitBreakerOpenError struct {
	CircuitName string
}

func (e *CircuitBreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is open", e.CircuitName)
}

// BulkheadRejectionError is returned when both the concurrency slots and the
// admission queue of a bulkhead are exhausted. The wrapped operation was never
// invoked.
type BulkheadRejectionError struct {
	BulkheadName string
	Message      string
	Active       int
	Queued       int
}

func (e *BulkheadRejectionError) Error() string {
	return fmt.Sprintf("bulkhead '%s' rejected request: %s", e.BulkheadName, e.Message)
}

// IsTimeoutError checks if an error is a resilience timeout error
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsCircuitBreakerOpenError checks if an error is a circuit breaker rejection
func IsCircuitBreakerOpenError(err error) bool {
	var cbErr *CircuitBreakerOpenError
	return errors.As(err, &cbErr)
}

// IsBulkheadRejectionError checks if an error is a bulkhead rejection
func IsBulkheadRejectionError(err error) bool {
	var brErr *BulkheadRejectionError
	return errors.As(err, &brErr)
}
