package resilience

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/documind/documind/pkg/logging"
)

// OperationProfile names an operation and selects which resilience layers wrap
// it. A nil layer config means that layer is skipped for the call. The first
// Execute call for a name creates the named breaker and bulkhead from that
// call's configs; later calls reuse the existing instances and any differing
// configs are ignored.
type OperationProfile struct {
	Name           string
	Timeout        time.Duration
	Retry          *RetryConfig
	CircuitBreaker *CircuitBreakerConfig
	Bulkhead       *BulkheadConfig
}

// ExecutorMetrics aggregates the snapshots of every named breaker and bulkhead
type ExecutorMetrics struct {
	CircuitBreakers map[string]CircuitBreakerMetrics `json:"circuit_breakers"`
	Bulkheads       map[string]BulkheadMetrics       `json:"bulkheads"`
}

// HealthSummary reports aggregate resilience health, suitable for liveness and
// readiness probes
type HealthSummary struct {
	Healthy       bool     `json:"healthy"`
	OpenCircuits  []string `json:"open_circuits"`
	FullBulkheads []string `json:"full_bulkheads"`
	Warnings      []string `json:"warnings"`
}

// ResilientExecutor applies timeout, retry, circuit-breaker and bulkhead
// layers to named operations, creating one breaker and one bulkhead per
// operation name lazily and reusing them for the executor's lifetime.
type ResilientExecutor struct {
	mutex     sync.RWMutex
	breakers  map[string]*CircuitBreaker
	bulkheads map[string]*Bulkhead

	logger *logging.Logger
	tracer trace.Tracer
}

// NewResilientExecutor creates an executor with empty registries
func NewResilientExecutor() *ResilientExecutor {
	return &ResilientExecutor{
		breakers:  make(map[string]*CircuitBreaker),
		bulkheads: make(map[string]*Bulkhead),
		logger:    logging.GetLogger(),
		tracer:    otel.Tracer("documind/resilience"),
	}
}

// Execute wraps op with the layers the profile selects, outside-in: bulkhead
// admission, circuit-breaker gate, retry loop, timeout-bounded attempt.
func (e *ResilientExecutor) Execute(ctx context.Context, op Operation, profile OperationProfile) (interface{}, error) {
	ctx, span := e.tracer.Start(ctx, "resilience.execute",
		trace.WithAttributes(attribute.String("resilience.operation", profile.Name)))
	defer span.End()

	call := op

	if profile.Timeout > 0 {
		inner := call
		timeout := profile.Timeout
		name := profile.Name
		call = func(ctx context.Context) (interface{}, error) {
			return WithTimeout(ctx, inner, timeout, name)
		}
	}

	if profile.Retry != nil {
		retrier := NewRetrier(*profile.Retry)
		inner := call
		call = func(ctx context.Context) (interface{}, error) {
			return retrier.ExecuteWithResult(ctx, inner)
		}
	}

	if profile.CircuitBreaker != nil {
		cb := e.circuitBreaker(profile.Name, *profile.CircuitBreaker)
		inner := call
		call = func(ctx context.Context) (interface{}, error) {
			return cb.Execute(ctx, inner)
		}
	}

	if profile.Bulkhead != nil {
		bh, err := e.bulkhead(profile.Name, *profile.Bulkhead)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		inner := call
		call = func(ctx context.Context) (interface{}, error) {
			return bh.Execute(ctx, inner)
		}
	}

	result, err := call(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// ExecuteTyped is a typed convenience wrapper around Execute
func ExecuteTyped[T any](ctx context.Context, e *ResilientExecutor, op func(ctx context.Context) (T, error), profile OperationProfile) (T, error) {
	result, err := e.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return op(ctx)
	}, profile)
	if err != nil {
		var zero T
		return zero, err
	}
	value, ok := result.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("operation '%s' returned unexpected type %T", profile.Name, result)
	}
	return value, nil
}

// circuitBreaker returns the named breaker, creating it on first use. The
// registry is first-writer-wins: exactly one instance is created per name even
// under concurrent first use.
func (e *ResilientExecutor) circuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	e.mutex.RLock()
	cb, ok := e.breakers[name]
	e.mutex.RUnlock()
	if ok {
		return cb
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if cb, ok := e.breakers[name]; ok {
		return cb
	}

	config.Name = name
	cb = NewCircuitBreaker(config)
	e.breakers[name] = cb
	e.logger.Debug("Created circuit breaker", "name", name)
	return cb
}

// bulkhead returns the named bulkhead, creating it on first use
func (e *ResilientExecutor) bulkhead(name string, config BulkheadConfig) (*Bulkhead, error) {
	e.mutex.RLock()
	bh, ok := e.bulkheads[name]
	e.mutex.RUnlock()
	if ok {
		return bh, nil
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if bh, ok := e.bulkheads[name]; ok {
		return bh, nil
	}

	config.Name = name
	bh, err := NewBulkhead(config)
	if err != nil {
		return nil, err
	}
	e.bulkheads[name] = bh
	e.logger.Debug("Created bulkhead", "name", name)
	return bh, nil
}

// GetCircuitBreaker returns the named circuit breaker if it has been created
func (e *ResilientExecutor) GetCircuitBreaker(name string) (*CircuitBreaker, bool) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	cb, ok := e.breakers[name]
	return cb, ok
}

// GetBulkhead returns the named bulkhead if it has been created
func (e *ResilientExecutor) GetBulkhead(name string) (*Bulkhead, bool) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	bh, ok := e.bulkheads[name]
	return bh, ok
}

// GetOperationNames returns every operation name with at least one created
// breaker or bulkhead, sorted
func (e *ResilientExecutor) GetOperationNames() []string {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	seen := make(map[string]struct{}, len(e.breakers)+len(e.bulkheads))
	for name := range e.breakers {
		seen[name] = struct{}{}
	}
	for name := range e.bulkheads {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResetCircuitBreaker forces the named breaker closed. It returns false
// without mutating anything when the name is unknown.
func (e *ResilientExecutor) ResetCircuitBreaker(name string) bool {
	e.mutex.RLock()
	cb, ok := e.breakers[name]
	e.mutex.RUnlock()
	if !ok {
		return false
	}
	cb.Reset()
	return true
}

// HasOpenCircuits reports whether any registered circuit is currently open
func (e *ResilientExecutor) HasOpenCircuits() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	for _, cb := range e.breakers {
		if cb.IsOpen() {
			return true
		}
	}
	return false
}

// GetMetrics returns a snapshot of every named breaker and bulkhead
func (e *ResilientExecutor) GetMetrics() ExecutorMetrics {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	metrics := ExecutorMetrics{
		CircuitBreakers: make(map[string]CircuitBreakerMetrics, len(e.breakers)),
		Bulkheads:       make(map[string]BulkheadMetrics, len(e.bulkheads)),
	}
	for name, cb := range e.breakers {
		metrics.CircuitBreakers[name] = cb.GetMetrics()
	}
	for name, bh := range e.bulkheads {
		metrics.Bulkheads[name] = bh.GetMetrics()
	}
	return metrics
}

// GetHealthSummary reports aggregate health: unhealthy iff any circuit is
// open, with warnings for bulkheads seeing rejections or heavy queueing and
// breakers nearing their failure threshold
func (e *ResilientExecutor) GetHealthSummary() HealthSummary {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	summary := HealthSummary{
		Healthy:       true,
		OpenCircuits:  []string{},
		FullBulkheads: []string{},
		Warnings:      []string{},
	}

	for name, cb := range e.breakers {
		if cb.IsOpen() {
			summary.Healthy = false
			summary.OpenCircuits = append(summary.OpenCircuits, name)
			continue
		}
		m := cb.GetMetrics()
		threshold := cb.Config().FailureThreshold
		if m.State == StateClosed && threshold > 1 && m.ConsecutiveFailures >= threshold-1 {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("circuit '%s' nearing failure threshold (%d/%d consecutive failures)",
					name, m.ConsecutiveFailures, threshold))
		}
	}

	for name, bh := range e.bulkheads {
		if bh.IsFull() {
			summary.FullBulkheads = append(summary.FullBulkheads, name)
		}
		m := bh.GetMetrics()
		if m.Rejections > 0 {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("bulkhead '%s' has rejected %d requests", name, m.Rejections))
		} else if bh.GetQueueUtilization() >= 80 {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("bulkhead '%s' queue is %.0f%% full", name, bh.GetQueueUtilization()))
		}
	}

	sort.Strings(summary.OpenCircuits)
	sort.Strings(summary.FullBulkheads)
	sort.Strings(summary.Warnings)
	return summary
}
