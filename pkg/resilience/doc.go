// Package resilience protects calls to the unreliable external dependencies
// of the documind document-search service: LLM APIs, embedding services, and
// database/search backends.
//
// This package implements the following patterns:
//
// # Circuit Breaker Pattern
//
// The circuit breaker stops invoking a dependency after a run of consecutive
// failures and probes recovery through a half-open trial state. All state
// transitions are lazy: elapsed time is checked when the breaker is queried or
// executed, never by a background timer, which keeps behavior deterministic
// under simulated time.
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//		Name:             "llm-api",
//		FailureThreshold: 5,
//		SuccessThreshold: 2,
//		Timeout:          30 * time.Second,
//		ResetTimeout:     60 * time.Second,
//	})
//
//	result, err := cb.Execute(ctx, func(ctx context.Context) (interface{}, error) {
//		return llmClient.Complete(ctx, prompt)
//	})
//
// # Bulkhead Pattern
//
// The bulkhead limits a dependency's concurrency behind a bounded strict-FIFO
// admission queue, so one slow backend cannot absorb every worker.
//
//	bh, err := resilience.NewBulkhead(resilience.BulkheadConfig{
//		Name:          "search",
//		MaxConcurrent: 10,
//		MaxQueue:      20,
//	})
//
// # Graceful Degradation
//
// GracefulDegradation executes a primary operation with a fallback, either
// reactively on failure or proactively via a predicate (typically a circuit
// breaker's open state).
//
//	gd := resilience.NewGracefulDegradation()
//	result, err := gd.Execute(ctx, resilience.StrategyWithCircuitBreaker(primary, cached, cb))
//
// # Composed Execution
//
// ResilientExecutor applies timeout, retry, circuit-breaker and bulkhead
// layers per named operation, creating one breaker and one bulkhead per name
// lazily and reusing them for the executor's lifetime.
//
//	exec := resilience.NewResilientExecutor()
//	result, err := exec.Execute(ctx, op, resilience.LLMAPIProfile("llm-api"))
//
// The package is thread-safe; breaker and bulkhead instances are shared by all
// concurrent callers using the same operation name.
package resilience
