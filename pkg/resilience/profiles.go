package resilience

import "time"

// Predefined operation profiles for the dependency classes of the
// document-search service. Each call returns a fresh profile so callers can
// adjust a copy without affecting others; the registry still guarantees one
// breaker/bulkhead per operation name.

// LLMAPIProfile covers chat-completion style LLM calls: slow, rate-limited
// and flaky enough to deserve every layer
func LLMAPIProfile(name string) OperationProfile {
	retry := DefaultRetryConfig()
	cb := DefaultCircuitBreakerConfig(name)
	bh := BulkheadConfig{Name: name, MaxConcurrent: 5, MaxQueue: 10}
	return OperationProfile{
		Name:           name,
		Timeout:        30000 * time.Millisecond,
		Retry:          &retry,
		CircuitBreaker: &cb,
		Bulkhead:       &bh,
	}
}

// EmbeddingProfile covers embedding-generation calls
func EmbeddingProfile(name string) OperationProfile {
	cb := DefaultCircuitBreakerConfig(name)
	return OperationProfile{
		Name:           name,
		Timeout:        10000 * time.Millisecond,
		CircuitBreaker: &cb,
	}
}

// DatabaseProfile covers the trusted internal database: a tight timeout and no
// circuit breaker
func DatabaseProfile(name string) OperationProfile {
	return OperationProfile{
		Name:    name,
		Timeout: 3000 * time.Millisecond,
	}
}

// SearchProfile covers search-backend queries, isolated behind a bulkhead
func SearchProfile(name string) OperationProfile {
	bh := DefaultBulkheadConfig(name)
	return OperationProfile{
		Name:     name,
		Timeout:  5000 * time.Millisecond,
		Bulkhead: &bh,
	}
}

// FastReliableProfile covers cheap in-process or near-local calls: a short
// timeout, no retry and no circuit breaker
func FastReliableProfile(name string) OperationProfile {
	return OperationProfile{
		Name:    name,
		Timeout: 1000 * time.Millisecond,
	}
}
