package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResilientExecutor_ReusesInstancesPerName(t *testing.T) {
	exec := NewResilientExecutor()
	profile := LLMAPIProfile("llm-api")

	_, err := exec.Execute(context.Background(), succeed, profile)
	require.NoError(t, err)

	cb1, ok := exec.GetCircuitBreaker("llm-api")
	require.True(t, ok)
	bh1, ok := exec.GetBulkhead("llm-api")
	require.True(t, ok)

	// A second call with a differing config still reuses the first instances
	altered := LLMAPIProfile("llm-api")
	altered.CircuitBreaker.FailureThreshold = 99
	altered.Bulkhead.MaxConcurrent = 99
	_, err = exec.Execute(context.Background(), succeed, altered)
	require.NoError(t, err)

	cb2, _ := exec.GetCircuitBreaker("llm-api")
	bh2, _ := exec.GetBulkhead("llm-api")
	assert.Same(t, cb1, cb2)
	assert.Same(t, bh1, bh2)
	assert.NotEqual(t, 99, cb2.Config().FailureThreshold)
}

func TestResilientExecutor_ConcurrentFirstUseCreatesOneInstance(t *testing.T) {
	exec := NewResilientExecutor()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exec.Execute(context.Background(), succeed, EmbeddingProfile("embedding"))
		}()
	}
	wg.Wait()

	cb, ok := exec.GetCircuitBreaker("embedding")
	require.True(t, ok)
	assert.Equal(t, int64(20), cb.GetMetrics().TotalRequests)
}

func TestResilientExecutor_SkippedLayersAreNotCreated(t *testing.T) {
	exec := NewResilientExecutor()

	_, err := exec.Execute(context.Background(), succeed, DatabaseProfile("database"))
	require.NoError(t, err)

	_, hasBreaker := exec.GetCircuitBreaker("database")
	assert.False(t, hasBreaker)
	_, hasBulkhead := exec.GetBulkhead("database")
	assert.False(t, hasBulkhead)
	assert.Empty(t, exec.GetOperationNames())
}

func TestResilientExecutor_BreakerOpensThroughExecutor(t *testing.T) {
	exec := NewResilientExecutor()
	cbConfig := CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		ResetTimeout:     time.Minute,
	}
	profile := OperationProfile{Name: "flaky", CircuitBreaker: &cbConfig}

	for i := 0; i < 2; i++ {
		_, err := exec.Execute(context.Background(), fail, profile)
		require.Error(t, err)
	}
	assert.True(t, exec.HasOpenCircuits())

	invoked := false
	_, err := exec.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		invoked = true
		return nil, nil
	}, profile)
	require.Error(t, err)
	assert.True(t, IsCircuitBreakerOpenError(err))
	assert.False(t, invoked)
}

func TestResilientExecutor_BulkheadRejectsThroughExecutor(t *testing.T) {
	exec := NewResilientExecutor()
	bhConfig := BulkheadConfig{MaxConcurrent: 1, MaxQueue: 0}
	profile := OperationProfile{Name: "scarce", Bulkhead: &bhConfig}

	started := make(chan struct{})
	release := make(chan struct{})
	go exec.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		close(started)
		<-release
		return nil, nil
	}, profile)
	<-started

	_, err := exec.Execute(context.Background(), succeed, profile)
	require.Error(t, err)
	assert.True(t, IsBulkheadRejectionError(err))
	close(release)
}

func TestResilientExecutor_TimeoutBoundsAttempt(t *testing.T) {
	exec := NewResilientExecutor()
	profile := OperationProfile{Name: "slow", Timeout: 10 * time.Millisecond}

	_, err := exec.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		time.Sleep(200 * time.Millisecond)
		return nil, nil
	}, profile)

	require.Error(t, err)
	assert.True(t, IsTimeoutError(err))
}

func TestResilientExecutor_RetryComposesInsideBreaker(t *testing.T) {
	exec := NewResilientExecutor()
	retry := fastRetryConfig(3)
	cbConfig := CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		ResetTimeout:     time.Minute,
	}
	profile := OperationProfile{Name: "retryable", Retry: &retry, CircuitBreaker: &cbConfig}

	attempts := 0
	result, err := exec.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return "eventually", nil
	}, profile)

	require.NoError(t, err)
	assert.Equal(t, "eventually", result)
	assert.Equal(t, 3, attempts)

	// The retried sequence counts as one gated request against the breaker
	cb, _ := exec.GetCircuitBreaker("retryable")
	assert.Equal(t, int64(1), cb.GetMetrics().TotalRequests)
}

func TestResilientExecutor_ResetCircuitBreaker(t *testing.T) {
	exec := NewResilientExecutor()

	assert.False(t, exec.ResetCircuitBreaker("unknown"))

	cbConfig := CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute, ResetTimeout: time.Minute}
	profile := OperationProfile{Name: "resettable", CircuitBreaker: &cbConfig}
	exec.Execute(context.Background(), fail, profile)
	require.True(t, exec.HasOpenCircuits())

	assert.True(t, exec.ResetCircuitBreaker("resettable"))
	assert.False(t, exec.HasOpenCircuits())
}

func TestResilientExecutor_GetOperationNames(t *testing.T) {
	exec := NewResilientExecutor()

	exec.Execute(context.Background(), succeed, EmbeddingProfile("embedding"))
	exec.Execute(context.Background(), succeed, SearchProfile("search"))
	exec.Execute(context.Background(), succeed, LLMAPIProfile("llm-api"))

	assert.Equal(t, []string{"embedding", "llm-api", "search"}, exec.GetOperationNames())
}

func TestResilientExecutor_GetMetrics(t *testing.T) {
	exec := NewResilientExecutor()

	exec.Execute(context.Background(), succeed, EmbeddingProfile("embedding"))
	exec.Execute(context.Background(), fail, EmbeddingProfile("embedding"))
	exec.Execute(context.Background(), succeed, SearchProfile("search"))

	metrics := exec.GetMetrics()
	require.Contains(t, metrics.CircuitBreakers, "embedding")
	require.Contains(t, metrics.Bulkheads, "search")

	cbm := metrics.CircuitBreakers["embedding"]
	assert.Equal(t, int64(2), cbm.TotalRequests)
	assert.Equal(t, int64(1), cbm.TotalFailures)

	bhm := metrics.Bulkheads["search"]
	assert.Equal(t, int64(1), bhm.TotalExecuted)
	assert.Equal(t, int64(1), bhm.TotalSuccesses)
}

func TestResilientExecutor_GetHealthSummary(t *testing.T) {
	exec := NewResilientExecutor()

	summary := exec.GetHealthSummary()
	assert.True(t, summary.Healthy)
	assert.Empty(t, summary.OpenCircuits)

	cbConfig := CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute, ResetTimeout: time.Minute}
	profile := OperationProfile{Name: "llm-api", CircuitBreaker: &cbConfig}
	exec.Execute(context.Background(), fail, profile)

	summary = exec.GetHealthSummary()
	assert.False(t, summary.Healthy)
	assert.Equal(t, []string{"llm-api"}, summary.OpenCircuits)

	exec.ResetCircuitBreaker("llm-api")
	assert.True(t, exec.GetHealthSummary().Healthy)
}

func TestResilientExecutor_HealthWarnings(t *testing.T) {
	exec := NewResilientExecutor()

	// Bulkhead rejections produce a warning without marking the system unhealthy
	bhConfig := BulkheadConfig{MaxConcurrent: 1, MaxQueue: 0}
	profile := OperationProfile{Name: "scarce", Bulkhead: &bhConfig}

	started := make(chan struct{})
	release := make(chan struct{})
	go exec.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		close(started)
		<-release
		return nil, nil
	}, profile)
	<-started

	exec.Execute(context.Background(), succeed, profile) // rejected
	close(release)

	summary := exec.GetHealthSummary()
	assert.True(t, summary.Healthy)
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "scarce")
	assert.Contains(t, summary.Warnings[0], "rejected")

	// A breaker one failure away from its threshold is worth a warning too
	cbConfig := CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute, ResetTimeout: time.Minute}
	cbProfile := OperationProfile{Name: "nearly-open", CircuitBreaker: &cbConfig}
	exec.Execute(context.Background(), fail, cbProfile)
	exec.Execute(context.Background(), fail, cbProfile)

	summary = exec.GetHealthSummary()
	assert.True(t, summary.Healthy)
	found := false
	for _, w := range summary.Warnings {
		if strings.Contains(w, "nearly-open") && strings.Contains(w, "threshold") {
			found = true
		}
	}
	assert.True(t, found, "expected a nearing-threshold warning, got %v", summary.Warnings)
}

func TestExecuteTyped(t *testing.T) {
	exec := NewResilientExecutor()

	type searchResult struct {
		Hits int
	}

	result, err := ExecuteTyped(context.Background(), exec, func(ctx context.Context) (searchResult, error) {
		return searchResult{Hits: 7}, nil
	}, FastReliableProfile("typed-search"))

	require.NoError(t, err)
	assert.Equal(t, 7, result.Hits)

	opErr := errors.New("nope")
	_, err = ExecuteTyped(context.Background(), exec, func(ctx context.Context) (searchResult, error) {
		return searchResult{}, opErr
	}, FastReliableProfile("typed-search"))
	require.ErrorIs(t, err, opErr)
}

func TestPredefinedProfiles(t *testing.T) {
	llm := LLMAPIProfile("llm")
	assert.Equal(t, 30*time.Second, llm.Timeout)
	assert.NotNil(t, llm.Retry)
	assert.NotNil(t, llm.CircuitBreaker)
	assert.NotNil(t, llm.Bulkhead)

	embedding := EmbeddingProfile("embed")
	assert.Equal(t, 10*time.Second, embedding.Timeout)
	assert.NotNil(t, embedding.CircuitBreaker)
	assert.Nil(t, embedding.Bulkhead)

	database := DatabaseProfile("db")
	assert.Equal(t, 3*time.Second, database.Timeout)
	assert.Nil(t, database.CircuitBreaker)

	search := SearchProfile("search")
	assert.Equal(t, 5*time.Second, search.Timeout)
	assert.NotNil(t, search.Bulkhead)
	assert.Nil(t, search.CircuitBreaker)

	fast := FastReliableProfile("fast")
	assert.Equal(t, time.Second, fast.Timeout)
	assert.Nil(t, fast.Retry)
	assert.Nil(t, fast.CircuitBreaker)
}
