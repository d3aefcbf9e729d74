package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/documind/documind/pkg/resilience"
)

func TestCollector_RegistersAndCollects(t *testing.T) {
	exec := resilience.NewResilientExecutor()
	collector := NewCollector(exec, nil)

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(collector))

	// No operations yet: nothing to export
	assert.Equal(t, 0, testutil.CollectAndCount(collector))

	cbConfig := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		ResetTimeout:     time.Minute,
	}
	profile := resilience.OperationProfile{Name: "embedding", CircuitBreaker: &cbConfig}

	exec.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	}, profile)
	exec.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("down")
	}, profile)

	// Six circuit metrics for the one operation
	assert.Equal(t, 6, testutil.CollectAndCount(collector))

	expected := strings.NewReader(`
# HELP documind_circuit_breaker_requests_total Total calls seen by the circuit breaker
# TYPE documind_circuit_breaker_requests_total counter
documind_circuit_breaker_requests_total{operation="embedding"} 2
`)
	require.NoError(t, testutil.CollectAndCompare(collector, expected, "documind_circuit_breaker_requests_total"))
}

func TestCollector_BulkheadMetrics(t *testing.T) {
	exec := resilience.NewResilientExecutor()
	collector := NewCollector(exec, &Config{Namespace: "testns", Enabled: true})

	bhConfig := resilience.BulkheadConfig{MaxConcurrent: 2, MaxQueue: 2}
	profile := resilience.OperationProfile{Name: "search", Bulkhead: &bhConfig}

	exec.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "hits", nil
	}, profile)

	expected := strings.NewReader(`
# HELP testns_bulkhead_executed_total Operations admitted by the bulkhead
# TYPE testns_bulkhead_executed_total counter
testns_bulkhead_executed_total{operation="search"} 1
`)
	require.NoError(t, testutil.CollectAndCompare(collector, expected, "testns_bulkhead_executed_total"))
}

func TestStateValue(t *testing.T) {
	assert.Equal(t, 0.0, stateValue(resilience.StateClosed))
	assert.Equal(t, 1.0, stateValue(resilience.StateOpen))
	assert.Equal(t, 2.0, stateValue(resilience.StateHalfOpen))
}
