package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/documind/documind/pkg/resilience"
)

func setupRouter(executor *resilience.ResilientExecutor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(executor).RegisterRoutes(router)
	return router
}

func perform(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestLiveness_AlwaysHealthy(t *testing.T) {
	executor := resilience.NewResilientExecutor()
	router := setupRouter(executor)

	// Force a circuit open: liveness must not care
	tripCircuit(t, executor, "llm-api")

	w := perform(router, "/health/live")

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(StatusHealthy), body["status"])
}

func TestReadiness_HealthyWhenNoOpenCircuits(t *testing.T) {
	executor := resilience.NewResilientExecutor()
	router := setupRouter(executor)

	w := perform(router, "/health/ready")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.True(t, resp.Summary.Healthy)
	assert.Empty(t, resp.Summary.OpenCircuits)
}

func TestReadiness_UnavailableWhenCircuitOpen(t *testing.T) {
	executor := resilience.NewResilientExecutor()
	router := setupRouter(executor)

	tripCircuit(t, executor, "llm-api")

	w := perform(router, "/health/ready")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Summary.OpenCircuits, "llm-api")
}

func TestHealth_IncludesMetrics(t *testing.T) {
	executor := resilience.NewResilientExecutor()
	router := setupRouter(executor)

	cbCfg := resilience.DefaultCircuitBreakerConfig("search")
	profile := resilience.OperationProfile{Name: "search", CircuitBreaker: &cbCfg}
	_, err := executor.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	}, profile)
	require.NoError(t, err)

	w := perform(router, "/health")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Metrics)
	require.Contains(t, resp.Metrics.CircuitBreakers, "search")
	assert.Equal(t, int64(1), resp.Metrics.CircuitBreakers["search"].TotalRequests)
}

func TestHealth_UnavailableWhenUnhealthy(t *testing.T) {
	executor := resilience.NewResilientExecutor()
	router := setupRouter(executor)

	tripCircuit(t, executor, "embedding")

	w := perform(router, "/health")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// tripCircuit drives enough consecutive failures through the executor to open
// the named circuit.
func tripCircuit(t *testing.T, executor *resilience.ResilientExecutor, name string) {
	t.Helper()

	cfg := resilience.DefaultCircuitBreakerConfig(name)
	cfg.FailureThreshold = 2
	cfg.SuccessThreshold = 1
	profile := resilience.OperationProfile{Name: name, CircuitBreaker: &cfg}

	for i := 0; i < 2; i++ {
		_, err := executor.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, fmt.Errorf("dependency down")
		}, profile)
		require.Error(t, err)
	}
	cb, ok := executor.GetCircuitBreaker(name)
	require.True(t, ok)
	require.True(t, cb.IsOpen())
}
