// Package health exposes liveness and readiness probes backed by the
// resilience layer's aggregate health.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/documind/documind/pkg/logging"
	"github.com/documind/documind/pkg/resilience"
)

// Status represents the health status of the service
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Response is the payload returned by the health endpoints
type Response struct {
	Status    Status                      `json:"status"`
	Timestamp time.Time                   `json:"timestamp"`
	Summary   resilience.HealthSummary    `json:"summary"`
	Metrics   *resilience.ExecutorMetrics `json:"metrics,omitempty"`
}

// Handler serves health endpoints for a ResilientExecutor
type Handler struct {
	executor *resilience.ResilientExecutor
	logger   *logging.Logger
}

// NewHandler creates a health handler over the given executor
func NewHandler(executor *resilience.ResilientExecutor) *Handler {
	return &Handler{
		executor: executor,
		logger:   logging.GetLogger(),
	}
}

// RegisterRoutes registers the health endpoints on the given router
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/health/live", h.Liveness)
	router.GET("/health/ready", h.Readiness)
}

// Health returns the full health summary with per-operation metrics
func (h *Handler) Health(c *gin.Context) {
	summary := h.executor.GetHealthSummary()
	metrics := h.executor.GetMetrics()

	status := StatusHealthy
	code := http.StatusOK
	if !summary.Healthy {
		status = StatusUnhealthy
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, Response{
		Status:    status,
		Timestamp: time.Now(),
		Summary:   summary,
		Metrics:   &metrics,
	})
}

// Liveness reports whether the process is alive. It never inspects dependency
// health: an open circuit must not get the process restarted.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness reports whether the service should receive traffic: not ready
// while any circuit is open
func (h *Handler) Readiness(c *gin.Context) {
	summary := h.executor.GetHealthSummary()

	if !summary.Healthy {
		h.logger.Warn("Readiness check failed",
			"open_circuits", summary.OpenCircuits,
		)
		c.JSON(http.StatusServiceUnavailable, Response{
			Status:    StatusUnhealthy,
			Timestamp: time.Now(),
			Summary:   summary,
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Summary:   summary,
	})
}
