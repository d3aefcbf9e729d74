// Package metrics exports the resilience layer's live counters as Prometheus
// metrics. The collector reads executor snapshots at scrape time, so the
// metrics are never stored separately from the live counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/documind/documind/pkg/resilience"
)

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "documind",
		Enabled:   true,
	}
}

// Collector exposes a ResilientExecutor's breaker and bulkhead metrics as
// Prometheus metrics. Register it with a prometheus.Registerer.
type Collector struct {
	executor *resilience.ResilientExecutor

	circuitState        *prometheus.Desc
	circuitFailures     *prometheus.Desc
	circuitRejections   *prometheus.Desc
	circuitRequests     *prometheus.Desc
	circuitSuccesses    *prometheus.Desc
	circuitFailureTotal *prometheus.Desc

	bulkheadActive     *prometheus.Desc
	bulkheadQueued     *prometheus.Desc
	bulkheadRejections *prometheus.Desc
	bulkheadExecuted   *prometheus.Desc
	bulkheadSuccesses  *prometheus.Desc
	bulkheadFailures   *prometheus.Desc
}

// NewCollector creates a collector over the given executor
func NewCollector(executor *resilience.ResilientExecutor, config *Config) *Collector {
	if config == nil {
		config = DefaultConfig()
	}
	ns := config.Namespace
	labels := []string{"operation"}

	return &Collector{
		executor: executor,
		circuitState: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "circuit_breaker", "state"),
			"Circuit breaker state (0=closed, 1=open, 2=half-open)",
			labels, nil,
		),
		circuitFailures: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "circuit_breaker", "consecutive_failures"),
			"Consecutive failures observed while closed",
			labels, nil,
		),
		circuitRejections: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "circuit_breaker", "rejections_total"),
			"Calls rejected because the circuit was open",
			labels, nil,
		),
		circuitRequests: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "circuit_breaker", "requests_total"),
			"Total calls seen by the circuit breaker",
			labels, nil,
		),
		circuitSuccesses: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "circuit_breaker", "successes_total"),
			"Total successful operations",
			labels, nil,
		),
		circuitFailureTotal: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "circuit_breaker", "failures_total"),
			"Total failed operations",
			labels, nil,
		),
		bulkheadActive: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "bulkhead", "active"),
			"Operations currently holding a bulkhead slot",
			labels, nil,
		),
		bulkheadQueued: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "bulkhead", "queued"),
			"Callers currently waiting in the bulkhead queue",
			labels, nil,
		),
		bulkheadRejections: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "bulkhead", "rejections_total"),
			"Calls rejected because slots and queue were exhausted",
			labels, nil,
		),
		bulkheadExecuted: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "bulkhead", "executed_total"),
			"Operations admitted by the bulkhead",
			labels, nil,
		),
		bulkheadSuccesses: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "bulkhead", "successes_total"),
			"Admitted operations that succeeded",
			labels, nil,
		),
		bulkheadFailures: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "bulkhead", "failures_total"),
			"Admitted operations that failed",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.circuitState
	ch <- c.circuitFailures
	ch <- c.circuitRejections
	ch <- c.circuitRequests
	ch <- c.circuitSuccesses
	ch <- c.circuitFailureTotal
	ch <- c.bulkheadActive
	ch <- c.bulkheadQueued
	ch <- c.bulkheadRejections
	ch <- c.bulkheadExecuted
	ch <- c.bulkheadSuccesses
	ch <- c.bulkheadFailures
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.executor.GetMetrics()

	for name, m := range snapshot.CircuitBreakers {
		ch <- prometheus.MustNewConstMetric(c.circuitState, prometheus.GaugeValue, stateValue(m.State), name)
		ch <- prometheus.MustNewConstMetric(c.circuitFailures, prometheus.GaugeValue, float64(m.ConsecutiveFailures), name)
		ch <- prometheus.MustNewConstMetric(c.circuitRejections, prometheus.CounterValue, float64(m.Rejections), name)
		ch <- prometheus.MustNewConstMetric(c.circuitRequests, prometheus.CounterValue, float64(m.TotalRequests), name)
		ch <- prometheus.MustNewConstMetric(c.circuitSuccesses, prometheus.CounterValue, float64(m.TotalSuccesses), name)
		ch <- prometheus.MustNewConstMetric(c.circuitFailureTotal, prometheus.CounterValue, float64(m.TotalFailures), name)
	}

	for name, m := range snapshot.Bulkheads {
		ch <- prometheus.MustNewConstMetric(c.bulkheadActive, prometheus.GaugeValue, float64(m.Active), name)
		ch <- prometheus.MustNewConstMetric(c.bulkheadQueued, prometheus.GaugeValue, float64(m.Queued), name)
		ch <- prometheus.MustNewConstMetric(c.bulkheadRejections, prometheus.CounterValue, float64(m.Rejections), name)
		ch <- prometheus.MustNewConstMetric(c.bulkheadExecuted, prometheus.CounterValue, float64(m.TotalExecuted), name)
		ch <- prometheus.MustNewConstMetric(c.bulkheadSuccesses, prometheus.CounterValue, float64(m.TotalSuccesses), name)
		ch <- prometheus.MustNewConstMetric(c.bulkheadFailures, prometheus.CounterValue, float64(m.TotalFailures), name)
	}
}

func stateValue(state resilience.CircuitState) float64 {
	switch state {
	case resilience.StateOpen:
		return 1
	case resilience.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
