package resilience

import (
	"context"
	"sync"

	"github.com/documind/documind/pkg/logging"
)

// DefaultDegradedThreshold is the degradation-rate percentage above which the
// system is considered degraded
const DefaultDegradedThreshold = 50.0

// DegradationStrategy pairs a primary operation with a fallback. It is a
// stateless value built per call site; the executing GracefulDegradation owns
// the metrics.
type DegradationStrategy struct {
	// Primary is the preferred operation
	Primary Operation
	// Fallback is the cheaper or safer substitute
	Fallback Operation
	// ShouldDegrade, when set, is consulted before the primary runs. If it
	// returns true the primary is skipped entirely.
	ShouldDegrade func() bool
	// FallbackOnFailure runs the fallback reactively when the primary fails
	FallbackOnFailure bool
	// OnDegradation is called when a proactive degradation is activated
	OnDegradation func()
	// OnFallback is called with the primary's error before a reactive fallback
	OnFallback func(err error)
}

// DegradationMetrics is a point-in-time snapshot of degradation activity
type DegradationMetrics struct {
	TotalOperations         int64   `json:"total_operations"`
	PrimarySuccesses        int64   `json:"primary_successes"`
	PrimaryFailures         int64   `json:"primary_failures"`
	FallbackUsed            int64   `json:"fallback_used"`
	DegradedModeActivations int64   `json:"degraded_mode_activations"`
	DegradationRate         float64 `json:"degradation_rate"`
}

// GracefulDegradation executes primary/fallback strategies and tracks how
// often the system falls back
type GracefulDegradation struct {
	mutex                   sync.Mutex
	totalOperations         int64
	primarySuccesses        int64
	primaryFailures         int64
	fallbackUsed            int64
	degradedModeActivations int64

	logger *logging.Logger
}

// NewGracefulDegradation creates a new degradation executor
func NewGracefulDegradation() *GracefulDegradation {
	return &GracefulDegradation{
		logger: logging.GetLogger(),
	}
}

// Execute runs the strategy. When ShouldDegrade reports true the primary is
// never invoked and the fallback's result is returned. Otherwise the primary
// runs; on failure the fallback is used if FallbackOnFailure is set, else the
// primary's error is returned unchanged.
func (g *GracefulDegradation) Execute(ctx context.Context, strategy DegradationStrategy) (interface{}, error) {
	g.mutex.Lock()
	g.totalOperations++
	g.mutex.Unlock()

	if strategy.ShouldDegrade != nil && strategy.ShouldDegrade() {
		g.mutex.Lock()
		g.degradedModeActivations++
		g.fallbackUsed++
		g.mutex.Unlock()

		if strategy.OnDegradation != nil {
			strategy.OnDegradation()
		}

		g.logger.Debug("Proactive degradation activated, skipping primary")
		return runProtected(ctx, strategy.Fallback, "fallback")
	}

	result, err := runProtected(ctx, strategy.Primary, "primary")
	if err == nil {
		g.mutex.Lock()
		g.primarySuccesses++
		g.mutex.Unlock()
		return result, nil
	}

	g.mutex.Lock()
	g.primaryFailures++
	g.mutex.Unlock()

	if !strategy.FallbackOnFailure || strategy.Fallback == nil {
		return nil, err
	}

	g.mutex.Lock()
	g.fallbackUsed++
	g.mutex.Unlock()

	if strategy.OnFallback != nil {
		strategy.OnFallback(err)
	}

	g.logger.Warn("Primary operation failed, using fallback", "error", err.Error())
	return runProtected(ctx, strategy.Fallback, "fallback")
}

// GetMetrics returns a snapshot of degradation activity
func (g *GracefulDegradation) GetMetrics() DegradationMetrics {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	rate := 0.0
	if g.totalOperations > 0 {
		rate = 100 * float64(g.fallbackUsed) / float64(g.totalOperations)
	}

	return DegradationMetrics{
		TotalOperations:         g.totalOperations,
		PrimarySuccesses:        g.primarySuccesses,
		PrimaryFailures:         g.primaryFailures,
		FallbackUsed:            g.fallbackUsed,
		DegradedModeActivations: g.degradedModeActivations,
		DegradationRate:         rate,
	}
}

// IsDegraded reports whether the degradation rate has reached the given
// threshold percentage
func (g *GracefulDegradation) IsDegraded(thresholdPercent float64) bool {
	return g.GetMetrics().DegradationRate >= thresholdPercent
}

// ResetMetrics zeroes all degradation counters
func (g *GracefulDegradation) ResetMetrics() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.totalOperations = 0
	g.primarySuccesses = 0
	g.primaryFailures = 0
	g.fallbackUsed = 0
	g.degradedModeActivations = 0
}

// StrategyWithCircuitBreaker builds a strategy that degrades proactively while
// the given breaker is open and falls back reactively on primary failure
func StrategyWithCircuitBreaker(primary, fallback Operation, cb *CircuitBreaker) DegradationStrategy {
	return DegradationStrategy{
		Primary:           primary,
		Fallback:          fallback,
		ShouldDegrade:     cb.IsOpen,
		FallbackOnFailure: true,
	}
}

// StrategyWithPredicate builds a strategy that degrades proactively while the
// given predicate reports true
func StrategyWithPredicate(primary, fallback Operation, shouldDegrade func() bool) DegradationStrategy {
	return DegradationStrategy{
		Primary:           primary,
		Fallback:          fallback,
		ShouldDegrade:     shouldDegrade,
		FallbackOnFailure: true,
	}
}

// StrategyWithFallback builds a reactive-only strategy: the primary always
// runs first, the fallback covers its failures
func StrategyWithFallback(primary, fallback Operation) DegradationStrategy {
	return DegradationStrategy{
		Primary:           primary,
		Fallback:          fallback,
		FallbackOnFailure: true,
	}
}
