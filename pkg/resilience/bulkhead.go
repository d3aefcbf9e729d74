package resilience

import (
	"context"
	"fmt"
	"sync"

	"github.com/documind/documind/pkg/logging"
)

// BulkheadConfig holds configuration for a bulkhead
type BulkheadConfig struct {
	// Name of the bulkhead for logging/metrics
	Name string
	// MaxConcurrent is the number of operations allowed to run at once
	MaxConcurrent int
	// MaxQueue is the number of callers allowed to wait for a slot. Zero
	// means no queueing: a call finding all slots busy is rejected.
	MaxQueue int
}

// DefaultBulkheadConfig returns a bulkhead configuration tuned for external
// dependency calls
func DefaultBulkheadConfig(name string) BulkheadConfig {
	return BulkheadConfig{
		Name:          name,
		MaxConcurrent: 10,
		MaxQueue:      20,
	}
}

// BulkheadMetrics is a point-in-time snapshot of a bulkhead
type BulkheadMetrics struct {
	Active         int   `json:"active"`
	Queued         int   `json:"queued"`
	Rejections     int64 `json:"rejections"`
	TotalExecuted  int64 `json:"total_executed"`
	TotalSuccesses int64 `json:"total_successes"`
	TotalFailures  int64 `json:"total_failures"`
}

// Bulkhead isolates a dependency's resource usage behind a concurrency limit
// and a bounded strict-FIFO admission queue. Callers beyond the limit wait on
// the queue; callers beyond the queue are rejected immediately.
type Bulkhead struct {
	config BulkheadConfig

	mutex          sync.Mutex
	active         int
	waiters        []chan struct{}
	rejections     int64
	totalExecuted  int64
	totalSuccesses int64
	totalFailures  int64

	logger *logging.Logger
}

// NewBulkhead creates a new bulkhead, validating the configuration immediately
func NewBulkhead(config BulkheadConfig) (*Bulkhead, error) {
	if config.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("bulkhead '%s': maxConcurrent must be positive, got %d", config.Name, config.MaxConcurrent)
	}
	if config.MaxQueue < 0 {
		return nil, fmt.Errorf("bulkhead '%s': maxQueue must be non-negative, got %d", config.Name, config.MaxQueue)
	}

	return &Bulkhead{
		config: config,
		logger: logging.GetLogger(),
	}, nil
}

// Execute runs op within the bulkhead. A call that cannot get a slot or a
// queue position fails immediately with a BulkheadRejectionError and op is
// never invoked. A queued caller is woken in strict FIFO order and takes the
// freed slot directly.
func (b *Bulkhead) Execute(ctx context.Context, op Operation) (interface{}, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}

	result, err := runProtected(ctx, op, b.config.Name)
	b.release(err == nil)
	return result, err
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	b.mutex.Lock()

	if b.active < b.config.MaxConcurrent {
		b.active++
		b.totalExecuted++
		b.mutex.Unlock()
		return nil
	}

	if len(b.waiters) >= b.config.MaxQueue {
		b.rejections++
		active, queued := b.active, len(b.waiters)
		b.mutex.Unlock()

		b.logger.Warn("Bulkhead rejected request",
			"name", b.config.Name,
			"active", active,
			"queued", queued,
		)
		return &BulkheadRejectionError{
			BulkheadName: b.config.Name,
			Message:      fmt.Sprintf("at capacity (%d active, %d queued)", active, queued),
			Active:       active,
			Queued:       queued,
		}
	}

	ready := make(chan struct{})
	b.waiters = append(b.waiters, ready)
	b.mutex.Unlock()

	select {
	case <-ready:
		// The releasing operation handed us its slot; active was never
		// decremented, so no renegotiation against the limit happens.
		b.mutex.Lock()
		b.totalExecuted++
		b.mutex.Unlock()
		return nil
	case <-ctx.Done():
		b.mutex.Lock()
		for i, w := range b.waiters {
			if w == ready {
				b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
				b.mutex.Unlock()
				return ctx.Err()
			}
		}
		b.mutex.Unlock()
		// Already dequeued: a slot was handed to us between the context
		// firing and this cleanup. Pass it on.
		<-ready
		b.releaseSlot()
		return ctx.Err()
	}
}

func (b *Bulkhead) release(success bool) {
	b.mutex.Lock()
	if success {
		b.totalSuccesses++
	} else {
		b.totalFailures++
	}
	b.mutex.Unlock()

	b.releaseSlot()
}

// releaseSlot frees one concurrency slot, waking the oldest waiter if any
func (b *Bulkhead) releaseSlot() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if len(b.waiters) > 0 {
		ready := b.waiters[0]
		b.waiters = b.waiters[1:]
		close(ready)
		return
	}
	b.active--
}

// IsAtCapacity reports whether all concurrency slots are occupied
func (b *Bulkhead) IsAtCapacity() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.active >= b.config.MaxConcurrent
}

// IsFull reports whether both the slots and the queue are exhausted
func (b *Bulkhead) IsFull() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.active >= b.config.MaxConcurrent && len(b.waiters) >= b.config.MaxQueue
}

// GetUtilization returns the slot utilization as a percentage
func (b *Bulkhead) GetUtilization() float64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return 100 * float64(b.active) / float64(b.config.MaxConcurrent)
}

// GetQueueUtilization returns the queue utilization as a percentage, or 0 for
// an unqueued bulkhead
func (b *Bulkhead) GetQueueUtilization() float64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.config.MaxQueue == 0 {
		return 0
	}
	return 100 * float64(len(b.waiters)) / float64(b.config.MaxQueue)
}

// GetMetrics returns a snapshot of the bulkhead's counters
func (b *Bulkhead) GetMetrics() BulkheadMetrics {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return BulkheadMetrics{
		Active:         b.active,
		Queued:         len(b.waiters),
		Rejections:     b.rejections,
		TotalExecuted:  b.totalExecuted,
		TotalSuccesses: b.totalSuccesses,
		TotalFailures:  b.totalFailures,
	}
}

// Name returns the name of the bulkhead
func (b *Bulkhead) Name() string {
	return b.config.Name
}

// Config returns a copy of the bulkhead's configuration
func (b *Bulkhead) Config() BulkheadConfig {
	return b.config
}
