package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// BulkheadMetrics is a snapshot of bulkhead occupancy.
type BulkheadMetrics struct {
	// Current is the number of operations holding a slot right now.
	Current int
	// MaxConcurrent is the slot capacity.
	MaxConcurrent int
	// HighWater is the most slots ever held at once.
	HighWater int
	// Timeouts counts callers that gave up waiting for a slot.
	Timeouts int64
	Timeout  time.Duration
}

// Bulkhead caps how many operations run at once. A caller that cannot
// take a slot within the timeout fails with BulkheadTimeoutError
// instead of queueing without bound.
type Bulkhead struct {
	name    string
	max     int
	timeout time.Duration
	sem     *semaphore.Weighted

	mu        sync.Mutex
	current   int
	highWater int
	timeouts  int64
}

// NewBulkhead creates a bulkhead with maxConcurrent slots.
func NewBulkhead(name string, maxConcurrent int, timeout time.Duration) *Bulkhead {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Bulkhead{
		name:    name,
		max:     maxConcurrent,
		timeout: timeout,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Execute runs fn while holding a slot. The slot is released on every
// outcome: success, failure, or panic unwinding through fn.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return common.WrapError(common.ErrCancelled, "bulkhead acquire aborted")
		}
		b.mu.Lock()
		b.timeouts++
		b.mu.Unlock()
		common.LogWarn("Bulkhead %s: no slot within %s", b.name, b.timeout)
		return &common.BulkheadTimeoutError{Name: b.name, Timeout: b.timeout}
	}
	defer b.sem.Release(1)

	b.mu.Lock()
	b.current++
	if b.current > b.highWater {
		b.highWater = b.current
	}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.current--
		b.mu.Unlock()
	}()

	return fn()
}

// Metrics returns a snapshot of the occupancy counters.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BulkheadMetrics{
		Current:       b.current,
		MaxConcurrent: b.max,
		HighWater:     b.highWater,
		Timeouts:      b.timeouts,
		Timeout:       b.timeout,
	}
}
