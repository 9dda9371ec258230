package scheduler

import (
	"sync/atomic"

	"github.com/seoshield/seo-shield-proxy/internal/observability"
)

// QueueMetrics is a point-in-time read of the Scheduler's counters.
type QueueMetrics struct {
	Queued         int64
	Processing     int64
	Completed      int64
	Errors         int64
	MaxConcurrency int
}

// counters holds the live atomics backing QueueMetrics. All mutation
// goes through saturating helpers so a scheduler bug can never drive a
// counter negative.
type counters struct {
	queued     int64
	processing int64
	completed  int64
	errors     int64
}

func (c *counters) incQueued() {
	atomic.AddInt64(&c.queued, 1)
	observability.RenderQueueDepth.Inc()
}
func (c *counters) decQueued() {
	atomicDecr(&c.queued)
	observability.RenderQueueDepth.Dec()
}
func (c *counters) incProcessing() {
	atomic.AddInt64(&c.processing, 1)
	observability.RenderProcessing.Inc()
}
func (c *counters) decProcessing() {
	atomicDecr(&c.processing)
	observability.RenderProcessing.Dec()
}
func (c *counters) incCompleted() { atomic.AddInt64(&c.completed, 1) }
func (c *counters) incErrors()    { atomic.AddInt64(&c.errors, 1) }

func (c *counters) snapshot(maxConcurrency int) QueueMetrics {
	return QueueMetrics{
		Queued:         atomic.LoadInt64(&c.queued),
		Processing:     atomic.LoadInt64(&c.processing),
		Completed:      atomic.LoadInt64(&c.completed),
		Errors:         atomic.LoadInt64(&c.errors),
		MaxConcurrency: maxConcurrency,
	}
}

// atomicDecr decrements ptr but never below zero, so a decrement that
// races past a concurrent reset can't drive a gauge briefly negative.
func atomicDecr(ptr *int64) {
	for {
		v := atomic.LoadInt64(ptr)
		if v <= 0 {
			return
		}
		if atomic.CompareAndSwapInt64(ptr, v, v-1) {
			return
		}
	}
}
