// Package scheduler runs a bounded-concurrency pool of headless-render
// jobs with per-fingerprint single-flight fan-in, first-come-first-served
// queue fairness within each priority class, and deadline propagation.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/seoshield/seo-shield-proxy/internal/renderer"
)

// Priority is a render job's priority class.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// ErrClosed is returned by Render once the scheduler has been told to
// shut down and is refusing new admissions.
var ErrClosed = errors.New("scheduler: closed")

// ErrDeadlineExceeded is fanned out to every subscriber of a job whose
// navigation deadline expires.
var ErrDeadlineExceeded = errors.New("scheduler: render deadline exceeded")

// RenderFunc performs one actual render. The scheduler calls it with a
// context bound to the configured render timeout, independent of any
// individual HTTP request's context, so that a client disconnect never
// cancels a render other subscribers are waiting on.
type RenderFunc func(ctx context.Context, targetURL string) (renderer.Result, error)

// Config configures a Scheduler's concurrency and deadline behavior.
type Config struct {
	MaxConcurrency int
	Timeout        time.Duration
}

// job is one queued render, ordered by priority then by enqueue order.
type job struct {
	fingerprint string
	targetURL   string
	priority    Priority
	seq         int64
	done        chan jobOutcome
}

type jobOutcome struct {
	result renderer.Result
	err    error
}

// jobQueue is a container/heap.Interface ordering jobs by priority
// (high first), then by enqueue order (FIFO) within a priority class.
type jobQueue []*job

func (q jobQueue) Len() int { return len(q) }
func (q jobQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q jobQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *jobQueue) Push(x any)   { *q = append(*q, x.(*job)) }
func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Scheduler owns its jobs and queue metrics exclusively; other
// components hold references only.
type Scheduler struct {
	renderFn RenderFunc
	timeout  time.Duration
	sem      chan struct{}

	group singleflight.Group

	qmu    sync.Mutex
	qcond  *sync.Cond
	queue  jobQueue
	seq    int64
	closed bool

	counters counters
	maxConc  int

	wg sync.WaitGroup
}

// New builds a Scheduler bounded at cfg.MaxConcurrency concurrent
// renders (default 5) with a per-job deadline of cfg.Timeout (default
// 30s), and starts its dispatch loop.
func New(cfg Config, renderFn RenderFunc) *Scheduler {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &Scheduler{
		renderFn: renderFn,
		timeout:  cfg.Timeout,
		sem:      make(chan struct{}, cfg.MaxConcurrency),
		maxConc:  cfg.MaxConcurrency,
	}
	s.qcond = sync.NewCond(&s.qmu)
	s.wg.Add(1)
	go s.dispatchLoop()
	return s
}

// Render collapses concurrent calls sharing a fingerprint into a
// single enqueued job via singleflight: the
// first caller's goroutine runs the wait-for-result loop and every
// later caller blocks on the same call, then all observe the same
// outcome.
func (s *Scheduler) Render(fingerprint, targetURL string, priority Priority) (renderer.Result, error) {
	v, err, _ := s.group.Do(fingerprint, func() (any, error) {
		s.qmu.Lock()
		if s.closed {
			s.qmu.Unlock()
			return renderer.Result{}, ErrClosed
		}
		s.seq++
		j := &job{
			fingerprint: fingerprint,
			targetURL:   targetURL,
			priority:    priority,
			seq:         s.seq,
			done:        make(chan jobOutcome, 1),
		}
		heap.Push(&s.queue, j)
		s.counters.incQueued()
		s.qcond.Signal()
		s.qmu.Unlock()

		outcome := <-j.done
		return outcome.result, outcome.err
	})
	if err != nil {
		return renderer.Result{}, err
	}
	return v.(renderer.Result), nil
}

// dispatchLoop pops the highest-priority, oldest-enqueued job, then
// blocks on the concurrency semaphore before running it, bounding
// `processing` at MaxConcurrency at all times.
func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()
	for {
		s.qmu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.qcond.Wait()
		}
		if s.closed && len(s.queue) == 0 {
			s.qmu.Unlock()
			return
		}
		j := heap.Pop(&s.queue).(*job)
		s.qmu.Unlock()

		s.sem <- struct{}{}
		s.counters.decQueued()
		s.counters.incProcessing()

		s.wg.Add(1)
		go s.run(j)
	}
}

func (s *Scheduler) run(j *job) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.renderFn(ctx, j.targetURL)
	<-s.sem
	s.counters.decProcessing()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = ErrDeadlineExceeded
		}
		s.counters.incErrors()
	} else {
		s.counters.incCompleted()
	}
	j.done <- jobOutcome{result: result, err: err}
}

// Metrics returns a point-in-time snapshot of the Queue Metrics.
func (s *Scheduler) Metrics() QueueMetrics {
	return s.counters.snapshot(s.maxConc)
}

// Close stops admitting new jobs and waits for in-flight jobs (and any
// already-queued ones) to finish. Tearing down the browser pool itself
// is the caller's responsibility (it owns the Renderer, not the
// Scheduler).
func (s *Scheduler) Close() {
	s.qmu.Lock()
	s.closed = true
	s.qcond.Broadcast()
	s.qmu.Unlock()

	s.wg.Wait()
}

