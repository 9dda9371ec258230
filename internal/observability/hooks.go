package observability

import (
	"sync"
	"sync/atomic"
)

// Sink consumes events drained from a Hooks channel. Implementations
// live outside this package (audit persistence, a real-time stream,
// log lines); this package only owns the non-blocking handoff to them.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Handle(e Event) { f(e) }

// Hooks is the non-blocking event bus: Emit enqueues into a bounded
// channel and returns immediately; a
// background worker drains it to every configured sink. A full channel
// drops the oldest queued event rather than the new one, keeping the
// freshest signal and counting the loss.
type Hooks struct {
	ch      chan Event
	sinks   []Sink
	dropped int64

	mu     sync.Mutex
	once   sync.Once
	closed chan struct{}
	done   chan struct{}
}

// New builds a Hooks with the given channel capacity, draining to
// sinks. A capacity of 0 defaults to 1024.
func New(capacity int, sinks ...Sink) *Hooks {
	if capacity <= 0 {
		capacity = 1024
	}
	h := &Hooks{
		ch:     make(chan Event, capacity),
		sinks:  sinks,
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go h.drain()
	return h
}

// Emit never blocks the caller. When the channel is full, the oldest
// queued event is
// dropped to make room and Dropped() is incremented.
func (h *Hooks) Emit(e Event) {
	select {
	case h.ch <- e:
		return
	default:
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.ch:
		atomic.AddInt64(&h.dropped, 1)
		EventsDropped.Inc()
	default:
	}
	select {
	case h.ch <- e:
	default:
		atomic.AddInt64(&h.dropped, 1)
		EventsDropped.Inc()
	}
}

// Dropped reports how many events have been discarded under pressure.
func (h *Hooks) Dropped() int64 {
	return atomic.LoadInt64(&h.dropped)
}

func (h *Hooks) drain() {
	defer close(h.done)
	for {
		select {
		case e := <-h.ch:
			for _, s := range h.sinks {
				s.Handle(e)
			}
		case <-h.closed:
			// Drain whatever is left without blocking further.
			for {
				select {
				case e := <-h.ch:
					for _, s := range h.sinks {
						s.Handle(e)
					}
				default:
					return
				}
			}
		}
	}
}

// Close stops accepting new drains once the channel empties; in-flight
// Emit calls may still succeed but no more events are guaranteed to be
// processed after Close returns its done signal.
func (h *Hooks) Close() {
	h.once.Do(func() { close(h.closed) })
	<-h.done
}
