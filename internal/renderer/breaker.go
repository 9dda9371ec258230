package renderer

import (
	"sync"
	"time"

	"github.com/seoshield/seo-shield-proxy/internal/observability"
)

// State is a CircuitBreaker's lifecycle state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes failure/recovery thresholds for the render
// circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           // failures before opening, default 5
	SuccessThreshold int           // successes in half-open before closing, default 2
	OpenTimeout      time.Duration // time before probing half-open, default 30s
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	return c
}

// CircuitBreaker trips after a run of render failures so the renderer
// stops attempting new navigations (the router downgrades straight to
// the transparent proxy) until a cooldown passes and a half-open probe
// succeeds.
type CircuitBreaker struct {
	mu sync.RWMutex

	cfg BreakerConfig

	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
}

// NewCircuitBreaker builds a breaker in the closed state.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg.withDefaults(), state: StateClosed}
}

// AllowRequest reports whether a new render attempt may proceed.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.RLock()
	state := cb.state
	lastFailure := cb.lastFailureTime
	cb.mu.RUnlock()

	switch state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(lastFailure) > cb.cfg.OpenTimeout {
			cb.transitionTo(StateHalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

// reportGauge reflects the current state onto the Prometheus gauge;
// only StateOpen counts as "open" for alerting purposes, since
// half-open already allows probe traffic through.
func (cb *CircuitBreaker) reportGauge(s State) {
	if s == StateOpen {
		observability.BreakerOpen.Set(1)
	} else {
		observability.BreakerOpen.Set(0)
	}
}

// RecordSuccess registers a successful render.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.failureCount = 0
			cb.successCount = 0
			cb.reportGauge(cb.state)
		}
	}
}

// RecordFailure registers a failed render.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.state = StateOpen
			cb.reportGauge(cb.state)
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.successCount = 0
		cb.reportGauge(cb.state)
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forces the breaker back to closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.reportGauge(cb.state)
}

func (cb *CircuitBreaker) transitionTo(s State) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = s
	cb.reportGauge(cb.state)
}
