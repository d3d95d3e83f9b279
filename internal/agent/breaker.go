package agent

import (
	"sync"
	"time"
)

// Circuit breaker defaults.
const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 60 * time.Second
)

// CircuitBreaker fails fast once the downstream LLM dependency looks
// unhealthy. It is dependency-scoped, not request-scoped: one breaker per
// agent instance, deliberately shared across concurrent requests so that
// failures from unrelated requests jointly protect the shared provider.
//
// The reset policy is half-open and caller-driven: an open breaker closes
// again only when CanExecute is called after ResetTimeout has elapsed since
// the last failure. There is no background timer.
type CircuitBreaker struct {
	threshold    int
	resetTimeout time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	open        bool

	now func() time.Time // injectable for tests
}

// NewCircuitBreaker creates a breaker. Non-positive threshold or timeout
// fall back to the defaults.
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// RecordFailure counts one downstream failure and opens the breaker once
// the threshold is reached.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	if b.failures >= b.threshold {
		b.open = true
	}
}

// CanExecute reports whether a call may proceed. When the breaker is open
// and the reset timeout has elapsed since the last failure, it optimistically
// closes the breaker (failure count resets to zero) and permits the call.
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.now().Sub(b.lastFailure) > b.resetTimeout {
		b.failures = 0
		b.open = false
		return true
	}
	return false
}

// Reset forcibly clears all failure state.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.lastFailure = time.Time{}
	b.open = false
}

// Open reports whether the breaker is currently open.
func (b *CircuitBreaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
