// Package resilience guards dispatches to overloaded upstreams: a retry
// policy with exponential backoff and jitter, an error classifier, and
// a two-tier circuit breaker (one general breaker for any upstream
// failure, one provider breaker for LLM overload signatures).
package resilience

import (
	"sync"
	"time"
)

// BreakerState is the circuit state. There is no half-open probe state:
// an open breaker stays open for the full cooldown and then resets
// unconditionally, accepting one speculative failure after reset in
// exchange for simplicity.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
)

func (s BreakerState) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Breaker is a single two-state circuit breaker. Safe for concurrent use.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu           sync.Mutex
	state        BreakerState
	failureCount int
	openedAt     time.Time
}

// NewBreaker creates a closed breaker that opens after threshold
// consecutive counted failures and stays open for cooldown.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a dispatch may proceed. An open breaker whose
// cooldown has elapsed resets to closed with a zeroed failure count
// before answering. When blocked, retryAfter is the remaining cooldown.
func (b *Breaker) Allow() (allowed bool, retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		return true, 0
	}

	elapsed := b.now().Sub(b.openedAt)
	if elapsed >= b.cooldown {
		b.state = StateClosed
		b.failureCount = 0
		b.openedAt = time.Time{}
		return true, 0
	}
	return false, b.cooldown - elapsed
}

// RecordFailure counts one failure and reports whether this call
// transitioned the breaker to open.
func (b *Breaker) RecordFailure() (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		return false
	}

	b.failureCount++
	if b.failureCount >= b.threshold {
		b.state = StateOpen
		b.openedAt = b.now()
		return true
	}
	return false
}

// RecordSuccess resets the failure count. Success is evidence the
// upstream has recovered.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
}

// State returns the current state without triggering a cooldown reset.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the current counted failures.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
