package linkhealth

import (
	"sync"
	"time"
)

// BreakerState is the state of a host breaker.
type BreakerState int

const (
	// BreakerClosed lets probes through and counts consecutive failures.
	BreakerClosed BreakerState = iota
	// BreakerOpen short-circuits probes to the host.
	BreakerOpen
	// BreakerHalfOpen lets probes through after the cooldown; one failure
	// reopens the breaker.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// hostBreaker tracks consecutive probe failures per host so a host that is
// down is not probed once per link. It is safe for concurrent use.
type hostBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	hosts     map[string]*hostState
}

type hostState struct {
	state    BreakerState
	failures int
	openedAt time.Time
}

func newHostBreaker(threshold int, cooldown time.Duration, now func() time.Time) *hostBreaker {
	if threshold < 1 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &hostBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       now,
		hosts:     make(map[string]*hostState),
	}
}

// Allow reports whether a probe to host may go out.
func (b *hostBreaker) Allow(host string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	hs, ok := b.hosts[host]
	if !ok || hs.state != BreakerOpen {
		return true
	}
	if b.now().Sub(hs.openedAt) > b.cooldown {
		hs.state = BreakerHalfOpen
		return true
	}
	return false
}

// RecordSuccess closes the breaker for host.
func (b *hostBreaker) RecordSuccess(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.hosts, host)
}

// RecordFailure counts a failure and opens the breaker at the threshold.
func (b *hostBreaker) RecordFailure(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hs, ok := b.hosts[host]
	if !ok {
		hs = &hostState{}
		b.hosts[host] = hs
	}
	hs.failures++
	if hs.state == BreakerHalfOpen || hs.failures >= b.threshold {
		hs.state = BreakerOpen
		hs.openedAt = b.now()
	}
}

// State returns the breaker state for host.
func (b *hostBreaker) State(host string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	hs, ok := b.hosts[host]
	if !ok {
		return BreakerClosed
	}
	if hs.state == BreakerOpen && b.now().Sub(hs.openedAt) > b.cooldown {
		return BreakerHalfOpen
	}
	return hs.state
}
