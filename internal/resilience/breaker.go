package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrOpen is returned by Breaker.Allow while the breaker rejects calls.
var ErrOpen = eris.New("circuit breaker is open")

// State is the breaker position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker stops calling a failing dependency after Threshold consecutive
// failures and lets a single trial call through once Cooldown has elapsed.
type Breaker struct {
	Threshold int
	Cooldown  time.Duration

	// ShouldTrip reports whether an error counts as a failure. Errors it
	// rejects are recorded as successes. If nil, every non-nil error trips.
	ShouldTrip func(err error) bool

	mu       sync.Mutex
	state    State
	failures int
	trial    bool
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker returns a closed breaker.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{Threshold: threshold, Cooldown: cooldown, now: time.Now}
}

// Allow returns ErrOpen if the call should be skipped. Every allowed call
// must be followed by exactly one Record.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.Cooldown {
			return ErrOpen
		}
		b.state = HalfOpen
		b.trial = true
		return nil
	case HalfOpen:
		if b.trial {
			return ErrOpen
		}
		b.trial = true
		return nil
	default:
		return nil
	}
}

// Record feeds the outcome of an allowed call back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trial = false
	if !b.trips(err) {
		b.state = Closed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == HalfOpen || b.failures >= b.Threshold {
		b.state = Open
		b.openedAt = b.now()
	}
}

func (b *Breaker) trips(err error) bool {
	if err == nil {
		return false
	}
	if b.ShouldTrip == nil {
		return true
	}
	return b.ShouldTrip(err)
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
