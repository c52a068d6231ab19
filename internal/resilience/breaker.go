package resilience

import (
	"sync"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitState is a point-in-time copy of a breaker's bookkeeping.
type CircuitState struct {
	State         State
	FailureCount  int
	LastFailureAt time.Time
	OpenedUntil   time.Time
}

// Breaker guards one downstream target. It is safe for concurrent use.
//
// CLOSED lets calls through and counts consecutive failures. Reaching the
// threshold opens the circuit until the cooldown elapses; the first caller
// after that gets the single HALF_OPEN trial. A successful trial closes the
// circuit, a failed one reopens it with a fresh cooldown.
//
// Every transition starts a new generation. Verdicts carry the generation
// their permit was issued in and are ignored once it has passed, so a slow
// call admitted while CLOSED cannot settle a later trial.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	onChange  func(name string, from, to State)

	mu            sync.Mutex
	state         State
	generation    uint64
	failureCount  int
	lastFailureAt time.Time
	openedUntil   time.Time
	trialInFlight bool
}

// Permit is the admission of one call, returned by Acquire.
type Permit struct {
	generation uint64
}

type BreakerOption func(*Breaker)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

// WithStateListener is called after every state transition, outside the lock.
func WithStateListener(fn func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) { b.onChange = fn }
}

func NewBreaker(name string, threshold int, cooldown time.Duration, opts ...BreakerOption) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	b := &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

// Acquire asks permission for one call. Every admitted permit must be
// settled with exactly one of Success, Failure or Release.
func (b *Breaker) Acquire() (Permit, error) {
	if b == nil {
		return Permit{}, nil
	}

	b.mu.Lock()
	from := b.state
	var err error

	switch b.state {
	case StateClosed:
	case StateOpen:
		if b.now().Before(b.openedUntil) {
			err = ErrCircuitOpen
			break
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
	case StateHalfOpen:
		if b.trialInFlight {
			err = ErrCircuitOpen
			break
		}
		b.trialInFlight = true
	}

	permit := Permit{generation: b.generation}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return permit, err
}

// Success records a call that produced a usable answer.
func (b *Breaker) Success(p Permit) {
	if b == nil {
		return
	}

	b.mu.Lock()
	from := b.state
	if p.generation == b.generation {
		switch b.state {
		case StateClosed:
			b.failureCount = 0
		case StateHalfOpen:
			b.transition(StateClosed)
			b.failureCount = 0
			b.openedUntil = time.Time{}
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// Failure records a failed call.
func (b *Breaker) Failure(p Permit) {
	if b == nil {
		return
	}

	b.mu.Lock()
	from := b.state
	if p.generation == b.generation {
		now := b.now()
		b.lastFailureAt = now
		b.failureCount++

		switch b.state {
		case StateClosed:
			if b.failureCount >= b.threshold {
				b.open(now)
			}
		case StateHalfOpen:
			b.open(now)
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// Release returns a permit whose call ended without a verdict, e.g. because
// the caller went away. A pending HALF_OPEN trial becomes available again.
func (b *Breaker) Release(p Permit) {
	if b == nil {
		return
	}

	b.mu.Lock()
	if p.generation == b.generation && b.state == StateHalfOpen {
		b.trialInFlight = false
	}
	b.mu.Unlock()
}

// Snapshot returns a copy of the current bookkeeping.
func (b *Breaker) Snapshot() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return CircuitState{
		State:         b.state,
		FailureCount:  b.failureCount,
		LastFailureAt: b.lastFailureAt,
		OpenedUntil:   b.openedUntil,
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	b.state = to
	b.generation++
	b.trialInFlight = false
}

// open must be called with mu held.
func (b *Breaker) open(now time.Time) {
	b.transition(StateOpen)
	b.openedUntil = now.Add(b.cooldown)
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}
