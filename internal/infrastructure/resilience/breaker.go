package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests while circuit is half-open")
)

// State is the position of a Breaker.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker. Zero values select the defaults noted on
// each field.
type Settings struct {
	// MaxRequests is both the number of trial requests admitted while
	// half-open and the successes needed to close again. Default 1.
	MaxRequests uint32
	// Interval is how long a closed breaker accumulates counts before
	// starting over. Default one minute.
	Interval time.Duration
	// Timeout is how long the breaker stays open. Default one minute.
	Timeout time.Duration
	// ReadyToTrip decides, after each failure while closed, whether to
	// open. Default: more than five failures in a row.
	ReadyToTrip func(counts Counts) bool
	// IsFailure decides whether an error returned by a request counts
	// against the service. Errors the caller caused, such as a 404, should
	// not open the circuit. Default err != nil.
	IsFailure func(err error) bool
	// OnStateChange is called, with the breaker locked, on every
	// transition.
	OnStateChange func(name string, from State, to State)
	// Clock returns the current time. Default time.Now.
	Clock func() time.Time
}

func (s *Settings) applyDefaults() {
	if s.MaxRequests == 0 {
		s.MaxRequests = 1
	}
	if s.Interval <= 0 {
		s.Interval = time.Minute
	}
	if s.Timeout <= 0 {
		s.Timeout = time.Minute
	}
	if s.ReadyToTrip == nil {
		s.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}
	if s.IsFailure == nil {
		s.IsFailure = func(err error) bool {
			return err != nil
		}
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
}

// Counts are the outcomes recorded in the current generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Breaker stops calling a service that keeps failing.
//
// Every transition, and every expiry of the closed interval, starts a new
// generation with fresh counts. A request that finishes in a later
// generation than it was admitted in is not counted.
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	// expiry ends the closed interval or the open timeout. It is zero
	// while half-open.
	expiry time.Time
}

// New creates a closed breaker.
func New(name string, settings Settings) *Breaker {
	settings.applyDefaults()
	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
		expiry:   settings.Clock().Add(settings.Interval),
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, applying any transition that is due.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.settings.Clock())
	return b.state
}

// Counts returns the counts of the current generation.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.settings.Clock())
	return b.counts
}

// Execute runs req if the circuit breaker accepts it. A rejected request
// returns an error wrapping ErrCircuitOpen or ErrTooManyRequests. A panic
// in req counts as a failure and is re-raised.
func (b *Breaker) Execute(req func() error) error {
	generation, err := b.admit()
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}

	failed := true
	defer func() {
		b.record(generation, failed)
	}()

	err = req()
	failed = b.settings.IsFailure(err)
	return err
}

// admit counts a new request against the current generation, or refuses
// it.
func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.settings.Clock())
	switch {
	case b.state == StateOpen:
		return 0, ErrCircuitOpen
	case b.state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests:
		return 0, ErrTooManyRequests
	}

	b.counts.Requests++
	return b.generation, nil
}

// record applies the outcome of a request admitted in generation.
func (b *Breaker) record(generation uint64, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Clock()
	b.advance(now)
	if generation != b.generation {
		return
	}

	if !failed {
		b.counts.success()
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.failure()
	switch b.state {
	case StateClosed:
		if b.settings.ReadyToTrip(b.counts) {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.transition(StateOpen, now)
	}
}

// advance applies the time based transitions: a closed interval that has
// run out starts a new generation, and an open timeout that has run out
// moves to half-open.
func (b *Breaker) advance(now time.Time) {
	if b.expiry.IsZero() || now.Before(b.expiry) {
		return
	}

	switch b.state {
	case StateClosed:
		b.newGeneration()
		b.expiry = now.Add(b.settings.Interval)
	case StateOpen:
		b.transition(StateHalfOpen, now)
	}
}

func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to
	b.newGeneration()

	switch to {
	case StateClosed:
		b.expiry = now.Add(b.settings.Interval)
	case StateOpen:
		b.expiry = now.Add(b.settings.Timeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) newGeneration() {
	b.generation++
	b.counts = Counts{}
}
