// Package circuitbreaker protects compute-backend calls from piling up
// against a service that is already failing.
package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
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

// Config tunes the failure/success thresholds and the open-state timeout.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// DefaultConfig is a reasonable default for a remote compute backend.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
	}
}

// Breaker is a single circuit breaker instance, safe for concurrent use.
type Breaker struct {
	mu     sync.Mutex
	config Config
	state  State

	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
}

func New(config Config) *Breaker {
	return &Breaker{config: config, state: Closed}
}

// Execute runs fn if the circuit allows it, and records the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn(ctx)
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return nil
	case Open:
		if time.Since(b.openedAt) >= b.config.Timeout {
			b.state = HalfOpen
			b.consecutiveSuccesses = 0
			return nil
		}
		return &OpenError{OpenedAt: b.openedAt, Timeout: b.config.Timeout}
	default:
		return fmt.Errorf("circuit breaker: unknown state")
	}
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.consecutiveFailures++
		b.consecutiveSuccesses = 0
		if b.state == HalfOpen || b.consecutiveFailures >= b.config.FailureThreshold {
			b.state = Open
			b.openedAt = time.Now()
		}
		return
	}

	b.consecutiveSuccesses++
	b.consecutiveFailures = 0
	if b.state == HalfOpen && b.consecutiveSuccesses >= b.config.SuccessThreshold {
		b.state = Closed
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to Closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
}

// OpenError is returned by Execute while the circuit is open.
type OpenError struct {
	OpenedAt time.Time
	Timeout  time.Duration
}

func (e *OpenError) Error() string {
	remaining := e.Timeout - time.Since(e.OpenedAt)
	return fmt.Sprintf("circuit breaker open, retry in %v", remaining)
}

// Registry hands out one breaker per key (e.g. per compute operation),
// creating it lazily.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	config   Config
}

func NewRegistry(config Config) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), config: config}
}

func (r *Registry) Get(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b := New(r.config)
	r.breakers[key] = b
	return b
}
