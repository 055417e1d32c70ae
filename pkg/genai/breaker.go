package genai

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker stops calling a failing generator. After failures consecutive
// errors it rejects calls for cooldown, then lets a single probe through;
// the probe's outcome closes or reopens the circuit.
type Breaker struct {
	next     Generator
	failures int
	cooldown time.Duration
	now      func() time.Time

	mu          sync.Mutex
	state       breakerState
	consecutive int
	openedAt    time.Time
	probing     bool
}

// NewBreaker wraps next.
func NewBreaker(next Generator, failures int, cooldown time.Duration) *Breaker {
	if failures <= 0 {
		failures = 5
	}
	if cooldown <= 0 {
		cooldown = 2 * time.Minute
	}
	return &Breaker{next: next, failures: failures, cooldown: cooldown, now: time.Now}
}

func (b *Breaker) Generate(ctx context.Context, req Request) (string, error) {
	if err := b.before(); err != nil {
		return "", err
	}
	out, err := b.next.Generate(ctx, req)
	b.after(err)
	return out, err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = stateHalfOpen
		b.probing = true
		return nil
	case stateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A caller giving up says nothing about the provider.
	if errors.Is(err, context.Canceled) {
		if b.state == stateHalfOpen {
			b.probing = false
		}
		return
	}

	if err == nil {
		b.state = stateClosed
		b.consecutive = 0
		b.probing = false
		return
	}

	b.consecutive++
	if b.state == stateHalfOpen || b.consecutive >= b.failures {
		b.state = stateOpen
		b.openedAt = b.now()
		b.probing = false
	}
}
