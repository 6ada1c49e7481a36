// Package resilience classifies API failures and provides bounded retries and
// a circuit breaker for the people-search client.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the position of a Breaker.
type BreakerState int

const (
	// Closed lets every call through.
	Closed BreakerState = iota
	// Open rejects calls until the cooldown elapses.
	Open
	// HalfOpen lets probe calls through to test recovery.
	HalfOpen
)

func (s BreakerState) String() string {
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

// ErrOpen is returned for calls rejected by an open breaker.
var ErrOpen = eris.New("resilience: circuit open")

// BreakerConfig tunes a Breaker.
type BreakerConfig struct {
	Threshold int           // consecutive counted failures that open the breaker
	Cooldown  time.Duration // time spent open before probing
	Probes    int           // successful probes needed to close again

	// Counts decides whether a failure counts toward Threshold. Defaults to
	// transient failures only.
	Counts func(err error) bool
	// OnChange observes state transitions.
	OnChange func(from, to BreakerState)
}

// DefaultBreakerConfig opens after 5 failures and probes after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 5, Cooldown: 30 * time.Second, Probes: 1}
}

// Breaker is a consecutive-failure circuit breaker. It is safe for concurrent use.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probesOK int
}

// NewBreaker creates a closed Breaker, filling unset fields from the defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	d := DefaultBreakerConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = d.Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = d.Cooldown
	}
	if cfg.Probes <= 0 {
		cfg.Probes = d.Probes
	}
	if cfg.Counts == nil {
		cfg.Counts = func(err error) bool { return Classify(err) == Transient }
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// State reports the current state, treating an open breaker whose cooldown has
// elapsed as half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.cooled() {
		return HalfOpen
	}
	return b.state
}

// Allow reports whether a call may proceed, moving Open to HalfOpen once the
// cooldown has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open {
		return nil
	}
	if !b.cooled() {
		return ErrOpen
	}
	b.setState(HalfOpen)
	return nil
}

// Record feeds a call outcome into the breaker. Errors that Counts rejects
// are treated as successes.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !b.cfg.Counts(err) {
		switch b.state {
		case Closed:
			b.failures = 0
		case HalfOpen:
			b.probesOK++
			if b.probesOK >= b.cfg.Probes {
				b.failures, b.probesOK = 0, 0
				b.setState(Closed)
			}
		}
		return
	}

	b.failures++
	switch b.state {
	case Closed:
		if b.failures >= b.cfg.Threshold {
			b.trip()
		}
	case HalfOpen:
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.probesOK = 0
	b.setState(Open)
}

func (b *Breaker) cooled() bool {
	return b.now().Sub(b.openedAt) >= b.cfg.Cooldown
}

func (b *Breaker) setState(to BreakerState) {
	from := b.state
	b.state = to
	if from != to && b.cfg.OnChange != nil {
		b.cfg.OnChange(from, to)
	}
}

// Guard runs fn if b allows it and records the outcome.
func Guard[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := b.Allow(); err != nil {
		var zero T
		return zero, err
	}
	v, err := fn(ctx)
	b.Record(err)
	return v, err
}

// LogTransitions returns an OnChange hook that logs each transition.
func LogTransitions(service string) func(from, to BreakerState) {
	return func(from, to BreakerState) {
		zap.L().Warn("resilience: breaker state change",
			zap.String("service", service),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
}
