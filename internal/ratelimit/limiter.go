// Package ratelimit enforces the people-search API's request budget: rolling
// per-window ceilings applied proactively, and a server-signalled cool-down
// applied after throttling responses.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Window is a sliding-window ceiling: at most Limit requests in any Period.
type Window struct {
	Limit  int
	Period time.Duration
}

// Config controls a Limiter.
type Config struct {
	// Windows are enforced together; a request must fit in every one.
	Windows []Window
	// Jitter is the upper bound of the random delay added to every wait so
	// callers sharing a limiter do not wake in lockstep.
	Jitter time.Duration
	// DefaultPenalty is the cool-down used when a throttling response carries
	// no wait hint. Default: 60s.
	DefaultPenalty time.Duration
}

// PerSecond returns a Config with a single per-second ceiling.
func PerSecond(n int) Config {
	return Config{Windows: []Window{{Limit: n, Period: time.Second}}}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock, for tests and simulations.
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

// WithRand replaces the jitter source. fn must return a value in [0, n).
func WithRand(fn func(n int64) int64) Option {
	return func(l *Limiter) {
		l.randFn = fn
	}
}

type window struct {
	Window
	stamps []time.Time
}

// Limiter is safe for concurrent use. The request-timestamp windows and the
// penalty deadline are the only state and are guarded by mu.
type Limiter struct {
	mu           sync.Mutex
	windows      []*window
	penaltyUntil time.Time

	jitter         time.Duration
	defaultPenalty time.Duration
	clock          Clock
	randFn         func(n int64) int64
}

// New creates a Limiter. Windows with a non-positive limit or period are ignored.
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		jitter:         cfg.Jitter,
		defaultPenalty: cfg.DefaultPenalty,
		clock:          realClock{},
		randFn:         rand.Int64N,
	}
	if l.defaultPenalty <= 0 {
		l.defaultPenalty = 60 * time.Second
	}
	if l.jitter < 0 {
		l.jitter = 0
	}
	for _, w := range cfg.Windows {
		if w.Limit <= 0 || w.Period <= 0 {
			continue
		}
		l.windows = append(l.windows, &window{Window: w})
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Acquire blocks until one more request fits the budget, then records it.
// It only fails when ctx is done while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		wait := l.reserveLocked(l.clock.Now())
		l.mu.Unlock()

		if wait <= 0 {
			return nil
		}

		wait += l.jitterDuration()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(wait):
		}
	}
}

// Penalize blocks all callers for d (plus jitter at wake-up). A non-positive
// d uses the configured default. An earlier deadline never shortens a later one.
func (l *Limiter) Penalize(d time.Duration) {
	if d <= 0 {
		d = l.defaultPenalty
	}

	l.mu.Lock()
	until := l.clock.Now().Add(d)
	extended := until.After(l.penaltyUntil)
	if extended {
		l.penaltyUntil = until
	}
	l.mu.Unlock()

	if extended {
		zap.L().Warn("ratelimit: throttled by server, pausing requests",
			zap.Duration("wait", d),
		)
	}
}

// PenaltyUntil returns the current cool-down deadline (zero if never penalized).
func (l *Limiter) PenaltyUntil() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.penaltyUntil
}

// reserveLocked returns how long the caller must wait, or records a request
// at now and returns 0 when the budget admits it.
func (l *Limiter) reserveLocked(now time.Time) time.Duration {
	if now.Before(l.penaltyUntil) {
		return l.penaltyUntil.Sub(now)
	}

	var wait time.Duration
	for _, w := range l.windows {
		w.prune(now)
		if len(w.stamps) >= w.Limit {
			// The request that must age out for one slot to open.
			oldest := w.stamps[len(w.stamps)-w.Limit]
			if d := oldest.Add(w.Period).Sub(now); d > wait {
				wait = d
			}
		}
	}
	if wait > 0 {
		return wait
	}

	for _, w := range l.windows {
		w.stamps = append(w.stamps, now)
	}
	return 0
}

func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.Period)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

func (l *Limiter) jitterDuration() time.Duration {
	if l.jitter <= 0 {
		return 0
	}
	return time.Duration(l.randFn(int64(l.jitter)))
}
