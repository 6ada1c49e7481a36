package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy bounds how a failed call is retried.
type Policy struct {
	Attempts int           // total tries including the first; 1 disables retries
	Base     time.Duration // delay before the first retry
	Cap      time.Duration // upper bound on any single delay
	Factor   float64       // growth per attempt
	Jitter   float64       // +/- fraction applied to each delay

	// Retryable decides whether err is worth another attempt. Defaults to the
	// package-level Retryable.
	Retryable func(err error) bool
	// Wait overrides Backoff for a failed attempt (0-based).
	Wait func(attempt int, err error) time.Duration
	// OnRetry runs before each wait with the 1-based retry number.
	OnRetry func(retry int, err error)
	// Sleep replaces the timer. It must return early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is three attempts with 500ms doubling backoff capped at 10s.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Base:     500 * time.Millisecond,
		Cap:      10 * time.Second,
		Factor:   2,
		Jitter:   0.25,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Base <= 0 {
		p.Base = d.Base
	}
	if p.Cap <= 0 {
		p.Cap = d.Cap
	}
	if p.Cap < p.Base {
		p.Cap = p.Base
	}
	if p.Factor < 1 {
		p.Factor = d.Factor
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = Retryable
	}
	if p.Sleep == nil {
		p.Sleep = sleepCtx
	}
	return p
}

// Backoff is the delay after failed attempt n (0-based): Base*Factor^n capped
// at Cap, then jittered.
func (p Policy) Backoff(n int) time.Duration {
	p = p.normalized()
	d := math.Min(float64(p.Base)*math.Pow(p.Factor, float64(n)), float64(p.Cap))
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(max(d, 0))
}

// Retry calls fn until it succeeds, returns a non-retryable error, exhausts
// p.Attempts, or ctx ends. The last error is returned unchanged.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var (
		zero T
		err  error
	)
	for n := 0; n < p.Attempts; n++ {
		var v T
		if v, err = fn(ctx); err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !p.Retryable(err) || n == p.Attempts-1 {
			return zero, err
		}

		if p.OnRetry != nil {
			p.OnRetry(n+1, err)
		}
		wait := p.Backoff(n)
		if p.Wait != nil {
			wait = p.Wait(n, err)
		}
		if wait > 0 {
			if p.Sleep(ctx, wait) != nil {
				return zero, err
			}
		}
	}
	return zero, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LogRetries returns an OnRetry hook that logs at warn level.
func LogRetries(service, op string) func(int, error) {
	return func(retry int, err error) {
		zap.L().Warn("resilience: retrying",
			zap.String("service", service),
			zap.String("operation", op),
			zap.Int("retry", retry),
			zap.String("class", Classify(err).String()),
			zap.Error(err),
		)
	}
}
