// Package people issues search and lookup calls against the people-search API.
// Every outbound call passes through one shared rate budget, a bounded retry
// policy and a circuit breaker; failures are classified here so callers only
// ever see results, ErrNotFound, or a recoverable failure.
package people

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/ratelimit"
	"github.com/sells-group/contact-finder/internal/resilience"
	"github.com/sells-group/contact-finder/pkg/rocketreach"
)

const service = "rocketreach"

var (
	// ErrSearchFailed marks a search that could not complete after retries.
	ErrSearchFailed = eris.New("people: search failed")
	// ErrLookupFailed marks a lookup that could not complete after retries.
	ErrLookupFailed = eris.New("people: lookup failed")
	// ErrNotFound is returned by Lookup when the identifier does not exist.
	ErrNotFound = eris.New("people: not found")

	errEmptyID    = eris.New("people: empty id")
	errIncomplete = eris.New("people: lookup incomplete")
)

// callError tags an underlying failure with one of the sentinel kinds above.
type callError struct {
	kind error
	err  error
}

func (e *callError) Error() string        { return e.kind.Error() + ": " + e.err.Error() }
func (e *callError) Unwrap() error        { return e.err }
func (e *callError) Is(target error) bool { return target == e.kind }

// Usage counts outbound activity for one Gateway.
type Usage struct {
	SearchCalls int64 `json:"search_calls"`
	LookupCalls int64 `json:"lookup_calls"`
	CacheHits   int64 `json:"cache_hits"`
	Throttled   int64 `json:"throttled"`
	Failed      int64 `json:"failed"`
}

type counters struct {
	searchCalls atomic.Int64
	lookupCalls atomic.Int64
	cacheHits   atomic.Int64
	throttled   atomic.Int64
	failed      atomic.Int64
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRetry sets the retry policy. Wait and OnRetry are managed by the
// gateway; Sleep may be set to observe or fake waits.
func WithRetry(p resilience.Policy) GatewayOption {
	return func(g *Gateway) {
		g.retry = p
	}
}

// WithBreaker sets the circuit breaker config. Throttles never count toward
// its threshold.
func WithBreaker(cfg resilience.BreakerConfig) GatewayOption {
	return func(g *Gateway) {
		g.breakerCfg = cfg
	}
}

// Gateway owns the shared call discipline for the search and lookup clients.
type Gateway struct {
	api     rocketreach.Client
	limiter *ratelimit.Limiter

	retry      resilience.Policy
	breakerCfg resilience.BreakerConfig
	breaker    *resilience.Breaker

	usage counters
}

// NewGateway creates a Gateway. The limiter may be shared across gateways to
// enforce a single global budget.
func NewGateway(api rocketreach.Client, limiter *ratelimit.Limiter, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		api:        api,
		limiter:    limiter,
		retry:      resilience.DefaultPolicy(),
		breakerCfg: resilience.DefaultBreakerConfig(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.limiter == nil {
		g.limiter = ratelimit.New(ratelimit.Config{})
	}
	if g.breakerCfg.OnChange == nil {
		g.breakerCfg.OnChange = resilience.LogTransitions(service)
	}
	g.breaker = resilience.NewBreaker(g.breakerCfg)
	return g
}

// Account verifies the credential and connectivity with a single call. It
// bypasses retries so a bad key fails fast.
func (g *Gateway) Account(ctx context.Context) (*rocketreach.Account, error) {
	if err := g.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	acct, err := g.api.Account(ctx)
	if err != nil {
		if rocketreach.IsUnauthorized(err) {
			return nil, eris.Wrap(err, "people: account: invalid api key")
		}
		return nil, eris.Wrap(err, "people: account")
	}
	return acct, nil
}

// Usage returns a snapshot of the counters.
func (g *Gateway) Usage() Usage {
	return Usage{
		SearchCalls: g.usage.searchCalls.Load(),
		LookupCalls: g.usage.lookupCalls.Load(),
		CacheHits:   g.usage.cacheHits.Load(),
		Throttled:   g.usage.throttled.Load(),
		Failed:      g.usage.failed.Load(),
	}
}

// BreakerState reports the circuit breaker state.
func (g *Gateway) BreakerState() resilience.BreakerState {
	return g.breaker.State()
}

// classify maps API errors onto the resilience taxonomy. A throttle also
// pushes the server's wait into the limiter so every caller pauses.
func (g *Gateway) classify(err error) error {
	if err == nil {
		return nil
	}
	if wait, ok := rocketreach.IsThrottled(err); ok {
		g.usage.throttled.Add(1)
		g.limiter.Penalize(wait)
		return resilience.MarkThrottled(err, wait)
	}
	var apiErr *rocketreach.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= http.StatusInternalServerError {
		return resilience.MarkTransient(err, apiErr.StatusCode)
	}
	return err
}

// call runs fn under the gateway discipline: acquire budget, pass the breaker,
// classify the outcome, and retry transient failures. Throttled attempts retry
// without extra backoff because the limiter already holds the penalty.
func call[T any](ctx context.Context, g *Gateway, op string, count *atomic.Int64, fn func(ctx context.Context) (T, error)) (T, error) {
	p := g.retry
	p.OnRetry = resilience.LogRetries(service, op)
	p.Wait = func(attempt int, err error) time.Duration {
		if resilience.Classify(err) == resilience.Throttled {
			return 0
		}
		return g.retry.Backoff(attempt)
	}

	val, err := resilience.Retry(ctx, p, func(ctx context.Context) (T, error) {
		if err := g.limiter.Acquire(ctx); err != nil {
			var zero T
			return zero, err
		}
		count.Add(1)
		return resilience.Guard(ctx, g.breaker, func(ctx context.Context) (T, error) {
			v, err := fn(ctx)
			return v, g.classify(err)
		})
	})
	if err != nil && ctx.Err() == nil && !rocketreach.IsNotFound(err) {
		g.usage.failed.Add(1)
		zap.L().Debug("people: call failed",
			zap.String("operation", op),
			zap.Error(err),
		)
	}
	return val, err
}
