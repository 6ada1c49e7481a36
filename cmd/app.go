package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/config"
	"github.com/sells-group/contact-finder/internal/cost"
	"github.com/sells-group/contact-finder/internal/people"
	"github.com/sells-group/contact-finder/internal/pipeline"
	"github.com/sells-group/contact-finder/internal/ratelimit"
	"github.com/sells-group/contact-finder/internal/resilience"
	"github.com/sells-group/contact-finder/internal/store"
	"github.com/sells-group/contact-finder/pkg/notion"
	"github.com/sells-group/contact-finder/pkg/rocketreach"
)

// Constructors are package variables so command tests can substitute fakes.
var (
	newRocketReach = func(c config.RocketReachConfig) rocketreach.Client {
		timeout := time.Duration(c.TimeoutSecs) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		return rocketreach.NewClient(c.Key,
			rocketreach.WithBaseURL(c.BaseURL),
			rocketreach.WithHTTPClient(&http.Client{Timeout: timeout}),
		)
	}
	newNotion = func(token string) notion.Client { return notion.NewClient(token) }
	openCache = store.Open
)

// appEnv holds the wired clients and pipeline used by find and serve.
type appEnv struct {
	Gateway *people.Gateway
	Cache   store.LookupCache // nil when caching is disabled
	Runner  *pipeline.Runner
	Presets map[string]pipeline.Preset
	Costs   *cost.Calculator
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
}

// initApp validates cfg for mode and builds the discovery pipeline.
// Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	presets, err := pipeline.LoadPresets(cfg.Discovery.PresetsFile)
	if err != nil {
		return nil, err
	}

	cache, err := openCache(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init: open lookup cache")
	}

	limiter := ratelimit.New(limiterConfig(cfg.RateLimit))
	gw := people.NewGateway(newRocketReach(cfg.RocketReach), limiter,
		people.WithRetry(retryPolicy(cfg.Retry)),
		people.WithBreaker(breakerConfig(cfg.Breaker)),
	)

	var lookupOpts []people.LookupOption
	if cache != nil {
		lookupOpts = append(lookupOpts, people.WithCache(cache, time.Duration(cfg.Store.LookupTTLHours)*time.Hour))
	}

	engine := pipeline.NewEngine(
		people.NewSearchClient(gw, cfg.Search.PageSize),
		people.NewLookupClient(gw, lookupOpts...),
		pipeline.WithEmailDedup(cfg.Discovery.DedupeByEmail),
	)

	return &appEnv{
		Gateway: gw,
		Cache:   cache,
		Runner:  pipeline.NewRunner(engine, runnerConfig(cfg.Runner)),
		Presets: presets,
		Costs:   cost.NewCalculator(cfg.Pricing),
	}, nil
}

func limiterConfig(c config.RateLimitConfig) ratelimit.Config {
	return ratelimit.Config{
		Windows: []ratelimit.Window{
			{Limit: c.PerSecond, Period: time.Second},
			{Limit: c.PerMinute, Period: time.Minute},
		},
		Jitter:         time.Duration(c.JitterMs) * time.Millisecond,
		DefaultPenalty: time.Duration(c.DefaultWaitSecs) * time.Second,
	}
}

// retryPolicy maps retry settings onto a policy; zero values fall back to
// resilience defaults.
func retryPolicy(c config.RetryConfig) resilience.Policy {
	p := resilience.DefaultPolicy()
	p.Attempts = c.MaxAttempts
	p.Base = time.Duration(c.InitialBackoffMs) * time.Millisecond
	p.Cap = time.Duration(c.MaxBackoffMs) * time.Millisecond
	return p
}

func breakerConfig(c config.BreakerConfig) resilience.BreakerConfig {
	return resilience.BreakerConfig{
		Threshold: c.FailureThreshold,
		Cooldown:  time.Duration(c.ResetTimeoutSecs) * time.Second,
	}
}

func runnerConfig(c config.RunnerConfig) pipeline.RunnerConfig {
	return pipeline.RunnerConfig{
		MinDelay:    time.Duration(c.MinDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.MaxDelayMs) * time.Millisecond,
		Concurrency: c.Concurrency,
	}
}

// usageSummary prices the API calls made so far.
func (e *appEnv) usageSummary() (people.Usage, cost.Breakdown) {
	u := e.Gateway.Usage()
	return u, e.Costs.Estimate(cost.Usage{
		Searches:  u.SearchCalls,
		Lookups:   u.LookupCalls,
		CacheHits: u.CacheHits,
	})
}
