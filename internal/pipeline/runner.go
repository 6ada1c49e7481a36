package pipeline

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/pkg/rocketreach"
)

// NoteInvalidIdentifier marks a row whose input could not be parsed as a domain.
const NoteInvalidIdentifier = "unparseable company identifier"

// Progress is called after each company completes. done counts finished
// companies, including this one.
type Progress func(done, total int, result model.CompanyResult)

// RunnerConfig controls pacing across companies.
type RunnerConfig struct {
	// MinDelay and MaxDelay bound the random pause between companies.
	MinDelay time.Duration
	MaxDelay time.Duration
	// Concurrency > 1 processes that many companies at once. The rate budget
	// stays shared, so this mostly overlaps lookup latency.
	Concurrency int
}

// DefaultRunnerConfig returns serial processing with a 0.5-1.5s pause.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		MinDelay:    500 * time.Millisecond,
		MaxDelay:    1500 * time.Millisecond,
		Concurrency: 1,
	}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSleep replaces the cancellable pause used between companies.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RunnerOption {
	return func(r *Runner) {
		r.sleep = fn
	}
}

// Runner processes a company list through a Discoverer.
type Runner struct {
	engine Discoverer
	cfg    RunnerConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a Runner.
func NewRunner(engine Discoverer, cfg RunnerConfig, opts ...RunnerOption) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MinDelay < 0 {
		cfg.MinDelay = 0
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	r := &Runner{engine: engine, cfg: cfg, sleep: sleepCtx}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run discovers contacts for every company in input order and returns one
// result per company. A company that fails or cannot be parsed still yields
// a NoContactsFound row. Cancellation is checked between companies; on
// cancel the completed prefix is returned with ctx's error.
func (r *Runner) Run(ctx context.Context, companies []string, criteria model.Criteria, quota int, progress Progress) ([]model.CompanyResult, error) {
	if quota <= 0 {
		quota = DefaultQuota
	}
	if progress == nil {
		progress = func(int, int, model.CompanyResult) {}
	}

	zap.L().Info("pipeline: run starting",
		zap.Int("companies", len(companies)),
		zap.Int("quota", quota),
		zap.Int("concurrency", r.cfg.Concurrency),
	)

	if r.cfg.Concurrency > 1 {
		return r.runConcurrent(ctx, companies, criteria, quota, progress)
	}

	results := make([]model.CompanyResult, 0, len(companies))
	for i, raw := range companies {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if i > 0 {
			if err := r.sleep(ctx, r.delay()); err != nil {
				return results, err
			}
		}

		res, err := r.one(ctx, raw, criteria, quota)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		progress(len(results), len(companies), res)
	}
	return results, nil
}

func (r *Runner) runConcurrent(ctx context.Context, companies []string, criteria model.Criteria, quota int, progress Progress) ([]model.CompanyResult, error) {
	results := make([]model.CompanyResult, len(companies))
	completed := make([]bool, len(companies))

	var (
		mu   sync.Mutex
		done int
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for i, raw := range companies {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if i >= r.cfg.Concurrency {
				if err := r.sleep(gCtx, r.delay()); err != nil {
					return err
				}
			}
			res, err := r.one(gCtx, raw, criteria, quota)
			if err != nil {
				return err
			}

			mu.Lock()
			results[i] = res
			completed[i] = true
			done++
			progress(done, len(companies), res)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil || ctx.Err() != nil {
		if err == nil {
			err = ctx.Err()
		}
		// Keep the contiguous completed prefix so output order stays stable.
		n := 0
		for n < len(completed) && completed[n] {
			n++
		}
		return results[:n], err
	}
	return results, nil
}

// one processes a single company. The only error returned is cancellation.
func (r *Runner) one(ctx context.Context, raw string, criteria model.Criteria, quota int) (model.CompanyResult, error) {
	company, ok := model.NewCompanyTarget(raw)
	if !ok {
		zap.L().Warn("pipeline: skipping unparseable company", zap.String("input", raw))
		return model.CompanyResult{
			Company: company,
			Status:  model.NoContactsFound,
			Note:    NoteInvalidIdentifier,
		}, nil
	}

	res, err := r.engine.Discover(ctx, company, criteria, quota)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.CompanyResult{}, ctxErr
		}
		zap.L().Error("pipeline: company failed",
			zap.String("company", company.Domain),
			zap.Error(err),
		)
		return model.CompanyResult{
			Company: company,
			Status:  model.NoContactsFound,
			Note:    err.Error(),
		}, nil
	}
	if len(res.Contacts) > quota {
		res.Contacts = res.Contacts[:quota]
		res.Status = model.ComputeStatus(len(res.Contacts), true)
	}
	return res, nil
}

func (r *Runner) delay() time.Duration {
	span := r.cfg.MaxDelay - r.cfg.MinDelay
	if span <= 0 {
		return r.cfg.MinDelay
	}
	return r.cfg.MinDelay + time.Duration(rand.Int64N(int64(span)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AccountChecker verifies API credentials.
type AccountChecker interface {
	Account(ctx context.Context) (*rocketreach.Account, error)
}

// Preflight fails fast on configuration problems before any company is
// processed: a missing key or an account call that cannot succeed.
func Preflight(ctx context.Context, apiKey string, acct AccountChecker) error {
	if apiKey == "" {
		return eris.New("pipeline: missing required API key: rocketreach.key")
	}
	a, err := acct.Account(ctx)
	if err != nil {
		return eris.Wrap(err, "pipeline: preflight")
	}
	zap.L().Info("pipeline: preflight ok", zap.String("account", a.Email))
	return nil
}

// Summary tallies a set of results by status.
type Summary struct {
	Companies       int `json:"companies"`
	Found           int `json:"found"`
	NoContactsFound int `json:"no_contacts_found"`
	NoValidEmails   int `json:"no_valid_emails"`
	Contacts        int `json:"contacts"`
}

// Summarize counts results by status.
func Summarize(results []model.CompanyResult) Summary {
	s := Summary{Companies: len(results)}
	for _, r := range results {
		s.Contacts += len(r.Contacts)
		switch r.Status.Kind {
		case model.StatusFound:
			s.Found++
		case model.StatusNoValidEmails:
			s.NoValidEmails++
		default:
			s.NoContactsFound++
		}
	}
	return s
}
