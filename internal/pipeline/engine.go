// Package pipeline drives contact discovery: a staged search per company and
// a runner that walks a company list.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/keyword"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/people"
	"github.com/sells-group/contact-finder/internal/resolve"
)

// DefaultQuota is the number of contacts sought per company when none is given.
const DefaultQuota = 3

// Discoverer finds contacts for a single company.
type Discoverer interface {
	Discover(ctx context.Context, company model.CompanyTarget, criteria model.Criteria, quota int) (model.CompanyResult, error)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEmailDedup also drops a contact whose email was already accepted for
// the company under a different identifier.
func WithEmailDedup(on bool) EngineOption {
	return func(e *Engine) {
		e.dedupeByEmail = on
	}
}

// Engine runs the title, department, skill and fallback stages in that order.
type Engine struct {
	search        people.Searcher
	lookup        people.Looker
	dedupeByEmail bool
}

// NewEngine creates an Engine.
func NewEngine(search people.Searcher, lookup people.Looker, opts ...EngineOption) *Engine {
	e := &Engine{search: search, lookup: lookup}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Skip reasons recorded on stage reports.
const (
	skipNoTitles      = "no title keywords"
	skipNoDepartments = "no departments"
	skipQuotaReached  = "quota reached"
	skipHaveContacts  = "contacts already found"
)

// Discover searches company stage by stage until quota contacts are verified.
// Search and lookup failures are absorbed into the stage reports; the only
// error returned is ctx's, alongside whatever was accumulated so far.
func (e *Engine) Discover(ctx context.Context, company model.CompanyTarget, criteria model.Criteria, quota int) (model.CompanyResult, error) {
	if quota <= 0 {
		quota = DefaultQuota
	}
	start := time.Now()

	titles := keyword.Clean(criteria.TitleKeywords)
	exclude := keyword.Clean(criteria.ExcludeKeywords)
	departments := keyword.Clean(criteria.Departments)
	geography := keyword.Clean(criteria.Geography)

	d := &discovery{
		engine:  e,
		company: company,
		quota:   quota,
		seenIDs: make(map[string]struct{}),
		emails:  make(map[string]struct{}),
		log:     zap.L().With(zap.String("company", company.Domain)),
	}

	stages := []struct {
		name   model.StageName
		kind   model.CriterionKind
		values []string
		skip   string
	}{
		{model.StageTitle, model.CriterionTitle, titles, skipNoTitles},
		{model.StageDepartment, model.CriterionDepartment, departments, skipNoDepartments},
		{model.StageSkill, model.CriterionSkill, titles, skipNoTitles},
	}

	for _, s := range stages {
		report := model.StageReport{Stage: s.name}
		switch {
		case d.full():
			report.SkipReason = skipQuotaReached
		case len(s.values) == 0:
			report.SkipReason = s.skip
		default:
			err := d.run(ctx, model.SearchCriterion{
				Kind:           s.kind,
				Values:         s.values,
				ExcludedValues: exclude,
				Geography:      geography,
			}, &report)
			if err != nil {
				d.reports = append(d.reports, report)
				return d.result(), err
			}
		}
		d.reports = append(d.reports, report)
	}

	// The fallback widens scope, so it only runs when the precise stages
	// produced no verified contact at all.
	fallback := model.StageReport{Stage: model.StageFallback}
	if len(d.contacts) > 0 {
		fallback.SkipReason = skipHaveContacts
	} else {
		err := d.run(ctx, model.SearchCriterion{
			Kind:           model.CriterionSeniorityFallback,
			ExcludedValues: exclude,
			Geography:      geography,
		}, &fallback)
		if err != nil {
			d.reports = append(d.reports, fallback)
			return d.result(), err
		}
	}
	d.reports = append(d.reports, fallback)

	res := d.result()
	d.log.Info("pipeline: company complete",
		zap.String("status", res.Status.String()),
		zap.Int("contacts", len(res.Contacts)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// discovery is the per-company state. It is never shared across companies.
type discovery struct {
	engine  *Engine
	company model.CompanyTarget
	quota   int

	contacts      []model.VerifiedContact
	reports       []model.StageReport
	seenIDs       map[string]struct{}
	emails        map[string]struct{}
	sawCandidates bool

	log *zap.Logger
}

func (d *discovery) full() bool {
	return len(d.contacts) >= d.quota
}

func (d *discovery) result() model.CompanyResult {
	return model.CompanyResult{
		Company:  d.company,
		Contacts: d.contacts,
		Status:   model.ComputeStatus(len(d.contacts), d.sawCandidates),
		Stages:   d.reports,
	}
}

// run executes one stage: a single search, then lookup and resolution of each
// unseen candidate in returned order until the quota fills.
func (d *discovery) run(ctx context.Context, c model.SearchCriterion, report *model.StageReport) error {
	log := d.log.With(zap.String("stage", string(report.Stage)))
	report.Ran = true

	candidates, err := d.engine.search.Search(ctx, d.company, c)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		report.Error = err.Error()
		log.Warn("pipeline: search failed, continuing", zap.Error(err))
	}
	report.Candidates = len(candidates)
	if len(candidates) > 0 {
		d.sawCandidates = true
	}

	for _, cand := range candidates {
		if d.full() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, seen := d.seenIDs[cand.ID]; seen {
			continue
		}

		detail, err := d.engine.lookup.Lookup(ctx, cand.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, people.ErrNotFound) {
				d.seenIDs[cand.ID] = struct{}{}
				log.Debug("pipeline: candidate not found", zap.String("id", cand.ID))
			} else {
				// Left unseen so a later stage may try again.
				log.Warn("pipeline: lookup failed, skipping candidate", zap.String("id", cand.ID), zap.Error(err))
			}
			continue
		}
		d.seenIDs[cand.ID] = struct{}{}

		contact, ok := resolve.Resolve(withCandidate(*detail, cand))
		if !ok {
			log.Debug("pipeline: no usable email", zap.String("id", cand.ID))
			continue
		}
		if d.engine.dedupeByEmail {
			key := strings.ToLower(contact.Email)
			if _, dup := d.emails[key]; dup {
				log.Debug("pipeline: duplicate email", zap.String("id", cand.ID))
				continue
			}
			d.emails[key] = struct{}{}
		}

		d.contacts = append(d.contacts, contact)
		report.Resolved++
	}

	log.Info("pipeline: stage complete",
		zap.Int("candidates", report.Candidates),
		zap.Int("resolved", report.Resolved),
		zap.Int("total", len(d.contacts)),
	)
	return nil
}

// withCandidate fills blank identity fields of a lookup from its search hit.
func withCandidate(d model.RawDetail, c model.Candidate) model.RawDetail {
	if d.ID == "" {
		d.ID = c.ID
	}
	if d.Name == "" {
		d.Name = c.Name
	}
	if d.Title == "" {
		d.Title = c.Title
	}
	if d.LinkedInURL == "" {
		d.LinkedInURL = c.LinkedInURL
	}
	return d
}
