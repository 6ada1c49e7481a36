package people

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/pkg/rocketreach"
)

// Looker fetches full detail for one candidate identifier.
type Looker interface {
	Lookup(ctx context.Context, id string) (*model.RawDetail, error)
}

// DetailCache stores raw lookup detail by candidate id. GetLookup returns
// (nil, nil) on a miss or when the entry is older than maxAge.
type DetailCache interface {
	GetLookup(ctx context.Context, id string, maxAge time.Duration) (*model.RawDetail, error)
	SetLookup(ctx context.Context, d *model.RawDetail) error
}

// LookupOption configures a LookupClient.
type LookupOption func(*LookupClient)

// WithCache serves repeat lookups from cache for up to ttl.
func WithCache(c DetailCache, ttl time.Duration) LookupOption {
	return func(l *LookupClient) {
		l.cache = c
		l.ttl = ttl
	}
}

// LookupClient issues one lookup call per identifier.
type LookupClient struct {
	gw    *Gateway
	cache DetailCache
	ttl   time.Duration
}

// NewLookupClient creates a LookupClient.
func NewLookupClient(gw *Gateway, opts ...LookupOption) *LookupClient {
	l := &LookupClient{gw: gw}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Lookup returns the raw detail for id. A missing identifier yields
// ErrNotFound; failures after retries and lookups the API has not finished
// yield ErrLookupFailed, so the id stays retryable. Cache errors are logged
// and never fail the lookup.
func (l *LookupClient) Lookup(ctx context.Context, id string) (*model.RawDetail, error) {
	if id == "" {
		return nil, &callError{kind: ErrNotFound, err: errEmptyID}
	}

	if l.cache != nil {
		cached, err := l.cache.GetLookup(ctx, id, l.ttl)
		switch {
		case err != nil:
			zap.L().Warn("people: lookup cache read failed", zap.String("id", id), zap.Error(err))
		case cached != nil:
			l.gw.usage.cacheHits.Add(1)
			return cached, nil
		default:
			zap.L().Debug("people: lookup cache miss", zap.String("id", id))
		}
	}

	person, err := call(ctx, l.gw, "person_lookup", &l.gw.usage.lookupCalls,
		func(ctx context.Context) (*rocketreach.Person, error) {
			return l.gw.api.LookupPerson(ctx, id)
		})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if rocketreach.IsNotFound(err) {
			return nil, &callError{kind: ErrNotFound, err: err}
		}
		return nil, &callError{kind: ErrLookupFailed, err: err}
	}
	if !person.Complete() {
		zap.L().Warn("people: lookup not complete",
			zap.String("id", id), zap.String("status", person.Status))
		return nil, &callError{kind: ErrLookupFailed, err: eris.Wrapf(errIncomplete, "status %q", person.Status)}
	}

	detail := ToRawDetail(person)
	if detail.ID == "" {
		detail.ID = id
	}

	if l.cache != nil {
		if err := l.cache.SetLookup(ctx, detail); err != nil {
			zap.L().Warn("people: lookup cache write failed", zap.String("id", id), zap.Error(err))
		}
	}
	return detail, nil
}

// ToRawDetail converts the wire person into the domain detail record.
func ToRawDetail(p *rocketreach.Person) *model.RawDetail {
	d := &model.RawDetail{
		ID:               string(p.ID),
		Name:             p.Name,
		Title:            p.CurrentTitle,
		LinkedInURL:      p.LinkedInURL,
		RecommendedEmail: p.RecommendedProfessionalEmail,
		CurrentWorkEmail: p.CurrentWorkEmail,
	}
	for _, e := range p.Emails {
		if e.Email == "" {
			continue
		}
		d.Emails = append(d.Emails, model.EmailRecord{
			Address:      e.Email,
			Type:         model.ParseEmailType(e.Type),
			Grade:        model.ParseGrade(e.Grade),
			SMTPValidity: model.ParseSMTPValidity(e.SMTPValid),
		})
	}
	return d
}
