package people

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/keyword"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/pkg/rocketreach"
)

// DefaultPageSize is the candidate cap per search call.
const DefaultPageSize = 10

// Searcher returns candidates for one (company, criterion) pair.
type Searcher interface {
	Search(ctx context.Context, company model.CompanyTarget, c model.SearchCriterion) ([]model.Candidate, error)
}

// SearchClient issues one batched search per criterion.
type SearchClient struct {
	gw       *Gateway
	pageSize int
}

// NewSearchClient creates a SearchClient. pageSize <= 0 uses DefaultPageSize.
func NewSearchClient(gw *Gateway, pageSize int) *SearchClient {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &SearchClient{gw: gw, pageSize: pageSize}
}

// Search sends every value of c in a single request, drops candidates whose
// title or skills match an excluded value, and caps the result at the page
// size. An invalid criterion returns no candidates without calling the API.
// Failures after retries return ErrSearchFailed with an empty list; the
// caller is expected to move on.
func (s *SearchClient) Search(ctx context.Context, company model.CompanyTarget, c model.SearchCriterion) ([]model.Candidate, error) {
	if !c.Valid() || company.Domain == "" {
		return nil, nil
	}

	req := BuildSearchRequest(company, c, s.pageSize)
	resp, err := call(ctx, s.gw, "person_search", &s.gw.usage.searchCalls,
		func(ctx context.Context) (*rocketreach.SearchResponse, error) {
			return s.gw.api.SearchPeople(ctx, req)
		})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &callError{kind: ErrSearchFailed, err: err}
	}

	exclude := keyword.NewMatcher(c.ExcludedValues)
	out := make([]model.Candidate, 0, min(len(resp.Profiles), s.pageSize))
	for _, p := range resp.Profiles {
		if len(out) >= s.pageSize {
			break
		}
		if p.ID == "" {
			continue
		}
		texts := append([]string{p.CurrentTitle}, p.Skills...)
		if exclude.MatchAny(texts...) {
			zap.L().Debug("people: candidate excluded",
				zap.String("company", company.Domain),
				zap.String("title", p.CurrentTitle),
			)
			continue
		}
		out = append(out, model.Candidate{
			ID:          string(p.ID),
			Name:        p.Name,
			Title:       p.CurrentTitle,
			LinkedInURL: p.LinkedInURL,
			Skills:      p.Skills,
		})
	}
	return out, nil
}

// BuildSearchRequest maps a criterion onto the API's query facets. The
// seniority fallback ignores c.Values and searches the fixed level set.
func BuildSearchRequest(company model.CompanyTarget, c model.SearchCriterion, pageSize int) rocketreach.SearchRequest {
	q := rocketreach.Query{
		CurrentEmployerDomain: []string{company.Domain},
		Geo:                   c.Geography,
		ExcludeCurrentTitle:   c.ExcludedValues,
	}
	switch c.Kind {
	case model.CriterionTitle:
		q.CurrentTitle = c.Values
	case model.CriterionDepartment:
		q.Department = c.Values
	case model.CriterionSkill:
		q.Skills = c.Values
	case model.CriterionSeniorityFallback:
		q.ManagementLevels = model.SeniorityLevels
	}
	return rocketreach.SearchRequest{Query: q, Start: 1, PageSize: pageSize}
}
