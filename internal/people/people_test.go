package people

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/ratelimit"
	"github.com/sells-group/contact-finder/internal/resilience"
	"github.com/sells-group/contact-finder/pkg/rocketreach"
	"github.com/sells-group/contact-finder/pkg/rocketreach/mocks"
)

var t0 = time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)

type harness struct {
	api     *mocks.MockClient
	clock   *ratelimit.ManualClock
	limiter *ratelimit.Limiter
	gw      *Gateway

	mu    sync.Mutex
	slept []time.Duration
}

func newHarness(t *testing.T, opts ...GatewayOption) *harness {
	t.Helper()
	h := &harness{api: mocks.NewMockClient(t), clock: ratelimit.NewManualClock(t0)}
	h.limiter = ratelimit.New(ratelimit.PerSecond(5), ratelimit.WithClock(h.clock))
	retry := resilience.Policy{
		Attempts: 3,
		Base:     10 * time.Millisecond,
		Cap:      50 * time.Millisecond,
		Sleep: func(_ context.Context, d time.Duration) error {
			h.mu.Lock()
			h.slept = append(h.slept, d)
			h.mu.Unlock()
			return nil
		},
	}
	h.gw = NewGateway(h.api, h.limiter, append([]GatewayOption{WithRetry(retry)}, opts...)...)
	return h
}

func (h *harness) backoffs() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.slept...)
}

func acme() model.CompanyTarget {
	c, _ := model.NewCompanyTarget("https://www.Acme.com/about")
	return c
}

func titleCriterion(values ...string) model.SearchCriterion {
	return model.SearchCriterion{Kind: model.CriterionTitle, Values: values}
}

func profiles(ids ...string) *rocketreach.SearchResponse {
	resp := &rocketreach.SearchResponse{}
	for _, id := range ids {
		resp.Profiles = append(resp.Profiles, rocketreach.Profile{
			ID:           rocketreach.ID(id),
			Name:         "Person " + id,
			CurrentTitle: "VP Strategy",
		})
	}
	return resp
}

func TestSearch_Success(t *testing.T) {
	h := newHarness(t)
	h.api.On("SearchPeople", mock.Anything, mock.MatchedBy(func(r rocketreach.SearchRequest) bool {
		return assert.ObjectsAreEqual([]string{"acme.com"}, r.Query.CurrentEmployerDomain) &&
			assert.ObjectsAreEqual([]string{"CFO", "strategy"}, r.Query.CurrentTitle) &&
			r.PageSize == DefaultPageSize
	})).Return(profiles("1", "2"), nil).Once()

	got, err := NewSearchClient(h.gw, 0).Search(context.Background(), acme(), titleCriterion("CFO", "strategy"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "Person 2", got[1].Name)
	assert.Equal(t, int64(1), h.gw.Usage().SearchCalls)
}

func TestSearch_ClientSideExclusionAndCap(t *testing.T) {
	h := newHarness(t)
	resp := &rocketreach.SearchResponse{Profiles: []rocketreach.Profile{
		{ID: "1", CurrentTitle: "Executive Assistant to the CFO"},
		{ID: "2", CurrentTitle: "VP Strategy"},
		{ID: "3", CurrentTitle: "Growth Lead", Skills: []string{"Administrative ASSISTANT"}},
		{ID: "", CurrentTitle: "No id"},
		{ID: "4", CurrentTitle: "Head of Corporate Development"},
		{ID: "5", CurrentTitle: "Director of Strategy"},
	}}
	h.api.On("SearchPeople", mock.Anything, mock.Anything).Return(resp, nil).Once()

	c := titleCriterion("strategy")
	c.ExcludedValues = []string{"assistant"}
	got, err := NewSearchClient(h.gw, 2).Search(context.Background(), acme(), c)
	require.NoError(t, err)

	var ids []string
	for _, cand := range got {
		ids = append(ids, cand.ID)
	}
	assert.Equal(t, []string{"2", "4"}, ids)
}

func TestSearch_InvalidCriterionSkipsCall(t *testing.T) {
	h := newHarness(t)
	got, err := NewSearchClient(h.gw, 10).Search(context.Background(), acme(), titleCriterion())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, h.gw.Usage().SearchCalls)
}

func TestSearch_ThrottleThenSuccess(t *testing.T) {
	h := newHarness(t)
	h.api.On("SearchPeople", mock.Anything, mock.Anything).
		Return(nil, &rocketreach.APIError{StatusCode: 429, RetryAfter: 12 * time.Second}).Once()
	h.api.On("SearchPeople", mock.Anything, mock.Anything).Return(profiles("7"), nil).Once()

	got, err := NewSearchClient(h.gw, 10).Search(context.Background(), acme(), titleCriterion("CFO"))
	require.NoError(t, err)
	require.Len(t, got, 1)

	// The wait came from the limiter penalty, not from retry backoff.
	assert.Equal(t, []time.Duration{12 * time.Second}, h.clock.Sleeps())
	assert.Empty(t, h.backoffs())
	assert.Equal(t, t0.Add(12*time.Second), h.limiter.PenaltyUntil())

	u := h.gw.Usage()
	assert.Equal(t, int64(2), u.SearchCalls)
	assert.Equal(t, int64(1), u.Throttled)
	assert.Zero(t, u.Failed)
}

func TestSearch_ThrottleExhaustsRetries(t *testing.T) {
	h := newHarness(t)
	h.api.On("SearchPeople", mock.Anything, mock.Anything).
		Return(nil, &rocketreach.APIError{StatusCode: 429}).Times(3)

	got, err := NewSearchClient(h.gw, 10).Search(context.Background(), acme(), titleCriterion("CFO"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.Empty(t, got)

	// No hint: default 60s penalty before each retry.
	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second}, h.clock.Sleeps())
	u := h.gw.Usage()
	assert.Equal(t, int64(3), u.Throttled)
	assert.Equal(t, int64(1), u.Failed)
	// Throttles never trip the breaker.
	assert.Equal(t, resilience.Closed, h.gw.BreakerState())
}

func TestSearch_ServerErrorRetriesWithBackoff(t *testing.T) {
	h := newHarness(t)
	h.api.On("SearchPeople", mock.Anything, mock.Anything).
		Return(nil, &rocketreach.APIError{StatusCode: 503, Message: "unavailable"}).Once()
	h.api.On("SearchPeople", mock.Anything, mock.Anything).Return(profiles("1"), nil).Once()

	got, err := NewSearchClient(h.gw, 10).Search(context.Background(), acme(), titleCriterion("CFO"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, h.backoffs())
}

func TestSearch_ClientErrorNotRetried(t *testing.T) {
	h := newHarness(t)
	h.api.On("SearchPeople", mock.Anything, mock.Anything).
		Return(nil, &rocketreach.APIError{StatusCode: 400, Message: "bad query"}).Once()

	got, err := NewSearchClient(h.gw, 10).Search(context.Background(), acme(), titleCriterion("CFO"))
	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.Contains(t, err.Error(), "bad query")
	assert.Empty(t, got)
	assert.Equal(t, int64(1), h.gw.Usage().SearchCalls)
}

func TestSearch_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	h := newHarness(t, WithBreaker(resilience.BreakerConfig{
		Threshold: 2,
		Cooldown:  time.Hour,
	}))
	h.gw.retry.Attempts = 1
	h.api.On("SearchPeople", mock.Anything, mock.Anything).
		Return(nil, &rocketreach.APIError{StatusCode: 502}).Times(2)

	s := NewSearchClient(h.gw, 10)
	for i := 0; i < 2; i++ {
		_, err := s.Search(context.Background(), acme(), titleCriterion("CFO"))
		assert.ErrorIs(t, err, ErrSearchFailed)
	}
	assert.Equal(t, resilience.Open, h.gw.BreakerState())

	_, err := s.Search(context.Background(), acme(), titleCriterion("CFO"))
	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.ErrorIs(t, err, resilience.ErrOpen)
}

func TestSearch_ContextCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSearchClient(h.gw, 10).Search(ctx, acme(), titleCriterion("CFO"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSearchFailed)
}

func TestBuildSearchRequest(t *testing.T) {
	company := acme()
	tests := []struct {
		name  string
		c     model.SearchCriterion
		check func(t *testing.T, q rocketreach.Query)
	}{
		{
			name: "department",
			c:    model.SearchCriterion{Kind: model.CriterionDepartment, Values: []string{"Finance"}},
			check: func(t *testing.T, q rocketreach.Query) {
				assert.Equal(t, []string{"Finance"}, q.Department)
				assert.Nil(t, q.CurrentTitle)
			},
		},
		{
			name: "skill",
			c:    model.SearchCriterion{Kind: model.CriterionSkill, Values: []string{"M&A"}},
			check: func(t *testing.T, q rocketreach.Query) {
				assert.Equal(t, []string{"M&A"}, q.Skills)
			},
		},
		{
			name: "fallback ignores values but keeps exclusions and geography",
			c: model.SearchCriterion{
				Kind:           model.CriterionSeniorityFallback,
				Values:         []string{"ignored"},
				ExcludedValues: []string{"Intern"},
				Geography:      []string{"Texas"},
			},
			check: func(t *testing.T, q rocketreach.Query) {
				assert.Equal(t, model.SeniorityLevels, q.ManagementLevels)
				assert.Nil(t, q.CurrentTitle)
				assert.Nil(t, q.Skills)
				assert.Equal(t, []string{"Intern"}, q.ExcludeCurrentTitle)
				assert.Equal(t, []string{"Texas"}, q.Geo)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := BuildSearchRequest(company, tt.c, 15)
			assert.Equal(t, []string{"acme.com"}, req.Query.CurrentEmployerDomain)
			assert.Equal(t, 1, req.Start)
			assert.Equal(t, 15, req.PageSize)
			tt.check(t, req.Query)
		})
	}
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]*model.RawDetail
	readErr error
	writes  int
}

func (c *memCache) GetLookup(_ context.Context, id string, _ time.Duration) (*model.RawDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.entries[id], nil
}

func (c *memCache) SetLookup(_ context.Context, d *model.RawDetail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]*model.RawDetail{}
	}
	c.entries[d.ID] = d
	c.writes++
	return nil
}

func adaPerson() *rocketreach.Person {
	return &rocketreach.Person{
		ID:                           "101",
		Name:                         "Ada Lovelace",
		CurrentTitle:                 "CFO",
		LinkedInURL:                  "https://linkedin.com/in/ada",
		RecommendedProfessionalEmail: "ada@acme.com",
		Emails: []rocketreach.Email{
			{Email: "ada@acme.com", Type: "professional", Grade: "a-", SMTPValid: "valid"},
			{Email: "", Type: "professional"},
			{Email: "ada@gmail.com", Type: "personal", Grade: "B", SMTPValid: "inconclusive"},
		},
	}
}

func TestLookup_Success(t *testing.T) {
	h := newHarness(t)
	h.api.On("LookupPerson", mock.Anything, "101").Return(adaPerson(), nil).Once()

	d, err := NewLookupClient(h.gw).Lookup(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, "101", d.ID)
	assert.Equal(t, "CFO", d.Title)
	assert.Equal(t, "ada@acme.com", d.RecommendedEmail)
	require.Len(t, d.Emails, 2)
	assert.Equal(t, model.GradeAMinus, d.Emails[0].Grade)
	assert.Equal(t, model.SMTPValid, d.Emails[0].SMTPValidity)
	assert.Equal(t, model.EmailPersonal, d.Emails[1].Type)
	assert.Equal(t, model.SMTPUnverified, d.Emails[1].SMTPValidity)
	assert.Equal(t, int64(1), h.gw.Usage().LookupCalls)
}

func TestLookup_NotFound(t *testing.T) {
	h := newHarness(t)
	h.api.On("LookupPerson", mock.Anything, "404").
		Return(nil, &rocketreach.APIError{StatusCode: 404, Message: "Not found."}).Once()

	_, err := NewLookupClient(h.gw).Lookup(context.Background(), "404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrLookupFailed)
	assert.Zero(t, h.gw.Usage().Failed)
}

func TestLookup_EmptyID(t *testing.T) {
	h := newHarness(t)
	_, err := NewLookupClient(h.gw).Lookup(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_FailsAfterRetries(t *testing.T) {
	h := newHarness(t)
	h.api.On("LookupPerson", mock.Anything, "1").
		Return(nil, resilience.MarkTransient(errors.New("connection reset"), 0)).Times(3)

	_, err := NewLookupClient(h.gw).Lookup(context.Background(), "1")
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, h.backoffs())
}

func TestLookup_IncompleteStatusIsRetryable(t *testing.T) {
	h := newHarness(t)
	p := adaPerson()
	p.Status = "progress"
	p.Emails = nil
	p.RecommendedProfessionalEmail = ""
	h.api.On("LookupPerson", mock.Anything, "101").Return(p, nil).Once()
	cache := &memCache{}

	d, err := NewLookupClient(h.gw, WithCache(cache, time.Hour)).Lookup(context.Background(), "101")
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `"progress"`)
	assert.Zero(t, cache.writes)
}

func TestLookup_CompleteStatus(t *testing.T) {
	h := newHarness(t)
	p := adaPerson()
	p.Status = "Complete"
	h.api.On("LookupPerson", mock.Anything, "101").Return(p, nil).Once()

	d, err := NewLookupClient(h.gw).Lookup(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, "ada@acme.com", d.RecommendedEmail)
}

func TestLookup_CacheHitSkipsAPI(t *testing.T) {
	h := newHarness(t)
	cache := &memCache{entries: map[string]*model.RawDetail{
		"101": {ID: "101", Name: "Cached Ada"},
	}}

	d, err := NewLookupClient(h.gw, WithCache(cache, time.Hour)).Lookup(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, "Cached Ada", d.Name)
	assert.Equal(t, int64(1), h.gw.Usage().CacheHits)
	assert.Zero(t, h.gw.Usage().LookupCalls)
}

func TestLookup_CacheMissStores(t *testing.T) {
	h := newHarness(t)
	h.api.On("LookupPerson", mock.Anything, "101").Return(adaPerson(), nil).Once()
	cache := &memCache{}
	l := NewLookupClient(h.gw, WithCache(cache, time.Hour))

	_, err := l.Lookup(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.writes)

	// Second lookup is served from cache; the mock allows only one call.
	d, err := l.Lookup(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", d.Name)
}

func TestLookup_CacheReadErrorFallsThrough(t *testing.T) {
	h := newHarness(t)
	h.api.On("LookupPerson", mock.Anything, "101").Return(adaPerson(), nil).Once()
	cache := &memCache{readErr: errors.New("disk full")}

	d, err := NewLookupClient(h.gw, WithCache(cache, time.Hour)).Lookup(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, "101", d.ID)
}

func TestAccount(t *testing.T) {
	h := newHarness(t)
	h.api.On("Account", mock.Anything).Return(&rocketreach.Account{ID: 1}, nil).Once()
	acct, err := h.gw.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), acct.ID)

	h2 := newHarness(t)
	h2.api.On("Account", mock.Anything).Return(nil, &rocketreach.APIError{StatusCode: 401}).Once()
	_, err = h2.gw.Account(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}
