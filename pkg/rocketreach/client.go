// Package rocketreach provides a client for the RocketReach people-search API.
package rocketreach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.rocketreach.co/api/v2"

// Client defines the RocketReach operations used by this application.
type Client interface {
	// Account returns the authenticated account. Used as a credential and
	// connectivity preflight.
	Account(ctx context.Context) (*Account, error)
	// SearchPeople runs one batched person search.
	SearchPeople(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	// LookupPerson fetches full profile detail for a profile id.
	LookupPerson(ctx context.Context, id string) (*Person, error)
}

// Account is the subset of GET /account the client reads.
type Account struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	State string `json:"state"`
}

// Query holds the search facets. Every facet is a list; values within a facet
// are OR-ed by the API.
type Query struct {
	CurrentEmployerDomain []string `json:"current_employer_domain,omitempty"`
	CurrentTitle          []string `json:"current_title,omitempty"`
	Department            []string `json:"department,omitempty"`
	Skills                []string `json:"skills,omitempty"`
	ManagementLevels      []string `json:"management_levels,omitempty"`
	Geo                   []string `json:"geo,omitempty"`
	ExcludeCurrentTitle   []string `json:"exclude_current_title,omitempty"`
}

// SearchRequest is the body for POST /person/search.
type SearchRequest struct {
	Query    Query `json:"query"`
	Start    int   `json:"start"`
	PageSize int   `json:"page_size"`
}

// SearchResponse is the response from POST /person/search.
type SearchResponse struct {
	Profiles   []Profile  `json:"profiles"`
	Pagination Pagination `json:"pagination"`
}

// Profile is a person summary returned by search.
type Profile struct {
	ID           ID       `json:"id"`
	Name         string   `json:"name"`
	CurrentTitle string   `json:"current_title"`
	LinkedInURL  string   `json:"linkedin_url"`
	Skills       []string `json:"skills"`
}

// Pagination reports the position of a search page.
type Pagination struct {
	Start int `json:"start"`
	Next  int `json:"next"`
	Total int `json:"total"`
}

// Person is the response from GET /person/lookup.
type Person struct {
	ID                           ID      `json:"id"`
	Status                       string  `json:"status"`
	Name                         string  `json:"name"`
	CurrentTitle                 string  `json:"current_title"`
	LinkedInURL                  string  `json:"linkedin_url"`
	RecommendedProfessionalEmail string  `json:"recommended_professional_email"`
	CurrentWorkEmail             string  `json:"current_work_email"`
	Emails                       []Email `json:"emails"`
}

// Complete reports whether the lookup has finished. The API answers with
// "searching" or "progress" while it is still resolving contact detail; an
// absent status is treated as complete.
func (p *Person) Complete() bool {
	return p.Status == "" || strings.EqualFold(p.Status, "complete")
}

// Email is one address attached to a person.
type Email struct {
	Email     string `json:"email"`
	Type      string `json:"type"`
	Grade     string `json:"grade"`
	SMTPValid string `json:"smtp_valid"`
}

// ID is a profile identifier. The API returns it as a number; it is kept as
// a string so callers treat it as opaque.
type ID string

// UnmarshalJSON accepts both numeric and string ids.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*id = ID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// APIError is returned for any non-success HTTP status.
type APIError struct {
	StatusCode int
	Message    string
	// RetryAfter is the server's suggested wait on 429 responses, taken from
	// the JSON "wait" field first and the Retry-After header second. Zero when
	// neither is present.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rocketreach: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsThrottled reports whether err is a 429 from the API and returns its wait hint.
func IsThrottled(err error) (time.Duration, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return apiErr.RetryAfter, true
	}
	return 0, false
}

// IsUnauthorized reports whether err is a 401 or 403 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithNow overrides the clock used to interpret HTTP-date Retry-After values.
func WithNow(now func() time.Time) Option {
	return func(c *httpClient) {
		c.now = now
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	now     func() time.Time
}

// NewClient creates a RocketReach API client. The client performs exactly one
// HTTP call per method invocation; rate limiting and retries belong to callers.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		now: time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Account(ctx context.Context) (*Account, error) {
	var acct Account
	if err := c.do(ctx, http.MethodGet, "/account", nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (c *httpClient) SearchPeople(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Start <= 0 {
		req.Start = 1
	}
	var resp SearchResponse
	if err := c.do(ctx, http.MethodPost, "/person/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) LookupPerson(ctx context.Context, id string) (*Person, error) {
	if id == "" {
		return nil, eris.New("rocketreach: lookup: empty id")
	}
	var p Person
	path := "/person/lookup?" + url.Values{"id": {id}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "rocketreach: marshal request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrap(err, "rocketreach: create request")
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "rocketreach: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "rocketreach: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(resp, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "rocketreach: unmarshal response")
	}
	return nil
}

// errorBody covers the error shapes the API uses.
type errorBody struct {
	Detail  string   `json:"detail"`
	Message string   `json:"message"`
	Error   string   `json:"error"`
	Wait    *float64 `json:"wait"`
}

func (c *httpClient) apiError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		apiErr.Message = firstNonEmpty(eb.Detail, eb.Message, eb.Error)
	}
	if apiErr.Message == "" {
		apiErr.Message = truncate(strings.TrimSpace(string(body)), 200)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if eb.Wait != nil && *eb.Wait > 0 {
			apiErr.RetryAfter = time.Duration(*eb.Wait * float64(time.Second))
		} else {
			apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		}
	}
	return apiErr
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Returns 0 if absent
// or unparseable.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
