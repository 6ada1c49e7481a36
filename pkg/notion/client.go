// Package notion reads company lists from a Notion database and writes
// discovery status back to the originating pages.
package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultRPS is Notion's average request allowance per integration.
const DefaultRPS = 3

// Client is the subset of the Notion API the company source needs.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// ClientOption configures NewClient.
type ClientOption func(*throttledClient)

// WithRateLimit replaces the DefaultRPS throttle. rps <= 0 turns throttling off.
func WithRateLimit(rps float64) ClientOption {
	return func(c *throttledClient) {
		c.limiter = newLimiter(rps)
	}
}

// throttledClient spaces calls to the SDK client with a token bucket.
type throttledClient struct {
	api     *notionapi.Client
	limiter *rate.Limiter
}

// NewClient returns a throttled Client authenticated with an integration token.
func NewClient(token string, opts ...ClientOption) Client {
	c := &throttledClient{
		api:     notionapi.NewClient(notionapi.Token(token)),
		limiter: newLimiter(DefaultRPS),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
}

func (c *throttledClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return throttled(ctx, c.limiter, "query database "+dbID, func() (*notionapi.DatabaseQueryResponse, error) {
		return c.api.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	})
}

func (c *throttledClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	return throttled(ctx, c.limiter, "update page "+pageID, func() (*notionapi.Page, error) {
		return c.api.Page.Update(ctx, notionapi.PageID(pageID), req)
	})
}

// throttled waits for a token, then runs fn and tags any error with what.
func throttled[T any](ctx context.Context, l *rate.Limiter, what string, fn func() (T, error)) (T, error) {
	var zero T
	if l != nil {
		if err := l.Wait(ctx); err != nil {
			return zero, eris.Wrap(err, "notion: throttle")
		}
	}
	v, err := fn()
	if err != nil {
		return zero, eris.Wrapf(err, "notion: %s", what)
	}
	return v, nil
}
