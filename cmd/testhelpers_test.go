package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jomei/notionapi"

	"github.com/sells-group/contact-finder/internal/config"
	"github.com/sells-group/contact-finder/pkg/rocketreach"
)

// fakeAPI serves a tiny people-search API: acme.com has two people matching
// any title search; every other company and stage returns nothing.
type fakeAPI struct {
	srv       *httptest.Server
	accounts  atomic.Int64
	searches  atomic.Int64
	lookups   atomic.Int64
	rejectKey atomic.Bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /account", func(w http.ResponseWriter, r *http.Request) {
		f.accounts.Add(1)
		if f.rejectKey.Load() || r.Header.Get("Api-Key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid API key."}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":7,"email":"ops@example.com","state":"registered"}`))
	})
	mux.HandleFunc("POST /person/search", func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		var req rocketreach.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp := rocketreach.SearchResponse{}
		q := req.Query
		if len(q.CurrentEmployerDomain) == 1 && q.CurrentEmployerDomain[0] == "acme.com" && len(q.CurrentTitle) > 0 {
			resp.Profiles = []rocketreach.Profile{
				{ID: "1", Name: "Ada Lovelace", CurrentTitle: "CFO"},
				{ID: "2", Name: "Alan Turing", CurrentTitle: "VP Strategy"},
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /person/lookup", func(w http.ResponseWriter, r *http.Request) {
		f.lookups.Add(1)
		switch r.URL.Query().Get("id") {
		case "1":
			_, _ = w.Write([]byte(`{"id":1,"name":"Ada Lovelace","current_title":"CFO","linkedin_url":"https://linkedin.com/in/ada",
				"recommended_professional_email":"ada@acme.com",
				"emails":[{"email":"ada@acme.com","type":"professional","grade":"A","smtp_valid":"valid"}]}`))
		case "2":
			_, _ = w.Write([]byte(`{"id":2,"name":"Alan Turing","current_title":"VP Strategy",
				"emails":[{"email":"alan@acme.com","type":"professional","grade":"B","smtp_valid":"valid"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// useTestConfig points the global config at api with fast pacing and no cache.
func useTestConfig(t *testing.T, api *fakeAPI) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		RocketReach: config.RocketReachConfig{Key: "test-key", BaseURL: api.srv.URL, TimeoutSecs: 5},
		RateLimit:   config.RateLimitConfig{PerSecond: 1000, DefaultWaitSecs: 1},
		Retry:       config.RetryConfig{MaxAttempts: 1, InitialBackoffMs: 1, MaxBackoffMs: 1},
		Breaker:     config.BreakerConfig{FailureThreshold: 5, ResetTimeoutSecs: 1},
		Search:      config.SearchConfig{PageSize: 10},
		Discovery:   config.DiscoveryConfig{Quota: 3},
		Runner:      config.RunnerConfig{Concurrency: 1},
		Store:       config.StoreConfig{Driver: "none", LookupTTLHours: 720},
		Notion:      config.NotionConfig{DomainProperty: "URL"},
		Server:      config.ServerConfig{Port: 8080},
		Log:         config.LogConfig{Level: "info", Format: "json"},
	}
	cfg.Pricing.RocketReach.PerLookup = 0.5
	t.Cleanup(func() { cfg = prev })
}

// fakeNotion is an in-memory notion.Client.
type fakeNotion struct {
	mu      sync.Mutex
	pages   []notionapi.Page
	updates map[string]string
}

func (f *fakeNotion) QueryDatabase(_ context.Context, _ string, _ *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{Results: f.pages}, nil
}

func (f *fakeNotion) UpdatePage(_ context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = map[string]string{}
	}
	for _, p := range req.Properties {
		if rt, ok := p.(notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			f.updates[pageID] = rt.RichText[0].Text.Content
		}
	}
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}
