package websearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// #region fakes
type fakeProvider struct {
	calls   int32
	delay   time.Duration
	failFor map[string]error
	results map[string][]Result
}

func (f *fakeProvider) Search(ctx context.Context, query string, maxResults int) (Response, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if err, ok := f.failFor[query]; ok {
		return Response{}, err
	}
	return Response{Results: f.results[query]}, nil
}

// #endregion fakes

// #region battery-tests
func TestVisibilityQueries_Battery(t *testing.T) {
	qs := VisibilityQueries("Jane Doe", "")
	if len(qs) != 15 {
		t.Fatalf("expected 15 queries, got %d", len(qs))
	}
	seen := map[string]bool{}
	for _, q := range qs {
		if q.Intent != IntentVisibility {
			t.Errorf("unexpected intent %q", q.Intent)
		}
		if q.Subject != "Jane Doe" {
			t.Errorf("unexpected subject %q", q.Subject)
		}
		if !strings.Contains(q.Text, `"Jane Doe"`) {
			t.Errorf("query %q does not quote the subject", q.Text)
		}
		if seen[q.Text] {
			t.Errorf("duplicate query %q", q.Text)
		}
		seen[q.Text] = true
	}
	if qs[0].Family != "ted" || qs[1].Family != "tedx" {
		t.Errorf("expected ted/tedx first, got %s/%s", qs[0].Family, qs[1].Family)
	}
}

func TestVisibilityQueries_CompanyVariant(t *testing.T) {
	qs := VisibilityQueries("Jane Doe", "Acme")
	if len(qs) != 16 {
		t.Fatalf("expected 16 queries, got %d", len(qs))
	}
	last := qs[len(qs)-1]
	if !strings.Contains(last.Text, `"Acme"`) {
		t.Errorf("expected company-qualified query, got %q", last.Text)
	}
}

func TestVisibilityQueries_EmptyName(t *testing.T) {
	if qs := VisibilityQueries("  ", "Acme"); qs != nil {
		t.Errorf("expected nil, got %v", qs)
	}
}

func TestIdentityQueries(t *testing.T) {
	qs := IdentityQueries("Jane Doe", "Acme", "CTO")
	if len(qs) != 4 {
		t.Fatalf("expected 4 identity queries, got %d", len(qs))
	}
	for _, q := range qs {
		if q.Intent != IntentIdentity {
			t.Errorf("unexpected intent %q", q.Intent)
		}
	}
}

// #endregion battery-tests

// #region sweep-tests
func TestSweeper_RunKeepsOrderAndDegrades(t *testing.T) {
	boom := errors.New("upstream down")
	fp := &fakeProvider{
		failFor: map[string]error{"b": boom},
		results: map[string][]Result{"a": {{Title: "A", URL: "https://a.com"}}},
	}
	s := NewSweeper(fp, Config{Concurrency: 2, Timeout: time.Second, MaxResults: 5}, nil)
	out := s.Run(context.Background(), []Query{{Text: "a"}, {Text: "b"}, {Text: "c"}})

	if len(out) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(out))
	}
	if out[0].Err != nil || len(out[0].Response.Results) != 1 {
		t.Errorf("outcome a: %+v", out[0])
	}
	if !errors.Is(out[1].Err, boom) {
		t.Errorf("outcome b: expected upstream error, got %v", out[1].Err)
	}
	if out[2].Err != nil || len(out[2].Response.Results) != 0 {
		t.Errorf("outcome c: %+v", out[2])
	}
}

func TestSweeper_TimeoutIsEmptyOutcome(t *testing.T) {
	fp := &fakeProvider{delay: time.Second}
	s := NewSweeper(fp, Config{Concurrency: 4, Timeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	out := s.Run(context.Background(), []Query{{Text: "slow"}})
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("sweep did not honor the per-call timeout")
	}
	if !errors.Is(out[0].Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", out[0].Err)
	}
	if len(out[0].Response.Results) != 0 {
		t.Error("expected empty response on timeout")
	}
}

// #endregion sweep-tests

// #region serpapi-tests
func TestSerpAPI_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "k" {
			t.Errorf("missing api key")
		}
		if r.URL.Query().Get("q") != `"Jane Doe" TED` {
			t.Errorf("unexpected query %q", r.URL.Query().Get("q"))
		}
		w.Write([]byte(`{
			"organic_results": [
				{"title": "Jane Doe | TED", "link": "https://www.ted.com/speakers/jane_doe", "snippet": "Jane Doe is CTO of Acme"},
				{"title": "Other", "link": "https://example.com", "snippet": "x"}
			],
			"answer_box": {"snippet": "Jane Doe is a technologist."}
		}`))
	}))
	defer srv.Close()

	p, err := NewSerpAPI("k", srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := p.Search(context.Background(), `"Jane Doe" TED`, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected maxResults to cap at 1, got %d", len(resp.Results))
	}
	if resp.Results[0].URL != "https://www.ted.com/speakers/jane_doe" {
		t.Errorf("unexpected url %q", resp.Results[0].URL)
	}
	if resp.Summary != "Jane Doe is a technologist." {
		t.Errorf("unexpected summary %q", resp.Summary)
	}
}

func TestSerpAPI_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, _ := NewSerpAPI("k", srv.URL, srv.Client())
	if _, err := p.Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestSerpAPI_NoResultsIsNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "Google hasn't returned any results for this query."}`))
	}))
	defer srv.Close()

	p, _ := NewSerpAPI("k", srv.URL, srv.Client())
	resp, err := p.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("expected zero results, got %d", len(resp.Results))
	}
}

func TestNewSerpAPI_RequiresKey(t *testing.T) {
	if _, err := NewSerpAPI("", "", nil); err == nil {
		t.Fatal("expected error without api key")
	}
}

// #endregion serpapi-tests
