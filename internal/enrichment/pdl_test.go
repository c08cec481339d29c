package enrichment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestPDL(t *testing.T, h http.HandlerFunc) *PDL {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL
	cfg.RatePerMinute = 6000
	p := NewPDL(cfg, srv.Client())
	p.backoff = time.Millisecond
	return p
}

func TestPDLEnrichSuccess(t *testing.T) {
	p := newTestPDL(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		q := r.URL.Query()
		if q.Get("first_name") != "Jane" || q.Get("last_name") != "van Doe" {
			t.Errorf("name split wrong: %v", q)
		}
		if q.Get("company") != "Acme" {
			t.Errorf("company param missing: %v", q)
		}
		w.Write([]byte(`{"status":200,"likelihood":8,"data":{"id":"p1","full_name":"jane van doe",
			"job_title":"cto","job_company_name":"acme","location_name":"berlin, germany",
			"linkedin_url":"linkedin.com/in/janevandoe"}}`))
	})

	res, err := p.Enrich(context.Background(), Request{Name: "Jane van Doe", Company: "Acme"})
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if res.ExternalID != "p1" || res.Title != "cto" || res.Company != "acme" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.IdentifierURL != "https://linkedin.com/in/janevandoe" {
		t.Fatalf("expected https identifier, got %q", res.IdentifierURL)
	}
	if res.Likelihood != 8 {
		t.Fatalf("expected likelihood 8, got %v", res.Likelihood)
	}
}

func TestPDLNotFound(t *testing.T) {
	p := newTestPDL(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := p.Enrich(context.Background(), Request{Email: "nobody@example.com"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPDLRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	p := newTestPDL(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"status":200,"data":{"id":"p2","full_name":"x"}}`))
	})
	res, err := p.Enrich(context.Background(), Request{Email: "x@example.com"})
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if res.ExternalID != "p2" || calls.Load() != 3 {
		t.Fatalf("expected success on third call, got %+v after %d calls", res, calls.Load())
	}
}

func TestPDLRetriesExhausted(t *testing.T) {
	p := newTestPDL(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := p.Enrich(context.Background(), Request{Email: "x@example.com"})
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestPDLRequiresIdentifiers(t *testing.T) {
	p := newTestPDL(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := p.Enrich(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}
