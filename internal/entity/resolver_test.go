package entity

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/danielpatrickdp/briefgate/internal/enrichment"
	"github.com/danielpatrickdp/briefgate/internal/store"
)

func tempStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// #region resolve
func TestResolveCreatesThenMatches(t *testing.T) {
	r := NewResolver(tempStore(t), nil)
	ctx := context.Background()

	created, err := r.Resolve(ctx, Query{Name: "Jane Doe", Email: "jane@acme.com"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if created.Type != store.TypePerson {
		t.Fatalf("expected person, got %s", created.Type)
	}
	if len(created.Aliases) != 1 || created.Aliases[0] != "jane doe" {
		t.Fatalf("expected lower-cased name alias, got %v", created.Aliases)
	}

	again, err := r.Resolve(ctx, Query{Name: "J. Doe", Email: "JANE@acme.com"})
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if again.ID != created.ID {
		t.Fatalf("expected email match to return %s, got %s", created.ID, again.ID)
	}
	if len(again.Aliases) != 2 {
		t.Fatalf("expected new alias appended, got %v", again.Aliases)
	}
}

func TestResolveEmailBeatsName(t *testing.T) {
	s := tempStore(t)
	r := NewResolver(s, nil)
	ctx := context.Background()

	byName, _ := s.CreateEntity(ctx, store.Entity{Name: "Jane Doe", Type: store.TypePerson})
	byEmail, _ := s.CreateEntity(ctx, store.Entity{Name: "Jane D.", Type: store.TypePerson, Emails: []string{"jane@acme.com"}})

	got, err := r.Resolve(ctx, Query{Name: "Jane Doe", Email: "jane@acme.com"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != byEmail.ID {
		t.Fatalf("expected email match %s, got %s (name match %s)", byEmail.ID, got.ID, byName.ID)
	}
}

func TestResolveNameTieBreaksOldest(t *testing.T) {
	s := tempStore(t)
	r := NewResolver(s, nil)
	ctx := context.Background()

	first, _ := s.CreateEntity(ctx, store.Entity{Name: "Sam Lee", Type: store.TypePerson})
	s.CreateEntity(ctx, store.Entity{Name: "sam lee", Type: store.TypePerson})

	got, err := r.Resolve(ctx, Query{Name: "SAM LEE"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected oldest %s, got %s", first.ID, got.ID)
	}
}

func TestResolveCompanyByDomain(t *testing.T) {
	s := tempStore(t)
	r := NewResolver(s, nil)
	ctx := context.Background()

	acme, _ := s.CreateEntity(ctx, store.Entity{Name: "Acme Corporation", Type: store.TypeCompany, Domains: []string{"acme.com"}})

	got, err := r.Resolve(ctx, Query{Name: "ACME", Domain: "www.Acme.com", Type: store.TypeCompany})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != acme.ID {
		t.Fatalf("expected domain match, got %+v", got)
	}

	// Domain is ignored for people.
	person, _ := r.Resolve(ctx, Query{Name: "Pat", Domain: "acme.com"})
	if person.ID == acme.ID {
		t.Fatal("person lookup must not match by company domain")
	}
}

func TestResolveMalformedEmailTreatedAsAbsent(t *testing.T) {
	r := NewResolver(tempStore(t), nil)
	e, err := r.Resolve(context.Background(), Query{Name: "Jane Doe", Email: "not-an-email"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(e.Emails) != 0 {
		t.Fatalf("malformed email must not be stored, got %v", e.Emails)
	}
}

func TestResolveRequiresIdentifier(t *testing.T) {
	r := NewResolver(tempStore(t), nil)
	if _, err := r.Resolve(context.Background(), Query{Email: "bad"}); err == nil {
		t.Fatal("expected error with no usable identifier")
	}
}

func TestResolveConcurrentAppends(t *testing.T) {
	s := tempStore(t)
	r := NewResolver(s, nil)
	ctx := context.Background()
	base, _ := r.Resolve(ctx, Query{Name: "Jane Doe"})

	var wg sync.WaitGroup
	for _, em := range []string{"a@acme.com", "b@acme.com", "c@acme.com"} {
		wg.Add(1)
		go func(em string) {
			defer wg.Done()
			if _, err := r.Resolve(ctx, Query{Name: "Jane Doe", Email: em}); err != nil {
				t.Errorf("Resolve: %v", err)
			}
		}(em)
	}
	wg.Wait()

	got, _ := s.GetEntity(ctx, base.ID)
	if len(got.Emails) != 3 {
		t.Fatalf("expected all emails appended, got %v", got.Emails)
	}
}

// #endregion resolve

// #region enrich
func TestEnrichSetsCanonical(t *testing.T) {
	r := NewResolver(tempStore(t), nil)
	ctx := context.Background()
	e, _ := r.Resolve(ctx, Query{Name: "Jane Doe"})

	got, err := r.Enrich(ctx, e.ID, enrichment.Result{
		ExternalID: "p1", Company: "Acme", Title: "CTO",
		IdentifierURL: "https://linkedin.com/in/janedoe", Likelihood: 9,
	})
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if got.CanonicalCompany != "Acme" || got.IdentifierURL == "" || got.ExternalID != "p1" {
		t.Fatalf("canonical fields not set: %+v", got)
	}
}

// #endregion enrich

// #region normalize
func TestNormalizeEmailAndDomain(t *testing.T) {
	cases := map[string]string{
		"Jane@Acme.com":            "jane@acme.com",
		"Jane Doe <jane@acme.com>": "jane@acme.com",
		"jane@localhost":           "",
		"jane":                     "",
		"":                         "",
	}
	for in, want := range cases {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
	domains := map[string]string{
		"WWW.Acme.COM": "acme.com",
		"acme":         "",
		"-bad.com":     "",
		"a_b.com":      "",
	}
	for in, want := range domains {
		if got := NormalizeDomain(in); got != want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

// #endregion normalize
