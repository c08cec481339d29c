package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// #region entities
func TestCreateAndGetEntity(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	e, err := s.CreateEntity(ctx, Entity{
		Name:   " Jane Doe ",
		Type:   TypePerson,
		Emails: []string{"Jane@Acme.com", "jane@acme.com"},
	})
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	if e.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if e.Name != "Jane Doe" {
		t.Fatalf("expected trimmed name, got %q", e.Name)
	}
	if len(e.Emails) != 1 || e.Emails[0] != "jane@acme.com" {
		t.Fatalf("expected one lower-cased email, got %v", e.Emails)
	}

	got, err := s.GetEntity(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got.Name != e.Name || got.Type != TypePerson {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	events, err := s.Events(ctx, e.ID)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 || events[0].Event != "created" {
		t.Fatalf("expected one created event, got %+v", events)
	}
}

func TestGetEntityNotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetEntity(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByEmailDomainAndName(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	person, _ := s.CreateEntity(ctx, Entity{Name: "Jane Doe", Type: TypePerson, Emails: []string{"jane@acme.com"}, Aliases: []string{"J. Doe"}})
	company, _ := s.CreateEntity(ctx, Entity{Name: "Acme Corp", Type: TypeCompany, Domains: []string{"acme.com"}})

	byEmail, err := s.FindByEmail(ctx, "JANE@acme.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if len(byEmail) != 1 || byEmail[0].ID != person.ID {
		t.Fatalf("expected person by email, got %+v", byEmail)
	}

	byDomain, err := s.FindByDomain(ctx, "acme.com")
	if err != nil {
		t.Fatalf("FindByDomain: %v", err)
	}
	if len(byDomain) != 1 || byDomain[0].ID != company.ID {
		t.Fatalf("expected company by domain, got %+v", byDomain)
	}

	byAlias, err := s.FindByName(ctx, "j. doe", TypePerson)
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if len(byAlias) != 1 || byAlias[0].ID != person.ID {
		t.Fatalf("expected person by alias, got %+v", byAlias)
	}

	wrongType, _ := s.FindByName(ctx, "Jane Doe", TypeCompany)
	if len(wrongType) != 0 {
		t.Fatalf("expected no company named Jane Doe, got %d", len(wrongType))
	}
}

func TestAppendIdentifiersNeverRemoves(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	e, _ := s.CreateEntity(ctx, Entity{Name: "Jane Doe", Type: TypePerson, Emails: []string{"jane@acme.com"}})

	updated, err := s.AppendIdentifiers(ctx, e.ID, []string{"jane@personal.io", "jane@acme.com"}, nil, []string{"Janie"})
	if err != nil {
		t.Fatalf("AppendIdentifiers: %v", err)
	}
	if len(updated.Emails) != 2 {
		t.Fatalf("expected 2 emails, got %v", updated.Emails)
	}
	if len(updated.Aliases) != 1 || updated.Aliases[0] != "janie" {
		t.Fatalf("expected alias janie, got %v", updated.Aliases)
	}

	// Nothing new: no event written.
	if _, err := s.AppendIdentifiers(ctx, e.ID, []string{"jane@acme.com"}, nil, nil); err != nil {
		t.Fatalf("AppendIdentifiers (noop): %v", err)
	}
	events, _ := s.Events(ctx, e.ID)
	if len(events) != 2 {
		t.Fatalf("expected created + one append event, got %d", len(events))
	}
}

func TestAppendIdentifiersConcurrent(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	e, _ := s.CreateEntity(ctx, Entity{Name: "Jane Doe", Type: TypePerson})

	emails := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com"}
	var wg sync.WaitGroup
	for _, em := range emails {
		wg.Add(1)
		go func(em string) {
			defer wg.Done()
			if _, err := s.AppendIdentifiers(ctx, e.ID, []string{em}, nil, nil); err != nil {
				t.Errorf("AppendIdentifiers %s: %v", em, err)
			}
		}(em)
	}
	wg.Wait()

	got, _ := s.GetEntity(ctx, e.ID)
	if len(got.Emails) != len(emails) {
		t.Fatalf("expected %d emails after concurrent appends, got %v", len(emails), got.Emails)
	}
}

func TestSetCanonical(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	e, _ := s.CreateEntity(ctx, Entity{Name: "Jane Doe", Type: TypePerson})

	got, err := s.SetCanonical(ctx, e.ID, Canonical{
		Company:         "Acme Corp",
		Title:           "VP Engineering",
		IdentifierURL:   "https://linkedin.com/in/janedoe",
		MatchConfidence: 0.9,
	})
	if err != nil {
		t.Fatalf("SetCanonical: %v", err)
	}
	if got.CanonicalCompany != "Acme Corp" || got.IdentifierURL == "" {
		t.Fatalf("canonical not stored: %+v", got)
	}
	if got.EnrichedAt == nil {
		t.Fatal("expected enriched_at to be set")
	}

	// Empty fields keep stored values.
	got, _ = s.SetCanonical(ctx, e.ID, Canonical{Location: "Berlin"})
	if got.CanonicalCompany != "Acme Corp" || got.CanonicalLocation != "Berlin" {
		t.Fatalf("expected merge, got %+v", got)
	}

	if _, err := s.SetCanonical(ctx, "missing", Canonical{Company: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetEntityRejectsCorruptIdentifiers(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	e, err := s.CreateEntity(ctx, Entity{Name: "Jane Doe", Type: TypePerson, Emails: []string{"jane@acme.com"}})
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	if _, err := s.DB().ExecContext(ctx, `UPDATE entities SET emails = ? WHERE id = ?`, `["jane@acme.com"`, e.ID); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	_, err = s.GetEntity(ctx, e.ID)
	if err == nil || !strings.Contains(err.Error(), "decode emails") {
		t.Fatalf("expected decode error, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("a corrupt row is not a missing row")
	}
	if _, err := s.FindByName(ctx, "Jane Doe", TypePerson); err == nil {
		t.Error("expected lookups over the corrupt row to fail")
	}
}

// #endregion entities

// #region source-records
func TestAppendSourceRecordDedup(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	e, _ := s.CreateEntity(ctx, Entity{Name: "Jane Doe", Type: TypePerson})

	rec := SourceRecord{
		EntityIDs:  []string{e.ID},
		Kind:       KindMeeting,
		ExternalID: "mtg-1",
		Title:      "Quarterly sync",
		Body:       "Jane discussed the roadmap.",
		OccurredAt: time.Now().Add(-24 * time.Hour),
		Chunks:     []Chunk{{Index: 0, Text: "Jane discussed the roadmap.", Embedding: []float32{0.1, 0.2, 0.3}}},
	}
	first, created, err := s.AppendSourceRecord(ctx, rec)
	if err != nil {
		t.Fatalf("AppendSourceRecord: %v", err)
	}
	if !created || first.ID == 0 {
		t.Fatalf("expected created record, got created=%v id=%d", created, first.ID)
	}

	rec.Body = "changed"
	second, created, err := s.AppendSourceRecord(ctx, rec)
	if err != nil {
		t.Fatalf("AppendSourceRecord (dup): %v", err)
	}
	if created {
		t.Fatal("expected duplicate to report created=false")
	}
	if second.ID != first.ID || second.Body != "Jane discussed the roadmap." {
		t.Fatalf("duplicate must return the stored record unchanged, got %+v", second)
	}
	if len(second.Chunks) != 1 || len(second.Chunks[0].Embedding) != 3 {
		t.Fatalf("expected chunk with embedding, got %+v", second.Chunks)
	}
	if second.Chunks[0].Embedding[1] != float32(0.2) {
		t.Fatalf("embedding round trip: got %v", second.Chunks[0].Embedding)
	}
}

func TestAppendSourceRecordDuplicateLinksNewEntities(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	jane, _ := s.CreateEntity(ctx, Entity{Name: "Jane Doe", Type: TypePerson})
	john, _ := s.CreateEntity(ctx, Entity{Name: "John Roe", Type: TypePerson})

	rec := SourceRecord{
		EntityIDs:  []string{jane.ID},
		Kind:       KindEmail,
		ExternalID: "msg-1",
		Body:       "Renewal terms attached.",
		OccurredAt: time.Now().Add(-time.Hour),
	}
	first, _, err := s.AppendSourceRecord(ctx, rec)
	if err != nil {
		t.Fatalf("AppendSourceRecord: %v", err)
	}

	rec.EntityIDs = []string{jane.ID, john.ID}
	second, created, err := s.AppendSourceRecord(ctx, rec)
	if err != nil {
		t.Fatalf("AppendSourceRecord (dup): %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected the stored record back, got created=%v id=%d", created, second.ID)
	}
	if len(second.EntityIDs) != 2 {
		t.Fatalf("expected both participants linked, got %v", second.EntityIDs)
	}

	snap, _ := s.Snapshot(ctx)
	got, err := s.RecordsInWindow(ctx, []string{john.ID}, time.Now().Add(-24*time.Hour), snap)
	if err != nil {
		t.Fatalf("RecordsInWindow: %v", err)
	}
	if len(got) != 1 || got[0].ID != first.ID {
		t.Errorf("expected the record visible to the new participant, got %+v", got)
	}
}

func TestFindSourceRecord(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	if _, err := s.FindSourceRecord(ctx, KindMeeting, "mtg-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	stored, _, err := s.AppendSourceRecord(ctx, SourceRecord{Kind: KindMeeting, ExternalID: "mtg-1", Body: "Sync.", OccurredAt: time.Now()})
	if err != nil {
		t.Fatalf("AppendSourceRecord: %v", err)
	}
	got, err := s.FindSourceRecord(ctx, KindMeeting, "mtg-1")
	if err != nil || got.ID != stored.ID {
		t.Fatalf("expected record %d, got %+v (%v)", stored.ID, got, err)
	}
	if _, err := s.FindSourceRecord(ctx, KindEmail, "mtg-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("kind is part of the key, got %v", err)
	}
}

func TestAppendSourceRecordValidation(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	if _, _, err := s.AppendSourceRecord(ctx, SourceRecord{Kind: "fax", ExternalID: "x"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, _, err := s.AppendSourceRecord(ctx, SourceRecord{Kind: KindEmail}); err == nil {
		t.Fatal("expected error for missing external id")
	}
}

func TestRecordsInWindowRespectsSnapshot(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	e, _ := s.CreateEntity(ctx, Entity{Name: "Jane Doe", Type: TypePerson})
	other, _ := s.CreateEntity(ctx, Entity{Name: "John Roe", Type: TypePerson})
	now := time.Now()

	mk := func(ext string, owner string, age time.Duration) {
		t.Helper()
		_, _, err := s.AppendSourceRecord(ctx, SourceRecord{
			EntityIDs: []string{owner}, Kind: KindEmail, ExternalID: ext,
			Body: "body " + ext, OccurredAt: now.Add(-age),
		})
		if err != nil {
			t.Fatalf("append %s: %v", ext, err)
		}
	}
	mk("recent", e.ID, 24*time.Hour)
	mk("old", e.ID, 200*24*time.Hour)
	mk("other", other.ID, time.Hour)

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	mk("after-snapshot", e.ID, time.Hour)

	since := now.Add(-90 * 24 * time.Hour)
	recs, err := s.RecordsInWindow(ctx, []string{e.ID}, since, snap)
	if err != nil {
		t.Fatalf("RecordsInWindow: %v", err)
	}
	if len(recs) != 1 || recs[0].ExternalID != "recent" {
		t.Fatalf("expected only the recent record, got %+v", recs)
	}

	latest, _ := s.Snapshot(ctx)
	recs, _ = s.RecordsInWindow(ctx, []string{e.ID}, since, latest)
	if len(recs) != 2 || recs[0].ExternalID != "after-snapshot" {
		t.Fatalf("expected two records newest first, got %+v", recs)
	}
}

// #endregion source-records
