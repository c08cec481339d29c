package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// #region types
// EntityType distinguishes people from companies.
type EntityType string

const (
	TypePerson  EntityType = "person"
	TypeCompany EntityType = "company"
)

// Entity is a canonical person or company.
type Entity struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Type              EntityType `json:"type"`
	Emails            []string   `json:"emails"`
	Aliases           []string   `json:"aliases"`
	Domains           []string   `json:"domains"`
	CanonicalCompany  string     `json:"canonical_company,omitempty"`
	CanonicalTitle    string     `json:"canonical_title,omitempty"`
	CanonicalLocation string     `json:"canonical_location,omitempty"`
	IdentifierURL     string     `json:"identifier_url,omitempty"`
	ExternalID        string     `json:"external_id,omitempty"`
	MatchConfidence   float64    `json:"match_confidence,omitempty"`
	EnrichedAt        *time.Time `json:"enriched_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Canonical holds externally verified facts about an entity.
type Canonical struct {
	Company         string
	Title           string
	Location        string
	IdentifierURL   string
	ExternalID      string
	MatchConfidence float64
}

// Event is one row of an entity's append-only audit trail.
type Event struct {
	ID         int64     `json:"id"`
	EntityID   string    `json:"entity_id"`
	Event      string    `json:"event"`
	DetailJSON string    `json:"detail_json,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// #endregion types

// #region create
// CreateEntity inserts a new entity with a fresh ID. Identifier sets are
// lower-cased, deduplicated and sorted.
func (s *Store) CreateEntity(ctx context.Context, e Entity) (Entity, error) {
	e.ID = uuid.New().String()
	e.Name = strings.TrimSpace(e.Name)
	e.Emails = normalizeSet(e.Emails)
	e.Aliases = normalizeSet(e.Aliases)
	e.Domains = normalizeSet(e.Domains)
	e.CreatedAt = s.now()

	unlock := s.locks.lock(e.ID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entity{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entities (id, name, name_lower, entity_type, emails, aliases, domains, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, strings.ToLower(e.Name), string(e.Type),
		mustJSON(e.Emails), mustJSON(e.Aliases), mustJSON(e.Domains),
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return Entity{}, fmt.Errorf("insert entity: %w", err)
	}
	if err := s.appendEvent(ctx, tx, e.ID, "created", map[string]any{
		"name": e.Name, "type": e.Type, "emails": e.Emails, "domains": e.Domains,
	}); err != nil {
		return Entity{}, err
	}
	if err := tx.Commit(); err != nil {
		return Entity{}, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

// #endregion create

// #region lookup
const entityColumns = `id, name, entity_type, emails, aliases, domains,
	canonical_company, canonical_title, canonical_location, identifier_url,
	external_id, match_confidence, enriched_at, created_at`

// GetEntity reads one entity by ID.
func (s *Store) GetEntity(ctx context.Context, id string) (Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return e, err
}

// FindByEmail returns entities whose email set contains email, oldest first.
func (s *Store) FindByEmail(ctx context.Context, email string) ([]Entity, error) {
	return s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE EXISTS (SELECT 1 FROM json_each(entities.emails) WHERE json_each.value = ?)
		 ORDER BY created_at, rowid`,
		strings.ToLower(strings.TrimSpace(email)))
}

// FindByDomain returns companies whose domain set contains domain, oldest first.
func (s *Store) FindByDomain(ctx context.Context, domain string) ([]Entity, error) {
	return s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE entity_type = ? AND EXISTS (SELECT 1 FROM json_each(entities.domains) WHERE json_each.value = ?)
		 ORDER BY created_at, rowid`,
		string(TypeCompany), strings.ToLower(strings.TrimSpace(domain)))
}

// FindByName returns entities of typ whose name or an alias equals name,
// ignoring case, oldest first.
func (s *Store) FindByName(ctx context.Context, name string, typ EntityType) ([]Entity, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	return s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE entity_type = ?
		   AND (name_lower = ? OR EXISTS (SELECT 1 FROM json_each(entities.aliases) WHERE json_each.value = ?))
		 ORDER BY created_at, rowid`,
		string(typ), lower, lower)
}

// ListEntities returns up to limit entities, newest first.
func (s *Store) ListEntities(ctx context.Context, limit int) ([]Entity, error) {
	return s.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

func (s *Store) queryEntities(ctx context.Context, query string, args ...any) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(sc scanner) (Entity, error) {
	var (
		e                                    Entity
		typ, emails, aliases, domains        string
		company, title, location, identifier sql.NullString
		externalID, enrichedAt               sql.NullString
		confidence                           sql.NullFloat64
		createdAt                            string
	)
	err := sc.Scan(&e.ID, &e.Name, &typ, &emails, &aliases, &domains,
		&company, &title, &location, &identifier,
		&externalID, &confidence, &enrichedAt, &createdAt)
	if err != nil {
		return Entity{}, err
	}
	e.Type = EntityType(typ)
	for _, col := range []struct {
		name string
		raw  string
		dst  *[]string
	}{
		{"emails", emails, &e.Emails},
		{"aliases", aliases, &e.Aliases},
		{"domains", domains, &e.Domains},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return Entity{}, fmt.Errorf("entity %s: decode %s: %w", e.ID, col.name, err)
		}
	}
	e.CanonicalCompany = company.String
	e.CanonicalTitle = title.String
	e.CanonicalLocation = location.String
	e.IdentifierURL = identifier.String
	e.ExternalID = externalID.String
	e.MatchConfidence = confidence.Float64
	if enrichedAt.Valid {
		t := parseTime(enrichedAt.String)
		e.EnrichedAt = &t
	}
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

// #endregion lookup

// #region append
// AppendIdentifiers adds emails, domains and aliases that the entity does not
// already have. Existing values are never removed or replaced. The returned
// entity reflects the stored state.
func (s *Store) AppendIdentifiers(ctx context.Context, id string, emails, domains, aliases []string) (Entity, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entity{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	e, err := scanEntity(tx.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Entity{}, fmt.Errorf("read entity: %w", err)
	}

	addEmails := missing(e.Emails, emails)
	addDomains := missing(e.Domains, domains)
	addAliases := missing(e.Aliases, aliases)
	if len(addEmails)+len(addDomains)+len(addAliases) == 0 {
		return e, nil
	}

	e.Emails = normalizeSet(append(e.Emails, addEmails...))
	e.Domains = normalizeSet(append(e.Domains, addDomains...))
	e.Aliases = normalizeSet(append(e.Aliases, addAliases...))

	_, err = tx.ExecContext(ctx,
		`UPDATE entities SET emails = ?, domains = ?, aliases = ? WHERE id = ?`,
		mustJSON(e.Emails), mustJSON(e.Domains), mustJSON(e.Aliases), id)
	if err != nil {
		return Entity{}, fmt.Errorf("update identifiers: %w", err)
	}
	if err := s.appendEvent(ctx, tx, id, "identifiers_appended", map[string]any{
		"emails": addEmails, "domains": addDomains, "aliases": addAliases,
	}); err != nil {
		return Entity{}, err
	}
	if err := tx.Commit(); err != nil {
		return Entity{}, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

// SetCanonical records externally verified facts. Empty fields leave the
// stored value unchanged.
func (s *Store) SetCanonical(ctx context.Context, id string, c Canonical) (Entity, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entity{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE entities SET
			canonical_company  = COALESCE(?, canonical_company),
			canonical_title    = COALESCE(?, canonical_title),
			canonical_location = COALESCE(?, canonical_location),
			identifier_url     = COALESCE(?, identifier_url),
			external_id        = COALESCE(?, external_id),
			match_confidence   = ?,
			enriched_at        = ?
		 WHERE id = ?`,
		nullIfEmpty(c.Company), nullIfEmpty(c.Title), nullIfEmpty(c.Location),
		nullIfEmpty(c.IdentifierURL), nullIfEmpty(c.ExternalID),
		c.MatchConfidence, formatTime(s.now()), id)
	if err != nil {
		return Entity{}, fmt.Errorf("set canonical: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Entity{}, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if err := s.appendEvent(ctx, tx, id, "enriched", c); err != nil {
		return Entity{}, err
	}
	if err := tx.Commit(); err != nil {
		return Entity{}, fmt.Errorf("commit: %w", err)
	}
	return s.GetEntity(ctx, id)
}

// #endregion append

// #region events
func (s *Store) appendEvent(ctx context.Context, tx *sql.Tx, entityID, event string, detail any) error {
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO entity_events (entity_id, event, detail_json, created_at) VALUES (?, ?, ?, ?)`,
		entityID, event, string(data), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Events returns an entity's audit trail, oldest first.
func (s *Store) Events(ctx context.Context, entityID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, event, COALESCE(detail_json, ''), created_at
		 FROM entity_events WHERE entity_id = ? ORDER BY id`, entityID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var created string
		if err := rows.Scan(&ev.ID, &ev.EntityID, &ev.Event, &ev.DetailJSON, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.CreatedAt = parseTime(created)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// #endregion events

// #region set-helpers
func normalizeSet(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func missing(have, candidates []string) []string {
	set := map[string]bool{}
	for _, h := range have {
		set[h] = true
	}
	var out []string
	for _, c := range normalizeSet(candidates) {
		if !set[c] {
			out = append(out, c)
		}
	}
	return out
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// #endregion set-helpers
