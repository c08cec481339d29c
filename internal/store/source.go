package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// #region types
// Kind is the type of an internal source record.
type Kind string

const (
	KindMeeting Kind = "meeting"
	KindEmail   Kind = "email"
	KindPDF     Kind = "pdf"
)

// Valid reports whether k is a known record kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMeeting, KindEmail, KindPDF:
		return true
	}
	return false
}

// Chunk is a retrieval unit of a record's body.
type Chunk struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// SourceRecord is an internal record (meeting transcript, email, PDF)
// linked to one or more entities.
type SourceRecord struct {
	ID         int64     `json:"id"`
	EntityIDs  []string  `json:"entity_ids"`
	Kind       Kind      `json:"kind"`
	ExternalID string    `json:"external_id"`
	Title      string    `json:"title,omitempty"`
	Body       string    `json:"body"`
	Link       string    `json:"link,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Chunks     []Chunk   `json:"chunks,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Snapshot pins a point-in-time view of source records. Records appended
// after the snapshot are invisible to reads made with it.
type Snapshot struct {
	Version int64
}

// #endregion types

// #region append
// AppendSourceRecord stores a record and its chunks. Records are unique on
// (kind, external_id); a duplicate returns the stored record and created=false
// after linking any entities it was not yet linked to. The content of an
// existing record is never modified.
func (s *Store) AppendSourceRecord(ctx context.Context, r SourceRecord) (SourceRecord, bool, error) {
	if !r.Kind.Valid() {
		return SourceRecord{}, false, fmt.Errorf("invalid record kind %q", r.Kind)
	}
	if strings.TrimSpace(r.ExternalID) == "" {
		return SourceRecord{}, false, errors.New("record external id is required")
	}

	unlock := s.locks.lock(r.EntityIDs...)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SourceRecord{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM source_records WHERE kind = ? AND external_id = ?`,
		string(r.Kind), r.ExternalID).Scan(&existing)
	switch {
	case err == nil:
		if err := linkEntities(ctx, tx, existing, r.EntityIDs); err != nil {
			return SourceRecord{}, false, err
		}
		if err := tx.Commit(); err != nil {
			return SourceRecord{}, false, fmt.Errorf("commit: %w", err)
		}
		stored, err := s.GetSourceRecord(ctx, existing)
		return stored, false, err
	case !errors.Is(err, sql.ErrNoRows):
		return SourceRecord{}, false, fmt.Errorf("check duplicate: %w", err)
	}

	r.CreatedAt = s.now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO source_records (kind, external_id, title, body, link, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.Kind), r.ExternalID, nullIfEmpty(r.Title), r.Body, nullIfEmpty(r.Link),
		formatTime(r.OccurredAt), formatTime(r.CreatedAt))
	if err != nil {
		return SourceRecord{}, false, fmt.Errorf("insert record: %w", err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return SourceRecord{}, false, fmt.Errorf("record id: %w", err)
	}

	if err := linkEntities(ctx, tx, r.ID, r.EntityIDs); err != nil {
		return SourceRecord{}, false, err
	}
	for _, c := range r.Chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (record_id, chunk_index, text, embedding) VALUES (?, ?, ?, ?)`,
			r.ID, c.Index, c.Text, encodeVector(c.Embedding)); err != nil {
			return SourceRecord{}, false, fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return SourceRecord{}, false, fmt.Errorf("commit: %w", err)
	}
	return r, true, nil
}

func linkEntities(ctx context.Context, tx *sql.Tx, recordID int64, entityIDs []string) error {
	for _, id := range entityIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO source_entities (record_id, entity_id) VALUES (?, ?)`,
			recordID, id); err != nil {
			return fmt.Errorf("link entity %s: %w", id, err)
		}
	}
	return nil
}

// #endregion append

// #region read
// Snapshot returns the current read version.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM source_records`).Scan(&v); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return Snapshot{Version: v.Int64}, nil
}

// GetSourceRecord reads one record with its entity links and chunks.
func (s *Store) GetSourceRecord(ctx context.Context, id int64) (SourceRecord, error) {
	recs, err := s.queryRecords(ctx,
		`SELECT id, kind, external_id, COALESCE(title, ''), body, COALESCE(link, ''), occurred_at, created_at
		 FROM source_records WHERE id = ?`, id)
	if err != nil {
		return SourceRecord{}, err
	}
	if len(recs) == 0 {
		return SourceRecord{}, fmt.Errorf("source record %d: %w", id, ErrNotFound)
	}
	return recs[0], nil
}

// FindSourceRecord reads the record stored under (kind, externalID).
func (s *Store) FindSourceRecord(ctx context.Context, kind Kind, externalID string) (SourceRecord, error) {
	recs, err := s.queryRecords(ctx,
		`SELECT id, kind, external_id, COALESCE(title, ''), body, COALESCE(link, ''), occurred_at, created_at
		 FROM source_records WHERE kind = ? AND external_id = ?`, string(kind), externalID)
	if err != nil {
		return SourceRecord{}, err
	}
	if len(recs) == 0 {
		return SourceRecord{}, fmt.Errorf("source record %s/%s: %w", kind, externalID, ErrNotFound)
	}
	return recs[0], nil
}

// RecordsInWindow returns records linked to any of entityIDs that occurred at
// or after since and are visible in snap, newest first.
func (s *Store) RecordsInWindow(ctx context.Context, entityIDs []string, since time.Time, snap Snapshot) ([]SourceRecord, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(entityIDs)), ",")
	args := make([]any, 0, len(entityIDs)+2)
	for _, id := range entityIDs {
		args = append(args, id)
	}
	args = append(args, formatTime(since), snap.Version)

	return s.queryRecords(ctx,
		`SELECT DISTINCT r.id, r.kind, r.external_id, COALESCE(r.title, ''), r.body, COALESCE(r.link, ''), r.occurred_at, r.created_at
		 FROM source_records r
		 JOIN source_entities se ON se.record_id = r.id
		 WHERE se.entity_id IN (`+placeholders+`)
		   AND r.occurred_at >= ?
		   AND r.id <= ?
		 ORDER BY r.occurred_at DESC, r.id DESC`, args...)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	var out []SourceRecord
	for rows.Next() {
		var (
			r                  SourceRecord
			kind, occ, created string
		)
		if err := rows.Scan(&r.ID, &kind, &r.ExternalID, &r.Title, &r.Body, &r.Link, &occ, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Kind = Kind(kind)
		r.OccurredAt = parseTime(occ)
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].EntityIDs, err = s.recordEntities(ctx, out[i].ID); err != nil {
			return nil, err
		}
		if out[i].Chunks, err = s.recordChunks(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) recordEntities(ctx context.Context, recordID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id FROM source_entities WHERE record_id = ? ORDER BY entity_id`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query record entities: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) recordChunks(ctx context.Context, recordID int64) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_index, text, embedding FROM chunks WHERE record_id = ? ORDER BY chunk_index`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()
	var out []Chunk
	for rows.Next() {
		var c Chunk
		var emb []byte
		if err := rows.Scan(&c.Index, &c.Text, &emb); err != nil {
			return nil, err
		}
		c.Embedding = decodeVector(emb)
		out = append(out, c)
	}
	return out, rows.Err()
}

// #endregion read
