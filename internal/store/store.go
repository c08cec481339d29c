package store

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	name_lower        TEXT NOT NULL,
	entity_type       TEXT NOT NULL,
	emails            TEXT NOT NULL DEFAULT '[]',
	aliases           TEXT NOT NULL DEFAULT '[]',
	domains           TEXT NOT NULL DEFAULT '[]',
	canonical_company  TEXT,
	canonical_title    TEXT,
	canonical_location TEXT,
	identifier_url    TEXT,
	external_id       TEXT,
	match_confidence  REAL,
	enriched_at       TEXT,
	created_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name_lower);

CREATE TABLE IF NOT EXISTS entity_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id   TEXT NOT NULL,
	event       TEXT NOT NULL,
	detail_json TEXT,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (entity_id) REFERENCES entities(id)
);

CREATE TABLE IF NOT EXISTS source_records (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	kind         TEXT NOT NULL,
	external_id  TEXT NOT NULL,
	title        TEXT,
	body         TEXT NOT NULL,
	link         TEXT,
	occurred_at  TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	UNIQUE(kind, external_id)
);
CREATE INDEX IF NOT EXISTS idx_source_occurred ON source_records(occurred_at);

CREATE TABLE IF NOT EXISTS source_entities (
	record_id  INTEGER NOT NULL,
	entity_id  TEXT NOT NULL,
	PRIMARY KEY (record_id, entity_id),
	FOREIGN KEY (record_id) REFERENCES source_records(id),
	FOREIGN KEY (entity_id) REFERENCES entities(id)
);
CREATE INDEX IF NOT EXISTS idx_source_entities_entity ON source_entities(entity_id);

CREATE TABLE IF NOT EXISTS chunks (
	record_id   INTEGER NOT NULL,
	chunk_index INTEGER NOT NULL,
	text        TEXT NOT NULL,
	embedding   BLOB,
	PRIMARY KEY (record_id, chunk_index),
	FOREIGN KEY (record_id) REFERENCES source_records(id)
);

CREATE TABLE IF NOT EXISTS brief_logs (
	id                    TEXT PRIMARY KEY,
	person                TEXT,
	company               TEXT,
	topic                 TEXT,
	meeting_at            TEXT,
	brief_json            TEXT NOT NULL,
	brief_markdown        TEXT,
	entity_lock_score     INTEGER NOT NULL,
	coverage_pct          REAL NOT NULL,
	visibility_confidence INTEGER NOT NULL,
	gate_status           TEXT NOT NULL DEFAULT 'not_run',
	mode                  TEXT NOT NULL,
	reason                TEXT,
	gate_json             TEXT,
	source_record_ids     TEXT NOT NULL DEFAULT '[]',
	evidence_json         TEXT,
	created_at            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_brief_logs_created ON brief_logs(created_at);
`

// #endregion schema

// #region store-struct
// Store persists entities, source records and brief logs in SQLite.
// Readers run concurrently; writers touching one entity are serialized.
type Store struct {
	db    *sql.DB
	locks keyedMutex
	now   func() time.Time
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{
		db:    db,
		locks: keyedMutex{m: make(map[string]*sync.Mutex)},
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region keyed-mutex
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// lock acquires the mutexes for keys in sorted order and returns the unlock.
func (k *keyedMutex) lock(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	var held []*sync.Mutex
	seen := map[string]bool{}
	for _, key := range sorted {
		if seen[key] {
			continue
		}
		seen[key] = true
		k.mu.Lock()
		m, ok := k.m[key]
		if !ok {
			m = &sync.Mutex{}
			k.m[key] = m
		}
		k.mu.Unlock()
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// #endregion keyed-mutex

// #region encoding
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion encoding
