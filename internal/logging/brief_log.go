package logging

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by GetBrief for an unknown ID.
var ErrNotFound = errors.New("brief log not found")

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// #region log-brief
// LogBrief writes a brief log to the brief_logs table and returns its ID.
func LogBrief(db *sql.DB, entry BriefLog) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.GateStatus == "" {
		entry.GateStatus = "not_run"
	}
	ids, err := json.Marshal(nonNil(entry.SourceRecordIDs))
	if err != nil {
		return "", fmt.Errorf("encode source ids: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO brief_logs (id, person, company, topic, meeting_at, brief_json, brief_markdown,
			entity_lock_score, coverage_pct, visibility_confidence, gate_status, mode, reason,
			gate_json, source_record_ids, evidence_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		nullIfEmpty(entry.Person),
		nullIfEmpty(entry.Company),
		nullIfEmpty(entry.Topic),
		nullIfEmpty(entry.MeetingAt),
		entry.BriefJSON,
		nullIfEmpty(entry.Markdown),
		entry.EntityLockScore,
		entry.CoveragePct,
		entry.VisibilityConfidence,
		entry.GateStatus,
		entry.Mode,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.GateJSON),
		string(ids),
		nullIfEmpty(entry.EvidenceJSON),
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("log brief: %w", err)
	}
	return entry.ID, nil
}

// #endregion log-brief

// #region read
const briefColumns = `id, COALESCE(person, ''), COALESCE(company, ''), COALESCE(topic, ''),
	COALESCE(meeting_at, ''), brief_json, COALESCE(brief_markdown, ''), entity_lock_score,
	coverage_pct, visibility_confidence, gate_status, mode, COALESCE(reason, ''),
	COALESCE(gate_json, ''), source_record_ids, COALESCE(evidence_json, ''), created_at`

// GetBrief reads one brief log by ID.
func GetBrief(db *sql.DB, id string) (BriefLog, error) {
	b, err := scanBrief(db.QueryRow(`SELECT `+briefColumns+` FROM brief_logs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return BriefLog{}, fmt.Errorf("brief %s: %w", id, ErrNotFound)
	}
	return b, err
}

// ListBriefs returns up to limit brief logs, newest first. An empty status
// matches every row.
func ListBriefs(db *sql.DB, status string, limit int) ([]BriefLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(
		`SELECT `+briefColumns+` FROM brief_logs
		 WHERE (? = '' OR gate_status = ?)
		 ORDER BY created_at DESC, id
		 LIMIT ?`, status, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list briefs: %w", err)
	}
	defer rows.Close()

	var out []BriefLog
	for rows.Next() {
		b, err := scanBrief(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBrief(sc scanner) (BriefLog, error) {
	var (
		b         BriefLog
		ids       string
		createdAt string
	)
	err := sc.Scan(&b.ID, &b.Person, &b.Company, &b.Topic, &b.MeetingAt, &b.BriefJSON, &b.Markdown,
		&b.EntityLockScore, &b.CoveragePct, &b.VisibilityConfidence, &b.GateStatus, &b.Mode, &b.Reason,
		&b.GateJSON, &ids, &b.EvidenceJSON, &createdAt)
	if err != nil {
		return BriefLog{}, err
	}
	if err := json.Unmarshal([]byte(ids), &b.SourceRecordIDs); err != nil {
		return BriefLog{}, fmt.Errorf("decode source ids: %w", err)
	}
	b.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return b, nil
}

// #endregion read

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// #endregion helpers
