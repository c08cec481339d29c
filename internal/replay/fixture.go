package replay

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/briefgate/internal/graph"
	"github.com/danielpatrickdp/briefgate/internal/logging"
)

// #region fixture-types
// Fixture is the JSON file form of a set of replay cases, exported from a
// brief log so regressions can be checked without the database.
type Fixture struct {
	Description string        `json:"description"`
	Cases       []FixtureCase `json:"cases"`
}

// FixtureCase is one logged brief.
type FixtureCase struct {
	LogID    string             `json:"log_id"`
	Evidence graph.Snapshot     `json:"evidence"`
	Gate     logging.GateRecord `json:"gate"`
}

// #endregion fixture-types

// #region fixture-loader
// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// RestoreCases restores every fixture case. Nodes are re-validated on the way in.
func (f *Fixture) RestoreCases() ([]Case, error) {
	out := make([]Case, 0, len(f.Cases))
	for _, fc := range f.Cases {
		g, err := graph.Restore(fc.Evidence)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", fc.LogID, err)
		}
		out = append(out, Case{LogID: fc.LogID, Graph: g, Record: fc.Gate})
	}
	return out, nil
}

// #endregion fixture-loader

// #region log-extract
// FixtureCaseFromLog decodes the evidence snapshot and gate record of one
// brief log entry.
func FixtureCaseFromLog(entry logging.BriefLog) (FixtureCase, error) {
	fc := FixtureCase{LogID: entry.ID}
	if entry.EvidenceJSON == "" || entry.GateJSON == "" {
		return fc, fmt.Errorf("log %s: no evidence or gate record", entry.ID)
	}
	if err := json.Unmarshal([]byte(entry.EvidenceJSON), &fc.Evidence); err != nil {
		return fc, fmt.Errorf("log %s: decode evidence: %w", entry.ID, err)
	}
	if err := json.Unmarshal([]byte(entry.GateJSON), &fc.Gate); err != nil {
		return fc, fmt.Errorf("log %s: decode gate record: %w", entry.ID, err)
	}
	return fc, nil
}

// FixtureFromLogs exports up to limit logged briefs, newest first. Entries
// that cannot be decoded are skipped and counted.
func FixtureFromLogs(db *sql.DB, status string, limit int) (*Fixture, int, error) {
	entries, err := logging.ListBriefs(db, status, limit)
	if err != nil {
		return nil, 0, err
	}
	f := &Fixture{Description: fmt.Sprintf("%d brief log(s)", len(entries))}
	skipped := 0
	for _, e := range entries {
		fc, err := FixtureCaseFromLog(e)
		if err != nil {
			skipped++
			continue
		}
		f.Cases = append(f.Cases, fc)
	}
	return f, skipped, nil
}

// #endregion log-extract
