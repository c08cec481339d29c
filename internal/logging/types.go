package logging

import "time"

// #region brief-log
// BriefLog is a single row in the brief_logs table. Rows are insert-only.
type BriefLog struct {
	ID                   string    `json:"id"`
	Person               string    `json:"person,omitempty"`
	Company              string    `json:"company,omitempty"`
	Topic                string    `json:"topic,omitempty"`
	MeetingAt            string    `json:"meeting_at,omitempty"`
	BriefJSON            string    `json:"brief_json"`
	Markdown             string    `json:"markdown,omitempty"`
	EntityLockScore      int       `json:"entity_lock_score"`
	CoveragePct          float64   `json:"coverage_pct"`
	VisibilityConfidence int       `json:"visibility_confidence"`
	GateStatus           string    `json:"gate_status"` // "ok" | "halted:*" | "not_run"
	Mode                 string    `json:"mode"`
	Reason               string    `json:"reason,omitempty"`
	SourceRecordIDs      []string  `json:"source_record_ids"`
	EvidenceJSON         string    `json:"evidence_json,omitempty"` // graph snapshot
	GateJSON             string    `json:"gate_json,omitempty"`     // GateRecord
	CreatedAt            time.Time `json:"created_at"`
}

// #endregion brief-log

// #region gate-record
// GateRecord captures the complete gate evaluation inputs for one request.
// Serialized as JSON into brief_logs.gate_json for deterministic replay.
type GateRecord struct {
	Subject       string   `json:"subject"`
	Aliases       []string `json:"aliases,omitempty"`
	Emails        []string `json:"emails,omitempty"`
	Company       string   `json:"company,omitempty"`
	Title         string   `json:"title,omitempty"`
	Location      string   `json:"location,omitempty"`
	IdentifierURL string   `json:"identifier_url,omitempty"`
	DeepResearch  bool     `json:"deep_research"`

	// Exact scores as evaluated at runtime
	LockScore       int            `json:"lock_score"`
	LockSignals     []string       `json:"lock_signals"`
	Coverage        float64        `json:"coverage"`
	CoverageChecked bool           `json:"coverage_checked"`
	Thresholds      GateThresholds `json:"thresholds"`

	// Gate output
	Mode   string   `json:"mode"`
	Status string   `json:"status"`
	Vetoes []string `json:"vetoes,omitempty"`
	Reason string   `json:"reason"`

	// Diagnostics that do not change the decision
	Contradictions []Conflict  `json:"contradictions,omitempty"`
	Eval           *EvalRecord `json:"eval,omitempty"`
}

// Conflict is a subject fact stated differently by verified sources.
type Conflict struct {
	Field    string   `json:"field"`
	Expected string   `json:"expected"`
	Found    string   `json:"found"`
	Severity string   `json:"severity"`
	Sources  []string `json:"sources"`
}

// EvalRecord is the draft quality check run before the coverage gate.
type EvalRecord struct {
	Passed            bool               `json:"passed"`
	Reason            string             `json:"reason"`
	Metrics           map[string]float64 `json:"metrics"`
	DanglingCitations []string           `json:"dangling_citations,omitempty"`
}

// GateThresholds captures the gate config active at decision time.
type GateThresholds struct {
	MinExecutedQueries int     `json:"min_executed_queries"`
	MinSubjectQueries  int     `json:"min_subject_queries"`
	InferenceThreshold int     `json:"inference_threshold"`
	PartialThreshold   int     `json:"partial_threshold"`
	CoverageFull       float64 `json:"coverage_full"`
	CoveragePartial    float64 `json:"coverage_partial"`
	CoverageLow        float64 `json:"coverage_low"`
}

// #endregion gate-record
