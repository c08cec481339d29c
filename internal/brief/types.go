// Package brief runs one evidence-gated brief request end to end.
package brief

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/briefgate/internal/eval"
	"github.com/danielpatrickdp/briefgate/internal/gate"
	"github.com/danielpatrickdp/briefgate/internal/graph"
	"github.com/danielpatrickdp/briefgate/internal/signals"
	"github.com/danielpatrickdp/briefgate/internal/synthesis"
)

// #region errors
// ErrMalformedInput rejects a request that names no subject or carries an
// unusable field.
var ErrMalformedInput = errors.New("malformed input")

// #endregion errors

// #region request
// Request describes the meeting a brief is prepared for. At least one of
// Person, Email, Company or Domain must be set. Title, Location and
// IdentifierURL are facts the caller already holds about the person.
type Request struct {
	Person        string `json:"person,omitempty"`
	Email         string `json:"email,omitempty"`
	Company       string `json:"company,omitempty"`
	Domain        string `json:"domain,omitempty"`
	Title         string `json:"title,omitempty"`
	Location      string `json:"location,omitempty"`
	IdentifierURL string `json:"identifier_url,omitempty"`
	Topic         string `json:"topic,omitempty"`
	MeetingAt     string `json:"meeting_at,omitempty"` // RFC 3339 or "2006-01-02 15:04"
	DeepResearch  bool   `json:"deep_research"`
	WindowDays    int    `json:"window_days,omitempty"` // 0 uses the retrieval default
}

// #endregion request

// #region result
// Result is the gated brief. Sections is empty whenever Mode is HALTED.
type Result struct {
	Mode                 gate.Mode               `json:"mode"`
	EntityLockScore      int                     `json:"entity_lock_score"`
	GateStatus           gate.Status             `json:"gate_status"`
	Reason               string                  `json:"reason"`
	Sections             []synthesis.Section     `json:"sections"`
	SourceRecordIDs      []string                `json:"source_record_ids"`
	Coverage             float64                 `json:"coverage"`
	VisibilityConfidence int                     `json:"visibility_confidence"`
	Lock                 signals.EntityLock      `json:"lock"`
	Decision             gate.GateDecision       `json:"decision"`
	Ledger               []graph.LedgerRow       `json:"ledger,omitempty"`
	Contradictions       []signals.Contradiction `json:"contradictions,omitempty"`
	Eval                 *eval.EvalResult        `json:"eval,omitempty"` // nil when no draft was produced
	Subject              string                  `json:"subject"`
	EntityIDs            []string                `json:"entity_ids"`
	Markdown             string                  `json:"-"`
	LogID                string                  `json:"log_id,omitempty"`
}

// #endregion result

// #region config
// ResearchConfig bounds the deep research fan-out.
type ResearchConfig struct {
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	CallTimeout time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"` // per enrichment call
}

// DefaultResearchConfig returns the standard fan-out bounds.
func DefaultResearchConfig() ResearchConfig {
	return ResearchConfig{Workers: 4, CallTimeout: 15 * time.Second}
}

// #endregion config
