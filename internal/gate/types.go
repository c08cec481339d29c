package gate

// #region mode
// Mode is the dossier mode chosen for a request.
type Mode string

const (
	ModeFull        Mode = "FULL"
	ModeConstrained Mode = "CONSTRAINED"
	ModeHalted      Mode = "HALTED"
)

// Status is the logged gate outcome.
type Status string

const (
	StatusOK               Status = "ok"
	StatusHaltedVisibility Status = "halted:visibility"
	StatusHaltedNoPublic   Status = "halted:no_public_results"
	StatusHaltedCoverage   Status = "halted:coverage"
	StatusNotRun           Status = "not_run"
)

// #endregion mode

// #region veto-signal
// VetoSignal is one failed gate. The first one recorded decides the status.
type VetoSignal struct {
	Status Status `json:"status"`
	Reason string `json:"reason"`
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds gate thresholds.
type GateConfig struct {
	MinExecutedQueries int     `mapstructure:"min_executed_queries" yaml:"min_executed_queries"`
	MinSubjectQueries  int     `mapstructure:"min_subject_queries" yaml:"min_subject_queries"`
	InferenceThreshold int     `mapstructure:"inference_threshold" yaml:"inference_threshold"` // lock score for FULL
	PartialThreshold   int     `mapstructure:"partial_threshold" yaml:"partial_threshold"`     // lower bound of the middle band
	CoverageFull       float64 `mapstructure:"coverage_full" yaml:"coverage_full"`             // required when lock >= InferenceThreshold
	CoveragePartial    float64 `mapstructure:"coverage_partial" yaml:"coverage_partial"`       // required in the middle band
	CoverageLow        float64 `mapstructure:"coverage_low" yaml:"coverage_low"`               // required below PartialThreshold
}

// DefaultGateConfig returns the standard thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinExecutedQueries: 8,
		MinSubjectQueries:  8,
		InferenceThreshold: 60,
		PartialThreshold:   50,
		CoverageFull:       0.85,
		CoveragePartial:    0.70,
		CoverageLow:        0.60,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Mode              Mode         `json:"mode"`
	Status            Status       `json:"status"`
	Reason            string       `json:"reason"`
	Halted            bool         `json:"halted"`
	VetoSignals       []VetoSignal `json:"veto_signals,omitempty"`
	LockScore         int          `json:"lock_score"`
	Coverage          float64      `json:"coverage"`
	CoverageThreshold float64      `json:"coverage_threshold"`
	CoverageChecked   bool         `json:"coverage_checked"`
}

// #endregion gate-decision
