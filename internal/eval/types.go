package eval

// #region eval-config
// EvalConfig holds the bars used to mark metrics as passing. They are
// informational; gating happens in the gate package.
type EvalConfig struct {
	MinCoverage             float64 // fraction of citable claims that cite graph nodes
	MinVisibilityConfidence int     // 0-100
}

// DefaultEvalConfig returns the standard bars.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinCoverage:             0.85,
		MinVisibilityConfidence: 30,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of a brief quality assessment.
type EvalResult struct {
	Passed               bool         `json:"passed"`
	Metrics              []EvalMetric `json:"metrics"`
	Reason               string       `json:"reason"`
	Coverage             float64      `json:"coverage"`
	VisibilityConfidence int          `json:"visibility_confidence"`
	DanglingCitations    []string     `json:"dangling_citations,omitempty"`
}

// #endregion eval-result
