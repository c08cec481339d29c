package eval

import (
	"fmt"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/graph"
	"github.com/danielpatrickdp/briefgate/internal/synthesis"
	"github.com/danielpatrickdp/briefgate/internal/websearch"
)

// #region eval-harness
// EvalHarness measures how well a draft is supported by its graph.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run computes coverage, visibility confidence and dangling citations.
func (h *EvalHarness) Run(sections []synthesis.Section, g *graph.Graph) EvalResult {
	coverage := Coverage(sections, g)
	visibility := VisibilityConfidence(g.Ledger())
	dangling := DanglingCitations(sections, g)

	metrics := []EvalMetric{
		{Name: "evidence_coverage", Value: coverage, Pass: coverage >= h.config.MinCoverage},
		{Name: "visibility_confidence", Value: float64(visibility), Pass: visibility >= h.config.MinVisibilityConfidence},
		{Name: "dangling_citations", Value: float64(len(dangling)), Pass: len(dangling) == 0},
	}

	passed := true
	var failReasons []string
	for _, m := range metrics {
		if !m.Pass {
			passed = false
			failReasons = append(failReasons, fmt.Sprintf("%s=%.2f", m.Name, m.Value))
		}
	}
	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:               passed,
		Metrics:              metrics,
		Reason:               reason,
		Coverage:             coverage,
		VisibilityConfidence: visibility,
		DanglingCitations:    dangling,
	}
}

// #endregion eval-harness

// #region coverage
// Coverage is the fraction of citable claims that cite at least one node
// present in g. Unknown-tagged claims state a gap and are not citable. With no
// citable claims the coverage is 0.
func Coverage(sections []synthesis.Section, g *graph.Graph) float64 {
	citable, covered := 0, 0
	for _, s := range sections {
		for _, c := range s.Claims {
			if c.Tag == evidence.Unknown {
				continue
			}
			citable++
			for _, id := range c.EvidenceIDs {
				if _, ok := g.Node(id); ok {
					covered++
					break
				}
			}
		}
	}
	if citable == 0 {
		return 0
	}
	return float64(covered) / float64(citable)
}

// DanglingCitations lists cited IDs that are not nodes of g, in first-seen
// order.
func DanglingCitations(sections []synthesis.Section, g *graph.Graph) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range sections {
		for _, c := range s.Claims {
			for _, id := range c.EvidenceIDs {
				if _, ok := g.Node(id); ok || seen[id] {
					continue
				}
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// #endregion coverage

// #region visibility
// VisibilityConfidence scores the sweep from 0 to 100: +10 per query family
// that returned results, plus 10 when a TED/TEDx query was executed at all.
func VisibilityConfidence(ledger []graph.LedgerRow) int {
	families := map[string]bool{}
	tedExecuted := false
	for _, row := range ledger {
		if row.Failed || row.Intent != websearch.IntentVisibility || row.Family == "" {
			continue
		}
		if websearch.TEDFamilies[row.Family] {
			tedExecuted = true
		}
		if row.ResultCount > 0 {
			families[row.Family] = true
		}
	}
	score := len(families) * 10
	if tedExecuted {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// #endregion visibility
