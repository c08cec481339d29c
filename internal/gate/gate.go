package gate

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/briefgate/internal/graph"
)

// #region gate
// Gate decides the dossier mode from graph counts, the entity lock score and
// evidence coverage. Its methods are total and deterministic.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Config returns the active thresholds.
func (g *Gate) Config() GateConfig {
	return g.config
}

// PreSynthesis runs the visibility and public-results gates only. A halt here
// means synthesis must not be attempted.
func (g *Gate) PreSynthesis(counts graph.Counts, lockScore int) GateDecision {
	return g.decide(g.preVetoes(counts), lockScore, 0, false)
}

// Evaluate runs every gate in order: visibility, public results, coverage.
// coverage is the fraction of claims citing graph nodes, in [0,1].
func (g *Gate) Evaluate(counts graph.Counts, lockScore int, coverage float64) GateDecision {
	coverage = clampUnit(coverage)
	vetoes := g.preVetoes(counts)

	threshold := g.CoverageThreshold(lockScore)
	if coverage < threshold {
		vetoes = append(vetoes, VetoSignal{
			Status: StatusHaltedCoverage,
			Reason: fmt.Sprintf("evidence coverage %.0f%% below required %.0f%% for lock score %d",
				coverage*100, threshold*100, lockScore),
		})
	}
	return g.decide(vetoes, lockScore, coverage, true)
}

// NotRun records that gates were skipped, as for a meeting-prep brief built
// from stored records only. The mode is CONSTRAINED.
func (g *Gate) NotRun(lockScore int) GateDecision {
	return GateDecision{
		Mode:      ModeConstrained,
		Status:    StatusNotRun,
		Reason:    "gates not run: no public research requested",
		LockScore: lockScore,
	}
}

// ModeFor returns the mode a passing request gets for lockScore.
func (g *Gate) ModeFor(lockScore int) Mode {
	if lockScore >= g.config.InferenceThreshold {
		return ModeFull
	}
	return ModeConstrained
}

// CoverageThreshold returns the coverage required at lockScore.
func (g *Gate) CoverageThreshold(lockScore int) float64 {
	switch {
	case lockScore >= g.config.InferenceThreshold:
		return g.config.CoverageFull
	case lockScore >= g.config.PartialThreshold:
		return g.config.CoveragePartial
	}
	return g.config.CoverageLow
}

// #endregion gate

// #region helpers
func (g *Gate) preVetoes(counts graph.Counts) []VetoSignal {
	var vetoes []VetoSignal

	// 1. Visibility sweep
	if counts.ExecutedQueries < g.config.MinExecutedQueries || counts.SubjectQueries < g.config.MinSubjectQueries {
		vetoes = append(vetoes, VetoSignal{
			Status: StatusHaltedVisibility,
			Reason: fmt.Sprintf("visibility sweep incomplete: %d executed queries (%d for subject), need %d (%d)",
				counts.ExecutedQueries, counts.SubjectQueries, g.config.MinExecutedQueries, g.config.MinSubjectQueries),
		})
	}

	// 2. At least one public result
	if counts.PublicNodes == 0 {
		vetoes = append(vetoes, VetoSignal{
			Status: StatusHaltedNoPublic,
			Reason: "no verified-public results; entity lock cannot be established",
		})
	}
	return vetoes
}

func (g *Gate) decide(vetoes []VetoSignal, lockScore int, coverage float64, coverageChecked bool) GateDecision {
	d := GateDecision{
		LockScore:         lockScore,
		Coverage:          coverage,
		CoverageThreshold: g.CoverageThreshold(lockScore),
		CoverageChecked:   coverageChecked,
	}
	if len(vetoes) > 0 {
		d.Mode = ModeHalted
		d.Status = vetoes[0].Status
		d.Reason = fmt.Sprintf("halted: %s", vetoes[0].Reason)
		d.Halted = true
		d.VetoSignals = vetoes
		return d
	}
	d.Mode = g.ModeFor(lockScore)
	d.Status = StatusOK
	d.Reason = fmt.Sprintf("passed gates: lock score %d, mode %s", lockScore, d.Mode)
	return d
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// #endregion helpers
