package gate

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/briefgate/internal/graph"
	"github.com/danielpatrickdp/briefgate/internal/signals"
	"github.com/danielpatrickdp/briefgate/internal/websearch"
)

// #region failure-report
// FailureReport renders the text shown instead of a dossier when d halted:
// what failed, the current state, the ledger, and what to run next.
func FailureReport(d GateDecision, g *graph.Graph, lock signals.EntityLock, visibilityConfidence int) string {
	rule := strings.Repeat("=", 60)
	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "DOSSIER GENERATION HALTED - FAIL-CLOSED GATES")
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b)
	for _, v := range d.VetoSignals {
		fmt.Fprintf(&b, "[%s] %s\n", v.Status, v.Reason)
	}
	fmt.Fprintln(&b)

	counts := g.Counts()
	fmt.Fprintln(&b, "--- CURRENT STATE ---")
	fmt.Fprintf(&b, "Entity Lock:           %d/100 (%s)\n", lock.Score, lock.Label())
	fmt.Fprintf(&b, "Visibility Confidence: %d/100\n", visibilityConfidence)
	fmt.Fprintf(&b, "Evidence Nodes:        %d\n", counts.Nodes)
	fmt.Fprintf(&b, "Retrieval Ledger Rows: %d\n", len(g.Ledger()))
	fmt.Fprintln(&b)

	if ledger := g.Ledger(); len(ledger) > 0 {
		fmt.Fprintln(&b, "--- RETRIEVAL LEDGER ---")
		for _, row := range ledger {
			status := fmt.Sprintf("%d result(s)", row.ResultCount)
			if row.Failed {
				status = "failed: " + row.Error
			}
			fmt.Fprintf(&b, "  %s: [%s] %s -> %s\n", row.ID, row.Intent, row.Query, status)
		}
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, "--- WHAT TO DO NEXT ---")
	step := 1
	if has(d, StatusHaltedVisibility) {
		fmt.Fprintf(&b, "%d. Execute the full visibility sweep query battery:\n", step)
		for _, q := range websearch.RequiredVisibilityQueries(nameOr(g.Subject())) {
			fmt.Fprintf(&b, "   - %s\n", q)
		}
		step++
	}
	if has(d, StatusHaltedNoPublic) {
		fmt.Fprintf(&b, "%d. Get at least 1 public retrieval result to compute Entity Lock\n", step)
		step++
	} else if !lock.Locked {
		fmt.Fprintf(&b, "%d. Increase Entity Lock by confirming:\n", step)
		fmt.Fprintf(&b, "   - Profile URL present -> +%dpts (weak)\n", signals.PointsIdentifierPresent)
		fmt.Fprintf(&b, "   - Profile URL verified via retrieval -> +%dpts (strong)\n", signals.PointsIdentifierCorroborated)
		fmt.Fprintf(&b, "   - Meeting confirms identity -> +%dpts\n", signals.PointsMeetingConfirms)
		fmt.Fprintf(&b, "   - Employer in public source -> +%dpts\n", signals.PointsEmployerPublic)
		fmt.Fprintf(&b, "   - Multiple independent domains agree -> +%dpts\n", signals.PointsIndependentAgreement)
		fmt.Fprintf(&b, "   - Title in public source -> +%dpts\n", signals.PointsTitlePublic)
		fmt.Fprintf(&b, "   - Location in public source -> +%dpts\n", signals.PointsLocationPublic)
		step++
	}
	if has(d, StatusHaltedCoverage) {
		fmt.Fprintf(&b, "%d. Tag every claim with the evidence node IDs it relies on, or remove it (need %.0f%%, have %.0f%%)\n",
			step, d.CoverageThreshold*100, d.Coverage*100)
	}
	return b.String()
}

func has(d GateDecision, s Status) bool {
	for _, v := range d.VetoSignals {
		if v.Status == s {
			return true
		}
	}
	return false
}

func nameOr(name string) string {
	if name == "" {
		return "<name>"
	}
	return name
}

// #endregion failure-report
