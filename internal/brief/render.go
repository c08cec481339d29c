package brief

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/gate"
	"github.com/danielpatrickdp/briefgate/internal/graph"
	"github.com/danielpatrickdp/briefgate/internal/signals"
	"github.com/danielpatrickdp/briefgate/internal/synthesis"
)

// #region render
// Render formats res as markdown. A halted result renders the failure
// report in place of any dossier content.
func Render(res Result, subject signals.Subject, g *graph.Graph) string {
	var b strings.Builder
	b.WriteString("# Pre-Call Intelligence Brief\n\n")
	b.WriteString("| Field | Value |\n|-------|-------|\n")
	fmt.Fprintf(&b, "| **Subject** | %s |\n", cell(subject.Name))
	if subject.Company != "" {
		fmt.Fprintf(&b, "| **Company** | %s |\n", cell(subject.Company))
	}
	if subject.Title != "" {
		fmt.Fprintf(&b, "| **Title** | %s |\n", cell(subject.Title))
	}
	fmt.Fprintf(&b, "| **Generated** | %s |\n", time.Now().UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "| **Mode** | %s |\n", res.Mode)
	fmt.Fprintf(&b, "| **Gate Status** | %s |\n", strings.ToUpper(string(res.GateStatus)))
	fmt.Fprintf(&b, "| **Identity Lock** | %d/100 (%s) |\n", res.Lock.Score, res.Lock.Label())
	if res.Decision.CoverageChecked || res.GateStatus == gate.StatusNotRun {
		fmt.Fprintf(&b, "| **Evidence Coverage** | %.0f%% |\n", res.Coverage*100)
	}
	fmt.Fprintf(&b, "| **Visibility Confidence** | %d/100 |\n", res.VisibilityConfidence)
	fmt.Fprintf(&b, "| **Source Records** | %s |\n", orNone(strings.Join(res.SourceRecordIDs, ", ")))
	b.WriteString("\n")

	if len(res.Contradictions) > 0 {
		b.WriteString("## Source Conflicts\n\n")
		for _, c := range res.Contradictions {
			fmt.Fprintf(&b, "- **%s** `[%s]` %s\n", strings.ToUpper(string(c.Severity)), c.Field, c.String())
		}
		b.WriteString("\n")
	}

	if res.Mode == gate.ModeHalted {
		b.WriteString("```\n")
		b.WriteString(gate.FailureReport(res.Decision, g, res.Lock, res.VisibilityConfidence))
		b.WriteString("```\n")
		return b.String()
	}

	if res.Mode == gate.ModeConstrained {
		b.WriteString(Banner(res.Lock.Score))
		b.WriteString("\n")
	}

	for _, sec := range res.Sections {
		renderSection(&b, sec, g)
	}

	if len(res.Lock.Signals) > 0 {
		b.WriteString("## Identity Signals\n\n")
		for _, s := range res.Lock.Signals {
			fmt.Fprintf(&b, "- +%d %s\n", s.Points, s.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Banner is the notice placed above a CONSTRAINED dossier.
func Banner(lockScore int) string {
	label := "NOT LOCKED"
	if lockScore >= signals.PartialThreshold {
		label = "PARTIAL LOCK"
	}
	return fmt.Sprintf("> **PARTIAL DOSSIER: IDENTITY %s (%d/100)**\n"+
		"> Strong person-level inferences have been suppressed.\n"+
		"> Only verified facts and permitted inferences are shown.\n", label, lockScore)
}

func renderSection(b *strings.Builder, sec synthesis.Section, g *graph.Graph) {
	fmt.Fprintf(b, "## %s\n\n", sec.Heading)
	if sec.Strategic && len(sec.DerivedFrom) > 0 {
		names := make([]string, len(sec.DerivedFrom))
		for i, t := range sec.DerivedFrom {
			names[i] = tagLabel(t)
		}
		fmt.Fprintf(b, "*Derived from: %s*\n\n", strings.Join(names, ", "))
	}
	for _, c := range sec.Claims {
		fmt.Fprintf(b, "- `[%s]` %s%s\n", tagLabel(c.Tag), c.Text, cite(c.EvidenceIDs, g))
	}
	b.WriteString("\n")
}

func cite(ids []string, g *graph.Graph) string {
	var refs []string
	for _, id := range ids {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		switch {
		case n.URL() != "":
			refs = append(refs, fmt.Sprintf("[%s](%s)", n.Origin(), n.URL()))
		default:
			refs = append(refs, fmt.Sprintf("[%s:%s:%s]", n.Origin(), n.Ref(), n.Timestamp().Format("2006-01-02")))
		}
	}
	if len(refs) == 0 {
		return ""
	}
	return " " + strings.Join(refs, " ")
}

func tagLabel(t evidence.Tag) string {
	return strings.ToUpper(t.String())
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// #endregion render
