package eval

import (
	"math"
	"testing"
	"time"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/graph"
	"github.com/danielpatrickdp/briefgate/internal/synthesis"
	"github.com/danielpatrickdp/briefgate/internal/websearch"
)

func testGraph(t *testing.T) (*graph.Graph, string) {
	t.Helper()
	b := graph.NewBuilder("Jane Doe", nil)
	n, err := evidence.NewMeeting("1", "Jane Doe call", time.Now(), 0.5)
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	b.AddNode(n)
	return b.Build(), n.ID()
}

// #region coverage-tests
func TestCoverage(t *testing.T) {
	g, id := testGraph(t)
	sections := []synthesis.Section{{Claims: []synthesis.Claim{
		{Text: "a", Tag: evidence.VerifiedMeeting, EvidenceIDs: []string{id}},
		{Text: "b", Tag: evidence.InferredLow, EvidenceIDs: []string{"missing", id}},
		{Text: "c", Tag: evidence.InferredHigh},
		{Text: "d", Tag: evidence.InferredMedium, EvidenceIDs: []string{"missing"}},
		{Text: "gap", Tag: evidence.Unknown},
	}}}

	got := Coverage(sections, g)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %f", got)
	}
	dangling := DanglingCitations(sections, g)
	if len(dangling) != 1 || dangling[0] != "missing" {
		t.Errorf("expected [missing], got %v", dangling)
	}
}

func TestCoverage_NoClaims(t *testing.T) {
	g, _ := testGraph(t)
	if got := Coverage(nil, g); got != 0 {
		t.Errorf("expected 0, got %f", got)
	}
}

// #endregion coverage-tests

// #region visibility-tests
func TestVisibilityConfidence(t *testing.T) {
	ledger := []graph.LedgerRow{
		{Intent: websearch.IntentVisibility, Family: "ted", ResultCount: 0},
		{Intent: websearch.IntentVisibility, Family: "keynote", ResultCount: 2},
		{Intent: websearch.IntentVisibility, Family: "podcast", ResultCount: 1},
		{Intent: websearch.IntentVisibility, Family: "podcast", ResultCount: 3},
		{Intent: websearch.IntentVisibility, Family: "webinar", ResultCount: 5, Failed: true},
		{Intent: websearch.IntentIdentity, ResultCount: 4},
	}
	if got := VisibilityConfidence(ledger); got != 30 {
		t.Errorf("expected 30 (2 families + ted bonus), got %d", got)
	}
}

func TestVisibilityConfidence_Empty(t *testing.T) {
	if got := VisibilityConfidence(nil); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestVisibilityConfidence_Capped(t *testing.T) {
	var ledger []graph.LedgerRow
	for _, f := range []string{"ted", "tedx", "keynote", "conference", "summit", "panel", "podcast", "webinar", "interview_video", "youtube_talk", "company"} {
		ledger = append(ledger, graph.LedgerRow{Intent: websearch.IntentVisibility, Family: f, ResultCount: 1})
	}
	if got := VisibilityConfidence(ledger); got != 100 {
		t.Errorf("expected cap 100, got %d", got)
	}
}

// #endregion visibility-tests

// #region harness-tests
func TestEvalHarness_Run(t *testing.T) {
	g, id := testGraph(t)
	h := NewEvalHarness(DefaultEvalConfig())
	res := h.Run([]synthesis.Section{{Claims: []synthesis.Claim{
		{Text: "a", Tag: evidence.VerifiedMeeting, EvidenceIDs: []string{id}},
	}}}, g)

	if res.Coverage != 1 {
		t.Errorf("expected full coverage, got %f", res.Coverage)
	}
	if res.Passed {
		t.Error("expected failure on visibility confidence with empty ledger")
	}
	if len(res.Metrics) != 3 {
		t.Errorf("expected 3 metrics, got %d", len(res.Metrics))
	}
}

// #endregion harness-tests
