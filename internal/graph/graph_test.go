package graph

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/websearch"
)

// #region helpers
func outcome(query string, results ...websearch.Result) websearch.Outcome {
	return websearch.Outcome{
		Query:    websearch.Query{Text: query, Intent: websearch.IntentVisibility, Subject: "Jane Doe"},
		Response: websearch.Response{Results: results},
	}
}

func meetingNode(t *testing.T, ref string) evidence.Node {
	t.Helper()
	n, err := evidence.NewMeeting(ref, "Call with Jane Doe", time.Now(), 0.5)
	if err != nil {
		t.Fatalf("meeting node: %v", err)
	}
	return n
}

// #endregion helpers

// #region record-search-tests
func TestRecordSearch_AcceptsMentioningResults(t *testing.T) {
	b := NewBuilder("Jane Doe", nil)
	row := b.RecordSearch(outcome(`"Jane Doe" keynote`,
		websearch.Result{Title: "Jane Doe keynote at DevCon", Snippet: "talk", URL: "https://devcon.io/jane"},
		websearch.Result{Title: "Unrelated", Snippet: "someone else", URL: "https://other.io"},
		websearch.Result{Title: "Jane Doe", Snippet: "no url", URL: ""},
	))

	if row.ID != "Q1" {
		t.Errorf("expected Q1, got %s", row.ID)
	}
	if row.ResultCount != 3 || row.Accepted != 1 {
		t.Errorf("expected 3 results/1 accepted, got %d/%d", row.ResultCount, row.Accepted)
	}

	g := b.Build()
	pub := g.NodesByTag(evidence.VerifiedPublic)
	if len(pub) != 1 {
		t.Fatalf("expected 1 public node, got %d", len(pub))
	}
	if pub[0].Query() != `"Jane Doe" keynote` {
		t.Errorf("expected query recorded on node, got %q", pub[0].Query())
	}
}

func TestRecordSearch_ZeroResultsStillLogged(t *testing.T) {
	b := NewBuilder("Jane Doe", nil)
	b.RecordSearch(outcome(`"Jane Doe" TED`))
	g := b.Build()

	if len(g.Ledger()) != 1 {
		t.Fatalf("expected ledger row, got %d", len(g.Ledger()))
	}
	if g.Counts().ExecutedQueries != 1 {
		t.Errorf("expected 1 executed query, got %d", g.Counts().ExecutedQueries)
	}
}

func TestRecordSearch_FailedNotExecuted(t *testing.T) {
	b := NewBuilder("Jane Doe", nil)
	o := outcome(`"Jane Doe" TED`, websearch.Result{Title: "Jane Doe", URL: "https://ted.com/x"})
	o.Err = errors.New("deadline exceeded")
	row := b.RecordSearch(o)
	g := b.Build()

	if !row.Failed || row.Error == "" {
		t.Errorf("expected failed row, got %+v", row)
	}
	if g.Counts().ExecutedQueries != 0 {
		t.Errorf("failed query must not count as executed")
	}
	if len(g.Nodes()) != 0 {
		t.Errorf("failed query must not add nodes")
	}
}

func TestRecordSearch_SummaryIsInferred(t *testing.T) {
	b := NewBuilder("Jane Doe", nil)
	o := outcome("q")
	o.Response.Summary = "Jane Doe is a CTO."
	b.RecordSearch(o)
	g := b.Build()

	if n := len(g.NodesByTag(evidence.InferredMedium)); n != 1 {
		t.Fatalf("expected 1 inferred-medium node, got %d", n)
	}
	if g.Counts().PublicNodes != 0 {
		t.Error("summary must not count as public evidence")
	}
}

func TestRecordSearch_DedupesURLs(t *testing.T) {
	b := NewBuilder("Jane Doe", nil)
	b.RecordSearch(outcome("a", websearch.Result{Title: "Jane Doe", URL: "https://www.acme.com/team/"}))
	b.RecordSearch(outcome("b", websearch.Result{Title: "Jane Doe", URL: "https://acme.com/team"}))
	if n := b.Build().Counts().PublicNodes; n != 1 {
		t.Errorf("expected 1 public node after dedupe, got %d", n)
	}
}

func TestRecordSearch_AliasMatch(t *testing.T) {
	b := NewBuilder("Jane Doe", []string{"J. Doe"})
	row := b.RecordSearch(outcome("q", websearch.Result{Title: "Interview with J. Doe", URL: "https://pod.fm/ep1"}))
	if row.Accepted != 1 {
		t.Errorf("expected alias mention to be accepted, got %d", row.Accepted)
	}
}

// #endregion record-search-tests

// #region counts-tests
func TestCounts_SubjectQueries(t *testing.T) {
	b := NewBuilder("Jane Doe", nil)
	for i := 0; i < 5; i++ {
		b.RecordSearch(outcome(fmt.Sprintf(`"Jane Doe" q%d`, i)))
	}
	other := outcome(`"John Roe" keynote`)
	other.Query.Subject = "John Roe"
	b.RecordSearch(other)
	b.RecordSearch(outcome(`"JANE DOE"   q0`))

	c := b.Build().Counts()
	if c.ExecutedQueries != 6 {
		t.Errorf("expected 6 distinct executed queries, got %d", c.ExecutedQueries)
	}
	if c.SubjectQueries != 5 {
		t.Errorf("expected 5 subject queries, got %d", c.SubjectQueries)
	}
}

func TestCounts_VerifiedSources(t *testing.T) {
	b := NewBuilder("Jane Doe", nil)
	b.AddNode(meetingNode(t, "10"))
	b.AddNode(meetingNode(t, "10"))
	b.AddNode(meetingNode(t, "11"))
	c := b.Build().Counts()

	if c.Nodes != 3 {
		t.Errorf("expected 3 nodes, got %d", c.Nodes)
	}
	if c.VerifiedSources != 2 {
		t.Errorf("expected 2 distinct verified sources, got %d", c.VerifiedSources)
	}
	if c.ByTag[evidence.VerifiedMeeting] != 3 {
		t.Errorf("expected 3 verified-meeting, got %d", c.ByTag[evidence.VerifiedMeeting])
	}
}

func TestBuild_IsolatedFromLaterAdds(t *testing.T) {
	b := NewBuilder("Jane Doe", nil)
	b.AddNode(meetingNode(t, "1"))
	g := b.Build()
	b.AddNode(meetingNode(t, "2"))

	if len(g.Nodes()) != 1 {
		t.Errorf("built graph changed after builder add")
	}
}

func TestSourceRecordIDs(t *testing.T) {
	b := NewBuilder("Jane Doe", nil)
	b.AddNode(meetingNode(t, "7"))
	b.AddNode(meetingNode(t, "7"))
	b.RecordSearch(outcome("q", websearch.Result{Title: "Jane Doe", URL: "https://a.com"}))
	ids := b.Build().SourceRecordIDs()
	if len(ids) != 1 || ids[0] != "7" {
		t.Errorf("expected [7], got %v", ids)
	}
}

// #endregion counts-tests

// #region snapshot-tests
func TestSnapshotRestore(t *testing.T) {
	b := NewBuilder("Jane Doe", []string{"jd"})
	b.AddNode(meetingNode(t, "1"))
	b.RecordSearch(outcome("q", websearch.Result{Title: "Jane Doe", URL: "https://a.com"}))
	g := b.Build()

	back, err := Restore(g.Snapshot())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(back.Nodes()) != len(g.Nodes()) || len(back.Ledger()) != len(g.Ledger()) {
		t.Fatalf("restored graph differs")
	}
	if back.Counts().PublicNodes != g.Counts().PublicNodes {
		t.Errorf("restored counts differ")
	}
}

func TestRestore_RejectsInvalidNode(t *testing.T) {
	s := Snapshot{Subject: "x", Nodes: []evidence.Record{{ID: "E1", Origin: evidence.OriginWeb, Tag: evidence.VerifiedPublic}}}
	if _, err := Restore(s); err == nil {
		t.Fatal("expected error for node without url")
	}
}

// #endregion snapshot-tests
