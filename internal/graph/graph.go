package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/websearch"
)

// topResultsKept bounds the URLs remembered per ledger row.
const topResultsKept = 5

// #region graph
// Graph is the evidence assembled for one subject within one request. It is
// read-only once built.
type Graph struct {
	subject string
	aliases []string
	nodes   []evidence.Node
	byID    map[string]int
	ledger  []LedgerRow
}

// Subject returns the name the graph was assembled for.
func (g *Graph) Subject() string { return g.subject }

// Aliases returns the subject's other names.
func (g *Graph) Aliases() []string { return append([]string(nil), g.aliases...) }

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []evidence.Node {
	return append([]evidence.Node(nil), g.nodes...)
}

// Ledger returns the retrieval ledger in issue order.
func (g *Graph) Ledger() []LedgerRow {
	return append([]LedgerRow(nil), g.ledger...)
}

// Node looks a node up by ID.
func (g *Graph) Node(id string) (evidence.Node, bool) {
	i, ok := g.byID[id]
	if !ok {
		return evidence.Node{}, false
	}
	return g.nodes[i], true
}

// NodesByTag returns nodes carrying tag, in insertion order.
func (g *Graph) NodesByTag(tag evidence.Tag) []evidence.Node {
	var out []evidence.Node
	for _, n := range g.nodes {
		if n.Tag() == tag {
			out = append(out, n)
		}
	}
	return out
}

// SourceRecordIDs returns the refs of nodes built from stored source
// records, in insertion order.
func (g *Graph) SourceRecordIDs() []string {
	var out []string
	seen := map[string]bool{}
	for _, n := range g.nodes {
		switch n.Origin() {
		case evidence.OriginMeeting, evidence.OriginEmail, evidence.OriginPDF:
			if !seen[n.Ref()] {
				seen[n.Ref()] = true
				out = append(out, n.Ref())
			}
		}
	}
	return out
}

// Counts derives the graph's counters.
func (g *Graph) Counts() Counts {
	c := Counts{Nodes: len(g.nodes), ByTag: make(map[evidence.Tag]int)}

	sources := map[string]bool{}
	for _, n := range g.nodes {
		c.ByTag[n.Tag()]++
		if n.Tag().IsVerified() {
			sources[string(n.Origin())+"|"+n.Ref()] = true
		}
		if n.Tag() == evidence.VerifiedPublic {
			c.PublicNodes++
		}
	}
	c.VerifiedSources = len(sources)

	executed := map[string]bool{}
	subject := map[string]bool{}
	for _, row := range g.ledger {
		if row.Failed {
			continue
		}
		q := normalizeQuery(row.Query)
		executed[q] = true
		if g.isSubjectQuery(row) {
			subject[q] = true
		}
	}
	c.ExecutedQueries = len(executed)
	c.SubjectQueries = len(subject)
	return c
}

// isSubjectQuery reports whether row was issued for this graph's subject and
// names the subject in its text.
func (g *Graph) isSubjectQuery(row LedgerRow) bool {
	if g.subject == "" || !strings.EqualFold(strings.TrimSpace(row.Subject), g.subject) {
		return false
	}
	return containsFold(row.Query, g.subject)
}

// Snapshot returns the serializable form of g.
func (g *Graph) Snapshot() Snapshot {
	s := Snapshot{
		Subject: g.subject,
		Aliases: g.Aliases(),
		Nodes:   make([]evidence.Record, len(g.nodes)),
		Ledger:  g.Ledger(),
	}
	for i, n := range g.nodes {
		s.Nodes[i] = n.Record()
	}
	return s
}

// Restore rebuilds a graph from a snapshot. Every node is re-validated.
func Restore(s Snapshot) (*Graph, error) {
	b := NewBuilder(s.Subject, s.Aliases)
	for _, rec := range s.Nodes {
		n, err := evidence.Restore(rec)
		if err != nil {
			return nil, fmt.Errorf("restore node %s: %w", rec.ID, err)
		}
		b.AddNode(n)
	}
	b.ledger = append(b.ledger, s.Ledger...)
	return b.Build(), nil
}

// #endregion graph

// #region builder
// Builder assembles a Graph. It is not safe for concurrent use.
type Builder struct {
	subject string
	aliases []string
	nodes   []evidence.Node
	byID    map[string]int
	urls    map[string]bool
	ledger  []LedgerRow
	now     func() time.Time
}

// NewBuilder starts a graph for subject.
func NewBuilder(subject string, aliases []string) *Builder {
	return &Builder{
		subject: strings.TrimSpace(subject),
		aliases: append([]string(nil), aliases...),
		byID:    make(map[string]int),
		urls:    make(map[string]bool),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AddNode appends n. A node whose ID is already present, or a public node
// whose URL is already present, is ignored. Reports whether n was added.
func (b *Builder) AddNode(n evidence.Node) bool {
	if _, dup := b.byID[n.ID()]; dup {
		return false
	}
	if n.Tag() == evidence.VerifiedPublic {
		if b.urls[n.Ref()] {
			return false
		}
		b.urls[n.Ref()] = true
	}
	b.byID[n.ID()] = len(b.nodes)
	b.nodes = append(b.nodes, n)
	return true
}

// AddNodes appends each node in order.
func (b *Builder) AddNodes(nodes []evidence.Node) {
	for _, n := range nodes {
		b.AddNode(n)
	}
}

// RecordSearch appends a ledger row for o and turns its accepted results
// into verified-public nodes. A result is accepted when its URL is absolute
// http(s) and its title or snippet mentions the subject or an alias. A
// provider summary becomes an inferred-medium search-summary node.
func (b *Builder) RecordSearch(o websearch.Outcome) LedgerRow {
	row := LedgerRow{
		ID:          fmt.Sprintf("Q%d", len(b.ledger)+1),
		Query:       o.Query.Text,
		Intent:      o.Query.Intent,
		Family:      o.Query.Family,
		Subject:     o.Query.Subject,
		ResultCount: len(o.Response.Results),
		ExecutedAt:  b.now(),
	}
	if o.Err != nil {
		row.Failed = true
		row.Error = o.Err.Error()
		row.ResultCount = 0
		b.ledger = append(b.ledger, row)
		return row
	}

	for i, r := range o.Response.Results {
		if i < topResultsKept {
			row.TopResults = append(row.TopResults, r.URL)
		}
		if !b.mentionsSubject(r.Title + " " + r.Snippet) {
			continue
		}
		n, err := evidence.NewPublic(r.URL, excerptOf(r), o.Query.Text, row.ExecutedAt)
		if err != nil {
			continue
		}
		if b.AddNode(n) {
			row.Accepted++
		}
	}

	if summary := strings.TrimSpace(o.Response.Summary); summary != "" {
		if n, err := evidence.NewSearchSummary(o.Query.Text, summary, evidence.InferredMedium, row.ExecutedAt); err == nil {
			b.AddNode(n)
		}
	}

	b.ledger = append(b.ledger, row)
	return row
}

// Build returns the assembled graph. The builder may keep being used; the
// returned graph does not observe later additions.
func (b *Builder) Build() *Graph {
	g := &Graph{
		subject: b.subject,
		aliases: append([]string(nil), b.aliases...),
		nodes:   append([]evidence.Node(nil), b.nodes...),
		byID:    make(map[string]int, len(b.byID)),
		ledger:  append([]LedgerRow(nil), b.ledger...),
	}
	for k, v := range b.byID {
		g.byID[k] = v
	}
	return g
}

func (b *Builder) mentionsSubject(text string) bool {
	if b.subject != "" && containsFold(text, b.subject) {
		return true
	}
	for _, a := range b.aliases {
		if len(strings.TrimSpace(a)) >= 3 && containsFold(text, a) {
			return true
		}
	}
	return false
}

// #endregion builder

// #region helpers
func excerptOf(r websearch.Result) string {
	title := strings.TrimSpace(r.Title)
	snippet := strings.TrimSpace(r.Snippet)
	switch {
	case title == "":
		return snippet
	case snippet == "":
		return title
	}
	return title + ": " + snippet
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func containsFold(s, sub string) bool {
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// #endregion helpers
