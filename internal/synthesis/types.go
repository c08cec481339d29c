package synthesis

import (
	"context"
	"time"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/gate"
	"github.com/danielpatrickdp/briefgate/internal/graph"
	"github.com/danielpatrickdp/briefgate/internal/signals"
)

// #region types
// Claim is one statement in a drafted section, tagged with its epistemic
// status and the graph nodes it relies on.
type Claim struct {
	Text        string       `json:"text"`
	Tag         evidence.Tag `json:"tag"`
	EvidenceIDs []string     `json:"evidence_ids,omitempty"`
}

// Section is one heading of a drafted brief. A strategic-model section must
// name the node classes it derives from.
type Section struct {
	Heading     string         `json:"heading"`
	Strategic   bool           `json:"strategic,omitempty"`
	DerivedFrom []evidence.Tag `json:"derived_from,omitempty"`
	Claims      []Claim        `json:"claims"`
}

// Draft is a synthesizer's output. Coverage is nil when the synthesizer does
// not report one.
type Draft struct {
	Sections []Section `json:"sections"`
	Coverage *float64  `json:"coverage,omitempty"`
}

// Input is everything a synthesizer may see.
type Input struct {
	Subject   signals.Subject
	Topic     string
	MeetingAt time.Time
	Graph     *graph.Graph
	Mode      gate.Mode
	LockScore int
	Allowed   []evidence.Tag
}

// Synthesizer drafts brief prose from an evidence graph.
type Synthesizer interface {
	Draft(ctx context.Context, in Input) (Draft, error)
}

// #endregion types
