package replay

import (
	"fmt"

	"github.com/danielpatrickdp/briefgate/internal/gate"
	"github.com/danielpatrickdp/briefgate/internal/graph"
	"github.com/danielpatrickdp/briefgate/internal/logging"
	"github.com/danielpatrickdp/briefgate/internal/signals"
)

// #region types
// Case is one logged brief ready for replay: the evidence graph as it was
// gated and the gate record written alongside it.
type Case struct {
	LogID  string
	Graph  *graph.Graph
	Record logging.GateRecord
}

// ReplayResult compares a recorded gate outcome with a fresh evaluation of
// the same evidence.
type ReplayResult struct {
	LogID string

	StoredLock   int
	StoredMode   gate.Mode
	StoredStatus gate.Status

	ReplayedLock int
	Decision     gate.GateDecision

	Match bool
	Diffs []string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	Total      int
	Matched    int
	Mismatched int
	Errors     int
}

// #endregion types

// #region replay
// Replay re-scores every case from its snapshot and re-runs the gates under
// the thresholds recorded with it. Coverage cannot be recomputed from the
// filtered sections, so the recorded coverage is fed back in.
func Replay(cases []Case) []ReplayResult {
	results := make([]ReplayResult, 0, len(cases))
	for _, c := range cases {
		results = append(results, replayOne(c))
	}
	return results
}

func replayOne(c Case) ReplayResult {
	rec := c.Record
	lock := signals.Score(c.Graph, SubjectOf(rec))
	g := gate.NewGate(GateConfigOf(rec.Thresholds))

	var d gate.GateDecision
	switch {
	case !rec.DeepResearch:
		d = g.NotRun(lock.Score)
	case rec.CoverageChecked:
		d = g.Evaluate(c.Graph.Counts(), lock.Score, rec.Coverage)
	default:
		d = g.PreSynthesis(c.Graph.Counts(), lock.Score)
	}

	r := ReplayResult{
		LogID:        c.LogID,
		StoredLock:   rec.LockScore,
		StoredMode:   gate.Mode(rec.Mode),
		StoredStatus: gate.Status(rec.Status),
		ReplayedLock: lock.Score,
		Decision:     d,
	}
	if lock.Score != rec.LockScore {
		r.Diffs = append(r.Diffs, fmt.Sprintf("lock score %d != recorded %d", lock.Score, rec.LockScore))
	}
	if d.Mode != r.StoredMode {
		r.Diffs = append(r.Diffs, fmt.Sprintf("mode %s != recorded %s", d.Mode, r.StoredMode))
	}
	if d.Status != r.StoredStatus {
		r.Diffs = append(r.Diffs, fmt.Sprintf("status %s != recorded %s", d.Status, r.StoredStatus))
	}
	r.Match = len(r.Diffs) == 0
	return r
}

// Summarize counts matches across results. errs is the number of logs that
// could not be turned into cases.
func Summarize(results []ReplayResult, errs int) ReplaySummary {
	s := ReplaySummary{Total: len(results) + errs, Errors: errs}
	for _, r := range results {
		if r.Match {
			s.Matched++
		} else {
			s.Mismatched++
		}
	}
	return s
}

// #endregion replay

// #region conversions
// SubjectOf rebuilds the scorer subject from a gate record.
func SubjectOf(rec logging.GateRecord) signals.Subject {
	return signals.Subject{
		Name:          rec.Subject,
		Aliases:       rec.Aliases,
		Emails:        rec.Emails,
		Company:       rec.Company,
		Title:         rec.Title,
		Location:      rec.Location,
		IdentifierURL: rec.IdentifierURL,
	}
}

// GateConfigOf converts recorded thresholds back into a gate config.
func GateConfigOf(t logging.GateThresholds) gate.GateConfig {
	return gate.GateConfig{
		MinExecutedQueries: t.MinExecutedQueries,
		MinSubjectQueries:  t.MinSubjectQueries,
		InferenceThreshold: t.InferenceThreshold,
		PartialThreshold:   t.PartialThreshold,
		CoverageFull:       t.CoverageFull,
		CoveragePartial:    t.CoveragePartial,
		CoverageLow:        t.CoverageLow,
	}
}

// #endregion conversions
