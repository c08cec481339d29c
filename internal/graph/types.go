package graph

import (
	"time"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/websearch"
)

// #region ledger
// LedgerRow records one issued search. Failed rows stay in the ledger for
// audit but do not count as executed.
type LedgerRow struct {
	ID          string           `json:"id"`
	Query       string           `json:"query"`
	Intent      websearch.Intent `json:"intent"`
	Family      string           `json:"family,omitempty"`
	Subject     string           `json:"subject"`
	ResultCount int              `json:"result_count"`
	Accepted    int              `json:"accepted"`
	TopResults  []string         `json:"top_results,omitempty"`
	Failed      bool             `json:"failed,omitempty"`
	Error       string           `json:"error,omitempty"`
	ExecutedAt  time.Time        `json:"executed_at"`
}

// #endregion ledger

// #region counts
// Counts is derived from a graph's nodes and ledger on every call.
type Counts struct {
	Nodes           int
	VerifiedSources int
	PublicNodes     int
	ExecutedQueries int
	SubjectQueries  int
	ByTag           map[evidence.Tag]int
}

// #endregion counts

// #region snapshot
// Snapshot is the serializable form of a Graph, logged with each brief.
type Snapshot struct {
	Subject string            `json:"subject"`
	Aliases []string          `json:"aliases,omitempty"`
	Nodes   []evidence.Record `json:"nodes"`
	Ledger  []LedgerRow       `json:"ledger"`
}

// #endregion snapshot
