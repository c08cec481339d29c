package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/danielpatrickdp/briefgate/internal/graph"
	"github.com/danielpatrickdp/briefgate/internal/logging"
	"github.com/danielpatrickdp/briefgate/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to briefgate.db")
	last := flag.Int("last", 20, "show N most recent briefs")
	id := flag.String("id", "", "show single brief detail")
	status := flag.String("status", "", "filter by gate status")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/briefgate.db [--last N] [--status s] [--id brief-id] [--json]")
		os.Exit(2)
	}

	s, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if *id != "" {
		err = runDetailMode(s, *id, *jsonOut)
	} else {
		err = runListMode(s, *last, *status, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	ID                   string  `json:"id"`
	CreatedAt            string  `json:"created_at"`
	Person               string  `json:"person,omitempty"`
	Company              string  `json:"company,omitempty"`
	Mode                 string  `json:"mode"`
	Status               string  `json:"status"`
	Lock                 int     `json:"lock"`
	Coverage             float64 `json:"coverage_pct"`
	VisibilityConfidence int     `json:"visibility_confidence"`
	Sources              int     `json:"sources"`
}

func runListMode(s *store.Store, last int, status string, jsonOut bool) error {
	entries, err := logging.ListBriefs(s.DB(), status, last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no briefs found")
		return nil
	}

	rows := make([]listRow, len(entries))
	for i, e := range entries {
		rows[len(entries)-1-i] = listRow{
			ID:                   e.ID,
			CreatedAt:            e.CreatedAt.Format("2006-01-02T15:04:05Z"),
			Person:               e.Person,
			Company:              e.Company,
			Mode:                 e.Mode,
			Status:               e.GateStatus,
			Lock:                 e.EntityLockScore,
			Coverage:             e.CoveragePct,
			VisibilityConfidence: e.VisibilityConfidence,
			Sources:              len(e.SourceRecordIDs),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-8s  %-20s  %-11s  %-24s  %4s  %6s  %4s  %s\n",
		"Brief", "Subject", "Mode", "Status", "Lock", "Cover", "Vis", "Time")
	fmt.Printf("%-8s+-%-20s+-%-11s+-%-24s+-%4s+-%6s+-%4s+-%s\n",
		"--------", "--------------------", "-----------", "------------------------", "----", "------", "----", "--------------------")
	for _, r := range rows {
		subject := r.Person
		if subject == "" {
			subject = r.Company
		}
		fmt.Printf("%-8s  %-20.20s  %-11s  %-24s  %4d  %5.0f%%  %4d  %s\n",
			shortID(r.ID), subject, r.Mode, r.Status, r.Lock, r.Coverage, r.VisibilityConfidence, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	ID                   string              `json:"id"`
	CreatedAt            string              `json:"created_at"`
	Person               string              `json:"person,omitempty"`
	Company              string              `json:"company,omitempty"`
	Topic                string              `json:"topic,omitempty"`
	Mode                 string              `json:"mode"`
	Status               string              `json:"status"`
	Reason               string              `json:"reason"`
	Lock                 int                 `json:"lock"`
	Coverage             float64             `json:"coverage_pct"`
	VisibilityConfidence int                 `json:"visibility_confidence"`
	SourceRecordIDs      []string            `json:"source_record_ids"`
	GateRecord           *logging.GateRecord `json:"gate_record,omitempty"`
	NodesByTag           map[string]int      `json:"nodes_by_tag,omitempty"`
	Ledger               []graph.LedgerRow   `json:"ledger,omitempty"`
}

func runDetailMode(s *store.Store, id string, jsonOut bool) error {
	e, err := logging.GetBrief(s.DB(), id)
	if err != nil {
		return err
	}

	out := detailOutput{
		ID:                   e.ID,
		CreatedAt:            e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Person:               e.Person,
		Company:              e.Company,
		Topic:                e.Topic,
		Mode:                 e.Mode,
		Status:               e.GateStatus,
		Reason:               e.Reason,
		Lock:                 e.EntityLockScore,
		Coverage:             e.CoveragePct,
		VisibilityConfidence: e.VisibilityConfidence,
		SourceRecordIDs:      e.SourceRecordIDs,
		GateRecord:           parseGateRecord(e.GateJSON),
	}
	if snap := parseEvidence(e.EvidenceJSON); snap != nil {
		out.NodesByTag = map[string]int{}
		for _, n := range snap.Nodes {
			out.NodesByTag[n.Tag.String()]++
		}
		out.Ledger = snap.Ledger
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Brief:      %s\n", out.ID)
	fmt.Printf("Created:    %s\n", out.CreatedAt)
	fmt.Printf("Person:     %s\n", out.Person)
	fmt.Printf("Company:    %s\n", out.Company)
	fmt.Printf("Topic:      %s\n", out.Topic)
	fmt.Printf("Mode:       %s\n", out.Mode)
	fmt.Printf("Status:     %s\n", out.Status)
	fmt.Printf("Reason:     %s\n", out.Reason)
	fmt.Printf("Lock:       %d/100\n", out.Lock)
	fmt.Printf("Coverage:   %.0f%%\n", out.Coverage)
	fmt.Printf("Visibility: %d/100\n", out.VisibilityConfidence)
	fmt.Printf("Sources:    %v\n", out.SourceRecordIDs)

	if gr := out.GateRecord; gr != nil {
		fmt.Printf("\nGate Record:\n")
		fmt.Printf("  Subject:        %s\n", gr.Subject)
		fmt.Printf("  Deep research:  %v\n", gr.DeepResearch)
		fmt.Printf("  Lock signals:   %v\n", gr.LockSignals)
		fmt.Printf("  Vetoes:         %v\n", gr.Vetoes)
		fmt.Printf("  Coverage:       %.2f (checked %v)\n", gr.Coverage, gr.CoverageChecked)
		fmt.Printf("  Thresholds:     sweep>=%d subject>=%d full>=%d partial>=%d\n",
			gr.Thresholds.MinExecutedQueries, gr.Thresholds.MinSubjectQueries,
			gr.Thresholds.InferenceThreshold, gr.Thresholds.PartialThreshold)
		if gr.Eval != nil {
			fmt.Printf("  Eval:           %s\n", gr.Eval.Reason)
			if len(gr.Eval.DanglingCitations) > 0 {
				fmt.Printf("  Dangling:       %v\n", gr.Eval.DanglingCitations)
			}
		}
		for _, c := range gr.Contradictions {
			fmt.Printf("  Conflict:       [%s] %s expected %q, found %q in %v\n", c.Severity, c.Field, c.Expected, c.Found, c.Sources)
		}
	}

	if len(out.NodesByTag) > 0 {
		fmt.Printf("\nEvidence nodes:\n")
		tags := make([]string, 0, len(out.NodesByTag))
		for t := range out.NodesByTag {
			tags = append(tags, t)
		}
		sort.Strings(tags)
		for _, t := range tags {
			fmt.Printf("  %-16s %d\n", t, out.NodesByTag[t])
		}
	}

	if len(out.Ledger) > 0 {
		fmt.Printf("\nRetrieval ledger:\n")
		for _, row := range out.Ledger {
			result := fmt.Sprintf("%d result(s), %d accepted", row.ResultCount, row.Accepted)
			if row.Failed {
				result = "failed: " + row.Error
			}
			fmt.Printf("  %-4s %-9s %-50.50s %s\n", row.ID, row.Intent, row.Query, result)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func parseGateRecord(gateJSON string) *logging.GateRecord {
	if gateJSON == "" {
		return nil
	}
	var gr logging.GateRecord
	if err := json.Unmarshal([]byte(gateJSON), &gr); err == nil && gr.Subject != "" {
		return &gr
	}
	return nil
}

func parseEvidence(evidenceJSON string) *graph.Snapshot {
	if evidenceJSON == "" {
		return nil
	}
	var snap graph.Snapshot
	if err := json.Unmarshal([]byte(evidenceJSON), &snap); err != nil {
		return nil
	}
	return &snap
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
