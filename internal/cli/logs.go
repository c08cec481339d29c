package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/briefgate/internal/logging"
)

func newLogsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Browse the brief log",
	}

	var (
		status  string
		limit   int
		jsonOut bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List logged briefs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			entries, err := logging.ListBriefs(s.DB(), status, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSUBJECT\tMODE\tSTATUS\tLOCK\tCOVERAGE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%.0f%%\n",
					shortID(e.ID), e.CreatedAt.Format("2006-01-02 15:04"), subjectOf(e),
					e.Mode, e.GateStatus, e.EntityLockScore, e.CoveragePct)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by gate status (ok, not_run, halted:visibility, ...)")
	list.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	list.Flags().BoolVar(&jsonOut, "json", false, "print JSON")

	var markdown bool
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one logged brief",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			e, err := logging.GetBrief(s.DB(), args[0])
			if err != nil {
				return err
			}
			if markdown {
				return writeString(cmd.OutOrStdout(), e.Markdown)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(e)
		},
	}
	show.Flags().BoolVar(&markdown, "markdown", false, "print the rendered brief only")

	cmd.AddCommand(list, show)
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func subjectOf(e logging.BriefLog) string {
	switch {
	case e.Person != "" && e.Company != "":
		return e.Person + " (" + e.Company + ")"
	case e.Person != "":
		return e.Person
	}
	return e.Company
}
