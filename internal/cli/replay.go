package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/briefgate/internal/replay"
)

func newReplayCmd(a *app) *cobra.Command {
	var (
		fixturePath string
		exportPath  string
		status      string
		limit       int
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-score logged briefs and check the gate outcome is reproduced",
		Long: `Re-run the entity lock scorer and the gates over logged evidence snapshots,
using the thresholds recorded with each brief. Any difference in lock score,
mode or gate status is reported and the command exits non-zero.

With --export the selected logs are written to a fixture file instead.
With --fixture cases are read from a previously exported file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var (
				f       *replay.Fixture
				skipped int
				err     error
			)
			if fixturePath != "" {
				f, err = replay.LoadFixture(fixturePath)
			} else {
				s, serr := a.openStore()
				if serr != nil {
					return serr
				}
				f, skipped, err = replay.FixtureFromLogs(s.DB(), status, limit)
			}
			if err != nil {
				return err
			}

			if exportPath != "" {
				if err := replay.WriteFixture(exportPath, f); err != nil {
					return err
				}
				fmt.Fprintf(out, "exported %d case(s) to %s (%d skipped)\n", len(f.Cases), exportPath, skipped)
				return nil
			}

			cases, err := f.RestoreCases()
			if err != nil {
				return err
			}
			results := replay.Replay(cases)
			for _, r := range results {
				mark := "ok  "
				if !r.Match {
					mark = "DIFF"
				}
				fmt.Fprintf(out, "%s %s lock=%d mode=%s status=%s\n",
					mark, shortID(r.LogID), r.ReplayedLock, r.Decision.Mode, r.Decision.Status)
				for _, d := range r.Diffs {
					fmt.Fprintf(out, "     %s\n", d)
				}
			}
			sum := replay.Summarize(results, skipped)
			fmt.Fprintf(out, "\n%d case(s): %d matched, %d mismatched, %d unreadable\n",
				sum.Total, sum.Matched, sum.Mismatched, sum.Errors)
			if sum.Mismatched > 0 {
				return fmt.Errorf("%d case(s) did not replay", sum.Mismatched)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&fixturePath, "fixture", "", "replay cases from a fixture file")
	f.StringVar(&exportPath, "export", "", "write selected logs to a fixture file")
	f.StringVar(&status, "status", "", "only logs with this gate status")
	f.IntVar(&limit, "limit", 100, "maximum logs")
	return cmd
}
