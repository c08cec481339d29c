package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/briefgate/internal/brief"
)

func newBriefCmd(a *app) *cobra.Command {
	var (
		req     brief.Request
		jsonOut bool
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "brief",
		Short: "Prepare a gated brief for a person or company",
		Long: `Prepare a brief from stored meeting, email and document records.

With --deep the visibility sweep, identity searches and enrichment run, and
the fail-closed gates decide whether a dossier may be shown. Without --deep
the brief is meeting prep only: no public research, gates not run.`,
		Example: `  briefgate brief --person "Jane Doe" --company Acme --deep
  briefgate brief --email jane@acme.com --topic "renewal pricing" --meeting "2026-03-01 15:00"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := res.Markdown
			if jsonOut {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
				out = string(data) + "\n"
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outPath, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s, %s)\n", outPath, res.Mode, res.GateStatus)
				return nil
			}
			return writeString(cmd.OutOrStdout(), out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Person, "person", "", "person name")
	f.StringVar(&req.Email, "email", "", "person email")
	f.StringVar(&req.Company, "company", "", "company name")
	f.StringVar(&req.Domain, "domain", "", "company domain")
	f.StringVar(&req.Title, "title", "", "known job title")
	f.StringVar(&req.Location, "location", "", "known location")
	f.StringVar(&req.IdentifierURL, "identifier-url", "", "known profile URL, e.g. a LinkedIn profile")
	f.StringVar(&req.Topic, "topic", "", "meeting topic")
	f.StringVar(&req.MeetingAt, "meeting", "", `meeting time (RFC 3339 or "2006-01-02 15:04")`)
	f.BoolVar(&req.DeepResearch, "deep", false, "run public research and the fail-closed gates")
	f.IntVar(&req.WindowDays, "window", 0, "retrieval window in days (default from config)")
	f.BoolVar(&jsonOut, "json", false, "print the result as JSON")
	f.StringVarP(&outPath, "out", "o", "", "write output to a file")
	return cmd
}
