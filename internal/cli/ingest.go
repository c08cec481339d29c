package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/briefgate/internal/entity"
	"github.com/danielpatrickdp/briefgate/internal/ingest"
	"github.com/danielpatrickdp/briefgate/internal/worker"
)

func newIngestCmd(a *app) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Append meeting, email and PDF records from a JSON file",
		Long: `Append source records from a JSON array or JSON lines of items ("-" reads stdin).

Each item has kind (meeting, email or pdf), external_id, body, occurred_at
and participants. Records already stored under the same kind and
external_id are not rewritten or re-embedded; new participants are linked to
them. Bodies are chunked and embedded when an embedder is
configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}
			items, err := ingest.DecodeItems(r)
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			emb, _, err := a.llm()
			if err != nil {
				return fmt.Errorf("llm: %w", err)
			}
			if workers <= 0 {
				workers = a.cfg.Research.Workers
			}
			syncer := ingest.NewSyncer(s, entity.NewResolver(s, a.logger), emb, worker.NewPool(workers, 0), a.logger)
			report := syncer.Sync(cmd.Context(), items)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d item(s) failed", report.Failed, len(items))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent items (default research.workers)")
	return cmd
}
