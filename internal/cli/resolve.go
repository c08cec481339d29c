package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/briefgate/internal/entity"
	"github.com/danielpatrickdp/briefgate/internal/store"
)

func newResolveCmd(a *app) *cobra.Command {
	var (
		q   entity.Query
		typ string
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Find or create the entity for a name, email or domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch store.EntityType(typ) {
			case store.TypePerson, store.TypeCompany:
				q.Type = store.EntityType(typ)
			default:
				return fmt.Errorf("--type must be %q or %q", store.TypePerson, store.TypeCompany)
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			e, err := entity.NewResolver(s, a.logger).Resolve(cmd.Context(), q)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(e)
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.Name, "name", "", "display name")
	f.StringVar(&q.Email, "email", "", "email address")
	f.StringVar(&q.Domain, "domain", "", "company domain")
	f.StringVar(&typ, "type", string(store.TypePerson), "person or company")
	return cmd
}
