package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCatalogCmds(g *globalFlags) []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "roles",
			Short: "List roles and their capabilities",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := g.client()
				if err != nil {
					return err
				}
				roles, err := c.Roles(cmd.Context())
				if err != nil {
					return err
				}
				if g.asJSON {
					return g.writeJSON(cmd, roles)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ROLE\tCAPABILITIES")
				for _, r := range roles {
					_, _ = fmt.Fprintf(tw, "%s\t%s\n", r.Role, strings.Join(r.Capabilities, ","))
				}
				return tw.Flush()
			},
		},
		{
			Use:   "plans",
			Short: "List plans and their quotas",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := g.client()
				if err != nil {
					return err
				}
				plans, err := c.Plans(cmd.Context())
				if err != nil {
					return err
				}
				if g.asJSON {
					return g.writeJSON(cmd, plans)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "PLAN\tPRICE\tREQUESTS\tTOKENS\tMODELS")
				for _, p := range plans {
					models := strings.Join(p.Models, ",")
					if p.AllModels {
						models = "all"
					}
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Plan,
						price(p.PriceCents), quota(p.RequestQuota), quota(p.TokenQuota), models)
				}
				return tw.Flush()
			},
		},
		{
			Use:   "models",
			Short: "List models in the catalog",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := g.client()
				if err != nil {
					return err
				}
				models, err := c.Models(cmd.Context())
				if err != nil {
					return err
				}
				if g.asJSON {
					return g.writeJSON(cmd, models)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "MODEL\tPROVIDER\tTIER")
				for _, m := range models {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.Provider, m.Tier)
				}
				return tw.Flush()
			},
		},
	}
}

func quota(q *int64) string {
	if q == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%d", *q)
}

// price renders cents; negative means contact sales.
func price(cents int64) string {
	if cents < 0 {
		return "custom"
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
