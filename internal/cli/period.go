package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPeriodCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Manage billing periods",
	}
	cmd.AddCommand(newPeriodOpenCmd(g), newPeriodShowCmd(g))
	return cmd
}

func newPeriodOpenCmd(g *globalFlags) *cobra.Command {
	var account, start, end string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Archive the current period and open a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := parseTime("start", start)
			if err != nil {
				return err
			}
			var to time.Time
			if end == "" {
				to = from.AddDate(0, 1, 0)
			} else if to, err = parseTime("end", end); err != nil {
				return err
			}

			c, err := g.client()
			if err != nil {
				return err
			}
			res, err := c.OpenPeriod(cmd.Context(), account, from, to)
			if err != nil {
				return err
			}
			if g.asJSON {
				return g.writeJSON(cmd, res)
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "opened %s .. %s\n",
				res.Period.Start.Format(time.RFC3339), res.Period.End.Format(time.RFC3339)); err != nil {
				return err
			}
			if res.Archived == nil {
				return nil
			}
			_, err = fmt.Fprintf(out, "archived %s: requests=%d tokens=%d cost=%.2f\n",
				res.Archived.Period.Start.Format(time.RFC3339),
				res.Archived.Requests, res.Archived.Tokens, res.Archived.Cost)
			return err
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account ID")
	cmd.Flags().StringVar(&start, "start", "", "Period start (RFC3339 or YYYY-MM-DD, UTC)")
	cmd.Flags().StringVar(&end, "end", "", "Period end (default: start + 1 month)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func newPeriodShowCmd(g *globalFlags) *cobra.Command {
	var account, start string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an archived period by its start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := parseTime("start", start)
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			u, err := c.ArchivedPeriod(cmd.Context(), account, from)
			if err != nil {
				return err
			}
			if g.asJSON {
				return g.writeJSON(cmd, u)
			}
			return renderUsage(cmd.OutOrStdout(), u)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account ID")
	cmd.Flags().StringVar(&start, "start", "", "Archived period start (RFC3339 or YYYY-MM-DD, UTC)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func parseTime(flag, v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --%s %q: want RFC3339 or YYYY-MM-DD", flag, v)
}
