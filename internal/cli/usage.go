package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/planguard/pkg/client"
)

func newMeterCmd(g *globalFlags) *cobra.Command {
	var (
		account string
		req     client.MeterRequest
	)

	cmd := &cobra.Command{
		Use:   "meter",
		Short: "Record usage for an account and print triggered alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			alerts, err := c.Meter(cmd.Context(), account, req)
			if err != nil {
				return err
			}
			if g.asJSON {
				if alerts == nil {
					alerts = []client.Alert{}
				}
				return g.writeJSON(cmd, alerts)
			}
			out := cmd.OutOrStdout()
			if len(alerts) == 0 {
				_, err = fmt.Fprintln(out, "recorded, no alerts")
				return err
			}
			for _, a := range alerts {
				if _, err := fmt.Fprintf(out, "%s alert: %s at %.1f%% (threshold %.0f%%)\n",
					a.Kind, a.Metric, a.Percent, a.ThresholdPct); err != nil {
					return err
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&account, "account", "", "Account ID")
	f.StringVar(&req.Plan, "plan", "", "Plan the account is on")
	f.Int64Var(&req.Requests, "requests", 0, "Requests to add")
	f.Int64Var(&req.Tokens, "tokens", 0, "Tokens to add")
	f.Float64Var(&req.Cost, "cost", 0, "Cost to add, in currency units")
	f.Float64Var(&req.ThresholdPct, "threshold", 0, "Alert threshold percent (default: server setting)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func newUsageCmd(g *globalFlags) *cobra.Command {
	var account, plan string

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show an account's usage for its current period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			u, err := c.Usage(cmd.Context(), account, plan)
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
	cmd.Flags().StringVar(&plan, "plan", "", "Plan for quota percentages (optional)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func renderUsage(out io.Writer, u client.Usage) error {
	state := "open"
	if u.Closed {
		state = "closed"
	}
	if _, err := fmt.Fprintf(out, "account: %s\nperiod:  %s .. %s (%s)\n",
		u.AccountID, u.Period.Start.Format(time.RFC3339), u.Period.End.Format(time.RFC3339), state); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "METRIC\tUSED\tLIMIT\tPERCENT")
	if len(u.Quotas) == 0 {
		_, _ = fmt.Fprintf(tw, "requests\t%d\t-\t-\n", u.Requests)
		_, _ = fmt.Fprintf(tw, "tokens\t%d\t-\t-\n", u.Tokens)
		_, _ = fmt.Fprintf(tw, "cost\t%.2f\t-\t-\n", u.Cost)
		return tw.Flush()
	}
	for _, q := range u.Quotas {
		limit, pct := "unlimited", "-"
		if q.Limit != nil {
			limit = fmt.Sprintf("%d", *q.Limit)
		}
		if q.Percent != nil {
			pct = fmt.Sprintf("%.1f%%", *q.Percent)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", q.Metric, q.Used, limit, pct)
	}
	return tw.Flush()
}
