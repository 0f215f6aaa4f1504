package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/planguard/pkg/client"
)

func newCheckCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate capability and model access decisions",
	}
	cmd.AddCommand(newCheckCapabilityCmd(g), newCheckModelCmd(g))
	return cmd
}

func newCheckCapabilityCmd(g *globalFlags) *cobra.Command {
	var role, capability string

	cmd := &cobra.Command{
		Use:   "capability",
		Short: "Check whether a role may perform a capability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			d, err := c.CheckCapability(cmd.Context(), role, capability)
			if err != nil {
				return err
			}
			return g.renderDecision(cmd, d)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Role (OWNER, ADMIN, MEMBER, VIEWER)")
	cmd.Flags().StringVar(&capability, "capability", "", "Capability, e.g. edit-billing")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("capability")

	return cmd
}

func newCheckModelCmd(g *globalFlags) *cobra.Command {
	var role, plan, model string

	cmd := &cobra.Command{
		Use:   "model",
		Short: "Check whether a role on a plan may invoke a model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			d, err := c.CheckModel(cmd.Context(), role, plan, model)
			if err != nil {
				return err
			}
			return g.renderDecision(cmd, d)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Role")
	cmd.Flags().StringVar(&plan, "plan", "", "Plan (free, starter, pro, enterprise)")
	cmd.Flags().StringVar(&model, "model", "", "Model ID")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func (g *globalFlags) renderDecision(cmd *cobra.Command, d client.Decision) error {
	if g.asJSON {
		return g.writeJSON(cmd, d)
	}
	out := cmd.OutOrStdout()
	if d.Allowed {
		_, err := fmt.Fprintln(out, "allowed")
		return err
	}
	if d.UpgradeTo != "" {
		_, err := fmt.Fprintf(out, "denied: %s (upgrade to %s)\n", d.Reason, d.UpgradeTo)
		return err
	}
	_, err := fmt.Fprintf(out, "denied: %s\n", d.Reason)
	return err
}
