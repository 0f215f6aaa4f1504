// Package cli implements planguardctl, a command line client for the
// planguard HTTP API.
package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/planguard/pkg/client"
)

const (
	envServer = "PLANGUARD_URL"
	envAPIKey = "PLANGUARD_API_KEY"

	defaultServer = "http://localhost:8080"
)

type globalFlags struct {
	server  string
	apiKey  string
	timeout time.Duration
	asJSON  bool
}

// Execute runs planguardctl with os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "planguardctl",
		Short:         "planguardctl: query and meter a planguard server",
		Long:          "planguardctl checks capabilities and model access, meters usage, and manages billing periods against a running planguard server.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.server, "server", envOr(envServer, defaultServer), "planguard base URL (env "+envServer+")")
	pf.StringVar(&g.apiKey, "api-key", os.Getenv(envAPIKey), "API key sent as a Bearer token (env "+envAPIKey+")")
	pf.DurationVar(&g.timeout, "timeout", 10*time.Second, "request timeout")
	pf.BoolVar(&g.asJSON, "json", false, "Render JSON output")

	rootCmd.AddCommand(
		newVersionCmd(),
		newCheckCmd(g),
		newMeterCmd(g),
		newUsageCmd(g),
		newPeriodCmd(g),
	)
	rootCmd.AddCommand(newCatalogCmds(g)...)

	return rootCmd
}

func (g *globalFlags) client() (*client.Client, error) {
	opts := []client.Option{client.WithHTTPClient(&http.Client{Timeout: g.timeout})}
	if g.apiKey != "" {
		opts = append(opts, client.WithAPIKey(g.apiKey))
	}
	c, err := client.New(g.server, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return c, nil
}

func (g *globalFlags) writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
