package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/planguard/internal/catalog"
	repoledger "github.com/kailas-cloud/planguard/internal/repository/ledger"
	chiTransport "github.com/kailas-cloud/planguard/internal/transport/chi"
	healthuc "github.com/kailas-cloud/planguard/internal/usecase/health"
	ledgeruc "github.com/kailas-cloud/planguard/internal/usecase/ledger"
	policyuc "github.com/kailas-cloud/planguard/internal/usecase/policy"
	"github.com/kailas-cloud/planguard/internal/version"
)

const testAPIKey = "cli-key"

func TestVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, "http://localhost:1", "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", stdout)
}

func TestCheckCapability(t *testing.T) {
	url := startServer(t)

	stdout, _, err := executeCLI(t, url, "check", "capability", "--role", "viewer", "--capability", "edit-billing")
	require.NoError(t, err)
	assert.Equal(t, "denied: InsufficientRole\n", stdout)

	stdout, _, err = executeCLI(t, url, "check", "capability", "--role", "owner", "--capability", "edit-billing")
	require.NoError(t, err)
	assert.Equal(t, "allowed\n", stdout)
}

func TestCheckModelJSONOutput(t *testing.T) {
	url := startServer(t)

	stdout, _, err := executeCLI(t, url, "check", "model", "--role", "member", "--plan", "free", "--model", "gpt-4", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"upgrade_to\": \"starter\"")
}

func TestCheckModelRequiresFlags(t *testing.T) {
	_, _, err := executeCLI(t, "http://localhost:1", "check", "model", "--role", "member")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s)")
}

func TestMeterThenUsage(t *testing.T) {
	url := startServer(t)

	stdout, _, err := executeCLI(t, url, "meter", "--account", "acc-1", "--plan", "free", "--tokens", "1000")
	require.NoError(t, err)
	assert.Equal(t, "recorded, no alerts\n", stdout)

	stdout, _, err = executeCLI(t, url, "meter", "--account", "acc-1", "--plan", "free", "--tokens", "89000")
	require.NoError(t, err)
	assert.Contains(t, stdout, "threshold alert: tokens at 90.0% (threshold 80%)")

	stdout, _, err = executeCLI(t, url, "usage", "--account", "acc-1", "--plan", "free")
	require.NoError(t, err)
	assert.Contains(t, stdout, "account: acc-1")
	assert.Contains(t, stdout, "(open)")
	assert.Regexp(t, `tokens\s+90000\s+100000\s+90\.0%`, stdout)
}

func TestMeterUnknownPlan(t *testing.T) {
	url := startServer(t)

	_, _, err := executeCLI(t, url, "meter", "--account", "acc-1", "--plan", "gold", "--tokens", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown_plan")
}

func TestPeriodOpenAndShow(t *testing.T) {
	url := startServer(t)

	_, _, err := executeCLI(t, url, "meter", "--account", "acc-2", "--plan", "starter", "--requests", "3")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, url, "usage", "--account", "acc-2", "--json")
	require.NoError(t, err)
	var current struct {
		Period struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"period"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &current))

	next := current.Period.End.Format(time.RFC3339)
	stdout, _, err = executeCLI(t, url, "period", "open", "--account", "acc-2", "--start", next)
	require.NoError(t, err)
	assert.Contains(t, stdout, "opened "+next)
	assert.Contains(t, stdout, "requests=3")

	stdout, _, err = executeCLI(t, url, "period", "show", "--account", "acc-2",
		"--start", current.Period.Start.Format(time.RFC3339))
	require.NoError(t, err)
	assert.Contains(t, stdout, "(closed)")
}

func TestPeriodOpenInvalidStart(t *testing.T) {
	_, _, err := executeCLI(t, "http://localhost:1", "period", "open", "--account", "a", "--start", "next week")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --start")
}

func TestCatalogListings(t *testing.T) {
	url := startServer(t)

	stdout, _, err := executeCLI(t, url, "plans")
	require.NoError(t, err)
	assert.Contains(t, stdout, "PLAN")
	assert.Contains(t, stdout, "enterprise")
	assert.Contains(t, stdout, "unlimited")
	assert.Contains(t, stdout, "$19.00")
	assert.Contains(t, stdout, "custom")

	stdout, _, err = executeCLI(t, url, "roles")
	require.NoError(t, err)
	assert.Contains(t, stdout, "OWNER")

	stdout, _, err = executeCLI(t, url, "models", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "gpt-4")
}

func TestWrongAPIKey(t *testing.T) {
	url := startServer(t)

	_, _, err := executeCLI(t, url, "plans", "--api-key", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func startServer(t *testing.T) string {
	t.Helper()
	bundle := catalog.Defaults()
	ledger := ledgeruc.New(repoledger.NewMemory(time.Hour), bundle.Plans, time.Second, zap.NewNop())
	engine := policyuc.New(bundle.Roles, bundle.Plans, bundle.Models, ledger, nil, policyuc.Config{}, zap.NewNop())
	srv := chiTransport.NewServer(engine, ledger, bundle, healthuc.New(nil, nil), zap.NewNop())

	ts := httptest.NewServer(chiTransport.NewRouter(srv, chiTransport.RouterConfig{APIKeys: []string{testAPIKey}}, zap.NewNop()))
	t.Cleanup(ts.Close)
	return ts.URL
}

func executeCLI(t *testing.T, server string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(envServer, server)
	t.Setenv(envAPIKey, testAPIKey)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
