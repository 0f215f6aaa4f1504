package client

import (
	"context"
	"net/http"
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

const testKey = "test-key"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	bundle := catalog.Defaults()
	ledger := ledgeruc.New(repoledger.NewMemory(time.Hour), bundle.Plans, time.Second, zap.NewNop())
	engine := policyuc.New(bundle.Roles, bundle.Plans, bundle.Models, ledger, nil, policyuc.Config{}, zap.NewNop())
	srv := chiTransport.NewServer(engine, ledger, bundle, healthuc.New(nil, nil), zap.NewNop())
	h := chiTransport.NewRouter(srv, chiTransport.RouterConfig{APIKeys: []string{testKey}}, zap.NewNop())

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(newTestServer(t).URL, WithAPIKey(testKey))
	require.NoError(t, err)
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "://nope"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}
}

func TestCheckCapabilityAndModel(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	d, err := c.CheckCapability(ctx, "VIEWER", "edit-billing")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "InsufficientRole", d.Reason)

	d, err = c.CheckModel(ctx, "MEMBER", "FREE", "gpt-4")
	require.NoError(t, err)
	assert.Equal(t, Decision{Reason: "PlanUpgradeRequired", UpgradeTo: "starter"}, d)
}

func TestMeterUsageAndPeriods(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	alerts, err := c.Meter(ctx, "acct-1", MeterRequest{Plan: "free", Requests: 1, Tokens: 90_000})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "threshold", alerts[0].Kind)

	u, err := c.Usage(ctx, "acct-1", "free")
	require.NoError(t, err)
	assert.Equal(t, int64(90_000), u.Tokens)
	require.NotEmpty(t, u.Quotas)

	res, err := c.OpenPeriod(ctx, "acct-1", u.Period.End, u.Period.End.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.NotNil(t, res.Archived)
	assert.Equal(t, int64(90_000), res.Archived.Tokens)

	archived, err := c.ArchivedPeriod(ctx, "acct-1", u.Period.Start)
	require.NoError(t, err)
	assert.True(t, archived.Closed)

	u, err = c.Usage(ctx, "acct-1", "")
	require.NoError(t, err)
	assert.Zero(t, u.Tokens)
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Meter(context.Background(), "acct-1", MeterRequest{Plan: "gold", Tokens: 1})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "unknown_plan", apiErr.Code)
	assert.False(t, IsRetryable(err))
}

func TestUnauthorized(t *testing.T) {
	c, err := New(newTestServer(t).URL)
	require.NoError(t, err)

	_, err = c.Plans(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestCatalogListings(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	plans, err := c.Plans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 4)

	roles, err := c.Roles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 4)

	models, err := c.Models(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, models)

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
}

func TestRetryAfterAndUserAgent(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Retry-After", "3")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":"ledger_unavailable","message":"ledger unavailable"}`))
	}))
	defer ts.Close()

	c, err := New(ts.URL)
	require.NoError(t, err)

	_, err = c.Meter(context.Background(), "acct-1", MeterRequest{Plan: "free", Tokens: 1})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 3*time.Second, apiErr.RetryAfter)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, version.UserAgent(), gotUA)
}
