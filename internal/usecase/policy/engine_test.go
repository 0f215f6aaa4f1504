package policy

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/planguard/internal/catalog/models"
	"github.com/kailas-cloud/planguard/internal/catalog/plans"
	"github.com/kailas-cloud/planguard/internal/catalog/roles"
	"github.com/kailas-cloud/planguard/internal/domain"
	"github.com/kailas-cloud/planguard/internal/domain/alert"
	"github.com/kailas-cloud/planguard/internal/domain/decision"
	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/role"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
	repoledger "github.com/kailas-cloud/planguard/internal/repository/ledger"
	"github.com/kailas-cloud/planguard/internal/usecase/ledger"
)

// --- Helpers ---

type capturePublisher struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (c *capturePublisher) Publish(a alert.Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
}

func (c *capturePublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

// smallQuotaPlans gives FREE a 1000-token quota and drops its request quota
// so token alerts can be tested in isolation.
func smallQuotaPlans(t *testing.T) *plans.Catalog {
	t.Helper()
	defs := plans.DefaultDefinitions()
	defs[0].TokenQuota = plan.Limit(1000)
	defs[0].RequestQuota = nil
	c, err := plans.New(defs)
	require.NoError(t, err)
	return c
}

func newEngine(t *testing.T, pc *plans.Catalog, pub AlertPublisher) *Engine {
	t.Helper()
	mc, err := models.New(models.DefaultModels())
	require.NoError(t, err)
	led := ledger.New(repoledger.NewMemory(time.Hour), pc, time.Second, nil)
	return New(roles.Default(), pc, mc, led, pub, Config{DefaultThresholdPct: 80}, nil)
}

func meterTokens(t *testing.T, e *Engine, tokens int64, pct float64) []alert.Alert {
	t.Helper()
	alerts, err := e.RecordAndCheckThresholds(context.Background(), "acct", plan.Free, usage.Delta{Tokens: tokens}, pct)
	require.NoError(t, err)
	return alerts
}

// --- Capabilities ---

func TestCanAccessCapability_HigherRoleIsSuperset(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)
	rc := roles.Default()

	for _, lower := range role.All {
		caps, err := rc.CapabilitiesFor(lower)
		require.NoError(t, err)
		for _, higher := range role.All {
			if higher.Rank() < lower.Rank() {
				continue
			}
			for c := range caps {
				assert.True(t, e.CanAccessCapability(higher, c).Allowed,
					"%s must have %s granted to %s", higher, c, lower)
			}
		}
	}
}

func TestCanAccessCapability_ViewerCannotEditBilling(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	d := e.CanAccessCapability(role.Viewer, role.EditBilling)
	assert.False(t, d.Allowed)
	assert.Equal(t, decision.InsufficientRole, d.Reason)
}

func TestCheckCapability_CaseInsensitiveRole(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	for _, raw := range []string{"owner", "OWNER", " Owner "} {
		assert.True(t, e.CheckCapability(raw, "edit-billing").Allowed, "role %q", raw)
	}
}

func TestCheckCapability_UnknownRole(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	d := e.CheckCapability("superuser", "view-dashboard")
	assert.False(t, d.Allowed)
	assert.Equal(t, decision.UnknownRole, d.Reason)
}

// --- Models ---

func TestCheckModelAccess_MemberFreeGPT4(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	d := e.CheckModelAccess("MEMBER", "FREE", "gpt-4")
	assert.False(t, d.Allowed)
	assert.Equal(t, decision.PlanUpgradeRequired, d.Reason)
	require.True(t, d.HasUpgrade())
	assert.Equal(t, plan.Starter, d.UpgradeTo)
}

func TestCanUseModel_EnterpriseAllowsEveryKnownModel(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	for _, m := range models.DefaultModels() {
		assert.True(t, e.CanUseModel(role.Member, plan.Enterprise, m.ID()).Allowed, m.ID())
	}
}

func TestCanUseModel_FreeModelOnFreePlan(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	assert.True(t, e.CanUseModel(role.Member, plan.Free, "llama-3-8b").Allowed)
}

func TestCanUseModel_UnknownModelFailsClosed(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	d := e.CanUseModel(role.Owner, plan.Enterprise, "not-a-model")
	assert.False(t, d.Allowed)
	assert.Equal(t, decision.UnknownModel, d.Reason)
}

func TestCanUseModel_ViewerCannotInvoke(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	d := e.CanUseModel(role.Viewer, plan.Starter, "gpt-4")
	assert.False(t, d.Allowed)
	assert.Equal(t, decision.InsufficientRole, d.Reason)
}

func TestCanUseModel_PlanCheckedBeforeRole(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	d := e.CanUseModel(role.Viewer, plan.Free, "claude-3-5-sonnet")
	assert.Equal(t, decision.PlanUpgradeRequired, d.Reason)
	assert.Equal(t, plan.Professional, d.UpgradeTo)
}

func TestCheckModelAccess_UnknownPlan(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	d := e.CheckModelAccess("ADMIN", "platinum", "gpt-4")
	assert.False(t, d.Allowed)
	assert.Equal(t, decision.UnknownPlan, d.Reason)
}

// --- Thresholds ---

func TestRecordAndCheckThresholds_EdgeTriggered(t *testing.T) {
	pub := &capturePublisher{}
	e := newEngine(t, smallQuotaPlans(t), pub)

	assert.Empty(t, meterTokens(t, e, 750, 80), "0 -> 75%")
	assert.Empty(t, meterTokens(t, e, 40, 80), "75 -> 79%")

	alerts := meterTokens(t, e, 20, 80)
	require.Len(t, alerts, 1, "79 -> 81%")
	assert.Equal(t, usage.MetricTokens, alerts[0].Metric)
	assert.Equal(t, alert.KindThreshold, alerts[0].Kind)
	assert.InDelta(t, 81.0, alerts[0].Percent, 1e-9)
	assert.NotEmpty(t, alerts[0].ID)

	assert.Empty(t, meterTokens(t, e, 40, 80), "81 -> 85%")
	assert.Equal(t, 1, pub.count())
}

func TestRecordAndCheckThresholds_QuotaExceededOncePerCrossing(t *testing.T) {
	e := newEngine(t, smallQuotaPlans(t), nil)

	meterTokens(t, e, 950, 80)

	alerts := meterTokens(t, e, 100, 80)
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.KindQuotaExceeded, alerts[0].Kind)

	assert.Empty(t, meterTokens(t, e, 100, 80), "already past 100%")

	rec, err := e.UsageSnapshot(context.Background(), "acct")
	require.NoError(t, err)
	assert.Equal(t, int64(1150), rec.TokenCount(), "usage past the quota is still recorded")
}

func TestRecordAndCheckThresholds_JumpPastBoth(t *testing.T) {
	e := newEngine(t, smallQuotaPlans(t), nil)

	alerts := meterTokens(t, e, 1200, 80)
	require.Len(t, alerts, 2)
	assert.Equal(t, alert.KindThreshold, alerts[0].Kind)
	assert.Equal(t, alert.KindQuotaExceeded, alerts[1].Kind)
}

func TestRecordAndCheckThresholds_UnlimitedPlanNeverAlerts(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	alerts, err := e.RecordAndCheckThresholds(context.Background(), "acct", plan.Enterprise,
		usage.Delta{Requests: 1 << 40, Tokens: 1 << 40, Cost: 1e6}, 80)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestRecordAndCheckThresholds_InvalidThreshold(t *testing.T) {
	e := newEngine(t, smallQuotaPlans(t), nil)
	ctx := context.Background()

	for _, pct := range []float64{0, -5, 100.5, math.NaN(), math.Inf(1)} {
		_, err := e.RecordAndCheckThresholds(ctx, "acct", plan.Free, usage.Delta{Tokens: 10}, pct)
		assert.ErrorIs(t, err, domain.ErrInvalidThreshold, "pct %v", pct)
	}

	rec, err := e.UsageSnapshot(ctx, "acct")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.TokenCount(), "rejected calls must not record usage")
}

func TestRecordAndCheckThresholds_InvalidDelta(t *testing.T) {
	e := newEngine(t, smallQuotaPlans(t), nil)

	_, err := e.RecordAndCheckThresholds(context.Background(), "acct", plan.Free, usage.Delta{Tokens: -1}, 80)
	assert.ErrorIs(t, err, domain.ErrInvalidUsageDelta)
}

func TestRecordAndCheckThresholds_ConcurrentCrossingFiresOnce(t *testing.T) {
	pub := &capturePublisher{}
	e := newEngine(t, smallQuotaPlans(t), pub)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.RecordAndCheckThresholds(context.Background(), "acct", plan.Free, usage.Delta{Tokens: 15}, 50)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var threshold, exceeded int
	for _, a := range pub.alerts {
		switch a.Kind {
		case alert.KindThreshold:
			threshold++
		case alert.KindQuotaExceeded:
			exceeded++
		}
	}
	assert.Equal(t, 1, threshold)
	assert.Equal(t, 1, exceeded)
}

// --- String boundary ---

func TestMeterUsage_DefaultThreshold(t *testing.T) {
	e := newEngine(t, smallQuotaPlans(t), nil)
	ctx := context.Background()

	alerts, err := e.MeterUsage(ctx, "acct", "free", usage.Delta{Tokens: 810}, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.InDelta(t, 80.0, alerts[0].ThresholdPct, 1e-9)
}

func TestMeterUsage_UnknownPlan(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	_, err := e.MeterUsage(context.Background(), "acct", "gold", usage.Delta{Tokens: 1}, 80)
	assert.ErrorIs(t, err, domain.ErrUnknownPlan)
}

func TestMeterUsage_RequestAndTokenAlerts(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)

	alerts, err := e.MeterUsage(context.Background(), "acct", "FREE",
		usage.Delta{Requests: 900, Tokens: 90_000}, 80)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, usage.MetricTokens, alerts[0].Metric)
	assert.Equal(t, usage.MetricRequests, alerts[1].Metric)
}

func TestQuotaReport(t *testing.T) {
	e := newEngine(t, plans.Default(), nil)
	ctx := context.Background()

	_, err := e.MeterUsage(ctx, "acct", "starter", usage.Delta{Requests: 500, Tokens: 250_000}, 80)
	require.NoError(t, err)

	rec, report, err := e.QuotaReport(ctx, "acct", plan.Starter)
	require.NoError(t, err)
	assert.Equal(t, int64(500), rec.RequestCount())
	require.Len(t, report, 3)

	byMetric := map[usage.Metric]QuotaUsage{}
	for _, q := range report {
		byMetric[q.Metric] = q
	}
	assert.InDelta(t, 25.0, byMetric[usage.MetricTokens].Percent, 1e-9)
	assert.InDelta(t, 5.0, byMetric[usage.MetricRequests].Percent, 1e-9)
	assert.True(t, byMetric[usage.MetricCost].Unlimited)
}
