package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/planguard/internal/domain/alert"
	"github.com/kailas-cloud/planguard/internal/domain/decision"
	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/role"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
	ledgeruc "github.com/kailas-cloud/planguard/internal/usecase/ledger"
)

// CheckCapability is CanAccessCapability for raw session strings.
// An unparseable role is denied with UnknownRole.
func (e *Engine) CheckCapability(rawRole, capability string) decision.Decision {
	r, err := role.Parse(rawRole)
	if err != nil {
		d := decision.Deny(decision.UnknownRole)
		e.observe(opCapability, d, zapRaw("role", rawRole))
		return d
	}
	return e.CanAccessCapability(r, role.Capability(strings.TrimSpace(capability)))
}

// CheckModelAccess is CanUseModel for raw session strings.
// Unparseable roles and plans are denied with UnknownRole / UnknownPlan.
func (e *Engine) CheckModelAccess(rawRole, rawPlan, modelID string) decision.Decision {
	r, err := role.Parse(rawRole)
	if err != nil {
		d := decision.Deny(decision.UnknownRole)
		e.observe(opModel, d, zapRaw("role", rawRole))
		return d
	}
	p, err := plan.Parse(rawPlan)
	if err != nil {
		d := decision.Deny(decision.UnknownPlan)
		e.observe(opModel, d, zapRaw("plan", rawPlan))
		return d
	}
	return e.CanUseModel(r, p, strings.TrimSpace(modelID))
}

// MeterUsage is RecordAndCheckThresholds for raw session strings.
// A zero thresholdPct selects the configured default.
func (e *Engine) MeterUsage(
	ctx context.Context, accountID, rawPlan string, d usage.Delta, thresholdPct float64,
) ([]alert.Alert, error) {
	p, err := plan.Parse(rawPlan)
	if err != nil {
		return nil, err
	}
	if thresholdPct == 0 {
		thresholdPct = e.defaultThreshold
	}
	alerts, err := e.RecordAndCheckThresholds(ctx, accountID, p, d, thresholdPct)
	if err != nil {
		return nil, fmt.Errorf("meter usage: %w", err)
	}
	return alerts, nil
}

// UsageSnapshot returns the account's current usage record.
func (e *Engine) UsageSnapshot(ctx context.Context, accountID string) (usage.Record, error) {
	rec, err := e.ledger.CurrentUsage(ctx, accountID)
	if err != nil {
		return usage.Record{}, fmt.Errorf("usage snapshot: %w", err)
	}
	return rec, nil
}

// QuotaUsage is one metric of a quota report.
type QuotaUsage = ledgeruc.Share

// QuotaReport reads the current record once and relates every metered metric
// to p's quota.
func (e *Engine) QuotaReport(ctx context.Context, accountID string, p plan.Plan) (usage.Record, []QuotaUsage, error) {
	rec, shares, err := e.ledger.QuotaShares(ctx, accountID, p)
	if err != nil {
		return usage.Record{}, nil, fmt.Errorf("quota report: %w", err)
	}
	return rec, shares, nil
}
