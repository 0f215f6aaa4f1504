package planguard

import (
	"context"
	"time"

	domalert "github.com/kailas-cloud/planguard/internal/domain/alert"
	"github.com/kailas-cloud/planguard/internal/domain/decision"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	// Reason is empty when Allowed, otherwise one of InsufficientRole,
	// PlanUpgradeRequired, UnknownModel, UnknownRole, UnknownPlan.
	Reason string
	// UpgradeTo names the cheapest plan that would allow the model, if any.
	UpgradeTo string
}

// Delta is a usage increment. Components must be non-negative.
type Delta struct {
	Requests int64
	Tokens   int64
	Cost     float64
}

// Usage is one account's counters for one billing period.
type Usage struct {
	AccountID   string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Requests    int64
	Tokens      int64
	Cost        float64
	Closed      bool
}

// Alert reports an upward crossing of a threshold or of the quota itself.
type Alert struct {
	ID           string
	AccountID    string
	Plan         string
	Metric       string // "tokens", "requests" or "cost"
	Kind         string // "threshold" or "quota_exceeded"
	Percent      float64
	ThresholdPct float64
	At           time.Time
}

// AlertSink receives alerts off the metering path. Send may be called
// concurrently; an error is logged and counted, never retried.
type AlertSink interface {
	Send(ctx context.Context, a Alert) error
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}

func decisionFromDomain(d decision.Decision) Decision {
	out := Decision{Allowed: d.Allowed, Reason: string(d.Reason)}
	if d.HasUpgrade() {
		out.UpgradeTo = d.UpgradeTo.String()
	}
	return out
}

func usageFromDomain(r usage.Record) Usage {
	p := r.Period()
	return Usage{
		AccountID:   r.AccountID(),
		PeriodStart: p.Start,
		PeriodEnd:   p.End,
		Requests:    r.RequestCount(),
		Tokens:      r.TokenCount(),
		Cost:        r.CostAccrued(),
		Closed:      r.Closed(),
	}
}

func alertFromDomain(a domalert.Alert) Alert {
	return Alert{
		ID:           a.ID,
		AccountID:    a.AccountID,
		Plan:         a.Plan.String(),
		Metric:       string(a.Metric),
		Kind:         string(a.Kind),
		Percent:      a.Percent,
		ThresholdPct: a.ThresholdPct,
		At:           a.At,
	}
}

// sinkAdapter wraps a public AlertSink to satisfy the internal sink contract.
type sinkAdapter struct {
	inner AlertSink
}

func (s sinkAdapter) Name() string { return "embedded" }

func (s sinkAdapter) Send(ctx context.Context, a domalert.Alert) error {
	return s.inner.Send(ctx, alertFromDomain(a)) //nolint:wrapcheck // caller-supplied sink
}
