// Package policy combines the role, plan and model catalogs with the usage
// ledger to answer access questions and raise quota alerts.
package policy

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/planguard/internal/domain"
	"github.com/kailas-cloud/planguard/internal/domain/alert"
	"github.com/kailas-cloud/planguard/internal/domain/decision"
	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/role"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
	"github.com/kailas-cloud/planguard/internal/metrics"
)

// Operation names used in logs and metrics.
const (
	opCapability = "capability"
	opModel      = "model"
	opMeter      = "meter"
)

// Engine is the policy decision point. Decisions are synchronous and only
// read immutable catalogs; metering goes through the ledger.
type Engine struct {
	roles            RoleCatalog
	plans            PlanCatalog
	models           ModelCatalog
	ledger           Ledger
	alerts           AlertPublisher
	defaultThreshold float64
	now              func() time.Time
	logger           *zap.Logger
}

// Config tunes the engine.
type Config struct {
	// DefaultThresholdPct applies when MeterUsage receives a zero threshold.
	DefaultThresholdPct float64
}

// New creates an Engine. alerts may be nil when nobody listens.
func New(
	roles RoleCatalog, plans PlanCatalog, models ModelCatalog,
	ledger Ledger, alerts AlertPublisher, cfg Config, logger *zap.Logger,
) *Engine {
	if cfg.DefaultThresholdPct == 0 {
		cfg.DefaultThresholdPct = domain.DefaultPolicyConfig().DefaultThresholdPct
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		roles:            roles,
		plans:            plans,
		models:           models,
		ledger:           ledger,
		alerts:           alerts,
		defaultThreshold: cfg.DefaultThresholdPct,
		now:              time.Now,
		logger:           logger,
	}
}

// CanAccessCapability allows r iff the role catalog grants it tag.
func (e *Engine) CanAccessCapability(r role.Role, tag role.Capability) decision.Decision {
	d := decision.Deny(decision.InsufficientRole)
	if e.roles.HasCapability(r, tag) {
		d = decision.Allow()
	}
	e.observe(opCapability, d,
		zap.Stringer("role", r),
		zap.String("capability", string(tag)),
	)
	return d
}

// CanUseModel checks, in order: the model exists, the plan allows it, and the
// role may invoke models at all. Unknown models are denied.
func (e *Engine) CanUseModel(r role.Role, p plan.Plan, modelID string) decision.Decision {
	d := e.canUseModel(r, p, modelID)
	fields := []zap.Field{
		zap.Stringer("role", r),
		zap.Stringer("plan", p),
		zap.String("model_id", modelID),
	}
	if d.HasUpgrade() {
		fields = append(fields, zap.Stringer("upgrade_to", d.UpgradeTo))
	}
	e.observe(opModel, d, fields...)
	return d
}

func (e *Engine) canUseModel(r role.Role, p plan.Plan, modelID string) decision.Decision {
	m, ok := e.models.Lookup(modelID)
	if !ok {
		return decision.Deny(decision.UnknownModel)
	}
	if !e.plans.IsModelAllowed(p, m) {
		if to, ok := e.plans.UpgradeFor(p, m); ok {
			return decision.DenyWithUpgrade(to)
		}
		return decision.Deny(decision.PlanUpgradeRequired)
	}
	if !e.roles.HasCapability(r, role.InvokeModels) {
		return decision.Deny(decision.InsufficientRole)
	}
	return decision.Allow()
}

// RecordAndCheckThresholds records d, then compares the counters before and
// after the update against p's finite quotas. It returns one threshold alert
// per metric that crossed thresholdPct upward, and one quota-exceeded alert
// per metric that crossed 100%. Usage beyond the quota is still recorded.
func (e *Engine) RecordAndCheckThresholds(
	ctx context.Context, accountID string, p plan.Plan, d usage.Delta, thresholdPct float64,
) ([]alert.Alert, error) {
	if math.IsNaN(thresholdPct) || thresholdPct <= 0 || thresholdPct > 100 {
		return nil, fmt.Errorf("%w: %v is outside (0, 100]", domain.ErrInvalidThreshold, thresholdPct)
	}
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPlan, p)
	}

	ch, err := e.ledger.RecordUsage(ctx, accountID, d)
	if err != nil {
		return nil, fmt.Errorf("record usage: %w", err)
	}

	at := e.now()
	var out []alert.Alert
	for _, m := range usage.Metered {
		limit, ok, err := e.plans.QuotaFor(p, m)
		if err != nil {
			return nil, fmt.Errorf("quota for %s: %w", m, err)
		}
		if !ok {
			continue
		}
		pre := usage.Percent(ch.Before.Value(m), limit)
		post := usage.Percent(ch.After.Value(m), limit)

		if crossed(pre, post, thresholdPct) {
			out = append(out, alert.New(accountID, p, m, alert.KindThreshold, post, thresholdPct, at))
		}
		if crossed(pre, post, 100) {
			out = append(out, alert.New(accountID, p, m, alert.KindQuotaExceeded, post, thresholdPct, at))
		}
	}

	for _, a := range out {
		metrics.AlertsTotal.WithLabelValues(string(a.Metric), string(a.Kind)).Inc()
		e.logger.Info("Usage alert",
			zap.String("alert_id", a.ID),
			zap.String("account_id", accountID),
			zap.Stringer("plan", p),
			zap.String("metric", string(a.Metric)),
			zap.String("kind", string(a.Kind)),
			zap.Float64("percent", a.Percent),
		)
		if e.alerts != nil {
			e.alerts.Publish(a)
		}
	}
	return out, nil
}

// crossed reports an upward crossing: pre < t <= post.
func crossed(pre, post, t float64) bool {
	return pre < t && t <= post
}

func zapRaw(key, val string) zap.Field {
	return zap.String(key+"_raw", val)
}

func (e *Engine) observe(op string, d decision.Decision, fields ...zap.Field) {
	metrics.PolicyDecisionsTotal.WithLabelValues(op, d.Outcome(), string(d.Reason)).Inc()
	if ce := e.logger.Check(zap.DebugLevel, "Policy decision"); ce != nil {
		fields = append(fields,
			zap.String("operation", op),
			zap.Bool("allowed", d.Allowed),
			zap.String("reason", string(d.Reason)),
		)
		ce.Write(fields...)
	}
}
