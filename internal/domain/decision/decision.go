// Package decision holds the allow/deny outcome of a policy check.
// A denial is an expected value, not an error.
package decision

import "github.com/kailas-cloud/planguard/internal/domain/plan"

// Reason is a machine-readable denial reason the UI maps to a prompt.
type Reason string

// Denial reasons.
const (
	InsufficientRole    Reason = "InsufficientRole"
	PlanUpgradeRequired Reason = "PlanUpgradeRequired"
	QuotaExceeded       Reason = "QuotaExceeded"
	UnknownModel        Reason = "UnknownModel"
	UnknownRole         Reason = "UnknownRole"
	UnknownPlan         Reason = "UnknownPlan"
)

// Decision is Allow or Deny(reason[, upgrade hint]).
type Decision struct {
	Allowed   bool
	Reason    Reason
	UpgradeTo plan.Plan // zero when there is no hint
}

// Allow returns a permitting decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a denial for reason.
func Deny(reason Reason) Decision { return Decision{Reason: reason} }

// DenyWithUpgrade returns a PlanUpgradeRequired denial naming the plan to upgrade to.
func DenyWithUpgrade(to plan.Plan) Decision {
	return Decision{Reason: PlanUpgradeRequired, UpgradeTo: to}
}

// HasUpgrade reports whether the decision carries an upgrade hint.
func (d Decision) HasUpgrade() bool { return d.UpgradeTo.Valid() }

// Outcome is "allow" or "deny", used as a metric label.
func (d Decision) Outcome() string {
	if d.Allowed {
		return "allow"
	}
	return "deny"
}
