// Package plan defines subscription plans, their quotas and model-access policies.
package plan

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/planguard/internal/domain"
)

// Plan is a canonical subscription plan. The zero value is invalid.
type Plan uint8

// Plans, declared in ascending rank.
const (
	Free Plan = iota + 1
	Starter
	Professional
	Enterprise
)

// All lists every plan in ascending rank.
var All = []Plan{Free, Starter, Professional, Enterprise}

var ids = map[Plan]string{
	Free:         "free",
	Starter:      "starter",
	Professional: "professional",
	Enterprise:   "enterprise",
}

// Parse normalizes s (trim + lowercase) into a Plan.
func Parse(s string) (Plan, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for p, id := range ids {
		if id == norm {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrUnknownPlan, s)
}

// Valid reports whether p is one of the four plans.
func (p Plan) Valid() bool {
	_, ok := ids[p]
	return ok
}

// Rank orders plans; ENTERPRISE is highest.
func (p Plan) Rank() int { return int(p) }

// String returns the wire id ("starter").
func (p Plan) String() string {
	if id, ok := ids[p]; ok {
		return id
	}
	return fmt.Sprintf("Plan(%d)", uint8(p))
}

// MarshalText renders the wire id.
func (p Plan) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownPlan, uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText parses case-insensitively.
func (p *Plan) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ModelAccess is either the sentinel "all" or an explicit allowlist.
type ModelAccess struct {
	all       bool
	allowlist map[string]struct{}
}

// AllModels grants every model.
func AllModels() ModelAccess { return ModelAccess{all: true} }

// Allowlist grants free-tier models plus the listed ids.
func Allowlist(modelIDs ...string) ModelAccess {
	m := make(map[string]struct{}, len(modelIDs))
	for _, id := range modelIDs {
		m[id] = struct{}{}
	}
	return ModelAccess{allowlist: m}
}

// IsAll reports whether the policy is the "all" sentinel.
func (a ModelAccess) IsAll() bool { return a.all }

// Includes reports whether modelID is granted explicitly (or by "all").
func (a ModelAccess) Includes(modelID string) bool {
	if a.all {
		return true
	}
	_, ok := a.allowlist[modelID]
	return ok
}

// Models returns the explicit allowlist (nil for "all").
func (a ModelAccess) Models() []string {
	if a.all {
		return nil
	}
	out := make([]string, 0, len(a.allowlist))
	for id := range a.allowlist {
		out = append(out, id)
	}
	return out
}

// Definition is the static description of a plan.
// A nil quota means unlimited.
type Definition struct {
	Plan         Plan
	DisplayName  string
	PriceCents   int64
	ModelAccess  ModelAccess
	RequestQuota *int64
	TokenQuota   *int64
	// CostQuota is in micro-units of the billing currency.
	CostQuota *int64
	Features  []string
}

// Limit is a convenience constructor for a finite quota.
func Limit(v int64) *int64 { return &v }
