// Package plans is the static plan table: model-access policies and quotas.
// Immutable after construction; safe for concurrent use without locking.
package plans

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/planguard/internal/domain"
	"github.com/kailas-cloud/planguard/internal/domain/model"
	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
)

// Catalog answers plan-level model access and quota questions.
type Catalog struct {
	defs map[plan.Plan]plan.Definition
}

// DefaultDefinitions returns the built-in plan table.
func DefaultDefinitions() []plan.Definition {
	return []plan.Definition{
		{
			Plan:         plan.Free,
			DisplayName:  "Free",
			ModelAccess:  plan.Allowlist(),
			RequestQuota: plan.Limit(1_000),
			TokenQuota:   plan.Limit(100_000),
			Features:     []string{"Community models", "1,000 requests / month", "100K tokens / month"},
		},
		{
			Plan:         plan.Starter,
			DisplayName:  "Starter",
			PriceCents:   1_900,
			ModelAccess:  plan.Allowlist("gpt-4", "gpt-4o-mini", "claude-3-haiku"),
			RequestQuota: plan.Limit(10_000),
			TokenQuota:   plan.Limit(1_000_000),
			Features:     []string{"GPT-4 and Claude Haiku", "10,000 requests / month", "1M tokens / month", "Email support"},
		},
		{
			Plan:        plan.Professional,
			DisplayName: "Professional",
			PriceCents:  9_900,
			ModelAccess: plan.Allowlist(
				"gpt-4", "gpt-4o-mini", "claude-3-haiku",
				"gpt-4o", "claude-3-5-sonnet", "o1-mini",
			),
			RequestQuota: plan.Limit(100_000),
			TokenQuota:   plan.Limit(10_000_000),
			Features:     []string{"All GPT-4o and Sonnet models", "Advanced routing", "100,000 requests / month", "10M tokens / month"},
		},
		{
			Plan:        plan.Enterprise,
			DisplayName: "Enterprise",
			PriceCents:  -1,
			ModelAccess: plan.AllModels(),
			Features:    []string{"Every model", "Unlimited usage", "SSO", "Dedicated support"},
		},
	}
}

// Default returns the catalog built from DefaultDefinitions.
func Default() *Catalog {
	c, err := New(DefaultDefinitions())
	if err != nil {
		panic(err) // static table
	}
	return c
}

// New validates defs and builds a catalog. Every plan must be defined exactly once.
func New(defs []plan.Definition) (*Catalog, error) {
	m := make(map[plan.Plan]plan.Definition, len(defs))
	for _, d := range defs {
		if !d.Plan.Valid() {
			return nil, fmt.Errorf("%w: %d", domain.ErrUnknownPlan, uint8(d.Plan))
		}
		if _, dup := m[d.Plan]; dup {
			return nil, fmt.Errorf("plan %s defined twice", d.Plan)
		}
		if err := validateDefinition(d); err != nil {
			return nil, err
		}
		m[d.Plan] = d
	}
	for _, p := range plan.All {
		if _, ok := m[p]; !ok {
			return nil, fmt.Errorf("plan %s is not defined", p)
		}
	}
	return &Catalog{defs: m}, nil
}

func validateDefinition(d plan.Definition) error {
	quotas := map[string]*int64{
		"requests": d.RequestQuota,
		"tokens":   d.TokenQuota,
		"cost":     d.CostQuota,
	}
	for name, q := range quotas {
		if q != nil && *q <= 0 {
			return fmt.Errorf("plan %s: %s quota must be positive or omitted, got %d", d.Plan, name, *q)
		}
	}
	for _, id := range d.ModelAccess.Models() {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("plan %s: empty model id in allowlist", d.Plan)
		}
	}
	return nil
}

// Definition returns the static description of p.
func (c *Catalog) Definition(p plan.Plan) (plan.Definition, error) {
	d, ok := c.defs[p]
	if !ok {
		return plan.Definition{}, fmt.Errorf("%w: %s", domain.ErrUnknownPlan, p)
	}
	return d, nil
}

// Definitions lists plans in ascending rank.
func (c *Catalog) Definitions() []plan.Definition {
	out := make([]plan.Definition, 0, len(plan.All))
	for _, p := range plan.All {
		out = append(out, c.defs[p])
	}
	return out
}

// IsModelAllowed applies p's policy to m: "all" grants everything, otherwise free
// models and allowlisted ids pass. Unknown plans allow nothing.
func (c *Catalog) IsModelAllowed(p plan.Plan, m model.Model) bool {
	d, ok := c.defs[p]
	if !ok {
		return false
	}
	if d.ModelAccess.IsAll() {
		return true
	}
	return m.IsFree() || d.ModelAccess.Includes(m.ID())
}

// QuotaFor returns p's limit for metric; ok=false means unlimited.
func (c *Catalog) QuotaFor(p plan.Plan, metric usage.Metric) (limit int64, ok bool, err error) {
	d, found := c.defs[p]
	if !found {
		return 0, false, fmt.Errorf("%w: %s", domain.ErrUnknownPlan, p)
	}
	var q *int64
	switch metric {
	case usage.MetricRequests:
		q = d.RequestQuota
	case usage.MetricTokens:
		q = d.TokenQuota
	case usage.MetricCost:
		q = d.CostQuota
	}
	if q == nil {
		return 0, false, nil
	}
	return *q, true, nil
}

// UpgradeFor returns the cheapest plan ranked above current whose policy allows m.
// Each candidate's policy is evaluated on its own.
func (c *Catalog) UpgradeFor(current plan.Plan, m model.Model) (plan.Plan, bool) {
	for _, p := range plan.All {
		if p.Rank() <= current.Rank() {
			continue
		}
		if c.IsModelAllowed(p, m) {
			return p, true
		}
	}
	return 0, false
}
