package policy

import (
	"context"

	"github.com/kailas-cloud/planguard/internal/domain/alert"
	"github.com/kailas-cloud/planguard/internal/domain/model"
	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/role"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
	ledgeruc "github.com/kailas-cloud/planguard/internal/usecase/ledger"
)

// RoleCatalog answers role capability questions.
type RoleCatalog interface {
	HasCapability(r role.Role, tag role.Capability) bool
}

// PlanCatalog answers plan model-access and quota questions.
type PlanCatalog interface {
	IsModelAllowed(p plan.Plan, m model.Model) bool
	UpgradeFor(current plan.Plan, m model.Model) (plan.Plan, bool)
	QuotaFor(p plan.Plan, m usage.Metric) (limit int64, ok bool, err error)
}

// ModelCatalog resolves model ids.
type ModelCatalog interface {
	Lookup(id string) (model.Model, bool)
}

// Ledger records and reads usage counters.
type Ledger interface {
	RecordUsage(ctx context.Context, accountID string, d usage.Delta) (usage.Change, error)
	CurrentUsage(ctx context.Context, accountID string) (usage.Record, error)
	QuotaShares(ctx context.Context, accountID string, p plan.Plan) (usage.Record, []ledgeruc.Share, error)
}

// AlertPublisher hands alerts to the notification sink without waiting for delivery.
type AlertPublisher interface {
	Publish(a alert.Alert)
}
