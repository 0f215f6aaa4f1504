package ledger

import (
	"context"
	"time"

	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
)

// Repository defines the storage contract for usage counters.
// Apply must return before/after snapshots taken in one atomic step.
type Repository interface {
	Apply(ctx context.Context, accountID string, now time.Time, d usage.Delta) (usage.Change, error)
	Current(ctx context.Context, accountID string, now time.Time) (usage.Record, error)
	Open(ctx context.Context, accountID string, p usage.Period) (archived usage.Record, hadPrevious bool, err error)
	Archived(ctx context.Context, accountID string, start time.Time) (usage.Record, error)
}

// QuotaSource resolves plan limits.
type QuotaSource interface {
	QuotaFor(p plan.Plan, m usage.Metric) (limit int64, ok bool, err error)
}
