// Package ledger is the usage ledger: per-account, per-period counters with
// atomic before/after snapshots.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/planguard/internal/domain"
	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
	"github.com/kailas-cloud/planguard/internal/metrics"
)

// Service serializes ledger updates per account and bounds every store call
// with a timeout.
type Service struct {
	repo    Repository
	quotas  QuotaSource
	timeout time.Duration
	locks   stripedLock
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a ledger service. timeout <= 0 falls back to the default.
func New(repo Repository, quotas QuotaSource, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = domain.DefaultPolicyConfig().LedgerTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		quotas:  quotas,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

// CurrentUsage returns the account's latest period record. The first access
// for an unseen account opens the current UTC calendar month.
func (s *Service) CurrentUsage(ctx context.Context, accountID string) (usage.Record, error) {
	if accountID == "" {
		return usage.Record{}, fmt.Errorf("account id is required")
	}
	var rec usage.Record
	err := s.call(ctx, "current", func(ctx context.Context) error {
		var err error
		rec, err = s.repo.Current(ctx, accountID, s.now().UTC())
		return err
	})
	return rec, err
}

// RecordUsage applies d to the open period and returns the counters
// immediately before and after it.
func (s *Service) RecordUsage(ctx context.Context, accountID string, d usage.Delta) (usage.Change, error) {
	if accountID == "" {
		return usage.Change{}, fmt.Errorf("account id is required")
	}
	if err := d.Validate(); err != nil {
		metrics.UsageRecordsTotal.WithLabelValues("invalid").Inc()
		return usage.Change{}, err
	}

	unlock := s.locks.lock(accountID)
	defer unlock()

	var ch usage.Change
	err := s.call(ctx, "apply", func(ctx context.Context) error {
		var err error
		ch, err = s.repo.Apply(ctx, accountID, s.now().UTC(), d)
		return err
	})
	if err != nil {
		metrics.UsageRecordsTotal.WithLabelValues("error").Inc()
		return usage.Change{}, err
	}

	metrics.UsageRecordsTotal.WithLabelValues("ok").Inc()
	metrics.UsageUnitsTotal.WithLabelValues(string(usage.MetricRequests)).Add(float64(d.Requests))
	metrics.UsageUnitsTotal.WithLabelValues(string(usage.MetricTokens)).Add(float64(d.Tokens))
	metrics.UsageUnitsTotal.WithLabelValues(string(usage.MetricCost)).Add(d.Cost)
	return ch, nil
}

// Share relates one counter to a plan quota. Limit and Percent are zero when
// the plan leaves the metric unlimited.
type Share struct {
	Metric    usage.Metric
	Used      int64
	Limit     int64
	Unlimited bool
	Percent   float64
}

// PercentOfQuota returns the consumed share of p's quota for m.
// ok is false when the plan leaves m unlimited.
func (s *Service) PercentOfQuota(ctx context.Context, accountID string, p plan.Plan, m usage.Metric) (pct float64, ok bool, err error) {
	rec, err := s.CurrentUsage(ctx, accountID)
	if err != nil {
		return 0, false, err
	}
	sh, err := s.share(rec, p, m)
	if err != nil {
		return 0, false, err
	}
	return sh.Percent, !sh.Unlimited, nil
}

// QuotaShares reads the current record once and relates every metered metric
// to p's quota.
func (s *Service) QuotaShares(ctx context.Context, accountID string, p plan.Plan) (usage.Record, []Share, error) {
	rec, err := s.CurrentUsage(ctx, accountID)
	if err != nil {
		return usage.Record{}, nil, err
	}
	out := make([]Share, 0, len(usage.Metered))
	for _, m := range usage.Metered {
		sh, err := s.share(rec, p, m)
		if err != nil {
			return usage.Record{}, nil, err
		}
		out = append(out, sh)
	}
	return rec, out, nil
}

func (s *Service) share(rec usage.Record, p plan.Plan, m usage.Metric) (Share, error) {
	limit, ok, err := s.quotas.QuotaFor(p, m)
	if err != nil {
		return Share{}, fmt.Errorf("quota for %s: %w", m, err)
	}
	sh := Share{Metric: m, Used: rec.Value(m), Unlimited: !ok}
	if ok {
		sh.Limit = limit
		sh.Percent = usage.Percent(sh.Used, limit)
	}
	return sh, nil
}

// OpenPeriod handles the billing period-reset signal: the open record is
// archived read-only and p starts from zero. Reopening the open period is a
// no-op. hadPrevious reports whether a record was archived.
func (s *Service) OpenPeriod(ctx context.Context, accountID string, p usage.Period) (archived usage.Record, hadPrevious bool, err error) {
	if accountID == "" {
		return usage.Record{}, false, fmt.Errorf("account id is required")
	}
	p = usage.Period{Start: p.Start.UTC(), End: p.End.UTC()}
	if err := p.Validate(); err != nil {
		return usage.Record{}, false, err
	}

	unlock := s.locks.lock(accountID)
	defer unlock()

	err = s.call(ctx, "open", func(ctx context.Context) error {
		var err error
		archived, hadPrevious, err = s.repo.Open(ctx, accountID, p)
		return err
	})
	if err != nil {
		return usage.Record{}, false, err
	}

	s.logger.Info("Billing period opened",
		zap.String("account_id", accountID),
		zap.Time("start", p.Start),
		zap.Time("end", p.End),
		zap.Bool("archived_previous", hadPrevious),
	)
	return archived, hadPrevious, nil
}

// Archived returns the closed period of accountID that started at start.
func (s *Service) Archived(ctx context.Context, accountID string, start time.Time) (usage.Record, error) {
	var rec usage.Record
	err := s.call(ctx, "archived", func(ctx context.Context) error {
		var err error
		rec, err = s.repo.Archived(ctx, accountID, start)
		return err
	})
	return rec, err
}

// call runs fn under the ledger timeout, records its duration, and maps
// storage failures to ErrLedgerUnavailable.
func (s *Service) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.LedgerOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrNoOpenPeriod),
		errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrPeriodNotFound),
		errors.Is(err, domain.ErrInvalidUsageDelta):
		return err
	}

	metrics.LedgerErrorsTotal.WithLabelValues(op).Inc()
	s.logger.Warn("Ledger operation failed",
		zap.String("op", op),
		zap.Error(err),
	)
	return domain.NewLedgerError(op, err)
}
