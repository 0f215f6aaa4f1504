package planguard

import "github.com/kailas-cloud/planguard/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrUnknownRole       = domain.ErrUnknownRole
	ErrUnknownPlan       = domain.ErrUnknownPlan
	ErrUnknownModel      = domain.ErrUnknownModel
	ErrInvalidUsageDelta = domain.ErrInvalidUsageDelta
	ErrInvalidThreshold  = domain.ErrInvalidThreshold
	ErrInvalidPeriod     = domain.ErrInvalidPeriod
	ErrLedgerUnavailable = domain.ErrLedgerUnavailable
	ErrNoOpenPeriod      = domain.ErrNoOpenPeriod
	ErrPeriodNotFound    = domain.ErrPeriodNotFound
)

// IsRetryable reports whether err is a ledger outage worth retrying with
// backoff. The usage was not recorded.
func IsRetryable(err error) bool { return domain.IsRetryable(err) }
