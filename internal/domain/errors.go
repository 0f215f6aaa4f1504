package domain

import (
	"errors"
	"fmt"
)

// Configuration errors: catalog or data drift. Always fail closed.
var (
	// ErrUnknownRole signals a role outside the role catalog.
	ErrUnknownRole = errors.New("unknown role")
	// ErrUnknownPlan signals a plan outside the plan catalog.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrUnknownModel signals a model id absent from the model catalog.
	ErrUnknownModel = errors.New("unknown model")
)

// Usage errors.
var (
	// ErrInvalidUsageDelta signals a negative or non-finite usage delta.
	ErrInvalidUsageDelta = errors.New("invalid usage delta")
	// ErrLedgerUnavailable signals the ledger could not commit or read usage.
	// Retryable: callers must not assume the usage was recorded.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	// ErrNoOpenPeriod signals the account's billing period has lapsed without a reset.
	ErrNoOpenPeriod = fmt.Errorf("no open billing period: %w", ErrLedgerUnavailable)
	// ErrPeriodNotFound signals a request for an archived period that was never recorded.
	ErrPeriodNotFound = errors.New("billing period not found")
)

// Argument errors.
var (
	// ErrInvalidThreshold signals an alert threshold outside (0, 100].
	ErrInvalidThreshold = errors.New("invalid threshold")
	// ErrInvalidPeriod signals period boundaries where end is not after start.
	ErrInvalidPeriod = errors.New("invalid billing period")
)

// IsConfigurationError reports whether err stems from an unknown role, plan or model.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrUnknownRole) ||
		errors.Is(err, ErrUnknownPlan) ||
		errors.Is(err, ErrUnknownModel)
}

// IsUsageError reports whether err belongs to the usage error family.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrInvalidUsageDelta) || errors.Is(err, ErrLedgerUnavailable)
}

// IsRetryable reports whether the caller may retry the operation with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLedgerUnavailable)
}

// LedgerError wraps a storage failure as ErrLedgerUnavailable, keeping the cause.
type LedgerError struct {
	Op    string
	Cause error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrLedgerUnavailable.Error(), e.Op, e.Cause)
}

// Is makes errors.Is(err, ErrLedgerUnavailable) hold for every LedgerError.
func (e *LedgerError) Is(target error) bool { return target == ErrLedgerUnavailable }

func (e *LedgerError) Unwrap() error { return e.Cause }

// NewLedgerError wraps cause as a ledger failure for op.
func NewLedgerError(op string, cause error) error {
	return &LedgerError{Op: op, Cause: cause}
}
