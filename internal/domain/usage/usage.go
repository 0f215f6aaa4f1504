package usage

import (
	"fmt"
	"math"
	"time"

	"github.com/kailas-cloud/planguard/internal/domain"
)

// Metric names a metered resource.
type Metric string

// Metric constants.
const (
	MetricTokens   Metric = "tokens"
	MetricRequests Metric = "requests"
	MetricCost     Metric = "cost"
)

// Metered lists the metrics checked against plan quotas, in alert order.
var Metered = []Metric{MetricTokens, MetricRequests, MetricCost}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricTokens, MetricRequests, MetricCost:
		return m, nil
	default:
		return "", fmt.Errorf("unknown metric %q", s)
	}
}

// MicrosPerUnit converts currency units to the integer micro-units kept by the ledger.
const MicrosPerUnit = 1_000_000

// MaxCost is the largest single cost delta that still fits in int64 micro-units.
const MaxCost = float64(math.MaxInt64/MicrosPerUnit) - 1

// Period is a billing period, half-open: [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// CalendarMonth returns the UTC calendar month containing t.
func CalendarMonth(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Validate checks that End is after Start.
func (p Period) Validate() error {
	if p.Start.IsZero() || !p.End.After(p.Start) {
		return fmt.Errorf("%w: start=%s end=%s", domain.ErrInvalidPeriod,
			p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Equal compares boundaries by instant.
func (p Period) Equal(o Period) bool {
	return p.Start.Equal(o.Start) && p.End.Equal(o.End)
}

// Delta is a usage increment. Components must be non-negative.
type Delta struct {
	Requests int64
	Tokens   int64
	// Cost is in billing currency units.
	Cost float64
}

// Validate rejects negative, non-finite or oversized components.
func (d Delta) Validate() error {
	if d.Requests < 0 {
		return fmt.Errorf("%w: requests=%d", domain.ErrInvalidUsageDelta, d.Requests)
	}
	if d.Tokens < 0 {
		return fmt.Errorf("%w: tokens=%d", domain.ErrInvalidUsageDelta, d.Tokens)
	}
	if math.IsNaN(d.Cost) || math.IsInf(d.Cost, 0) || d.Cost < 0 {
		return fmt.Errorf("%w: cost=%v", domain.ErrInvalidUsageDelta, d.Cost)
	}
	if d.Cost > MaxCost {
		return fmt.Errorf("%w: cost=%v exceeds %v", domain.ErrInvalidUsageDelta, d.Cost, MaxCost)
	}
	return nil
}

// CostMicros returns the cost rounded to micro-units.
func (d Delta) CostMicros() int64 {
	return int64(math.Round(d.Cost * MicrosPerUnit))
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d.Requests == 0 && d.Tokens == 0 && d.CostMicros() == 0
}

// Record holds one account's counters for one billing period.
type Record struct {
	accountID  string
	period     Period
	requests   int64
	tokens     int64
	costMicros int64
	closed     bool
}

// NewRecord creates a Record snapshot.
func NewRecord(accountID string, period Period, requests, tokens, costMicros int64, closed bool) Record {
	return Record{
		accountID:  accountID,
		period:     period,
		requests:   requests,
		tokens:     tokens,
		costMicros: costMicros,
		closed:     closed,
	}
}

// Zero creates an empty open record.
func Zero(accountID string, period Period) Record {
	return NewRecord(accountID, period, 0, 0, 0, false)
}

// AccountID returns the owning account.
func (r Record) AccountID() string { return r.accountID }

// Period returns the billing period.
func (r Record) Period() Period { return r.period }

// RequestCount returns requests made in the period.
func (r Record) RequestCount() int64 { return r.requests }

// TokenCount returns tokens consumed in the period.
func (r Record) TokenCount() int64 { return r.tokens }

// CostMicros returns accrued cost in micro-units.
func (r Record) CostMicros() int64 { return r.costMicros }

// CostAccrued returns accrued cost in currency units.
func (r Record) CostAccrued() float64 { return float64(r.costMicros) / MicrosPerUnit }

// Closed reports whether the period is archived (read-only).
func (r Record) Closed() bool { return r.closed }

// Value returns the counter for m; cost is in micro-units.
func (r Record) Value(m Metric) int64 {
	switch m {
	case MetricTokens:
		return r.tokens
	case MetricRequests:
		return r.requests
	case MetricCost:
		return r.costMicros
	default:
		return 0
	}
}

// CheckFits returns ErrInvalidUsageDelta when adding d would overflow a counter.
func (r Record) CheckFits(d Delta) error {
	for _, c := range []struct {
		m     Metric
		cur   int64
		delta int64
	}{
		{MetricRequests, r.requests, d.Requests},
		{MetricTokens, r.tokens, d.Tokens},
		{MetricCost, r.costMicros, d.CostMicros()},
	} {
		if c.delta > math.MaxInt64-c.cur {
			return fmt.Errorf("%w: %s counter would overflow (%d + %d)",
				domain.ErrInvalidUsageDelta, c.m, c.cur, c.delta)
		}
	}
	return nil
}

// Add returns r with d applied. Closed records are never mutated.
// Callers check CheckFits first.
func (r Record) Add(d Delta) Record {
	if r.closed {
		return r
	}
	r.requests += d.Requests
	r.tokens += d.Tokens
	r.costMicros += d.CostMicros()
	return r
}

// Close returns an archived copy of r.
func (r Record) Close() Record {
	r.closed = true
	return r
}

// Change pairs the counters observed immediately before and after one atomic update.
type Change struct {
	Before Record
	After  Record
}

// Percent returns value/quota*100. quota must be positive.
func Percent(value, quota int64) float64 {
	return float64(value) * 100 / float64(quota)
}
