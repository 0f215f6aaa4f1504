// Package alert defines the ephemeral threshold events handed to notification sinks.
package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
)

// Kind distinguishes the configurable threshold from the hard quota boundary.
type Kind string

// Kind constants.
const (
	KindThreshold     Kind = "threshold"
	KindQuotaExceeded Kind = "quota_exceeded"
)

// Alert is emitted once per upward crossing. Never persisted by the engine.
type Alert struct {
	ID           string
	AccountID    string
	Plan         plan.Plan
	Metric       usage.Metric
	Kind         Kind
	Percent      float64
	ThresholdPct float64
	At           time.Time
}

// New creates an alert with a fresh id, letting sinks deduplicate redeliveries.
func New(accountID string, p plan.Plan, m usage.Metric, kind Kind, pct, thresholdPct float64, at time.Time) Alert {
	return Alert{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Plan:         p,
		Metric:       m,
		Kind:         kind,
		Percent:      pct,
		ThresholdPct: thresholdPct,
		At:           at.UTC(),
	}
}

// Payload is the wire form shared by HTTP responses, webhooks and streams.
type Payload struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	Plan         string    `json:"plan"`
	Metric       string    `json:"metric"`
	Kind         string    `json:"kind"`
	Percent      float64   `json:"percent"`
	ThresholdPct float64   `json:"threshold_pct"`
	Timestamp    time.Time `json:"timestamp"`
}

// ToPayload converts an alert to its wire form.
func (a Alert) ToPayload() Payload {
	return Payload{
		ID:           a.ID,
		AccountID:    a.AccountID,
		Plan:         a.Plan.String(),
		Metric:       string(a.Metric),
		Kind:         string(a.Kind),
		Percent:      a.Percent,
		ThresholdPct: a.ThresholdPct,
		Timestamp:    a.At,
	}
}
