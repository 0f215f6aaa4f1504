package client

import "time"

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	UpgradeTo string `json:"upgrade_to,omitempty"`
}

// MeterRequest is a usage delta plus the plan it is checked against.
// A zero ThresholdPct selects the server default.
type MeterRequest struct {
	Plan         string  `json:"plan"`
	Requests     int64   `json:"requests,omitempty"`
	Tokens       int64   `json:"tokens,omitempty"`
	Cost         float64 `json:"cost,omitempty"`
	ThresholdPct float64 `json:"threshold_pct,omitempty"`
}

// Alert reports an upward threshold or quota crossing.
type Alert struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	Plan         string    `json:"plan"`
	Metric       string    `json:"metric"`
	Kind         string    `json:"kind"`
	Percent      float64   `json:"percent"`
	ThresholdPct float64   `json:"threshold_pct"`
	Timestamp    time.Time `json:"timestamp"`
}

// Period is a billing period, [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Usage is one account's counters for one period.
type Usage struct {
	AccountID string  `json:"account_id"`
	Period    Period  `json:"period"`
	Requests  int64   `json:"requests"`
	Tokens    int64   `json:"tokens"`
	Cost      float64 `json:"cost"`
	Closed    bool    `json:"closed"`
	Quotas    []Quota `json:"quotas,omitempty"`
}

// Quota relates one metric to a plan limit. Limit and Percent are nil when
// unlimited. Cost is in micro-units.
type Quota struct {
	Metric    string   `json:"metric"`
	Used      int64    `json:"used"`
	Limit     *int64   `json:"limit,omitempty"`
	Unlimited bool     `json:"unlimited"`
	Percent   *float64 `json:"percent,omitempty"`
}

// OpenPeriodResult reports the new period and the archived one, if any.
type OpenPeriodResult struct {
	Period   Period `json:"period"`
	Archived *Usage `json:"archived,omitempty"`
}

// Role is a catalog role with its effective capabilities.
type Role struct {
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities"`
}

// Plan is a catalog plan. Nil quotas are unlimited.
type Plan struct {
	Plan         string   `json:"plan"`
	DisplayName  string   `json:"display_name"`
	PriceCents   int64    `json:"price_cents"`
	AllModels    bool     `json:"all_models"`
	Models       []string `json:"models,omitempty"`
	RequestQuota *int64   `json:"request_quota,omitempty"`
	TokenQuota   *int64   `json:"token_quota,omitempty"`
	CostQuota    *float64 `json:"cost_quota,omitempty"`
	Features     []string `json:"features,omitempty"`
}

// Model is a catalog model.
type Model struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Tier        string `json:"tier"`
}

// Health is the server's health report.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type list[T any] struct {
	Items []T `json:"items"`
}
