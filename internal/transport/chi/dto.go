package chi

import (
	"time"

	"github.com/kailas-cloud/planguard/internal/catalog/roles"
	domalert "github.com/kailas-cloud/planguard/internal/domain/alert"
	"github.com/kailas-cloud/planguard/internal/domain/decision"
	"github.com/kailas-cloud/planguard/internal/domain/model"
	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
	policyuc "github.com/kailas-cloud/planguard/internal/usecase/policy"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeInvalidUsageDelta ErrorCode = "invalid_usage_delta"
	CodeInvalidThreshold  ErrorCode = "invalid_threshold"
	CodeInvalidPeriod     ErrorCode = "invalid_period"
	CodeUnknownRole       ErrorCode = "unknown_role"
	CodeUnknownPlan       ErrorCode = "unknown_plan"
	CodeUnknownModel      ErrorCode = "unknown_model"
	CodePeriodNotFound    ErrorCode = "period_not_found"
	CodeNoOpenPeriod      ErrorCode = "no_open_period"
	CodeLedgerUnavailable ErrorCode = "ledger_unavailable"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// CapabilityCheckRequest is the body of POST /v1/capabilities/check.
type CapabilityCheckRequest struct {
	Role       string `json:"role" validate:"required"`
	Capability string `json:"capability" validate:"required"`
}

// ModelCheckRequest is the body of POST /v1/models/check.
type ModelCheckRequest struct {
	Role    string `json:"role" validate:"required"`
	Plan    string `json:"plan" validate:"required"`
	ModelID string `json:"model_id" validate:"required"`
}

// DecisionResponse is the outcome of a policy check.
type DecisionResponse struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	UpgradeTo string `json:"upgrade_to,omitempty"`
}

// MeterRequest is the body of POST /v1/accounts/{accountID}/usage.
// Sign and range checks on the numbers happen in the domain.
type MeterRequest struct {
	Plan         string  `json:"plan" validate:"required"`
	Requests     int64   `json:"requests"`
	Tokens       int64   `json:"tokens"`
	Cost         float64 `json:"cost"`
	ThresholdPct float64 `json:"threshold_pct"`
}

// MeterResponse lists the alerts the recorded delta triggered.
type MeterResponse struct {
	Alerts []domalert.Payload `json:"alerts"`
}

// OpenPeriodRequest is the body of POST /v1/accounts/{accountID}/periods.
type OpenPeriodRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}

// PeriodResponse is a period's boundaries.
type PeriodResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// UsageResponse is one account's counters for one period.
type UsageResponse struct {
	AccountID string          `json:"account_id"`
	Period    PeriodResponse  `json:"period"`
	Requests  int64           `json:"requests"`
	Tokens    int64           `json:"tokens"`
	Cost      float64         `json:"cost"`
	Closed    bool            `json:"closed"`
	Quotas    []QuotaResponse `json:"quotas,omitempty"`
}

// QuotaResponse relates one metric to the plan's quota. Cost is in micro-units.
type QuotaResponse struct {
	Metric    string   `json:"metric"`
	Used      int64    `json:"used"`
	Limit     *int64   `json:"limit,omitempty"`
	Unlimited bool     `json:"unlimited"`
	Percent   *float64 `json:"percent,omitempty"`
}

// OpenPeriodResponse reports the opened period and the archived one, if any.
type OpenPeriodResponse struct {
	Period   PeriodResponse `json:"period"`
	Archived *UsageResponse `json:"archived,omitempty"`
}

// RoleResponse is one row of GET /v1/roles.
type RoleResponse struct {
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities"`
}

// PlanResponse is one row of GET /v1/plans.
type PlanResponse struct {
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

// ModelResponse is one row of GET /v1/models.
type ModelResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Tier        string `json:"tier"`
}

// ListResponse wraps catalog listings.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func decisionToResponse(d decision.Decision) DecisionResponse {
	resp := DecisionResponse{Allowed: d.Allowed, Reason: string(d.Reason)}
	if d.HasUpgrade() {
		resp.UpgradeTo = d.UpgradeTo.String()
	}
	return resp
}

func periodToResponse(p usage.Period) PeriodResponse {
	return PeriodResponse{Start: p.Start.UTC(), End: p.End.UTC()}
}

func recordToResponse(rec usage.Record) UsageResponse {
	return UsageResponse{
		AccountID: rec.AccountID(),
		Period:    periodToResponse(rec.Period()),
		Requests:  rec.RequestCount(),
		Tokens:    rec.TokenCount(),
		Cost:      rec.CostAccrued(),
		Closed:    rec.Closed(),
	}
}

func quotasToResponse(qs []policyuc.QuotaUsage) []QuotaResponse {
	out := make([]QuotaResponse, len(qs))
	for i, q := range qs {
		out[i] = QuotaResponse{Metric: string(q.Metric), Used: q.Used, Unlimited: q.Unlimited}
		if !q.Unlimited {
			limit, pct := q.Limit, q.Percent
			out[i].Limit = &limit
			out[i].Percent = &pct
		}
	}
	return out
}

func alertsToResponse(as []domalert.Alert) MeterResponse {
	out := make([]domalert.Payload, len(as))
	for i, a := range as {
		out[i] = a.ToPayload()
	}
	return MeterResponse{Alerts: out}
}

func roleToResponse(e roles.Entry) RoleResponse {
	caps := make([]string, len(e.Capabilities))
	for i, c := range e.Capabilities {
		caps[i] = string(c)
	}
	return RoleResponse{Role: e.Role.String(), Capabilities: caps}
}

func planToResponse(d plan.Definition) PlanResponse {
	resp := PlanResponse{
		Plan:         d.Plan.String(),
		DisplayName:  d.DisplayName,
		PriceCents:   d.PriceCents,
		AllModels:    d.ModelAccess.IsAll(),
		Models:       d.ModelAccess.Models(),
		RequestQuota: d.RequestQuota,
		TokenQuota:   d.TokenQuota,
		Features:     d.Features,
	}
	if d.CostQuota != nil {
		c := float64(*d.CostQuota) / usage.MicrosPerUnit
		resp.CostQuota = &c
	}
	return resp
}

func modelToResponse(m model.Model) ModelResponse {
	return ModelResponse{
		ID:          m.ID(),
		DisplayName: m.DisplayName(),
		Provider:    m.Provider(),
		Tier:        string(m.Tier()),
	}
}
