package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/planguard/internal/catalog"
	"github.com/kailas-cloud/planguard/internal/domain"
	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
	logpkg "github.com/kailas-cloud/planguard/internal/logger"
	healthuc "github.com/kailas-cloud/planguard/internal/usecase/health"
	ledgeruc "github.com/kailas-cloud/planguard/internal/usecase/ledger"
	policyuc "github.com/kailas-cloud/planguard/internal/usecase/policy"
)

// retryAfterSeconds is advertised on 503 responses for ledger outages.
const retryAfterSeconds = 1

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the policy HTTP API.
type Server struct {
	engine        *policyuc.Engine
	ledger        *ledgeruc.Service
	catalogs      *catalog.Bundle
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	engine *policyuc.Engine,
	ledger *ledgeruc.Service,
	catalogs *catalog.Bundle,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:   engine,
		ledger:   ledger,
		catalogs: catalogs,
		health:   health,
		logger:   logger,
	}
	// Order matters: ErrNoOpenPeriod also matches ErrLedgerUnavailable.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidUsageDelta, http.StatusBadRequest, CodeInvalidUsageDelta),
		sentinelHandler(domain.ErrInvalidThreshold, http.StatusBadRequest, CodeInvalidThreshold),
		sentinelHandler(domain.ErrInvalidPeriod, http.StatusBadRequest, CodeInvalidPeriod),
		sentinelHandler(domain.ErrUnknownRole, http.StatusUnprocessableEntity, CodeUnknownRole),
		sentinelHandler(domain.ErrUnknownPlan, http.StatusUnprocessableEntity, CodeUnknownPlan),
		sentinelHandler(domain.ErrUnknownModel, http.StatusUnprocessableEntity, CodeUnknownModel),
		sentinelHandler(domain.ErrPeriodNotFound, http.StatusNotFound, CodePeriodNotFound),
		retryableHandler(domain.ErrNoOpenPeriod, CodeNoOpenPeriod),
		retryableHandler(domain.ErrLedgerUnavailable, CodeLedgerUnavailable),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/capabilities/check", s.CheckCapability)
		r.Post("/models/check", s.CheckModel)

		r.Get("/roles", s.ListRoles)
		r.Get("/plans", s.ListPlans)
		r.Get("/models", s.ListModels)

		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Post("/usage", s.MeterUsage)
			r.Get("/usage", s.GetUsage)
			r.Post("/periods", s.OpenPeriod)
			r.Get("/periods/{start}", s.GetArchivedPeriod)
		})
	})
}

// CheckCapability handles POST /v1/capabilities/check.
func (s *Server) CheckCapability(w http.ResponseWriter, r *http.Request) {
	var req CapabilityCheckRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	d := s.engine.CheckCapability(req.Role, req.Capability)
	writeJSON(w, http.StatusOK, decisionToResponse(d))
}

// CheckModel handles POST /v1/models/check.
func (s *Server) CheckModel(w http.ResponseWriter, r *http.Request) {
	var req ModelCheckRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	d := s.engine.CheckModelAccess(req.Role, req.Plan, req.ModelID)
	writeJSON(w, http.StatusOK, decisionToResponse(d))
}

// MeterUsage handles POST /v1/accounts/{accountID}/usage.
func (s *Server) MeterUsage(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	var req MeterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ctx := logpkg.With(r.Context(), zap.String("account_id", accountID))
	alerts, err := s.engine.MeterUsage(ctx, accountID, req.Plan, usage.Delta{
		Requests: req.Requests,
		Tokens:   req.Tokens,
		Cost:     req.Cost,
	}, req.ThresholdPct)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, alertsToResponse(alerts))
}

// GetUsage handles GET /v1/accounts/{accountID}/usage. With ?plan= the
// response also relates each metric to that plan's quota.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	ctx := logpkg.With(r.Context(), zap.String("account_id", accountID))

	rawPlan := r.URL.Query().Get("plan")
	if rawPlan == "" {
		rec, err := s.engine.UsageSnapshot(ctx, accountID)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, recordToResponse(rec))
		return
	}

	p, err := plan.Parse(rawPlan)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	rec, quotas, err := s.engine.QuotaReport(ctx, accountID, p)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp := recordToResponse(rec)
	resp.Quotas = quotasToResponse(quotas)
	writeJSON(w, http.StatusOK, resp)
}

// OpenPeriod handles POST /v1/accounts/{accountID}/periods, the billing
// period reset signal.
func (s *Server) OpenPeriod(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	var req OpenPeriodRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ctx := logpkg.With(r.Context(), zap.String("account_id", accountID))
	p := usage.Period{Start: req.Start, End: req.End}
	archived, hadPrevious, err := s.ledger.OpenPeriod(ctx, accountID, p)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := OpenPeriodResponse{Period: periodToResponse(p)}
	if hadPrevious {
		a := recordToResponse(archived)
		resp.Archived = &a
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetArchivedPeriod handles GET /v1/accounts/{accountID}/periods/{start}.
// start is RFC 3339 or Unix milliseconds.
func (s *Server) GetArchivedPeriod(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	start, err := parseInstant(chi.URLParam(r, "start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "start must be RFC 3339 or unix milliseconds")
		return
	}

	rec, err := s.ledger.Archived(r.Context(), accountID, start)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToResponse(rec))
}

// ListRoles handles GET /v1/roles.
func (s *Server) ListRoles(w http.ResponseWriter, _ *http.Request) {
	entries := s.catalogs.Roles.Entries()
	items := make([]RoleResponse, len(entries))
	for i, e := range entries {
		items[i] = roleToResponse(e)
	}
	writeJSON(w, http.StatusOK, ListResponse[RoleResponse]{Items: items})
}

// ListPlans handles GET /v1/plans.
func (s *Server) ListPlans(w http.ResponseWriter, _ *http.Request) {
	defs := s.catalogs.Plans.Definitions()
	items := make([]PlanResponse, len(defs))
	for i, d := range defs {
		items[i] = planToResponse(d)
	}
	writeJSON(w, http.StatusOK, ListResponse[PlanResponse]{Items: items})
}

// ListModels handles GET /v1/models.
func (s *Server) ListModels(w http.ResponseWriter, _ *http.Request) {
	ms := s.catalogs.Models.All()
	items := make([]ModelResponse, len(ms))
	for i, m := range ms {
		items[i] = modelToResponse(m)
	}
	writeJSON(w, http.StatusOK, ListResponse[ModelResponse]{Items: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	// Degraded still serves decisions from the last catalog snapshot.
	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func parseInstant(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err //nolint:wrapcheck // mapped to a 400 by the caller
	}
	return t.UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidUsageDelta,
		domain.ErrInvalidThreshold,
		domain.ErrInvalidPeriod,
		domain.ErrUnknownRole,
		domain.ErrUnknownPlan,
		domain.ErrUnknownModel,
		domain.ErrPeriodNotFound,
		domain.ErrNoOpenPeriod,
		domain.ErrLedgerUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// retryableHandler maps a retryable ledger failure to 503 with Retry-After.
// The usage was not recorded.
func retryableHandler(sentinel error, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeError(w, http.StatusServiceUnavailable, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
