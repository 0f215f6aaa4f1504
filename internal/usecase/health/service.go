package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the model catalog cannot be refreshed; decisions
	// keep using the last snapshot.
	Degraded Status = "degraded"
	// Unhealthy indicates the ledger store is down and usage cannot be metered.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	ComponentLedger  = "ledger"
	ComponentCatalog = "model_catalog"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	catalog CatalogChecker
}

// New creates a Service. db is nil for the in-memory ledger; catalog is nil
// when the model catalog is static.
func New(db DBPinger, catalog CatalogChecker) *Service {
	return &Service{db: db, catalog: catalog}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{ComponentLedger: CheckOK}
	status := Healthy

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			checks[ComponentLedger] = CheckError
			status = Unhealthy
		}
	}

	if s.catalog != nil {
		if err := s.catalog.HealthCheck(ctx); err != nil {
			checks[ComponentCatalog] = CheckError
			if status == Healthy {
				status = Degraded
			}
		} else {
			checks[ComponentCatalog] = CheckOK
		}
	}

	return Report{Status: status, Checks: checks}
}
