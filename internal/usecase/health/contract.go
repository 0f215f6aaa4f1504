package health

import "context"

// DBPinger checks ledger store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// CatalogChecker checks the external model catalog.
type CatalogChecker interface {
	HealthCheck(ctx context.Context) error
}
