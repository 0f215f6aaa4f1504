package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Policy engine Prometheus metrics.
var (
	PolicyDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planguard",
			Name:      "policy_decisions_total",
			Help:      "Total policy decisions by operation, outcome and denial reason",
		},
		[]string{"operation", "outcome", "reason"},
	)

	UsageRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planguard",
			Name:      "usage_records_total",
			Help:      "Total recordUsage calls by status",
		},
		[]string{"status"},
	)

	UsageUnitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planguard",
			Name:      "usage_units_total",
			Help:      "Metered units recorded (cost in currency units)",
		},
		[]string{"metric"},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planguard",
			Name:      "alerts_total",
			Help:      "Threshold and quota-exceeded alerts emitted",
		},
		[]string{"metric", "kind"},
	)

	AlertsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "planguard",
			Name:      "alerts_dropped_total",
			Help:      "Alerts dropped because the dispatch queue was full",
		},
	)

	AlertDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planguard",
			Name:      "alert_deliveries_total",
			Help:      "Alert deliveries by sink and status",
		},
		[]string{"sink", "status"},
	)

	LedgerOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "planguard",
			Name:      "ledger_op_duration_seconds",
			Help:      "Usage ledger store operation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 2.5},
		},
		[]string{"op"},
	)

	LedgerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planguard",
			Name:      "ledger_errors_total",
			Help:      "Usage ledger failures by operation",
		},
		[]string{"op"},
	)

	CatalogSyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planguard",
			Name:      "catalog_sync_total",
			Help:      "Model catalog sync attempts by status",
		},
		[]string{"status"},
	)

	CatalogModels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "planguard",
			Name:      "catalog_models",
			Help:      "Models in the current catalog snapshot",
		},
	)
)

var registerOnce sync.Once

// RegisterPolicyMetrics registers the policy and HTTP metrics with the default
// registry. Later calls are no-ops.
func RegisterPolicyMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			httpInFlight,
			PolicyDecisionsTotal,
			UsageRecordsTotal,
			UsageUnitsTotal,
			AlertsTotal,
			AlertsDroppedTotal,
			AlertDeliveriesTotal,
			LedgerOpDuration,
			LedgerErrorsTotal,
			CatalogSyncTotal,
			CatalogModels,
		)
	})
}
