package planguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/planguard/internal/catalog"
	"github.com/kailas-cloud/planguard/internal/config"
	"github.com/kailas-cloud/planguard/internal/db"
	dbRedis "github.com/kailas-cloud/planguard/internal/db/redis"
	"github.com/kailas-cloud/planguard/internal/domain"
	"github.com/kailas-cloud/planguard/internal/domain/usage"
	repoledger "github.com/kailas-cloud/planguard/internal/repository/ledger"
	alertuc "github.com/kailas-cloud/planguard/internal/usecase/alert"
	healthuc "github.com/kailas-cloud/planguard/internal/usecase/health"
	ledgeruc "github.com/kailas-cloud/planguard/internal/usecase/ledger"
	policyuc "github.com/kailas-cloud/planguard/internal/usecase/policy"
)

const (
	driverMemory = "memory"
	driverRedis  = "redis"
	driverValkey = "valkey"

	defaultReadinessTimeout = 10 * time.Second
)

// Client is the planguard entry point. Safe for concurrent use.
type Client struct {
	store      db.Store
	engine     *policyuc.Engine
	ledger     *ledgeruc.Service
	dispatcher *alertuc.Dispatcher
	healthSvc  *healthuc.Service
	obs        *observer
}

// New creates a Client. With WithRedis or WithValkey the provided context
// bounds the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	def := domain.DefaultPolicyConfig()
	cfg := &clientConfig{
		driver:           driverMemory,
		keyPrefix:        domain.DefaultKeyPrefix,
		ledgerTimeout:    def.LedgerTimeout,
		archiveTTL:       def.ArchiveTTL,
		defaultThreshold: def.DefaultThresholdPct,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	bundle, err := loadCatalogs(cfg.catalogFile)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, repo, err := createLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return wireClient(store, repo, bundle, cfg, obs), nil
}

func loadCatalogs(path string) (*catalog.Bundle, error) {
	if path == "" {
		return catalog.Defaults(), nil
	}
	cc, err := config.LoadCatalogFile(path)
	if err != nil {
		return nil, fmt.Errorf("planguard: %w", err)
	}
	bundle, err := catalog.Build(cc)
	if err != nil {
		return nil, fmt.Errorf("planguard: %w", err)
	}
	return bundle, nil
}

func createLedger(ctx context.Context, cfg *clientConfig) (db.Store, ledgeruc.Repository, error) {
	switch cfg.driver {
	case driverMemory:
		return nil, repoledger.NewMemory(cfg.archiveTTL), nil
	case driverRedis, driverValkey:
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, nil, errors.New("planguard: database address required")
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.addrs,
			Password:   cfg.password,
			ClientName: "planguard-embedded",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("planguard: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("planguard: database not ready: %w", err)
		}
		return s, repoledger.New(s, cfg.keyPrefix, cfg.archiveTTL), nil
	default:
		return nil, nil, fmt.Errorf("planguard: unknown driver %q", cfg.driver)
	}
}

func wireClient(
	store db.Store, repo ledgeruc.Repository, bundle *catalog.Bundle, cfg *clientConfig, obs *observer,
) *Client {
	ledger := ledgeruc.New(repo, bundle.Plans, cfg.ledgerTimeout, obs.logger)

	// Pass nil interface (not typed nil pointer) when nobody listens.
	var (
		publisher  policyuc.AlertPublisher
		dispatcher *alertuc.Dispatcher
	)
	if len(cfg.sinks) > 0 {
		sinks := make([]alertuc.Sink, len(cfg.sinks))
		for i, s := range cfg.sinks {
			sinks[i] = sinkAdapter{inner: s}
		}
		var sink alertuc.Sink = sinks[0]
		if len(sinks) > 1 {
			sink = alertuc.NewFanout(sinks...)
		}
		dispatcher = alertuc.NewDispatcher(sink, alertuc.DispatcherConfig{}, obs.logger)
		publisher = dispatcher
	}

	engine := policyuc.New(bundle.Roles, bundle.Plans, bundle.Models, ledger, publisher,
		policyuc.Config{DefaultThresholdPct: cfg.defaultThreshold}, obs.logger)

	var pinger healthuc.DBPinger
	if store != nil {
		pinger = store
	}

	return &Client{
		store:      store,
		engine:     engine,
		ledger:     ledger,
		dispatcher: dispatcher,
		healthSvc:  healthuc.New(pinger, nil),
		obs:        obs,
	}
}

// CheckCapability reports whether role may perform capability.
// Unknown roles are denied with UnknownRole.
func (c *Client) CheckCapability(role, capability string) Decision {
	start := time.Now()
	d := decisionFromDomain(c.engine.CheckCapability(role, capability))
	c.obs.observe("check_capability", start, decisionStatus(d), nil)
	return d
}

// CheckModelAccess reports whether a role on plan may invoke modelID.
// The plan is checked before the role, so a denial on both reports the upgrade.
func (c *Client) CheckModelAccess(role, plan, modelID string) Decision {
	start := time.Now()
	d := decisionFromDomain(c.engine.CheckModelAccess(role, plan, modelID))
	c.obs.observe("check_model_access", start, decisionStatus(d), nil)
	return d
}

// MeterUsage records d against the account's open period and returns the
// alerts it triggered. A zero thresholdPct selects the default threshold.
// On ErrLedgerUnavailable nothing was recorded.
func (c *Client) MeterUsage(
	ctx context.Context, accountID, plan string, d Delta, thresholdPct float64,
) (_ []Alert, err error) {
	start := time.Now()
	defer func() { c.obs.observe("meter_usage", start, errStatus(err), err) }()

	as, err := c.engine.MeterUsage(ctx, accountID, plan, usage.Delta{
		Requests: d.Requests,
		Tokens:   d.Tokens,
		Cost:     d.Cost,
	}, thresholdPct)
	if err != nil {
		return nil, err //nolint:wrapcheck // already wrapped with the operation
	}
	out := make([]Alert, len(as))
	for i, a := range as {
		out[i] = alertFromDomain(a)
	}
	return out, nil
}

// UsageSnapshot returns the account's counters for its latest period.
// An account never metered reads as zero for the current calendar month.
func (c *Client) UsageSnapshot(ctx context.Context, accountID string) (_ Usage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage_snapshot", start, errStatus(err), err) }()

	rec, err := c.engine.UsageSnapshot(ctx, accountID)
	if err != nil {
		return Usage{}, err //nolint:wrapcheck // already wrapped with the operation
	}
	return usageFromDomain(rec), nil
}

// OpenPeriod is the billing period reset signal: it archives the current
// period and starts [start, end) from zero. Reopening the open period is a
// no-op; a start not after the open one fails with ErrInvalidPeriod.
func (c *Client) OpenPeriod(
	ctx context.Context, accountID string, start, end time.Time,
) (archived Usage, hadPrevious bool, err error) {
	began := time.Now()
	defer func() { c.obs.observe("open_period", began, errStatus(err), err) }()

	rec, had, err := c.ledger.OpenPeriod(ctx, accountID, usage.Period{Start: start, End: end})
	if err != nil {
		return Usage{}, false, fmt.Errorf("open period: %w", err)
	}
	if !had {
		return Usage{}, false, nil
	}
	return usageFromDomain(rec), true, nil
}

// Health checks the ledger store.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// Close drains queued alerts until ctx is done, then releases the store.
func (c *Client) Close(ctx context.Context) error {
	var err error
	if c.dispatcher != nil {
		if cerr := c.dispatcher.Close(ctx); cerr != nil {
			err = fmt.Errorf("planguard: drain alerts: %w", cerr)
		}
	}
	if c.store != nil {
		c.store.Close()
	}
	return err
}
