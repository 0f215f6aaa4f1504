package models

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/planguard/internal/domain/model"
	"github.com/kailas-cloud/planguard/internal/metrics"
)

// Lister is the subset of the OpenAI client used for syncing.
type Lister interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// SyncConfig configures a Syncer.
type SyncConfig struct {
	APIKey  string
	BaseURL string
	// FreeModels are tagged free; everything else the API lists is paid.
	FreeModels []string
	// Static entries always win over synced ones. nil keeps the catalog's
	// entries at construction time.
	Static []model.Model
}

// Syncer refreshes a Catalog from an OpenAI-compatible /models endpoint.
type Syncer struct {
	catalog *Catalog
	client  Lister
	static  []model.Model
	free    map[string]struct{}
	logger  *zap.Logger
	group   singleflight.Group
}

// NewSyncer creates a Syncer with an OpenAI client built from cfg.
func NewSyncer(catalog *Catalog, cfg SyncConfig, logger *zap.Logger) *Syncer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return NewSyncerWithClient(catalog, openai.NewClientWithConfig(clientCfg), cfg, logger)
}

// NewSyncerWithClient creates a Syncer over an arbitrary Lister.
func NewSyncerWithClient(catalog *Catalog, client Lister, cfg SyncConfig, logger *zap.Logger) *Syncer {
	static := cfg.Static
	if static == nil {
		static = catalog.All()
	}
	free := make(map[string]struct{}, len(cfg.FreeModels))
	for _, id := range cfg.FreeModels {
		free[id] = struct{}{}
	}
	return &Syncer{
		catalog: catalog,
		client:  client,
		static:  static,
		free:    free,
		logger:  logger,
	}
}

// Refresh pulls the remote list and swaps the catalog snapshot.
// Concurrent callers share one in-flight request. On failure the old snapshot stays.
func (s *Syncer) Refresh(ctx context.Context) (int, error) {
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil //nolint:forcetypeassert // refresh always returns int
}

func (s *Syncer) refresh(ctx context.Context) (int, error) {
	list, err := s.client.ListModels(ctx)
	if err != nil {
		metrics.CatalogSyncTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("list models: %w", err)
	}

	merged := make(map[string]model.Model, len(list.Models)+len(s.static))
	for _, m := range list.Models {
		if m.ID == "" {
			continue
		}
		tier := model.TierPaid
		if _, ok := s.free[m.ID]; ok {
			tier = model.TierFree
		}
		merged[m.ID] = model.New(m.ID, "", m.OwnedBy, tier)
	}
	for _, m := range s.static {
		merged[m.ID()] = m
	}

	out := make([]model.Model, 0, len(merged))
	for _, m := range merged {
		out = append(out, m)
	}
	if err := s.catalog.Replace(out); err != nil {
		metrics.CatalogSyncTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("replace catalog: %w", err)
	}

	metrics.CatalogSyncTotal.WithLabelValues("success").Inc()
	metrics.CatalogModels.Set(float64(len(out)))
	s.logger.Info("Model catalog synced",
		zap.Int("remote", len(list.Models)),
		zap.Int("total", len(out)),
	)
	return len(out), nil
}

// Run refreshes every interval until ctx is done.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.Warn("Model catalog sync failed, keeping previous snapshot", zap.Error(err))
			}
		}
	}
}

// HealthCheck verifies the catalog service answers.
func (s *Syncer) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
