package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/planguard/internal/catalog"
	"github.com/kailas-cloud/planguard/internal/catalog/models"
	"github.com/kailas-cloud/planguard/internal/config"
	"github.com/kailas-cloud/planguard/internal/db"
	dbRedis "github.com/kailas-cloud/planguard/internal/db/redis"
	logpkg "github.com/kailas-cloud/planguard/internal/logger"
	"github.com/kailas-cloud/planguard/internal/metrics"
	repoledger "github.com/kailas-cloud/planguard/internal/repository/ledger"
	chiTransport "github.com/kailas-cloud/planguard/internal/transport/chi"
	alertuc "github.com/kailas-cloud/planguard/internal/usecase/alert"
	healthuc "github.com/kailas-cloud/planguard/internal/usecase/health"
	ledgeruc "github.com/kailas-cloud/planguard/internal/usecase/ledger"
	policyuc "github.com/kailas-cloud/planguard/internal/usecase/policy"
	"github.com/kailas-cloud/planguard/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting planguard API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Register policy metrics explicitly (no init())
	metrics.RegisterPolicyMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ledger store: in-process for a single replica, Redis/Valkey otherwise.
	var (
		store db.Store
		repo  ledgeruc.Repository
	)
	switch cfg.Database.Driver {
	case config.DriverRedis, config.DriverValkey:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Database.Addrs,
			Username:   cfg.Database.Username,
			Password:   cfg.Database.Password,
			DB:         cfg.Database.DB,
			ClientName: "planguard/" + version.Version,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer s.Close()

		if err := s.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database")
		store = s
		repo = repoledger.New(s, cfg.Ledger.KeyPrefix, cfg.Ledger.ArchiveTTL())
	default:
		logger.Warn("Using in-memory ledger; usage is lost on restart and not shared between replicas")
		repo = repoledger.NewMemory(cfg.Ledger.ArchiveTTL())
	}

	bundle, err := catalog.Build(cfg.Catalog)
	if err != nil {
		logger.Fatal("Invalid catalog", zap.Error(err))
	}
	metrics.CatalogModels.Set(float64(bundle.Models.Len()))

	// Optional model catalog sync
	var catalogChecker healthuc.CatalogChecker
	if cfg.Catalog.Sync.Enabled {
		syncer := models.NewSyncer(bundle.Models, models.SyncConfig{
			APIKey:     cfg.Catalog.Sync.APIKey,
			BaseURL:    cfg.Catalog.Sync.BaseURL,
			FreeModels: cfg.Catalog.Sync.FreeModels,
			Static:     bundle.Models.All(),
		}, logger)
		if _, err := syncer.Refresh(ctx); err != nil {
			logger.Warn("Initial model catalog sync failed, using configured models", zap.Error(err))
		}
		go syncer.Run(ctx, time.Duration(cfg.Catalog.Sync.IntervalSec)*time.Second)
		catalogChecker = syncer
	}

	// Alert sinks: always log, plus webhook and stream when configured
	sinks := []alertuc.Sink{alertuc.NewLogSink(logger)}
	if cfg.Alerts.Webhook.URL != "" {
		sinks = append(sinks, alertuc.NewWebhookSink(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Token, nil))
	}
	if cfg.Alerts.Stream.Enabled && store != nil {
		sinks = append(sinks, alertuc.NewStreamSink(store, cfg.Alerts.Stream.Name, cfg.Alerts.Stream.MaxLen))
	}
	dispatcher := alertuc.NewDispatcher(alertuc.NewFanout(sinks...), alertuc.DispatcherConfig{
		QueueSize:   cfg.Alerts.QueueSize,
		Workers:     cfg.Alerts.Workers,
		SendTimeout: time.Duration(cfg.Alerts.SendTimeoutMs) * time.Millisecond,
	}, logger)

	ledgerSvc := ledgeruc.New(repo, bundle.Plans, cfg.Ledger.Timeout(), logger)
	engine := policyuc.New(bundle.Roles, bundle.Plans, bundle.Models, ledgerSvc, dispatcher,
		policyuc.Config{DefaultThresholdPct: cfg.Alerts.DefaultThresholdPct}, logger)

	// Pass nil interface (not typed nil pointer) when running in memory.
	var pinger healthuc.DBPinger
	if store != nil {
		pinger = store
	}
	healthSvc := healthuc.New(pinger, catalogChecker)

	server := chiTransport.NewServer(engine, ledgerSvc, bundle, healthSvc, logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	// Drain queued alerts after the last request has been answered.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("Alert queue not drained", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
