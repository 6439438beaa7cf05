package main

import (
	"context"
	"fmt"
	"log/slog"

	"ceeval-hq/verdict/pkg/catalog"
	"ceeval-hq/verdict/pkg/config"
	"ceeval-hq/verdict/pkg/decision"
	"ceeval-hq/verdict/pkg/dossier"
	"ceeval-hq/verdict/pkg/evaluation"
	"ceeval-hq/verdict/pkg/fieldvalue"
	"ceeval-hq/verdict/pkg/storage"
	"ceeval-hq/verdict/pkg/telemetry"
)

// app is the wired evaluation stack shared by evaluate and serve.
type app struct {
	cfg         *config.Config
	telemetry   *telemetry.Telemetry
	logger      *slog.Logger
	catalog     *catalog.Manager
	coordinator *dossier.Coordinator
	results     storage.Store
}

// newApp loads the catalog and wires the coordinator. The caller closes the
// app.
func newApp(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry) (*app, error) {
	logger := tel.Logger

	loader := catalog.NewLoader(catalog.LoaderConfig{
		MaxFileSize: cfg.Catalog.MaxFileSize,
		Strict:      cfg.Catalog.Strict,
		Checker:     evaluation.ExpressionChecker{},
	}, logger)
	manager, err := catalog.NewManager(cfg.Catalog, loader, logger, catalog.WithRecorder(tel.Metrics))
	if err != nil {
		return nil, err
	}
	if err := manager.Load(ctx); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	snap, err := manager.Current()
	if err != nil {
		return nil, err
	}

	engine, err := evaluation.NewEngine(&evaluation.EngineConfig{
		InstancePolicy:      evaluation.InstancePolicy(cfg.Engine.InstancePolicy),
		EnableExpressions:   cfg.Engine.EnableExpressions,
		ExpressionCostLimit: cfg.Engine.ExpressionCostLimit,
		RuleTimeout:         cfg.Engine.RuleTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	engine.SetObserver(tel.Metrics)

	results, err := openResultStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	coordinator, err := dossier.NewCoordinator(manager,
		fieldvalue.NewStore(snap.Registry, fieldvalue.WithLogger(logger)),
		engine,
		dossier.WithResultStore(results),
		dossier.WithPolicy(&decision.Policy{DefaultThreshold: cfg.Engine.DefaultThreshold}),
		dossier.WithRecorder(tel.Metrics),
		dossier.WithTracer(tel.Tracer),
		dossier.WithLogger(logger),
	)
	if err != nil {
		results.Close()
		return nil, err
	}
	manager.OnReload(coordinator.CatalogReloaded)

	return &app{
		cfg:         cfg,
		telemetry:   tel,
		logger:      logger,
		catalog:     manager,
		coordinator: coordinator,
		results:     results,
	}, nil
}

// Close releases the result store and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	err := a.results.Close()
	if terr := a.telemetry.Shutdown(ctx); err == nil {
		err = terr
	}
	return err
}

// openResultStore opens the configured result backend.
func openResultStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "sqlite":
		s, err := storage.NewSQLiteStore(&storage.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite result store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
