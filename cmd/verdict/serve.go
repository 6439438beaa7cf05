package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ceeval-hq/verdict/pkg/catalog"
	"ceeval-hq/verdict/pkg/cli"
	"ceeval-hq/verdict/pkg/server"
	"ceeval-hq/verdict/pkg/storage/retention"
)

var serveFlags struct {
	listenAddress string
	dossiers      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run verdict as a long-lived service",
	Long: `Run verdict as a long-lived service.

serve loads the catalog, watches it for changes and re-evaluates every known
dossier after each successful reload. Evaluation history is pruned on the
configured retention schedule. Metrics and health probes are exposed on the
operational listener.

Examples:
  # Serve with a config file
  verdict serve --config verdict.yaml

  # Evaluate a directory of dossiers at start and keep them current
  verdict serve --catalog catalog/ --dossiers dossiers/

  # Validate config and catalog without starting
  verdict serve --config verdict.yaml --dry-run`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveFlags.listenAddress, "listen", "", "override the operational listen address")
	serveCmd.Flags().StringVar(&serveFlags.dossiers, "dossiers", "", "directory of dossier files to evaluate at start")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config and catalog without starting")
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.dryRun {
		// the result store is left untouched
		cfg.Storage.Backend = "memory"
	}
	tel, err := newTelemetry(cfg, false)
	if err != nil {
		return err
	}
	logger := tel.Logger

	ctx := cli.SetupSignalHandler()
	a, err := newApp(ctx, cfg, tel)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			logger.Error("close failed", "error", err)
		}
	}()

	if serveFlags.dryRun {
		snap, _ := a.catalog.Current()
		stats := snap.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "configuration valid, catalog %s: %d document types, %d processes, %d rules\n",
			snap.Version, stats.DocumentTypes, stats.Processes, stats.Rules)
		return nil
	}

	a.telemetry.Health.Register("catalog", func(context.Context) error {
		_, err := a.catalog.Current()
		return err
	})
	a.telemetry.Health.Register("storage", func(ctx context.Context) error {
		_, err := a.results.Dossiers(ctx)
		return err
	})

	a.catalog.OnReload(func(snap *catalog.Snapshot) {
		go func() {
			logger.Info("re-evaluating dossiers after catalog reload", "catalog_version", snap.Version)
			if err := a.coordinator.ReevaluateAll(ctx); err != nil {
				logger.Error("re-evaluation failed", "error", err)
			}
		}()
	})
	go func() {
		if err := a.catalog.Watch(ctx); err != nil {
			logger.Error("catalog watch stopped", "error", err)
		}
	}()

	pruner := retention.NewPruner(a.results, &retention.Config{
		RetentionDays: cfg.Storage.Retention.Days,
		PruneSchedule: cfg.Storage.Retention.PruneSchedule,
	})
	pruner.OnPruned(func(n int64) { a.telemetry.Metrics.RecordPruned(int(n)) })
	if err := pruner.Scheduler().Start(ctx); err != nil {
		return cli.NewConfigError("storage.retention.prune_schedule", err.Error())
	}
	defer pruner.Scheduler().Stop()

	if serveFlags.dossiers != "" {
		if err := evaluateDir(ctx, a, serveFlags.dossiers); err != nil {
			return cli.NewCommandError("serve", err)
		}
	}

	mux := http.NewServeMux()
	a.telemetry.Mount(mux)
	srv := server.New(cfg.Server, mux, logger)

	logger.Info("verdict started",
		"version", Version,
		"listen_address", cfg.Server.ListenAddress,
		"catalog_mode", cfg.Catalog.Mode,
		"storage_backend", cfg.Storage.Backend,
	)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	logger.Info("verdict stopped")
	return nil
}

// evaluateDir applies every dossier file in dir. A bad file is logged and
// skipped so that one broken export does not keep the service down.
func evaluateDir(ctx context.Context, a *app, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dossier directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	start := time.Now()
	var errs []error
	for _, path := range paths {
		ev, err := evaluateFile(ctx, a.coordinator, path)
		if err != nil {
			a.logger.Error("dossier evaluation failed", "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		a.logger.Info("dossier evaluated",
			"dossier_id", ev.DossierID,
			"outcome", ev.Decision.Outcome,
			"status", ev.Status,
		)
	}
	a.logger.Info("dossier directory evaluated",
		"path", dir,
		"files", len(paths),
		"failed", len(errs),
		"duration", time.Since(start),
	)
	if len(errs) == len(paths) && len(paths) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
