package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"ceeval-hq/verdict/pkg/config"
	"ceeval-hq/verdict/pkg/telemetry/health"
	"ceeval-hq/verdict/pkg/telemetry/logging"
	"ceeval-hq/verdict/pkg/telemetry/metrics"
	"ceeval-hq/verdict/pkg/telemetry/tracing"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Telemetry bundles the observability components.
type Telemetry struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Health  *health.Checker
	Build   BuildInfo

	config config.TelemetryConfig
}

// New builds every component. logWriter defaults to stderr when nil.
func New(cfg config.TelemetryConfig, build BuildInfo, logWriter io.Writer) (*Telemetry, error) {
	logCfg := logging.FromConfig(cfg.Logging)
	logCfg.Writer = logWriter
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	tracer, err := tracing.New(cfg.Tracing, build.Version)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	return &Telemetry{
		Logger:  logger,
		Metrics: metrics.NewCollector(cfg.Metrics, nil),
		Tracer:  tracer,
		Health:  health.New(0),
		Build:   build,
		config:  cfg,
	}, nil
}

// Mount registers the enabled metrics and health endpoints on mux.
func (t *Telemetry) Mount(mux *http.ServeMux) {
	if t.config.Metrics.Enabled {
		mux.Handle(t.config.Metrics.Path, t.Metrics.Handler())
	}
	if t.config.Health.Enabled {
		t.Health.Mount(mux, t.config.Health.LivenessPath, t.config.Health.ReadinessPath, health.VersionInfo{
			Version:   t.Build.Version,
			Commit:    t.Build.Commit,
			BuildTime: t.Build.BuildTime,
		})
	}
}

// Shutdown flushes the tracer.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.Tracer.Shutdown(ctx)
}
