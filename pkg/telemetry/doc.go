// Package telemetry assembles verdict's observability components from the
// telemetry section of the configuration.
//
//   - logging: slog logger with context fields and PII redaction
//   - metrics: Prometheus collector, also the engine's rule observer
//   - tracing: OpenTelemetry tracer, noop unless enabled
//   - health: liveness and readiness endpoints
//
// Usage:
//
//	tel, err := telemetry.New(cfg.Telemetry, telemetry.BuildInfo{Version: version})
//	defer tel.Shutdown(ctx)
//	engine.SetObserver(tel.Metrics)
package telemetry
