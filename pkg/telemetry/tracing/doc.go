// Package tracing wraps OpenTelemetry for dossier evaluations.
//
// With tracing disabled New returns a noop tracer. Enabled, spans are
// batched to an OTLP/gRPC collector and sampled by one of the "always",
// "never" or "ratio" strategies; child spans follow their parent's
// decision.
//
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "dossier.evaluate")
//	tracing.SetDossierAttributes(span, id, inputVersion, processes)
//	defer span.End()
package tracing
