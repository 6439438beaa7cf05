package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for dossier evaluation spans.
const (
	AttrDossierID      = "verdict.dossier.id"
	AttrInputVersion   = "verdict.dossier.input_version"
	AttrProcesses      = "verdict.dossier.processes"
	AttrCatalogVersion = "verdict.catalog.version"
	AttrRulesEvaluated = "verdict.rules.evaluated"
	AttrRulesFailed    = "verdict.rules.failed"
	AttrOutcome        = "verdict.decision.outcome"
	AttrMinConfidence  = "verdict.decision.min_confidence"
	AttrSuperseded     = "verdict.evaluation.superseded"
)

// SetDossierAttributes describes the dossier being evaluated.
func SetDossierAttributes(span trace.Span, dossierID string, inputVersion uint64, processes []string) {
	span.SetAttributes(
		attribute.String(AttrDossierID, dossierID),
		attribute.Int64(AttrInputVersion, int64(inputVersion)),
		attribute.StringSlice(AttrProcesses, processes),
	)
}

// SetCatalogAttributes records which catalog version evaluated the dossier.
func SetCatalogAttributes(span trace.Span, version string) {
	span.SetAttributes(attribute.String(AttrCatalogVersion, version))
}

// SetResultAttributes records the rule and decision summary of an evaluation.
func SetResultAttributes(span trace.Span, evaluated, failed int, outcome string, minConfidence float64) {
	span.SetAttributes(
		attribute.Int(AttrRulesEvaluated, evaluated),
		attribute.Int(AttrRulesFailed, failed),
		attribute.String(AttrOutcome, outcome),
		attribute.Float64(AttrMinConfidence, minConfidence),
	)
}

// SetSuperseded marks an evaluation whose results were discarded.
func SetSuperseded(span trace.Span) {
	span.SetAttributes(attribute.Bool(AttrSuperseded, true))
}
