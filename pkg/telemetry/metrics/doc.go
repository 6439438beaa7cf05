// Package metrics exposes verdict's Prometheus metrics.
//
// A Collector owns a dedicated registry. It is passed to the evaluation
// engine as its RuleObserver and to the dossier coordinator, the catalog
// manager and the retention pruner, which record through its methods.
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	engine.SetObserver(collector)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Rule codes are bounded by a CardinalityLimiter; codes beyond the limit are
// folded into rule_code="other".
package metrics
