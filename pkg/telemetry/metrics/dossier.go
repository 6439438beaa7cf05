package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"ceeval-hq/verdict/pkg/config"
)

// DossierMetrics tracks dossier evaluations and their lifecycle.
type DossierMetrics struct {
	evaluations *prometheus.CounterVec
	duration    prometheus.Histogram
	superseded  prometheus.Counter
	failures    *prometheus.CounterVec
	pruned      prometheus.Counter
}

func newDossierMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *DossierMetrics {
	m := &DossierMetrics{
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluations_total",
				Help:      "Completed dossier evaluations by decision outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of a full dossier evaluation",
				Buckets:   cfg.DurationBuckets,
			},
		),
		superseded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluations_superseded_total",
				Help:      "Evaluations discarded because a newer one started",
			},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluation_failures_total",
				Help:      "Evaluations that failed, by stage",
			},
			[]string{"stage"},
		),
		pruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "history_pruned_total",
				Help:      "History records removed by retention",
			},
		),
	}
	registry.MustRegister(m.evaluations, m.duration, m.superseded, m.failures, m.pruned)
	return m
}
