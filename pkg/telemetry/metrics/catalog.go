package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"ceeval-hq/verdict/pkg/config"
)

// CatalogMetrics tracks rule catalog loads.
type CatalogMetrics struct {
	reloads  *prometheus.CounterVec
	rules    prometheus.Gauge
	loadedAt prometheus.Gauge
}

func newCatalogMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *CatalogMetrics {
	m := &CatalogMetrics{
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "catalog_reloads_total",
				Help:      "Catalog load attempts by source and result",
			},
			[]string{"source", "result"},
		),
		rules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "catalog_rules",
				Help:      "Number of rules in the active catalog",
			},
		),
		loadedAt: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "catalog_loaded_timestamp_seconds",
				Help:      "Unix time of the last successful catalog load",
			},
		),
	}
	registry.MustRegister(m.reloads, m.rules, m.loadedAt)
	return m
}
