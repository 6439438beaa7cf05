package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ceeval-hq/verdict/pkg/config"
)

// RuleMetrics tracks per-rule verdicts.
//
// Metrics:
//   - verdict_rule_results_total{rule_code,status}
//   - verdict_rule_duration_seconds{rule_code}
type RuleMetrics struct {
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newRuleMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *RuleMetrics {
	m := &RuleMetrics{
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "rule_results_total",
				Help:      "Rule verdicts by rule code and status",
			},
			[]string{"rule_code", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "rule_duration_seconds",
				Help:      "Time spent evaluating one rule",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10), // 1µs to ~260ms
			},
			[]string{"rule_code"},
		),
	}
	registry.MustRegister(m.results, m.duration)
	return m
}

func (m *RuleMetrics) observe(code, status string, elapsed time.Duration) {
	m.results.WithLabelValues(code, status).Inc()
	m.duration.WithLabelValues(code).Observe(elapsed.Seconds())
}
