package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ceeval-hq/verdict/pkg/config"
	"ceeval-hq/verdict/pkg/decision"
	"ceeval-hq/verdict/pkg/evaluation"
)

// otherRule replaces rule codes once the cardinality limit is reached.
const otherRule = "other"

// DefaultMaxRuleCodes caps the number of distinct rule_code label values.
const DefaultMaxRuleCodes = 5000

// Collector owns every verdict metric and the registry they live in.
// A collector built from a disabled config records nothing.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	rules    *RuleMetrics
	dossiers *DossierMetrics
	catalog  *CatalogMetrics

	ruleCodes *CardinalityLimiter
}

var _ evaluation.RuleObserver = (*Collector)(nil)

// NewCollector creates a collector. A nil registry gets a fresh one.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNS
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = config.DefaultDurationBuckets
	}

	return &Collector{
		enabled:   cfg.Enabled,
		registry:  registry,
		rules:     newRuleMetrics(cfg, registry),
		dossiers:  newDossierMetrics(cfg, registry),
		catalog:   newCatalogMetrics(cfg, registry),
		ruleCodes: NewCardinalityLimiter(DefaultMaxRuleCodes),
	}
}

// ObserveRule implements evaluation.RuleObserver.
func (c *Collector) ObserveRule(code string, status evaluation.Status, elapsed time.Duration) {
	if !c.enabled {
		return
	}
	if !c.ruleCodes.Allow(code) {
		code = otherRule
	}
	c.rules.observe(code, string(status), elapsed)
}

// RecordEvaluation records one completed dossier evaluation.
func (c *Collector) RecordEvaluation(outcome decision.Outcome, elapsed time.Duration) {
	if !c.enabled {
		return
	}
	c.dossiers.evaluations.WithLabelValues(string(outcome)).Inc()
	c.dossiers.duration.Observe(elapsed.Seconds())
}

// RecordSuperseded counts an evaluation discarded because a newer one
// started for the same dossier.
func (c *Collector) RecordSuperseded() {
	if !c.enabled {
		return
	}
	c.dossiers.superseded.Inc()
}

// RecordEvaluationError counts an evaluation that failed before a decision.
func (c *Collector) RecordEvaluationError(stage string) {
	if !c.enabled {
		return
	}
	c.dossiers.failures.WithLabelValues(stage).Inc()
}

// RecordCatalogReload records a catalog load attempt and, on success, the
// size of the loaded catalog.
func (c *Collector) RecordCatalogReload(source string, ok bool, rules int) {
	if !c.enabled {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	c.catalog.reloads.WithLabelValues(source, result).Inc()
	if ok {
		c.catalog.rules.Set(float64(rules))
		c.catalog.loadedAt.SetToCurrentTime()
	}
}

// RecordPruned counts history records removed by retention.
func (c *Collector) RecordPruned(n int) {
	if !c.enabled || n <= 0 {
		return
	}
	c.dossiers.pruned.Add(float64(n))
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter for maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or still fits.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of tracked values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
