package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"ceeval-hq/verdict/pkg/config"
	"ceeval-hq/verdict/pkg/decision"
	"ceeval-hq/verdict/pkg/evaluation"
)

func testConfig() config.MetricsConfig {
	return config.MetricsConfig{Enabled: true, Namespace: "test"}
}

func TestCollector_ObserveRule(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.ObserveRule("PRIME_CONSISTENCY", evaluation.StatusPassed, time.Millisecond)
	c.ObserveRule("PRIME_CONSISTENCY", evaluation.StatusPassed, time.Millisecond)
	c.ObserveRule("PRIME_CONSISTENCY", evaluation.StatusError, time.Millisecond)

	if got := testutil.ToFloat64(c.rules.results.WithLabelValues("PRIME_CONSISTENCY", "passed")); got != 2 {
		t.Errorf("passed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.rules.results.WithLabelValues("PRIME_CONSISTENCY", "error")); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.rules.duration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestCollector_RuleCardinality(t *testing.T) {
	c := NewCollector(testConfig(), nil)
	c.ruleCodes = NewCardinalityLimiter(2)

	for _, code := range []string{"A", "B", "C", "D"} {
		c.ObserveRule(code, evaluation.StatusPassed, 0)
	}
	if got := testutil.ToFloat64(c.rules.results.WithLabelValues(otherRule, "passed")); got != 2 {
		t.Errorf("other = %v, want 2", got)
	}
	if got := c.ruleCodes.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
}

func TestCollector_Dossiers(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.RecordEvaluation(decision.AutoApprove, 20*time.Millisecond)
	c.RecordEvaluation(decision.SendToReview, 5*time.Millisecond)
	c.RecordEvaluation(decision.SendToReview, 5*time.Millisecond)
	c.RecordSuperseded()
	c.RecordEvaluationError("storage")
	c.RecordPruned(3)
	c.RecordPruned(0)

	if got := testutil.ToFloat64(c.dossiers.evaluations.WithLabelValues("send_to_review")); got != 2 {
		t.Errorf("send_to_review = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.dossiers.superseded); got != 1 {
		t.Errorf("superseded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.dossiers.failures.WithLabelValues("storage")); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.dossiers.pruned); got != 3 {
		t.Errorf("pruned = %v, want 3", got)
	}
}

func TestCollector_Catalog(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.RecordCatalogReload("file", true, 42)
	c.RecordCatalogReload("file", false, 0)

	if got := testutil.ToFloat64(c.catalog.rules); got != 42 {
		t.Errorf("rules = %v, want 42 (failed reload must not reset it)", got)
	}
	if got := testutil.ToFloat64(c.catalog.reloads.WithLabelValues("file", "failure")); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, nil)

	c.ObserveRule("A", evaluation.StatusPassed, 0)
	c.RecordEvaluation(decision.AutoReject, 0)
	c.RecordSuperseded()

	if got := testutil.ToFloat64(c.dossiers.superseded); got != 0 {
		t.Errorf("superseded = %v, want 0", got)
	}
	if got := testutil.CollectAndCount(c.rules.results); got != 0 {
		t.Errorf("rule series = %d, want 0", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(testConfig(), nil)
	c.RecordEvaluation(decision.AutoApprove, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_evaluations_total{outcome="auto_approve"} 1`) {
		t.Errorf("scrape missing evaluation counter:\n%s", rec.Body.String())
	}
}

func TestCardinalityLimiter(t *testing.T) {
	limiter := NewCardinalityLimiter(2)
	tests := []struct {
		value string
		want  bool
	}{
		{"a", true},
		{"b", true},
		{"a", true},
		{"c", false},
	}
	for _, tt := range tests {
		if got := limiter.Allow(tt.value); got != tt.want {
			t.Errorf("Allow(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
