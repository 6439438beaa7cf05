package evaluation

import (
	"fmt"
	"time"
)

// EngineConfig configures the rule evaluation engine.
type EngineConfig struct {
	// InstancePolicy selects how field paths resolve when a dossier holds
	// several instances of one document type.
	// Default: InstanceFirst.
	InstancePolicy InstancePolicy

	// EnableExpressions turns on expression-mode rules. When disabled those
	// rules are reported as not_applicable.
	// Default: true.
	EnableExpressions bool

	// ExpressionCostLimit bounds the evaluation cost of one expression.
	// Default: DefaultExpressionCostLimit.
	ExpressionCostLimit uint64

	// RuleTimeout bounds the evaluation of one rule. Zero disables it.
	// Default: 100ms.
	RuleTimeout time.Duration
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		InstancePolicy:      InstanceFirst,
		EnableExpressions:   true,
		ExpressionCostLimit: DefaultExpressionCostLimit,
		RuleTimeout:         100 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *EngineConfig) Validate() error {
	if !c.InstancePolicy.Valid() {
		return fmt.Errorf("%w: unknown instance policy %q", ErrInvalidConfig, c.InstancePolicy)
	}
	if c.RuleTimeout < 0 {
		return fmt.Errorf("%w: rule timeout must be non-negative, got %s", ErrInvalidConfig, c.RuleTimeout)
	}
	return nil
}

// WithInstancePolicy sets the multi-instance resolution policy.
func (c *EngineConfig) WithInstancePolicy(p InstancePolicy) *EngineConfig {
	c.InstancePolicy = p
	return c
}

// WithExpressions enables or disables expression-mode rules.
func (c *EngineConfig) WithExpressions(enabled bool) *EngineConfig {
	c.EnableExpressions = enabled
	return c
}

// WithRuleTimeout sets the per-rule timeout.
func (c *EngineConfig) WithRuleTimeout(d time.Duration) *EngineConfig {
	c.RuleTimeout = d
	return c
}
