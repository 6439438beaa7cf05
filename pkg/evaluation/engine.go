package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ceeval-hq/verdict/pkg/rules"
	"ceeval-hq/verdict/pkg/schema"
)

// resultNamespace seeds deterministic result ids.
var resultNamespace = uuid.MustParse("5b0c8f0e-4d3a-4e8b-9a61-2f7d3c9e1b44")

// RuleObserver is notified of every rule verdict.
type RuleObserver interface {
	ObserveRule(code string, status Status, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRule(string, Status, time.Duration) {}

// Input is everything one evaluation reads. It is never mutated.
type Input struct {
	// ProcessIDs are the processes the dossier is attached to.
	ProcessIDs []string

	// Registry resolves field paths.
	Registry *schema.Registry

	// Rules is the catalog to evaluate.
	Rules *rules.RuleSet

	// Values is the dossier snapshot.
	Values View

	// Expressions evaluates expression-mode rules. When nil the engine builds
	// and caches one for Registry.
	Expressions *Expressions
}

// Engine evaluates rule sets against dossier snapshots. It holds no
// per-dossier state and is safe for concurrent use.
type Engine struct {
	config   *EngineConfig
	matcher  *Matcher
	logger   *slog.Logger
	observer RuleObserver

	// expressions caches one CEL environment per registry.
	expressions sync.Map
}

// NewEngine creates an engine. A nil config uses DefaultEngineConfig.
func NewEngine(config *EngineConfig, logger *slog.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config:   config,
		matcher:  NewMatcher(logger),
		logger:   logger,
		observer: nopObserver{},
	}, nil
}

// SetObserver registers an observer for rule verdicts.
func (e *Engine) SetObserver(o RuleObserver) {
	if o == nil {
		o = nopObserver{}
	}
	e.observer = o
}

// Evaluate runs every applicable rule against the snapshot and returns the
// complete result set. Malformed rules degrade to not_applicable; only a
// cancelled context or an invalid input aborts the run.
func (e *Engine) Evaluate(ctx context.Context, in Input) (*ResultSet, error) {
	if in.Registry == nil || in.Rules == nil || in.Values == nil {
		return nil, errors.New("evaluation input requires registry, rules and values")
	}

	start := time.Now()
	present := in.Values.DocumentTypes()
	applicable := in.Rules.ApplicableRulesFor(in.ProcessIDs, present)
	res := NewResolver(in.Registry, in.Values, e.config.InstancePolicy)

	set := &ResultSet{
		DossierID:    in.Values.DossierID(),
		InputVersion: in.Values.Version(),
		RulesVersion: in.Rules.Version(),
		EvaluatedAt:  in.Values.AsOf(),
		Results:      make([]RuleResult, 0, len(applicable)),
	}

	for _, r := range applicable {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set.Results = append(set.Results, e.evaluateRule(ctx, in, r, res, present))
	}

	e.logger.Debug("dossier evaluated",
		"dossier_id", set.DossierID,
		"input_version", set.InputVersion,
		"rules", len(set.Results),
		"errors", set.Count(StatusError),
		"warnings", set.Count(StatusWarning),
		"not_applicable", set.Count(StatusNotApplicable),
		"duration", time.Since(start),
	)
	return set, nil
}

func (e *Engine) evaluateRule(ctx context.Context, in Input, r *rules.Rule, res *Resolver, present []string) (result RuleResult) {
	start := time.Now()
	result = RuleResult{
		ID:          ResultID(in.Values.DossierID(), in.Values.Version(), r.Code),
		RuleID:      r.ID,
		RuleCode:    r.Code,
		RuleName:    r.Name,
		Severity:    r.Severity,
		AutoReject:  r.AutoReject,
		CanOverride: r.CanOverride,
		EvaluatedAt: in.Values.AsOf(),
	}

	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("rule evaluation panicked",
				"rule_code", r.Code,
				"dossier_id", in.Values.DossierID(),
				"panic", p,
			)
			result.Status = StatusNotApplicable
			result.Message = skipMessage("rule could not be evaluated", nil)
			result.Diagnostic = fmt.Sprintf("panic: %v", p)
		}
		e.observer.ObserveRule(r.Code, result.Status, time.Since(start))
	}()

	if missing := r.MissingDocumentTypes(present); len(missing) > 0 {
		result.Status = StatusNotApplicable
		result.AffectedFields = r.FieldPaths()
		result.Message = skipMessage("missing document type "+strings.Join(missing, ", "), nil)
		return result
	}

	if e.config.RuleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.RuleTimeout)
		defer cancel()
	}

	outcome, affected, err := e.evaluateCondition(ctx, in, r, res)
	result.AffectedFields = affected
	if err != nil {
		var condErr *ConditionError
		if errors.As(err, &condErr) {
			condErr.RuleCode = r.Code
		}
		e.logger.Warn("rule skipped",
			"rule_code", r.Code,
			"dossier_id", in.Values.DossierID(),
			"error", err,
		)
		result.Status = StatusNotApplicable
		result.Message = skipMessage("rule definition is invalid", nil)
		result.Diagnostic = err.Error()
		return result
	}

	result.Status = statusFor(outcome.Result, r.Severity)
	switch result.Status {
	case StatusPassed:
	case StatusNotApplicable:
		result.Message = skipMessage("required values are unavailable", outcome.Notes)
	default:
		result.Message = failureMessage(r, res)
	}

	e.logger.Debug("rule evaluated",
		"rule_code", r.Code,
		"status", result.Status,
		"result", outcome.Result.String(),
	)
	return result
}

func (e *Engine) evaluateCondition(ctx context.Context, in Input, r *rules.Rule, res *Resolver) (Outcome, []string, error) {
	switch r.Condition.Kind() {
	case rules.ConditionStructured:
		out, err := e.matcher.Match(ctx, r.Condition, res)
		return out, r.FieldPaths(), err

	case rules.ConditionExpression:
		if !e.config.EnableExpressions {
			return Outcome{}, nil, &ConditionError{Err: errors.New("expression rules are disabled")}
		}
		exprs, err := e.expressionsFor(in)
		if err != nil {
			return Outcome{}, nil, &ConditionError{Err: err}
		}
		var affected []string
		if paths, err := exprs.Paths(r.Condition.Expr()); err == nil {
			for _, p := range paths {
				affected = append(affected, p.String())
			}
		}
		out, err := exprs.Evaluate(ctx, r.Condition.Expr(), res)
		return out, affected, err

	default:
		return Outcome{}, nil, &ConditionError{Err: errors.New("rule has no condition")}
	}
}

func (e *Engine) expressionsFor(in Input) (*Expressions, error) {
	if in.Expressions != nil {
		return in.Expressions, nil
	}
	if cached, ok := e.expressions.Load(in.Registry); ok {
		return cached.(*Expressions), nil
	}
	exprs, err := NewExpressions(in.Registry, e.config.ExpressionCostLimit)
	if err != nil {
		return nil, err
	}
	actual, _ := e.expressions.LoadOrStore(in.Registry, exprs)
	return actual.(*Expressions), nil
}

// ResultID derives the id of a rule result from its inputs.
func ResultID(dossierID string, version uint64, ruleCode string) uuid.UUID {
	return uuid.NewSHA1(resultNamespace, []byte(fmt.Sprintf("%s|%d|%s", dossierID, version, ruleCode)))
}
