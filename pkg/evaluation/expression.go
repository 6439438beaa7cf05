package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"ceeval-hq/verdict/pkg/schema"
)

// DefaultExpressionCostLimit bounds the work one expression may do.
const DefaultExpressionCostLimit = 10000

// pathToken finds candidate "<doc>.<field>" references in an expression.
var pathToken = regexp.MustCompile(`\b([a-z][a-z0-9_]*)\.([a-z][a-z0-9_]*)\b`)

// compiledExpression is a checked program and the field paths it reads.
type compiledExpression struct {
	program cel.Program
	paths   []schema.FieldPath
}

// Expressions evaluates expression-mode conditions with CEL. Each document
// type is exposed as a map variable named by its lower-case code, so
// "devis.prime_cee > 0.0" reads the prime_cee field of the devis document.
//
// Expressions run in a sandbox: no I/O, bounded cost, and only the helper
// functions registered here.
type Expressions struct {
	registry  *schema.Registry
	env       *cel.Env
	costLimit uint64
	cache     sync.Map // expression -> *compiledExpression
}

// NewExpressions builds a CEL environment for the document types of registry.
func NewExpressions(registry *schema.Registry, costLimit uint64) (*Expressions, error) {
	if costLimit == 0 {
		costLimit = DefaultExpressionCostLimit
	}
	env, err := newCELEnv(registry)
	if err != nil {
		return nil, err
	}
	return &Expressions{registry: registry, env: env, costLimit: costLimit}, nil
}

func newCELEnv(registry *schema.Registry) (*cel.Env, error) {
	opts := []cel.EnvOption{
		cel.CrossTypeNumericComparisons(true),
		cel.Function("days_between",
			cel.Overload("days_between_timestamp_timestamp",
				[]*cel.Type{cel.TimestampType, cel.TimestampType}, cel.IntType,
				cel.BinaryBinding(daysBetween))),
		cel.Function("abs",
			cel.Overload("abs_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
				cel.UnaryBinding(absDouble))),
		cel.Function("round",
			cel.Overload("round_double_int", []*cel.Type{cel.DoubleType, cel.IntType}, cel.DoubleType,
				cel.BinaryBinding(roundDouble))),
		cel.Function("validate_siret",
			cel.Overload("validate_siret_string", []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(validateSIRET))),
	}
	for _, code := range registry.Codes() {
		opts = append(opts, cel.Variable(code, cel.MapType(cel.StringType, cel.DynType)))
	}
	return cel.NewEnv(opts...)
}

// ExpressionChecker compiles expressions for catalog validation.
type ExpressionChecker struct{}

// Check implements the catalog validator's ExpressionChecker.
func (ExpressionChecker) Check(expr string, registry *schema.Registry) error {
	e, err := NewExpressions(registry, 0)
	if err != nil {
		return err
	}
	_, err = e.compile(expr)
	return err
}

func (e *Expressions) compile(expr string) (*compiledExpression, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	if cached, ok := e.cache.Load(expr); ok {
		return cached.(*compiledExpression), nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must produce a bool, got %s", out)
	}
	program, err := e.env.Program(ast, cel.CostLimit(e.costLimit))
	if err != nil {
		return nil, err
	}

	c := &compiledExpression{program: program, paths: e.referencedPaths(expr)}
	e.cache.Store(expr, c)
	return c, nil
}

// referencedPaths lists the registered field paths mentioned in expr.
func (e *Expressions) referencedPaths(expr string) []schema.FieldPath {
	seen := make(map[schema.FieldPath]bool)
	var out []schema.FieldPath
	for _, m := range pathToken.FindAllStringSubmatch(expr, -1) {
		p := schema.FieldPath{DocumentType: m[1], Field: m[2]}
		if seen[p] {
			continue
		}
		if _, err := e.registry.Resolve(p); err != nil {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Paths returns the field paths expr reads, or an error when it does not
// compile.
func (e *Expressions) Paths(expr string) ([]schema.FieldPath, error) {
	c, err := e.compile(expr)
	if err != nil {
		return nil, err
	}
	out := make([]schema.FieldPath, len(c.paths))
	copy(out, c.paths)
	return out, nil
}

// Evaluate runs expr against res. A compile failure is returned as an
// error; absent fields and runtime failures yield Indeterminate.
func (e *Expressions) Evaluate(ctx context.Context, expr string, res *Resolver) (Outcome, error) {
	c, err := e.compile(expr)
	if err != nil {
		return Outcome{}, &ConditionError{Err: err}
	}

	vars, notes := res.values(c.paths)
	if len(notes) > 0 {
		return Outcome{Result: Indeterminate, Notes: notes}, nil
	}

	activation := make(map[string]any, len(vars))
	for _, code := range e.registry.Codes() {
		doc := vars[code]
		if doc == nil {
			doc = map[string]any{}
		}
		converted := make(map[string]any, len(doc))
		for k, v := range doc {
			converted[k] = celValue(v)
		}
		activation[code] = converted
	}

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	val, _, err := c.program.ContextEval(ctx, activation)
	if err != nil {
		return Outcome{Result: Indeterminate, Notes: []string{err.Error()}}, nil
	}
	b, ok := val.Value().(bool)
	if !ok {
		return Outcome{Result: Indeterminate, Notes: []string{fmt.Sprintf("expression produced %T, not bool", val.Value())}}, nil
	}
	return Outcome{Result: boolResult(b)}, nil
}

// celValue maps typed field values onto CEL-friendly types. Integers become
// doubles so that arithmetic mixes freely with currency fields.
func celValue(v any) any {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case time.Time:
		return x
	default:
		return v
	}
}

func daysBetween(lhs, rhs ref.Val) ref.Val {
	a, ok := lhs.(types.Timestamp)
	if !ok {
		return types.MaybeNoSuchOverloadErr(lhs)
	}
	b, ok := rhs.(types.Timestamp)
	if !ok {
		return types.MaybeNoSuchOverloadErr(rhs)
	}
	return types.Int(int64(b.Time.Sub(a.Time).Hours() / 24))
}

func absDouble(v ref.Val) ref.Val {
	d, ok := v.(types.Double)
	if !ok {
		return types.MaybeNoSuchOverloadErr(v)
	}
	return types.Double(math.Abs(float64(d)))
}

func roundDouble(v, places ref.Val) ref.Val {
	d, ok := v.(types.Double)
	if !ok {
		return types.MaybeNoSuchOverloadErr(v)
	}
	p, ok := places.(types.Int)
	if !ok {
		return types.MaybeNoSuchOverloadErr(places)
	}
	scale := math.Pow(10, float64(p))
	return types.Double(math.Round(float64(d)*scale) / scale)
}

func validateSIRET(v ref.Val) ref.Val {
	s, ok := v.(types.String)
	if !ok {
		return types.MaybeNoSuchOverloadErr(v)
	}
	return types.Bool(ValidSIRET(string(s)))
}

// ValidSIRET reports whether s is a 14-digit SIRET with a valid Luhn key.
// Spaces are ignored.
func ValidSIRET(s string) bool {
	digits := strings.ReplaceAll(s, " ", "")
	if len(digits) != 14 {
		return false
	}
	total := 0
	for i, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
		d := int(r - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		total += d
	}
	return total%10 == 0
}
