package evaluation

import (
	"context"
	"fmt"
	"log/slog"

	"ceeval-hq/verdict/pkg/rules"
	"ceeval-hq/verdict/pkg/schema"
)

// Matcher evaluates structured conditions.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher returns a matcher logging to logger.
func NewMatcher(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{logger: logger}
}

// boundAtom is an atom whose paths have been validated.
type boundAtom struct {
	atom  rules.Atom
	left  schema.FieldPath
	right schema.FieldPath
}

// Match evaluates a structured condition. An error is returned only when the
// condition is malformed; operand type mismatches and absent fields yield an
// indeterminate outcome.
func (m *Matcher) Match(ctx context.Context, cond rules.Condition, res *Resolver) (Outcome, error) {
	if cond.Kind() != rules.ConditionStructured {
		return Outcome{}, fmt.Errorf("%w: matcher handles structured conditions, got %s", ErrMalformedCondition, cond.Kind())
	}

	// Bind every atom first so a malformed atom after a false one is
	// still reported.
	atoms := cond.Atoms()
	bound := make([]boundAtom, 0, len(atoms))
	for _, a := range atoms {
		b, err := bind(a, res)
		if err != nil {
			return Outcome{}, &ConditionError{Atom: a.String(), Err: err}
		}
		bound = append(bound, b)
	}

	out := Outcome{Result: True}
	for _, b := range bound {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		result, note := m.matchAtom(b, res)
		if note != "" {
			out.Notes = append(out.Notes, note)
		}
		switch result {
		case False:
			// False dominates indeterminate.
			return Outcome{Result: False, Notes: out.Notes}, nil
		case Indeterminate:
			out.Result = Indeterminate
		}
	}
	return out, nil
}

func bind(a rules.Atom, res *Resolver) (boundAtom, error) {
	if !a.Operator.Valid() {
		return boundAtom{}, fmt.Errorf("unknown operator %q", a.Operator)
	}
	left, err := res.parse(a.Field)
	if err != nil {
		return boundAtom{}, err
	}
	b := boundAtom{atom: a, left: left}
	if a.Operator.IsUnary() {
		return b, nil
	}

	switch a.ValueType {
	case rules.ValueField:
		raw, ok := a.Value.(string)
		if !ok {
			return boundAtom{}, fmt.Errorf("field operand %v is not a path", a.Value)
		}
		if b.right, err = res.parse(raw); err != nil {
			return boundAtom{}, err
		}
	case rules.ValueStatic, "":
		if a.Value == nil {
			return boundAtom{}, fmt.Errorf("%s requires a value", a.Operator)
		}
	default:
		return boundAtom{}, fmt.Errorf("unknown value type %q", a.ValueType)
	}
	return b, nil
}

func (m *Matcher) matchAtom(b boundAtom, res *Resolver) (MatchResult, string) {
	left := res.lookup(b.left)

	// Absent is indeterminate for every operator, emptiness included.
	if left.state != lookupFound {
		return Indeterminate, left.note
	}
	if b.atom.Operator.IsUnary() {
		matched, _ := evaluateOperator(b.atom.Operator, left.value.TypedValue, nil)
		return boolResult(matched), ""
	}

	expected := b.atom.Value
	if b.atom.ValueType == rules.ValueField {
		right := res.lookup(b.right)
		if right.state != lookupFound {
			return Indeterminate, right.note
		}
		expected = right.value.TypedValue
	}

	matched, err := evaluateOperator(b.atom.Operator, left.value.TypedValue, expected)
	if err != nil {
		// TypeMismatch lands here; it is undecidable, not a failure.
		m.logger.Debug("atom undecidable",
			"atom", b.atom.String(),
			"error", err,
		)
		return Indeterminate, err.Error()
	}

	m.logger.Debug("atom evaluated",
		"atom", b.atom.String(),
		"actual", left.value.TypedValue,
		"expected", expected,
		"matched", matched,
	)
	return boolResult(matched), ""
}

func boolResult(b bool) MatchResult {
	if b {
		return True
	}
	return False
}
