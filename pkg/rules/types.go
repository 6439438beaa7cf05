package rules

import (
	"fmt"
	"strings"
)

// RuleType is the scope class of a rule.
type RuleType string

const (
	TypeDocument      RuleType = "document"
	TypeCrossDocument RuleType = "cross_document"
	TypeGlobal        RuleType = "global"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	return t == TypeDocument || t == TypeCrossDocument || t == TypeGlobal
}

// Severity is the verdict a failing rule produces.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityError || s == SeverityWarning || s == SeverityInfo
}

// Operator compares a field to a value.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
	OpContains       Operator = "contains"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpIsEmpty        Operator = "is_empty"
	OpIsNotEmpty     Operator = "is_not_empty"
)

// Operators lists every supported operator.
var Operators = []Operator{
	OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual,
	OpContains, OpStartsWith, OpEndsWith, OpIsEmpty, OpIsNotEmpty,
}

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	for _, o := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// IsUnary reports whether op takes no right-hand operand.
func (op Operator) IsUnary() bool {
	return op == OpIsEmpty || op == OpIsNotEmpty
}

// IsOrdering reports whether op requires numeric operands.
func (op Operator) IsOrdering() bool {
	switch op {
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		return true
	}
	return false
}

// ValueType says how the right-hand operand of an atom is interpreted.
type ValueType string

const (
	ValueStatic ValueType = "static"
	ValueField  ValueType = "field"
)

// Atom is one comparison within a condition.
type Atom struct {
	// Field is the left-hand field path, "<doccode>.<fieldname>".
	Field     string
	Operator  Operator
	ValueType ValueType
	// Value is a literal for static atoms and a field path for field atoms.
	Value any

	Location Location
}

// String renders the atom for diagnostics.
func (a Atom) String() string {
	if a.Operator.IsUnary() {
		return fmt.Sprintf("%s %s", a.Field, a.Operator)
	}
	if a.ValueType == ValueField {
		return fmt.Sprintf("%s %s field(%v)", a.Field, a.Operator, a.Value)
	}
	return fmt.Sprintf("%s %s %v", a.Field, a.Operator, a.Value)
}

// ConditionKind distinguishes the two condition representations.
type ConditionKind int

const (
	ConditionNone ConditionKind = iota
	ConditionStructured
	ConditionExpression
)

func (k ConditionKind) String() string {
	switch k {
	case ConditionStructured:
		return "structured"
	case ConditionExpression:
		return "expression"
	default:
		return "none"
	}
}

// Condition is either a conjunction of atoms or a raw expression, never both.
// The zero value is an empty condition and is rejected by Rule.Validate.
type Condition struct {
	atoms      []Atom
	expression string
}

// Structured returns a condition that holds when every atom holds.
func Structured(atoms ...Atom) Condition {
	c := Condition{atoms: make([]Atom, len(atoms))}
	copy(c.atoms, atoms)
	return c
}

// Expression returns a condition evaluated by the expression interpreter.
func Expression(expr string) Condition {
	return Condition{expression: strings.TrimSpace(expr)}
}

// Kind returns which representation the condition uses.
func (c Condition) Kind() ConditionKind {
	switch {
	case c.expression != "":
		return ConditionExpression
	case len(c.atoms) > 0:
		return ConditionStructured
	default:
		return ConditionNone
	}
}

// Atoms returns a copy of the atoms of a structured condition.
func (c Condition) Atoms() []Atom {
	out := make([]Atom, len(c.atoms))
	copy(out, c.atoms)
	return out
}

// Expr returns the raw expression of an expression condition.
func (c Condition) Expr() string {
	return c.expression
}

// String renders the condition for diagnostics.
func (c Condition) String() string {
	switch c.Kind() {
	case ConditionExpression:
		return c.expression
	case ConditionStructured:
		parts := make([]string, len(c.atoms))
		for i, a := range c.atoms {
			parts[i] = a.String()
		}
		return strings.Join(parts, " AND ")
	}
	return ""
}

// Scope limits where a rule applies. Empty lists mean "all".
type Scope struct {
	DocumentTypes []string
	ProcessTypes  []string
}

// Location is a position in a catalog source file.
type Location struct {
	File   string
	Line   int
	Column int
}

// IsValid reports whether the location points somewhere.
func (l Location) IsValid() bool {
	return l.Line > 0
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}
