package evaluation

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when an operator cannot compare its operands.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrMalformedCondition is returned for conditions that cannot be
	// evaluated at all, such as unknown operators or unresolvable paths.
	ErrMalformedCondition = errors.New("malformed condition")

	// ErrInvalidConfig is returned when the engine configuration is invalid.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)

// TypeMismatchError reports operands an operator cannot compare.
type TypeMismatchError struct {
	Operator string
	Operand  string
	Value    any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s operand %v (%T) is not numeric", e.Operator, e.Operand, e.Value, e.Value)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// ConditionError reports a malformed condition in a rule.
type ConditionError struct {
	RuleCode string
	Atom     string
	Err      error
}

func (e *ConditionError) Error() string {
	if e.Atom != "" {
		return fmt.Sprintf("rule %s: atom %q: %v", e.RuleCode, e.Atom, e.Err)
	}
	return fmt.Sprintf("rule %s: %v", e.RuleCode, e.Err)
}

// Unwrap exposes both the malformed-condition sentinel and the cause, so
// callers can test for schema.ErrInvalidFieldPath as well.
func (e *ConditionError) Unwrap() []error {
	return []error{ErrMalformedCondition, e.Err}
}
