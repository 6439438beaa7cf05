package evaluation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ceeval-hq/verdict/pkg/rules"
	"ceeval-hq/verdict/pkg/schema"
)

// evaluateOperator compares actual with expected. Operators are applied on
// runtime values; the declared field type is not consulted.
func evaluateOperator(op rules.Operator, actual, expected any) (bool, error) {
	switch op {
	case rules.OpEquals:
		return evaluateEqual(actual, expected), nil

	case rules.OpNotEquals:
		return !evaluateEqual(actual, expected), nil

	case rules.OpGreaterThan:
		return compareNumeric(op, actual, expected, func(a, b float64) bool { return a > b })

	case rules.OpLessThan:
		return compareNumeric(op, actual, expected, func(a, b float64) bool { return a < b })

	case rules.OpGreaterOrEqual:
		return compareNumeric(op, actual, expected, func(a, b float64) bool { return a >= b })

	case rules.OpLessOrEqual:
		return compareNumeric(op, actual, expected, func(a, b float64) bool { return a <= b })

	case rules.OpContains:
		return strings.Contains(toString(actual), toString(expected)), nil

	case rules.OpStartsWith:
		return strings.HasPrefix(toString(actual), toString(expected)), nil

	case rules.OpEndsWith:
		return strings.HasSuffix(toString(actual), toString(expected)), nil

	case rules.OpIsEmpty:
		return isEmpty(actual), nil

	case rules.OpIsNotEmpty:
		return !isEmpty(actual), nil

	default:
		return false, fmt.Errorf("unknown operator: %q", op)
	}
}

// evaluateEqual compares after normalization: numeric strings become
// numbers and strings are trimmed. Comparison stays case-sensitive.
func evaluateEqual(actual, expected any) bool {
	a, b := normalize(actual), normalize(expected)
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	an, aNum := a.(float64)
	bn, bNum := b.(float64)
	if aNum && bNum {
		return an == bn
	}

	at, aTime := a.(time.Time)
	bt, bTime := b.(time.Time)
	if aTime && bTime {
		return at.Equal(bt)
	}

	return toString(a) == toString(b)
}

func compareNumeric(op rules.Operator, actual, expected any, cmp func(a, b float64) bool) (bool, error) {
	a, ok := toNumber(actual)
	if !ok {
		return false, &TypeMismatchError{Operator: string(op), Operand: "left", Value: actual}
	}
	b, ok := toNumber(expected)
	if !ok {
		return false, &TypeMismatchError{Operator: string(op), Operand: "right", Value: expected}
	}
	return cmp(a, b), nil
}

// normalize maps a value onto float64, bool, time.Time, trimmed string or nil.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	if n, ok := toNumber(v); ok {
		return n
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case bool, time.Time:
		return x
	}
	return toString(v)
}

// toNumber converts finite numbers and numeric strings to float64. Strings
// such as "inf" or "NaN" stay text.
func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, isFinite(x)
	case float32:
		return float64(x), isFinite(float64(x))
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		if n, err := schema.ParseNumber(x); err == nil {
			return n, true
		}
	}
	return 0, false
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// toString renders the canonical string form of a value.
func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		if n, ok := toNumber(v); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return fmt.Sprint(v)
	}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
