package rules

import (
	"errors"
	"fmt"
	"sort"

	"ceeval-hq/verdict/pkg/schema"
)

// ErrInvalidRule is returned for rules that fail structural validation.
var ErrInvalidRule = errors.New("invalid rule")

// RuleError reports a structural problem with one rule.
type RuleError struct {
	Code    string
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q: %s", e.Code, e.Message)
}

func (e *RuleError) Unwrap() error {
	return ErrInvalidRule
}

// Rule is one validation rule.
type Rule struct {
	ID           string
	Code         string
	Name         string
	Description  string
	Type         RuleType
	Severity     Severity
	AutoReject   bool
	IsActive     bool
	CanOverride  bool
	Condition    Condition
	AppliesTo    Scope
	ErrorMessage string

	Location Location
}

// Validate checks the rule's structure. Field paths are not resolved here;
// see the validator package for checks against a schema registry.
func (r *Rule) Validate() error {
	if r.Code == "" {
		return &RuleError{Code: r.ID, Message: "code is required"}
	}
	if !r.Type.Valid() {
		return &RuleError{Code: r.Code, Message: fmt.Sprintf("unknown rule type %q", r.Type)}
	}
	if !r.Severity.Valid() {
		return &RuleError{Code: r.Code, Message: fmt.Sprintf("unknown severity %q", r.Severity)}
	}
	if r.Type == TypeGlobal && len(r.AppliesTo.DocumentTypes) > 0 {
		return &RuleError{Code: r.Code, Message: "global rules cannot be scoped to document types"}
	}

	switch r.Condition.Kind() {
	case ConditionNone:
		return &RuleError{Code: r.Code, Message: "condition is required"}
	case ConditionStructured:
		for i, a := range r.Condition.atoms {
			if a.Field == "" {
				return &RuleError{Code: r.Code, Message: fmt.Sprintf("atom %d: field is required", i)}
			}
			if !a.Operator.Valid() {
				return &RuleError{Code: r.Code, Message: fmt.Sprintf("atom %d: unknown operator %q", i, a.Operator)}
			}
			if a.Operator.IsUnary() {
				continue
			}
			switch a.ValueType {
			case ValueStatic:
				if a.Value == nil {
					return &RuleError{Code: r.Code, Message: fmt.Sprintf("atom %d: %s requires a value", i, a.Operator)}
				}
			case ValueField:
				if s, ok := a.Value.(string); !ok || s == "" {
					return &RuleError{Code: r.Code, Message: fmt.Sprintf("atom %d: field operand must be a field path", i)}
				}
			default:
				return &RuleError{Code: r.Code, Message: fmt.Sprintf("atom %d: unknown value type %q", i, a.ValueType)}
			}
		}
	}
	return nil
}

// ReferencedDocumentTypes returns the lower-cased document type codes the
// rule depends on: its scope plus every document named by an atom path.
// Expression conditions contribute only their scope.
func (r *Rule) ReferencedDocumentTypes() []string {
	set := make(map[string]struct{})
	for _, code := range r.AppliesTo.DocumentTypes {
		set[schema.NormalizeCode(code)] = struct{}{}
	}
	for _, a := range r.Condition.atoms {
		if p, err := schema.ParseFieldPath(a.Field); err == nil {
			set[p.DocumentType] = struct{}{}
		}
		if a.ValueType == ValueField {
			if s, ok := a.Value.(string); ok {
				if p, err := schema.ParseFieldPath(s); err == nil {
					set[p.DocumentType] = struct{}{}
				}
			}
		}
	}

	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// FieldPaths returns every field path named by the rule's atoms, in order,
// without duplicates. Unparseable paths are returned verbatim.
func (r *Rule) FieldPaths() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if p, err := schema.ParseFieldPath(s); err == nil {
			s = p.String()
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, a := range r.Condition.atoms {
		add(a.Field)
		if a.ValueType == ValueField {
			if s, ok := a.Value.(string); ok {
				add(s)
			}
		}
	}
	return out
}

// MissingDocumentTypes returns the referenced document types that are not in
// present. Only cross-document rules can miss documents.
func (r *Rule) MissingDocumentTypes(present []string) []string {
	if r.Type != TypeCrossDocument {
		return nil
	}
	have := make(map[string]bool, len(present))
	for _, code := range present {
		have[schema.NormalizeCode(code)] = true
	}
	var missing []string
	for _, code := range r.ReferencedDocumentTypes() {
		if !have[code] {
			missing = append(missing, code)
		}
	}
	return missing
}

// appliesTo reports whether the rule is in scope for any of processIDs and
// the present document types.
func (r *Rule) appliesTo(processIDs []string, present map[string]bool) bool {
	if !r.IsActive {
		return false
	}
	if len(r.AppliesTo.ProcessTypes) > 0 {
		matched := false
		for _, want := range r.AppliesTo.ProcessTypes {
			for _, id := range processIDs {
				if want == id {
					matched = true
				}
			}
		}
		if !matched {
			return false
		}
	}
	if len(r.AppliesTo.DocumentTypes) == 0 {
		return true
	}
	for _, code := range r.AppliesTo.DocumentTypes {
		if present[schema.NormalizeCode(code)] {
			return true
		}
	}
	return false
}
