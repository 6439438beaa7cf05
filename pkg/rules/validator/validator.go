// Package validator checks a parsed rule catalog against its document type
// registry before the catalog is put into service.
//
// Validation runs in passes. The reference pass resolves every field path a
// rule names; the operand pass checks operators against field types; the
// expression pass compiles raw expressions. Reference errors suppress the
// later passes for the affected rule to avoid cascades.
package validator

import (
	"fmt"

	"ceeval-hq/verdict/pkg/rules"
	rerrors "ceeval-hq/verdict/pkg/rules/errors"
	"ceeval-hq/verdict/pkg/schema"
)

// ExpressionChecker compiles a raw expression against a registry.
type ExpressionChecker interface {
	Check(expr string, registry *schema.Registry) error
}

// Validator checks rules and processes against a registry.
type Validator struct {
	expressions ExpressionChecker
}

// New returns a validator. checker may be nil, in which case expression
// rules are accepted without compilation.
func New(checker ExpressionChecker) *Validator {
	return &Validator{expressions: checker}
}

// Validate returns every diagnostic found. Callers should reject the catalog
// when list.HasErrors() is true; warnings are informational.
func (v *Validator) Validate(registry *schema.Registry, ruleList []*rules.Rule, processes []*rules.Process) *rerrors.List {
	list := rerrors.NewList()

	known := make(map[string]bool, len(processes))
	for _, p := range processes {
		if known[p.ID] {
			list.Add(rerrors.Semantic, fmt.Sprintf("duplicate process id %q", p.ID), p.Location)
		}
		known[p.ID] = true
		for _, req := range p.RequiredDocuments {
			if !registry.Has(req.DocumentType) {
				list.Add(rerrors.Semantic, fmt.Sprintf("process %s requires unknown document type %q", p.ID, req.DocumentType), p.Location).
					WithSuggestion(rerrors.SuggestName(req.DocumentType, registry.Codes()))
			}
		}
	}

	codes := make(map[string]bool, len(ruleList))
	for _, r := range ruleList {
		if codes[r.Code] {
			list.Add(rerrors.Semantic, fmt.Sprintf("duplicate rule code %q", r.Code), r.Location)
		}
		codes[r.Code] = true
		v.validateRule(list, registry, r, known)
	}
	return list
}

func (v *Validator) validateRule(list *rerrors.List, registry *schema.Registry, r *rules.Rule, processes map[string]bool) {
	for _, code := range r.AppliesTo.DocumentTypes {
		if !registry.Has(code) {
			list.Add(rerrors.Semantic, fmt.Sprintf("rule %s applies to unknown document type %q", r.Code, code), r.Location).
				WithSuggestion(rerrors.SuggestName(code, registry.Codes()))
		}
	}
	for _, id := range r.AppliesTo.ProcessTypes {
		if len(processes) > 0 && !processes[id] {
			list.Warn(rerrors.Semantic, fmt.Sprintf("rule %s references undeclared process %q", r.Code, id), r.Location)
		}
	}

	switch r.Condition.Kind() {
	case rules.ConditionStructured:
		v.validateAtoms(list, registry, r)
	case rules.ConditionExpression:
		if v.expressions == nil {
			return
		}
		if err := v.expressions.Check(r.Condition.Expr(), registry); err != nil {
			list.Add(rerrors.Semantic, fmt.Sprintf("rule %s: expression does not compile: %v", r.Code, err), r.Location)
		}
	}
}

func (v *Validator) validateAtoms(list *rerrors.List, registry *schema.Registry, r *rules.Rule) {
	scope := make(map[string]bool, len(r.AppliesTo.DocumentTypes))
	for _, code := range r.AppliesTo.DocumentTypes {
		scope[schema.NormalizeCode(code)] = true
	}

	for _, a := range r.Condition.Atoms() {
		loc := a.Location
		if !loc.IsValid() {
			loc = r.Location
		}

		left, ok := v.resolve(list, registry, r.Code, a.Field, loc)
		if !ok {
			continue
		}

		var right *schema.FieldSchema
		if a.ValueType == rules.ValueField {
			path, _ := a.Value.(string)
			if right, ok = v.resolve(list, registry, r.Code, path, loc); !ok {
				continue
			}
		}

		v.checkOperands(list, r.Code, a, left, right, loc)

		if r.Type == rules.TypeDocument && len(scope) > 0 {
			for _, path := range []string{a.Field, fieldOperand(a)} {
				if p, err := schema.ParseFieldPath(path); err == nil && !scope[p.DocumentType] {
					list.Warn(rerrors.Semantic,
						fmt.Sprintf("rule %s is a document rule but reads %s outside its scope; consider cross_document", r.Code, p),
						loc)
				}
			}
		}
	}
}

func (v *Validator) resolve(list *rerrors.List, registry *schema.Registry, code, path string, loc rules.Location) (*schema.FieldSchema, bool) {
	f, err := registry.ResolveField(path)
	if err != nil {
		list.Add(rerrors.Semantic, fmt.Sprintf("rule %s: %v", code, err), loc).
			WithSuggestion(rerrors.SuggestName(path, registry.FieldPaths()))
		return nil, false
	}
	return f, true
}

// checkOperands flags atoms whose operator cannot succeed given the declared
// field types. These are warnings: evaluation still coerces at runtime.
func (v *Validator) checkOperands(list *rerrors.List, code string, a rules.Atom, left, right *schema.FieldSchema, loc rules.Location) {
	if !a.Operator.IsOrdering() {
		return
	}
	if !left.DataType.IsNumeric() {
		list.Warn(rerrors.Semantic,
			fmt.Sprintf("rule %s: %s compares %s field %s; non-numeric values are indeterminate", code, a.Operator, left.DataType, a.Field),
			loc)
	}
	if right != nil && !right.DataType.IsNumeric() {
		list.Warn(rerrors.Semantic,
			fmt.Sprintf("rule %s: %s compares against %s field %v", code, a.Operator, right.DataType, a.Value),
			loc)
	}
	if right == nil {
		if _, ok := a.Value.(string); ok {
			if _, err := schema.ParseNumber(a.Value.(string)); err != nil {
				list.Add(rerrors.Semantic, fmt.Sprintf("rule %s: %s needs a numeric value, got %q", code, a.Operator, a.Value), loc)
			}
		} else if _, ok := a.Value.(bool); ok {
			list.Add(rerrors.Semantic, fmt.Sprintf("rule %s: %s needs a numeric value, got %v", code, a.Operator, a.Value), loc)
		}
	}
}

func fieldOperand(a rules.Atom) string {
	if a.ValueType != rules.ValueField {
		return ""
	}
	s, _ := a.Value.(string)
	return s
}
