package rules

import (
	"crypto/sha256"
	"fmt"

	"ceeval-hq/verdict/pkg/schema"
)

// RuleSet is an immutable, ordered collection of rules with unique codes.
type RuleSet struct {
	rules  []*Rule
	byCode map[string]*Rule
}

// NewRuleSet validates rules and builds a set preserving their order.
func NewRuleSet(rules ...*Rule) (*RuleSet, error) {
	rs := &RuleSet{
		rules:  make([]*Rule, 0, len(rules)),
		byCode: make(map[string]*Rule, len(rules)),
	}
	for _, r := range rules {
		if r == nil {
			continue
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := rs.byCode[r.Code]; dup {
			return nil, &RuleError{Code: r.Code, Message: "duplicate rule code"}
		}
		// Normalize a copy; the caller's rule is left as given.
		cp := *r
		r = &cp
		if r.ID == "" {
			r.ID = r.Code
		}
		types := make([]string, len(r.AppliesTo.DocumentTypes))
		for i, code := range r.AppliesTo.DocumentTypes {
			types[i] = schema.NormalizeCode(code)
		}
		r.AppliesTo.DocumentTypes = types
		rs.rules = append(rs.rules, r)
		rs.byCode[r.Code] = r
	}
	return rs, nil
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// All returns every rule in catalog order.
func (rs *RuleSet) All() []*Rule {
	out := make([]*Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Get returns the rule with the given code.
func (rs *RuleSet) Get(code string) (*Rule, bool) {
	r, ok := rs.byCode[code]
	return r, ok
}

// ApplicableRules returns the active rules that apply to a dossier of the
// given process carrying the given document types. A rule with no process
// restriction applies to every process; a rule with no document types is
// global and always in scope.
func (rs *RuleSet) ApplicableRules(processID string, documentTypes []string) []*Rule {
	return rs.ApplicableRulesFor([]string{processID}, documentTypes)
}

// ApplicableRulesFor is ApplicableRules for a dossier attached to several
// processes. A rule applies if any of the processes matches.
func (rs *RuleSet) ApplicableRulesFor(processIDs []string, documentTypes []string) []*Rule {
	present := make(map[string]bool, len(documentTypes))
	for _, code := range documentTypes {
		present[schema.NormalizeCode(code)] = true
	}

	var out []*Rule
	for _, r := range rs.rules {
		if r.appliesTo(processIDs, present) {
			out = append(out, r)
		}
	}
	return out
}

// Version returns a short content hash of the rule codes and conditions.
func (rs *RuleSet) Version() string {
	h := sha256.New()
	for _, r := range rs.rules {
		fmt.Fprintf(h, "%s|%s|%s|%s|%t|%t|%v\n",
			r.Code, r.Type, r.Severity, r.Condition.String(), r.AutoReject, r.IsActive, r.AppliesTo)
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}
