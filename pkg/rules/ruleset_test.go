package rules

import (
	"errors"
	"reflect"
	"testing"
)

func atom(field string, op Operator, value any) Atom {
	return Atom{Field: field, Operator: op, ValueType: ValueStatic, Value: value}
}

func fieldAtom(field string, op Operator, other string) Atom {
	return Atom{Field: field, Operator: op, ValueType: ValueField, Value: other}
}

func catalog(t *testing.T) *RuleSet {
	t.Helper()
	rs, err := NewRuleSet(
		&Rule{
			Code: "PRIME_CONSISTENCY", Type: TypeCrossDocument, Severity: SeverityError, IsActive: true,
			AppliesTo: Scope{DocumentTypes: []string{"DEVIS", "FACTURE"}, ProcessTypes: []string{"proc-1"}},
			Condition: Structured(fieldAtom("devis.prime_cee", OpEquals, "facture.prime_cee")),
		},
		&Rule{
			Code: "RGE_VALID", Type: TypeGlobal, Severity: SeverityError, IsActive: true, AutoReject: true,
			Condition: Structured(atom("devis.rge_valid", OpEquals, true)),
		},
		&Rule{
			Code: "SIGNATURE_PRESENT", Type: TypeDocument, Severity: SeverityError, IsActive: true,
			AppliesTo: Scope{DocumentTypes: []string{"CDC"}},
			Condition: Structured(Atom{Field: "cdc.signature", Operator: OpIsNotEmpty}),
		},
		&Rule{
			Code: "DISABLED", Type: TypeDocument, Severity: SeverityWarning, IsActive: false,
			AppliesTo: Scope{DocumentTypes: []string{"DEVIS"}},
			Condition: Structured(atom("devis.surface", OpGreaterThan, 0)),
		},
	)
	if err != nil {
		t.Fatalf("NewRuleSet() error = %v", err)
	}
	return rs
}

func codes(rules []*Rule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Code)
	}
	return out
}

func TestRuleSet_ApplicableRules(t *testing.T) {
	rs := catalog(t)

	tests := []struct {
		name      string
		processID string
		docs      []string
		want      []string
	}{
		{
			name:      "matching process and documents",
			processID: "proc-1",
			docs:      []string{"devis", "facture"},
			want:      []string{"PRIME_CONSISTENCY", "RGE_VALID"},
		},
		{
			name:      "other process keeps unrestricted rules",
			processID: "proc-2",
			docs:      []string{"devis", "cdc"},
			want:      []string{"RGE_VALID", "SIGNATURE_PRESENT"},
		},
		{
			name:      "upper case codes",
			processID: "proc-1",
			docs:      []string{"CDC"},
			want:      []string{"RGE_VALID", "SIGNATURE_PRESENT"},
		},
		{
			name:      "no documents keeps global rules only",
			processID: "proc-1",
			docs:      nil,
			want:      []string{"RGE_VALID"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := codes(rs.ApplicableRules(tt.processID, tt.docs))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ApplicableRules() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRuleSet_ApplicableRulesForSeveralProcesses(t *testing.T) {
	rs := catalog(t)
	got := codes(rs.ApplicableRulesFor([]string{"proc-9", "proc-1"}, []string{"devis"}))
	want := []string{"PRIME_CONSISTENCY", "RGE_VALID"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ApplicableRulesFor() = %v, want %v", got, want)
	}
}

func TestRule_MissingDocumentTypes(t *testing.T) {
	r := &Rule{
		Code: "DATE_COHERENCE", Type: TypeCrossDocument, Severity: SeverityError, IsActive: true,
		AppliesTo: Scope{DocumentTypes: []string{"devis"}},
		Condition: Structured(fieldAtom("devis.date_devis", OpLessThan, "cdc.date_signature")),
	}

	if got := r.ReferencedDocumentTypes(); !reflect.DeepEqual(got, []string{"cdc", "devis"}) {
		t.Errorf("ReferencedDocumentTypes() = %v, want [cdc devis]", got)
	}
	if got := r.MissingDocumentTypes([]string{"DEVIS"}); !reflect.DeepEqual(got, []string{"cdc"}) {
		t.Errorf("MissingDocumentTypes() = %v, want [cdc]", got)
	}
	if got := r.MissingDocumentTypes([]string{"devis", "cdc"}); len(got) != 0 {
		t.Errorf("MissingDocumentTypes() = %v, want none", got)
	}

	doc := &Rule{Type: TypeDocument, Condition: Structured(atom("cdc.x", OpEquals, 1))}
	if got := doc.MissingDocumentTypes(nil); len(got) != 0 {
		t.Errorf("document rule MissingDocumentTypes() = %v, want none", got)
	}
}

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{name: "missing code", rule: Rule{Type: TypeDocument, Severity: SeverityError, Condition: Structured(atom("a.b", OpEquals, 1))}},
		{name: "bad type", rule: Rule{Code: "X", Type: "batch", Severity: SeverityError, Condition: Structured(atom("a.b", OpEquals, 1))}},
		{name: "bad severity", rule: Rule{Code: "X", Type: TypeDocument, Severity: "fatal", Condition: Structured(atom("a.b", OpEquals, 1))}},
		{name: "empty condition", rule: Rule{Code: "X", Type: TypeDocument, Severity: SeverityError}},
		{name: "scoped global", rule: Rule{Code: "X", Type: TypeGlobal, Severity: SeverityError, AppliesTo: Scope{DocumentTypes: []string{"devis"}}, Condition: Structured(atom("a.b", OpEquals, 1))}},
		{name: "unknown operator", rule: Rule{Code: "X", Type: TypeDocument, Severity: SeverityError, Condition: Structured(atom("a.b", "matches", 1))}},
		{name: "binary without value", rule: Rule{Code: "X", Type: TypeDocument, Severity: SeverityError, Condition: Structured(atom("a.b", OpEquals, nil))}},
		{name: "field operand not a path", rule: Rule{Code: "X", Type: TypeDocument, Severity: SeverityError, Condition: Structured(Atom{Field: "a.b", Operator: OpEquals, ValueType: ValueField, Value: 3})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.rule.Validate(); !errors.Is(err, ErrInvalidRule) {
				t.Errorf("Validate() error = %v, want ErrInvalidRule", err)
			}
		})
	}
}

func TestCondition_Kind(t *testing.T) {
	if k := Structured(atom("a.b", OpEquals, 1)).Kind(); k != ConditionStructured {
		t.Errorf("Structured().Kind() = %v", k)
	}
	if k := Expression(" devis.x > 1 ").Kind(); k != ConditionExpression {
		t.Errorf("Expression().Kind() = %v", k)
	}
	if k := (Condition{}).Kind(); k != ConditionNone {
		t.Errorf("zero Kind() = %v", k)
	}
}

func TestNewRuleSet_DuplicateCode(t *testing.T) {
	r := func() *Rule {
		return &Rule{Code: "A", Type: TypeGlobal, Severity: SeverityInfo, IsActive: true, Condition: Structured(atom("a.b", OpEquals, 1))}
	}
	if _, err := NewRuleSet(r(), r()); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("NewRuleSet() error = %v, want ErrInvalidRule", err)
	}
}

func TestNewRuleSet_LeavesInputUntouched(t *testing.T) {
	in := &Rule{
		Code: "A", Type: TypeDocument, Severity: SeverityError, IsActive: true,
		AppliesTo: Scope{DocumentTypes: []string{"DEVIS"}},
		Condition: Structured(atom("devis.prime_cee", OpIsNotEmpty, nil)),
	}
	rs, err := NewRuleSet(in)
	if err != nil {
		t.Fatalf("NewRuleSet() error = %v", err)
	}
	if in.ID != "" || in.AppliesTo.DocumentTypes[0] != "DEVIS" {
		t.Errorf("input rule = ID %q types %v, want unchanged", in.ID, in.AppliesTo.DocumentTypes)
	}
	got, ok := rs.Get("A")
	if !ok {
		t.Fatal("Get(A) not found")
	}
	if got.ID != "A" || got.AppliesTo.DocumentTypes[0] != "devis" {
		t.Errorf("stored rule = ID %q types %v, want A [devis]", got.ID, got.AppliesTo.DocumentTypes)
	}
}

type counts map[string]int

func (c counts) CountDocumentType(code string) int { return c[code] }

func TestProcess_MissingDocuments(t *testing.T) {
	p := &Process{ID: "proc-1", RequiredDocuments: []DocumentRequirement{
		{DocumentType: "DEVIS", Required: true, MinCount: 1, MaxCount: 1},
		{DocumentType: "PHOTO", Required: true, MinCount: 2},
		{DocumentType: "AH", Required: false},
	}}

	got := p.MissingDocuments(counts{"devis": 2, "photo": 1})
	if len(got) != 2 {
		t.Fatalf("MissingDocuments() = %v, want 2 problems", got)
	}
	if thr, ok := p.Threshold(); ok {
		t.Errorf("Threshold() = %v, want unset", thr)
	}
}
