package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ceeval-hq/verdict/pkg/rules"
	rerrors "ceeval-hq/verdict/pkg/rules/errors"
	"ceeval-hq/verdict/pkg/schema"
)

const sampleCatalog = `
document_types:
  - code: DEVIS
    name: Devis
    category: commercial
    system: true
    fields:
      - internal_name: prime_cee
        data_type: currency
        required: true
        confidence_threshold: 90
      - internal_name: client_name
        data_type: string
        max_length: 120
processes:
  - id: proc-1
    code: BAR-TH-171
    auto_approval_threshold: 92
    required_documents:
      - {document_type: DEVIS, required: true, min_count: 1, max_count: 1}
rules:
  - code: PRIME_CONSISTENCY
    type: cross_document
    severity: error
    applies_to:
      document_types: [DEVIS, FACTURE]
      process_types: [proc-1]
    condition:
      - field: devis.prime_cee
        operator: equals
        value_type: field
        value: facture.prime_cee
    error_message: "Prime {devis.prime_cee} differs from {facture.prime_cee}"
  - code: PRIME_POSITIVE
    applies_to:
      document_types: [DEVIS]
    condition:
      all:
        - {field: devis.prime_cee, operator: greater_than, value: 0}
        - {field: devis.client_name, operator: is_not_empty}
  - code: RGE_VALID
    severity: error
    auto_reject: true
    expression: "devis.prime_cee > 0.0"
`

func TestParser_ParseBytes(t *testing.T) {
	cat, err := NewParser().ParseBytes([]byte(sampleCatalog), "sample.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}

	if len(cat.DocumentTypes) != 1 {
		t.Fatalf("DocumentTypes = %d, want 1", len(cat.DocumentTypes))
	}
	devis := cat.DocumentTypes[0]
	if devis.Category != schema.CategoryCommercial || !devis.IsSystem || !devis.IsActive {
		t.Errorf("DEVIS = %+v, want active system commercial type", devis)
	}
	if devis.Fields[1].DataType != schema.DataTypeText {
		t.Errorf("client_name data type = %q, want text", devis.Fields[1].DataType)
	}

	if len(cat.Processes) != 1 {
		t.Fatalf("Processes = %+v, want one", cat.Processes)
	}
	if thr, ok := cat.Processes[0].Threshold(); !ok || thr != 92 {
		t.Errorf("Processes = %+v, want one with threshold 92", cat.Processes)
	}
	if got := cat.Processes[0].RequiredDocuments[0].DocumentType; got != "devis" {
		t.Errorf("required document type = %q, want devis", got)
	}

	if len(cat.Rules) != 3 {
		t.Fatalf("Rules = %d, want 3", len(cat.Rules))
	}

	prime := cat.Rules[0]
	if prime.Type != rules.TypeCrossDocument || prime.Condition.Kind() != rules.ConditionStructured {
		t.Errorf("PRIME_CONSISTENCY = %+v", prime)
	}
	atoms := prime.Condition.Atoms()
	if atoms[0].ValueType != rules.ValueField || atoms[0].Value != "facture.prime_cee" {
		t.Errorf("atom = %+v, want field operand facture.prime_cee", atoms[0])
	}
	if !atoms[0].Location.IsValid() {
		t.Error("atom location not captured")
	}

	positive := cat.Rules[1]
	if positive.Type != rules.TypeDocument || positive.Severity != rules.SeverityError {
		t.Errorf("PRIME_POSITIVE type/severity = %s/%s, want document/error", positive.Type, positive.Severity)
	}
	if len(positive.Condition.Atoms()) != 2 {
		t.Errorf("PRIME_POSITIVE atoms = %d, want 2", len(positive.Condition.Atoms()))
	}

	rge := cat.Rules[2]
	if rge.Type != rules.TypeGlobal || rge.Condition.Kind() != rules.ConditionExpression || !rge.AutoReject {
		t.Errorf("RGE_VALID = %+v, want global auto-reject expression rule", rge)
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantKind    rerrors.Kind
		wantMessage string
	}{
		{
			name:        "syntax",
			yaml:        "rules: [\n  - code: A",
			wantKind:    rerrors.Syntax,
			wantMessage: "YAML parsing failed",
		},
		{
			name: "both condition and expression",
			yaml: `
rules:
  - code: A
    expression: "true"
    condition:
      - {field: devis.x, operator: is_empty}
`,
			wantKind:    rerrors.Structural,
			wantMessage: "mutually exclusive",
		},
		{
			name: "unknown operator with suggestion",
			yaml: `
rules:
  - code: A
    condition:
      - {field: devis.x, operator: equal, value: 1}
`,
			wantKind:    rerrors.Structural,
			wantMessage: "did you mean 'equals'?",
		},
		{
			name: "no condition",
			yaml: `
rules:
  - code: A
    severity: warning
`,
			wantKind:    rerrors.Structural,
			wantMessage: "neither 'condition' nor 'expression'",
		},
		{
			name: "bad severity",
			yaml: `
rules:
  - code: A
    severity: fatal
    condition: [{field: devis.x, operator: is_empty}]
`,
			wantKind:    rerrors.Structural,
			wantMessage: "unknown severity",
		},
		{
			name: "or condition rejected",
			yaml: `
rules:
  - code: A
    condition:
      any:
        - {field: devis.x, operator: is_empty}
`,
			wantKind:    rerrors.Structural,
			wantMessage: "unsupported condition key",
		},
		{
			name: "binary operator without value",
			yaml: `
rules:
  - code: A
    condition: [{field: devis.x, operator: equals}]
`,
			wantKind:    rerrors.Structural,
			wantMessage: "requires a value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().ParseBytes([]byte(tt.yaml), "t.yaml")
			list, ok := err.(*rerrors.List)
			if !ok {
				t.Fatalf("ParseBytes() error = %v (%T), want *errors.List", err, err)
			}
			if !list.HasKind(tt.wantKind) {
				t.Errorf("error kinds = %v, want %s", list.Error(), tt.wantKind)
			}
			if !strings.Contains(list.Error(), tt.wantMessage) {
				t.Errorf("Error() = %q, want it to contain %q", list.Error(), tt.wantMessage)
			}
		})
	}
}

func TestParser_UnknownKeyIsWarning(t *testing.T) {
	yaml := `
rules:
  - code: A
    severty: warning
    condition: [{field: devis.x, operator: is_empty}]
`
	cat, err := NewParser().ParseBytes([]byte(yaml), "t.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v, want nil for unknown keys", err)
	}
	if len(cat.Rules) != 1 {
		t.Errorf("Rules = %d, want 1", len(cat.Rules))
	}
}

func TestParser_ParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o600); err != nil {
		t.Fatal(err)
	}

	cat, err := NewParser().Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cat.Source != path {
		t.Errorf("Source = %q, want %q", cat.Source, path)
	}

	if _, err := NewParser().WithMaxFileSize(10).Parse(path); err == nil {
		t.Error("Parse() with tiny size limit error = nil, want error")
	}
	if _, err := NewParser().Parse(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Parse() of missing file error = nil, want error")
	}
}

func TestParser_EmptyInput(t *testing.T) {
	cat, err := NewParser().ParseBytes([]byte("  \n"), "empty.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}
	if len(cat.Rules) != 0 || len(cat.DocumentTypes) != 0 {
		t.Errorf("catalog = %+v, want empty", cat)
	}
}

func TestParser_ProcessThreshold(t *testing.T) {
	src := `
processes:
  - id: zero
    auto_approval_threshold: 0
  - id: unset
`
	cat, err := NewParser().ParseBytes([]byte(src), "processes.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}
	if len(cat.Processes) != 2 {
		t.Fatalf("Processes = %d, want 2", len(cat.Processes))
	}
	if thr, ok := cat.Processes[0].Threshold(); !ok || thr != 0 {
		t.Errorf("zero: Threshold() = %v, %v, want 0, true", thr, ok)
	}
	if _, ok := cat.Processes[1].Threshold(); ok {
		t.Error("unset: Threshold() set, want unset")
	}
}
