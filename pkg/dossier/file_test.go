package dossier

import (
	"context"
	"strings"
	"testing"

	"ceeval-hq/verdict/pkg/decision"
)

const approvedDossier = `
id: D-1
processes: [bar-th-171]
documents:
  - id: devis-1
    type: DEVIS
    fields:
      prime_cee: {value: "2 500,00 €", confidence: 96}
  - id: facture-1
    type: facture
    fields:
      prime_cee: "2600"
    overrides:
      prime_cee: "2500"
`

func TestParseFile(t *testing.T) {
	f, err := ParseFile([]byte(approvedDossier), "d.yaml")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if f.ID != "D-1" || len(f.Documents) != 2 {
		t.Fatalf("ParseFile() = %+v", f)
	}
	if got := f.Documents[0].Fields["prime_cee"]; got.Value != "2 500,00 €" || got.Confidence != 96 {
		t.Errorf("mapping entry = %+v", got)
	}
	if got := f.Documents[1].Fields["prime_cee"]; got.Value != "2600" || got.Confidence != 100 {
		t.Errorf("scalar entry = %+v, want full confidence", got)
	}
}

func TestParseFile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "syntax", yaml: "id: [", want: "d.yaml"},
		{name: "no id", yaml: "processes: [a]", want: "dossier id is required"},
		{name: "document without type", yaml: "id: x\ndocuments:\n  - id: a\n", want: "requires id and type"},
		{name: "duplicate document", yaml: "id: x\ndocuments:\n  - {id: a, type: DEVIS}\n  - {id: a, type: DEVIS}\n", want: "duplicate document id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile([]byte(tt.yaml), "d.yaml")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ParseFile() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestFile_Apply(t *testing.T) {
	c, _ := newCoordinator(t)
	f, err := ParseFile([]byte(approvedDossier), "d.yaml")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	ev, err := f.Apply(context.Background(), c)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if ev.Decision.Outcome != decision.AutoApprove {
		t.Errorf("outcome = %s (%v), want auto_approve once the override applies", ev.Decision.Outcome, ev.Decision.Reasons)
	}
}

func TestFile_ApplyUnknownField(t *testing.T) {
	c, _ := newCoordinator(t)
	f := &File{ID: "D-2", Processes: []string{"bar-th-171"}, Documents: []DocumentFile{{
		ID: "devis-1", Type: "DEVIS", Fields: map[string]FieldEntry{"nope": {Value: "1", Confidence: 100}},
	}}}
	if _, err := f.Apply(context.Background(), c); err == nil {
		t.Error("Apply() with unknown field error = nil")
	}
}
