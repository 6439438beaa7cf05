package decision

import (
	"testing"
	"time"

	"ceeval-hq/verdict/pkg/evaluation"
	"ceeval-hq/verdict/pkg/fieldvalue"
	"ceeval-hq/verdict/pkg/rules"
	"ceeval-hq/verdict/pkg/schema"
)

func result(code string, status evaluation.Status, autoReject bool) evaluation.RuleResult {
	return evaluation.RuleResult{RuleCode: code, Status: status, AutoReject: autoReject}
}

func field(path string, confidence float64) RequiredField {
	return RequiredField{Path: schema.MustParseFieldPath(path), Present: true, Confidence: confidence}
}

func TestPolicy_Decide(t *testing.T) {
	low := 50.0

	tests := []struct {
		name string
		in   Input
		want Outcome
	}{
		{
			name: "clean dossier",
			in: Input{
				Results:        []evaluation.RuleResult{result("A", evaluation.StatusPassed, false)},
				RequiredFields: []RequiredField{field("devis.prime_cee", 95)},
			},
			want: AutoApprove,
		},
		{
			name: "auto reject wins over everything",
			in: Input{
				Results: []evaluation.RuleResult{
					result("A", evaluation.StatusError, true),
					result("B", evaluation.StatusWarning, false),
				},
				RequiredFields: []RequiredField{{Path: schema.MustParseFieldPath("devis.surface")}},
			},
			want: AutoReject,
		},
		{
			name: "error without auto reject",
			in: Input{
				Results:        []evaluation.RuleResult{result("PRIME_CONSISTENCY", evaluation.StatusError, false)},
				RequiredFields: []RequiredField{field("devis.prime_cee", 100)},
			},
			want: SendToReview,
		},
		{
			name: "auto reject flag on passing rule",
			in: Input{
				Results:        []evaluation.RuleResult{result("A", evaluation.StatusPassed, true)},
				RequiredFields: []RequiredField{field("devis.prime_cee", 100)},
			},
			want: AutoApprove,
		},
		{
			name: "warning blocks approval",
			in: Input{
				Results:        []evaluation.RuleResult{result("A", evaluation.StatusWarning, false)},
				RequiredFields: []RequiredField{field("devis.prime_cee", 100)},
			},
			want: SendToReview,
		},
		{
			name: "info and not applicable are ignored",
			in: Input{
				Results: []evaluation.RuleResult{
					result("A", evaluation.StatusInfo, false),
					result("CDC", evaluation.StatusNotApplicable, true),
				},
				RequiredFields: []RequiredField{field("devis.prime_cee", 100)},
			},
			want: AutoApprove,
		},
		{
			name: "low confidence",
			in: Input{
				RequiredFields: []RequiredField{field("devis.prime_cee", 89.9)},
			},
			want: SendToReview,
		},
		{
			name: "threshold override",
			in: Input{
				RequiredFields: []RequiredField{field("devis.prime_cee", 60)},
				Threshold:      &low,
			},
			want: AutoApprove,
		},
		{
			name: "missing required field",
			in: Input{
				RequiredFields: []RequiredField{
					field("devis.prime_cee", 100),
					{Path: schema.MustParseFieldPath("devis.surface")},
				},
			},
			want: SendToReview,
		},
		{
			name: "missing required document",
			in: Input{
				RequiredFields:   []RequiredField{field("devis.prime_cee", 100)},
				MissingDocuments: []string{"cdc: 0 of 1 required"},
			},
			want: SendToReview,
		},
		{
			name: "no required fields",
			in:   Input{},
			want: AutoApprove,
		},
	}

	p := NewPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Decide(tt.in)
			if got.Outcome != tt.want {
				t.Errorf("Outcome = %s, want %s (reasons %v)", got.Outcome, tt.want, got.Reasons)
			}
			if got.Outcome != AutoApprove && len(got.Reasons) == 0 {
				t.Error("non-approval decision has no reasons")
			}
		})
	}
}

func TestPolicy_DecideReportsFacts(t *testing.T) {
	got := NewPolicy().Decide(Input{
		Results: []evaluation.RuleResult{
			result("W", evaluation.StatusWarning, false),
			result("E", evaluation.StatusError, false),
		},
		RequiredFields: []RequiredField{
			field("devis.prime_cee", 97),
			{Path: schema.MustParseFieldPath("devis.surface"), Present: true, Confidence: 70, Threshold: 80},
			{Path: schema.MustParseFieldPath("devis.date_devis")},
		},
	})

	if got.MinConfidence != 70 {
		t.Errorf("MinConfidence = %v, want 70", got.MinConfidence)
	}
	if len(got.MissingRequired) != 1 || got.MissingRequired[0] != "devis.date_devis" {
		t.Errorf("MissingRequired = %v", got.MissingRequired)
	}
	if len(got.LowConfidence) != 1 || got.LowConfidence[0] != "devis.surface" {
		t.Errorf("LowConfidence = %v", got.LowConfidence)
	}
	if len(got.BlockingRules) != 2 || got.BlockingRules[0] != "E" {
		t.Errorf("BlockingRules = %v", got.BlockingRules)
	}
	if got.Threshold != rules.DefaultAutoApprovalThreshold {
		t.Errorf("Threshold = %v", got.Threshold)
	}
}

// Raising a required field's confidence or supplying it never makes the
// outcome worse.
func TestPolicy_Monotonic(t *testing.T) {
	p := NewPolicy()
	resultSets := [][]evaluation.RuleResult{
		nil,
		{result("W", evaluation.StatusWarning, false)},
		{result("E", evaluation.StatusError, false)},
		{result("R", evaluation.StatusError, true)},
	}
	confidences := []float64{0, 40, 89, 90, 100}

	for _, results := range resultSets {
		prev := p.Decide(Input{
			Results:        results,
			RequiredFields: []RequiredField{field("devis.prime_cee", 95), {Path: schema.MustParseFieldPath("devis.surface")}},
		})
		for _, c := range confidences {
			got := p.Decide(Input{
				Results:        results,
				RequiredFields: []RequiredField{field("devis.prime_cee", 95), field("devis.surface", c)},
			})
			if got.Outcome.Rank() < prev.Outcome.Rank() {
				t.Errorf("confidence %v: outcome %s regressed from %s", c, got.Outcome, prev.Outcome)
			}
			prev = got
		}
	}
}

func TestOutcome_Rank(t *testing.T) {
	if !(AutoReject.Rank() < SendToReview.Rank() && SendToReview.Rank() < AutoApprove.Rank()) {
		t.Error("outcome ranks are not ordered")
	}
}

func thresholdOf(v float64) *float64 { return &v }

func TestPolicy_ThresholdFor(t *testing.T) {
	tests := []struct {
		name       string
		defaultThr float64
		processes  []*rules.Process
		want       float64
	}{
		{name: "none", want: 90},
		{name: "none with configured default", defaultThr: 75, want: 75},
		{name: "unset uses configured default", defaultThr: 75, processes: []*rules.Process{{ID: "p"}}, want: 75},
		{name: "highest wins", processes: []*rules.Process{{ID: "a", AutoApprovalThreshold: thresholdOf(80)}, {ID: "b", AutoApprovalThreshold: thresholdOf(95)}}, want: 95},
		{name: "zero is a threshold", defaultThr: 75, processes: []*rules.Process{{ID: "a", AutoApprovalThreshold: thresholdOf(0)}}, want: 0},
		{name: "unset counts as default", defaultThr: 85, processes: []*rules.Process{{ID: "a", AutoApprovalThreshold: thresholdOf(60)}, {ID: "b"}}, want: 85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Policy{DefaultThreshold: tt.defaultThr}
			if got := p.ThresholdFor(tt.processes); got != tt.want {
				t.Errorf("ThresholdFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequiredFieldsFor(t *testing.T) {
	reg, err := schema.NewRegistry(
		&schema.DocumentType{Code: "DEVIS", Fields: []*schema.FieldSchema{
			{InternalName: "prime_cee", DataType: schema.DataTypeCurrency, Required: true},
			{InternalName: "surface", DataType: schema.DataTypeDecimal, Required: true, ConfidenceThreshold: 80},
			{InternalName: "notes", DataType: schema.DataTypeText},
		}},
	)
	if err != nil {
		t.Fatal(err)
	}
	store := fieldvalue.NewStore(reg)
	for _, id := range []string{"devis-1", "devis-2"} {
		if _, err := store.AddInstance("d1", id, "DEVIS", time.Time{}); err != nil {
			t.Fatal(err)
		}
	}
	record := func(inst, path, raw string, conf float64) {
		t.Helper()
		_, err := store.Record(fieldvalue.FieldValue{
			DossierID: "d1", DocumentInstanceID: inst,
			Path: schema.MustParseFieldPath(path), RawValue: raw, Confidence: conf,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	record("devis-1", "devis.prime_cee", "2500", 97)
	record("devis-2", "devis.prime_cee", "2500", 91)
	record("devis-1", "devis.surface", "80", 99)

	snap, err := store.Snapshot("d1")
	if err != nil {
		t.Fatal(err)
	}
	got := RequiredFieldsFor(reg, snap)
	if len(got) != 2 {
		t.Fatalf("RequiredFieldsFor() = %+v, want 2 fields", got)
	}
	if got[0].Path.String() != "devis.prime_cee" || !got[0].Present || got[0].Confidence != 91 {
		t.Errorf("prime_cee = %+v, want present with confidence 91", got[0])
	}
	if got[1].Path.String() != "devis.surface" || got[1].Present || got[1].Threshold != 80 {
		t.Errorf("surface = %+v, want missing with threshold 80", got[1])
	}
}

// A required devis.surface with no value sends the dossier to review even
// when every rule passes and every other confidence is 100.
func TestPolicy_MissingSurfaceScenario(t *testing.T) {
	reg, err := schema.NewRegistry(
		&schema.DocumentType{Code: "DEVIS", Fields: []*schema.FieldSchema{
			{InternalName: "prime_cee", DataType: schema.DataTypeCurrency, Required: true},
			{InternalName: "surface", DataType: schema.DataTypeDecimal, Required: true},
		}},
	)
	if err != nil {
		t.Fatal(err)
	}
	store := fieldvalue.NewStore(reg)
	if _, err := store.AddInstance("d1", "devis-1", "devis", time.Time{}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Record(fieldvalue.FieldValue{
		DossierID: "d1", DocumentInstanceID: "devis-1",
		Path: schema.MustParseFieldPath("devis.prime_cee"), RawValue: "2500", Confidence: 100,
	}); err != nil {
		t.Fatal(err)
	}
	snap, err := store.Snapshot("d1")
	if err != nil {
		t.Fatal(err)
	}

	got := NewPolicy().Decide(Input{
		Results:        []evaluation.RuleResult{result("A", evaluation.StatusPassed, false)},
		RequiredFields: RequiredFieldsFor(reg, snap),
	})
	if got.Outcome != SendToReview {
		t.Errorf("Outcome = %s, want send_to_review", got.Outcome)
	}
	if len(got.MissingRequired) != 1 || got.MissingRequired[0] != "devis.surface" {
		t.Errorf("MissingRequired = %v", got.MissingRequired)
	}
}
