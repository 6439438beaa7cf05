package decision

import (
	"fmt"
	"math"
	"sort"

	"ceeval-hq/verdict/pkg/evaluation"
	"ceeval-hq/verdict/pkg/fieldvalue"
	"ceeval-hq/verdict/pkg/rules"
	"ceeval-hq/verdict/pkg/schema"
)

// Outcome is the dossier-level recommendation.
type Outcome string

const (
	AutoReject   Outcome = "auto_reject"
	SendToReview Outcome = "send_to_review"
	AutoApprove  Outcome = "auto_approve"
)

// Rank orders outcomes from worst to best: auto_reject < send_to_review <
// auto_approve. Unknown outcomes rank below auto_reject.
func (o Outcome) Rank() int {
	switch o {
	case AutoReject:
		return 0
	case SendToReview:
		return 1
	case AutoApprove:
		return 2
	default:
		return -1
	}
}

// RequiredField is the state of one required field path in a dossier.
type RequiredField struct {
	Path    schema.FieldPath
	Present bool

	// Confidence is the lowest confidence among the instances that carry a
	// value. Meaningless when Present is false.
	Confidence float64

	// Threshold is the field's own confidence threshold, zero when unset.
	Threshold float64
}

// Input is everything Decide reads.
type Input struct {
	Results          []evaluation.RuleResult
	RequiredFields   []RequiredField
	MissingDocuments []string

	// Threshold overrides the policy default when set.
	Threshold *float64
}

// Decision is the recommendation for a dossier with the facts behind it.
type Decision struct {
	Outcome Outcome `json:"outcome"`

	// Reasons explains the outcome, most decisive first.
	Reasons []string `json:"reasons,omitempty"`

	// MinConfidence is the lowest confidence across present required
	// fields, 100 when there are none.
	MinConfidence float64 `json:"min_confidence"`

	MissingRequired  []string `json:"missing_required,omitempty"`
	MissingDocuments []string `json:"missing_documents,omitempty"`

	// LowConfidence lists required fields under their own field threshold.
	// Informational; the process threshold decides.
	LowConfidence []string `json:"low_confidence,omitempty"`

	// BlockingRules lists the codes of error and warning results.
	BlockingRules []string `json:"blocking_rules,omitempty"`

	Threshold float64 `json:"threshold"`
}

// Policy turns rule results and field confidences into a Decision.
type Policy struct {
	DefaultThreshold float64
}

// NewPolicy returns a policy with the default auto-approval threshold.
func NewPolicy() *Policy {
	return &Policy{DefaultThreshold: rules.DefaultAutoApprovalThreshold}
}

// Decide applies the decision rules in order: an auto-reject error rejects;
// any other error, a missing required field or a missing required document
// sends to review; otherwise the dossier is approved only when every
// required field reaches the threshold and no rule warned.
func (p *Policy) Decide(in Input) Decision {
	threshold := p.defaultThreshold()
	if in.Threshold != nil {
		threshold = *in.Threshold
	}

	d := Decision{Threshold: threshold, MinConfidence: 100}

	var rejecting, errored, warned []string
	for _, r := range in.Results {
		switch r.Status {
		case evaluation.StatusError:
			errored = append(errored, r.RuleCode)
			if r.AutoReject {
				rejecting = append(rejecting, r.RuleCode)
			}
		case evaluation.StatusWarning:
			warned = append(warned, r.RuleCode)
		}
	}
	d.BlockingRules = append(append([]string{}, errored...), warned...)
	sort.Strings(d.BlockingRules)

	for _, f := range in.RequiredFields {
		if !f.Present {
			d.MissingRequired = append(d.MissingRequired, f.Path.String())
			continue
		}
		d.MinConfidence = math.Min(d.MinConfidence, f.Confidence)
		if f.Threshold > 0 && f.Confidence < f.Threshold {
			d.LowConfidence = append(d.LowConfidence, f.Path.String())
		}
	}
	d.MissingDocuments = in.MissingDocuments

	switch {
	case len(rejecting) > 0:
		d.Outcome = AutoReject
		d.Reasons = append(d.Reasons, fmt.Sprintf("auto-reject rule failed: %v", rejecting))
	case len(errored) > 0:
		d.Outcome = SendToReview
		d.Reasons = append(d.Reasons, fmt.Sprintf("rule errors: %v", errored))
	case len(d.MissingRequired) > 0:
		d.Outcome = SendToReview
		d.Reasons = append(d.Reasons, fmt.Sprintf("missing required fields: %v", d.MissingRequired))
	case len(d.MissingDocuments) > 0:
		d.Outcome = SendToReview
		d.Reasons = append(d.Reasons, fmt.Sprintf("missing documents: %v", d.MissingDocuments))
	case d.MinConfidence >= threshold && len(warned) == 0:
		d.Outcome = AutoApprove
	default:
		d.Outcome = SendToReview
		if len(warned) > 0 {
			d.Reasons = append(d.Reasons, fmt.Sprintf("rule warnings: %v", warned))
		}
		if d.MinConfidence < threshold {
			d.Reasons = append(d.Reasons, fmt.Sprintf("confidence %.1f below threshold %.1f", d.MinConfidence, threshold))
		}
	}
	return d
}

func (p *Policy) defaultThreshold() float64 {
	if p.DefaultThreshold <= 0 {
		return rules.DefaultAutoApprovalThreshold
	}
	return p.DefaultThreshold
}

// ThresholdFor returns the auto-approval threshold for a dossier attached to
// processes: the highest of their thresholds, where a process without one
// counts as the policy default. Without processes the default applies.
func (p *Policy) ThresholdFor(processes []*rules.Process) float64 {
	def := p.defaultThreshold()
	if len(processes) == 0 {
		return def
	}
	out := 0.0
	for _, proc := range processes {
		t, ok := proc.Threshold()
		if !ok {
			t = def
		}
		out = math.Max(out, t)
	}
	return out
}

// InstanceView is the part of a dossier snapshot RequiredFieldsFor reads.
type InstanceView interface {
	Instances() []fieldvalue.DocumentInstance
	ValueOn(instanceID string, path schema.FieldPath) (fieldvalue.FieldValue, bool)
}

var _ InstanceView = (*fieldvalue.Snapshot)(nil)

// RequiredFieldsFor lists the required fields of every document instance in
// view. A field counts as present only when every instance of its document
// type carries a value; its confidence is the lowest among them.
func RequiredFieldsFor(registry *schema.Registry, view InstanceView) []RequiredField {
	byPath := make(map[schema.FieldPath]*RequiredField)
	var order []schema.FieldPath

	for _, inst := range view.Instances() {
		for _, path := range registry.RequiredFields(inst.DocumentType) {
			rf, ok := byPath[path]
			if !ok {
				rf = &RequiredField{Path: path, Present: true, Confidence: 100}
				if f, err := registry.Resolve(path); err == nil {
					rf.Threshold = f.ConfidenceThreshold
				}
				byPath[path] = rf
				order = append(order, path)
			}

			v, ok := view.ValueOn(inst.ID, path)
			if !ok || !v.Present() {
				rf.Present = false
				continue
			}
			rf.Confidence = math.Min(rf.Confidence, v.Confidence)
		}
	}

	out := make([]RequiredField, 0, len(order))
	for _, p := range order {
		out = append(out, *byPath[p])
	}
	return out
}
