package evaluation

import (
	"time"

	"github.com/google/uuid"

	"ceeval-hq/verdict/pkg/fieldvalue"
	"ceeval-hq/verdict/pkg/rules"
	"ceeval-hq/verdict/pkg/schema"
)

// MatchResult is the tri-state outcome of a condition.
type MatchResult int

const (
	// Indeterminate means the condition could not be decided, usually because
	// a field it reads has no value yet.
	Indeterminate MatchResult = iota

	// True means the condition holds.
	True

	// False means the condition does not hold.
	False
)

func (m MatchResult) String() string {
	switch m {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "indeterminate"
	}
}

// Outcome is a MatchResult with the notes explaining it.
type Outcome struct {
	Result MatchResult
	Notes  []string
}

// Status is the verdict of one rule for one dossier.
type Status string

const (
	StatusPassed        Status = "passed"
	StatusError         Status = "error"
	StatusWarning       Status = "warning"
	StatusInfo          Status = "info"
	StatusNotApplicable Status = "not_applicable"
)

// statusFor maps a condition result to a status for a rule of severity.
func statusFor(result MatchResult, severity rules.Severity) Status {
	switch result {
	case True:
		return StatusPassed
	case False:
		switch severity {
		case rules.SeverityWarning:
			return StatusWarning
		case rules.SeverityInfo:
			return StatusInfo
		default:
			return StatusError
		}
	default:
		return StatusNotApplicable
	}
}

// RuleResult is the verdict of one rule for one dossier evaluation.
type RuleResult struct {
	// ID is derived from the dossier, the input version and the rule code, so
	// re-running an unchanged snapshot reproduces it exactly.
	ID uuid.UUID `json:"id"`

	// RuleID and RuleCode identify the rule that produced the result.
	RuleID   string `json:"rule_id"`
	RuleCode string `json:"rule_code"`
	RuleName string `json:"rule_name,omitempty"`

	// Status is the verdict.
	Status Status `json:"status"`

	// Severity is the declared severity of the rule, kept for reviewers even
	// when the rule passed.
	Severity rules.Severity `json:"severity"`

	// AutoReject and CanOverride are copied from the rule.
	AutoReject  bool `json:"auto_reject"`
	CanOverride bool `json:"can_override"`

	// Message is shown to reviewers. For failures it is the rule's error
	// message with field placeholders filled in; for not_applicable results
	// it explains why the rule was skipped.
	Message string `json:"message,omitempty"`

	// Diagnostic carries technical detail for malformed rules.
	Diagnostic string `json:"diagnostic,omitempty"`

	// AffectedFields lists the field paths the rule reads.
	AffectedFields []string `json:"affected_fields,omitempty"`

	// EvaluatedAt is the as-of time of the input snapshot.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Blocking reports whether the result prevents automatic approval.
func (r RuleResult) Blocking() bool {
	return r.Status == StatusError || r.Status == StatusWarning
}

// ResultSet is the complete output of one evaluation. It replaces any
// previous set for the dossier as a whole.
type ResultSet struct {
	DossierID    string       `json:"dossier_id"`
	InputVersion uint64       `json:"input_version"`
	RulesVersion string       `json:"rules_version,omitempty"`
	EvaluatedAt  time.Time    `json:"evaluated_at"`
	Results      []RuleResult `json:"results"`
}

// Count returns the number of results with status s.
func (rs *ResultSet) Count(s Status) int {
	n := 0
	for _, r := range rs.Results {
		if r.Status == s {
			n++
		}
	}
	return n
}

// Find returns the result of the rule with the given code.
func (rs *ResultSet) Find(code string) (RuleResult, bool) {
	for _, r := range rs.Results {
		if r.RuleCode == code {
			return r, true
		}
	}
	return RuleResult{}, false
}

// View is the read contract the engine needs from a dossier snapshot.
// *fieldvalue.Snapshot satisfies it.
type View interface {
	DossierID() string
	Version() uint64
	AsOf() time.Time
	DocumentTypes() []string
	ValuesFor(path schema.FieldPath) []fieldvalue.FieldValue
	Latest(path schema.FieldPath) (fieldvalue.FieldValue, bool)
}

var _ View = (*fieldvalue.Snapshot)(nil)

// InstancePolicy selects how a field path is resolved when a dossier has
// several instances of the same document type.
type InstancePolicy string

const (
	// InstanceFirst uses the first submitted instance that has a value.
	InstanceFirst InstancePolicy = "first"

	// InstanceAgreement requires every instance with a value to agree;
	// disagreement makes the reading atom indeterminate.
	InstanceAgreement InstancePolicy = "agreement"
)

// Valid reports whether p is a known policy.
func (p InstancePolicy) Valid() bool {
	return p == InstanceFirst || p == InstanceAgreement
}
