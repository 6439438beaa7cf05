package catalog

import (
	"fmt"
	"sort"
	"time"

	"ceeval-hq/verdict/pkg/rules"
	rerrors "ceeval-hq/verdict/pkg/rules/errors"
	"ceeval-hq/verdict/pkg/schema"
)

// Snapshot is one immutable, validated version of the catalog. Evaluations
// hold on to the snapshot they started with, so a reload never changes the
// rules under a running evaluation.
type Snapshot struct {
	Registry  *schema.Registry
	Rules     *rules.RuleSet
	Processes []*rules.Process

	// Version is a content hash of every source file.
	Version  string
	LoadedAt time.Time
	Sources  []string

	// Warnings are the non-fatal validation diagnostics.
	Warnings []*rerrors.Error

	byProcess map[string]*rules.Process
}

// Process returns the process with the given id.
func (s *Snapshot) Process(id string) (*rules.Process, bool) {
	p, ok := s.byProcess[id]
	return p, ok
}

// ProcessesFor resolves process ids. Unknown and inactive ids are errors.
func (s *Snapshot) ProcessesFor(ids []string) ([]*rules.Process, error) {
	out := make([]*rules.Process, 0, len(ids))
	for _, id := range ids {
		p, ok := s.byProcess[id]
		if !ok {
			return nil, fmt.Errorf("unknown process %q", id)
		}
		if !p.IsActive {
			return nil, fmt.Errorf("process %q is inactive", id)
		}
		out = append(out, p)
	}
	return out, nil
}

// ProcessIDs returns the ids of every process, sorted.
func (s *Snapshot) ProcessIDs() []string {
	ids := make([]string, 0, len(s.byProcess))
	for id := range s.byProcess {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats summarizes the snapshot for logs and the lint command.
type Stats struct {
	DocumentTypes int `json:"document_types"`
	Fields        int `json:"fields"`
	Processes     int `json:"processes"`
	Rules         int `json:"rules"`
	ActiveRules   int `json:"active_rules"`
	Expressions   int `json:"expression_rules"`
	Warnings      int `json:"warnings"`
}

// Stats counts the snapshot's content.
func (s *Snapshot) Stats() Stats {
	st := Stats{
		DocumentTypes: len(s.Registry.DocumentTypes()),
		Fields:        len(s.Registry.FieldPaths()),
		Processes:     len(s.Processes),
		Rules:         s.Rules.Len(),
		Warnings:      len(s.Warnings),
	}
	for _, r := range s.Rules.All() {
		if r.IsActive {
			st.ActiveRules++
		}
		if r.Condition.Kind() == rules.ConditionExpression {
			st.Expressions++
		}
	}
	return st
}
