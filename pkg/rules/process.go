package rules

import (
	"fmt"

	"ceeval-hq/verdict/pkg/schema"
)

// DefaultAutoApprovalThreshold is the fallback when neither a process nor the
// decision policy sets a threshold.
const DefaultAutoApprovalThreshold = 90.0

// DocumentRequirement declares which documents a process expects.
type DocumentRequirement struct {
	DocumentType string
	Required     bool
	MinCount     int
	// MaxCount of zero means unbounded.
	MaxCount int
}

// Process is a CEE operation type, for example "BAR-TH-171".
type Process struct {
	ID                    string
	Code                  string
	Name                  string
	Category              string
	IsActive              bool
	// AutoApprovalThreshold is nil when the process does not set one.
	AutoApprovalThreshold *float64
	RequiredDocuments     []DocumentRequirement

	Location Location
}

// Threshold returns the auto-approval threshold and whether the process sets
// one. Zero is a valid threshold.
func (p *Process) Threshold() (float64, bool) {
	if p.AutoApprovalThreshold == nil {
		return 0, false
	}
	return *p.AutoApprovalThreshold, true
}

// Validate checks the process definition.
func (p *Process) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("process %q: id is required", p.Code)
	}
	if t, ok := p.Threshold(); ok && (t < 0 || t > 100) {
		return fmt.Errorf("process %q: auto approval threshold %v outside 0-100", p.ID, t)
	}
	for _, req := range p.RequiredDocuments {
		if req.MaxCount > 0 && req.MinCount > req.MaxCount {
			return fmt.Errorf("process %q: document %s min_count %d above max_count %d",
				p.ID, req.DocumentType, req.MinCount, req.MaxCount)
		}
	}
	return nil
}

// DocumentCounter reports how many instances of a document type a dossier has.
type DocumentCounter interface {
	CountDocumentType(code string) int
}

// MissingDocuments lists the requirement problems of a dossier: required
// types below their minimum count, and types above their maximum.
func (p *Process) MissingDocuments(docs DocumentCounter) []string {
	var out []string
	for _, req := range p.RequiredDocuments {
		code := schema.NormalizeCode(req.DocumentType)
		n := docs.CountDocumentType(code)
		minCount := req.MinCount
		if req.Required && minCount < 1 {
			minCount = 1
		}
		switch {
		case n < minCount:
			out = append(out, fmt.Sprintf("%s: %d of %d required", code, n, minCount))
		case req.MaxCount > 0 && n > req.MaxCount:
			out = append(out, fmt.Sprintf("%s: %d exceeds maximum %d", code, n, req.MaxCount))
		}
	}
	return out
}
