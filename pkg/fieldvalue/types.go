// Package fieldvalue stores the values extracted or corrected for the fields
// of a dossier's document instances.
//
// Values are append-only. A human correction is recorded as a new value with
// human_override provenance and takes precedence over extraction for the same
// document instance. Reads go through immutable snapshots so that an
// evaluation never observes a half-applied update.
package fieldvalue

import (
	"time"

	"github.com/google/uuid"

	"ceeval-hq/verdict/pkg/schema"
)

// Provenance records where a value came from.
type Provenance string

const (
	ProvenanceExtraction    Provenance = "extraction"
	ProvenanceHumanOverride Provenance = "human_override"
)

// rank orders provenances; higher wins within one document instance.
func (p Provenance) rank() int {
	if p == ProvenanceHumanOverride {
		return 1
	}
	return 0
}

// Valid reports whether p is a known provenance.
func (p Provenance) Valid() bool {
	return p == ProvenanceExtraction || p == ProvenanceHumanOverride
}

// DocumentInstance is one submitted document of a dossier.
type DocumentInstance struct {
	ID           string
	DossierID    string
	DocumentType string
	SubmittedAt  time.Time

	seq uint64
}

// FieldValue is one value for one field path of one document instance.
// Recorded values are never mutated.
type FieldValue struct {
	ID                 uuid.UUID
	DossierID          string
	DocumentInstanceID string
	Path               schema.FieldPath
	RawValue           string
	TypedValue         any
	Confidence         float64
	Provenance         Provenance
	ProducedAt         time.Time

	// Violations lists schema constraint violations found when recording.
	Violations []string

	seq uint64
}

// Present reports whether the value carries content.
func (v FieldValue) Present() bool {
	if v.TypedValue == nil {
		return false
	}
	if s, ok := v.TypedValue.(string); ok {
		return s != ""
	}
	return true
}

// supersedes reports whether v wins over other within one instance.
func (v FieldValue) supersedes(other FieldValue) bool {
	if v.Provenance.rank() != other.Provenance.rank() {
		return v.Provenance.rank() > other.Provenance.rank()
	}
	return v.seq > other.seq
}
