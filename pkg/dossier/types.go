package dossier

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"ceeval-hq/verdict/pkg/decision"
	"ceeval-hq/verdict/pkg/evaluation"
	"ceeval-hq/verdict/pkg/storage"
)

var (
	// ErrUnknownDossier is returned for dossiers that were never opened.
	ErrUnknownDossier = errors.New("unknown dossier")

	// ErrNoProcess is returned when a dossier is opened without a process.
	ErrNoProcess = errors.New("dossier requires at least one process")
)

// Status is the workflow state of a dossier.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusProcessing     Status = "processing"
	StatusAwaitingReview Status = "awaiting_review"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
)

// StatusFor maps a decision outcome onto the workflow.
func StatusFor(o decision.Outcome) Status {
	switch o {
	case decision.AutoApprove:
		return StatusApproved
	case decision.AutoReject:
		return StatusRejected
	default:
		return StatusAwaitingReview
	}
}

// Evaluation is the outcome of one evaluation run.
type Evaluation struct {
	// ID identifies the run in logs and traces.
	ID uuid.UUID

	DossierID string

	// Ticket is the start order of the run within its dossier.
	Ticket uint64

	Results  *evaluation.ResultSet
	Decision decision.Decision
	Status   Status

	// Superseded is set when a later-started run already committed. The
	// results of a superseded run were not stored.
	Superseded bool

	Duration time.Duration
}

// State is the current view of a dossier.
type State struct {
	DossierID  string
	ProcessIDs []string
	Status     Status

	// InputVersion is the latest field value store version, which may be
	// ahead of the stored evaluation while a run is in flight.
	InputVersion uint64

	// Record is the stored evaluation, nil before the first commit.
	Record *storage.Record
}
