package storage

import (
	"context"
	"time"

	"ceeval-hq/verdict/pkg/decision"
	"ceeval-hq/verdict/pkg/evaluation"
)

// Record is the stored evaluation of one dossier.
type Record struct {
	DossierID    string                  `json:"dossier_id"`
	InputVersion uint64                  `json:"input_version"`
	RulesVersion string                  `json:"rules_version,omitempty"`
	EvaluatedAt  time.Time               `json:"evaluated_at"`
	StoredAt     time.Time               `json:"stored_at"`
	Results      []evaluation.RuleResult `json:"results"`
	Decision     decision.Decision       `json:"decision"`
}

// NewRecord builds a record from a result set and its decision.
func NewRecord(set *evaluation.ResultSet, d decision.Decision) *Record {
	return &Record{
		DossierID:    set.DossierID,
		InputVersion: set.InputVersion,
		RulesVersion: set.RulesVersion,
		EvaluatedAt:  set.EvaluatedAt,
		Results:      set.Results,
		Decision:     d,
	}
}

// HistoryEntry summarizes one past evaluation of a dossier.
type HistoryEntry struct {
	DossierID     string           `json:"dossier_id"`
	InputVersion  uint64           `json:"input_version"`
	RulesVersion  string           `json:"rules_version,omitempty"`
	Outcome       decision.Outcome `json:"outcome"`
	Errors        int              `json:"errors"`
	Warnings      int              `json:"warnings"`
	NotApplicable int              `json:"not_applicable"`
	EvaluatedAt   time.Time        `json:"evaluated_at"`
	StoredAt      time.Time        `json:"stored_at"`
}

func historyEntry(rec *Record) HistoryEntry {
	h := HistoryEntry{
		DossierID:    rec.DossierID,
		InputVersion: rec.InputVersion,
		RulesVersion: rec.RulesVersion,
		Outcome:      rec.Decision.Outcome,
		EvaluatedAt:  rec.EvaluatedAt,
		StoredAt:     rec.StoredAt,
	}
	for _, r := range rec.Results {
		switch r.Status {
		case evaluation.StatusError:
			h.Errors++
		case evaluation.StatusWarning:
			h.Warnings++
		case evaluation.StatusNotApplicable:
			h.NotApplicable++
		}
	}
	return h
}

// Store persists dossier evaluations.
type Store interface {
	// Replace stores rec as the current evaluation of its dossier,
	// discarding the previous one, and appends a history entry. It returns
	// ErrStaleVersion when a newer input version is already stored.
	Replace(ctx context.Context, rec *Record) error

	// Get returns the current evaluation of a dossier or ErrNotFound.
	Get(ctx context.Context, dossierID string) (*Record, error)

	// History returns past evaluations of a dossier, newest first. A limit
	// of zero returns everything.
	History(ctx context.Context, dossierID string, limit int) ([]HistoryEntry, error)

	// Dossiers returns the ids of every dossier with a stored evaluation.
	Dossiers(ctx context.Context) ([]string, error)

	// Prune deletes history entries stored before the cutoff. Current
	// records are kept. Returns the number of entries deleted.
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}
