package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"ceeval-hq/verdict/pkg/decision"
	"ceeval-hq/verdict/pkg/dossier"
	"ceeval-hq/verdict/pkg/evaluation"
	"ceeval-hq/verdict/pkg/storage"
)

// dossierReport is the printable evaluation of one dossier.
type dossierReport struct {
	DossierID    string                  `json:"dossier_id"`
	Status       dossier.Status          `json:"status"`
	InputVersion uint64                  `json:"input_version"`
	RulesVersion string                  `json:"rules_version,omitempty"`
	EvaluatedAt  time.Time               `json:"evaluated_at"`
	Decision     decision.Decision       `json:"decision"`
	Results      []evaluation.RuleResult `json:"results"`
}

func reportFromRecord(rec *storage.Record) dossierReport {
	return dossierReport{
		DossierID:    rec.DossierID,
		Status:       dossier.StatusFor(rec.Decision.Outcome),
		InputVersion: rec.InputVersion,
		RulesVersion: rec.RulesVersion,
		EvaluatedAt:  rec.EvaluatedAt,
		Decision:     rec.Decision,
		Results:      rec.Results,
	}
}

func reportFromEvaluation(ev *dossier.Evaluation) dossierReport {
	return dossierReport{
		DossierID:    ev.DossierID,
		Status:       ev.Status,
		InputVersion: ev.Results.InputVersion,
		RulesVersion: ev.Results.RulesVersion,
		EvaluatedAt:  ev.Results.EvaluatedAt,
		Decision:     ev.Decision,
		Results:      ev.Results.Results,
	}
}

// dossierReports renders several dossier evaluations.
type dossierReports struct {
	Dossiers []dossierReport `json:"dossiers"`
}

func (r dossierReports) RenderText(w io.Writer) error {
	counts := make(map[decision.Outcome]int)
	for _, d := range r.Dossiers {
		counts[d.Decision.Outcome]++
		if err := d.RenderText(w); err != nil {
			return err
		}
	}
	if len(r.Dossiers) > 1 {
		_, err := fmt.Fprintf(w, "%d dossiers: %d auto_approve, %d send_to_review, %d auto_reject\n",
			len(r.Dossiers), counts[decision.AutoApprove], counts[decision.SendToReview], counts[decision.AutoReject])
		return err
	}
	return nil
}

func (r dossierReports) Header() []string { return resultHeader }

func (r dossierReports) Rows() [][]string {
	var rows [][]string
	for _, d := range r.Dossiers {
		rows = append(rows, d.Rows()...)
	}
	return rows
}

func (d dossierReport) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "%s  %s (%s)\n", d.DossierID, d.Decision.Outcome, d.Status)
	fmt.Fprintf(w, "  input version %d, rules %s, min confidence %.1f / threshold %.1f\n",
		d.InputVersion, d.RulesVersion, d.Decision.MinConfidence, d.Decision.Threshold)
	for _, reason := range d.Decision.Reasons {
		fmt.Fprintf(w, "  - %s\n", reason)
	}
	if len(d.Decision.LowConfidence) > 0 {
		fmt.Fprintf(w, "  low confidence: %s\n", strings.Join(d.Decision.LowConfidence, ", "))
	}

	passed := 0
	for _, res := range d.Results {
		if res.Status == evaluation.StatusPassed {
			passed++
			continue
		}
		fmt.Fprintf(w, "  %-14s %-28s %s\n", res.Status, res.RuleCode, res.Message)
		if res.Diagnostic != "" {
			fmt.Fprintf(w, "  %-14s %-28s %s\n", "", "", res.Diagnostic)
		}
	}
	_, err := fmt.Fprintf(w, "  %d rules, %d passed\n\n", len(d.Results), passed)
	return err
}

var resultHeader = []string{
	"dossier_id", "input_version", "outcome", "rule_code", "status", "severity",
	"auto_reject", "message", "affected_fields",
}

func (d dossierReport) Header() []string { return resultHeader }

func (d dossierReport) Rows() [][]string {
	rows := make([][]string, 0, len(d.Results))
	for _, res := range d.Results {
		rows = append(rows, []string{
			d.DossierID,
			strconv.FormatUint(d.InputVersion, 10),
			string(d.Decision.Outcome),
			res.RuleCode,
			string(res.Status),
			string(res.Severity),
			strconv.FormatBool(res.AutoReject),
			res.Message,
			strings.Join(res.AffectedFields, " "),
		})
	}
	return rows
}
