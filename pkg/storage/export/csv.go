package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"ceeval-hq/verdict/pkg/storage"
)

// CSVExporter exports one row per rule result. Records without results get
// a single row carrying only the decision.
type CSVExporter struct {
	// IncludeHeader writes a header row.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var header = []string{
	"dossier_id", "input_version", "rules_version", "outcome", "min_confidence",
	"rule_code", "status", "severity", "auto_reject", "message", "affected_fields",
	"evaluated_at",
}

// Export implements Exporter.
func (e *CSVExporter) Export(ctx context.Context, records []*storage.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(header); err != nil {
			return &ExportError{Format: "csv", RecordCount: len(records), Cause: err}
		}
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, row := range rows(rec) {
			if err := writer.Write(row); err != nil {
				return &ExportError{Format: "csv", RecordCount: len(records), Cause: err}
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &ExportError{Format: "csv", RecordCount: len(records), Cause: err}
	}
	return nil
}

func rows(rec *storage.Record) [][]string {
	prefix := []string{
		rec.DossierID,
		strconv.FormatUint(rec.InputVersion, 10),
		rec.RulesVersion,
		string(rec.Decision.Outcome),
		strconv.FormatFloat(rec.Decision.MinConfidence, 'f', -1, 64),
	}
	evaluatedAt := rec.EvaluatedAt.UTC().Format(time.RFC3339)

	if len(rec.Results) == 0 {
		return [][]string{append(prefix, "", "", "", "", "", "", evaluatedAt)}
	}

	out := make([][]string, 0, len(rec.Results))
	for _, r := range rec.Results {
		row := append(append([]string{}, prefix...),
			r.RuleCode,
			string(r.Status),
			string(r.Severity),
			strconv.FormatBool(r.AutoReject),
			r.Message,
			strings.Join(r.AffectedFields, ";"),
			evaluatedAt,
		)
		out = append(out, row)
	}
	return out
}
