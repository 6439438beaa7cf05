package export

import (
	"context"
	"encoding/json"
	"io"

	"ceeval-hq/verdict/pkg/storage"
)

// JSONExporter exports records as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export implements Exporter.
func (e *JSONExporter) Export(ctx context.Context, records []*storage.Record, w io.Writer) error {
	if records == nil {
		records = []*storage.Record{}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(records); err != nil {
		return &ExportError{Format: "json", RecordCount: len(records), Cause: err}
	}
	return nil
}
