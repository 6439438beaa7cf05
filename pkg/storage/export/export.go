package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"ceeval-hq/verdict/pkg/storage"
)

// Exporter writes records in one format.
type Exporter interface {
	Export(ctx context.Context, records []*storage.Record, w io.Writer) error
}

// ExportError represents a failed export.
type ExportError struct {
	Format      string
	RecordCount int
	Cause       error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [format=%s, record_count=%d]: %v", e.Format, e.RecordCount, e.Cause)
}

func (e *ExportError) Unwrap() error {
	return e.Cause
}

// New returns the exporter for format: "json", "json-pretty" or "csv".
func New(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONExporter(false), nil
	case "json-pretty":
		return NewJSONExporter(true), nil
	case "csv":
		return NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (valid: json, json-pretty, csv)", format)
	}
}
