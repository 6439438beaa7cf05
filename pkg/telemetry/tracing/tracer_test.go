package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"ceeval-hq/verdict/pkg/config"
)

func recordingTracer(t *testing.T, sampler string) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tr, err := newTracer(config.TracingConfig{Enabled: true, Sampler: sampler, ServiceName: "verdict-test"}, "test", sdktrace.WithSyncer(exporter))
	if err != nil {
		t.Fatalf("newTracer() error = %v", err)
	}
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })
	return tr, exporter
}

func TestNew_Disabled(t *testing.T) {
	tr, err := New(config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tr.Enabled() {
		t.Error("disabled tracer reports enabled")
	}
	ctx, span := tr.Start(context.Background(), "noop")
	span.End()
	if TraceID(ctx) != "" {
		t.Errorf("noop span has trace id %q", TraceID(ctx))
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestTracer_RecordsSpans(t *testing.T) {
	tr, exporter := recordingTracer(t, SamplerAlways)

	ctx, span := tr.Start(context.Background(), "dossier.evaluate")
	SetDossierAttributes(span, "DOS-1", 3, []string{"BAR-TH-171"})
	SetResultAttributes(span, 12, 1, "send_to_review", 87.5)
	SetStatus(span, errors.New("storage unavailable"))
	if TraceID(ctx) == "" {
		t.Error("TraceID() empty for sampled span")
	}
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	got := spans[0]
	if got.Name != "dossier.evaluate" {
		t.Errorf("Name = %q", got.Name)
	}
	if got.Status.Code != codes.Error {
		t.Errorf("Status = %v, want Error", got.Status.Code)
	}
	attrs := map[string]bool{}
	for _, kv := range got.Attributes {
		attrs[string(kv.Key)] = true
	}
	for _, k := range []string{AttrDossierID, AttrInputVersion, AttrRulesFailed, AttrOutcome} {
		if !attrs[k] {
			t.Errorf("missing attribute %s", k)
		}
	}
}

func TestTracer_NeverSampler(t *testing.T) {
	tr, exporter := recordingTracer(t, SamplerNever)
	_, span := tr.Start(context.Background(), "dossier.evaluate")
	span.End()
	if n := len(exporter.GetSpans()); n != 0 {
		t.Errorf("exported %d spans, want 0", n)
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{"", 0.1, false},
		{SamplerRatio, 1.5, true},
		{"sometimes", 0, true},
	}
	for _, tt := range tests {
		_, err := createSampler(tt.strategy, tt.ratio)
		if (err != nil) != tt.wantErr {
			t.Errorf("createSampler(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
		}
	}
}
