package dossier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ceeval-hq/verdict/pkg/catalog"
	"ceeval-hq/verdict/pkg/decision"
	"ceeval-hq/verdict/pkg/evaluation"
	"ceeval-hq/verdict/pkg/fieldvalue"
	"ceeval-hq/verdict/pkg/schema"
	"ceeval-hq/verdict/pkg/storage"
)

const testCatalog = `
document_types:
  - code: DEVIS
    fields:
      - internal_name: prime_cee
        data_type: currency
        required: true
  - code: FACTURE
    fields:
      - internal_name: prime_cee
        data_type: currency
processes:
  - id: bar-th-171
    code: BAR-TH-171
    auto_approval_threshold: 90
    required_documents:
      - {document_type: DEVIS, required: true}
      - {document_type: FACTURE, required: true}
  - id: bar-en-101
    code: BAR-EN-101
    active: false
rules:
  - code: PRIME_CONSISTENCY
    severity: error
    applies_to:
      document_types: [DEVIS, FACTURE]
    condition:
      - field: devis.prime_cee
        operator: equals
        value_type: field
        value: facture.prime_cee
`

var (
	primeDevis   = schema.MustParseFieldPath("devis.prime_cee")
	primeFacture = schema.MustParseFieldPath("facture.prime_cee")
)

type staticCatalog struct {
	snap *catalog.Snapshot
}

func (s staticCatalog) Current() (*catalog.Snapshot, error) { return s.snap, nil }

type countingRecorder struct {
	mu         sync.Mutex
	outcomes   map[decision.Outcome]int
	superseded int
	failures   map[string]int
}

func (r *countingRecorder) RecordEvaluation(o decision.Outcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[o]++
}

func (r *countingRecorder) RecordSuperseded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.superseded++
}

func (r *countingRecorder) RecordEvaluationError(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[stage]++
}

func newCoordinator(t *testing.T, opts ...Option) (*Coordinator, *countingRecorder) {
	t.Helper()
	return newCoordinatorFrom(t, testCatalog, opts...)
}

func newCoordinatorFrom(t *testing.T, src string, opts ...Option) (*Coordinator, *countingRecorder) {
	t.Helper()
	snap, err := catalog.NewLoader(catalog.LoaderConfig{Checker: evaluation.ExpressionChecker{}}, nil).
		LoadBytes([]byte(src), "test.yaml")
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	engine, err := evaluation.NewEngine(nil, nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	rec := &countingRecorder{outcomes: map[decision.Outcome]int{}, failures: map[string]int{}}
	opts = append([]Option{WithRecorder(rec), WithResultStore(storage.NewMemoryStore())}, opts...)
	c, err := NewCoordinator(staticCatalog{snap}, fieldvalue.NewStore(snap.Registry), engine, opts...)
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	return c, rec
}

func mustEval(t *testing.T) func(ev *Evaluation, err error) *Evaluation {
	return func(ev *Evaluation, err error) *Evaluation {
		t.Helper()
		if err != nil {
			t.Fatalf("evaluation error = %v", err)
		}
		return ev
	}
}

// openComplete opens d1 with both documents and the devis prime.
func openComplete(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx := context.Background()
	if err := c.Open(ctx, "d1", []string{"bar-th-171"}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	mustEval(t)(c.AddDocument(ctx, "d1", "devis-1", "DEVIS", time.Time{}))
	mustEval(t)(c.AddDocument(ctx, "d1", "facture-1", "FACTURE", time.Time{}))
	mustEval(t)(c.RecordFieldValue(ctx, fieldvalue.FieldValue{
		DossierID: "d1", DocumentInstanceID: "devis-1", Path: primeDevis, RawValue: "2 500,00 €", Confidence: 95,
	}))
}

func TestCoordinator_OpenRejects(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	if err := c.Open(ctx, "d1", nil); !errors.Is(err, ErrNoProcess) {
		t.Errorf("Open(no process) error = %v, want ErrNoProcess", err)
	}
	if err := c.Open(ctx, "d1", []string{"nope"}); err == nil {
		t.Error("Open(unknown process) error = nil")
	}
	if err := c.Open(ctx, "d1", []string{"bar-en-101"}); err == nil {
		t.Error("Open(inactive process) error = nil")
	}
	if _, err := c.Evaluate(ctx, "d1"); !errors.Is(err, ErrUnknownDossier) {
		t.Errorf("Evaluate(unopened) error = %v, want ErrUnknownDossier", err)
	}
	if _, err := c.AddDocument(ctx, "d1", "devis-1", "DEVIS", time.Time{}); !errors.Is(err, ErrUnknownDossier) {
		t.Errorf("AddDocument(unopened) error = %v, want ErrUnknownDossier", err)
	}
}

func TestCoordinator_Workflow(t *testing.T) {
	c, rec := newCoordinator(t)
	ctx := context.Background()

	if err := c.Open(ctx, "d1", []string{"bar-th-171"}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	st, err := c.Current(ctx, "d1")
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if st.Status != StatusDraft || st.Record != nil {
		t.Fatalf("Current() = %s with record %v, want draft without record", st.Status, st.Record)
	}

	ev := mustEval(t)(c.AddDocument(ctx, "d1", "devis-1", "DEVIS", time.Time{}))
	if ev.Decision.Outcome != decision.SendToReview || len(ev.Decision.MissingDocuments) == 0 {
		t.Errorf("devis only: outcome %s missing %v, want send_to_review with missing documents",
			ev.Decision.Outcome, ev.Decision.MissingDocuments)
	}

	mustEval(t)(c.AddDocument(ctx, "d1", "facture-1", "FACTURE", time.Time{}))
	mustEval(t)(c.RecordFieldValue(ctx, fieldvalue.FieldValue{
		DossierID: "d1", DocumentInstanceID: "facture-1", Path: primeFacture, RawValue: "2600", Confidence: 95,
	}))
	ev = mustEval(t)(c.RecordFieldValue(ctx, fieldvalue.FieldValue{
		DossierID: "d1", DocumentInstanceID: "devis-1", Path: primeDevis, RawValue: "2500", Confidence: 95,
	}))
	if ev.Status != StatusAwaitingReview {
		t.Errorf("mismatched primes: status %s, want awaiting_review", ev.Status)
	}
	if r, ok := ev.Results.Find("PRIME_CONSISTENCY"); !ok || r.Status != evaluation.StatusError {
		t.Errorf("PRIME_CONSISTENCY = %+v, want error", r)
	}

	ev = mustEval(t)(c.Override(ctx, "d1", "facture-1", primeFacture, "2500"))
	if ev.Status != StatusApproved || ev.Decision.Outcome != decision.AutoApprove {
		t.Errorf("after override: status %s outcome %s, want approved", ev.Status, ev.Decision.Outcome)
	}

	st, err = c.Current(ctx, "d1")
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if st.Status != StatusApproved || st.Record == nil {
		t.Fatalf("Current() = %+v, want approved with record", st)
	}
	if st.Record.InputVersion != st.InputVersion {
		t.Errorf("stored input version %d, want %d", st.Record.InputVersion, st.InputVersion)
	}
	if len(st.Record.Results) != 1 {
		t.Errorf("stored results = %d, want the full set of 1", len(st.Record.Results))
	}
	if rec.outcomes[decision.AutoApprove] != 1 {
		t.Errorf("auto_approve recorded %d times, want 1", rec.outcomes[decision.AutoApprove])
	}
}

func TestCoordinator_LastStartedWins(t *testing.T) {
	c, rec := newCoordinator(t)
	ctx := context.Background()
	openComplete(t, c)
	mustEval(t)(c.RecordFieldValue(ctx, fieldvalue.FieldValue{
		DossierID: "d1", DocumentInstanceID: "facture-1", Path: primeFacture, RawValue: "2600", Confidence: 95,
	}))

	st, _ := c.state("d1")
	st.mu.Lock()
	slow := st.started + 1
	st.mu.Unlock()

	reached := make(chan struct{})
	release := make(chan struct{})
	c.beforeCommit = func(ticket uint64) {
		if ticket == slow {
			close(reached)
			<-release
		}
	}

	type result struct {
		ev  *Evaluation
		err error
	}
	done := make(chan result, 1)
	go func() {
		ev, err := c.Evaluate(ctx, "d1")
		done <- result{ev, err}
	}()
	<-reached

	cur, err := c.Current(ctx, "d1")
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if cur.Status != StatusProcessing {
		t.Errorf("status during run = %s, want processing", cur.Status)
	}

	// A correction arrives while the slow run is still in flight.
	fresh := mustEval(t)(c.Override(ctx, "d1", "facture-1", primeFacture, "2500"))
	if fresh.Superseded || fresh.Status != StatusApproved {
		t.Fatalf("fresh run = superseded %v status %s, want committed approved", fresh.Superseded, fresh.Status)
	}

	close(release)
	stale := <-done
	if stale.err != nil {
		t.Fatalf("slow Evaluate() error = %v", stale.err)
	}
	if !stale.ev.Superseded {
		t.Error("slow run Superseded = false, want true")
	}
	if stale.ev.Status != StatusAwaitingReview {
		t.Errorf("slow run status = %s, want awaiting_review for its own input", stale.ev.Status)
	}

	cur, err = c.Current(ctx, "d1")
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if cur.Status != StatusApproved {
		t.Errorf("status = %s, want approved", cur.Status)
	}
	if cur.Record.InputVersion != fresh.Results.InputVersion {
		t.Errorf("stored input version %d, want %d from the fresh run", cur.Record.InputVersion, fresh.Results.InputVersion)
	}
	if rec.superseded != 1 {
		t.Errorf("superseded recorded %d times, want 1", rec.superseded)
	}
}

func TestCoordinator_EarlierFinishCommits(t *testing.T) {
	c, rec := newCoordinator(t)
	ctx := context.Background()
	openComplete(t, c)

	first := mustEval(t)(c.Evaluate(ctx, "d1"))
	second := mustEval(t)(c.Evaluate(ctx, "d1"))
	if first.Superseded || second.Superseded {
		t.Errorf("sequential runs superseded = %v, %v; want neither", first.Superseded, second.Superseded)
	}
	if second.Ticket <= first.Ticket {
		t.Errorf("tickets %d then %d, want increasing", first.Ticket, second.Ticket)
	}
	if rec.superseded != 0 {
		t.Errorf("superseded recorded %d times, want 0", rec.superseded)
	}

	history, err := c.Results().History(ctx, "d1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) < 2 {
		t.Errorf("history = %d entries, want at least 2", len(history))
	}
}

func TestCoordinator_ConcurrentDossiers(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		if err := c.Open(ctx, id, []string{"bar-th-171"}); err != nil {
			t.Fatalf("Open(%s) error = %v", id, err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids)*10)
	for _, id := range ids {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := c.Evaluate(ctx, id); err != nil {
					errs <- err
				}
			}(id)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Evaluate() error = %v", err)
	}

	for _, id := range ids {
		st, err := c.Current(ctx, id)
		if err != nil {
			t.Fatalf("Current(%s) error = %v", id, err)
		}
		if st.Record == nil || st.Status != StatusAwaitingReview {
			t.Errorf("dossier %s = %s with record %v, want awaiting_review", id, st.Status, st.Record != nil)
		}
	}
}

func TestCoordinator_ReevaluateAll(t *testing.T) {
	c, rec := newCoordinator(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := c.Open(ctx, id, []string{"bar-th-171"}); err != nil {
			t.Fatalf("Open(%s) error = %v", id, err)
		}
	}

	snap, _ := c.catalog.Current()
	c.CatalogReloaded(snap)
	if err := c.ReevaluateAll(ctx); err != nil {
		t.Fatalf("ReevaluateAll() error = %v", err)
	}
	if got := rec.outcomes[decision.SendToReview]; got != 2 {
		t.Errorf("send_to_review recorded %d times, want 2", got)
	}
	if got := c.Dossiers(); len(got) != 2 {
		t.Errorf("Dossiers() = %v, want 2", got)
	}
}

const thresholdCatalog = `
document_types:
  - code: DEVIS
    fields:
      - internal_name: prime_cee
        data_type: currency
        required: true
processes:
  - id: unset
    required_documents:
      - {document_type: DEVIS, required: true}
  - id: zero
    auto_approval_threshold: 0
    required_documents:
      - {document_type: DEVIS, required: true}
`

func TestCoordinator_ProcessThreshold(t *testing.T) {
	tests := []struct {
		name          string
		process       string
		confidence    float64
		wantThreshold float64
		wantOutcome   decision.Outcome
	}{
		{name: "unset uses configured default", process: "unset", confidence: 95, wantThreshold: 99, wantOutcome: decision.SendToReview},
		{name: "zero approves any confidence", process: "zero", confidence: 10, wantThreshold: 0, wantOutcome: decision.AutoApprove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newCoordinatorFrom(t, thresholdCatalog, WithPolicy(&decision.Policy{DefaultThreshold: 99}))
			ctx := context.Background()
			if err := c.Open(ctx, "d1", []string{tt.process}); err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			mustEval(t)(c.AddDocument(ctx, "d1", "devis-1", "DEVIS", time.Time{}))
			ev := mustEval(t)(c.RecordFieldValue(ctx, fieldvalue.FieldValue{
				DossierID: "d1", DocumentInstanceID: "devis-1", Path: primeDevis, RawValue: "2500", Confidence: tt.confidence,
			}))
			if ev.Decision.Threshold != tt.wantThreshold {
				t.Errorf("Threshold = %v, want %v", ev.Decision.Threshold, tt.wantThreshold)
			}
			if ev.Decision.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %s, want %s (%v)", ev.Decision.Outcome, tt.wantOutcome, ev.Decision.Reasons)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		outcome decision.Outcome
		want    Status
	}{
		{decision.AutoApprove, StatusApproved},
		{decision.AutoReject, StatusRejected},
		{decision.SendToReview, StatusAwaitingReview},
		{decision.Outcome("unknown"), StatusAwaitingReview},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.outcome); got != tt.want {
			t.Errorf("StatusFor(%s) = %s, want %s", tt.outcome, got, tt.want)
		}
	}
}
