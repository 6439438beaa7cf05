package dossier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ceeval-hq/verdict/pkg/catalog"
	"ceeval-hq/verdict/pkg/decision"
	"ceeval-hq/verdict/pkg/evaluation"
	"ceeval-hq/verdict/pkg/fieldvalue"
	"ceeval-hq/verdict/pkg/rules"
	"ceeval-hq/verdict/pkg/schema"
	"ceeval-hq/verdict/pkg/storage"
	"ceeval-hq/verdict/pkg/telemetry/logging"
	"ceeval-hq/verdict/pkg/telemetry/tracing"
)

// CatalogSource supplies the current catalog snapshot. *catalog.Manager
// implements it.
type CatalogSource interface {
	Current() (*catalog.Snapshot, error)
}

// Recorder receives evaluation metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordEvaluation(outcome decision.Outcome, elapsed time.Duration)
	RecordSuperseded()
	RecordEvaluationError(stage string)
}

type nopRecorder struct{}

func (nopRecorder) RecordEvaluation(decision.Outcome, time.Duration) {}
func (nopRecorder) RecordSuperseded()                                {}
func (nopRecorder) RecordEvaluationError(string)                     {}

// Failure stages reported to the Recorder.
const (
	StageCatalog = "catalog"
	StageEngine  = "engine"
	StageStorage = "storage"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithResultStore sets where evaluations are stored. Defaults to memory.
func WithResultStore(s storage.Store) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.results = s
		}
	}
}

// WithPolicy overrides the decision policy.
func WithPolicy(p *decision.Policy) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Coordinator runs evaluations for many dossiers. It is safe for concurrent
// use; runs of different dossiers never contend.
type Coordinator struct {
	catalog CatalogSource
	values  *fieldvalue.Store
	engine  *evaluation.Engine
	policy  *decision.Policy
	results storage.Store
	metrics Recorder
	tracer  *tracing.Tracer
	logger  *slog.Logger

	mu       sync.Mutex
	dossiers map[string]*dossierState

	// beforeCommit runs between evaluation and commit. Tests use it to
	// interleave runs.
	beforeCommit func(ticket uint64)
}

type dossierState struct {
	mu         sync.Mutex
	processIDs []string
	started    uint64
	committed  uint64
	inflight   int
	status     Status
}

// NewCoordinator creates a coordinator.
func NewCoordinator(source CatalogSource, values *fieldvalue.Store, engine *evaluation.Engine, opts ...Option) (*Coordinator, error) {
	if source == nil || values == nil || engine == nil {
		return nil, errors.New("coordinator requires a catalog source, a value store and an engine")
	}
	c := &Coordinator{
		catalog:  source,
		values:   values,
		engine:   engine,
		policy:   decision.NewPolicy(),
		results:  storage.NewMemoryStore(),
		metrics:  nopRecorder{},
		tracer:   tracing.Noop(),
		logger:   slog.Default(),
		dossiers: make(map[string]*dossierState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Results returns the result store.
func (c *Coordinator) Results() storage.Store {
	return c.results
}

// Open attaches a dossier to processes, creating it when needed. Reopening
// a dossier replaces its processes and keeps its documents.
func (c *Coordinator) Open(ctx context.Context, dossierID string, processIDs []string) error {
	if len(processIDs) == 0 {
		return ErrNoProcess
	}
	snap, err := c.catalog.Current()
	if err != nil {
		return err
	}
	if _, err := snap.ProcessesFor(processIDs); err != nil {
		return fmt.Errorf("open dossier %s: %w", dossierID, err)
	}
	if err := c.values.Open(dossierID); err != nil {
		return err
	}

	ids := append([]string(nil), processIDs...)
	sort.Strings(ids)

	c.mu.Lock()
	st, ok := c.dossiers[dossierID]
	if !ok {
		st = &dossierState{status: StatusDraft}
		c.dossiers[dossierID] = st
	}
	c.mu.Unlock()

	st.mu.Lock()
	st.processIDs = ids
	st.mu.Unlock()

	c.logger.InfoContext(logging.WithDossierID(ctx, dossierID), "dossier opened", "processes", ids)
	return nil
}

// AddDocument registers a submitted document and re-evaluates the dossier.
func (c *Coordinator) AddDocument(ctx context.Context, dossierID, instanceID, documentType string, submittedAt time.Time) (*Evaluation, error) {
	if _, err := c.state(dossierID); err != nil {
		return nil, err
	}
	if _, err := c.values.AddInstance(dossierID, instanceID, documentType, submittedAt); err != nil {
		return nil, err
	}
	return c.Evaluate(ctx, dossierID)
}

// RecordFieldValue records an extracted value and re-evaluates the dossier.
func (c *Coordinator) RecordFieldValue(ctx context.Context, v fieldvalue.FieldValue) (*Evaluation, error) {
	if v.Provenance == "" {
		v.Provenance = fieldvalue.ProvenanceExtraction
	}
	return c.record(ctx, v)
}

// Override records a human correction. It takes precedence over every
// extracted value of the same field on the same document instance.
func (c *Coordinator) Override(ctx context.Context, dossierID, instanceID string, path schema.FieldPath, rawValue string) (*Evaluation, error) {
	return c.record(ctx, fieldvalue.FieldValue{
		DossierID:          dossierID,
		DocumentInstanceID: instanceID,
		Path:               path,
		RawValue:           rawValue,
		Confidence:         100,
		Provenance:         fieldvalue.ProvenanceHumanOverride,
	})
}

func (c *Coordinator) record(ctx context.Context, v fieldvalue.FieldValue) (*Evaluation, error) {
	if _, err := c.state(v.DossierID); err != nil {
		return nil, err
	}
	if _, err := c.values.Record(v); err != nil {
		return nil, err
	}
	return c.Evaluate(ctx, v.DossierID)
}

// Evaluate runs the rules against the dossier's current values and commits
// the results unless a later-started run already did.
func (c *Coordinator) Evaluate(ctx context.Context, dossierID string) (*Evaluation, error) {
	st, err := c.state(dossierID)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	// The ticket and the snapshots are taken together so that ticket order
	// matches input order.
	st.mu.Lock()
	cat, err := c.catalog.Current()
	if err != nil {
		st.mu.Unlock()
		c.metrics.RecordEvaluationError(StageCatalog)
		return nil, err
	}
	values, err := c.values.Snapshot(dossierID)
	if err != nil {
		st.mu.Unlock()
		return nil, err
	}
	st.started++
	ticket := st.started
	st.inflight++
	processIDs := append([]string(nil), st.processIDs...)
	st.mu.Unlock()

	ev := &Evaluation{ID: uuid.New(), DossierID: dossierID, Ticket: ticket}
	defer func() {
		st.mu.Lock()
		st.inflight--
		st.mu.Unlock()
	}()

	ctx = logging.WithDossierID(ctx, dossierID)
	ctx = logging.WithEvaluationID(ctx, ev.ID.String())
	ctx = logging.WithCatalogVersion(ctx, cat.Version)
	ctx, span := c.tracer.Start(ctx, "dossier.evaluate")
	defer span.End()
	tracing.SetDossierAttributes(span, dossierID, values.Version(), processIDs)
	tracing.SetCatalogAttributes(span, cat.Version)

	processes, err := cat.ProcessesFor(processIDs)
	if err != nil {
		c.metrics.RecordEvaluationError(StageCatalog)
		tracing.SetStatus(span, err)
		return nil, fmt.Errorf("evaluate dossier %s: %w", dossierID, err)
	}

	set, err := c.engine.Evaluate(ctx, evaluation.Input{
		ProcessIDs: processIDs,
		Registry:   cat.Registry,
		Rules:      cat.Rules,
		Values:     values,
	})
	if err != nil {
		c.metrics.RecordEvaluationError(StageEngine)
		tracing.SetStatus(span, err)
		return nil, fmt.Errorf("evaluate dossier %s: %w", dossierID, err)
	}

	ev.Results = set
	threshold := c.policy.ThresholdFor(processes)
	ev.Decision = c.policy.Decide(decision.Input{
		Results:          set.Results,
		RequiredFields:   decision.RequiredFieldsFor(cat.Registry, values),
		MissingDocuments: missingDocuments(processes, values),
		Threshold:        &threshold,
	})
	ev.Status = StatusFor(ev.Decision.Outcome)
	tracing.SetResultAttributes(span, len(set.Results), set.Count(evaluation.StatusError),
		string(ev.Decision.Outcome), ev.Decision.MinConfidence)

	if c.beforeCommit != nil {
		c.beforeCommit(ticket)
	}

	if err := c.commit(ctx, st, ev); err != nil {
		c.metrics.RecordEvaluationError(StageStorage)
		tracing.SetStatus(span, err)
		return nil, err
	}
	ev.Duration = time.Since(start)

	if ev.Superseded {
		c.metrics.RecordSuperseded()
		tracing.SetSuperseded(span)
		c.logger.DebugContext(ctx, "evaluation superseded", "ticket", ticket)
		return ev, nil
	}

	c.metrics.RecordEvaluation(ev.Decision.Outcome, ev.Duration)
	c.logger.InfoContext(ctx, "dossier evaluated",
		"input_version", set.InputVersion,
		"outcome", ev.Decision.Outcome,
		"status", ev.Status,
		"min_confidence", ev.Decision.MinConfidence,
		"duration", ev.Duration,
	)
	return ev, nil
}

// commit stores ev under the dossier lock unless a later run has committed.
func (c *Coordinator) commit(ctx context.Context, st *dossierState, ev *Evaluation) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.committed > ev.Ticket {
		ev.Superseded = true
		return nil
	}
	err := c.results.Replace(ctx, storage.NewRecord(ev.Results, ev.Decision))
	if errors.Is(err, storage.ErrStaleVersion) {
		ev.Superseded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("store evaluation of %s: %w", ev.DossierID, err)
	}
	st.committed = ev.Ticket
	st.status = ev.Status
	return nil
}

// Current returns the dossier state and its stored evaluation.
func (c *Coordinator) Current(ctx context.Context, dossierID string) (*State, error) {
	st, err := c.state(dossierID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	out := &State{
		DossierID:    dossierID,
		ProcessIDs:   append([]string(nil), st.processIDs...),
		Status:       st.status,
		InputVersion: c.values.Version(dossierID),
	}
	if st.inflight > 0 {
		out.Status = StatusProcessing
	}
	st.mu.Unlock()

	rec, err := c.results.Get(ctx, dossierID)
	switch {
	case err == nil:
		out.Record = rec
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}
	return out, nil
}

// Dossiers returns the ids of every open dossier, sorted.
func (c *Coordinator) Dossiers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.dossiers))
	for id := range c.dossiers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CatalogReloaded points the value store at the new registry. Register it
// with catalog.Manager.OnReload.
func (c *Coordinator) CatalogReloaded(snap *catalog.Snapshot) {
	c.values.SetRegistry(snap.Registry)
	c.logger.Info("catalog applied to dossiers", "catalog_version", snap.Version, "dossiers", len(c.Dossiers()))
}

// ReevaluateAll re-runs every open dossier against the current catalog.
// Failures are collected and do not stop the sweep.
func (c *Coordinator) ReevaluateAll(ctx context.Context) error {
	var errs []error
	for _, id := range c.Dossiers() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.Evaluate(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) state(dossierID string) (*dossierState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.dossiers[dossierID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDossier, dossierID)
	}
	return st, nil
}

// missingDocuments merges the document requirement problems of processes.
func missingDocuments(processes []*rules.Process, docs rules.DocumentCounter) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range processes {
		for _, m := range p.MissingDocuments(docs) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}
