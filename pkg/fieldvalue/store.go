package fieldvalue

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ceeval-hq/verdict/pkg/schema"
)

var (
	// ErrDuplicateInstance is returned when a document instance id is reused.
	ErrDuplicateInstance = errors.New("duplicate document instance")

	// ErrInvalidValue is returned for values the store refuses to record.
	ErrInvalidValue = errors.New("invalid field value")
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store holds document instances and field values for many dossiers.
// It is safe for concurrent use.
type Store struct {
	registry *schema.Registry
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	dossiers map[string]*dossierState
	seq      uint64
}

type dossierState struct {
	version   uint64
	updatedAt time.Time
	instances []*DocumentInstance
	byID      map[string]*DocumentInstance
	// values per instance id, then per path; each slice in record order.
	values map[string]map[schema.FieldPath][]FieldValue
}

// NewStore creates an empty store validating paths against registry.
func NewStore(registry *schema.Registry, opts ...Option) *Store {
	s := &Store{
		registry: registry,
		logger:   slog.Default(),
		now:      time.Now,
		dossiers: make(map[string]*dossierState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRegistry swaps the registry used to validate new values. Values already
// recorded are kept.
func (s *Store) SetRegistry(registry *schema.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = registry
}

// Open creates an empty dossier. Opening a known dossier is a no-op.
func (s *Store) Open(dossierID string) error {
	if dossierID == "" {
		return fmt.Errorf("%w: dossier id is required", ErrInvalidValue)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dossiers[dossierID]; ok {
		return nil
	}
	s.dossier(dossierID).touch(s.now())
	return nil
}

// AddInstance registers a document instance for a dossier, creating the
// dossier on first use. Submission order is the order of calls.
func (s *Store) AddInstance(dossierID, instanceID, documentType string, submittedAt time.Time) (*DocumentInstance, error) {
	if dossierID == "" || instanceID == "" {
		return nil, fmt.Errorf("%w: dossier and instance ids are required", ErrInvalidValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dt, err := s.registry.GetSchema(documentType)
	if err != nil {
		return nil, err
	}

	d := s.dossier(dossierID)
	if _, dup := d.byID[instanceID]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateInstance, instanceID)
	}

	if submittedAt.IsZero() {
		submittedAt = s.now()
	}
	s.seq++
	inst := &DocumentInstance{
		ID:           instanceID,
		DossierID:    dossierID,
		DocumentType: dt.PathCode(),
		SubmittedAt:  submittedAt,
		seq:          s.seq,
	}
	d.instances = append(d.instances, inst)
	d.byID[instanceID] = inst
	d.values[instanceID] = make(map[schema.FieldPath][]FieldValue)
	d.touch(s.now())

	s.logger.Debug("document instance added",
		"dossier_id", dossierID,
		"instance_id", instanceID,
		"document_type", inst.DocumentType,
	)
	return inst, nil
}

// Record appends a field value. The path must resolve in the registry and
// belong to the instance's document type. TypedValue is derived from
// RawValue when unset.
func (s *Store) Record(v FieldValue) (FieldValue, error) {
	if v.Confidence < 0 || v.Confidence > 100 {
		return FieldValue{}, fmt.Errorf("%w: confidence %v outside 0-100", ErrInvalidValue, v.Confidence)
	}
	if v.Provenance == "" {
		v.Provenance = ProvenanceExtraction
	}
	if !v.Provenance.Valid() {
		return FieldValue{}, fmt.Errorf("%w: unknown provenance %q", ErrInvalidValue, v.Provenance)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	field, err := s.registry.Resolve(v.Path)
	if err != nil {
		return FieldValue{}, err
	}

	d, ok := s.dossiers[v.DossierID]
	if !ok {
		return FieldValue{}, &schema.NotFoundError{Kind: "dossier", Key: v.DossierID}
	}
	inst, ok := d.byID[v.DocumentInstanceID]
	if !ok {
		return FieldValue{}, &schema.NotFoundError{Kind: "document instance", Key: v.DocumentInstanceID}
	}
	if inst.DocumentType != v.Path.DocumentType {
		return FieldValue{}, &schema.FieldPathError{
			Path:   v.Path.String(),
			Reason: fmt.Sprintf("instance %s is a %s document", inst.ID, inst.DocumentType),
		}
	}

	if v.TypedValue == nil {
		v.TypedValue = field.Coerce(v.RawValue)
	}
	v.Violations = field.CheckConstraints(v.TypedValue)
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.ProducedAt.IsZero() {
		v.ProducedAt = s.now()
	}
	s.seq++
	v.seq = s.seq

	d.values[inst.ID][v.Path] = append(d.values[inst.ID][v.Path], v)
	d.touch(s.now())

	if len(v.Violations) > 0 {
		s.logger.Debug("field value violates schema constraints",
			"dossier_id", v.DossierID,
			"path", v.Path.String(),
			"violations", v.Violations,
		)
	}
	return v, nil
}

// ValuesFor returns the resolved value of path for each instance that has
// one, in instance submission order.
func (s *Store) ValuesFor(dossierID string, path schema.FieldPath) []FieldValue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dossiers[dossierID]
	if !ok {
		return nil
	}
	return d.resolvedValues(path)
}

// Latest returns the resolved value of the first instance, in submission
// order, that has a value for path.
func (s *Store) Latest(dossierID string, path schema.FieldPath) (FieldValue, bool) {
	vals := s.ValuesFor(dossierID, path)
	if len(vals) == 0 {
		return FieldValue{}, false
	}
	return vals[0], true
}

// Version returns the current version of a dossier, or 0 when unknown.
func (s *Store) Version(dossierID string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.dossiers[dossierID]; ok {
		return d.version
	}
	return 0
}

// Snapshot captures an immutable view of a dossier.
func (s *Store) Snapshot(dossierID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dossiers[dossierID]
	if !ok {
		return nil, &schema.NotFoundError{Kind: "dossier", Key: dossierID}
	}

	snap := &Snapshot{
		dossierID: dossierID,
		version:   d.version,
		asOf:      d.updatedAt,
		instances: make([]DocumentInstance, 0, len(d.instances)),
		values:    make(map[schema.FieldPath][]FieldValue),
	}
	paths := make(map[schema.FieldPath]struct{})
	for _, inst := range d.instances {
		snap.instances = append(snap.instances, *inst)
		for p := range d.values[inst.ID] {
			paths[p] = struct{}{}
		}
	}
	for p := range paths {
		snap.values[p] = d.resolvedValues(p)
	}
	return snap, nil
}

// Dossiers returns the ids of every known dossier, sorted.
func (s *Store) Dossiers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.dossiers))
	for id := range s.dossiers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) dossier(id string) *dossierState {
	d, ok := s.dossiers[id]
	if !ok {
		d = &dossierState{
			byID:   make(map[string]*DocumentInstance),
			values: make(map[string]map[schema.FieldPath][]FieldValue),
		}
		s.dossiers[id] = d
	}
	return d
}

func (d *dossierState) touch(now time.Time) {
	d.version++
	d.updatedAt = now
}

func (d *dossierState) resolvedValues(path schema.FieldPath) []FieldValue {
	var out []FieldValue
	for _, inst := range d.instances {
		if inst.DocumentType != path.DocumentType {
			continue
		}
		vals := d.values[inst.ID][path]
		if len(vals) == 0 {
			continue
		}
		best := vals[0]
		for _, v := range vals[1:] {
			if v.supersedes(best) {
				best = v
			}
		}
		out = append(out, best)
	}
	return out
}
