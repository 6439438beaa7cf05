package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ceeval-hq/verdict/pkg/config"
	"ceeval-hq/verdict/pkg/evaluation"
	rerrors "ceeval-hq/verdict/pkg/rules/errors"
)

const documentsYAML = `
document_types:
  - code: DEVIS
    name: Devis
    fields:
      - internal_name: prime_cee
        data_type: currency
        required: true
      - internal_name: date_devis
        data_type: date
  - code: FACTURE
    name: Facture
    fields:
      - internal_name: prime_cee
        data_type: currency
processes:
  - id: bar-th-171
    code: BAR-TH-171
    auto_approval_threshold: 92
    required_documents:
      - {document_type: DEVIS, required: true}
`

const rulesYAML = `
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
  - code: PRIME_POSITIVE
    severity: warning
    expression: "devis.prime_cee > 0.0"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func catalogDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "01-documents.yaml", documentsYAML)
	writeFile(t, dir, "rules/02-rules.yml", rulesYAML)
	writeFile(t, dir, "README.md", "not a catalog")
	writeFile(t, dir, ".hidden/broken.yaml", "rules: [")
	return dir
}

func newLoader(strict bool) *Loader {
	return NewLoader(LoaderConfig{Strict: strict, Checker: evaluation.ExpressionChecker{}}, nil)
}

func TestLoader_Directory(t *testing.T) {
	snap, err := newLoader(false).Load(catalogDir(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(snap.Sources) != 2 {
		t.Errorf("Sources = %v, want 2 yaml files", snap.Sources)
	}
	if !snap.Registry.Has("devis") || !snap.Registry.Has("facture") {
		t.Errorf("registry codes = %v", snap.Registry.Codes())
	}
	if snap.Rules.Len() != 2 {
		t.Errorf("Rules.Len() = %d, want 2", snap.Rules.Len())
	}
	p, ok := snap.Process("bar-th-171")
	if !ok {
		t.Fatal("Process(bar-th-171) not found")
	}
	if thr, set := p.Threshold(); !set || thr != 92 {
		t.Errorf("Threshold() = %v, %v, want 92", thr, set)
	}
	if len(snap.Version) != 16 {
		t.Errorf("Version = %q", snap.Version)
	}

	st := snap.Stats()
	if st.DocumentTypes != 2 || st.Fields != 3 || st.Expressions != 1 || st.ActiveRules != 2 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestLoader_VersionTracksContent(t *testing.T) {
	dir := catalogDir(t)
	l := newLoader(false)

	a, err := l.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	b, err := l.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if a.Version != b.Version {
		t.Errorf("unchanged catalog changed version: %s -> %s", a.Version, b.Version)
	}

	writeFile(t, dir, "rules/02-rules.yml", strings.Replace(rulesYAML, "severity: warning", "severity: info", 1))
	c, err := l.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.Version == a.Version {
		t.Error("edited catalog kept its version")
	}
}

func TestLoader_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		wantKind rerrors.Kind
	}{
		{
			name:     "syntax error",
			files:    map[string]string{"a.yaml": documentsYAML, "b.yaml": "rules: [\n"},
			wantKind: rerrors.Syntax,
		},
		{
			name: "unknown field",
			files: map[string]string{"a.yaml": documentsYAML, "b.yaml": `
rules:
  - code: BAD
    condition:
      - {field: devis.prime, operator: is_empty}
`},
			wantKind: rerrors.Semantic,
		},
		{
			name: "expression does not compile",
			files: map[string]string{"a.yaml": documentsYAML, "b.yaml": `
rules:
  - code: BAD
    expression: "devis.prime_cee >"
`},
			wantKind: rerrors.Semantic,
		},
		{
			name: "duplicate rule across files",
			files: map[string]string{"a.yaml": documentsYAML + rulesYAML, "b.yaml": `
rules:
  - code: PRIME_POSITIVE
    expression: "true"
`},
			wantKind: rerrors.Semantic,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}
			_, err := newLoader(false).Load(dir)
			var list *rerrors.List
			if !errors.As(err, &list) {
				t.Fatalf("Load() error = %v, want *errors.List", err)
			}
			if !list.HasKind(tt.wantKind) {
				t.Errorf("diagnostics = %v, want kind %s", list, tt.wantKind)
			}
		})
	}
}

func TestLoader_Strict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "catalog.yaml", documentsYAML+`
rules:
  - code: PRIME_POSITIVE
    colour: red
    expression: "devis.prime_cee > 0.0"
`)

	snap, err := newLoader(false).Load(dir)
	if err != nil {
		t.Fatalf("lenient Load() error = %v", err)
	}
	if len(snap.Warnings) == 0 {
		t.Error("unknown key produced no warning")
	}

	if _, err := newLoader(true).Load(dir); err == nil {
		t.Error("strict Load() error = nil, want warning promoted to error")
	}
}

func TestLoader_MissingPath(t *testing.T) {
	_, err := newLoader(false).Load(filepath.Join(t.TempDir(), "nope"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Load() error = %v, want *LoadError", err)
	}

	_, err = newLoader(false).Load(t.TempDir())
	if !errors.As(err, &loadErr) || !strings.Contains(loadErr.Message, "no catalog files") {
		t.Errorf("empty dir error = %v", err)
	}
}

type recorder struct {
	mu      sync.Mutex
	results []bool
}

func (r *recorder) RecordCatalogReload(_ string, ok bool, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, ok)
}

func newManager(t *testing.T, cfg config.CatalogConfig, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(cfg, newLoader(false), nil, opts...)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestManager_ReloadKeepsPreviousOnFailure(t *testing.T) {
	dir := catalogDir(t)
	rec := &recorder{}
	m := newManager(t, config.CatalogConfig{Mode: "file", Path: dir}, WithRecorder(rec))

	if _, err := m.Current(); !errors.Is(err, ErrNoCatalog) {
		t.Errorf("Current() before load error = %v, want ErrNoCatalog", err)
	}

	var notified []string
	m.OnReload(func(s *Snapshot) { notified = append(notified, s.Version) })

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	first, _ := m.Current()

	writeFile(t, dir, "rules/02-rules.yml", "rules:\n  - code: BROKEN\n    expression: \"devis.nope ==\"\n")
	if err := m.Reload(context.Background()); err == nil {
		t.Fatal("Reload() of broken catalog error = nil")
	}
	if m.LastError() == nil {
		t.Error("LastError() = nil after failed reload")
	}
	current, err := m.Current()
	if err != nil || current != first {
		t.Errorf("Current() after failed reload = %v, %v; want previous snapshot", current, err)
	}

	writeFile(t, dir, "rules/02-rules.yml", rulesYAML+"  - code: EXTRA\n    expression: \"true\"\n")
	if err := m.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	current, _ = m.Current()
	if current.Rules.Len() != 3 || m.LastError() != nil {
		t.Errorf("after good reload: rules = %d, last error = %v", current.Rules.Len(), m.LastError())
	}

	if len(notified) != 2 {
		t.Errorf("OnReload called %d times, want 2", len(notified))
	}
	if want := []bool{true, false, true}; len(rec.results) != 3 || rec.results[1] != want[1] {
		t.Errorf("recorded %v, want %v", rec.results, want)
	}
}

func TestManager_UnknownMode(t *testing.T) {
	if _, err := NewManager(config.CatalogConfig{Mode: "s3"}, newLoader(false), nil); err == nil {
		t.Error("NewManager() error = nil for unknown mode")
	}
}

func TestManager_WatchReloadsOnChange(t *testing.T) {
	dir := catalogDir(t)
	m := newManager(t, config.CatalogConfig{Mode: "file", Path: dir, Watch: true, Debounce: 20 * time.Millisecond})
	if err := m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Snapshot, 4)
	m.OnReload(func(s *Snapshot) { reloaded <- s })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register directories.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "rules/02-rules.yml", rulesYAML+"  - code: EXTRA\n    expression: \"true\"\n")

	select {
	case s := <-reloaded:
		if s.Rules.Len() != 3 {
			t.Errorf("reloaded catalog has %d rules, want 3", s.Rules.Len())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("catalog was not reloaded after a file change")
	}
}

func TestManager_WatchDisabled(t *testing.T) {
	m := newManager(t, config.CatalogConfig{Mode: "file", Path: catalogDir(t)})
	if err := m.Watch(context.Background()); err != nil {
		t.Errorf("Watch() with watching disabled error = %v", err)
	}
}

func TestDebouncer(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)
	var mu sync.Mutex
	calls := 0
	for i := 0; i < 5; i++ {
		d.trigger(func() {
			mu.Lock()
			calls++
			mu.Unlock()
		})
	}
	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}
