package catalog

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ceeval-hq/verdict/pkg/rules"
	rerrors "ceeval-hq/verdict/pkg/rules/errors"
	"ceeval-hq/verdict/pkg/rules/parser"
	"ceeval-hq/verdict/pkg/rules/validator"
	"ceeval-hq/verdict/pkg/schema"
)

// Extensions lists the file extensions read from a catalog directory.
var Extensions = []string{".yaml", ".yml"}

// LoaderConfig tunes a Loader.
type LoaderConfig struct {
	// MaxFileSize bounds each catalog file.
	MaxFileSize int64

	// Strict rejects a catalog that has warnings.
	Strict bool

	// Checker compiles expression rules during validation. nil accepts them
	// unchecked.
	Checker validator.ExpressionChecker
}

// Loader reads catalog files and assembles validated snapshots.
type Loader struct {
	config LoaderConfig
	parser *parser.Parser
	logger *slog.Logger
	now    func() time.Time
}

// NewLoader creates a loader.
func NewLoader(cfg LoaderConfig, logger *slog.Logger) *Loader {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = parser.DefaultMaxFileSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		config: cfg,
		parser: parser.NewParser().WithMaxFileSize(cfg.MaxFileSize),
		logger: logger,
		now:    time.Now,
	}
}

// Load reads the catalog at path, a single file or a directory searched
// recursively for YAML files, and returns a validated snapshot. Parse and
// validation diagnostics of every file are collected into one
// *rules/errors.List.
func (l *Loader) Load(path string) (*Snapshot, error) {
	files, err := l.files(path)
	if err != nil {
		return nil, err
	}

	diags := rerrors.NewList()
	hash := sha256.New()
	var parsed []*parser.Catalog
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, &LoadError{Path: f, Message: "cannot read file", Cause: err}
		}
		fmt.Fprintf(hash, "%s\x00", filepath.Base(f))
		hash.Write(data)

		cat, err := l.parser.Parse(f)
		if err != nil {
			var list *rerrors.List
			if errors.As(err, &list) {
				diags.Merge(list)
				continue
			}
			return nil, err
		}
		parsed = append(parsed, cat)
	}
	if diags.HasErrors() {
		return nil, diags
	}

	snap, err := l.assemble(parsed, diags)
	if err != nil {
		return nil, err
	}
	snap.Version = fmt.Sprintf("%x", hash.Sum(nil))[:16]
	snap.Sources = files

	l.logger.Debug("catalog loaded",
		"path", path,
		"files", len(files),
		"version", snap.Version,
		"rules", snap.Rules.Len(),
		"warnings", len(snap.Warnings),
	)
	return snap, nil
}

// LoadBytes assembles a snapshot from one in-memory catalog.
func (l *Loader) LoadBytes(data []byte, source string) (*Snapshot, error) {
	cat, err := l.parser.ParseBytes(data, source)
	if err != nil {
		return nil, err
	}
	snap, err := l.assemble([]*parser.Catalog{cat}, rerrors.NewList())
	if err != nil {
		return nil, err
	}
	snap.Version = fmt.Sprintf("%x", sha256.Sum256(data))[:16]
	snap.Sources = []string{source}
	return snap, nil
}

// assemble merges parsed catalogs, builds the registry and rule set and runs
// semantic validation. diags may already hold warnings.
func (l *Loader) assemble(parsed []*parser.Catalog, diags *rerrors.List) (*Snapshot, error) {
	var (
		types     []*schema.DocumentType
		processes []*rules.Process
		ruleList  []*rules.Rule
	)
	for _, c := range parsed {
		diags.Items = append(diags.Items, c.Warnings...)
		types = append(types, c.DocumentTypes...)
		processes = append(processes, c.Processes...)
		ruleList = append(ruleList, c.Rules...)
	}

	registry, err := schema.NewRegistry(types...)
	if err != nil {
		diags.Add(rerrors.Semantic, err.Error(), rules.Location{})
		return nil, diags
	}

	diags.Merge(validator.New(l.config.Checker).Validate(registry, ruleList, processes))
	if diags.HasErrors() {
		return nil, diags
	}
	if l.config.Strict && len(diags.Warnings()) > 0 {
		strict := rerrors.NewList()
		for _, w := range diags.Warnings() {
			strict.Add(w.Kind, w.Message+" (strict mode)", w.Location).WithSuggestion(w.Suggestion)
		}
		return nil, strict
	}

	ruleSet, err := rules.NewRuleSet(ruleList...)
	if err != nil {
		return nil, &LoadError{Message: "invalid rule set", Cause: err}
	}

	snap := &Snapshot{
		Registry:  registry,
		Rules:     ruleSet,
		Processes: processes,
		LoadedAt:  l.now(),
		Warnings:  diags.Warnings(),
		byProcess: make(map[string]*rules.Process, len(processes)),
	}
	for _, p := range processes {
		snap.byProcess[p.ID] = p
	}
	return snap, nil
}

// files lists the catalog files under path in lexical order. Hidden files and
// directories are skipped.
func (l *Loader) files(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "cannot access catalog", Cause: err}
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && hasCatalogExtension(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{Path: path, Message: "cannot walk catalog directory", Cause: err}
	}
	if len(files) == 0 {
		return nil, &LoadError{Path: path, Message: "no catalog files found"}
	}
	sort.Strings(files)
	return files, nil
}

func hasCatalogExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
