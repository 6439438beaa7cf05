package dossier

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"ceeval-hq/verdict/pkg/fieldvalue"
	"ceeval-hq/verdict/pkg/schema"
)

// File is a dossier described in YAML, as exported by the extraction
// pipeline:
//
//	id: D-2024-0042
//	processes: [bar-th-171]
//	documents:
//	  - id: devis-1
//	    type: DEVIS
//	    fields:
//	      prime_cee: {value: "2 500,00 €", confidence: 97}
//	      client_name: SARL Dupont
//	    overrides:
//	      prime_cee: "2500"
type File struct {
	ID        string         `yaml:"id"`
	Processes []string       `yaml:"processes"`
	Documents []DocumentFile `yaml:"documents"`
}

// DocumentFile is one document instance of a File.
type DocumentFile struct {
	ID          string                `yaml:"id"`
	Type        string                `yaml:"type"`
	SubmittedAt time.Time             `yaml:"submitted_at"`
	Fields      map[string]FieldEntry `yaml:"fields"`

	// Overrides are human corrections, keyed by field name.
	Overrides map[string]string `yaml:"overrides"`
}

// FieldEntry is an extracted value. A bare scalar is a value with full
// confidence.
type FieldEntry struct {
	Value      string  `yaml:"value"`
	Confidence float64 `yaml:"confidence"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (e *FieldEntry) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		e.Value = n.Value
		e.Confidence = 100
		return nil
	}
	type plain FieldEntry
	p := plain{Confidence: 100}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*e = FieldEntry(p)
	return nil
}

// ReadFile parses a dossier file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFile(data, path)
}

// ParseFile parses dossier YAML. source names the input in errors.
func ParseFile(data []byte, source string) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if f.ID == "" {
		return nil, fmt.Errorf("%s: dossier id is required", source)
	}
	seen := make(map[string]bool, len(f.Documents))
	for i, d := range f.Documents {
		if d.ID == "" || d.Type == "" {
			return nil, fmt.Errorf("%s: document %d requires id and type", source, i+1)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("%s: duplicate document id %q", source, d.ID)
		}
		seen[d.ID] = true
	}
	return &f, nil
}

// Apply feeds f into c: opens the dossier, adds its documents, records the
// extracted values and then the overrides. Each step re-evaluates; the
// returned evaluation is the last one.
func (f *File) Apply(ctx context.Context, c *Coordinator) (*Evaluation, error) {
	if err := c.Open(ctx, f.ID, f.Processes); err != nil {
		return nil, err
	}

	var last *Evaluation
	keep := func(ev *Evaluation, err error) error {
		if err != nil {
			return err
		}
		last = ev
		return nil
	}

	for _, d := range f.Documents {
		if err := keep(c.AddDocument(ctx, f.ID, d.ID, d.Type, d.SubmittedAt)); err != nil {
			return nil, fmt.Errorf("document %s: %w", d.ID, err)
		}
		code := schema.NormalizeCode(d.Type)
		for _, name := range sortedKeys(d.Fields) {
			entry := d.Fields[name]
			err := keep(c.RecordFieldValue(ctx, fieldvalue.FieldValue{
				DossierID:          f.ID,
				DocumentInstanceID: d.ID,
				Path:               schema.FieldPath{DocumentType: code, Field: name},
				RawValue:           entry.Value,
				Confidence:         entry.Confidence,
			}))
			if err != nil {
				return nil, fmt.Errorf("document %s field %s: %w", d.ID, name, err)
			}
		}
	}

	for _, d := range f.Documents {
		code := schema.NormalizeCode(d.Type)
		for _, name := range sortedKeys(d.Overrides) {
			path := schema.FieldPath{DocumentType: code, Field: name}
			if err := keep(c.Override(ctx, f.ID, d.ID, path, d.Overrides[name])); err != nil {
				return nil, fmt.Errorf("document %s override %s: %w", d.ID, name, err)
			}
		}
	}

	if last == nil {
		return c.Evaluate(ctx, f.ID)
	}
	return last, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
