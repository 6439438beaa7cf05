package evaluation

import (
	"fmt"
	"strings"

	"ceeval-hq/verdict/pkg/fieldvalue"
	"ceeval-hq/verdict/pkg/schema"
)

// lookupState says whether a field path produced a usable value.
type lookupState int

const (
	lookupFound lookupState = iota
	lookupAbsent
	lookupConflict
)

// lookup is the resolution of one field path.
type lookup struct {
	state lookupState
	value fieldvalue.FieldValue
	note  string
}

// Resolver resolves field paths against a dossier view.
type Resolver struct {
	registry *schema.Registry
	view     View
	policy   InstancePolicy
}

// NewResolver returns a resolver reading view. A nil registry skips
// path validation.
func NewResolver(registry *schema.Registry, view View, policy InstancePolicy) *Resolver {
	if !policy.Valid() {
		policy = InstanceFirst
	}
	return &Resolver{registry: registry, view: view, policy: policy}
}

// parse validates a raw path and, when a registry is set, resolves it.
func (r *Resolver) parse(raw string) (schema.FieldPath, error) {
	p, err := schema.ParseFieldPath(raw)
	if err != nil {
		return schema.FieldPath{}, err
	}
	if r.registry != nil {
		if _, err := r.registry.Resolve(p); err != nil {
			return schema.FieldPath{}, err
		}
	}
	return p, nil
}

// Lookup returns the value of path according to the instance policy.
func (r *Resolver) Lookup(path schema.FieldPath) (fieldvalue.FieldValue, bool) {
	l := r.lookup(path)
	return l.value, l.state == lookupFound
}

func (r *Resolver) lookup(path schema.FieldPath) lookup {
	if r.policy == InstanceFirst {
		v, ok := r.view.Latest(path)
		if !ok {
			return lookup{state: lookupAbsent, note: fmt.Sprintf("%s has no value", path)}
		}
		return lookup{state: lookupFound, value: v}
	}

	vals := r.view.ValuesFor(path)
	if len(vals) == 0 {
		return lookup{state: lookupAbsent, note: fmt.Sprintf("%s has no value", path)}
	}
	first := vals[0]
	for _, v := range vals[1:] {
		if !evaluateEqual(first.TypedValue, v.TypedValue) {
			return lookup{
				state: lookupConflict,
				note: fmt.Sprintf("%s differs between instances %s (%s) and %s (%s)",
					path, first.DocumentInstanceID, toString(first.TypedValue),
					v.DocumentInstanceID, toString(v.TypedValue)),
			}
		}
	}
	return lookup{state: lookupFound, value: first}
}

// values returns a map of document code to field name to typed value for
// every path present in the view, under the instance policy. Conflicting
// paths are left out and reported.
func (r *Resolver) values(paths []schema.FieldPath) (map[string]map[string]any, []string) {
	out := make(map[string]map[string]any)
	for _, code := range r.view.DocumentTypes() {
		out[code] = make(map[string]any)
	}
	var notes []string
	for _, p := range paths {
		l := r.lookup(p)
		switch l.state {
		case lookupFound:
			doc, ok := out[p.DocumentType]
			if !ok {
				doc = make(map[string]any)
				out[p.DocumentType] = doc
			}
			doc[p.Field] = l.value.TypedValue
		default:
			notes = append(notes, l.note)
		}
	}
	return out, notes
}

// render formats the value of path for messages, or "?" when absent.
func (r *Resolver) render(raw string) string {
	p, err := schema.ParseFieldPath(raw)
	if err != nil {
		return "?"
	}
	l := r.lookup(p)
	if l.state != lookupFound {
		return "?"
	}
	if s := strings.TrimSpace(toString(l.value.TypedValue)); s != "" {
		return s
	}
	return l.value.RawValue
}
