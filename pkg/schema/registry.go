package schema

import (
	"fmt"
	"regexp"
	"sort"
)

// Registry is an immutable index of document types and their fields.
type Registry struct {
	types []*DocumentType
	byKey map[string]*DocumentType
	paths []string
}

// NewRegistry validates and indexes the given document types.
func NewRegistry(types ...*DocumentType) (*Registry, error) {
	r := &Registry{
		types: make([]*DocumentType, 0, len(types)),
		byKey: make(map[string]*DocumentType, len(types)),
	}

	for _, dt := range types {
		if dt == nil {
			continue
		}
		key := dt.PathCode()
		if !segmentPattern.MatchString(key) {
			return nil, &SchemaError{DocumentType: dt.Code, Reason: "code must be alphanumeric snake-case"}
		}
		if _, dup := r.byKey[key]; dup {
			return nil, &SchemaError{DocumentType: dt.Code, Reason: "duplicate document type code"}
		}

		dt.byName = make(map[string]*FieldSchema, len(dt.Fields))
		for _, f := range dt.Fields {
			if err := checkField(dt, f); err != nil {
				return nil, err
			}
			if _, dup := dt.byName[f.InternalName]; dup {
				return nil, &SchemaError{DocumentType: dt.Code, Field: f.InternalName, Reason: "duplicate field"}
			}
			dt.byName[f.InternalName] = f
			r.paths = append(r.paths, key+"."+f.InternalName)
		}

		r.types = append(r.types, dt)
		r.byKey[key] = dt
	}

	sort.Strings(r.paths)
	return r, nil
}

func checkField(dt *DocumentType, f *FieldSchema) error {
	if f == nil {
		return &SchemaError{DocumentType: dt.Code, Reason: "nil field"}
	}
	if !IsValidFieldName(f.InternalName) {
		return &SchemaError{DocumentType: dt.Code, Field: f.InternalName, Reason: "internal name must be lowercase snake-case"}
	}
	if f.ConfidenceThreshold < 0 || f.ConfidenceThreshold > 100 {
		return &SchemaError{DocumentType: dt.Code, Field: f.InternalName, Reason: fmt.Sprintf("confidence threshold %v outside 0-100", f.ConfidenceThreshold)}
	}
	if f.ValidationRegex != "" {
		re, err := regexp.Compile(f.ValidationRegex)
		if err != nil {
			return &SchemaError{DocumentType: dt.Code, Field: f.InternalName, Reason: fmt.Sprintf("invalid validation regex: %v", err)}
		}
		f.regex = re
	}
	if f.DataType == "" {
		f.DataType = DataTypeText
	}
	return nil
}

// GetSchema returns the document type with the given code.
func (r *Registry) GetSchema(code string) (*DocumentType, error) {
	dt, ok := r.byKey[NormalizeCode(code)]
	if !ok {
		return nil, &NotFoundError{Kind: "document type", Key: code}
	}
	return dt, nil
}

// Has reports whether a document type code is registered.
func (r *Registry) Has(code string) bool {
	_, ok := r.byKey[NormalizeCode(code)]
	return ok
}

// ResolveField returns the schema of the field named by path.
func (r *Registry) ResolveField(path string) (*FieldSchema, error) {
	p, err := ParseFieldPath(path)
	if err != nil {
		return nil, err
	}
	return r.Resolve(p)
}

// Resolve is ResolveField for an already parsed path.
func (r *Registry) Resolve(p FieldPath) (*FieldSchema, error) {
	dt, ok := r.byKey[p.DocumentType]
	if !ok {
		return nil, &FieldPathError{Path: p.String(), Reason: fmt.Sprintf("unknown document type %q", p.DocumentType)}
	}
	f, ok := dt.byName[p.Field]
	if !ok {
		return nil, &FieldPathError{Path: p.String(), Reason: fmt.Sprintf("document type %q has no field %q", dt.Code, p.Field)}
	}
	return f, nil
}

// RequiredFields returns the required field paths of the given document
// types, in schema order. Unknown codes are skipped.
func (r *Registry) RequiredFields(codes ...string) []FieldPath {
	var out []FieldPath
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		key := NormalizeCode(code)
		if seen[key] {
			continue
		}
		seen[key] = true

		dt, ok := r.byKey[key]
		if !ok {
			continue
		}
		for _, f := range dt.Fields {
			if f.Required {
				out = append(out, FieldPath{DocumentType: key, Field: f.InternalName})
			}
		}
	}
	return out
}

// FieldPaths returns every registered field path, sorted.
func (r *Registry) FieldPaths() []string {
	out := make([]string, len(r.paths))
	copy(out, r.paths)
	return out
}

// DocumentTypes returns the registered types in registration order.
func (r *Registry) DocumentTypes() []*DocumentType {
	out := make([]*DocumentType, len(r.types))
	copy(out, r.types)
	return out
}

// Codes returns the lower-cased codes of every registered type.
func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.types))
	for _, dt := range r.types {
		out = append(out, dt.PathCode())
	}
	return out
}

// CrossReferences returns the informational cross-reference edges declared
// by the field at path. Cycles are allowed and never followed.
func (r *Registry) CrossReferences(path string) ([]FieldPath, error) {
	f, err := r.ResolveField(path)
	if err != nil {
		return nil, err
	}
	out := make([]FieldPath, 0, len(f.CrossReferenceFields))
	for _, ref := range f.CrossReferenceFields {
		p, err := ParseFieldPath(ref)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
