package schema

import (
	"regexp"
	"strings"
)

// segmentPattern matches one snake-case path segment.
var segmentPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// FieldPath identifies one field of one document type.
type FieldPath struct {
	DocumentType string
	Field        string
}

// String renders the path as "<doccode>.<fieldname>".
func (p FieldPath) String() string {
	return p.DocumentType + "." + p.Field
}

// IsZero reports whether the path is empty.
func (p FieldPath) IsZero() bool {
	return p.DocumentType == "" && p.Field == ""
}

// ParseFieldPath parses a "<doccode>.<fieldname>" path. The document code is
// lower-cased; the field name must already be snake-case.
func ParseFieldPath(s string) (FieldPath, error) {
	raw := strings.TrimSpace(s)
	doc, field, ok := strings.Cut(raw, ".")
	if !ok {
		return FieldPath{}, &FieldPathError{Path: s, Reason: "expected <doccode>.<fieldname>"}
	}
	if strings.Contains(field, ".") {
		return FieldPath{}, &FieldPathError{Path: s, Reason: "nested paths are not supported"}
	}

	doc = strings.ToLower(doc)
	if !segmentPattern.MatchString(doc) {
		return FieldPath{}, &FieldPathError{Path: s, Reason: "document code must be alphanumeric snake-case"}
	}
	if !segmentPattern.MatchString(field) {
		return FieldPath{}, &FieldPathError{Path: s, Reason: "field name must be lowercase snake-case"}
	}

	return FieldPath{DocumentType: doc, Field: field}, nil
}

// MustParseFieldPath is like ParseFieldPath but panics on error.
// Intended for tests and static tables.
func MustParseFieldPath(s string) FieldPath {
	p, err := ParseFieldPath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// NormalizeCode lower-cases and trims a document type code.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// IsValidFieldName reports whether name can be used as a field internal name.
func IsValidFieldName(name string) bool {
	return segmentPattern.MatchString(name)
}
