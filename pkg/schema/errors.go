package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document type code is not registered.
	ErrNotFound = errors.New("not found")

	// ErrInvalidFieldPath is returned when a field path is malformed or does
	// not resolve to a registered field.
	ErrInvalidFieldPath = errors.New("invalid field path")

	// ErrInvalidSchema is returned when a document type definition is rejected
	// by the registry.
	ErrInvalidSchema = errors.New("invalid schema")
)

// NotFoundError reports an unknown registry key.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// FieldPathError reports a field path that cannot be used.
type FieldPathError struct {
	Path   string
	Reason string
}

func (e *FieldPathError) Error() string {
	return fmt.Sprintf("invalid field path %q: %s", e.Path, e.Reason)
}

func (e *FieldPathError) Unwrap() error {
	return ErrInvalidFieldPath
}

// SchemaError reports a rejected document type definition.
type SchemaError struct {
	DocumentType string
	Field        string
	Reason       string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("document type %q field %q: %s", e.DocumentType, e.Field, e.Reason)
	}
	return fmt.Sprintf("document type %q: %s", e.DocumentType, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return ErrInvalidSchema
}
