package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a dossier has no stored evaluation.
	ErrNotFound = errors.New("evaluation not found")

	// ErrStaleVersion is returned by Replace when a newer input version is
	// already stored for the dossier.
	ErrStaleVersion = errors.New("stale input version")
)

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // "sqlite", "memory"
	Operation string // "replace", "get", "prune", ...
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
