package catalog

import (
	"errors"
	"fmt"
)

// ErrNoCatalog is returned by Manager.Current before the first successful
// load.
var ErrNoCatalog = errors.New("no catalog loaded")

// LoadError reports a catalog source that could not be read or assembled.
// Located diagnostics from parsing and validation are returned as
// *rules/errors.List instead.
type LoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("catalog %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("catalog %s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
