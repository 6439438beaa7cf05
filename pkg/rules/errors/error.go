// Package errors provides located diagnostics for rule catalogs.
//
// Parsing and validation accumulate diagnostics in a List instead of failing
// on the first problem, so a catalog author sees every issue in one pass.
// Diagnostics with LevelWarning are reported but do not reject a catalog.
//
//	list := errors.NewList()
//	list.Add(errors.Semantic, "unknown field 'devis.prim_cee'", loc).
//	    WithSuggestion(errors.SuggestName("devis.prim_cee", registry.FieldPaths()))
//	return list.ToError()
package errors

import (
	"fmt"
	"strings"

	"ceeval-hq/verdict/pkg/rules"
)

// Kind categorizes a diagnostic.
type Kind string

const (
	Syntax     Kind = "syntax"     // malformed YAML
	Structural Kind = "structural" // missing or invalid keys
	Semantic   Kind = "semantic"   // unresolved references, operand mismatches
	IO         Kind = "io"         // file access
)

// Level is the severity of a diagnostic.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Error is one located diagnostic.
type Error struct {
	Kind       Kind
	Level      Level
	Message    string
	Location   rules.Location
	Context    string
	Suggestion string
}

// WithSuggestion sets the suggestion and returns e.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s[%s] %s\n", e.Level, e.Kind, e.Message)
	if e.Location.IsValid() {
		fmt.Fprintf(&sb, "  --> %s\n", e.Location)
	}
	if e.Context != "" {
		sb.WriteString("  |\n")
		sb.WriteString(e.Context)
		sb.WriteString("  |\n")
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&sb, "  = suggestion: %s\n", e.Suggestion)
	}
	return sb.String()
}

// List accumulates diagnostics.
type List struct {
	Items []*Error
}

// NewList returns an empty list.
func NewList() *List {
	return &List{Items: make([]*Error, 0)}
}

// Add records an error-level diagnostic and returns it.
func (l *List) Add(kind Kind, message string, loc rules.Location) *Error {
	e := &Error{Kind: kind, Level: LevelError, Message: message, Location: loc}
	l.Items = append(l.Items, e)
	return e
}

// Warn records a warning-level diagnostic and returns it.
func (l *List) Warn(kind Kind, message string, loc rules.Location) *Error {
	e := &Error{Kind: kind, Level: LevelWarning, Message: message, Location: loc}
	l.Items = append(l.Items, e)
	return e
}

// Merge appends every diagnostic of other.
func (l *List) Merge(other *List) {
	if other == nil {
		return
	}
	l.Items = append(l.Items, other.Items...)
}

// Errors returns the error-level diagnostics.
func (l *List) Errors() []*Error {
	return l.filter(LevelError)
}

// Warnings returns the warning-level diagnostics.
func (l *List) Warnings() []*Error {
	return l.filter(LevelWarning)
}

func (l *List) filter(level Level) []*Error {
	var out []*Error
	for _, e := range l.Items {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// HasErrors reports whether any error-level diagnostic was recorded.
func (l *List) HasErrors() bool {
	for _, e := range l.Items {
		if e.Level == LevelError {
			return true
		}
	}
	return false
}

// HasKind reports whether a diagnostic of kind was recorded at any level.
func (l *List) HasKind(kind Kind) bool {
	for _, e := range l.Items {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func (l *List) Error() string {
	errs := l.Errors()
	var sb strings.Builder
	fmt.Fprintf(&sb, "found %d error(s):\n\n", len(errs))
	for i, e := range errs {
		fmt.Fprintf(&sb, "Error %d:\n%s\n", i+1, e.Error())
	}
	return sb.String()
}

// ToError returns l when it holds error-level diagnostics and nil otherwise.
// Warnings alone never produce an error.
func (l *List) ToError() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}
