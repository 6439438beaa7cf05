package parser

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"ceeval-hq/verdict/pkg/rules"
	rerrors "ceeval-hq/verdict/pkg/rules/errors"
	"ceeval-hq/verdict/pkg/schema"
)

// DefaultMaxFileSize bounds a single catalog file.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Catalog is the parsed content of one catalog source.
type Catalog struct {
	Source        string
	DocumentTypes []*schema.DocumentType
	Processes     []*rules.Process
	Rules         []*rules.Rule

	// Warnings are non-fatal diagnostics such as unknown keys.
	Warnings []*rerrors.Error
}

// Parser turns catalog YAML into document types, processes and rules.
type Parser struct {
	maxFileSize  int64
	contextLines int
}

// NewParser returns a parser with default limits.
func NewParser() *Parser {
	return &Parser{
		maxFileSize:  DefaultMaxFileSize,
		contextLines: 2,
	}
}

// WithMaxFileSize sets the maximum accepted file size.
func (p *Parser) WithMaxFileSize(size int64) *Parser {
	p.maxFileSize = size
	return p
}

// Parse reads and parses the catalog file at path.
func (p *Parser) Parse(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, p.ioError(path, fmt.Sprintf("cannot access file: %v", err))
	}
	if info.Size() > p.maxFileSize {
		return nil, p.ioError(path, fmt.Sprintf("file size %d exceeds maximum %d bytes", info.Size(), p.maxFileSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, p.ioError(path, fmt.Sprintf("cannot read file: %v", err))
	}

	cat, err := p.ParseBytes(data, path)
	if list, ok := err.(*rerrors.List); ok {
		rerrors.AttachContext(list, p.contextLines)
	}
	return cat, err
}

// ParseBytes parses catalog YAML held in memory. source is used in locations.
func (p *Parser) ParseBytes(data []byte, source string) (*Catalog, error) {
	if int64(len(data)) > p.maxFileSize {
		return nil, p.ioError(source, fmt.Sprintf("data size %d exceeds maximum %d bytes", len(data), p.maxFileSize))
	}
	if !utf8.Valid(data) {
		return nil, p.ioError(source, "catalog is not valid UTF-8")
	}

	var doc yamlCatalog
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			list := rerrors.NewList()
			list.Add(rerrors.Syntax, fmt.Sprintf("YAML parsing failed: %v", err), rules.Location{File: source, Line: 1, Column: 1}).
				WithSuggestion("check indentation, colons and quoting")
			return nil, list
		}
	}

	b := newBuilder(source)
	cat := b.build(&doc)
	if err := b.errors.ToError(); err != nil {
		return nil, err
	}
	cat.Warnings = b.errors.Warnings()
	return cat, nil
}

func (p *Parser) ioError(source, message string) error {
	list := rerrors.NewList()
	list.Add(rerrors.IO, message, rules.Location{File: source})
	return list
}
