package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"ceeval-hq/verdict/pkg/catalog"
	"ceeval-hq/verdict/pkg/cli"
	"ceeval-hq/verdict/pkg/evaluation"
	rerrors "ceeval-hq/verdict/pkg/rules/errors"
)

var lintFlags struct {
	strict  bool
	format  string
	context int
}

var lintCmd = &cobra.Command{
	Use:   "lint [path...]",
	Short: "Validate catalog files",
	Long: `Validate catalogs of document types, processes and rules.

Each path is a YAML file or a directory searched recursively. Every path is
checked on its own, so a directory is validated as the set of catalogs a
deployment would load:
  - YAML syntax and catalog structure
  - field path references against the document types
  - operator and operand compatibility
  - expression compilation

Without a path the configured catalog path is linted.

Examples:
  # Lint a catalog directory
  verdict lint catalog/

  # Strict mode (warnings as errors)
  verdict lint --strict catalog/

  # CSV output for CI reports
  verdict lint --format csv catalog/`,
	RunE: lintCatalogs,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json, csv")
	lintCmd.Flags().IntVar(&lintFlags.context, "context", 2, "source lines shown around each diagnostic")
}

func lintCatalogs(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(lintFlags.format)
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		paths = []string{cfg.Catalog.Path}
	}

	loader := catalog.NewLoader(catalog.LoaderConfig{
		Strict:  lintFlags.strict,
		Checker: evaluation.ExpressionChecker{},
	}, nil)

	report := lintReport{}
	for _, path := range paths {
		report.Catalogs = append(report.Catalogs, lintCatalog(loader, path, lintFlags.context))
	}

	if err := formatter.FormatTo(cmd.OutOrStdout(), report); err != nil {
		return cli.NewCommandError("lint", err)
	}
	if n := report.invalid(); n > 0 {
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("%d of %d catalogs invalid", n, len(report.Catalogs))}
	}
	return nil
}

func lintCatalog(loader *catalog.Loader, path string, context int) lintResult {
	result := lintResult{Path: path}

	snap, err := loader.Load(path)
	if err != nil {
		var list *rerrors.List
		if !errors.As(err, &list) {
			result.Errors = []lintDiagnostic{{Kind: string(rerrors.IO), Message: err.Error()}}
			return result
		}
		if context > 0 {
			rerrors.AttachContext(list, context)
		}
		result.Errors = diagnostics(list.Errors())
		result.Warnings = diagnostics(list.Warnings())
		return result
	}

	stats := snap.Stats()
	result.Valid = true
	result.Version = snap.Version
	result.Stats = &stats
	result.Warnings = diagnostics(snap.Warnings)
	return result
}

// lintReport is the outcome of one lint run.
type lintReport struct {
	Catalogs []lintResult `json:"catalogs"`
}

// lintResult is the outcome for one catalog path.
type lintResult struct {
	Path     string           `json:"path"`
	Valid    bool             `json:"valid"`
	Version  string           `json:"version,omitempty"`
	Stats    *catalog.Stats   `json:"stats,omitempty"`
	Errors   []lintDiagnostic `json:"errors,omitempty"`
	Warnings []lintDiagnostic `json:"warnings,omitempty"`
}

// lintDiagnostic is one located problem.
type lintDiagnostic struct {
	File       string `json:"file,omitempty"`
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`

	context string
}

func diagnostics(in []*rerrors.Error) []lintDiagnostic {
	out := make([]lintDiagnostic, 0, len(in))
	for _, e := range in {
		out = append(out, lintDiagnostic{
			File:       e.Location.File,
			Line:       e.Location.Line,
			Column:     e.Location.Column,
			Kind:       string(e.Kind),
			Message:    e.Message,
			Suggestion: e.Suggestion,
			context:    e.Context,
		})
	}
	return out
}

func (r lintReport) invalid() int {
	n := 0
	for _, c := range r.Catalogs {
		if !c.Valid {
			n++
		}
	}
	return n
}

func (r lintReport) RenderText(w io.Writer) error {
	for _, c := range r.Catalogs {
		if c.Valid {
			fmt.Fprintf(w, "ok    %s (version %s)\n", c.Path, c.Version)
			fmt.Fprintf(w, "      %d document types, %d fields, %d processes, %d rules (%d active, %d expressions)\n",
				c.Stats.DocumentTypes, c.Stats.Fields, c.Stats.Processes,
				c.Stats.Rules, c.Stats.ActiveRules, c.Stats.Expressions)
		} else {
			fmt.Fprintf(w, "FAIL  %s\n", c.Path)
		}
		for _, d := range c.Errors {
			writeDiagnostic(w, "error", d)
		}
		for _, d := range c.Warnings {
			writeDiagnostic(w, "warning", d)
		}
	}
	_, err := fmt.Fprintf(w, "\n%d catalogs, %d invalid\n", len(r.Catalogs), r.invalid())
	return err
}

func writeDiagnostic(w io.Writer, level string, d lintDiagnostic) {
	fmt.Fprintf(w, "  %s[%s] %s\n", level, d.Kind, d.Message)
	if d.Line > 0 {
		fmt.Fprintf(w, "    --> %s:%d:%d\n", d.File, d.Line, d.Column)
	}
	if d.context != "" {
		fmt.Fprint(w, d.context)
	}
	if d.Suggestion != "" {
		fmt.Fprintf(w, "    = suggestion: %s\n", d.Suggestion)
	}
}

func (r lintReport) Header() []string {
	return []string{"catalog", "level", "kind", "file", "line", "column", "message", "suggestion"}
}

func (r lintReport) Rows() [][]string {
	var rows [][]string
	add := func(c lintResult, level string, d lintDiagnostic) {
		rows = append(rows, []string{
			c.Path, level, d.Kind, d.File,
			strconv.Itoa(d.Line), strconv.Itoa(d.Column),
			d.Message, d.Suggestion,
		})
	}
	for _, c := range r.Catalogs {
		for _, d := range c.Errors {
			add(c, "error", d)
		}
		for _, d := range c.Warnings {
			add(c, "warning", d)
		}
	}
	return rows
}
