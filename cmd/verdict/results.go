package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"ceeval-hq/verdict/pkg/cli"
	"ceeval-hq/verdict/pkg/config"
	"ceeval-hq/verdict/pkg/storage"
	"ceeval-hq/verdict/pkg/storage/export"
	"ceeval-hq/verdict/pkg/storage/retention"
)

var resultsFlags struct {
	format       string
	exportFormat string
	limit        int
	output       string
	days         int
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect stored evaluation results",
	Long: `Inspect the evaluation results kept in the configured result store.

Examples:
  # Current verdicts of a dossier
  verdict results show D-2024-0042

  # Past evaluations, newest first
  verdict results history D-2024-0042 --limit 10

  # Export every current evaluation as CSV
  verdict results export --format csv --output verdicts.csv

  # Delete history older than 90 days
  verdict results prune --days 90`,
}

var resultsShowCmd = &cobra.Command{
	Use:   "show dossier-id",
	Short: "Show the current evaluation of a dossier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResultStore(cmd, func(ctx context.Context, _ *config.Config, store storage.Store) error {
			rec, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return formatResult(cmd.OutOrStdout(), reportFromRecord(rec))
		})
	},
}

var resultsHistoryCmd = &cobra.Command{
	Use:   "history dossier-id",
	Short: "List past evaluations of a dossier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResultStore(cmd, func(ctx context.Context, _ *config.Config, store storage.Store) error {
			entries, err := store.History(ctx, args[0], resultsFlags.limit)
			if err != nil {
				return err
			}
			return formatResult(cmd.OutOrStdout(), historyReport(entries))
		})
	},
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dossiers with a stored evaluation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResultStore(cmd, func(ctx context.Context, _ *config.Config, store storage.Store) error {
			ids, err := store.Dossiers(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		})
	},
}

var resultsExportCmd = &cobra.Command{
	Use:   "export [dossier-id...]",
	Short: "Export current evaluations as JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.New(resultsFlags.exportFormat)
		if err != nil {
			return cli.NewConfigError("format", err.Error())
		}
		return withResultStore(cmd, func(ctx context.Context, _ *config.Config, store storage.Store) error {
			ids := args
			if len(ids) == 0 {
				if ids, err = store.Dossiers(ctx); err != nil {
					return err
				}
			}
			records := make([]*storage.Record, 0, len(ids))
			for _, id := range ids {
				rec, err := store.Get(ctx, id)
				if err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				records = append(records, rec)
			}

			w := cmd.OutOrStdout()
			if resultsFlags.output != "" && resultsFlags.output != "-" {
				f, err := os.Create(resultsFlags.output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return exporter.Export(ctx, records, w)
		})
	},
}

var resultsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete evaluation history past the retention period",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResultStore(cmd, func(ctx context.Context, cfg *config.Config, store storage.Store) error {
			days := resultsFlags.days
			if days == 0 {
				days = cfg.Storage.Retention.Days
			}
			pruner := retention.NewPruner(store, &retention.Config{RetentionDays: days})
			deleted, err := pruner.Prune(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d history entries deleted\n", deleted)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsShowCmd, resultsHistoryCmd, resultsListCmd, resultsExportCmd, resultsPruneCmd)

	resultsShowCmd.Flags().StringVar(&resultsFlags.format, "format", "text", "output format: text, json, csv")
	resultsHistoryCmd.Flags().StringVar(&resultsFlags.format, "format", "text", "output format: text, json, csv")
	resultsHistoryCmd.Flags().IntVar(&resultsFlags.limit, "limit", 20, "maximum entries, 0 for all")
	resultsExportCmd.Flags().StringVar(&resultsFlags.exportFormat, "format", "json-pretty", "export format: json, json-pretty, csv")
	resultsExportCmd.Flags().StringVarP(&resultsFlags.output, "output", "o", "", "output file (stdout when empty)")
	resultsPruneCmd.Flags().IntVar(&resultsFlags.days, "days", 0, "retention in days (configured retention when 0)")
}

// withResultStore opens the configured result store around fn.
func withResultStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, store storage.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := newTelemetry(cfg, true); err != nil {
		return err
	}

	store, err := openResultStore(cfg.Storage)
	if err != nil {
		return cli.NewCommandError(cmd.Name(), err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, cfg, store); err != nil {
		return cli.NewCommandError(cmd.Name(), err)
	}
	return nil
}

func formatResult(w io.Writer, data any) error {
	formatter, err := cli.NewFormatter(resultsFlags.format)
	if err != nil {
		return err
	}
	return formatter.FormatTo(w, data)
}

// historyReport renders history entries.
type historyReport []storage.HistoryEntry

func (h historyReport) RenderText(w io.Writer) error {
	for _, e := range h {
		fmt.Fprintf(w, "%s  v%-4d %-15s errors=%d warnings=%d not_applicable=%d rules=%s\n",
			e.EvaluatedAt.Format("2006-01-02 15:04:05"), e.InputVersion, e.Outcome,
			e.Errors, e.Warnings, e.NotApplicable, e.RulesVersion)
	}
	_, err := fmt.Fprintf(w, "%d entries\n", len(h))
	return err
}

func (h historyReport) Header() []string {
	return []string{"dossier_id", "input_version", "rules_version", "outcome", "errors", "warnings", "not_applicable", "evaluated_at", "stored_at"}
}

func (h historyReport) Rows() [][]string {
	rows := make([][]string, 0, len(h))
	for _, e := range h {
		rows = append(rows, []string{
			e.DossierID,
			strconv.FormatUint(e.InputVersion, 10),
			e.RulesVersion,
			string(e.Outcome),
			strconv.Itoa(e.Errors),
			strconv.Itoa(e.Warnings),
			strconv.Itoa(e.NotApplicable),
			e.EvaluatedAt.Format("2006-01-02T15:04:05Z07:00"),
			e.StoredAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return rows
}
