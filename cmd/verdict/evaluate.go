package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ceeval-hq/verdict/pkg/cli"
	"ceeval-hq/verdict/pkg/decision"
	"ceeval-hq/verdict/pkg/dossier"
)

var evaluateFlags struct {
	format   string
	failOn   string
	persist  bool
	progress bool
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate dossier.yaml...",
	Short: "Evaluate dossier files against the catalog",
	Long: `Evaluate dossier files against the catalog and print the verdicts.

A dossier file lists the processes the dossier is filed under, its documents
and their extracted field values, plus any human corrections:

  id: D-2024-0042
  processes: [bar-th-171]
  documents:
    - id: devis-1
      type: DEVIS
      fields:
        prime_cee: {value: "2 500,00 €", confidence: 97}
      overrides:
        prime_cee: "2500"

Results are kept in memory unless --persist stores them in the configured
result store.

Examples:
  # Evaluate one dossier with a catalog directory
  verdict evaluate --catalog catalog/ dossier.yaml

  # Fail the pipeline when a dossier is rejected
  verdict evaluate --fail-on reject dossiers/*.yaml

  # Per-rule CSV for a spreadsheet
  verdict evaluate --format csv dossiers/*.yaml > verdicts.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: evaluateDossiers,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evaluateFlags.format, "format", "text", "output format: text, json, csv")
	evaluateCmd.Flags().StringVar(&evaluateFlags.failOn, "fail-on", "none", "exit 1 when any dossier reaches this outcome: none, review, reject")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.persist, "persist", false, "store results in the configured result store")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.progress, "progress", false, "report progress on stderr")
}

func evaluateDossiers(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(evaluateFlags.format)
	if err != nil {
		return err
	}
	failRank, err := failOnRank(evaluateFlags.failOn)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !evaluateFlags.persist {
		cfg.Storage.Backend = "memory"
	}
	tel, err := newTelemetry(cfg, true)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, tel)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Close(shutdownCtx)
	}()

	var progress cli.ProgressReporter
	if evaluateFlags.progress {
		progress = cli.NewProgressReporter(os.Stderr, "dossiers")
		progress.Start(int64(len(args)))
	}

	var report dossierReports
	failed := 0
	for i, path := range args {
		ev, err := evaluateFile(ctx, a.coordinator, path)
		if err != nil {
			if progress != nil {
				progress.Error(err)
			}
			return cli.NewCommandError("evaluate", err)
		}
		report.Dossiers = append(report.Dossiers, reportFromEvaluation(ev))
		if failRank >= 0 && ev.Decision.Outcome.Rank() <= failRank {
			failed++
		}
		if progress != nil {
			progress.Update(int64(i + 1))
		}
	}
	if progress != nil {
		progress.Finish()
	}

	if err := formatter.FormatTo(cmd.OutOrStdout(), report); err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	if failed > 0 {
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("%d dossiers reached %s", failed, evaluateFlags.failOn)}
	}
	return nil
}

func evaluateFile(ctx context.Context, c *dossier.Coordinator, path string) (*dossier.Evaluation, error) {
	f, err := dossier.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ev, err := f.Apply(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ev, nil
}

// failOnRank maps --fail-on to the worst acceptable outcome rank, -1 for
// none.
func failOnRank(s string) (int, error) {
	switch s {
	case "", "none":
		return -1, nil
	case "reject":
		return decision.AutoReject.Rank(), nil
	case "review":
		return decision.SendToReview.Rank(), nil
	default:
		return 0, cli.NewConfigError("fail-on", fmt.Sprintf("unknown value %q (want none, review or reject)", s))
	}
}
