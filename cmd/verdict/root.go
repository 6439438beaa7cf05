package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ceeval-hq/verdict/pkg/cli"
	"ceeval-hq/verdict/pkg/config"
	"ceeval-hq/verdict/pkg/telemetry"
)

var (
	// Global flags
	cfgFile     string
	catalogPath string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "verdict",
	Short: "Verdict - CEE dossier validation engine",
	Long: `Verdict evaluates CEE (energy-savings-certificate) dossiers against a catalog
of field schemas, processes and validation rules.

Each evaluation produces one verdict per applicable rule (passed, warning,
error, info or not_applicable) and a decision:
  - auto_approve when every required field is confident and no rule fails
  - send_to_review when a human should look at the dossier
  - auto_reject when a blocking rule fails`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the code of its error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit *cli.ExitError
		if !errors.As(err, &exit) || exit.Message != "" {
			fmt.Fprintln(os.Stderr, "verdict:", err)
		}
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "override the catalog path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig reads the config file and environment and applies the global
// flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	if catalogPath != "" {
		cfg.Catalog.Mode = "file"
		cfg.Catalog.Path = catalogPath
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newTelemetry builds the telemetry stack. One-shot commands log text at
// warn level to stderr so that stdout carries only results.
func newTelemetry(cfg *config.Config, oneShot bool) (*telemetry.Telemetry, error) {
	if oneShot {
		cfg.Telemetry.Logging.Format = "text"
		if !verbose {
			cfg.Telemetry.Logging.Level = "warn"
		}
	}
	tel, err := telemetry.New(cfg.Telemetry, buildInfo(), os.Stderr)
	if err != nil {
		return nil, cli.NewConfigError("telemetry", err.Error())
	}
	slog.SetDefault(tel.Logger)
	return tel, nil
}
