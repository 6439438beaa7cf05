/*
Package cli provides the helpers shared by the verdict commands.

Output Formatting:

Command results render as text, JSON or CSV. Types choose their own text
layout by implementing TextRenderer, and their CSV layout by implementing
Table:

	formatter, err := cli.NewFormatter(format)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, report)

Errors:

Commands wrap failures in CommandError or ConfigError. ExitError carries a
process exit code, for example when lint finds errors or an evaluation
rejects a dossier; ExitCode extracts it.

Progress and Signals:

Batch evaluation reports progress on stderr through ProgressReporter.
SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
*/
package cli
