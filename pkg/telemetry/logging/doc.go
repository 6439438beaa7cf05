// Package logging builds the structured logger used across verdict.
//
// Loggers are plain *slog.Logger values. New adds two things on top of the
// standard handlers: context fields (dossier_id, evaluation_id, rule_code,
// catalog_version) copied from the context of *Context calls, and optional
// redaction of personal data such as e-mail addresses, French phone numbers
// and IBANs.
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	ctx = logging.WithDossierID(ctx, "DOS-2024-0042")
//	logger.InfoContext(ctx, "dossier evaluated", "outcome", "send_to_review")
package logging
