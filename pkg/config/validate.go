package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path, e.g. "storage.backend".
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error of a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the whole configuration and returns a ValidationError
// listing every problem, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateCatalog(&cfg.Catalog)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func oneOf(field, value string, allowed ...string) []FieldError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return []FieldError{{
		Field:   field,
		Message: fmt.Sprintf("invalid value %q (valid: %s)", value, strings.Join(allowed, ", ")),
	}}
}

func validateServer(s *ServerConfig) []FieldError {
	var errs []FieldError
	if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: err.Error()})
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "must not be negative"})
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "must not be negative"})
	}
	return errs
}

func validateCatalog(c *CatalogConfig) []FieldError {
	errs := oneOf("catalog.mode", c.Mode, "file", "git")
	if c.Path == "" {
		errs = append(errs, FieldError{Field: "catalog.path", Message: "field is required"})
	}
	if c.MaxFileSize < 0 {
		errs = append(errs, FieldError{Field: "catalog.max_file_size", Message: "must not be negative"})
	}
	if c.Mode != "git" {
		return errs
	}

	if c.Git.Repository == "" {
		errs = append(errs, FieldError{Field: "catalog.git.repository", Message: "required in git mode"})
	}
	errs = append(errs, oneOf("catalog.git.auth.type", c.Git.Auth.Type, "none", "token", "ssh")...)
	switch c.Git.Auth.Type {
	case "token":
		if c.Git.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "catalog.git.auth.token", Message: "required for token auth"})
		}
	case "ssh":
		if c.Git.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "catalog.git.auth.ssh_key_path", Message: "required for ssh auth"})
		}
	}
	if c.Git.Depth < 0 {
		errs = append(errs, FieldError{Field: "catalog.git.depth", Message: "must not be negative"})
	}
	return errs
}

func validateEngine(e *EngineConfig) []FieldError {
	errs := oneOf("engine.instance_policy", e.InstancePolicy, "first", "agreement")
	if e.DefaultThreshold < 0 || e.DefaultThreshold > 100 {
		errs = append(errs, FieldError{Field: "engine.default_threshold", Message: "must be between 0 and 100"})
	}
	if e.RuleTimeout < 0 {
		errs = append(errs, FieldError{Field: "engine.rule_timeout", Message: "must not be negative"})
	}
	return errs
}

func validateStorage(s *StorageConfig) []FieldError {
	errs := oneOf("storage.backend", s.Backend, "memory", "sqlite")
	if s.Backend == "sqlite" && s.SQLite.Path == "" {
		errs = append(errs, FieldError{Field: "storage.sqlite.path", Message: "field is required"})
	}
	if s.Retention.Days < 0 {
		errs = append(errs, FieldError{Field: "storage.retention.days", Message: "must not be negative"})
	}
	if s.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(s.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{Field: "storage.retention.prune_schedule", Message: err.Error()})
		}
	}
	return errs
}

func validateTelemetry(t *TelemetryConfig) []FieldError {
	var errs []FieldError
	errs = append(errs, oneOf("telemetry.logging.level", strings.ToLower(t.Logging.Level), "debug", "info", "warn", "warning", "error")...)
	errs = append(errs, oneOf("telemetry.logging.format", strings.ToLower(t.Logging.Format), "json", "text")...)
	for i, p := range t.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: err.Error(),
			})
		}
	}

	if t.Metrics.Enabled && !strings.HasPrefix(t.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	for i := 1; i < len(t.Metrics.DurationBuckets); i++ {
		if t.Metrics.DurationBuckets[i] <= t.Metrics.DurationBuckets[i-1] {
			errs = append(errs, FieldError{Field: "telemetry.metrics.duration_buckets", Message: "must be strictly increasing"})
			break
		}
	}

	if t.Tracing.Enabled {
		errs = append(errs, oneOf("telemetry.tracing.sampler", t.Tracing.Sampler, "always", "never", "ratio")...)
		if t.Tracing.SampleRatio < 0 || t.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
		}
		if t.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "required when tracing is enabled"})
		}
	}
	return errs
}
