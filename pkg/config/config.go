package config

import "time"

// Config is the root configuration of verdict.
type Config struct {
	// Server configures the operational HTTP endpoint of "verdict serve"
	// (metrics and health only).
	Server ServerConfig `yaml:"server"`

	// Catalog locates the document type, process and rule definitions.
	Catalog CatalogConfig `yaml:"catalog"`

	// Engine tunes rule evaluation.
	Engine EngineConfig `yaml:"engine"`

	// Storage selects where evaluation results are kept.
	Storage StorageConfig `yaml:"storage"`

	// Telemetry contains logging, metrics, tracing and health settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// ListenAddress is host:port.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing a response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CatalogConfig locates the rule catalog.
type CatalogConfig struct {
	// Mode is "file" (local file or directory) or "git".
	// Default: "file"
	Mode string `yaml:"mode"`

	// Path is a catalog file or a directory of *.yaml files. In git mode it
	// is relative to the repository root.
	// Default: "./catalog"
	Path string `yaml:"path"`

	// Watch reloads the catalog when files change.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce coalesces bursts of file events.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce"`

	// Strict treats catalog warnings as errors.
	// Default: false
	Strict bool `yaml:"strict"`

	// MaxFileSize rejects larger catalog files.
	// Default: 10485760 (10MB)
	MaxFileSize int64 `yaml:"max_file_size"`

	// Git configures git mode.
	Git GitConfig `yaml:"git"`
}

// GitConfig configures a git-hosted catalog.
type GitConfig struct {
	// Repository URL (HTTPS or SSH).
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Auth configures authentication.
	Auth GitAuthConfig `yaml:"auth"`

	// PollInterval between fetches. Zero disables polling.
	// Default: 1m
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout for each git operation.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Depth for shallow clones, 0 for a full clone.
	// Default: 1
	Depth int `yaml:"depth"`

	// LocalPath is where the repository is cloned.
	// Default: "data/catalog-repo"
	LocalPath string `yaml:"local_path"`

	// CleanOnStart removes LocalPath before cloning.
	CleanOnStart bool `yaml:"clean_on_start"`
}

// GitAuthConfig configures git authentication.
type GitAuthConfig struct {
	// Type is "none", "token" or "ssh".
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication.
	Token string `yaml:"token"`

	// SSHKeyPath for SSH authentication.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// EngineConfig tunes rule evaluation.
type EngineConfig struct {
	// InstancePolicy is "first" or "agreement" for dossiers holding several
	// documents of one type.
	// Default: "first"
	InstancePolicy string `yaml:"instance_policy"`

	// EnableExpressions allows expression-mode rules.
	// Default: true
	EnableExpressions bool `yaml:"enable_expressions"`

	// ExpressionCostLimit bounds the work of one expression.
	// Default: 10000
	ExpressionCostLimit uint64 `yaml:"expression_cost_limit"`

	// RuleTimeout bounds one rule evaluation, 0 disables.
	// Default: 100ms
	RuleTimeout time.Duration `yaml:"rule_timeout"`

	// DefaultThreshold is the auto-approval threshold for dossiers without
	// a process threshold.
	// Default: 90
	DefaultThreshold float64 `yaml:"default_threshold"`
}

// StorageConfig selects the result store.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Retention configures history pruning.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path to the database file.
	// Default: "data/verdict.db"
	Path string `yaml:"path"`

	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig configures history pruning.
type RetentionConfig struct {
	// Days of history to keep, 0 keeps everything.
	// Default: 365
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression. Empty disables pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in log entries.
	AddSource bool `yaml:"add_source"`

	// RedactPII masks e-mail addresses, phone numbers and IBANs in
	// logged values.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "verdict"
	Namespace string `yaml:"namespace"`

	// DurationBuckets are histogram buckets for evaluation durations in
	// seconds.
	// Default: [0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1]
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the ratio sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint of the OTLP/gRPC collector.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName reported in traces.
	// Default: "verdict"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout for exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health endpoint settings.
type HealthConfig struct {
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`
}
