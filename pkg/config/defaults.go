package config

import "time"

// Default values for configuration fields.
const (
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultCatalogMode        = "file"
	DefaultCatalogPath        = "./catalog"
	DefaultCatalogDebounce    = 500 * time.Millisecond
	DefaultCatalogMaxFileSize = int64(10 << 20)
	DefaultGitBranch          = "main"
	DefaultGitAuthType        = "none"
	DefaultGitPollInterval    = time.Minute
	DefaultGitTimeout         = 30 * time.Second
	DefaultGitDepth           = 1
	DefaultGitLocalPath       = "data/catalog-repo"

	DefaultInstancePolicy      = "first"
	DefaultExpressionCostLimit = uint64(10000)
	DefaultRuleTimeout         = 100 * time.Millisecond
	DefaultThreshold           = 90.0

	DefaultStorageBackend     = "sqlite"
	DefaultSQLitePath         = "data/verdict.db"
	DefaultSQLiteMaxOpenConns = 10
	DefaultSQLiteMaxIdleConns = 5
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultRetentionDays      = 365
	DefaultPruneSchedule      = "0 3 * * *"

	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsPath    = "/metrics"
	DefaultMetricsNS      = "verdict"
	DefaultTracingSampler = "ratio"
	DefaultSampleRatio    = 0.1
	DefaultTracingAddr    = "localhost:4317"
	DefaultServiceName    = "verdict"
	DefaultTracingTimeout = 10 * time.Second
	DefaultLivenessPath   = "/health"
	DefaultReadinessPath  = "/ready"
)

// DefaultDurationBuckets are histogram buckets in seconds. Evaluations
// usually finish in microseconds to low milliseconds.
var DefaultDurationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}

// Default returns a configuration with every default applied, including
// the boolean defaults that ApplyDefaults cannot infer from zero values.
func Default() *Config {
	cfg := &Config{}
	cfg.Engine.EnableExpressions = true
	cfg.Storage.SQLite.WALMode = true
	cfg.Storage.Retention.Days = DefaultRetentionDays
	cfg.Storage.Retention.PruneSchedule = DefaultPruneSchedule
	cfg.Telemetry.Logging.RedactPII = true
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Telemetry.Tracing.Insecure = true
	cfg.Telemetry.Health.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyCatalogDefaults(&cfg.Catalog)
	applyEngineDefaults(&cfg.Engine)
	applyStorageDefaults(&cfg.Storage)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyCatalogDefaults(c *CatalogConfig) {
	if c.Mode == "" {
		c.Mode = DefaultCatalogMode
	}
	if c.Path == "" {
		c.Path = DefaultCatalogPath
	}
	if c.Debounce == 0 {
		c.Debounce = DefaultCatalogDebounce
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = DefaultCatalogMaxFileSize
	}
	if c.Git.Branch == "" {
		c.Git.Branch = DefaultGitBranch
	}
	if c.Git.Auth.Type == "" {
		c.Git.Auth.Type = DefaultGitAuthType
	}
	if c.Git.PollInterval == 0 {
		c.Git.PollInterval = DefaultGitPollInterval
	}
	if c.Git.Timeout == 0 {
		c.Git.Timeout = DefaultGitTimeout
	}
	if c.Git.Depth == 0 {
		c.Git.Depth = DefaultGitDepth
	}
	if c.Git.LocalPath == "" {
		c.Git.LocalPath = DefaultGitLocalPath
	}
}

func applyEngineDefaults(e *EngineConfig) {
	if e.InstancePolicy == "" {
		e.InstancePolicy = DefaultInstancePolicy
	}
	if e.ExpressionCostLimit == 0 {
		e.ExpressionCostLimit = DefaultExpressionCostLimit
	}
	if e.RuleTimeout == 0 {
		e.RuleTimeout = DefaultRuleTimeout
	}
	if e.DefaultThreshold == 0 {
		e.DefaultThreshold = DefaultThreshold
	}
}

func applyStorageDefaults(s *StorageConfig) {
	if s.Backend == "" {
		s.Backend = DefaultStorageBackend
	}
	if s.SQLite.Path == "" {
		s.SQLite.Path = DefaultSQLitePath
	}
	if s.SQLite.MaxOpenConns == 0 {
		s.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if s.SQLite.MaxIdleConns == 0 {
		s.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if s.SQLite.BusyTimeout == 0 {
		s.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNS
	}
	if len(t.Metrics.DurationBuckets) == 0 {
		t.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultSampleRatio
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingAddr
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultServiceName
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}
	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
}
