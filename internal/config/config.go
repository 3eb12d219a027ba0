// Package config provides configuration types and defaults for relais.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/log"
)

// Config holds all configuration options for relais.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Server    ServerConfig    `mapstructure:"server"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Roster    RosterConfig    `mapstructure:"roster"`
	AutoApply AutoApplyConfig `mapstructure:"auto_apply"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// StoreConfig holds task store settings.
type StoreConfig struct {
	// Path is the SQLite database file. Default: ~/.relais/relais.db
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address. Default: localhost:8090
	Addr string `mapstructure:"addr"`
}

// DispatchConfig holds the assignment and SLA enforcement knobs. All of
// these may be changed at runtime; the daemon re-reads them on config file
// changes.
type DispatchConfig struct {
	// SLA is the maximum wall-clock time between assignment and completion.
	SLA time.Duration `mapstructure:"sla"`

	// WarningMarks are the minutes-remaining marks at which pre-warnings
	// fire, e.g. [5, 3, 1].
	WarningMarks []int `mapstructure:"warning_marks"`

	// PresenceTTL is how fresh a reviewer heartbeat must be to count as
	// present.
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`

	// AssignTick is the assigner loop cadence.
	AssignTick time.Duration `mapstructure:"assign_tick"`

	// DeadlineTick is the deadline monitor sweep cadence.
	DeadlineTick time.Duration `mapstructure:"deadline_tick"`

	// MaxRetries is the requeue budget before a task is retired as timeout.
	MaxRetries int `mapstructure:"max_retries"`

	// WarningsBeforeViolation is the number of lapses that compound into a
	// violation (3 means two warnings, then the third lapse promotes).
	WarningsBeforeViolation int `mapstructure:"warnings_before_violation"`

	// ViolationsBeforeSuspension is the number of violations that suspend.
	ViolationsBeforeSuspension int `mapstructure:"violations_before_suspension"`

	// ScoreThreshold splits intake: scores strictly below enter the queue,
	// at or above bypass to auto-apply.
	ScoreThreshold float64 `mapstructure:"score_threshold"`
}

// RosterConfig holds reviewer roster seeding settings.
type RosterConfig struct {
	// Path is a YAML file of reviewers to upsert at daemon start. Empty
	// disables seeding.
	Path string `mapstructure:"path"`
}

// AutoApplyConfig holds the auto-apply collaborator settings.
type AutoApplyConfig struct {
	// Endpoint receives scores at or above the threshold. Empty means
	// bypassed scores are only logged.
	Endpoint string `mapstructure:"endpoint"`

	// Timeout bounds a single forward call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/relais/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// 1.0 = all traces, 0.1 = 10% of traces
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// StrikePolicy converts the configured thresholds into the domain policy.
func (d DispatchConfig) StrikePolicy() review.StrikePolicy {
	p := review.StrikePolicy{
		WarningsBeforeViolation:    d.WarningsBeforeViolation,
		ViolationsBeforeSuspension: d.ViolationsBeforeSuspension,
	}
	if p.WarningsBeforeViolation <= 0 || p.ViolationsBeforeSuspension <= 0 {
		return review.DefaultStrikePolicy()
	}
	return p
}

// DefaultStorePath returns the default SQLite database location.
// Returns ~/.relais/relais.db or empty string if home dir unavailable.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".relais", "relais.db")
}

// DefaultLogPath returns the default debug log location.
// Returns ~/.relais/debug.log or empty string if home dir unavailable.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".relais", "debug.log")
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/relais/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "relais", "traces", "traces.jsonl")
}

// Defaults returns a Config with the stock dispatch policy.
func Defaults() Config {
	return Config{
		Store: StoreConfig{
			Path: DefaultStorePath(),
		},
		Server: ServerConfig{
			Addr: "localhost:8090",
		},
		Dispatch: DefaultDispatch(),
		AutoApply: AutoApplyConfig{
			Timeout: 10 * time.Second,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// DefaultDispatch returns the stock dispatch knobs: 20 minute SLA, warnings
// at 5/3/1 minutes remaining, 90 second presence TTL.
func DefaultDispatch() DispatchConfig {
	return DispatchConfig{
		SLA:                        20 * time.Minute,
		WarningMarks:               []int{5, 3, 1},
		PresenceTTL:                90 * time.Second,
		AssignTick:                 5 * time.Second,
		DeadlineTick:               60 * time.Second,
		MaxRetries:                 3,
		WarningsBeforeViolation:    3,
		ViolationsBeforeSuspension: 3,
		ScoreThreshold:             0.90,
	}
}

// Validate checks the whole configuration for errors.
func (c Config) Validate() error {
	if err := ValidateDispatch(c.Dispatch); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return nil
}

// ValidateDispatch checks dispatch configuration for errors.
func ValidateDispatch(d DispatchConfig) error {
	if d.SLA <= 0 {
		return fmt.Errorf("dispatch.sla must be positive, got %v", d.SLA)
	}
	if d.PresenceTTL <= 0 {
		return fmt.Errorf("dispatch.presence_ttl must be positive, got %v", d.PresenceTTL)
	}
	if d.AssignTick <= 0 {
		return fmt.Errorf("dispatch.assign_tick must be positive, got %v", d.AssignTick)
	}
	if d.DeadlineTick <= 0 {
		return fmt.Errorf("dispatch.deadline_tick must be positive, got %v", d.DeadlineTick)
	}
	if d.MaxRetries < 0 {
		return fmt.Errorf("dispatch.max_retries must be non-negative, got %d", d.MaxRetries)
	}
	if d.WarningsBeforeViolation < 1 {
		return fmt.Errorf("dispatch.warnings_before_violation must be at least 1, got %d", d.WarningsBeforeViolation)
	}
	if d.ViolationsBeforeSuspension < 1 {
		return fmt.Errorf("dispatch.violations_before_suspension must be at least 1, got %d", d.ViolationsBeforeSuspension)
	}
	if d.ScoreThreshold <= 0 || d.ScoreThreshold > 1 {
		return fmt.Errorf("dispatch.score_threshold must be in (0, 1], got %v", d.ScoreThreshold)
	}
	for i, mark := range d.WarningMarks {
		if mark <= 0 {
			return fmt.Errorf("dispatch.warning_marks[%d] must be positive minutes, got %d", i, mark)
		}
		if time.Duration(mark)*time.Minute >= d.SLA {
			return fmt.Errorf("dispatch.warning_marks[%d] (%dm) must be inside the SLA window (%v)", i, mark, d.SLA)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	// Validate SampleRate is in range [0.0, 1.0]
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	// Validate Exporter is a valid option
	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		// FilePath is required when Exporter is "file"
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}

		// OTLPEndpoint is required when Exporter is "otlp"
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Relais Configuration

# Task store settings
store:
  # SQLite database file (default: ~/.relais/relais.db)
  # path: /var/lib/relais/relais.db

# HTTP server settings
server:
  addr: localhost:8090

# Dispatch policy. These knobs are re-read when the file changes;
# store.path and server.addr require a restart.
dispatch:
  # Maximum wall-clock time between assignment and completion
  sla: 20m

  # Pre-warning marks in minutes remaining before the deadline
  warning_marks: [5, 3, 1]

  # How fresh a reviewer heartbeat must be to count as present
  presence_ttl: 90s

  # Assigner loop cadence
  assign_tick: 5s

  # Deadline monitor sweep cadence
  deadline_tick: 60s

  # Requeue budget before a task is retired as timeout
  max_retries: 3

  # Lapses per violation and violations per suspension
  warnings_before_violation: 3
  violations_before_suspension: 3

  # ATS scores strictly below this enter the review queue;
  # at or above bypass to auto-apply
  score_threshold: 0.90

# Reviewer roster seeded at daemon start (optional)
# roster:
#   path: /etc/relais/roster.yaml

# Auto-apply collaborator for scores at or above the threshold (optional)
# auto_apply:
#   endpoint: http://localhost:9100/applications
#   timeout: 10s

# Distributed tracing configuration
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/relais/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1  # Sample 10% of traces
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	// Create parent directory if needed
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write the template
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
