package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.Equal(t, "localhost:8090", cfg.Server.Addr)
	require.Equal(t, 20*time.Minute, cfg.Dispatch.SLA)
	require.Equal(t, []int{5, 3, 1}, cfg.Dispatch.WarningMarks)
	require.Equal(t, 90*time.Second, cfg.Dispatch.PresenceTTL)
	require.Equal(t, 5*time.Second, cfg.Dispatch.AssignTick)
	require.Equal(t, 60*time.Second, cfg.Dispatch.DeadlineTick)
	require.Equal(t, 3, cfg.Dispatch.MaxRetries)
	require.Equal(t, 3, cfg.Dispatch.WarningsBeforeViolation)
	require.Equal(t, 3, cfg.Dispatch.ViolationsBeforeSuspension)
	require.InDelta(t, 0.90, cfg.Dispatch.ScoreThreshold, 0.0001)
	require.False(t, cfg.Tracing.Enabled)
}

func TestDefaults_AreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestValidateDispatch_Valid(t *testing.T) {
	require.NoError(t, ValidateDispatch(DefaultDispatch()))
}

func TestValidateDispatch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DispatchConfig)
		wantErr string
	}{
		{"zero sla", func(d *DispatchConfig) { d.SLA = 0 }, "dispatch.sla"},
		{"negative presence ttl", func(d *DispatchConfig) { d.PresenceTTL = -time.Second }, "dispatch.presence_ttl"},
		{"zero assign tick", func(d *DispatchConfig) { d.AssignTick = 0 }, "dispatch.assign_tick"},
		{"zero deadline tick", func(d *DispatchConfig) { d.DeadlineTick = 0 }, "dispatch.deadline_tick"},
		{"negative retries", func(d *DispatchConfig) { d.MaxRetries = -1 }, "dispatch.max_retries"},
		{"zero warnings threshold", func(d *DispatchConfig) { d.WarningsBeforeViolation = 0 }, "dispatch.warnings_before_violation"},
		{"zero violations threshold", func(d *DispatchConfig) { d.ViolationsBeforeSuspension = 0 }, "dispatch.violations_before_suspension"},
		{"threshold above one", func(d *DispatchConfig) { d.ScoreThreshold = 1.5 }, "dispatch.score_threshold"},
		{"zero threshold", func(d *DispatchConfig) { d.ScoreThreshold = 0 }, "dispatch.score_threshold"},
		{"negative warning mark", func(d *DispatchConfig) { d.WarningMarks = []int{5, -1} }, "warning_marks[1]"},
		{"mark outside sla", func(d *DispatchConfig) { d.WarningMarks = []int{25} }, "inside the SLA window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DefaultDispatch()
			tt.mutate(&d)
			err := ValidateDispatch(d)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateTracing_Valid(t *testing.T) {
	err := ValidateTracing(TracingConfig{
		Enabled:    true,
		Exporter:   "otlp",
		SampleRate: 0.5,

		OTLPEndpoint: "localhost:4317",
	})
	require.NoError(t, err)
}

func TestValidateTracing_InvalidExporter(t *testing.T) {
	err := ValidateTracing(TracingConfig{Exporter: "jaeger"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "tracing.exporter")
}

func TestValidateTracing_SampleRateOutOfRange(t *testing.T) {
	err := ValidateTracing(TracingConfig{SampleRate: 1.5})
	require.Error(t, err)
	require.Contains(t, err.Error(), "sample_rate")
}

func TestValidateTracing_FileExporterRequiresPath(t *testing.T) {
	err := ValidateTracing(TracingConfig{Enabled: true, Exporter: "file", SampleRate: 1.0})
	require.Error(t, err)
	require.Contains(t, err.Error(), "file_path")

	// Disabled tracing skips the path requirement.
	err = ValidateTracing(TracingConfig{Enabled: false, Exporter: "file", SampleRate: 1.0})
	require.NoError(t, err)
}

func TestDispatchConfig_StrikePolicy(t *testing.T) {
	d := DefaultDispatch()
	p := d.StrikePolicy()
	require.Equal(t, 3, p.WarningsBeforeViolation)
	require.Equal(t, 3, p.ViolationsBeforeSuspension)

	// A zero-value dispatch config falls back to the stock thresholds
	// rather than producing an unusable policy.
	p = DispatchConfig{}.StrikePolicy()
	require.Equal(t, 3, p.WarningsBeforeViolation)
	require.Equal(t, 3, p.ViolationsBeforeSuspension)
}
