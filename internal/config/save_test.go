package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

// rawDispatch mirrors the YAML shape for round-trip assertions without
// going through viper.
type rawDispatch struct {
	SLA            string  `yaml:"sla"`
	WarningMarks   []int   `yaml:"warning_marks"`
	PresenceTTL    string  `yaml:"presence_ttl"`
	AssignTick     string  `yaml:"assign_tick"`
	DeadlineTick   string  `yaml:"deadline_tick"`
	MaxRetries     int     `yaml:"max_retries"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

func TestSaveDispatch_NewFile(t *testing.T) {
	path := tempConfigPath(t)

	d := DefaultDispatch()
	d.SLA = 30 * time.Minute
	d.WarningMarks = []int{10, 5, 1}

	err := SaveDispatch(path, d)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Dispatch rawDispatch `yaml:"dispatch"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	require.Equal(t, "30m", doc.Dispatch.SLA)
	require.Equal(t, []int{10, 5, 1}, doc.Dispatch.WarningMarks)
	require.Equal(t, "90s", doc.Dispatch.PresenceTTL)
	require.Equal(t, 3, doc.Dispatch.MaxRetries)
	require.InDelta(t, 0.90, doc.Dispatch.ScoreThreshold, 0.0001)
}

func TestSaveDispatch_PreservesOtherSections(t *testing.T) {
	path := tempConfigPath(t)

	initial := `# Relais Configuration

# Where the database lives
store:
  path: /tmp/relais-test.db

server:
  addr: localhost:9999

dispatch:
  sla: 20m
  warning_marks: [5, 3, 1]
  presence_ttl: 90s
  assign_tick: 5s
  deadline_tick: 60s
  max_retries: 3
  warnings_before_violation: 3
  violations_before_suspension: 3
  score_threshold: 0.90
`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	d := DefaultDispatch()
	d.SLA = 45 * time.Minute
	require.NoError(t, SaveDispatch(path, d))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	// Comments and unrelated sections survive the rewrite.
	require.Contains(t, content, "# Where the database lives")
	require.Contains(t, content, "path: /tmp/relais-test.db")
	require.Contains(t, content, "addr: localhost:9999")
	require.Contains(t, content, "sla: 45m")
	require.NotContains(t, content, "sla: 20m")
}

func TestSaveDispatch_RejectsInvalid(t *testing.T) {
	path := tempConfigPath(t)

	d := DefaultDispatch()
	d.SLA = 0

	err := SaveDispatch(path, d)
	require.Error(t, err)
	require.NoFileExists(t, path, "invalid settings must not be written")
}

func TestSaveDispatch_AppendsWhenSectionMissing(t *testing.T) {
	path := tempConfigPath(t)

	initial := "server:\n  addr: localhost:8090\n"
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	require.NoError(t, SaveDispatch(path, DefaultDispatch()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "addr: localhost:8090")
	require.Contains(t, content, "dispatch:")
	require.Contains(t, content, "sla: 20m")
}

func TestSaveDispatch_NoTempFileLeftBehind(t *testing.T) {
	path := tempConfigPath(t)
	require.NoError(t, SaveDispatch(path, DefaultDispatch()))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, entry := range entries {
		require.False(t, strings.HasPrefix(entry.Name(), ".relais.yaml.tmp"),
			"temp file %s left behind", entry.Name())
	}
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "20m", formatDuration(20*time.Minute))
	require.Equal(t, "90s", formatDuration(90*time.Second))
	require.Equal(t, "60m", formatDuration(time.Hour))
	require.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	err := WriteDefaultConfig(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "# Relais Configuration")
	require.Contains(t, content, "sla: 20m")
	require.Contains(t, content, "score_threshold: 0.90")
}
