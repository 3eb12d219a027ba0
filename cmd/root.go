package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/okiro/relais/internal/config"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "relais",
	Short: "Task dispatch and SLA enforcement for resume reviews",
	Long: `Relais queues borderline job applications for human review, assigns each
task to exactly one available reviewer, and enforces a completion deadline
with escalating strikes when reviewers let tasks lapse.

Run 'relais daemon' to start the dispatch core, then point the scoring
pipeline and the reviewer tooling at its HTTP API.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/relais/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("store.path", defaults.Store.Path)
	viper.SetDefault("server.addr", defaults.Server.Addr)
	viper.SetDefault("dispatch.sla", defaults.Dispatch.SLA)
	viper.SetDefault("dispatch.warning_marks", defaults.Dispatch.WarningMarks)
	viper.SetDefault("dispatch.presence_ttl", defaults.Dispatch.PresenceTTL)
	viper.SetDefault("dispatch.assign_tick", defaults.Dispatch.AssignTick)
	viper.SetDefault("dispatch.deadline_tick", defaults.Dispatch.DeadlineTick)
	viper.SetDefault("dispatch.max_retries", defaults.Dispatch.MaxRetries)
	viper.SetDefault("dispatch.warnings_before_violation", defaults.Dispatch.WarningsBeforeViolation)
	viper.SetDefault("dispatch.violations_before_suspension", defaults.Dispatch.ViolationsBeforeSuspension)
	viper.SetDefault("dispatch.score_threshold", defaults.Dispatch.ScoreThreshold)
	viper.SetDefault("auto_apply.timeout", defaults.AutoApply.Timeout)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .relais/config.yaml (current directory)
		// 2. ~/.config/relais/config.yaml (user config)
		if _, err := os.Stat(".relais/config.yaml"); err == nil {
			viper.SetConfigFile(".relais/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "relais"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .relais/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".relais/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// configFilePath returns the config file in use, falling back to the default
// location when none was loaded. The daemon watches this path for dispatch
// setting changes.
func configFilePath() string {
	if path := viper.ConfigFileUsed(); path != "" {
		return path
	}
	return ".relais/config.yaml"
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
