package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okiro/relais/internal/api"
	"github.com/okiro/relais/internal/autoapply"
	"github.com/okiro/relais/internal/config"
	"github.com/okiro/relais/internal/dispatch"
	"github.com/okiro/relais/internal/gateway"
	"github.com/okiro/relais/internal/infrastructure/sqlite"
	"github.com/okiro/relais/internal/log"
	"github.com/okiro/relais/internal/roster"
	"github.com/okiro/relais/internal/tracing"
	"github.com/okiro/relais/internal/watcher"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the dispatch daemon",
	Long: `Run the dispatch core as a daemon that owns the task store and exposes
an HTTP API for the scoring pipeline and reviewer tooling.

The daemon runs three loops: the assigner hands queued tasks to available
reviewers one at a time, the deadline monitor requeues lapsed tasks and
applies strikes, and the pre-warner nudges reviewers shortly before their
deadline hits. Dispatch settings (SLA, warning marks, score threshold) are
re-read from the config file while running; store path and listen address
require a restart.

Example:
  relais daemon                 # listen on the configured address
  relais daemon --addr :8080    # override the listen address`,
	RunE: runDaemon,
}

var daemonAddr string

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonAddr, "addr", "", "Address to listen on (overrides config)")
}

func runDaemon(_ *cobra.Command, _ []string) error {
	// Initialize logging if debug mode enabled (via flag or env var)
	debug := os.Getenv("RELAIS_DEBUG") != "" || debugFlag
	if debug {
		logPath := os.Getenv("RELAIS_LOG")
		if logPath == "" {
			logPath = config.DefaultLogPath()
		}
		if logPath == "" {
			logPath = "debug.log"
		}

		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		defer cleanup()

		log.Info(log.CatConfig, "Relais daemon starting", "debug", true, "logPath", logPath)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tracingCfg := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		FilePath:     cfg.Tracing.FilePath,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
	}
	if tracingCfg.FilePath == "" {
		tracingCfg.FilePath = config.DefaultTracesFilePath()
	}
	provider, err := tracing.NewProvider(tracingCfg)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = config.DefaultStorePath()
	}
	db, err := sqlite.NewDB(storePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	bus := dispatch.NewBus()
	store := db.Store(bus)

	if cfg.Roster.Path != "" {
		n, err := roster.Seed(context.Background(), store, cfg.Roster.Path)
		if err != nil {
			_ = db.Close()
			return fmt.Errorf("seeding roster: %w", err)
		}
		fmt.Printf("Seeded %d reviewers from %s\n", n, cfg.Roster.Path)
	}

	// Dispatch settings hot-reload from the config file. The reloader's
	// snapshot is the single config source for every loop, the gateway, and
	// the API.
	reloader, err := watcher.NewReloader(watcher.ReloaderConfig{
		Path: configFilePath(),
		Boot: cfg.Dispatch,
	})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("creating config reloader: %w", err)
	}
	if err := reloader.Start(); err != nil {
		// Boot settings still apply; only live tuning is lost.
		log.ErrorErr(log.CatWatcher, "Config watch failed, hot reload disabled", err,
			"path", configFilePath())
	}

	metrics := dispatch.NewMetrics()
	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherConfig{
		Store:   store,
		Bus:     bus,
		Source:  reloader.Source,
		Metrics: metrics,
	})
	gw := gateway.New(gateway.Config{
		Store:  store,
		Source: reloader.Source,
	})
	forwarder := autoapply.New(autoapply.Config{
		Endpoint: cfg.AutoApply.Endpoint,
		Timeout:  cfg.AutoApply.Timeout,
	})

	addr := daemonAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	server, err := api.NewServer(api.ServerConfig{
		Addr:      addr,
		Store:     store,
		Gateway:   gw,
		Bus:       bus,
		Forwarder: forwarder,
		Metrics:   metrics,
		Source:    reloader.Source,
		Tracer:    provider.Tracer(),
	})
	if err != nil {
		_ = reloader.Stop()
		_ = db.Close()
		return fmt.Errorf("creating API server: %w", err)
	}

	dispatcher.Start()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("Relais daemon started on port %d\n", server.Port())
	fmt.Println("Press Ctrl+C to stop")

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop producing work first, then drain the API. Closing the bus before
	// the server ends the SSE streams so the drain never waits on them.
	dispatcher.Stop()
	_ = reloader.Stop()
	bus.Close()

	if err := server.Stop(shutdownCtx); err != nil {
		log.ErrorErr(log.CatAPI, "Error stopping API server", err)
	}
	gw.CloseAll()

	if err := db.Close(); err != nil {
		log.ErrorErr(log.CatDB, "Error closing store", err)
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatConfig, "Error shutting down tracing", err)
	}

	fmt.Println("Daemon stopped")
	return nil
}
