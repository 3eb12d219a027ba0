package watcher

import (
	"sync/atomic"
	"time"

	"github.com/okiro/relais/internal/config"
	"github.com/okiro/relais/internal/log"
)

// Reloader keeps the live dispatch settings. It seeds a snapshot from the
// boot configuration, watches the config file, and swaps the snapshot when
// an edit lands. Loops that consult Source each tick pick up SLA and
// threshold tuning without a daemon restart.
type Reloader struct {
	path    string
	watcher *Watcher
	current atomic.Value // config.DispatchConfig
}

// ReloaderConfig holds configuration for creating a Reloader.
type ReloaderConfig struct {
	// Path is the config file to watch and re-read.
	Path string

	// Boot seeds the snapshot until the first file change. Invalid or zero
	// boot settings fall back to the stock defaults.
	Boot config.DispatchConfig

	// DebounceDur coalesces bursts of file events. Defaults to 1s.
	DebounceDur time.Duration
}

// NewReloader creates a reloader primed with the boot settings. Call Start
// to begin watching the file.
func NewReloader(cfg ReloaderConfig) (*Reloader, error) {
	debounce := cfg.DebounceDur
	if debounce <= 0 {
		debounce = 1 * time.Second
	}

	w, err := New(Config{Path: cfg.Path, DebounceDur: debounce})
	if err != nil {
		return nil, err
	}

	boot := cfg.Boot
	if err := config.ValidateDispatch(boot); err != nil {
		boot = config.DefaultDispatch()
	}

	r := &Reloader{path: cfg.Path, watcher: w}
	r.current.Store(boot)
	return r, nil
}

// Start begins watching the config file for dispatch changes.
func (r *Reloader) Start() error {
	onChange, err := r.watcher.Start()
	if err != nil {
		return err
	}

	log.SafeGo("watcher.reload", func() {
		for range onChange {
			r.reload()
		}
	})
	return nil
}

// Stop terminates the file watch. The last snapshot stays readable.
func (r *Reloader) Stop() error {
	return r.watcher.Stop()
}

// Source returns the current dispatch settings. It is safe for concurrent
// use and cheap enough to call on every loop tick, which makes it suitable
// as the config source for the dispatcher, the gateway, and the API.
func (r *Reloader) Source() config.DispatchConfig {
	return r.current.Load().(config.DispatchConfig)
}

// reload re-reads the dispatch section and swaps the snapshot. A file that
// no longer parses or validates leaves the previous settings in force, so a
// botched edit never knocks out the running policy.
func (r *Reloader) reload() {
	d, err := config.LoadDispatch(r.path)
	if err != nil {
		log.ErrorErr(log.CatWatcher, "Config reload failed, keeping previous settings", err,
			"path", r.path)
		return
	}

	r.current.Store(d)
	log.Info(log.CatWatcher, "Dispatch settings reloaded",
		"sla", d.SLA,
		"presence_ttl", d.PresenceTTL,
		"score_threshold", d.ScoreThreshold)
}
