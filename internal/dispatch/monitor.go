package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/okiro/relais/internal/config"
	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/infrastructure/sqlite"
	"github.com/okiro/relais/internal/log"
)

// MonitorStore is the slice of the task store the deadline monitor drives.
type MonitorStore interface {
	OverdueTasks(ctx context.Context, now time.Time) ([]*review.Task, error)
	Expire(ctx context.Context, taskID string, now time.Time, policy review.StrikePolicy) (*sqlite.ExpireResult, error)
}

// Monitor enforces the review SLA. On every sweep it collects held tasks
// whose deadline has passed and expires each one, which requeues the task
// and strikes the lapsed reviewer. The store announces the fallout on the
// bus, so an expiry also wakes the assigner to re-place the task.
type Monitor struct {
	store   MonitorStore
	clock   Clock
	source  ConfigSource
	metrics *Metrics

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// MonitorConfig holds configuration for creating a Monitor.
type MonitorConfig struct {
	// Store supplies overdue tasks and applies expiries. Required.
	Store MonitorStore
	// Source supplies dispatch settings per sweep. Defaults to the stock
	// settings if nil.
	Source ConfigSource
	// Clock provides time operations. Defaults to RealClock if nil.
	Clock Clock
	// Metrics receives activity counters. Defaults to a fresh set if nil.
	Metrics *Metrics
}

// NewMonitor creates a deadline monitor with the given configuration.
func NewMonitor(cfg MonitorConfig) *Monitor {
	source := cfg.Source
	if source == nil {
		source = func() config.DispatchConfig { return config.DefaultDispatch() }
	}

	clock := cfg.Clock
	if clock == nil {
		clock = RealClock{}
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		store:   cfg.Store,
		clock:   clock,
		source:  source,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start begins the sweep loop. Safe to call only once.
func (m *Monitor) Start() {
	go m.loop()
}

// Stop terminates the monitor and releases resources.
// Blocks until the event loop has exited. Safe to call multiple times.
// Safe to call before Start() - will be a no-op.
func (m *Monitor) Stop() {
	m.cancel()
	m.closeDone()
	<-m.done
}

// closeDone safely closes the done channel exactly once.
func (m *Monitor) closeDone() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}

func (m *Monitor) loop() {
	defer m.closeDone()

	timer := m.clock.NewTimer(m.source().DeadlineTick)
	defer timer.Stop()

	for {
		select {
		case <-timer.C():
			m.sweep()
			timer = m.clock.NewTimer(m.source().DeadlineTick)

		case <-m.ctx.Done():
			return
		}
	}
}

// sweep expires every task past its deadline. Each expiry is its own store
// transaction; one failure does not stop the rest of the sweep.
func (m *Monitor) sweep() {
	snap := m.source()
	now := m.clock.Now()

	tasks, err := m.store.OverdueTasks(m.ctx, now)
	if err != nil {
		log.ErrorErr(log.CatDispatch, "Overdue scan failed", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	policy := snap.StrikePolicy()
	for _, task := range tasks {
		res, err := m.store.Expire(m.ctx, task.ID, now, policy)
		if err != nil {
			log.ErrorErr(log.CatDispatch, "Expiry failed", err, "task", task.ID)
			continue
		}
		if res == nil {
			// Resolved between the scan and the expiry.
			continue
		}

		m.metrics.RecordExpiry(res.Strike)
		log.Warn(log.CatDispatch, "Deadline missed",
			"task", task.ID,
			"reviewer", res.Reviewer.ID,
			"strike", res.Strike.Kind,
			"warnings", res.Strike.Warnings,
			"violations", res.Strike.Violations)
	}
}
