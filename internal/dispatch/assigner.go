package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okiro/relais/internal/config"
	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/infrastructure/sqlite"
	"github.com/okiro/relais/internal/log"
)

// ConfigSource returns the current dispatch settings. The daemon wires this
// to the hot-reloading config snapshot so every pass sees the latest knobs.
type ConfigSource func() config.DispatchConfig

// AssignStore is the slice of the task store the assigner drives.
type AssignStore interface {
	AssignNext(ctx context.Context, now time.Time, p sqlite.AssignParams) (*sqlite.Assignment, error)
}

// Assigner matches queued tasks to eligible reviewers. It runs a pass on a
// fixed cadence and immediately when queue or bench activity lands on the
// bus, claiming tasks one at a time until the queue or the bench runs dry.
type Assigner struct {
	store   AssignStore
	bus     *Bus
	clock   Clock
	source  ConfigSource
	metrics *Metrics

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// AssignerConfig holds configuration for creating an Assigner.
type AssignerConfig struct {
	// Store claims tasks. Required.
	Store AssignStore
	// Bus supplies the wake-up events. Required.
	Bus *Bus
	// Source supplies dispatch settings per pass. Defaults to the stock
	// settings if nil.
	Source ConfigSource
	// Clock provides time operations. Defaults to RealClock if nil.
	Clock Clock
	// Metrics receives activity counters. Defaults to a fresh set if nil.
	Metrics *Metrics
}

// NewAssigner creates an assigner with the given configuration.
func NewAssigner(cfg AssignerConfig) *Assigner {
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
	return &Assigner{
		store:   cfg.Store,
		bus:     cfg.Bus,
		clock:   clock,
		source:  source,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start begins the assignment loop. Safe to call only once.
func (a *Assigner) Start() {
	go a.loop()
}

// Stop terminates the assigner and releases resources.
// Blocks until the event loop has exited. Safe to call multiple times.
// Safe to call before Start() - will be a no-op.
func (a *Assigner) Stop() {
	a.cancel()
	a.closeDone()
	<-a.done
}

// closeDone safely closes the done channel exactly once.
func (a *Assigner) closeDone() {
	a.closeOnce.Do(func() {
		close(a.done)
	})
}

// loop wakes on queue and bench activity and otherwise ticks on the assign
// cadence. The timer is re-armed after each periodic pass so a reloaded
// cadence takes effect on the next arm.
func (a *Assigner) loop() {
	defer a.closeDone()

	wake := a.bus.SubscribeTopics(a.ctx,
		review.TopicTaskEnqueued, review.TopicTaskRequeued, review.TopicReviewerPresence)

	timer := a.clock.NewTimer(a.source().AssignTick)
	defer timer.Stop()

	for {
		select {
		case _, ok := <-wake:
			if !ok {
				return
			}
			drainWake(wake)
			a.runPass()

		case <-timer.C():
			a.runPass()
			timer = a.clock.NewTimer(a.source().AssignTick)

		case <-a.ctx.Done():
			return
		}
	}
}

// drainWake coalesces a burst of wake-ups into a single pass.
func drainWake(ch <-chan BusEvent) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// runPass claims tasks until nothing is left to match. Each claim is its own
// store transaction, so a pass interleaves cleanly with API writes.
func (a *Assigner) runPass() {
	snap := a.source()
	params := sqlite.AssignParams{
		SLA:          snap.SLA,
		MaxRetries:   snap.MaxRetries,
		PresenceTTL:  snap.PresenceTTL,
		ViolationCap: snap.ViolationsBeforeSuspension,
	}

	for {
		asg, err := a.store.AssignNext(a.ctx, a.clock.Now(), params)
		switch {
		case errors.Is(err, review.ErrNoQueuedTask):
			return
		case errors.Is(err, review.ErrNoCandidateReviewer):
			log.Debug(log.CatDispatch, "Queue has work but no reviewer is eligible")
			return
		case err != nil:
			log.ErrorErr(log.CatDispatch, "Assignment pass failed", err)
			return
		}

		a.metrics.RecordAssignment()
		log.Info(log.CatDispatch, "Task assigned",
			"task", asg.Task.ID,
			"reviewer", asg.Reviewer.ID,
			"deadline_at", asg.Task.DeadlineAt.UTC().Format(time.RFC3339))
	}
}
