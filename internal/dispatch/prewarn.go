package dispatch

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okiro/relais/internal/cachemanager"
	"github.com/okiro/relais/internal/config"
	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/log"
)

// WarnStore is the slice of the task store the pre-warner reads.
type WarnStore interface {
	DueWithin(ctx context.Context, now time.Time, horizon time.Duration) ([]*review.Task, error)
}

// PreWarner announces approaching deadlines. When a held task's remaining
// time enters a configured warning window (e.g. 5, 3 and 1 minutes left), it
// publishes a task.warning event so the gateway can nudge the holder. Each
// window is announced at most once per deadline; a requeue issues a fresh
// deadline and with it fresh windows.
type PreWarner struct {
	store   WarnStore
	bus     *Bus
	clock   Clock
	source  ConfigSource
	metrics *Metrics
	marks   cachemanager.CacheManager[string, time.Time]

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// PreWarnerConfig holds configuration for creating a PreWarner.
type PreWarnerConfig struct {
	// Store supplies tasks whose deadline is close. Required.
	Store WarnStore
	// Bus receives the warning events. Required.
	Bus *Bus
	// Source supplies dispatch settings per sweep. Defaults to the stock
	// settings if nil.
	Source ConfigSource
	// Clock provides time operations. Defaults to RealClock if nil.
	Clock Clock
	// Metrics receives activity counters. Defaults to a fresh set if nil.
	Metrics *Metrics
	// Marks deduplicates window announcements. Defaults to a fresh
	// in-memory cache if nil.
	Marks cachemanager.CacheManager[string, time.Time]
}

// NewPreWarner creates a pre-warner with the given configuration.
func NewPreWarner(cfg PreWarnerConfig) *PreWarner {
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

	marks := cfg.Marks
	if marks == nil {
		marks = cachemanager.NewInMemoryCacheManager[string, time.Time](
			"deadline-warnings", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &PreWarner{
		store:   cfg.Store,
		bus:     cfg.Bus,
		clock:   clock,
		source:  source,
		metrics: metrics,
		marks:   marks,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start begins the sweep loop. Safe to call only once.
func (w *PreWarner) Start() {
	go w.loop()
}

// Stop terminates the pre-warner and releases resources.
// Blocks until the event loop has exited. Safe to call multiple times.
// Safe to call before Start() - will be a no-op.
func (w *PreWarner) Stop() {
	w.cancel()
	w.closeDone()
	<-w.done
}

// closeDone safely closes the done channel exactly once.
func (w *PreWarner) closeDone() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
}

func (w *PreWarner) loop() {
	defer w.closeDone()

	timer := w.clock.NewTimer(w.source().DeadlineTick)
	defer timer.Stop()

	for {
		select {
		case <-timer.C():
			w.sweep()
			timer = w.clock.NewTimer(w.source().DeadlineTick)

		case <-w.ctx.Done():
			return
		}
	}
}

// sweep announces the current warning window of every task due soon.
func (w *PreWarner) sweep() {
	snap := w.source()
	if len(snap.WarningMarks) == 0 {
		return
	}

	maxMark := 0
	for _, mark := range snap.WarningMarks {
		if mark > maxMark {
			maxMark = mark
		}
	}

	now := w.clock.Now()
	tasks, err := w.store.DueWithin(w.ctx, now, time.Duration(maxMark)*time.Minute)
	if err != nil {
		log.ErrorErr(log.CatDispatch, "Due-soon scan failed", err)
		return
	}

	for _, task := range tasks {
		if task.DeadlineAt == nil || task.AssignedTo == "" {
			continue
		}

		minutes := minutesRemaining(task.DeadlineAt.Sub(now))
		mark, ok := nearestMark(snap.WarningMarks, minutes)
		if !ok {
			continue
		}
		if !w.marks.Add(w.ctx, warnKey(task.ID, *task.DeadlineAt, mark), now, snap.SLA) {
			// Window already announced.
			continue
		}

		w.bus.Publish(review.NewEvent(review.TopicTaskWarning,
			review.WarningPayload{MinutesRemaining: minutes}).
			WithTask(task.ID).
			WithReviewer(task.AssignedTo))
		w.metrics.RecordDeadlineWarning()
		log.Info(log.CatDispatch, "Deadline approaching",
			"task", task.ID,
			"reviewer", task.AssignedTo,
			"minutes_remaining", minutes,
			"window", mark)
	}
}

// minutesRemaining rounds a remaining duration up to whole minutes, so a
// deadline 4m30s away reads as 5 minutes remaining.
func minutesRemaining(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}

// nearestMark returns the smallest configured mark at or above minutes, or
// false when minutes is outside every window.
func nearestMark(marks []int, minutes int) (int, bool) {
	best, ok := 0, false
	for _, mark := range marks {
		if minutes > mark {
			continue
		}
		if !ok || mark < best {
			best, ok = mark, true
		}
	}
	return best, ok
}

// warnKey scopes a warning window to one deadline, so a requeued task warns
// again against its new deadline.
func warnKey(taskID string, deadline time.Time, mark int) string {
	return fmt.Sprintf("warn:%s:%d:%d", taskID, deadline.Unix(), mark)
}
