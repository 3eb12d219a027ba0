package dispatch

// DispatchStore is the full slice of the task store the dispatcher drives.
type DispatchStore interface {
	AssignStore
	MonitorStore
	WarnStore
}

// Dispatcher bundles the assigner, the deadline monitor and the pre-warner
// behind one Start/Stop pair. All three share the same metrics set.
type Dispatcher struct {
	Assigner  *Assigner
	Monitor   *Monitor
	PreWarner *PreWarner
	Metrics   *Metrics
}

// DispatcherConfig holds configuration for creating a Dispatcher.
type DispatcherConfig struct {
	// Store backs all three loops. Required.
	Store DispatchStore
	// Bus wakes the assigner and carries the warning events. Required.
	Bus *Bus
	// Source supplies dispatch settings. Defaults to the stock settings if
	// nil.
	Source ConfigSource
	// Clock provides time operations. Defaults to RealClock if nil.
	Clock Clock
	// Metrics receives activity counters. Defaults to a fresh set if nil.
	Metrics *Metrics
}

// NewDispatcher creates the three dispatch loops around one store and bus.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	return &Dispatcher{
		Assigner: NewAssigner(AssignerConfig{
			Store:   cfg.Store,
			Bus:     cfg.Bus,
			Source:  cfg.Source,
			Clock:   cfg.Clock,
			Metrics: metrics,
		}),
		Monitor: NewMonitor(MonitorConfig{
			Store:   cfg.Store,
			Source:  cfg.Source,
			Clock:   cfg.Clock,
			Metrics: metrics,
		}),
		PreWarner: NewPreWarner(PreWarnerConfig{
			Store:   cfg.Store,
			Bus:     cfg.Bus,
			Source:  cfg.Source,
			Clock:   cfg.Clock,
			Metrics: metrics,
		}),
		Metrics: metrics,
	}
}

// Start launches all three loops.
func (d *Dispatcher) Start() {
	d.Assigner.Start()
	d.Monitor.Start()
	d.PreWarner.Start()
}

// Stop halts the loops in reverse order and blocks until each has exited.
func (d *Dispatcher) Stop() {
	d.PreWarner.Stop()
	d.Monitor.Stop()
	d.Assigner.Stop()
}
