package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/okiro/relais/internal/domain/review"
)

// Metrics counts dispatcher activity since process start. Counters only move
// forward; a restart zeroes them. Safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	startedAt time.Time

	// Assigner activity
	tasksAssigned uint64

	// Deadline monitor activity
	tasksExpired     uint64
	strikeWarnings   uint64
	strikeViolations uint64
	suspensions      uint64

	// Pre-warner activity
	deadlineWarnings uint64
}

// NewMetrics creates a zeroed metrics set.
func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// RecordAssignment counts one successful task claim.
func (m *Metrics) RecordAssignment() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasksAssigned++
}

// RecordExpiry counts one enforced deadline miss and the strike it produced.
// A suspension counts as a violation too, matching the strike machine.
func (m *Metrics) RecordExpiry(strike review.StrikeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasksExpired++
	switch strike.Kind {
	case review.IncidentWarning:
		m.strikeWarnings++
	case review.IncidentViolation:
		m.strikeViolations++
	case review.IncidentSuspension:
		m.strikeViolations++
		m.suspensions++
	}
}

// RecordDeadlineWarning counts one pre-deadline nudge.
func (m *Metrics) RecordDeadlineWarning() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadlineWarnings++
}

// MetricsSnapshot is a point-in-time copy of the counters for reporting.
type MetricsSnapshot struct {
	StartedAt        time.Time `json:"started_at"`
	UptimeSeconds    float64   `json:"uptime_seconds"`
	TasksAssigned    uint64    `json:"tasks_assigned"`
	TasksExpired     uint64    `json:"tasks_expired"`
	StrikeWarnings   uint64    `json:"strike_warnings"`
	StrikeViolations uint64    `json:"strike_violations"`
	Suspensions      uint64    `json:"suspensions"`
	DeadlineWarnings uint64    `json:"deadline_warnings"`
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		StartedAt:        m.startedAt,
		UptimeSeconds:    time.Since(m.startedAt).Seconds(),
		TasksAssigned:    m.tasksAssigned,
		TasksExpired:     m.tasksExpired,
		StrikeWarnings:   m.strikeWarnings,
		StrikeViolations: m.strikeViolations,
		Suspensions:      m.suspensions,
		DeadlineWarnings: m.deadlineWarnings,
	}
}

// FormatSummary returns a one-line human-readable counter summary
// (e.g. "assigned=12 expired=2 warnings=1 violations=1 suspended=0").
func (s MetricsSnapshot) FormatSummary() string {
	return fmt.Sprintf("assigned=%d expired=%d warnings=%d violations=%d suspended=%d",
		s.TasksAssigned, s.TasksExpired, s.StrikeWarnings, s.StrikeViolations, s.Suspensions)
}
