package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okiro/relais/internal/domain/review"
)

func TestMetrics_SnapshotCounts(t *testing.T) {
	m := NewMetrics()
	m.RecordAssignment()
	m.RecordAssignment()
	m.RecordExpiry(review.StrikeResult{Kind: review.IncidentWarning, Warnings: 1})
	m.RecordExpiry(review.StrikeResult{Kind: review.IncidentViolation, Violations: 1})
	m.RecordExpiry(review.StrikeResult{Kind: review.IncidentSuspension, Violations: 3, Suspended: true})
	m.RecordDeadlineWarning()

	snap := m.Snapshot()
	require.Equal(t, uint64(2), snap.TasksAssigned)
	require.Equal(t, uint64(3), snap.TasksExpired)
	require.Equal(t, uint64(1), snap.StrikeWarnings)
	// The suspension is the capping violation, so it counts in both buckets.
	require.Equal(t, uint64(2), snap.StrikeViolations)
	require.Equal(t, uint64(1), snap.Suspensions)
	require.Equal(t, uint64(1), snap.DeadlineWarnings)
	require.False(t, snap.StartedAt.IsZero())
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordAssignment()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, uint64(800), m.Snapshot().TasksAssigned)
}

func TestMetricsSnapshot_FormatSummary(t *testing.T) {
	s := MetricsSnapshot{
		TasksAssigned:    12,
		TasksExpired:     2,
		StrikeWarnings:   1,
		StrikeViolations: 1,
	}
	require.Equal(t, "assigned=12 expired=2 warnings=1 violations=1 suspended=0", s.FormatSummary())
}
