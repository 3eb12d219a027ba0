package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreset_ReviewerBench(t *testing.T) {
	db := NewTestDB(t)

	NewBuilder(t, db).WithReviewerBench().Build()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM reviewers`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// bob has the fewest completions and should be the fairness pick.
	var id string
	err = db.QueryRow(
		`SELECT id FROM reviewers WHERE presence = 'available' AND active = 1
		 ORDER BY tasks_completed ASC LIMIT 1`).Scan(&id)
	require.NoError(t, err)
	require.Equal(t, "bob", id)
}

func TestPreset_QueuedBacklog(t *testing.T) {
	db := NewTestDB(t)

	NewBuilder(t, db).WithQueuedBacklog().Build()

	rows, err := db.Query(`SELECT id FROM tasks WHERE status = 'queued' ORDER BY created_at ASC`)
	require.NoError(t, err)
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{"task-old", "task-mid", "task-new"}, ids, "FIFO order follows creation time")
}

func TestPreset_ActiveReview(t *testing.T) {
	db := NewTestDB(t)

	NewBuilder(t, db).WithActiveReview().Build()

	var presence, currentTask string
	err := db.QueryRow(`SELECT presence, current_task_id FROM reviewers WHERE id = 'dana'`).
		Scan(&presence, &currentTask)
	require.NoError(t, err)
	require.Equal(t, "busy", presence)
	require.Equal(t, "task-active", currentTask)

	var status string
	var started *int64
	err = db.QueryRow(`SELECT status, started_at FROM tasks WHERE id = 'task-active'`).
		Scan(&status, &started)
	require.NoError(t, err)
	require.Equal(t, "in_progress", status)
	require.NotNil(t, started, "in-progress tasks carry a start timestamp")
}
