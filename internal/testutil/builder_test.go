package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/infrastructure/sqlite"
)

func TestBuilder_WithReviewerDefaults(t *testing.T) {
	db := NewTestDB(t)

	NewBuilder(t, db).
		WithReviewer("rev-1").
		Build()

	var id, name, role, presence string
	var active bool
	var heartbeat *int64
	err := db.QueryRow(
		`SELECT id, name, role, presence, active, last_heartbeat_at FROM reviewers WHERE id = ?`, "rev-1").
		Scan(&id, &name, &role, &presence, &active, &heartbeat)
	require.NoError(t, err)
	require.Equal(t, "rev-1", id)
	require.Equal(t, "rev-1", name) // default name is the ID
	require.Equal(t, "employee", role)
	require.Equal(t, "available", presence)
	require.True(t, active)
	require.NotNil(t, heartbeat, "default reviewer carries a fresh heartbeat")
}

func TestBuilder_WithReviewerAllOptions(t *testing.T) {
	db := NewTestDB(t)
	joined := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	NewBuilder(t, db).
		WithReviewer("rev-1",
			Named("Alice Moreau"),
			Role(review.RoleManager),
			Presence(review.PresenceOffline),
			Strikes(2, 1),
			Completions(7),
			AvgCompletion(432.5),
			JoinedAt(joined),
			NoHeartbeat(),
		).
		Build()

	var name, role, presence string
	var warnings, violations, completed int
	var avg float64
	var heartbeat *int64
	var createdAt int64
	err := db.QueryRow(
		`SELECT name, role, presence, warnings, violations, tasks_completed, avg_completion_seconds,
		        last_heartbeat_at, created_at
		 FROM reviewers WHERE id = ?`, "rev-1").
		Scan(&name, &role, &presence, &warnings, &violations, &completed, &avg, &heartbeat, &createdAt)
	require.NoError(t, err)
	require.Equal(t, "Alice Moreau", name)
	require.Equal(t, "manager", role)
	require.Equal(t, "offline", presence)
	require.Equal(t, 2, warnings)
	require.Equal(t, 1, violations)
	require.Equal(t, 7, completed)
	require.InDelta(t, 432.5, avg, 0.001)
	require.Nil(t, heartbeat, "NoHeartbeat leaves the column NULL")
	require.Equal(t, joined.Unix(), createdAt)
}

func TestBuilder_WiresBusyReviewerToTask(t *testing.T) {
	db := NewTestDB(t)
	deadline := time.Now().Add(20 * time.Minute)

	NewBuilder(t, db).
		WithReviewer("rev-1", OnTask("task-1")).
		WithTask("task-1", Assigned("rev-1", deadline)).
		Build()

	var presence, currentTask string
	err := db.QueryRow(`SELECT presence, current_task_id FROM reviewers WHERE id = ?`, "rev-1").
		Scan(&presence, &currentTask)
	require.NoError(t, err)
	require.Equal(t, "busy", presence)
	require.Equal(t, "task-1", currentTask)

	var status, assignedTo string
	var deadlineAt int64
	err = db.QueryRow(`SELECT status, assigned_to, deadline_at FROM tasks WHERE id = ?`, "task-1").
		Scan(&status, &assignedTo, &deadlineAt)
	require.NoError(t, err)
	require.Equal(t, "assigned", status)
	require.Equal(t, "rev-1", assignedTo)
	require.Equal(t, deadline.Unix(), deadlineAt)
}

// Fixture rows must scan cleanly through the production store, or the
// fixtures are lying about the schema.
func TestBuilder_RowsReadBackThroughStore(t *testing.T) {
	db := NewTestDB(t)
	now := time.Now()
	deadline := now.Add(15 * time.Minute)

	NewBuilder(t, db).
		WithReviewer("rev-1", Strikes(1, 0), Completions(3)).
		WithTask("task-1",
			Candidate("cand-7"), Job("job-3"), Score(0.66),
			Keywords("golang", "grpc"), Suggestions("lead with impact"),
			Notes("second pass"), Retries(1),
			CreatedAt(now.Add(-time.Hour)),
			InProgress("rev-1", deadline)).
		WithIncident("rev-1", review.IncidentWarning,
			IncidentTask("task-1"), IncidentReason("sla exceeded by 2 min")).
		WithApplication("cand-7", "job-old",
			AppResume("https://cdn.example/r.pdf"), AppScore(0.91), AutoSubmitted()).
		WithCandidate("cand-7", "https://cdn.example/r.pdf").
		Build()

	store := sqlite.NewStore(db, nil)
	ctx := context.Background()

	task, err := store.GetTask(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, review.StatusInProgress, task.Status)
	require.Equal(t, "cand-7", task.CandidateID)
	require.Equal(t, "rev-1", task.AssignedTo)
	require.Equal(t, []string{"golang", "grpc"}, task.MissingKeywords)
	require.Equal(t, []string{"lead with impact"}, task.Suggestions)
	require.Equal(t, 1, task.RetryCount)
	require.NotNil(t, task.StartedAt)
	require.Equal(t, deadline.Unix(), task.DeadlineAt.Unix())

	rev, err := store.GetReviewer(ctx, "rev-1")
	require.NoError(t, err)
	require.Equal(t, 1, rev.Warnings)
	require.Equal(t, 3, rev.TasksCompleted)

	incidents, err := store.ListIncidents(ctx, "rev-1", 0)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	require.Equal(t, review.IncidentWarning, incidents[0].Kind)
	require.Equal(t, "task-1", incidents[0].TaskID)

	app, err := store.GetApplication(ctx, "cand-7", "job-old")
	require.NoError(t, err)
	require.True(t, app.AutoSubmitted)
	require.InDelta(t, 0.91, app.ATSScoreAtSubmission, 0.0001)
}
