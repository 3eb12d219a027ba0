package testutil

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okiro/relais/internal/domain/review"
)

// Builder accumulates test data and inserts it in the correct order.
type Builder struct {
	t            *testing.T
	db           *sql.DB
	reviewers    []reviewerData
	tasks        []taskData
	incidents    []incidentData
	applications []applicationData
	candidates   map[string]string
}

// NewBuilder creates a builder for the given test database.
func NewBuilder(t *testing.T, db *sql.DB) *Builder {
	t.Helper()
	return &Builder{t: t, db: db, candidates: make(map[string]string)}
}

// WithReviewer adds a reviewer with optional configuration.
func (b *Builder) WithReviewer(id string, opts ...ReviewerOption) *Builder {
	r := defaultReviewer(id)
	for _, opt := range opts {
		opt(&r)
	}
	b.reviewers = append(b.reviewers, r)
	return b
}

// WithTask adds a task with optional configuration.
func (b *Builder) WithTask(id string, opts ...TaskOption) *Builder {
	tk := defaultTask(id)
	for _, opt := range opts {
		opt(&tk)
	}
	b.tasks = append(b.tasks, tk)
	return b
}

// WithIncident adds a strike record for the given reviewer.
func (b *Builder) WithIncident(reviewerID string, kind review.IncidentKind, opts ...IncidentOption) *Builder {
	i := incidentData{reviewerID: reviewerID, kind: kind, createdAt: time.Now()}
	for _, opt := range opts {
		opt(&i)
	}
	b.incidents = append(b.incidents, i)
	return b
}

// WithApplication adds a finalized application for the candidate/job pair.
func (b *Builder) WithApplication(candidateID, jobID string, opts ...ApplicationOption) *Builder {
	a := applicationData{candidateID: candidateID, jobID: jobID, submittedAt: time.Now()}
	for _, opt := range opts {
		opt(&a)
	}
	b.applications = append(b.applications, a)
	return b
}

// WithCandidate records a cached resume for the candidate.
func (b *Builder) WithCandidate(id, resumeURL string) *Builder {
	b.candidates[id] = resumeURL
	return b
}

// Build inserts all accumulated data.
//
// Reviewers go in before tasks for the assigned_to foreign key; busy
// reviewers get their current_task_id patched afterwards because the
// reference runs the other way.
func (b *Builder) Build() {
	b.t.Helper()
	for _, r := range b.reviewers {
		b.insertReviewer(r)
	}
	for _, tk := range b.tasks {
		b.insertTask(tk)
	}
	for _, r := range b.reviewers {
		if r.currentTaskID != "" {
			_, err := b.db.Exec(`UPDATE reviewers SET current_task_id = ? WHERE id = ?`,
				r.currentTaskID, r.id)
			require.NoError(b.t, err)
		}
	}
	for _, i := range b.incidents {
		b.insertIncident(i)
	}
	for _, a := range b.applications {
		b.insertApplication(a)
	}
	for id, url := range b.candidates {
		_, err := b.db.Exec(`INSERT INTO candidates (id, resume_url, updated_at) VALUES (?, ?, ?)`,
			id, url, time.Now().Unix())
		require.NoError(b.t, err)
	}
}

func (b *Builder) insertReviewer(r reviewerData) {
	b.t.Helper()

	heartbeat := r.lastHeartbeatAt
	if !r.heartbeatSet {
		// Assignable by default: the heartbeat tracks the row timestamps.
		hb := r.updatedAt
		heartbeat = &hb
	}

	_, err := b.db.Exec(
		`INSERT INTO reviewers (id, name, role, presence, warnings, violations, tasks_completed,
		        avg_completion_seconds, active, current_task_id, last_heartbeat_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)`,
		r.id, r.name, string(r.role), string(r.presence), r.warnings, r.violations,
		r.tasksCompleted, r.avgCompletionSeconds, r.active,
		nullUnix(heartbeat), r.createdAt.Unix(), r.updatedAt.Unix(),
	)
	require.NoError(b.t, err)
}

func (b *Builder) insertTask(tk taskData) {
	b.t.Helper()

	assignedAt := tk.assignedAt
	if tk.assignedTo != "" && assignedAt == nil {
		at := tk.createdAt
		assignedAt = &at
	}
	startedAt := tk.startedAt
	if tk.status == review.StatusInProgress && startedAt == nil {
		startedAt = assignedAt
	}

	_, err := b.db.Exec(
		`INSERT INTO tasks (id, candidate_id, job_id, ats_score, status, assigned_to, assigned_at,
		        deadline_at, started_at, completed_at, old_resume_url, new_resume_url,
		        missing_keywords, suggestions, notes, retry_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tk.id, tk.candidateID, tk.jobID, tk.atsScore, string(tk.status),
		nullString(tk.assignedTo), nullUnix(assignedAt), nullUnix(tk.deadlineAt),
		nullUnix(startedAt), nullUnix(tk.completedAt),
		tk.oldResumeURL, tk.newResumeURL,
		jsonList(b.t, tk.missingKeywords), jsonList(b.t, tk.suggestions),
		tk.notes, tk.retryCount, tk.createdAt.Unix(), tk.updatedAt.Unix(),
	)
	require.NoError(b.t, err)
}

func (b *Builder) insertIncident(i incidentData) {
	b.t.Helper()
	_, err := b.db.Exec(
		`INSERT INTO incidents (reviewer_id, task_id, kind, reason, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		i.reviewerID, nullString(i.taskID), string(i.kind), i.reason, i.createdAt.Unix(),
	)
	require.NoError(b.t, err)
}

func (b *Builder) insertApplication(a applicationData) {
	b.t.Helper()
	_, err := b.db.Exec(
		`INSERT INTO applications (candidate_id, job_id, resume_url, ats_score_at_submission,
		        auto_submitted, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.candidateID, a.jobID, a.resumeURL, a.atsScore, a.autoSubmitted, a.submittedAt.Unix(),
	)
	require.NoError(b.t, err)
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonList(t *testing.T, list []string) string {
	t.Helper()
	if len(list) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(list)
	require.NoError(t, err)
	return string(raw)
}
