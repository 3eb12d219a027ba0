package testutil

import (
	"time"

	"github.com/okiro/relais/internal/domain/review"
)

// reviewerData holds all data for a reviewer row to be inserted.
type reviewerData struct {
	id                   string
	name                 string
	role                 review.Role
	presence             review.Presence
	warnings             int
	violations           int
	tasksCompleted       int
	avgCompletionSeconds float64
	active               bool
	currentTaskID        string
	lastHeartbeatAt      *time.Time
	heartbeatSet         bool
	createdAt            time.Time
	updatedAt            time.Time
}

// defaultReviewer returns a reviewer that is immediately assignable:
// available, active, and with a heartbeat stamped at build time.
func defaultReviewer(id string) reviewerData {
	now := time.Now()
	return reviewerData{
		id:        id,
		name:      id, // Default name is the ID
		role:      review.RoleEmployee,
		presence:  review.PresenceAvailable,
		active:    true,
		createdAt: now,
		updatedAt: now,
	}
}

// ReviewerOption configures a reviewer during builder setup.
type ReviewerOption func(*reviewerData)

// Named sets the reviewer's display name.
func Named(name string) ReviewerOption {
	return func(r *reviewerData) { r.name = name }
}

// Role sets the reviewer's role.
func Role(role review.Role) ReviewerOption {
	return func(r *reviewerData) { r.role = role }
}

// Presence sets the reviewer's presence.
func Presence(p review.Presence) ReviewerOption {
	return func(r *reviewerData) { r.presence = p }
}

// Strikes sets the accumulated warning and violation counts.
func Strikes(warnings, violations int) ReviewerOption {
	return func(r *reviewerData) {
		r.warnings = warnings
		r.violations = violations
	}
}

// Completions sets the completed-task counter used by the fairness policy.
func Completions(n int) ReviewerOption {
	return func(r *reviewerData) { r.tasksCompleted = n }
}

// AvgCompletion sets the rolling average completion time in seconds.
func AvgCompletion(seconds float64) ReviewerOption {
	return func(r *reviewerData) { r.avgCompletionSeconds = seconds }
}

// Suspended deactivates the reviewer and forces them offline.
func Suspended() ReviewerOption {
	return func(r *reviewerData) {
		r.active = false
		r.presence = review.PresenceOffline
	}
}

// OnTask marks the reviewer busy holding the given task. The task must be
// added to the same builder.
func OnTask(taskID string) ReviewerOption {
	return func(r *reviewerData) {
		r.presence = review.PresenceBusy
		r.currentTaskID = taskID
	}
}

// Heartbeat sets the last heartbeat timestamp.
func Heartbeat(t time.Time) ReviewerOption {
	return func(r *reviewerData) {
		r.lastHeartbeatAt = &t
		r.heartbeatSet = true
	}
}

// NoHeartbeat leaves the reviewer without any heartbeat on record, as if
// they never connected.
func NoHeartbeat() ReviewerOption {
	return func(r *reviewerData) {
		r.lastHeartbeatAt = nil
		r.heartbeatSet = true
	}
}

// JoinedAt sets the created/updated timestamps. The default heartbeat
// follows along unless set explicitly.
func JoinedAt(t time.Time) ReviewerOption {
	return func(r *reviewerData) {
		r.createdAt = t
		r.updatedAt = t
	}
}

// taskData holds all data for a task row to be inserted.
type taskData struct {
	id              string
	candidateID     string
	jobID           string
	atsScore        float64
	status          review.Status
	assignedTo      string
	assignedAt      *time.Time
	deadlineAt      *time.Time
	startedAt       *time.Time
	completedAt     *time.Time
	oldResumeURL    string
	newResumeURL    string
	missingKeywords []string
	suggestions     []string
	notes           string
	retryCount      int
	createdAt       time.Time
	updatedAt       time.Time
}

// defaultTask returns a queued task with a below-threshold score.
func defaultTask(id string) taskData {
	now := time.Now()
	return taskData{
		id:          id,
		candidateID: "cand-" + id,
		jobID:       "job-" + id,
		atsScore:    0.42,
		status:      review.StatusQueued,
		createdAt:   now,
		updatedAt:   now,
	}
}

// TaskOption configures a task during builder setup.
type TaskOption func(*taskData)

// Candidate sets the candidate the task belongs to.
func Candidate(id string) TaskOption {
	return func(tk *taskData) { tk.candidateID = id }
}

// Job sets the job posting the task targets.
func Job(id string) TaskOption {
	return func(tk *taskData) { tk.jobID = id }
}

// Score sets the ATS score that put the task in the review queue.
func Score(score float64) TaskOption {
	return func(tk *taskData) { tk.atsScore = score }
}

// OldResume sets the resume the candidate currently has on file.
func OldResume(url string) TaskOption {
	return func(tk *taskData) { tk.oldResumeURL = url }
}

// Keywords sets the missing-keyword hints attached to the task.
func Keywords(kw ...string) TaskOption {
	return func(tk *taskData) { tk.missingKeywords = append(tk.missingKeywords, kw...) }
}

// Suggestions sets the improvement suggestions attached to the task.
func Suggestions(s ...string) TaskOption {
	return func(tk *taskData) { tk.suggestions = append(tk.suggestions, s...) }
}

// Notes sets the free-form notes field.
func Notes(s string) TaskOption {
	return func(tk *taskData) { tk.notes = s }
}

// Retries sets the requeue counter.
func Retries(n int) TaskOption {
	return func(tk *taskData) { tk.retryCount = n }
}

// CreatedAt sets the created/updated timestamps, which drive FIFO order.
func CreatedAt(t time.Time) TaskOption {
	return func(tk *taskData) {
		tk.createdAt = t
		tk.updatedAt = t
	}
}

// Assigned puts the task in the assigned state, held by the given reviewer
// against the given deadline. The assignment timestamp defaults to the
// task's creation time.
func Assigned(reviewerID string, deadline time.Time) TaskOption {
	return func(tk *taskData) {
		tk.status = review.StatusAssigned
		tk.assignedTo = reviewerID
		tk.deadlineAt = &deadline
	}
}

// InProgress puts the task in the in_progress state, started by the given
// reviewer against the given deadline.
func InProgress(reviewerID string, deadline time.Time) TaskOption {
	return func(tk *taskData) {
		tk.status = review.StatusInProgress
		tk.assignedTo = reviewerID
		tk.deadlineAt = &deadline
	}
}

// CompletedWith resolves the task as completed with the reworked resume.
// Combine with Assigned to keep the audit trail of who held it.
func CompletedWith(newResumeURL string, at time.Time) TaskOption {
	return func(tk *taskData) {
		tk.status = review.StatusCompleted
		tk.newResumeURL = newResumeURL
		tk.completedAt = &at
	}
}

// FailedWith resolves the task as failed for the given reason.
func FailedWith(reason string, at time.Time) TaskOption {
	return func(tk *taskData) {
		tk.status = review.StatusFailed
		tk.notes = reason
		tk.completedAt = &at
	}
}

// TimedOut retires the task to the terminal timeout state.
func TimedOut() TaskOption {
	return func(tk *taskData) { tk.status = review.StatusTimeout }
}

// incidentData holds all data for an incident row to be inserted.
type incidentData struct {
	reviewerID string
	taskID     string
	kind       review.IncidentKind
	reason     string
	createdAt  time.Time
}

// IncidentOption configures an incident during builder setup.
type IncidentOption func(*incidentData)

// IncidentTask links the incident to the task that triggered it.
func IncidentTask(taskID string) IncidentOption {
	return func(i *incidentData) { i.taskID = taskID }
}

// IncidentReason sets the incident's reason string.
func IncidentReason(reason string) IncidentOption {
	return func(i *incidentData) { i.reason = reason }
}

// IncidentAt sets the incident timestamp.
func IncidentAt(t time.Time) IncidentOption {
	return func(i *incidentData) { i.createdAt = t }
}

// applicationData holds all data for an application row to be inserted.
type applicationData struct {
	candidateID   string
	jobID         string
	resumeURL     string
	atsScore      float64
	autoSubmitted bool
	submittedAt   time.Time
}

// ApplicationOption configures a finalized application during builder setup.
type ApplicationOption func(*applicationData)

// AppResume sets the resume the application was submitted with.
func AppResume(url string) ApplicationOption {
	return func(a *applicationData) { a.resumeURL = url }
}

// AppScore sets the ATS score at submission time.
func AppScore(score float64) ApplicationOption {
	return func(a *applicationData) { a.atsScore = score }
}

// AutoSubmitted marks the application as submitted without human review.
func AutoSubmitted() ApplicationOption {
	return func(a *applicationData) { a.autoSubmitted = true }
}

// SubmittedAt sets the submission timestamp.
func SubmittedAt(t time.Time) ApplicationOption {
	return func(a *applicationData) { a.submittedAt = t }
}
