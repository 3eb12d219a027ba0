// Package review defines the domain model for the dispatch core: tasks,
// reviewers, incidents, applications, the strike machine, and the event
// vocabulary. It is pure Go with no infrastructure dependencies; persistence
// and transport live elsewhere.
package review

import "time"

// Status represents the task lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized task status.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusAssigned, StatusInProgress, StatusCompleted, StatusFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// Terminal returns true for states that admit no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// Active returns true while the task is held by a reviewer.
func (s Status) Active() bool {
	return s == StatusAssigned || s == StatusInProgress
}

// CanTransition reports whether from → to is a legal status transition.
// Requeues (assigned/in_progress → queued) cover reviewer-declared failure
// and deadline expiry; queued → timeout covers retry-budget exhaustion.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusAssigned || to == StatusTimeout
	case StatusAssigned:
		return to == StatusInProgress || to == StatusCompleted || to == StatusQueued
	case StatusInProgress:
		return to == StatusCompleted || to == StatusQueued
	default:
		return false
	}
}

// Task represents a resume review job flowing through the dispatch core.
// AssignedTo is empty while the task is unassigned; the optional timestamps
// are nil until the corresponding transition happens.
type Task struct {
	ID              string     `json:"id"`
	CandidateID     string     `json:"candidate_id"`
	JobID           string     `json:"job_id"`
	ATSScore        float64    `json:"ats_score"`
	Status          Status     `json:"status"`
	AssignedTo      string     `json:"assigned_to,omitempty"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	DeadlineAt      *time.Time `json:"deadline_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	OldResumeURL    string     `json:"old_resume_url,omitempty"`
	NewResumeURL    string     `json:"new_resume_url,omitempty"`
	MissingKeywords []string   `json:"missing_keywords"`
	Suggestions     []string   `json:"suggestions"`
	Notes           string     `json:"notes,omitempty"`
	RetryCount      int        `json:"retry_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Remaining returns the time left before the deadline, negative when past
// due. Returns false when the task carries no deadline.
func (t *Task) Remaining(now time.Time) (time.Duration, bool) {
	if t.DeadlineAt == nil {
		return 0, false
	}
	return t.DeadlineAt.Sub(now), true
}

// Overdue reports whether the task holds a deadline that has elapsed.
// A deadline equal to now counts as elapsed, matching the expiry sweep.
func (t *Task) Overdue(now time.Time) bool {
	rem, ok := t.Remaining(now)
	return ok && rem <= 0 && t.Status.Active()
}

// OwnedBy reports whether the task is currently held by the given reviewer.
func (t *Task) OwnedBy(reviewerID string) bool {
	return t.Status.Active() && t.AssignedTo == reviewerID
}
