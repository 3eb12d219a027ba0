package review

import "time"

// Topic identifies the kind of dispatch event.
type Topic string

const (
	// Task lifecycle events.
	TopicTaskEnqueued  Topic = "task.enqueued"
	TopicTaskAssigned  Topic = "task.assigned"
	TopicTaskStarted   Topic = "task.started"
	TopicTaskCompleted Topic = "task.completed"
	TopicTaskFailed    Topic = "task.failed"
	TopicTaskRequeued  Topic = "task.requeued"
	TopicTaskWarning   Topic = "task.warning"

	// Reviewer lifecycle events.
	TopicReviewerPresence  Topic = "reviewer.presence"
	TopicReviewerStrike    Topic = "reviewer.strike"
	TopicReviewerSuspended Topic = "reviewer.suspended"
)

// IsValid returns true if the topic is part of the event vocabulary.
func (t Topic) IsValid() bool {
	switch t {
	case TopicTaskEnqueued, TopicTaskAssigned, TopicTaskStarted,
		TopicTaskCompleted, TopicTaskFailed, TopicTaskRequeued,
		TopicTaskWarning, TopicReviewerPresence, TopicReviewerStrike,
		TopicReviewerSuspended:
		return true
	default:
		return false
	}
}

// Event is the envelope for all dispatch events. TaskID and ReviewerID are
// set when the event concerns that entity; Payload carries the
// transition-specific fields and may be nil.
type Event struct {
	Topic      Topic     `json:"topic"`
	Timestamp  time.Time `json:"timestamp"`
	TaskID     string    `json:"task_id,omitempty"`
	ReviewerID string    `json:"reviewer_id,omitempty"`
	Payload    any       `json:"payload,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(topic Topic, payload any) Event {
	return Event{
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// WithTask adds task context to the event.
func (e Event) WithTask(taskID string) Event {
	e.TaskID = taskID
	return e
}

// WithReviewer adds reviewer context to the event.
func (e Event) WithReviewer(reviewerID string) Event {
	e.ReviewerID = reviewerID
	return e
}

// EnqueuedPayload accompanies task.enqueued.
type EnqueuedPayload struct {
	CandidateID string  `json:"candidate_id"`
	JobID       string  `json:"job_id"`
	ATSScore    float64 `json:"ats_score"`
}

// AssignedPayload accompanies task.assigned.
type AssignedPayload struct {
	DeadlineAt time.Time `json:"deadline_at"`
}

// CompletedPayload accompanies task.completed. CompletionSeconds spans the
// reviewer's working time, from start when the task was started or from
// assignment otherwise.
type CompletedPayload struct {
	NewResumeURL      string  `json:"new_resume_url"`
	CompletionSeconds float64 `json:"completion_seconds"`
}

// FailedPayload accompanies task.failed.
type FailedPayload struct {
	Reason string `json:"reason"`
}

// RequeuedPayload accompanies task.requeued.
type RequeuedPayload struct {
	RetryCount int    `json:"retry_count"`
	Reason     string `json:"reason"`
}

// WarningPayload accompanies task.warning.
type WarningPayload struct {
	MinutesRemaining int `json:"minutes_remaining"`
}

// PresencePayload accompanies reviewer.presence.
type PresencePayload struct {
	Presence Presence `json:"presence"`
}

// StrikePayload accompanies reviewer.strike. Kind is warning or violation;
// suspensions additionally publish reviewer.suspended.
type StrikePayload struct {
	Kind       IncidentKind `json:"kind"`
	Warnings   int          `json:"warnings"`
	Violations int          `json:"violations"`
}
