package review

import "time"

// IncidentKind classifies a strike audit row.
type IncidentKind string

const (
	IncidentWarning    IncidentKind = "warning"
	IncidentViolation  IncidentKind = "violation"
	IncidentSuspension IncidentKind = "suspension"
)

// IsValid returns true if the kind is a recognized value.
func (k IncidentKind) IsValid() bool {
	switch k {
	case IncidentWarning, IncidentViolation, IncidentSuspension:
		return true
	default:
		return false
	}
}

// Incident is an immutable audit row recording one strike against a
// reviewer. TaskID is empty when the incident is not tied to a task.
type Incident struct {
	ID         int64        `json:"id"`
	ReviewerID string       `json:"reviewer_id"`
	TaskID     string       `json:"task_id,omitempty"`
	Kind       IncidentKind `json:"kind"`
	Reason     string       `json:"reason"`
	CreatedAt  time.Time    `json:"created_at"`
}
