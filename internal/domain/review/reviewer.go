package review

import "time"

// Presence represents a reviewer's availability for assignment.
type Presence string

const (
	PresenceAvailable Presence = "available"
	PresenceBusy      Presence = "busy"
	PresenceOffline   Presence = "offline"
)

// String returns the string representation of the presence.
func (p Presence) String() string {
	return string(p)
}

// IsValid returns true if the presence is a recognized value.
func (p Presence) IsValid() bool {
	switch p {
	case PresenceAvailable, PresenceBusy, PresenceOffline:
		return true
	default:
		return false
	}
}

// Role categorizes a reviewer's station. The core treats roles as labels;
// assignment eligibility does not depend on them.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// IsValid returns true if the role is a recognized value.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	default:
		return false
	}
}

// Reviewer represents a human reviewer account and its strike ledger.
// CurrentTaskID is empty while the reviewer holds no task; Active flips to
// false on suspension and only an admin reinstatement flips it back.
type Reviewer struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Role                 Role       `json:"role"`
	Presence             Presence   `json:"presence"`
	Warnings             int        `json:"warnings"`
	Violations           int        `json:"violations"`
	TasksCompleted       int        `json:"tasks_completed"`
	AvgCompletionSeconds float64    `json:"avg_completion_seconds"`
	Active               bool       `json:"active"`
	CurrentTaskID        string     `json:"current_task_id,omitempty"`
	LastHeartbeatAt      *time.Time `json:"last_heartbeat_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// HeartbeatFresh reports whether the last heartbeat is newer than now − ttl.
func (r *Reviewer) HeartbeatFresh(now time.Time, ttl time.Duration) bool {
	return r.LastHeartbeatAt != nil && r.LastHeartbeatAt.After(now.Add(-ttl))
}

// Eligible reports whether the reviewer can receive an assignment right now:
// available, active, hands free, fresh heartbeat, and under the violation cap.
func (r *Reviewer) Eligible(now time.Time, ttl time.Duration, violationCap int) bool {
	return r.Presence == PresenceAvailable &&
		r.Active &&
		r.CurrentTaskID == "" &&
		r.Violations < violationCap &&
		r.HeartbeatFresh(now, ttl)
}

// CompletionAverageAfter folds one more completion duration into the running
// average.
func CompletionAverageAfter(avg float64, completed int, seconds float64) float64 {
	if completed <= 0 {
		return seconds
	}
	return (avg*float64(completed) + seconds) / float64(completed+1)
}
