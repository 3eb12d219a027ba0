package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/okiro/relais/internal/domain/review"
)

// taskColumns is the list of columns to select for task queries.
const taskColumns = `id, candidate_id, job_id, ats_score, status, assigned_to,
	assigned_at, deadline_at, started_at, completed_at,
	old_resume_url, new_resume_url, missing_keywords, suggestions,
	notes, retry_count, created_at, updated_at`

// reviewerColumns is the list of columns to select for reviewer queries.
const reviewerColumns = `id, name, role, presence, warnings, violations,
	tasks_completed, avg_completion_seconds, active, current_task_id,
	last_heartbeat_at, created_at, updated_at`

// incidentColumns is the list of columns to select for incident queries.
const incidentColumns = `id, reviewer_id, task_id, kind, reason, created_at`

// applicationColumns is the list of columns to select for application queries.
const applicationColumns = `id, candidate_id, job_id, resume_url,
	ats_score_at_submission, auto_submitted, submitted_at`

// taskModel represents a row of the tasks table.
// Time values are Unix seconds; string-array columns are JSON encoded.
type taskModel struct {
	ID              string
	CandidateID     string
	JobID           string
	ATSScore        float64
	Status          string
	AssignedTo      *string // nullable
	AssignedAt      *int64  // nullable
	DeadlineAt      *int64  // nullable
	StartedAt       *int64  // nullable
	CompletedAt     *int64  // nullable
	OldResumeURL    string
	NewResumeURL    string
	MissingKeywords string // JSON encoded
	Suggestions     string // JSON encoded
	Notes           string
	RetryCount      int
	CreatedAt       int64
	UpdatedAt       int64
}

// scanTask scans a row into a taskModel.
func scanTask(scanner interface{ Scan(...any) error }) (*taskModel, error) {
	var model taskModel
	err := scanner.Scan(
		&model.ID, &model.CandidateID, &model.JobID, &model.ATSScore, &model.Status,
		&model.AssignedTo, &model.AssignedAt, &model.DeadlineAt, &model.StartedAt, &model.CompletedAt,
		&model.OldResumeURL, &model.NewResumeURL, &model.MissingKeywords, &model.Suggestions,
		&model.Notes, &model.RetryCount, &model.CreatedAt, &model.UpdatedAt,
	)
	return &model, err
}

// toDomain converts a taskModel to a domain Task.
func (m *taskModel) toDomain() (*review.Task, error) {
	keywords, err := decodeStrings(m.MissingKeywords)
	if err != nil {
		return nil, fmt.Errorf("failed to decode missing_keywords for task %s: %w", m.ID, err)
	}
	suggestions, err := decodeStrings(m.Suggestions)
	if err != nil {
		return nil, fmt.Errorf("failed to decode suggestions for task %s: %w", m.ID, err)
	}

	t := &review.Task{
		ID:              m.ID,
		CandidateID:     m.CandidateID,
		JobID:           m.JobID,
		ATSScore:        m.ATSScore,
		Status:          review.Status(m.Status),
		OldResumeURL:    m.OldResumeURL,
		NewResumeURL:    m.NewResumeURL,
		MissingKeywords: keywords,
		Suggestions:     suggestions,
		Notes:           m.Notes,
		RetryCount:      m.RetryCount,
		CreatedAt:       time.Unix(m.CreatedAt, 0).UTC(),
		UpdatedAt:       time.Unix(m.UpdatedAt, 0).UTC(),
	}
	if m.AssignedTo != nil {
		t.AssignedTo = *m.AssignedTo
	}
	t.AssignedAt = unixPtrToTime(m.AssignedAt)
	t.DeadlineAt = unixPtrToTime(m.DeadlineAt)
	t.StartedAt = unixPtrToTime(m.StartedAt)
	t.CompletedAt = unixPtrToTime(m.CompletedAt)
	return t, nil
}

// reviewerModel represents a row of the reviewers table.
type reviewerModel struct {
	ID                   string
	Name                 string
	Role                 string
	Presence             string
	Warnings             int
	Violations           int
	TasksCompleted       int
	AvgCompletionSeconds float64
	Active               bool
	CurrentTaskID        *string // nullable
	LastHeartbeatAt      *int64  // nullable
	CreatedAt            int64
	UpdatedAt            int64
}

// scanReviewer scans a row into a reviewerModel.
func scanReviewer(scanner interface{ Scan(...any) error }) (*reviewerModel, error) {
	var model reviewerModel
	err := scanner.Scan(
		&model.ID, &model.Name, &model.Role, &model.Presence,
		&model.Warnings, &model.Violations, &model.TasksCompleted,
		&model.AvgCompletionSeconds, &model.Active, &model.CurrentTaskID,
		&model.LastHeartbeatAt, &model.CreatedAt, &model.UpdatedAt,
	)
	return &model, err
}

// toDomain converts a reviewerModel to a domain Reviewer.
func (m *reviewerModel) toDomain() *review.Reviewer {
	r := &review.Reviewer{
		ID:                   m.ID,
		Name:                 m.Name,
		Role:                 review.Role(m.Role),
		Presence:             review.Presence(m.Presence),
		Warnings:             m.Warnings,
		Violations:           m.Violations,
		TasksCompleted:       m.TasksCompleted,
		AvgCompletionSeconds: m.AvgCompletionSeconds,
		Active:               m.Active,
		CreatedAt:            time.Unix(m.CreatedAt, 0).UTC(),
		UpdatedAt:            time.Unix(m.UpdatedAt, 0).UTC(),
	}
	if m.CurrentTaskID != nil {
		r.CurrentTaskID = *m.CurrentTaskID
	}
	r.LastHeartbeatAt = unixPtrToTime(m.LastHeartbeatAt)
	return r
}

// incidentModel represents a row of the incidents table.
type incidentModel struct {
	ID         int64
	ReviewerID string
	TaskID     *string // nullable
	Kind       string
	Reason     string
	CreatedAt  int64
}

// scanIncident scans a row into an incidentModel.
func scanIncident(scanner interface{ Scan(...any) error }) (*incidentModel, error) {
	var model incidentModel
	err := scanner.Scan(
		&model.ID, &model.ReviewerID, &model.TaskID,
		&model.Kind, &model.Reason, &model.CreatedAt,
	)
	return &model, err
}

// toDomain converts an incidentModel to a domain Incident.
func (m *incidentModel) toDomain() *review.Incident {
	i := &review.Incident{
		ID:         m.ID,
		ReviewerID: m.ReviewerID,
		Kind:       review.IncidentKind(m.Kind),
		Reason:     m.Reason,
		CreatedAt:  time.Unix(m.CreatedAt, 0).UTC(),
	}
	if m.TaskID != nil {
		i.TaskID = *m.TaskID
	}
	return i
}

// applicationModel represents a row of the applications table.
type applicationModel struct {
	ID                   int64
	CandidateID          string
	JobID                string
	ResumeURL            string
	ATSScoreAtSubmission float64
	AutoSubmitted        bool
	SubmittedAt          int64
}

// scanApplication scans a row into an applicationModel.
func scanApplication(scanner interface{ Scan(...any) error }) (*applicationModel, error) {
	var model applicationModel
	err := scanner.Scan(
		&model.ID, &model.CandidateID, &model.JobID, &model.ResumeURL,
		&model.ATSScoreAtSubmission, &model.AutoSubmitted, &model.SubmittedAt,
	)
	return &model, err
}

// toDomain converts an applicationModel to a domain Application.
func (m *applicationModel) toDomain() *review.Application {
	return &review.Application{
		ID:                   m.ID,
		CandidateID:          m.CandidateID,
		JobID:                m.JobID,
		ResumeURL:            m.ResumeURL,
		ATSScoreAtSubmission: m.ATSScoreAtSubmission,
		AutoSubmitted:        m.AutoSubmitted,
		SubmittedAt:          time.Unix(m.SubmittedAt, 0).UTC(),
	}
}

// unixPtrToTime converts a nullable Unix-seconds value to *time.Time in UTC.
func unixPtrToTime(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.Unix(*v, 0).UTC()
	return &t
}

// encodeStrings JSON-encodes a string slice for storage. nil encodes as [].
func encodeStrings(values []string) (string, error) {
	if values == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// decodeStrings decodes a JSON string-array column.
func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// appendNote appends a line to a task's notes log.
func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
