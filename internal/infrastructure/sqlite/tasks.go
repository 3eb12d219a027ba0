package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/log"
)

// EnqueueInput carries the fields accepted when a task enters the queue.
type EnqueueInput struct {
	CandidateID     string
	JobID           string
	ATSScore        float64
	OldResumeURL    string
	MissingKeywords []string
	Suggestions     []string
	Notes           string
}

// AssignParams carries the dispatch knobs consulted during a claim.
// Callers pass the current config snapshot so hot-reloaded values take
// effect on the next tick.
type AssignParams struct {
	SLA          time.Duration
	MaxRetries   int
	PresenceTTL  time.Duration
	ViolationCap int
}

// Assignment is the outcome of a successful claim.
type Assignment struct {
	Task     *review.Task
	Reviewer *review.Reviewer
}

// ExpireResult describes the effects of an SLA expiry: the requeued task,
// the struck reviewer, and the incident recorded for it.
type ExpireResult struct {
	Task     *review.Task
	Reviewer *review.Reviewer
	Strike   review.StrikeResult
	Incident *review.Incident
}

// getTask loads a task by ID. Returns review.ErrTaskNotFound when absent.
func getTask(ctx context.Context, q querier, id string) (*review.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	model, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, review.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	return model.toDomain()
}

// Enqueue validates the input and inserts a queued task.
//
// Resume resolution: when OldResumeURL is empty the candidate's last known
// resume is inherited from the candidates table; when provided it also
// refreshes the candidates row.
func (s *Store) Enqueue(ctx context.Context, in EnqueueInput) (*review.Task, error) {
	if in.CandidateID == "" {
		return nil, review.NewError(review.KindValidation, "candidate_required", "candidate_id is required")
	}
	if in.JobID == "" {
		return nil, review.NewError(review.KindValidation, "job_required", "job_id is required")
	}
	if in.ATSScore < 0 || in.ATSScore > 1 {
		return nil, review.NewError(review.KindValidation, "score_out_of_range", "ats_score %v is outside [0, 1]", in.ATSScore)
	}

	var out *review.Task
	err := s.withWrite(ctx, func(ctx context.Context, tx *sql.Tx) ([]review.Event, error) {
		now := s.now()

		resumeURL := in.OldResumeURL
		if resumeURL == "" {
			stored, ok, err := getCandidateResume(ctx, tx, in.CandidateID)
			if err != nil {
				return nil, err
			}
			if ok {
				resumeURL = stored
			}
		} else {
			if err := upsertCandidate(ctx, tx, in.CandidateID, resumeURL, now); err != nil {
				return nil, err
			}
		}

		keywords, err := encodeStrings(in.MissingKeywords)
		if err != nil {
			return nil, fmt.Errorf("failed to encode missing_keywords: %w", err)
		}
		suggestions, err := encodeStrings(in.Suggestions)
		if err != nil {
			return nil, fmt.Errorf("failed to encode suggestions: %w", err)
		}

		task := &review.Task{
			ID:              uuid.NewString(),
			CandidateID:     in.CandidateID,
			JobID:           in.JobID,
			ATSScore:        in.ATSScore,
			Status:          review.StatusQueued,
			OldResumeURL:    resumeURL,
			MissingKeywords: in.MissingKeywords,
			Suggestions:     in.Suggestions,
			Notes:           in.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO tasks (
				id, candidate_id, job_id, ats_score, status,
				old_resume_url, missing_keywords, suggestions, notes,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID, task.CandidateID, task.JobID, task.ATSScore, string(task.Status),
			task.OldResumeURL, keywords, suggestions, task.Notes,
			now.Unix(), now.Unix(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert task: %w", err)
		}

		out = task
		evt := review.NewEvent(review.TopicTaskEnqueued, review.EnqueuedPayload{
			CandidateID: task.CandidateID,
			JobID:       task.JobID,
			ATSScore:    task.ATSScore,
		}).WithTask(task.ID)
		return []review.Event{evt}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info(log.CatStore, "Task enqueued", "task", out.ID, "candidate", out.CandidateID, "job", out.JobID, "score", out.ATSScore)
	return out, nil
}

// AssignNext claims the oldest queued task for the best eligible reviewer.
//
// The whole claim is one transaction: pick the task, pick the reviewer, write
// both rows. Tasks whose retry budget is spent are retired to timeout on the
// way and the scan continues. Available reviewers with stale heartbeats are
// flipped offline before matching.
//
// Returns review.ErrNoQueuedTask when the queue is empty and
// review.ErrNoCandidateReviewer when nobody is eligible. Side effects
// performed before hitting either condition (retirements, stale flips) are
// still committed and announced.
func (s *Store) AssignNext(ctx context.Context, now time.Time, p AssignParams) (*Assignment, error) {
	var out *Assignment
	var sentinel error

	err := s.withWrite(ctx, func(ctx context.Context, tx *sql.Tx) ([]review.Event, error) {
		var events []review.Event

		staleIDs, err := reapStaleReviewers(ctx, tx, now, p.PresenceTTL)
		if err != nil {
			return nil, err
		}
		for _, id := range staleIDs {
			log.Info(log.CatStore, "Reviewer heartbeat stale, marking offline", "reviewer", id)
			events = append(events, review.NewEvent(review.TopicReviewerPresence,
				review.PresencePayload{Presence: review.PresenceOffline}).WithReviewer(id))
		}

		for {
			task, err := headQueuedTask(ctx, tx)
			if errors.Is(err, sql.ErrNoRows) {
				sentinel = review.ErrNoQueuedTask
				return events, nil
			}
			if err != nil {
				return nil, err
			}

			if p.MaxRetries > 0 && task.RetryCount > p.MaxRetries {
				if _, err := tx.ExecContext(ctx,
					`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
					string(review.StatusTimeout), now.Unix(), task.ID,
				); err != nil {
					return nil, fmt.Errorf("failed to retire task %s: %w", task.ID, err)
				}
				log.Warn(log.CatStore, "Task retired, retry budget exhausted", "task", task.ID, "retries", task.RetryCount)
				events = append(events, review.NewEvent(review.TopicTaskFailed,
					review.FailedPayload{Reason: "retry budget exhausted"}).WithTask(task.ID))
				continue
			}

			rev, err := bestEligibleReviewer(ctx, tx, now, p)
			if errors.Is(err, sql.ErrNoRows) {
				sentinel = review.ErrNoCandidateReviewer
				return events, nil
			}
			if err != nil {
				return nil, err
			}

			deadline := now.Add(p.SLA)
			res, err := tx.ExecContext(ctx,
				`UPDATE tasks SET status = ?, assigned_to = ?, assigned_at = ?, deadline_at = ?, updated_at = ?
				 WHERE id = ? AND status = ?`,
				string(review.StatusAssigned), rev.ID, now.Unix(), deadline.Unix(), now.Unix(),
				task.ID, string(review.StatusQueued),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to assign task %s: %w", task.ID, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return nil, fmt.Errorf("failed to get rows affected: %w", err)
			}
			if affected != 1 {
				return nil, fmt.Errorf("task %s changed state during claim", task.ID)
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE reviewers SET presence = ?, current_task_id = ?, updated_at = ? WHERE id = ?`,
				string(review.PresenceBusy), task.ID, now.Unix(), rev.ID,
			); err != nil {
				return nil, fmt.Errorf("failed to mark reviewer %s busy: %w", rev.ID, err)
			}

			assignedAt := now
			task.Status = review.StatusAssigned
			task.AssignedTo = rev.ID
			task.AssignedAt = &assignedAt
			task.DeadlineAt = &deadline
			task.UpdatedAt = now
			rev.Presence = review.PresenceBusy
			rev.CurrentTaskID = task.ID
			rev.UpdatedAt = now

			events = append(events,
				review.NewEvent(review.TopicTaskAssigned,
					review.AssignedPayload{DeadlineAt: deadline}).WithTask(task.ID).WithReviewer(rev.ID),
				review.NewEvent(review.TopicReviewerPresence,
					review.PresencePayload{Presence: review.PresenceBusy}).WithReviewer(rev.ID),
			)
			out = &Assignment{Task: task, Reviewer: rev}
			return events, nil
		}
	})
	if err != nil {
		return nil, err
	}
	if sentinel != nil {
		return nil, sentinel
	}
	log.Info(log.CatStore, "Task assigned", "task", out.Task.ID, "reviewer", out.Reviewer.ID, "deadline", out.Task.DeadlineAt.Unix())
	return out, nil
}

// headQueuedTask returns the oldest queued task. created_at has second
// resolution, so rowid breaks ties in insertion order.
func headQueuedTask(ctx context.Context, tx *sql.Tx) (*review.Task, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at ASC, rowid ASC LIMIT 1`,
		string(review.StatusQueued),
	)
	model, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	return model.toDomain()
}

// bestEligibleReviewer returns the eligible reviewer with the fewest
// completed tasks, ties broken by oldest heartbeat.
func bestEligibleReviewer(ctx context.Context, tx *sql.Tx, now time.Time, p AssignParams) (*review.Reviewer, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+reviewerColumns+` FROM reviewers
		 WHERE presence = ? AND active = 1 AND current_task_id IS NULL
		   AND violations < ?
		   AND last_heartbeat_at IS NOT NULL AND last_heartbeat_at > ?
		 ORDER BY tasks_completed ASC, last_heartbeat_at ASC, id ASC
		 LIMIT 1`,
		string(review.PresenceAvailable), p.ViolationCap, now.Add(-p.PresenceTTL).Unix(),
	)
	model, err := scanReviewer(row)
	if err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

// reapStaleReviewers flips available reviewers with stale heartbeats to
// offline and returns their IDs. Busy reviewers are left alone: losing a
// session never touches a held task.
func reapStaleReviewers(ctx context.Context, tx *sql.Tx, now time.Time, ttl time.Duration) ([]string, error) {
	cutoff := now.Add(-ttl).Unix()
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM reviewers
		 WHERE presence = ? AND active = 1
		   AND (last_heartbeat_at IS NULL OR last_heartbeat_at <= ?)`,
		string(review.PresenceAvailable), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan stale reviewers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stale reviewer row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale reviewer rows: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE reviewers SET presence = ?, updated_at = ?
		 WHERE presence = ? AND active = 1
		   AND (last_heartbeat_at IS NULL OR last_heartbeat_at <= ?)`,
		string(review.PresenceOffline), now.Unix(),
		string(review.PresenceAvailable), cutoff,
	); err != nil {
		return nil, fmt.Errorf("failed to mark stale reviewers offline: %w", err)
	}
	return ids, nil
}

// Start moves a task from assigned to in_progress. Only the assignee may
// start it.
func (s *Store) Start(ctx context.Context, taskID, reviewerID string) (*review.Task, error) {
	var out *review.Task
	err := s.withWrite(ctx, func(ctx context.Context, tx *sql.Tx) ([]review.Event, error) {
		task, err := getTask(ctx, tx, taskID)
		if err != nil {
			return nil, err
		}
		if !task.OwnedBy(reviewerID) {
			return nil, review.NewError(review.KindNotOwner, "not_owner",
				"task %s is not held by reviewer %s", taskID, reviewerID)
		}
		if !review.CanTransition(task.Status, review.StatusInProgress) {
			return nil, review.NewError(review.KindIllegalTransition, "illegal_transition",
				"cannot start task in status %s", task.Status)
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, started_at = ?, updated_at = ? WHERE id = ?`,
			string(review.StatusInProgress), now.Unix(), now.Unix(), taskID,
		); err != nil {
			return nil, fmt.Errorf("failed to start task %s: %w", taskID, err)
		}

		startedAt := now
		task.Status = review.StatusInProgress
		task.StartedAt = &startedAt
		task.UpdatedAt = now
		out = task

		evt := review.NewEvent(review.TopicTaskStarted, nil).WithTask(taskID).WithReviewer(reviewerID)
		return []review.Event{evt}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info(log.CatStore, "Task started", "task", taskID, "reviewer", reviewerID)
	return out, nil
}

// Complete finalizes a task. The assignee's counters and running completion
// average are updated, the candidate's resume is refreshed when a new one is
// provided, and the finished application is recorded, all in one transaction.
func (s *Store) Complete(ctx context.Context, taskID, reviewerID, newResumeURL, notes string) (*review.Task, error) {
	var out *review.Task
	err := s.withWrite(ctx, func(ctx context.Context, tx *sql.Tx) ([]review.Event, error) {
		task, err := getTask(ctx, tx, taskID)
		if err != nil {
			return nil, err
		}
		if !task.OwnedBy(reviewerID) {
			return nil, review.NewError(review.KindNotOwner, "not_owner",
				"task %s is not held by reviewer %s", taskID, reviewerID)
		}
		if !review.CanTransition(task.Status, review.StatusCompleted) {
			return nil, review.NewError(review.KindIllegalTransition, "illegal_transition",
				"cannot complete task in status %s", task.Status)
		}

		rev, err := getReviewer(ctx, tx, reviewerID)
		if err != nil {
			return nil, err
		}

		now := s.now()
		seconds := completionSeconds(task, now)

		finalResume := newResumeURL
		if finalResume == "" {
			finalResume = task.NewResumeURL
		}
		if finalResume == "" {
			finalResume = task.OldResumeURL
		}

		taskNotes := task.Notes
		if notes != "" {
			taskNotes = appendNote(taskNotes, notes)
		}
		storedResume := task.NewResumeURL
		if newResumeURL != "" {
			storedResume = newResumeURL
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, completed_at = ?, new_resume_url = ?, notes = ?, updated_at = ?
			 WHERE id = ?`,
			string(review.StatusCompleted), now.Unix(), storedResume, taskNotes, now.Unix(), taskID,
		); err != nil {
			return nil, fmt.Errorf("failed to complete task %s: %w", taskID, err)
		}

		avg := review.CompletionAverageAfter(rev.AvgCompletionSeconds, rev.TasksCompleted, seconds)
		presence := rev.Presence
		if presence == review.PresenceBusy {
			presence = review.PresenceAvailable
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE reviewers SET tasks_completed = tasks_completed + 1, avg_completion_seconds = ?,
			        current_task_id = NULL, presence = ?, updated_at = ?
			 WHERE id = ?`,
			avg, string(presence), now.Unix(), reviewerID,
		); err != nil {
			return nil, fmt.Errorf("failed to update reviewer %s after completion: %w", reviewerID, err)
		}

		if newResumeURL != "" {
			if err := upsertCandidate(ctx, tx, task.CandidateID, newResumeURL, now); err != nil {
				return nil, err
			}
		}
		if err := upsertApplication(ctx, tx, task.CandidateID, task.JobID, finalResume, task.ATSScore, false, now); err != nil {
			return nil, err
		}

		completedAt := now
		task.Status = review.StatusCompleted
		task.CompletedAt = &completedAt
		task.NewResumeURL = storedResume
		task.Notes = taskNotes
		task.UpdatedAt = now
		out = task

		events := []review.Event{
			review.NewEvent(review.TopicTaskCompleted, review.CompletedPayload{
				NewResumeURL:      finalResume,
				CompletionSeconds: seconds,
			}).WithTask(taskID).WithReviewer(reviewerID),
		}
		if presence != rev.Presence {
			events = append(events, review.NewEvent(review.TopicReviewerPresence,
				review.PresencePayload{Presence: presence}).WithReviewer(reviewerID))
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info(log.CatStore, "Task completed", "task", taskID, "reviewer", reviewerID)
	return out, nil
}

// completionSeconds measures time spent on a task, from start when it was
// started or from assignment otherwise.
func completionSeconds(task *review.Task, now time.Time) float64 {
	ref := now
	switch {
	case task.StartedAt != nil:
		ref = *task.StartedAt
	case task.AssignedAt != nil:
		ref = *task.AssignedAt
	}
	seconds := now.Sub(ref).Seconds()
	if seconds < 0 {
		return 0
	}
	return seconds
}

// Fail returns a task to the queue. The assignee walks away without a strike:
// the retry counter bumps, the reason lands in the notes, and the reviewer
// becomes available for new work.
func (s *Store) Fail(ctx context.Context, taskID, reviewerID, reason string) (*review.Task, error) {
	var out *review.Task
	err := s.withWrite(ctx, func(ctx context.Context, tx *sql.Tx) ([]review.Event, error) {
		task, err := getTask(ctx, tx, taskID)
		if err != nil {
			return nil, err
		}
		if !task.OwnedBy(reviewerID) {
			return nil, review.NewError(review.KindNotOwner, "not_owner",
				"task %s is not held by reviewer %s", taskID, reviewerID)
		}
		if !review.CanTransition(task.Status, review.StatusQueued) {
			return nil, review.NewError(review.KindIllegalTransition, "illegal_transition",
				"cannot fail task in status %s", task.Status)
		}

		rev, err := getReviewer(ctx, tx, reviewerID)
		if err != nil {
			return nil, err
		}

		now := s.now()
		taskNotes := task.Notes
		if reason != "" {
			taskNotes = appendNote(taskNotes, "fail: "+reason)
		}

		if err := requeueTask(ctx, tx, taskID, taskNotes, now); err != nil {
			return nil, err
		}

		presence := rev.Presence
		if presence == review.PresenceBusy {
			presence = review.PresenceAvailable
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE reviewers SET current_task_id = NULL, presence = ?, updated_at = ? WHERE id = ?`,
			string(presence), now.Unix(), reviewerID,
		); err != nil {
			return nil, fmt.Errorf("failed to release reviewer %s: %w", reviewerID, err)
		}

		task.Status = review.StatusQueued
		task.AssignedTo = ""
		task.AssignedAt = nil
		task.DeadlineAt = nil
		task.StartedAt = nil
		task.RetryCount++
		task.Notes = taskNotes
		task.UpdatedAt = now
		out = task

		events := []review.Event{
			review.NewEvent(review.TopicTaskRequeued, review.RequeuedPayload{
				RetryCount: task.RetryCount,
				Reason:     reason,
			}).WithTask(taskID).WithReviewer(reviewerID),
		}
		if presence != rev.Presence {
			events = append(events, review.NewEvent(review.TopicReviewerPresence,
				review.PresencePayload{Presence: presence}).WithReviewer(reviewerID))
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info(log.CatStore, "Task failed back to queue", "task", taskID, "reviewer", reviewerID, "reason", reason, "retries", out.RetryCount)
	return out, nil
}

// requeueTask clears the assignment fields and returns the task to the queue.
func requeueTask(ctx context.Context, tx *sql.Tx, taskID, notes string, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, assigned_to = NULL, assigned_at = NULL, deadline_at = NULL,
		        started_at = NULL, retry_count = retry_count + 1, notes = ?, updated_at = ?
		 WHERE id = ?`,
		string(review.StatusQueued), notes, now.Unix(), taskID,
	); err != nil {
		return fmt.Errorf("failed to requeue task %s: %w", taskID, err)
	}
	return nil
}

// Expire handles an SLA miss: the task goes back to the queue and the
// assignee takes a strike. A reviewer reaching the violation cap is suspended
// on the spot. The strike, the possible suspension, and the requeue are
// announced in that order from a single transaction.
//
// A task that resolved between the sweep and this call is left alone and
// (nil, nil) is returned.
func (s *Store) Expire(ctx context.Context, taskID string, now time.Time, policy review.StrikePolicy) (*ExpireResult, error) {
	var out *ExpireResult
	err := s.withWrite(ctx, func(ctx context.Context, tx *sql.Tx) ([]review.Event, error) {
		task, err := getTask(ctx, tx, taskID)
		if err != nil {
			return nil, err
		}
		if !task.Status.Active() || task.DeadlineAt == nil || task.DeadlineAt.After(now) {
			// Resolved or no longer overdue; nothing to do.
			return nil, nil
		}

		rev, err := getReviewer(ctx, tx, task.AssignedTo)
		if err != nil {
			return nil, err
		}

		res := review.ApplyStrike(rev.Warnings, rev.Violations, policy)

		minutes := int(math.Ceil(now.Sub(*task.DeadlineAt).Minutes()))
		if minutes < 1 {
			minutes = 1
		}
		reason := fmt.Sprintf("sla exceeded by %d min", minutes)

		incident, err := insertIncident(ctx, tx, rev.ID, taskID, res.Kind, reason, now)
		if err != nil {
			return nil, err
		}

		presence := rev.Presence
		active := rev.Active
		if res.Suspended {
			presence = review.PresenceOffline
			active = false
		} else if presence == review.PresenceBusy {
			presence = review.PresenceAvailable
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE reviewers SET warnings = ?, violations = ?, current_task_id = NULL,
			        presence = ?, active = ?, updated_at = ?
			 WHERE id = ?`,
			res.Warnings, res.Violations, string(presence), active, now.Unix(), rev.ID,
		); err != nil {
			return nil, fmt.Errorf("failed to apply strike to reviewer %s: %w", rev.ID, err)
		}

		taskNotes := appendNote(task.Notes, reason)
		if err := requeueTask(ctx, tx, taskID, taskNotes, now); err != nil {
			return nil, err
		}

		task.Status = review.StatusQueued
		task.AssignedTo = ""
		task.AssignedAt = nil
		task.DeadlineAt = nil
		task.StartedAt = nil
		task.RetryCount++
		task.Notes = taskNotes
		task.UpdatedAt = now
		rev.Warnings = res.Warnings
		rev.Violations = res.Violations
		rev.CurrentTaskID = ""
		rev.Presence = presence
		rev.Active = active
		rev.UpdatedAt = now
		out = &ExpireResult{Task: task, Reviewer: rev, Strike: res, Incident: incident}

		// The strike event names the strike itself (warning or violation);
		// crossing the cap is announced separately as a suspension.
		strikeKind := res.Kind
		if res.Suspended {
			strikeKind = review.IncidentViolation
		}
		events := []review.Event{
			review.NewEvent(review.TopicReviewerStrike, review.StrikePayload{
				Kind:       strikeKind,
				Warnings:   res.Warnings,
				Violations: res.Violations,
			}).WithReviewer(rev.ID).WithTask(taskID),
		}
		if res.Suspended {
			events = append(events, review.NewEvent(review.TopicReviewerSuspended, review.StrikePayload{
				Kind:       review.IncidentSuspension,
				Warnings:   res.Warnings,
				Violations: res.Violations,
			}).WithReviewer(rev.ID))
		}
		events = append(events, review.NewEvent(review.TopicTaskRequeued, review.RequeuedPayload{
			RetryCount: task.RetryCount,
			Reason:     reason,
		}).WithTask(taskID))
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	if out != nil {
		log.Warn(log.CatStore, "Task deadline expired", "task", taskID, "reviewer", out.Reviewer.ID,
			"strike", string(out.Strike.Kind), "warnings", out.Strike.Warnings, "violations", out.Strike.Violations,
			"suspended", out.Strike.Suspended)
	}
	return out, nil
}

// OverdueTasks returns held tasks whose deadline has passed, oldest deadline
// first.
func (s *Store) OverdueTasks(ctx context.Context, now time.Time) ([]*review.Task, error) {
	ctx, cancel := s.readCtx(ctx)
	defer cancel()
	return queryTasks(ctx, s.conn,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status IN (?, ?) AND deadline_at IS NOT NULL AND deadline_at <= ?
		 ORDER BY deadline_at ASC, id ASC`,
		string(review.StatusAssigned), string(review.StatusInProgress), now.Unix(),
	)
}

// DueWithin returns held tasks whose deadline falls inside (now, now+horizon],
// soonest first. The pre-warning sweep uses this to find tasks worth nudging.
func (s *Store) DueWithin(ctx context.Context, now time.Time, horizon time.Duration) ([]*review.Task, error) {
	ctx, cancel := s.readCtx(ctx)
	defer cancel()
	return queryTasks(ctx, s.conn,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status IN (?, ?) AND deadline_at IS NOT NULL AND deadline_at > ? AND deadline_at <= ?
		 ORDER BY deadline_at ASC, id ASC`,
		string(review.StatusAssigned), string(review.StatusInProgress), now.Unix(), now.Add(horizon).Unix(),
	)
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*review.Task, error) {
	ctx, cancel := s.readCtx(ctx)
	defer cancel()
	return getTask(ctx, s.conn, id)
}

// TaskFilter narrows ListTasks results.
type TaskFilter struct {
	Status review.Status
	Limit  int
}

// ListTasks retrieves tasks matching the filter, newest first.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]*review.Task, error) {
	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := []any{}

	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}

	query += ` ORDER BY created_at DESC, rowid DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return queryTasks(ctx, s.conn, query, args...)
}

// queryTasks runs a task query and scans all rows.
func queryTasks(ctx context.Context, q querier, query string, args ...any) ([]*review.Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*review.Task
	for rows.Next() {
		model, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		task, err := model.toDomain()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}
