package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/log"
)

// getReviewer loads a reviewer by ID. Returns review.ErrReviewerNotFound when
// absent.
func getReviewer(ctx context.Context, q querier, id string) (*review.Reviewer, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reviewerColumns+` FROM reviewers WHERE id = ?`, id)
	model, err := scanReviewer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, review.ErrReviewerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reviewer %s: %w", id, err)
	}
	return model.toDomain(), nil
}

// SetPresence applies an externally requested presence change.
//
// Rules: suspended reviewers are rejected outright; busy is owned by the
// dispatcher and cannot be requested; available requires holding no task.
// Going offline is always allowed and never touches a held task, which keeps
// running toward its deadline.
func (s *Store) SetPresence(ctx context.Context, reviewerID string, target review.Presence) (*review.Reviewer, error) {
	if !target.IsValid() {
		return nil, review.NewError(review.KindValidation, "invalid_presence", "unknown presence %q", target)
	}

	var out *review.Reviewer
	err := s.withWrite(ctx, func(ctx context.Context, tx *sql.Tx) ([]review.Event, error) {
		rev, err := getReviewer(ctx, tx, reviewerID)
		if err != nil {
			return nil, err
		}
		if !rev.Active {
			return nil, review.NewError(review.KindSuspended, "reviewer_suspended",
				"reviewer %s is suspended", reviewerID)
		}

		switch target {
		case review.PresenceBusy:
			return nil, review.NewError(review.KindIllegalTransition, "illegal_transition",
				"presence busy is set by the dispatcher, not requested")
		case review.PresenceAvailable:
			if rev.CurrentTaskID != "" {
				return nil, review.NewError(review.KindIllegalTransition, "illegal_transition",
					"reviewer %s still holds task %s", reviewerID, rev.CurrentTaskID)
			}
		case review.PresenceOffline:
			// Always allowed.
		}

		if rev.Presence == target {
			out = rev
			return nil, nil
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE reviewers SET presence = ?, updated_at = ? WHERE id = ?`,
			string(target), now.Unix(), reviewerID,
		); err != nil {
			return nil, fmt.Errorf("failed to set presence for reviewer %s: %w", reviewerID, err)
		}

		rev.Presence = target
		rev.UpdatedAt = now
		out = rev

		evt := review.NewEvent(review.TopicReviewerPresence,
			review.PresencePayload{Presence: target}).WithReviewer(reviewerID)
		return []review.Event{evt}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info(log.CatStore, "Reviewer presence set", "reviewer", reviewerID, "presence", string(out.Presence))
	return out, nil
}

// ConnectReviewer registers a reviewer session. The heartbeat clock starts at
// now; a reviewer holding no task comes back as available, one still holding
// a task keeps its presence and resumes where it left off.
func (s *Store) ConnectReviewer(ctx context.Context, reviewerID string, now time.Time) (*review.Reviewer, error) {
	var out *review.Reviewer
	err := s.withWrite(ctx, func(ctx context.Context, tx *sql.Tx) ([]review.Event, error) {
		rev, err := getReviewer(ctx, tx, reviewerID)
		if err != nil {
			return nil, err
		}
		if !rev.Active {
			return nil, review.NewError(review.KindSuspended, "reviewer_suspended",
				"reviewer %s is suspended", reviewerID)
		}

		presence := rev.Presence
		if rev.CurrentTaskID == "" {
			presence = review.PresenceAvailable
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE reviewers SET presence = ?, last_heartbeat_at = ?, updated_at = ? WHERE id = ?`,
			string(presence), now.Unix(), now.Unix(), reviewerID,
		); err != nil {
			return nil, fmt.Errorf("failed to connect reviewer %s: %w", reviewerID, err)
		}

		changed := presence != rev.Presence
		heartbeat := now
		rev.Presence = presence
		rev.LastHeartbeatAt = &heartbeat
		rev.UpdatedAt = now
		out = rev

		if !changed {
			return nil, nil
		}
		evt := review.NewEvent(review.TopicReviewerPresence,
			review.PresencePayload{Presence: presence}).WithReviewer(reviewerID)
		return []review.Event{evt}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info(log.CatStore, "Reviewer connected", "reviewer", reviewerID, "presence", string(out.Presence))
	return out, nil
}

// Heartbeat refreshes a reviewer's liveness clock.
func (s *Store) Heartbeat(ctx context.Context, reviewerID string, now time.Time) (*review.Reviewer, error) {
	var out *review.Reviewer
	err := s.withWrite(ctx, func(ctx context.Context, tx *sql.Tx) ([]review.Event, error) {
		rev, err := getReviewer(ctx, tx, reviewerID)
		if err != nil {
			return nil, err
		}
		if !rev.Active {
			return nil, review.NewError(review.KindSuspended, "reviewer_suspended",
				"reviewer %s is suspended", reviewerID)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE reviewers SET last_heartbeat_at = ?, updated_at = ? WHERE id = ?`,
			now.Unix(), now.Unix(), reviewerID,
		); err != nil {
			return nil, fmt.Errorf("failed to record heartbeat for reviewer %s: %w", reviewerID, err)
		}

		heartbeat := now
		rev.LastHeartbeatAt = &heartbeat
		rev.UpdatedAt = now
		out = rev
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReinstateReviewer lifts a suspension: counters reset, the reviewer comes
// back offline and must reconnect before receiving work. No incident is
// recorded.
func (s *Store) ReinstateReviewer(ctx context.Context, reviewerID string) (*review.Reviewer, error) {
	var out *review.Reviewer
	err := s.withWrite(ctx, func(ctx context.Context, tx *sql.Tx) ([]review.Event, error) {
		rev, err := getReviewer(ctx, tx, reviewerID)
		if err != nil {
			return nil, err
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE reviewers SET active = 1, warnings = 0, violations = 0, presence = ?, updated_at = ?
			 WHERE id = ?`,
			string(review.PresenceOffline), now.Unix(), reviewerID,
		); err != nil {
			return nil, fmt.Errorf("failed to reinstate reviewer %s: %w", reviewerID, err)
		}

		rev.Active = true
		rev.Warnings = 0
		rev.Violations = 0
		rev.Presence = review.PresenceOffline
		rev.UpdatedAt = now
		out = rev
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info(log.CatStore, "Reviewer reinstated", "reviewer", reviewerID)
	return out, nil
}

// UpsertReviewers seeds or refreshes the reviewer registry from a roster.
// New reviewers start offline with clean counters; existing ones only get
// their name and role refreshed, so counters, presence, and any held task
// survive roster reloads.
func (s *Store) UpsertReviewers(ctx context.Context, entries []review.Reviewer) error {
	for _, e := range entries {
		if e.ID == "" {
			return review.NewError(review.KindValidation, "reviewer_id_required", "roster entry without id")
		}
		if e.Role != "" && !e.Role.IsValid() {
			return review.NewError(review.KindValidation, "invalid_role",
				"roster entry %s has unknown role %q", e.ID, e.Role)
		}
	}

	err := s.withWrite(ctx, func(ctx context.Context, tx *sql.Tx) ([]review.Event, error) {
		now := s.now().Unix()
		for _, e := range entries {
			role := e.Role
			if role == "" {
				role = review.RoleEmployee
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO reviewers (id, name, role, presence, active, created_at, updated_at)
				 VALUES (?, ?, ?, ?, 1, ?, ?)
				 ON CONFLICT (id) DO UPDATE SET name = excluded.name, role = excluded.role, updated_at = excluded.updated_at`,
				e.ID, e.Name, string(role), string(review.PresenceOffline), now, now,
			); err != nil {
				return nil, fmt.Errorf("failed to upsert reviewer %s: %w", e.ID, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	log.Info(log.CatStore, "Roster upserted", "reviewers", len(entries))
	return nil
}

// GetReviewer retrieves a reviewer by ID.
func (s *Store) GetReviewer(ctx context.Context, id string) (*review.Reviewer, error) {
	ctx, cancel := s.readCtx(ctx)
	defer cancel()
	return getReviewer(ctx, s.conn, id)
}

// ListReviewers retrieves all reviewers ordered by name.
func (s *Store) ListReviewers(ctx context.Context) ([]*review.Reviewer, error) {
	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+reviewerColumns+` FROM reviewers ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reviewers []*review.Reviewer
	for rows.Next() {
		model, err := scanReviewer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reviewer row: %w", err)
		}
		reviewers = append(reviewers, model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviewer rows: %w", err)
	}
	return reviewers, nil
}
