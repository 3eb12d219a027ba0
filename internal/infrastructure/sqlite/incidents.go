package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okiro/relais/internal/domain/review"
)

// insertIncident records a strike outcome. Called inside the expiry
// transaction so the incident commits or rolls back with the strike itself.
func insertIncident(ctx context.Context, tx *sql.Tx, reviewerID, taskID string, kind review.IncidentKind, reason string, now time.Time) (*review.Incident, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO incidents (reviewer_id, task_id, kind, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		reviewerID, taskID, string(kind), reason, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert incident: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return &review.Incident{
		ID:         id,
		ReviewerID: reviewerID,
		TaskID:     taskID,
		Kind:       kind,
		Reason:     reason,
		CreatedAt:  now,
	}, nil
}

// ListIncidents retrieves a reviewer's strike history, newest first.
func (s *Store) ListIncidents(ctx context.Context, reviewerID string, limit int) ([]*review.Incident, error) {
	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE reviewer_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{reviewerID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var incidents []*review.Incident
	for rows.Next() {
		model, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incident rows: %w", err)
	}
	return incidents, nil
}
