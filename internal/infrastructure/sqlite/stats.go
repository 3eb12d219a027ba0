package sqlite

import (
	"context"
	"fmt"
)

// Stats is a point-in-time snapshot of the dispatch core, served by the
// stats endpoint and the CLI.
type Stats struct {
	TasksByStatus        map[string]int `json:"tasks_by_status"`
	QueueDepth           int            `json:"queue_depth"`
	ReviewersByPresence  map[string]int `json:"reviewers_by_presence"`
	SuspendedReviewers   int            `json:"suspended_reviewers"`
	IncidentsByKind      map[string]int `json:"incidents_by_kind"`
	Applications         int            `json:"applications"`
	AutoSubmitted        int            `json:"auto_submitted"`
	RecentApplications   int            `json:"applications_last_7_days"`
	AvgCompletionSeconds float64        `json:"avg_completion_seconds"`
}

// Stats aggregates queue depth, task and reviewer counts, incident totals,
// and the completion average weighted across reviewers.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	stats := &Stats{
		TasksByStatus:       make(map[string]int),
		ReviewersByPresence: make(map[string]int),
		IncidentsByKind:     make(map[string]int),
	}

	if err := groupCount(ctx, s, `SELECT status, COUNT(*) FROM tasks GROUP BY status`, stats.TasksByStatus); err != nil {
		return nil, err
	}
	stats.QueueDepth = stats.TasksByStatus["queued"]

	if err := groupCount(ctx, s, `SELECT presence, COUNT(*) FROM reviewers WHERE active = 1 GROUP BY presence`, stats.ReviewersByPresence); err != nil {
		return nil, err
	}

	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviewers WHERE active = 0`,
	).Scan(&stats.SuspendedReviewers); err != nil {
		return nil, fmt.Errorf("failed to count suspended reviewers: %w", err)
	}

	if err := groupCount(ctx, s, `SELECT kind, COUNT(*) FROM incidents GROUP BY kind`, stats.IncidentsByKind); err != nil {
		return nil, err
	}

	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(auto_submitted), 0) FROM applications`,
	).Scan(&stats.Applications, &stats.AutoSubmitted); err != nil {
		return nil, fmt.Errorf("failed to count applications: %w", err)
	}

	weekAgo := s.now().AddDate(0, 0, -7).Unix()
	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE submitted_at >= ?`, weekAgo,
	).Scan(&stats.RecentApplications); err != nil {
		return nil, fmt.Errorf("failed to count recent applications: %w", err)
	}

	if err := s.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(avg_completion_seconds * tasks_completed) / NULLIF(SUM(tasks_completed), 0), 0)
		 FROM reviewers`,
	).Scan(&stats.AvgCompletionSeconds); err != nil {
		return nil, fmt.Errorf("failed to compute completion average: %w", err)
	}

	return stats, nil
}

// groupCount fills dest from a (label, count) aggregate query.
func groupCount(ctx context.Context, s *Store, query string, dest map[string]int) error {
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to aggregate: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		dest[label] = count
	}
	return rows.Err()
}
