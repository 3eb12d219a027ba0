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

// AutoSubmitInput carries the fields for a submission that bypasses review.
type AutoSubmitInput struct {
	CandidateID string
	JobID       string
	ResumeURL   string
	ATSScore    float64
}

// AutoSubmit records an application submitted without human review. Intake
// routes here when a score clears the review threshold. An existing
// application for the same candidate and job is overwritten.
func (s *Store) AutoSubmit(ctx context.Context, in AutoSubmitInput) (*review.Application, error) {
	if in.CandidateID == "" {
		return nil, review.NewError(review.KindValidation, "candidate_required", "candidate_id is required")
	}
	if in.JobID == "" {
		return nil, review.NewError(review.KindValidation, "job_required", "job_id is required")
	}
	if in.ATSScore < 0 || in.ATSScore > 1 {
		return nil, review.NewError(review.KindValidation, "score_out_of_range", "ats_score %v is outside [0, 1]", in.ATSScore)
	}

	var out *review.Application
	err := s.withWrite(ctx, func(ctx context.Context, tx *sql.Tx) ([]review.Event, error) {
		now := s.now()

		resumeURL := in.ResumeURL
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

		if err := upsertApplication(ctx, tx, in.CandidateID, in.JobID, resumeURL, in.ATSScore, true, now); err != nil {
			return nil, err
		}

		app, err := getApplication(ctx, tx, in.CandidateID, in.JobID)
		if err != nil {
			return nil, err
		}
		out = app
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info(log.CatStore, "Application auto-submitted", "candidate", in.CandidateID, "job", in.JobID, "score", in.ATSScore)
	return out, nil
}

// GetApplication retrieves the recorded application for a candidate and job.
func (s *Store) GetApplication(ctx context.Context, candidateID, jobID string) (*review.Application, error) {
	ctx, cancel := s.readCtx(ctx)
	defer cancel()
	return getApplication(ctx, s.conn, candidateID, jobID)
}

// getApplication loads an application row. Returns
// review.ErrApplicationNotFound when absent.
func getApplication(ctx context.Context, q querier, candidateID, jobID string) (*review.Application, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE candidate_id = ? AND job_id = ?`,
		candidateID, jobID,
	)
	model, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, review.ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load application for %s/%s: %w", candidateID, jobID, err)
	}
	return model.toDomain(), nil
}

// upsertApplication records a finalized submission, overwriting any earlier
// one for the same candidate and job.
func upsertApplication(ctx context.Context, tx *sql.Tx, candidateID, jobID, resumeURL string, score float64, autoSubmitted bool, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO applications (candidate_id, job_id, resume_url, ats_score_at_submission, auto_submitted, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (candidate_id, job_id) DO UPDATE SET
		   resume_url = excluded.resume_url,
		   ats_score_at_submission = excluded.ats_score_at_submission,
		   auto_submitted = excluded.auto_submitted,
		   submitted_at = excluded.submitted_at`,
		candidateID, jobID, resumeURL, score, autoSubmitted, now.Unix(),
	); err != nil {
		return fmt.Errorf("failed to upsert application for %s/%s: %w", candidateID, jobID, err)
	}
	return nil
}

// getCandidateResume returns the candidate's last known resume URL.
func getCandidateResume(ctx context.Context, q querier, candidateID string) (string, bool, error) {
	var resumeURL string
	err := q.QueryRowContext(ctx,
		`SELECT resume_url FROM candidates WHERE id = ?`, candidateID,
	).Scan(&resumeURL)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load candidate %s: %w", candidateID, err)
	}
	return resumeURL, true, nil
}

// upsertCandidate refreshes the candidate's last known resume URL.
func upsertCandidate(ctx context.Context, tx *sql.Tx, candidateID, resumeURL string, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO candidates (id, resume_url, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET resume_url = excluded.resume_url, updated_at = excluded.updated_at`,
		candidateID, resumeURL, now.Unix(),
	); err != nil {
		return fmt.Errorf("failed to upsert candidate %s: %w", candidateID, err)
	}
	return nil
}
