package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okiro/relais/internal/domain/review"
)

func TestAutoSubmit_RecordsApplication(t *testing.T) {
	store, pub, clock := setupStore(t)
	ctx := context.Background()

	app, err := store.AutoSubmit(ctx, AutoSubmitInput{
		CandidateID: "cand-1",
		JobID:       "job-1",
		ResumeURL:   "https://resumes.example.com/cand-1.pdf",
		ATSScore:    0.95,
	})
	require.NoError(t, err)
	require.True(t, app.AutoSubmitted)
	require.InDelta(t, 0.95, app.ATSScoreAtSubmission, 1e-9)
	require.Equal(t, "https://resumes.example.com/cand-1.pdf", app.ResumeURL)
	require.Equal(t, clock.Now(), app.SubmittedAt)
	require.Empty(t, pub.Events(), "bypassing review announces nothing on the task bus")

	got, err := store.GetApplication(ctx, "cand-1", "job-1")
	require.NoError(t, err)
	require.Equal(t, app.ID, got.ID)
}

func TestAutoSubmit_InheritsStoredResume(t *testing.T) {
	store, _, _ := setupStore(t)
	ctx := context.Background()

	// An earlier task stored the candidate's resume.
	_, err := store.Enqueue(ctx, EnqueueInput{
		CandidateID:  "cand-1",
		JobID:        "job-1",
		ATSScore:     0.5,
		OldResumeURL: "https://resumes.example.com/cand-1.pdf",
	})
	require.NoError(t, err)

	app, err := store.AutoSubmit(ctx, AutoSubmitInput{CandidateID: "cand-1", JobID: "job-2", ATSScore: 0.92})
	require.NoError(t, err)
	require.Equal(t, "https://resumes.example.com/cand-1.pdf", app.ResumeURL)

	// No stored resume leaves the field empty.
	app, err = store.AutoSubmit(ctx, AutoSubmitInput{CandidateID: "cand-new", JobID: "job-1", ATSScore: 0.91})
	require.NoError(t, err)
	require.Empty(t, app.ResumeURL)
}

func TestAutoSubmit_RefreshesCandidateResume(t *testing.T) {
	store, _, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AutoSubmit(ctx, AutoSubmitInput{
		CandidateID: "cand-1",
		JobID:       "job-1",
		ResumeURL:   "https://resumes.example.com/cand-1-v2.pdf",
		ATSScore:    0.93,
	})
	require.NoError(t, err)

	task, err := store.Enqueue(ctx, EnqueueInput{CandidateID: "cand-1", JobID: "job-2", ATSScore: 0.5})
	require.NoError(t, err)
	require.Equal(t, "https://resumes.example.com/cand-1-v2.pdf", task.OldResumeURL)
}

func TestAutoSubmit_OverwritesEarlierSubmission(t *testing.T) {
	store, _, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AutoSubmit(ctx, AutoSubmitInput{
		CandidateID: "cand-1",
		JobID:       "job-1",
		ResumeURL:   "https://resumes.example.com/cand-1-v1.pdf",
		ATSScore:    0.91,
	})
	require.NoError(t, err)

	app, err := store.AutoSubmit(ctx, AutoSubmitInput{
		CandidateID: "cand-1",
		JobID:       "job-1",
		ResumeURL:   "https://resumes.example.com/cand-1-v2.pdf",
		ATSScore:    0.97,
	})
	require.NoError(t, err)
	require.Equal(t, "https://resumes.example.com/cand-1-v2.pdf", app.ResumeURL)
	require.InDelta(t, 0.97, app.ATSScoreAtSubmission, 1e-9)

	var count int
	err = store.conn.QueryRow(`SELECT COUNT(*) FROM applications`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count, "one application per candidate and job")
}

func TestAutoSubmit_Validation(t *testing.T) {
	store, _, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AutoSubmit(ctx, AutoSubmitInput{JobID: "job-1", ATSScore: 0.95})
	require.Error(t, err)
	require.Equal(t, review.KindValidation, review.KindOf(err))

	_, err = store.AutoSubmit(ctx, AutoSubmitInput{CandidateID: "cand-1", ATSScore: 0.95})
	require.Error(t, err)
	require.Equal(t, review.KindValidation, review.KindOf(err))

	_, err = store.AutoSubmit(ctx, AutoSubmitInput{CandidateID: "cand-1", JobID: "job-1", ATSScore: -0.1})
	require.Error(t, err)
	require.Equal(t, review.KindValidation, review.KindOf(err))
}

func TestGetApplication_NotFound(t *testing.T) {
	store, _, _ := setupStore(t)
	_, err := store.GetApplication(context.Background(), "cand-ghost", "job-ghost")
	require.ErrorIs(t, err, review.ErrApplicationNotFound)
}
