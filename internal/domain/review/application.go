package review

import "time"

// Application is the record produced when a reviewed resume is ready for
// submission. (CandidateID, JobID) is unique; re-completion of a task for
// the same pair updates the row in place.
type Application struct {
	ID                   int64     `json:"id"`
	CandidateID          string    `json:"candidate_id"`
	JobID                string    `json:"job_id"`
	ResumeURL            string    `json:"resume_url"`
	ATSScoreAtSubmission float64   `json:"ats_score_at_submission"`
	AutoSubmitted        bool      `json:"auto_submitted"`
	SubmittedAt          time.Time `json:"submitted_at"`
}

// Candidate tracks the current resume for a candidate. The core stores only
// the URL; resume blobs live in external storage.
type Candidate struct {
	ID        string    `json:"id"`
	ResumeURL string    `json:"resume_url"`
	UpdatedAt time.Time `json:"updated_at"`
}
