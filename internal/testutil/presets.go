package testutil

import (
	"time"

	"github.com/okiro/relais/internal/domain/review"
)

// WithReviewerBench adds a small roster with distinct fairness profiles:
//
//	alice  admin     5 completions
//	bob    employee  2 completions  <- fewest, first pick
//	carol  manager   3 completions
//
// All three are available with fresh heartbeats.
func (b *Builder) WithReviewerBench() *Builder {
	return b.
		WithReviewer("alice", Named("Alice Moreau"), Role(review.RoleAdmin), Completions(5), AvgCompletion(540)).
		WithReviewer("bob", Named("Bob Okafor"), Completions(2), AvgCompletion(720)).
		WithReviewer("carol", Named("Carol Lindqvist"), Role(review.RoleManager), Completions(3), AvgCompletion(600))
}

// WithQueuedBacklog adds three queued tasks staggered a minute apart so
// FIFO order is deterministic: task-old, then task-mid, then task-new.
func (b *Builder) WithQueuedBacklog() *Builder {
	now := time.Now()
	return b.
		WithTask("task-old",
			Candidate("cand-1"), Job("job-1"), Score(0.35),
			Keywords("kubernetes", "terraform"), CreatedAt(now.Add(-2*time.Minute))).
		WithTask("task-mid",
			Candidate("cand-2"), Job("job-1"), Score(0.58),
			Suggestions("quantify outcomes"), CreatedAt(now.Add(-time.Minute))).
		WithTask("task-new",
			Candidate("cand-3"), Job("job-2"), Score(0.71), CreatedAt(now))
}

// WithActiveReview adds a reviewer mid-review: dana is busy holding
// task-active, assigned twenty minutes of runway from now.
func (b *Builder) WithActiveReview() *Builder {
	now := time.Now()
	deadline := now.Add(20 * time.Minute)
	return b.
		WithReviewer("dana", Named("Dana Petrov"), OnTask("task-active")).
		WithTask("task-active",
			Candidate("cand-9"), Job("job-9"), Score(0.44),
			CreatedAt(now.Add(-5*time.Minute)),
			InProgress("dana", deadline))
}
