package tracing

// Span attribute keys for dispatch tracing. These constants define the
// semantic conventions for span attributes across the daemon.
const (
	// HTTP attributes
	AttrHTTPMethod = "http.method"
	AttrHTTPRoute  = "http.route"
	AttrHTTPStatus = "http.status_code"

	// Task attributes
	AttrTaskID     = "task.id"
	AttrTaskStatus = "task.status"

	// Candidate and posting attributes
	AttrCandidateID = "candidate.id"
	AttrJobID       = "job.id"
	AttrATSScore    = "ats.score"

	// Reviewer attributes
	AttrReviewerID       = "reviewer.id"
	AttrReviewerPresence = "reviewer.presence"

	// Event stream attributes
	AttrTopics = "event.topics"

	// Error attributes
	AttrErrorKind = "error.kind"
	AttrErrorCode = "error.code"
)

// SpanPrefixHTTP names request spans that could not be matched to a
// registered route pattern.
const SpanPrefixHTTP = "http."

// Event names for span events.
const (
	EventTaskEnqueued   = "task.enqueued"
	EventScoreForwarded = "score.forwarded"
	EventErrorOccurred  = "error.occurred"
)
