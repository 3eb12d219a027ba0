// Package api exposes the dispatch core over HTTP: score intake, reviewer
// sessions, task actions, queries, and SSE streams of events and logs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okiro/relais/internal/autoapply"
	"github.com/okiro/relais/internal/cachemanager"
	"github.com/okiro/relais/internal/config"
	"github.com/okiro/relais/internal/dispatch"
	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/gateway"
	"github.com/okiro/relais/internal/infrastructure/sqlite"
	"github.com/okiro/relais/internal/log"
	"github.com/okiro/relais/internal/tracing"
)

// Reviewer lists are cached briefly; any event naming a reviewer drops the
// cached copy, so the TTL only bounds staleness when the bus is quiet.
const (
	reviewerCacheKey = "reviewers:all"
	reviewerCacheTTL = 30 * time.Second
)

// Store is the slice of the task store behind the HTTP surface. Task actions
// (start, complete, fail) are absent: those route through the gateway so the
// session requirement holds.
type Store interface {
	Enqueue(ctx context.Context, in sqlite.EnqueueInput) (*review.Task, error)
	AutoSubmit(ctx context.Context, in sqlite.AutoSubmitInput) (*review.Application, error)
	SetPresence(ctx context.Context, reviewerID string, target review.Presence) (*review.Reviewer, error)
	ReinstateReviewer(ctx context.Context, reviewerID string) (*review.Reviewer, error)
	GetTask(ctx context.Context, id string) (*review.Task, error)
	ListTasks(ctx context.Context, filter sqlite.TaskFilter) ([]*review.Task, error)
	ListReviewers(ctx context.Context) ([]*review.Reviewer, error)
	ListIncidents(ctx context.Context, reviewerID string, limit int) ([]*review.Incident, error)
	GetApplication(ctx context.Context, candidateID, jobID string) (*review.Application, error)
	Stats(ctx context.Context) (*sqlite.Stats, error)
}

// Handler provides HTTP handlers for the dispatch API.
type Handler struct {
	store     Store
	gateway   *gateway.Gateway
	bus       *dispatch.Bus
	forwarder autoapply.Forwarder
	metrics   *dispatch.Metrics
	source    dispatch.ConfigSource

	reviewers *cachemanager.ReadThroughCache[string, []*review.Reviewer, struct{}]
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// HandlerConfig holds the collaborators behind the HTTP surface.
type HandlerConfig struct {
	// Store serves intake, queries, and admin writes. Required.
	Store Store
	// Gateway relays task actions and session lifecycle. Required.
	Gateway *gateway.Gateway
	// Bus feeds the SSE stream and reviewer cache invalidation. Required.
	Bus *dispatch.Bus
	// Forwarder receives at-threshold scores. Defaults to the logging no-op.
	Forwarder autoapply.Forwarder
	// Metrics contributes dispatch counters to the stats endpoint. Optional.
	Metrics *dispatch.Metrics
	// Source supplies the score threshold. Defaults to the stock settings if
	// nil.
	Source dispatch.ConfigSource
}

// NewHandler creates an API handler and starts the reviewer cache
// invalidation loop. Call Close to stop it.
func NewHandler(cfg HandlerConfig) *Handler {
	source := cfg.Source
	if source == nil {
		source = func() config.DispatchConfig { return config.DefaultDispatch() }
	}

	forwarder := cfg.Forwarder
	if forwarder == nil {
		forwarder = autoapply.New(autoapply.Config{})
	}

	h := &Handler{
		store:     cfg.Store,
		gateway:   cfg.Gateway,
		bus:       cfg.Bus,
		forwarder: forwarder,
		metrics:   cfg.Metrics,
		source:    source,
		done:      make(chan struct{}),
	}

	cache := cachemanager.NewInMemoryCacheManager[string, []*review.Reviewer](
		"reviewer-list", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
	h.reviewers = cachemanager.NewReadThroughCache(cache,
		func(ctx context.Context, _ struct{}) ([]*review.Reviewer, error) {
			return cfg.Store.ListReviewers(ctx)
		},
		cfg.Bus == nil, // without a bus there is no invalidation, so don't cache
	)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	if cfg.Bus != nil {
		log.SafeGo("api.reviewer-cache", func() { h.invalidateOnEvents(ctx) })
	}
	return h
}

// Close stops the reviewer cache invalidation loop and ends any open SSE
// streams, so a server shutdown never waits out idle stream connections.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		h.cancel()
		close(h.done)
	})
}

// invalidateOnEvents drops the cached reviewer list whenever an event names a
// reviewer. Presence flips, strikes, suspensions, and assignments all do.
func (h *Handler) invalidateOnEvents(ctx context.Context) {
	events := h.bus.Subscribe(ctx)
	for evt := range events {
		if evt.Payload.ReviewerID == "" {
			continue
		}
		if err := h.reviewers.Invalidate(ctx, reviewerCacheKey); err != nil {
			log.ErrorErr(log.CatAPI, "Failed to invalidate reviewer cache", err)
		}
	}
}

// Routes returns the mux with all API routes registered.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Intake
	mux.HandleFunc("POST /tasks", h.EnqueueTask)
	mux.HandleFunc("POST /scores", h.IngestScore)
	mux.HandleFunc("POST /applications", h.RecordApplication)

	// Task queries and actions
	mux.HandleFunc("GET /tasks", h.ListTasks)
	mux.HandleFunc("GET /tasks/{id}", h.GetTask)
	mux.HandleFunc("POST /tasks/{id}/start", h.StartTask)
	mux.HandleFunc("POST /tasks/{id}/complete", h.CompleteTask)
	mux.HandleFunc("POST /tasks/{id}/fail", h.FailTask)

	// Reviewer presence and sessions
	mux.HandleFunc("GET /reviewers", h.ListReviewers)
	mux.HandleFunc("PUT /reviewers/{id}/presence", h.SetPresence)
	mux.HandleFunc("POST /reviewers/{id}/connect", h.Connect)
	mux.HandleFunc("POST /reviewers/{id}/heartbeat", h.Heartbeat)
	mux.HandleFunc("POST /reviewers/{id}/disconnect", h.Disconnect)
	mux.HandleFunc("POST /reviewers/{id}/reinstate", h.Reinstate)
	mux.HandleFunc("GET /reviewers/{id}/incidents", h.ListIncidents)

	// Applications
	mux.HandleFunc("GET /applications/{candidate}/{job}", h.GetApplication)

	// Operations
	mux.HandleFunc("GET /stats", h.GetStats)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /events", h.StreamEvents)
	mux.HandleFunc("GET /logs/stream", h.StreamLogs)

	return mux
}

// === Request/Response Types ===

// EnqueueTaskRequest is the request body for creating a review task.
type EnqueueTaskRequest struct {
	CandidateID     string   `json:"candidate_id"`
	JobID           string   `json:"job_id"`
	ATSScore        float64  `json:"ats_score"`
	OldResumeURL    string   `json:"old_resume_url,omitempty"`
	MissingKeywords []string `json:"missing_keywords,omitempty"`
	Suggestions     []string `json:"suggestions,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// EnqueueTaskResponse is returned after creating a review task.
type EnqueueTaskResponse struct {
	TaskID string `json:"task_id"`
}

// IngestScoreRequest is the request body for routing a fresh ATS score.
type IngestScoreRequest struct {
	CandidateID     string   `json:"candidate_id"`
	JobID           string   `json:"job_id"`
	ATSScore        float64  `json:"ats_score"`
	ResumeURL       string   `json:"resume_url,omitempty"`
	MissingKeywords []string `json:"missing_keywords,omitempty"`
	Suggestions     []string `json:"suggestions,omitempty"`
}

// IngestScoreResponse reports where an ingested score went: queued for
// review with a task ID, or forwarded to auto-apply.
type IngestScoreResponse struct {
	Queued bool   `json:"queued"`
	TaskID string `json:"task_id,omitempty"`
}

// RecordApplicationRequest is the request body for recording a submitted
// application. The auto-apply service calls back here once a forwarded
// submission goes through.
type RecordApplicationRequest struct {
	CandidateID string  `json:"candidate_id"`
	JobID       string  `json:"job_id"`
	ResumeURL   string  `json:"resume_url"`
	ATSScore    float64 `json:"ats_score"`
}

// SetPresenceRequest is the request body for a presence change.
type SetPresenceRequest struct {
	Presence string `json:"presence"`
}

// TaskActionRequest is the request body for start, complete, and fail.
// NewResumeURL and Notes apply to complete; Reason applies to fail.
type TaskActionRequest struct {
	ReviewerID   string `json:"reviewer_id"`
	NewResumeURL string `json:"new_resume_url,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// ListTasksResponse is the response for listing tasks.
type ListTasksResponse struct {
	Tasks []*review.Task `json:"tasks"`
	Total int            `json:"total"`
}

// ListReviewersResponse is the response for listing reviewers.
type ListReviewersResponse struct {
	Reviewers []*review.Reviewer `json:"reviewers"`
	Total     int                `json:"total"`
}

// ListIncidentsResponse is the response for a reviewer's strike history.
type ListIncidentsResponse struct {
	Incidents []*review.Incident `json:"incidents"`
	Total     int                `json:"total"`
}

// StatsResponse aggregates store counts with dispatch counters and live
// session/subscriber gauges.
type StatsResponse struct {
	sqlite.Stats
	Dispatch     dispatch.MetricsSnapshot `json:"dispatch"`
	OpenSessions int                      `json:"open_sessions"`
	Subscribers  int                      `json:"subscribers"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status       string `json:"status"`
	QueueDepth   int    `json:"queue_depth"`
	OpenSessions int    `json:"open_sessions"`
	Subscribers  int    `json:"subscribers"`
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// === Intake ===

// EnqueueTask queues a below-threshold resume for human review.
// POST /tasks
func (h *Handler) EnqueueTask(w http.ResponseWriter, r *http.Request) {
	var req EnqueueTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}

	if threshold := h.source().ScoreThreshold; req.ATSScore >= threshold {
		h.respondError(w, r, review.NewError(review.KindValidation, "score_above_threshold",
			"ats_score %v does not need review (threshold %v)", req.ATSScore, threshold))
		return
	}

	task, err := h.store.Enqueue(r.Context(), sqlite.EnqueueInput{
		CandidateID:     req.CandidateID,
		JobID:           req.JobID,
		ATSScore:        req.ATSScore,
		OldResumeURL:    req.OldResumeURL,
		MissingKeywords: req.MissingKeywords,
		Suggestions:     req.Suggestions,
		Notes:           req.Notes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String(tracing.AttrTaskID, task.ID),
		attribute.String(tracing.AttrCandidateID, task.CandidateID),
		attribute.String(tracing.AttrJobID, task.JobID),
		attribute.Float64(tracing.AttrATSScore, task.ATSScore),
	)
	span.AddEvent(tracing.EventTaskEnqueued)

	h.writeJSON(w, http.StatusCreated, EnqueueTaskResponse{TaskID: task.ID})
}

// IngestScore routes a fresh ATS score: below the review threshold it queues
// a task, at or above it forwards the submission to auto-apply without
// touching the store.
// POST /scores
func (h *Handler) IngestScore(w http.ResponseWriter, r *http.Request) {
	var req IngestScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String(tracing.AttrCandidateID, req.CandidateID),
		attribute.String(tracing.AttrJobID, req.JobID),
		attribute.Float64(tracing.AttrATSScore, req.ATSScore),
	)

	switch {
	case req.CandidateID == "":
		h.respondError(w, r, review.NewError(review.KindValidation, "candidate_required", "candidate_id is required"))
		return
	case req.JobID == "":
		h.respondError(w, r, review.NewError(review.KindValidation, "job_required", "job_id is required"))
		return
	case req.ATSScore < 0 || req.ATSScore > 1:
		h.respondError(w, r, review.NewError(review.KindValidation, "score_out_of_range",
			"ats_score %v is outside [0, 1]", req.ATSScore))
		return
	}

	if req.ATSScore < h.source().ScoreThreshold {
		task, err := h.store.Enqueue(r.Context(), sqlite.EnqueueInput{
			CandidateID:     req.CandidateID,
			JobID:           req.JobID,
			ATSScore:        req.ATSScore,
			OldResumeURL:    req.ResumeURL,
			MissingKeywords: req.MissingKeywords,
			Suggestions:     req.Suggestions,
		})
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		span.SetAttributes(attribute.String(tracing.AttrTaskID, task.ID))
		span.AddEvent(tracing.EventTaskEnqueued)
		h.writeJSON(w, http.StatusAccepted, IngestScoreResponse{Queued: true, TaskID: task.ID})
		return
	}

	err := h.forwarder.Forward(r.Context(), autoapply.Submission{
		CandidateID: req.CandidateID,
		JobID:       req.JobID,
		ResumeURL:   req.ResumeURL,
		ATSScore:    req.ATSScore,
	})
	if err != nil {
		h.writeError(w, http.StatusBadGateway, "forward_failed", "Auto-apply forwarding failed", err.Error())
		return
	}
	span.AddEvent(tracing.EventScoreForwarded)
	h.writeJSON(w, http.StatusAccepted, IngestScoreResponse{Queued: false})
}

// RecordApplication records an application submitted without review.
// POST /applications
func (h *Handler) RecordApplication(w http.ResponseWriter, r *http.Request) {
	var req RecordApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}

	app, err := h.store.AutoSubmit(r.Context(), sqlite.AutoSubmitInput{
		CandidateID: req.CandidateID,
		JobID:       req.JobID,
		ResumeURL:   req.ResumeURL,
		ATSScore:    req.ATSScore,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String(tracing.AttrCandidateID, app.CandidateID),
		attribute.String(tracing.AttrJobID, app.JobID),
	)

	h.writeJSON(w, http.StatusCreated, app)
}

// === Task Queries and Actions ===

// GetTask returns a task by ID.
// GET /tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

// ListTasks returns tasks, optionally filtered by ?status= and capped by
// ?limit=.
// GET /tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var filter sqlite.TaskFilter

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := review.Status(raw)
		if !status.IsValid() {
			h.respondError(w, r, review.NewError(review.KindValidation, "invalid_status",
				"unknown task status %q", raw))
			return
		}
		filter.Status = status
	}

	limit, ok := h.queryLimit(w, r)
	if !ok {
		return
	}
	filter.Limit = limit

	tasks, err := h.store.ListTasks(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ListTasksResponse{Tasks: tasks, Total: len(tasks)})
}

// StartTask moves an assigned task to in_progress. Requires an open session
// for the acting reviewer.
// POST /tasks/{id}/start
func (h *Handler) StartTask(w http.ResponseWriter, r *http.Request) {
	h.taskAction(w, r, func(ctx context.Context, taskID string, req TaskActionRequest) (*review.Task, error) {
		return h.gateway.StartTask(ctx, req.ReviewerID, taskID)
	})
}

// CompleteTask finishes a review with the reworked resume and records the
// application. Requires an open session for the acting reviewer.
// POST /tasks/{id}/complete
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	h.taskAction(w, r, func(ctx context.Context, taskID string, req TaskActionRequest) (*review.Task, error) {
		return h.gateway.CompleteTask(ctx, req.ReviewerID, taskID, req.NewResumeURL, req.Notes)
	})
}

// FailTask abandons a review and requeues or retires the task. Requires an
// open session for the acting reviewer.
// POST /tasks/{id}/fail
func (h *Handler) FailTask(w http.ResponseWriter, r *http.Request) {
	h.taskAction(w, r, func(ctx context.Context, taskID string, req TaskActionRequest) (*review.Task, error) {
		return h.gateway.FailTask(ctx, req.ReviewerID, taskID, req.Reason)
	})
}

// taskAction decodes the shared action body and relays to the gateway.
func (h *Handler) taskAction(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, taskID string, req TaskActionRequest) (*review.Task, error),
) {
	taskID := r.PathValue("id")

	var req TaskActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}
	if req.ReviewerID == "" {
		h.respondError(w, r, review.NewError(review.KindValidation, "reviewer_required", "reviewer_id is required"))
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String(tracing.AttrTaskID, taskID),
		attribute.String(tracing.AttrReviewerID, req.ReviewerID),
	)

	task, err := action(r.Context(), taskID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	span.SetAttributes(attribute.String(tracing.AttrTaskStatus, string(task.Status)))
	h.writeJSON(w, http.StatusOK, task)
}

// === Reviewer Presence and Sessions ===

// ListReviewers returns all reviewers through the read cache.
// GET /reviewers
func (h *Handler) ListReviewers(w http.ResponseWriter, r *http.Request) {
	reviewers, err := h.reviewers.Get(r.Context(), reviewerCacheKey, struct{}{}, reviewerCacheTTL)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ListReviewersResponse{Reviewers: reviewers, Total: len(reviewers)})
}

// SetPresence sets a reviewer's presence to available or offline. Busy is
// dispatcher-driven and rejected here.
// PUT /reviewers/{id}/presence
func (h *Handler) SetPresence(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req SetPresenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}

	rev, err := h.store.SetPresence(r.Context(), id, review.Presence(req.Presence))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String(tracing.AttrReviewerID, rev.ID),
		attribute.String(tracing.AttrReviewerPresence, string(rev.Presence)),
	)

	h.writeJSON(w, http.StatusOK, rev)
}

// Connect opens the reviewer's gateway session.
// POST /reviewers/{id}/connect
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	rev, err := h.gateway.Connect(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rev)
}

// Heartbeat refreshes the reviewer's session liveness.
// POST /reviewers/{id}/heartbeat
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	rev, err := h.gateway.Heartbeat(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rev)
}

// Disconnect closes the reviewer's session and records presence offline.
// POST /reviewers/{id}/disconnect
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.Disconnect(r.Context(), r.PathValue("id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reinstate lifts a reviewer's suspension, zeroing the strike counters.
// POST /reviewers/{id}/reinstate
func (h *Handler) Reinstate(w http.ResponseWriter, r *http.Request) {
	rev, err := h.store.ReinstateReviewer(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rev)
}

// ListIncidents returns a reviewer's strike history, newest first, capped by
// ?limit=.
// GET /reviewers/{id}/incidents
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.queryLimit(w, r)
	if !ok {
		return
	}

	incidents, err := h.store.ListIncidents(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ListIncidentsResponse{Incidents: incidents, Total: len(incidents)})
}

// === Applications ===

// GetApplication returns the recorded application for a candidate and job.
// GET /applications/{candidate}/{job}
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.store.GetApplication(r.Context(), r.PathValue("candidate"), r.PathValue("job"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, app)
}

// === Operations ===

// GetStats returns store counts, dispatch counters, and live gauges.
// GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := StatsResponse{Stats: *stats}
	if h.metrics != nil {
		resp.Dispatch = h.metrics.Snapshot()
	}
	if h.gateway != nil {
		resp.OpenSessions = h.gateway.SessionCount()
	}
	if h.bus != nil {
		resp.Subscribers = h.bus.SubscriberCount()
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Health returns the daemon's health status. A store probe failure reports
// unhealthy with 503.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		log.ErrorErr(log.CatAPI, "Health check failed", err)
		h.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy"})
		return
	}

	resp := HealthResponse{Status: "ok", QueueDepth: stats.QueueDepth}
	if h.gateway != nil {
		resp.OpenSessions = h.gateway.SessionCount()
	}
	if h.bus != nil {
		resp.Subscribers = h.bus.SubscriberCount()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// === Helpers ===

// queryLimit parses the optional ?limit= parameter. Reports false after
// writing the error response when the value is not a positive integer.
func (h *Handler) queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		h.writeError(w, http.StatusBadRequest, "invalid_limit",
			"limit must be a positive integer", "")
		return 0, false
	}
	return limit, true
}

// respondError maps a domain error onto an HTTP status and records it on the
// request span.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status  int
		kind    string
		code    string
		message string
		details string
	)

	var de *review.Error
	switch {
	case errors.Is(err, review.ErrTaskNotFound):
		status, kind, code, message = http.StatusNotFound, "not_found", "task_not_found", "Task not found"
	case errors.Is(err, review.ErrReviewerNotFound):
		status, kind, code, message = http.StatusNotFound, "not_found", "reviewer_not_found", "Reviewer not found"
	case errors.Is(err, review.ErrApplicationNotFound):
		status, kind, code, message = http.StatusNotFound, "not_found", "application_not_found", "Application not found"
	case errors.As(err, &de):
		status, kind, code, message = kindStatus(de.Kind), string(de.Kind), de.Code, de.Message
		if de.Err != nil {
			details = de.Err.Error()
		}
	default:
		status, kind, code = http.StatusInternalServerError, string(review.KindFatal), "internal_error"
		message, details = "An unexpected error occurred", err.Error()
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String(tracing.AttrErrorKind, kind),
		attribute.String(tracing.AttrErrorCode, code),
	)
	span.AddEvent(tracing.EventErrorOccurred)

	h.writeError(w, status, code, message, details)
}

// kindStatus maps an error kind to its HTTP status.
func kindStatus(kind review.ErrorKind) int {
	switch kind {
	case review.KindValidation:
		return http.StatusBadRequest
	case review.KindNotOwner, review.KindSuspended:
		return http.StatusForbidden
	case review.KindIllegalTransition:
		return http.StatusConflict
	case review.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.ErrorErr(log.CatAPI, "Failed to encode response", err)
	}
}

// writeError writes a structured error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message, details string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}
