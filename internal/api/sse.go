package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okiro/relais/internal/dispatch"
	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/log"
	"github.com/okiro/relais/internal/tracing"
)

// heartbeatInterval is how often SSE streams emit a keep-alive comment.
const heartbeatInterval = 30 * time.Second

// StreamEvents streams dispatch events via Server-Sent Events, optionally
// filtered to a comma-separated ?topics= list.
// GET /events
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	topics, err := parseTopics(r.URL.Query().Get("topics"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if len(topics) > 0 {
		names := make([]string, len(topics))
		for i, t := range topics {
			names[i] = string(t)
		}
		span := trace.SpanFromContext(r.Context())
		span.SetAttributes(attribute.String(tracing.AttrTopics, strings.Join(names, ",")))
	}

	var events <-chan dispatch.BusEvent
	if len(topics) == 0 {
		events = h.bus.Subscribe(r.Context())
	} else {
		events = h.bus.SubscribeTopics(r.Context(), topics...)
	}

	flusher, ok := h.sseSetup(w)
	if !ok {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-h.done:
			return

		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()

		case evt, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(evt.Payload)
			if err != nil {
				log.ErrorErr(log.CatAPI, "Failed to marshal event", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Payload.Topic, data)
			flusher.Flush()
		}
	}
}

// LogLine is one entry on the log stream.
type LogLine struct {
	Line      string    `json:"line"`
	Timestamp time.Time `json:"timestamp"`
}

// StreamLogs tails the structured log via Server-Sent Events.
// GET /logs/stream
func (h *Handler) StreamLogs(w http.ResponseWriter, r *http.Request) {
	lines := log.Subscribe(r.Context())
	if lines == nil {
		h.writeError(w, http.StatusServiceUnavailable, "log_stream_unavailable",
			"Log streaming is not initialized", "")
		return
	}

	flusher, ok := h.sseSetup(w)
	if !ok {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-h.done:
			return

		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()

		case evt, ok := <-lines:
			if !ok {
				return
			}
			data, err := json.Marshal(LogLine{
				Line:      strings.TrimRight(evt.Payload, "\n"),
				Timestamp: evt.Timestamp,
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: log\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// sseSetup writes the SSE headers and the initial connected event. Reports
// false after writing an error response when the writer cannot stream.
func (h *Handler) sseSetup(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming_unsupported",
			"Streaming not supported", "")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()
	return flusher, true
}

// parseTopics validates a comma-separated topic filter. Empty means all
// topics.
func parseTopics(raw string) ([]review.Topic, error) {
	if raw == "" {
		return nil, nil
	}

	var topics []review.Topic
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		topic := review.Topic(name)
		if !topic.IsValid() {
			return nil, review.NewError(review.KindValidation, "invalid_topic",
				"unknown event topic %q", name)
		}
		topics = append(topics, topic)
	}
	return topics, nil
}
