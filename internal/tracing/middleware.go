// Package tracing provides distributed tracing infrastructure for the
// dispatch daemon.
package tracing

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMiddlewareConfig configures the HTTP tracing middleware.
type HTTPMiddlewareConfig struct {
	// Tracer is the OpenTelemetry tracer for creating spans.
	// If nil, the middleware returns a pass-through (no-op).
	Tracer trace.Tracer

	// Routes, when set, is consulted for the registered pattern of each
	// request so span names stay low-cardinality ("POST /tasks" rather
	// than a path with IDs in it).
	Routes *http.ServeMux
}

// NewHTTPMiddleware creates middleware that opens a server span per
// request, records the response status, and marks 5xx responses as
// errors. Handlers downstream can hang attributes and events off the
// span through the request context.
//
// If Tracer is nil, the middleware is a pass-through with no overhead.
func NewHTTPMiddleware(cfg HTTPMiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.Tracer == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := SpanPrefixHTTP + r.Method
			if cfg.Routes != nil {
				if _, pattern := cfg.Routes.Handler(r); pattern != "" {
					name = pattern
				}
			}

			ctx, span := cfg.Tracer.Start(r.Context(), name,
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			span.SetAttributes(
				attribute.String(AttrHTTPMethod, r.Method),
				attribute.String(AttrHTTPRoute, r.URL.Path),
			)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int(AttrHTTPStatus, sw.status))
			if sw.status >= 500 {
				span.SetStatus(codes.Error, fmt.Sprintf("status %d", sw.status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// statusWriter captures the response status code for the span. It keeps
// the Flusher passthrough that streaming responses depend on.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
