package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/okiro/relais/internal/autoapply"
	"github.com/okiro/relais/internal/dispatch"
	"github.com/okiro/relais/internal/gateway"
	"github.com/okiro/relais/internal/log"
	"github.com/okiro/relais/internal/tracing"
)

// Server wraps the Handler with an http.Server for lifecycle management.
type Server struct {
	handler  *Handler
	server   *http.Server
	listener net.Listener
	addr     string
	port     int // Actual port after binding (useful when using :0)
}

// ServerConfig configures the API server.
type ServerConfig struct {
	// Addr is the address to listen on (e.g. ":7420" or "localhost:0").
	Addr string
	// Store serves intake, queries, and admin writes. Required.
	Store Store
	// Gateway relays task actions and session lifecycle. Required.
	Gateway *gateway.Gateway
	// Bus feeds the SSE stream and reviewer cache invalidation. Required.
	Bus *dispatch.Bus
	// Forwarder receives at-threshold scores (optional).
	Forwarder autoapply.Forwarder
	// Metrics contributes dispatch counters to the stats endpoint (optional).
	Metrics *dispatch.Metrics
	// Source supplies the score threshold (optional).
	Source dispatch.ConfigSource
	// Tracer instruments request handling when set.
	Tracer trace.Tracer
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Zero by default: SSE streams stay open indefinitely.
	WriteTimeout time.Duration
}

// NewServer creates a new API server.
// If Addr uses port 0 (e.g. "localhost:0" or ":0"), the OS will assign an
// available port. Use Port() after Start() to get the actual port.
func NewServer(cfg ServerConfig) (*Server, error) {
	handler := NewHandler(HandlerConfig{
		Store:     cfg.Store,
		Gateway:   cfg.Gateway,
		Bus:       cfg.Bus,
		Forwarder: cfg.Forwarder,
		Metrics:   cfg.Metrics,
		Source:    cfg.Source,
	})

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}

	// Create listener first to get the actual port (important for :0)
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		handler.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	port := 0
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}

	mux := handler.Routes()
	middleware := tracing.NewHTTPMiddleware(tracing.HTTPMiddlewareConfig{
		Tracer: cfg.Tracer,
		Routes: mux,
	})

	return &Server{
		handler:  handler,
		addr:     cfg.Addr,
		port:     port,
		listener: listener,
		server: &http.Server{
			Handler:           middleware(mux),
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
	}, nil
}

// Start starts the HTTP server. It blocks until the server is stopped or
// fails.
func (s *Server) Start() error {
	log.Info(log.CatAPI, "Starting API server", "addr", s.listener.Addr().String(), "port", s.port)
	return s.server.Serve(s.listener)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info(log.CatAPI, "Stopping API server")
	s.handler.Close()
	return s.server.Shutdown(ctx)
}

// Port returns the actual port the server is listening on.
// This is useful when the server was configured with port 0 for
// auto-assignment.
func (s *Server) Port() int {
	return s.port
}
