package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/okiro/relais/internal/dispatch"
	"github.com/okiro/relais/internal/gateway"
	"github.com/okiro/relais/internal/infrastructure/sqlite"
	"github.com/okiro/relais/internal/testutil"
)

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()

	db := testutil.NewTestDB(t)
	bus := dispatch.NewBus()
	t.Cleanup(bus.Close)

	store := sqlite.NewStore(db, bus)
	gw := gateway.New(gateway.Config{Store: store})
	t.Cleanup(gw.CloseAll)

	cfg.Addr = "localhost:0"
	cfg.Store = store
	cfg.Gateway = gw
	cfg.Bus = bus

	server, err := NewServer(cfg)
	require.NoError(t, err)

	go func() { _ = server.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})

	return server
}

func TestServer_StartStop(t *testing.T) {
	server := newTestServer(t, ServerConfig{})
	require.NotZero(t, server.Port(), "port 0 must resolve to a real port at bind time")

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", server.Port()))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
}

func TestServer_TracesRequests(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	server := newTestServer(t, ServerConfig{Tracer: tp.Tracer("test")})

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", server.Port()))
	require.NoError(t, err)
	_ = resp.Body.Close()

	// Route patterns, not concrete paths, name the spans.
	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)
	assert.Equal(t, "GET /health", spans[0].Name)
}
