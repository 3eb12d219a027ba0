package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestNewFileExporter_CreatesFileWithParentDirs(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "nested", "dir", "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)
	require.NotNil(t, exporter)

	_, err = os.Stat(tracePath)
	require.NoError(t, err, "trace file should be created with parent dirs")

	require.NoError(t, exporter.Shutdown(context.Background()))
}

func TestFileExporter_AppendsToExistingFile(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	err := os.WriteFile(tracePath, []byte(`{"existing": "data"}`+"\n"), 0644)
	require.NoError(t, err)

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	stub := tracetest.SpanStub{
		Name:      "test-span",
		StartTime: time.Now(),
		EndTime:   time.Now().Add(100 * time.Millisecond),
	}
	err = exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()})
	require.NoError(t, err)
	require.NoError(t, exporter.Shutdown(context.Background()))

	file, err := os.Open(tracePath)
	require.NoError(t, err)
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
	}
	require.Equal(t, 2, lines, "file should have original line plus new span")
}

func TestFileExporter_WritesValidJSONL(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	start := time.Now()
	stub := tracetest.SpanStub{
		Name:      "POST /tasks",
		SpanKind:  trace.SpanKindServer,
		StartTime: start,
		EndTime:   start.Add(42 * time.Millisecond),
		Status: sdktrace.Status{
			Code: codes.Ok,
		},
		Attributes: []attribute.KeyValue{
			attribute.String(AttrTaskID, "task-123"),
			attribute.String(AttrCandidateID, "cand-9"),
			attribute.Float64(AttrATSScore, 0.41),
			attribute.Int(AttrHTTPStatus, 201),
		},
		Events: []sdktrace.Event{
			{
				Name: EventTaskEnqueued,
				Time: start,
				Attributes: []attribute.KeyValue{
					attribute.String(AttrJobID, "job-7"),
				},
			},
		},
	}

	err = exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()})
	require.NoError(t, err)
	require.NoError(t, exporter.Shutdown(context.Background()))

	content, err := os.ReadFile(tracePath)
	require.NoError(t, err)

	var record SpanRecord
	require.NoError(t, json.Unmarshal(content, &record))

	assert.Equal(t, "POST /tasks", record.Name)
	assert.Equal(t, "SERVER", record.Kind)
	assert.Equal(t, "OK", record.Status)
	assert.InDelta(t, 42.0, record.DurationMs, 1.0)
	assert.Equal(t, "task-123", record.Attributes[AttrTaskID])
	assert.Equal(t, "cand-9", record.Attributes[AttrCandidateID])
	assert.InDelta(t, 0.41, record.Attributes[AttrATSScore], 0.0001)

	require.Len(t, record.Events, 1)
	assert.Equal(t, EventTaskEnqueued, record.Events[0].Name)
	assert.Equal(t, "job-7", record.Events[0].Attributes[AttrJobID])
}

func TestFileExporter_EmptyBatchIsNoop(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	require.NoError(t, exporter.ExportSpans(context.Background(), nil))
	require.NoError(t, exporter.Shutdown(context.Background()))

	content, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	require.Empty(t, content)
}

func TestFileExporter_ShutdownTwiceIsSafe(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	exporter, err := NewFileExporter(tracePath)
	require.NoError(t, err)

	require.NoError(t, exporter.Shutdown(context.Background()))
	require.NoError(t, exporter.Shutdown(context.Background()))
}

func TestSpanKindString(t *testing.T) {
	assert.Equal(t, "SERVER", spanKindString(trace.SpanKindServer))
	assert.Equal(t, "INTERNAL", spanKindString(trace.SpanKindInternal))
	assert.Equal(t, "CLIENT", spanKindString(trace.SpanKindClient))
	assert.Equal(t, "UNSPECIFIED", spanKindString(trace.SpanKindUnspecified))
}
