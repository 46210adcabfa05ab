package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/offsettree/pkg/observability"
)

func newRecordingTracer(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	return exporter, tp
}

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(code)
	})
}

func TestHTTPMiddleware_Spans(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		method    string
		status    int
		wantName  string
		wantError bool
	}{
		{name: "scrape", method: http.MethodGet, status: http.StatusOK, wantName: "GET /metrics"},
		{name: "wrong method", method: http.MethodPost, status: http.StatusMethodNotAllowed, wantName: "POST /metrics"},
		{name: "gather failure", method: http.MethodGet, status: http.StatusInternalServerError,
			wantName: "GET /metrics", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exporter, tp := newRecordingTracer(t)
			mw := observability.HTTPMiddleware(tp.Tracer("test"), nil, statusHandler(tt.status))

			req := httptest.NewRequestWithContext(context.Background(), tt.method, "/metrics", http.NoBody)
			rec := httptest.NewRecorder()

			mw.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantName, spans[0].Name)

			if tt.wantError {
				assert.Equal(t, codes.Error, spans[0].Status.Code)
			} else {
				assert.NotEqual(t, codes.Error, spans[0].Status.Code)
			}
		})
	}
}

func TestHTTPMiddleware_ExtractsTraceParent(t *testing.T) {
	t.Parallel()

	exporter, tp := newRecordingTracer(t)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	const (
		parentTraceID = "0af7651916cd43dd8448eb211c80319c"
		parentSpanID  = "00f067aa0ba902b7"
	)

	mw := observability.HTTPMiddleware(tp.Tracer("test"), nil, statusHandler(http.StatusOK))

	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/metrics", http.NoBody)
	req.Header.Set("Traceparent", "00-"+parentTraceID+"-"+parentSpanID+"-01")

	mw.ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, parentTraceID, spans[0].SpanContext.TraceID().String())
	assert.Equal(t, parentSpanID, spans[0].Parent.SpanID().String())
}

// TestHTTPMiddleware_LogsServedRequest checks the debug record written per
// request, including the trace id added by the tracing handler.
func TestHTTPMiddleware_LogsServedRequest(t *testing.T) {
	t.Parallel()

	exporter, tp := newRecordingTracer(t)

	var logs bytes.Buffer

	logger := slog.New(observability.NewTracingHandler(
		slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}), "offsettree"))

	// No WriteHeader call: the status defaults to 200 on the first Write.
	body := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		_, err := rw.Write([]byte("offsettree_tree_elements 9\n"))
		assert.NoError(t, err)
	})

	mw := observability.HTTPMiddleware(tp.Tracer("test"), logger, body)

	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/metrics", http.NoBody)
	mw.ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &record))

	assert.Equal(t, "served request", record["msg"])
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, http.MethodGet, record["method"])
	assert.Equal(t, "/metrics", record["path"])
	assert.InDelta(t, float64(http.StatusOK), record["status"], 0)
	assert.Contains(t, record, "elapsed")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, spans[0].SpanContext.TraceID().String(), record["trace_id"])
}

func TestHTTPMiddleware_QuietBelowDebug(t *testing.T) {
	t.Parallel()

	_, tp := newRecordingTracer(t)

	var logs bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	mw := observability.HTTPMiddleware(tp.Tracer("test"), logger, statusHandler(http.StatusOK))

	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/metrics", http.NoBody)
	mw.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, logs.String())
}
