package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/offsettree/pkg/observability"
)

type fakeShape struct {
	source     string
	elements   int
	height     int
	offsets    []float64
	timePoints []float64
	overlap    int
	hasOverlap bool
}

func (f *fakeShape) Source() string { return f.source }
func (f *fakeShape) Len() int { return f.elements }
func (f *fakeShape) Height() int { return f.height }
func (f *fakeShape) AllOffsets() []float64 { return f.offsets }
func (f *fakeShape) AllTimePoints() []float64 { return f.timePoints }
func (f *fakeShape) MaximumOverlap() (int, bool) { return f.overlap, f.hasOverlap }

func gaugeValues(t *testing.T, reg *prometheus.Registry, name string) map[string]float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}

		for _, m := range mf.GetMetric() {
			values[sourceLabel(m)] = m.GetGauge().GetValue()
		}
	}

	return values
}

func sourceLabel(m *dto.Metric) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == "source" {
			return lp.GetValue()
		}
	}

	return ""
}

func newShapes() (*fakeShape, *fakeShape) {
	chorale := &fakeShape{
		source: "chorale", elements: 9, height: 2,
		offsets: []float64{0, 1, 2, 3, 4, 6}, timePoints: []float64{0, 1, 2, 3, 4, 6, 8},
		overlap: 2, hasOverlap: true,
	}
	empty := &fakeShape{source: "empty"}

	return chorale, empty
}

func TestTreeCollector_Collect(t *testing.T) {
	t.Parallel()

	chorale, empty := newShapes()

	collector := observability.NewTreeCollector()
	collector.Track(chorale)
	collector.Track(empty)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collector))

	assert.Equal(t, map[string]float64{"chorale": 9, "empty": 0}, gaugeValues(t, reg, "offsettree_tree_elements"))
	assert.Equal(t, map[string]float64{"chorale": 6, "empty": 0}, gaugeValues(t, reg, "offsettree_tree_nodes"))
	assert.Equal(t, map[string]float64{"chorale": 7, "empty": 0}, gaugeValues(t, reg, "offsettree_tree_time_points"))
	assert.Equal(t, map[string]float64{"chorale": 2}, gaugeValues(t, reg, "offsettree_tree_max_overlap"))
}

func TestTreeCollector_DuplicateSources(t *testing.T) {
	t.Parallel()

	chorale, _ := newShapes()
	again := &fakeShape{source: "chorale", elements: 4}
	third := &fakeShape{source: "chorale", elements: 5}
	untitled := &fakeShape{elements: 1}
	alsoUntitled := &fakeShape{elements: 2}

	collector := observability.NewTreeCollector()
	assert.Equal(t, "chorale", collector.Track(chorale))
	assert.Equal(t, "chorale#2", collector.Track(again))
	assert.Equal(t, "chorale#3", collector.Track(third))
	assert.Equal(t, "untitled", collector.Track(untitled))
	assert.Equal(t, "untitled#2", collector.Track(alsoUntitled))

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collector))

	assert.Equal(t, map[string]float64{
		"chorale": 9, "chorale#2": 4, "chorale#3": 5, "untitled": 1, "untitled#2": 2,
	}, gaugeValues(t, reg, "offsettree_tree_elements"))
}

func TestTreeCollector_ReadsAtScrapeTime(t *testing.T) {
	t.Parallel()

	chorale, _ := newShapes()

	collector := observability.NewTreeCollector()
	collector.Track(chorale)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collector))

	chorale.elements = 12

	assert.Equal(t, map[string]float64{"chorale": 12}, gaugeValues(t, reg, "offsettree_tree_elements"))
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	chorale, _ := newShapes()

	collector := observability.NewTreeCollector()
	collector.Track(chorale)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collector))

	var buf bytes.Buffer

	require.NoError(t, observability.WriteText(&buf, reg))

	out := buf.String()
	assert.Contains(t, out, "# TYPE offsettree_tree_height gauge")
	assert.Contains(t, out, `offsettree_tree_height{source="chorale"} 2`)
}

func TestMetricsHandler_ThroughMiddleware(t *testing.T) {
	t.Parallel()

	chorale, _ := newShapes()

	collector := observability.NewTreeCollector()
	collector.Track(chorale)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collector))

	var logs bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	handler := observability.HTTPMiddleware(nooptrace.NewTracerProvider().Tracer("test"), logger,
		observability.MetricsHandler(reg))

	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `offsettree_tree_elements{source="chorale"} 9`)
	assert.Contains(t, logs.String(), "served request")
	assert.Contains(t, logs.String(), "status=200")
}
