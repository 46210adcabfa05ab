package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricBuildsTotal   = "tree.builds"
	metricBuildDuration = "tree.build.duration"
	metricBuildElements = "tree.build.elements"
	metricQueriesTotal  = "tree.queries"
	metricQueryDuration = "tree.query.duration"
	metricQueryResults  = "tree.query.results"
	metricErrorsTotal   = "tree.errors"

	attrSource  = "tree.source"
	attrQuery   = "query.kind"
	attrErrorOp = "error.op"

	opBuild = "build"
)

// Query kinds accepted by [TreeMetrics.RecordQuery].
const (
	QueryVerticality     = "verticality"
	QueryIterate         = "iterate"
	QueryNwise           = "nwise"
	QueryElementsStart   = "elements_starting_at"
	QueryElementsStop    = "elements_stopping_at"
	QueryElementsOverlap = "elements_overlapping"
)

// durationBucketBoundaries covers 1µs to 10s: tree queries are sub-millisecond
// while bulk builds of large scores take seconds.
var durationBucketBoundaries = []float64{
	0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1, 0.5, 1, 2.5, 10,
}

// TreeMetrics holds the instruments for tree construction and queries.
type TreeMetrics struct {
	buildsTotal   metric.Int64Counter
	buildDuration metric.Float64Histogram
	buildElements metric.Int64Counter
	queriesTotal  metric.Int64Counter
	queryDuration metric.Float64Histogram
	queryResults  metric.Int64Counter
	errorsTotal   metric.Int64Counter
}

// NewTreeMetrics creates tree instruments from the given meter.
func NewTreeMetrics(mt metric.Meter) (*TreeMetrics, error) {
	b := newMetricBuilder(mt)

	tm := &TreeMetrics{
		buildsTotal:   b.counter(metricBuildsTotal, "Number of bulk tree builds", "{build}"),
		buildDuration: b.histogram(metricBuildDuration, "Bulk build duration in seconds", "s", durationBucketBoundaries...),
		buildElements: b.counter(metricBuildElements, "Elements inserted by bulk builds", "{element}"),
		queriesTotal:  b.counter(metricQueriesTotal, "Number of tree queries", "{query}"),
		queryDuration: b.histogram(metricQueryDuration, "Tree query duration in seconds", "s", durationBucketBoundaries...),
		queryResults:  b.counter(metricQueryResults, "Elements returned by tree queries", "{element}"),
		errorsTotal:   b.counter(metricErrorsTotal, "Number of failed tree operations", "{error}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return tm, nil
}

// RecordBuild records one bulk build of a tree named by source.
func (tm *TreeMetrics) RecordBuild(ctx context.Context, source string, elements int, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String(attrSource, source))

	tm.buildsTotal.Add(ctx, 1, attrs)
	tm.buildDuration.Record(ctx, duration.Seconds(), attrs)

	if err != nil {
		tm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrErrorOp, opBuild)))

		return
	}

	tm.buildElements.Add(ctx, int64(elements), attrs)
}

// RecordQuery records one query of the given kind and the number of
// elements or verticalities it produced.
func (tm *TreeMetrics) RecordQuery(ctx context.Context, kind string, results int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrQuery, kind))

	tm.queriesTotal.Add(ctx, 1, attrs)
	tm.queryDuration.Record(ctx, duration.Seconds(), attrs)
	tm.queryResults.Add(ctx, int64(results), attrs)
}

// RecordError records a failed operation that is not a build.
func (tm *TreeMetrics) RecordError(ctx context.Context, op string) {
	tm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrErrorOp, op)))
}
