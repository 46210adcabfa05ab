package observability

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	shapeNamespace = "offsettree"
	untitledSource = "untitled"
)

// TreeShape is the read side of a timespan tree the collector reports on.
type TreeShape interface {
	Source() string
	Len() int
	Height() int
	AllOffsets() []float64
	AllTimePoints() []float64
	MaximumOverlap() (int, bool)
}

type trackedTree struct {
	label string
	shape TreeShape
}

// TreeCollector is a [prometheus.Collector] reporting the shape of every
// tracked tree, labeled by its source. Shapes are read at scrape time, so a
// tree mutated after Track is reported as it is now.
type TreeCollector struct {
	mu     sync.Mutex
	trees  []trackedTree
	labels map[string]bool

	elements   *prometheus.Desc
	nodes      *prometheus.Desc
	height     *prometheus.Desc
	timePoints *prometheus.Desc
	maxOverlap *prometheus.Desc
}

// NewTreeCollector returns a collector with no tracked trees.
func NewTreeCollector() *TreeCollector {
	labels := []string{"source"}

	return &TreeCollector{
		labels: make(map[string]bool),

		elements: prometheus.NewDesc(
			prometheus.BuildFQName(shapeNamespace, "tree", "elements"),
			"Number of elements stored in the tree.", labels, nil),
		nodes: prometheus.NewDesc(
			prometheus.BuildFQName(shapeNamespace, "tree", "nodes"),
			"Number of distinct offsets, one per node.", labels, nil),
		height: prometheus.NewDesc(
			prometheus.BuildFQName(shapeNamespace, "tree", "height"),
			"Height of the balanced tree.", labels, nil),
		timePoints: prometheus.NewDesc(
			prometheus.BuildFQName(shapeNamespace, "tree", "time_points"),
			"Number of distinct start and end times.", labels, nil),
		maxOverlap: prometheus.NewDesc(
			prometheus.BuildFQName(shapeNamespace, "tree", "max_overlap"),
			"Largest number of spans sounding across a start offset.", labels, nil),
	}
}

// Track adds a tree to the collector and returns its source label. An empty
// source is labeled "untitled", and a label already in use gets a "#2", "#3"
// ... suffix, so every tracked tree is its own series.
func (c *TreeCollector) Track(t TreeShape) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	base := t.Source()
	if base == "" {
		base = untitledSource
	}

	label := base
	for n := 2; c.labels[label]; n++ {
		label = base + "#" + strconv.Itoa(n)
	}

	c.labels[label] = true
	c.trees = append(c.trees, trackedTree{label: label, shape: t})

	return label
}

// Describe implements [prometheus.Collector].
func (c *TreeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.elements
	ch <- c.nodes
	ch <- c.height
	ch <- c.timePoints
	ch <- c.maxOverlap
}

// Collect implements [prometheus.Collector].
func (c *TreeCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	trees := append([]trackedTree(nil), c.trees...)
	c.mu.Unlock()

	for _, tracked := range trees {
		t, src := tracked.shape, tracked.label

		ch <- prometheus.MustNewConstMetric(c.elements, prometheus.GaugeValue, float64(t.Len()), src)
		ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue, float64(len(t.AllOffsets())), src)
		ch <- prometheus.MustNewConstMetric(c.height, prometheus.GaugeValue, float64(t.Height()), src)
		ch <- prometheus.MustNewConstMetric(c.timePoints, prometheus.GaugeValue, float64(len(t.AllTimePoints())), src)

		if overlap, ok := t.MaximumOverlap(); ok {
			ch <- prometheus.MustNewConstMetric(c.maxOverlap, prometheus.GaugeValue, float64(overlap), src)
		}
	}
}
