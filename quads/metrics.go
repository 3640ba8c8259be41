package quads

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	directionLabel = "direction"
	groupLabel     = "group"
)

var (
	quadspaceGridRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quadspace_grid_rows",
		Help: "The current number of quadrant rows.",
	})

	quadspaceGridCols = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quadspace_grid_cols",
		Help: "The current number of quadrant cols.",
	})

	quadspaceGridResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quadspace_grid_resets_total",
		Help: "The total number of grid resets.",
	})

	quadspaceStripAddsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadspace_strip_adds_total",
		Help: "The total number of edge strips added to the grid.",
	}, []string{directionLabel})

	quadspaceStripRemovesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadspace_strip_removes_total",
		Help: "The total number of edge strips removed from the grid.",
	}, []string{directionLabel})

	quadspaceDeterminationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadspace_thing_determinations_total",
		Help: "The total number of per-thing membership determinations.",
	}, []string{groupLabel})

	quadspaceDetermineAllDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quadspace_determine_all_duration_seconds",
		Help:    "The time to resynchronize a whole group.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{groupLabel})
)

func instrumentGridSize(rows, cols int) {
	quadspaceGridRows.Set(float64(rows))
	quadspaceGridCols.Set(float64(cols))
}

func instrumentReset() {
	quadspaceGridResetsTotal.Inc()
}

func instrumentStripAdd(direction string) {
	quadspaceStripAddsTotal.
		With(prometheus.Labels{directionLabel: direction}).
		Inc()
}

func instrumentStripRemove(direction string) {
	quadspaceStripRemovesTotal.
		With(prometheus.Labels{directionLabel: direction}).
		Inc()
}

func instrumentDetermination(group string) {
	quadspaceDeterminationsTotal.
		With(prometheus.Labels{groupLabel: group}).
		Inc()
}

func instrumentDetermineAll(group string, d time.Duration) {
	quadspaceDetermineAllDuration.
		With(prometheus.Labels{groupLabel: group}).
		Observe(d.Seconds())
}
