// Package metrics exposes Prometheus counters and histograms describing one
// orchestration run: how many executions were tried, how many dynamic
// reduction pruned, and how long schedule generation and pruning took.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the control-plane's Prometheus collectors. Constructed
// once per process and passed to the orchestrator and schedule generator so
// they can record observations without importing the metrics package
// directly into their public APIs.
type Metrics struct {
	TestsRan              prometheus.Counter
	TestsPruned           prometheus.Counter
	ScheduleDepth         prometheus.Gauge
	TestGenerationSeconds prometheus.Histogram
	DynamicPruningSeconds prometheus.Histogram
}

// New registers and returns a Metrics bundle against reg. Passing a fresh
// prometheus.NewRegistry() per test keeps concurrent test runs from
// colliding on the default global registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TestsRan: factory.NewCounter(prometheus.CounterOpts{
			Name: "filibuster_tests_ran_total",
			Help: "Total number of test executions actually run (initial plus faulty).",
		}),
		TestsPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "filibuster_tests_pruned_total",
			Help: "Total number of scheduled executions skipped by dynamic reduction.",
		}),
		ScheduleDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "filibuster_schedule_depth",
			Help: "Number of test executions currently queued on the schedule stack.",
		}),
		TestGenerationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "filibuster_test_generation_seconds",
			Help:    "Time spent generating fault-injection candidates for one observed call.",
			Buckets: prometheus.DefBuckets,
		}),
		DynamicPruningSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "filibuster_dynamic_pruning_seconds",
			Help:    "Time spent deciding whether a scheduled execution can be pruned.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
