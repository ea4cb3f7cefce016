// Package observability provides per-run Prometheus metrics and
// OpenTelemetry tracing helpers.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one analysis run. Each Metrics owns its
// registry so concurrent runs never share counters.
type Metrics struct {
	Registry *prometheus.Registry

	FilesIndexed       prometheus.Counter
	ParseDuration      *prometheus.HistogramVec
	QueriesProcessed   prometheus.Counter
	QueriesEnqueued    prometheus.Counter
	MatchesRecorded    prometheus.Counter
	ResolutionFailures prometheus.Counter
	UnresolvedSeeds    prometheus.Counter
	Waves              prometheus.Counter
	PhaseDuration      *prometheus.HistogramVec
}

// NewMetrics registers a fresh set of collectors on a new registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		FilesIndexed: f.NewCounter(prometheus.CounterOpts{
			Name: "reach_files_indexed_total",
			Help: "Files parsed and added to the file index.",
		}),
		ParseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reach_parse_seconds",
			Help:    "Time spent parsing and binding a source file.",
			Buckets: prometheus.DefBuckets,
		}, []string{"dialect"}),
		QueriesProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "reach_queries_processed_total",
			Help: "Queries taken from the worklist.",
		}),
		QueriesEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "reach_queries_enqueued_total",
			Help: "Queries added to the worklist, seeds included.",
		}),
		MatchesRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "reach_matches_recorded_total",
			Help: "Distinct reportable locations recorded.",
		}),
		ResolutionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "reach_resolution_failures_total",
			Help: "Module specifiers that could not be resolved.",
		}),
		UnresolvedSeeds: f.NewCounter(prometheus.CounterOpts{
			Name: "reach_unresolved_seeds_total",
			Help: "Seeds whose file or symbol was not found.",
		}),
		Waves: f.NewCounter(prometheus.CounterOpts{
			Name: "reach_worklist_waves_total",
			Help: "Worklist waves run in parallel mode.",
		}),
		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reach_phase_seconds",
			Help:    "Time spent in each analysis phase.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
	}
}

// WriteTextfile writes the registry in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
