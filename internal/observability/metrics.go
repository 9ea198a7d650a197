package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	jobs          *prometheus.CounterVec
	jobDuration   prometheus.Histogram
	segments      prometheus.Counter
	queries       *prometheus.CounterVec
	resultsPerHit prometheus.Histogram
}

// NewMetrics registers all collectors plus Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_jobs_total",
			Help: "Ingestion jobs that reached a terminal state.",
		}, []string{"state"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingestion_job_duration_seconds",
			Help:    "Wall time from dequeue to terminal state.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_segments_total",
			Help: "Segments written to the vector store.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retrieval_queries_total",
			Help: "Search calls, by whether a deal filter was applied.",
		}, []string{"filtered"}),
		resultsPerHit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "retrieval_results",
			Help:    "Texts returned per search after filtering.",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50, 100},
		}),
	}
	m.registry.MustRegister(
		m.jobs, m.jobDuration, m.segments, m.queries, m.resultsPerHit,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveJob records a finished job. Safe on a nil receiver.
func (m *Metrics) ObserveJob(state string, segments int, took time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(state).Inc()
	m.jobDuration.Observe(took.Seconds())
	m.segments.Add(float64(segments))
}

// ObserveQuery records a search call. Safe on a nil receiver.
func (m *Metrics) ObserveQuery(filtered bool, results int) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(strconv.FormatBool(filtered)).Inc()
	m.resultsPerHit.Observe(float64(results))
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
