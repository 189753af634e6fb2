package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in milliseconds. Detector calls are dominated by the
	// upstream classifier round trip.
	latencyBuckets = []float64{
		5, 10, 25,
		50, 100, 250,
		500, 1000, 2500,
		5000, 10000, 30000,
	}

	PipelineRunsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_pipeline_runs_total",
			Help: "Total number of analysis pipeline runs",
		},
		[]string{"tenant_id", "action"},
	)

	PipelineLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardian_pipeline_latency_ms",
			Help:    "End-to-end pipeline latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"tenant_id"},
	)

	DetectorLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardian_detector_latency_ms",
			Help:    "Per-detector latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"category"},
	)

	DetectorFailuresTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_detector_failures_total",
			Help: "Detector invocations that could not produce a result",
		},
		[]string{"category", "kind"},
	)

	FindingsFlaggedTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_findings_flagged_total",
			Help: "Findings that flagged content, by category",
		},
		[]string{"category"},
	)

	QuotaRejectionsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_quota_rejections_total",
			Help: "Pipeline runs aborted for insufficient safety inference units",
		},
		[]string{"tenant_id"},
	)
)

func Initialize() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}

// Handler serves the registry on the metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
