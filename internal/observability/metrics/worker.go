package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/assessment-recommender/internal/core/usecase"
)

// WorkerMetrics tracks offline index builds, whether run by the indexer
// binary or by the worker on a catalog event.
type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	buildTotal     *prometheus.CounterVec
	buildDuration  *prometheus.HistogramVec
	buildInFlight  prometheus.Gauge
	recordsIndexed prometheus.Gauge
	cachedRows     prometheus.Counter
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	buildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "total",
			Help:      "Total index builds by status.",
		},
		[]string{"service", "status"},
	)
	buildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "duration_seconds",
			Help:      "Index build duration in seconds by status.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"service", "status"},
	)
	buildInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "build",
			Name:        "in_flight",
			Help:        "Number of index builds currently running.",
			ConstLabels: constLabels,
		},
	)
	recordsIndexed := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "build",
			Name:        "records_indexed",
			Help:        "Catalog records in the last successful build.",
			ConstLabels: constLabels,
		},
	)
	cachedRows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "build",
			Name:        "embedding_cache_hits_total",
			Help:        "Embeddings served from the build cache.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(buildTotal, buildDuration, buildInFlight, recordsIndexed, cachedRows)

	return &WorkerMetrics{
		service:        service,
		registry:       registry,
		buildTotal:     buildTotal,
		buildDuration:  buildDuration,
		buildInFlight:  buildInFlight,
		recordsIndexed: recordsIndexed,
		cachedRows:     cachedRows,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBuild() {
	m.buildInFlight.Inc()
}

// ObserveBuild satisfies usecase.BuildObserver. Pair it with StartBuild.
func (m *WorkerMetrics) ObserveBuild(stats usecase.BuildStats) {
	m.buildInFlight.Dec()

	status := "success"
	if stats.Err != nil {
		status = "error"
	}
	m.buildTotal.WithLabelValues(m.service, status).Inc()
	m.buildDuration.WithLabelValues(m.service, status).Observe(stats.Duration.Seconds())
	if stats.Err == nil {
		m.recordsIndexed.Set(float64(stats.Records))
	}
	if stats.Cached > 0 {
		m.cachedRows.Add(float64(stats.Cached))
	}
}
