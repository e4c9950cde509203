package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/assessment-recommender/internal/core/usecase"
)

const namespace = "recommender"

type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	recommendTotal        *prometheus.CounterVec
	recommendResults      *prometheus.HistogramVec
	recommendCandidates   *prometheus.HistogramVec
	recommendDuration     *prometheus.HistogramVec
	fetchDegradationTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	recommendTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "requests_total",
			Help:      "Total completed recommendations by query kind.",
		},
		[]string{"service", "query_kind"},
	)
	recommendResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "results",
			Help:      "Distribution of returned assessments per recommendation.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 13},
		},
		[]string{"service"},
	)
	recommendCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "fused_candidates",
			Help:      "Distribution of fused candidates sent to the reranker.",
			Buckets:   []float64{0, 5, 10, 20, 40, 60, 80, 100},
		},
		[]string{"service"},
	)
	recommendDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "duration_seconds",
			Help:      "Recommendation pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	fetchDegradationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "fetch_degraded_total",
			Help:      "URL queries answered with the raw URL because page text could not be extracted.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		recommendTotal,
		recommendResults,
		recommendCandidates,
		recommendDuration,
		fetchDegradationTotal,
	)

	return &HTTPServerMetrics{
		service:               service,
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		recommendTotal:        recommendTotal,
		recommendResults:      recommendResults,
		recommendCandidates:   recommendCandidates,
		recommendDuration:     recommendDuration,
		fetchDegradationTotal: fetchDegradationTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// ObserveRecommendation satisfies usecase.RecommendObserver.
func (m *HTTPServerMetrics) ObserveRecommendation(stats usecase.RecommendStats) {
	kind := "text"
	if stats.URLQuery {
		kind = "url"
	}
	m.recommendTotal.WithLabelValues(m.service, kind).Inc()
	m.recommendResults.WithLabelValues(m.service).Observe(float64(stats.Results))
	m.recommendCandidates.WithLabelValues(m.service).Observe(float64(stats.Candidates))
	m.recommendDuration.WithLabelValues(m.service).Observe(stats.Duration.Seconds())
	if stats.FetchDegraded {
		m.fetchDegradationTotal.WithLabelValues(m.service).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
