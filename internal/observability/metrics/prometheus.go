// Package metrics exposes Prometheus instrumentation for the datawatch
// server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// PrometheusMetrics collects request, analysis and storage metrics on a
// dedicated registry, served through Handler.
type PrometheusMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	uploadsTotal         *prometheus.CounterVec
	uploadBytes          prometheus.Counter
	qualityChecksTotal   *prometheus.CounterVec
	qualityCheckDuration prometheus.Histogram
	qualityScore         prometheus.Gauge
	baselineVersions     prometheus.Gauge
	storageOpsTotal      *prometheus.CounterVec
}

// NewPrometheusMetrics creates and registers all datawatch metrics.
func NewPrometheusMetrics(logger *logrus.Logger) *PrometheusMetrics {
	if logger == nil {
		logger = logrus.New()
	}

	pm := &PrometheusMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datawatch",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status code.",
		}, []string{"method", "path", "status"}),

		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "datawatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datawatch",
			Name:      "uploads_total",
			Help:      "Total dataset uploads by outcome.",
		}, []string{"status"}),

		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datawatch",
			Name:      "upload_bytes_total",
			Help:      "Total bytes accepted through dataset uploads.",
		}),

		qualityChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datawatch",
			Name:      "quality_checks_total",
			Help:      "Total quality checks by outcome.",
		}, []string{"status"}),

		qualityCheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "datawatch",
			Name:      "quality_check_duration_seconds",
			Help:      "Quality check latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),

		qualityScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "datawatch",
			Name:      "last_quality_score",
			Help:      "Overall score of the most recent quality check.",
		}),

		baselineVersions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "datawatch",
			Name:      "baseline_versions",
			Help:      "Number of stored baseline versions.",
		}),

		storageOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datawatch",
			Name:      "storage_operations_total",
			Help:      "Report store operations by operation and outcome.",
		}, []string{"operation", "status"}),
	}

	pm.registry.MustRegister(
		pm.httpRequestsTotal,
		pm.httpRequestDuration,
		pm.uploadsTotal,
		pm.uploadBytes,
		pm.qualityChecksTotal,
		pm.qualityCheckDuration,
		pm.qualityScore,
		pm.baselineVersions,
		pm.storageOpsTotal,
	)

	return pm
}

// Handler returns the /metrics HTTP handler for the registry.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordHTTPRequest records one served HTTP request.
func (pm *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	pm.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	pm.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpload records one dataset upload attempt.
func (pm *PrometheusMetrics) RecordUpload(status string, sizeBytes int64) {
	pm.uploadsTotal.WithLabelValues(status).Inc()
	if sizeBytes > 0 {
		pm.uploadBytes.Add(float64(sizeBytes))
	}
}

// RecordQualityCheck records one quality check run and its overall score.
func (pm *PrometheusMetrics) RecordQualityCheck(status string, score float64, duration time.Duration) {
	pm.qualityChecksTotal.WithLabelValues(status).Inc()
	pm.qualityCheckDuration.Observe(duration.Seconds())
	if status == "success" {
		pm.qualityScore.Set(score)
	}
}

// SetBaselineVersions updates the stored baseline count.
func (pm *PrometheusMetrics) SetBaselineVersions(n int) {
	pm.baselineVersions.Set(float64(n))
}

// RecordStorageOperation records one report store operation.
func (pm *PrometheusMetrics) RecordStorageOperation(operation, status string) {
	pm.storageOpsTotal.WithLabelValues(operation, status).Inc()
}
