package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the portal.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	reconciliations   *prometheus.CounterVec
	documentDecisions *prometheus.CounterVec
	dispatches        *prometheus.CounterVec
	sweepFindings     *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_reconciliations_total",
		Help: "Academic year reconciliations by direction and outcome",
	}, []string{"direction", "outcome"})

	documentDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_decisions_total",
		Help: "Document status changes by resulting status",
	}, []string{"status"})

	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_dispatch_total",
		Help: "Notification dispatch attempts by type and result",
	}, []string{"type", "result"})

	sweepFindings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consistency_findings_total",
		Help: "Inconsistencies detected by the consistency sweep",
	}, []string{"kind"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		reconciliations, documentDecisions, dispatches, sweepFindings, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		reconciliations:   reconciliations,
		documentDecisions: documentDecisions,
		dispatches:        dispatches,
		sweepFindings:     sweepFindings,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordReconciliation counts a reconciliation run. outcome is "changed", "unchanged" or "error".
func (m *MetricsService) RecordReconciliation(direction ReconcileDirection, outcome string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(string(direction), outcome).Inc()
}

// RecordDocumentDecision counts a document transition to status.
func (m *MetricsService) RecordDocumentDecision(status string) {
	if m == nil {
		return
	}
	m.documentDecisions.WithLabelValues(status).Inc()
}

// RecordDispatch counts a notification dispatch attempt.
func (m *MetricsService) RecordDispatch(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "queued"
	if !ok {
		result = "failed"
	}
	m.dispatches.WithLabelValues(kind, result).Inc()
}

// RecordSweepFinding counts an inconsistency found by the consistency sweep.
func (m *MetricsService) RecordSweepFinding(kind string) {
	if m == nil {
		return
	}
	m.sweepFindings.WithLabelValues(kind).Inc()
}
