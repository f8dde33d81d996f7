package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recompute outcomes reported by the performance engine.
const (
	RecomputeOutcomeSuccess = "success"
	RecomputeOutcomeNoop    = "noop"
	RecomputeOutcomeError   = "error"
)

// MetricsService encapsulates Prometheus instrumentation on a private registry.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec

	recomputeTotal    *prometheus.CounterVec
	recomputeDuration prometheus.Observer
	alertsEmitted     prometheus.Counter
	scheduleFailures  *prometheus.CounterVec
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
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	recomputeTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "performance_recompute_total",
		Help: "Performance recomputes by outcome",
	}, []string{"outcome"})

	recomputeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "performance_recompute_duration_seconds",
		Help:    "Duration of performance recomputes",
		Buckets: prometheus.DefBuckets,
	})

	alertsEmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "risk_alerts_emitted_total",
		Help: "High risk alerts emitted by the performance engine",
	})

	scheduleFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "performance_schedule_failures_total",
		Help: "Recompute requests that could not be handed to the transport",
	}, []string{"transport"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		recomputeTotal, recomputeDuration, alertsEmitted, scheduleFailures, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheLookups:      cacheLookups,
		recomputeTotal:    recomputeTotal,
		recomputeDuration: recomputeDuration,
		alertsEmitted:     alertsEmitted,
		scheduleFailures:  scheduleFailures,
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup and its latency.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// TrackQueueDepth exposes the pending recompute backlog reported by depth as a gauge.
func (m *MetricsService) TrackQueueDepth(depth func() int) {
	if m == nil || depth == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "performance_queue_pending",
		Help: "Recompute jobs waiting in the in-process queue",
	}, func() float64 {
		return float64(depth())
	}))
}

// ObserveRecompute records one performance engine run.
func (m *MetricsService) ObserveRecompute(outcome string, duration time.Duration, alertEmitted bool) {
	if m == nil {
		return
	}
	m.recomputeTotal.WithLabelValues(outcome).Inc()
	m.recomputeDuration.Observe(duration.Seconds())
	if alertEmitted {
		m.alertsEmitted.Inc()
	}
}

// RecordScheduleFailure counts a recompute request lost before reaching the transport.
func (m *MetricsService) RecordScheduleFailure(transport string) {
	if m == nil {
		return
	}
	m.scheduleFailures.WithLabelValues(transport).Inc()
}
