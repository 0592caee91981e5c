package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot summarises process counters for the health endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	BulkItemsApplied         uint64    `json:"bulkItemsApplied"`
	AttendanceFannedOut      uint64    `json:"attendanceFannedOut"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// MetricsService owns the Prometheus registry and the application's collectors.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheHitRatio   prometheus.Gauge
	bulkItems       *prometheus.CounterVec
	bulkDuration    prometheus.Histogram
	sessionsCreated *prometheus.CounterVec
	fanOutRows      prometheus.Counter
	schedulerRuns   *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	bulkAppliedCount     uint64
	fanOutCount          uint64
}

// NewMetricsService registers the collectors on a private registry.
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	bulkItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_bulk_items_total",
		Help: "Bulk attendance update items by outcome",
	}, []string{"outcome"})

	bulkDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_bulk_duration_seconds",
		Help:    "Time spent applying one bulk attendance update",
		Buckets: prometheus.DefBuckets,
	})

	sessionsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sessions_created_total",
		Help: "Sessions created, by origin",
	}, []string{"origin"})

	fanOutRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_fanout_rows_total",
		Help: "Attendance rows created by session fan-out",
	})

	schedulerRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_scheduler_runs_total",
		Help: "Session scheduler runs by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, cacheHitRatio,
		bulkItems, bulkDuration, sessionsCreated, fanOutRows, schedulerRuns, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		cacheHitRatio:   cacheHitRatio,
		bulkItems:       bulkItems,
		bulkDuration:    bulkDuration,
		sessionsCreated: sessionsCreated,
		fanOutRows:      fanOutRows,
		schedulerRuns:   schedulerRuns,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache hit or miss and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveBulkUpdate records the outcome counts of one bulk attendance update.
func (m *MetricsService) ObserveBulkUpdate(applied, dropped, missing int, duration time.Duration) {
	if m == nil {
		return
	}
	m.bulkItems.WithLabelValues("applied").Add(float64(applied))
	m.bulkItems.WithLabelValues("dropped").Add(float64(dropped))
	m.bulkItems.WithLabelValues("missing").Add(float64(missing))
	m.bulkDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.bulkAppliedCount, uint64(applied))
}

// ObserveSessionCreated counts a new session and the attendance rows fanned out for it.
func (m *MetricsService) ObserveSessionCreated(origin string, attendanceRows int) {
	if m == nil {
		return
	}
	m.sessionsCreated.WithLabelValues(origin).Inc()
	m.fanOutRows.Add(float64(attendanceRows))
	atomic.AddUint64(&m.fanOutCount, uint64(attendanceRows))
}

// ObserveSchedulerRun counts a scheduler run by result.
func (m *MetricsService) ObserveSchedulerRun(result string) {
	if m == nil {
		return
	}
	m.schedulerRuns.WithLabelValues(result).Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHitRatio:            cacheRatio,
		BulkItemsApplied:         atomic.LoadUint64(&m.bulkAppliedCount),
		AttendanceFannedOut:      atomic.LoadUint64(&m.fanOutCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
