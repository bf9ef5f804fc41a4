package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RateMetrics содержит метрики кеша цен и расчёта курсов
type RateMetrics struct {
	// Обновления кеша
	RefreshesTotal        *prometheus.CounterVec
	RefreshDuration       prometheus.Histogram
	UpstreamFetchErrors   *prometheus.CounterVec
	SnapshotAgeSeconds    prometheus.Gauge
	CacheHitsTotal        prometheus.Counter
	SnapshotPublishErrors prometheus.Counter

	// Котировки
	QuotesTotal *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewRateMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in the service and a fresh prometheus.NewRegistry() in tests.
func NewRateMetrics(reg prometheus.Registerer) *RateMetrics {
	factory := promauto.With(reg)
	return &RateMetrics{
		RefreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_cache_refreshes_total",
				Help: "Number of upstream refresh bursts by result",
			},
			[]string{"result"},
		),

		RefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "price_cache_refresh_duration_seconds",
				Help:    "Duration of a full refresh burst in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms, 20ms, 40ms...
			},
		),

		UpstreamFetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_fetch_errors_total",
				Help: "Failed ticker fetches by market",
			},
			[]string{"market"},
		),

		SnapshotAgeSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "price_cache_snapshot_age_seconds",
				Help: "Age of the snapshot served by the last cache lookup",
			},
		),

		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "price_cache_hits_total",
				Help: "Lookups served from a fresh snapshot without a refresh",
			},
		),

		SnapshotPublishErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "snapshot_publish_errors_total",
				Help: "Snapshots that could not be published downstream",
			},
		),

		QuotesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_quotes_total",
				Help: "Rate quotes by pair and result",
			},
			[]string{"from", "to", "result"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

// RecordRefresh записывает результат обновления кеша
func (m *RateMetrics) RecordRefresh(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.RefreshesTotal.WithLabelValues(result).Inc()
	m.RefreshDuration.Observe(duration.Seconds())
}

func (m *RateMetrics) RecordUpstreamError(market string) {
	if m == nil {
		return
	}
	m.UpstreamFetchErrors.WithLabelValues(market).Inc()
}

func (m *RateMetrics) RecordCacheHit(age time.Duration) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
	m.SnapshotAgeSeconds.Set(age.Seconds())
}

func (m *RateMetrics) RecordSnapshotAge(age time.Duration) {
	if m == nil {
		return
	}
	m.SnapshotAgeSeconds.Set(age.Seconds())
}

func (m *RateMetrics) RecordPublishError() {
	if m == nil {
		return
	}
	m.SnapshotPublishErrors.Inc()
}

// RecordQuote записывает выданную (или невыданную) котировку
func (m *RateMetrics) RecordQuote(from, to, result string) {
	if m == nil {
		return
	}
	m.QuotesTotal.WithLabelValues(from, to, result).Inc()
}

func (m *RateMetrics) RecordHTTPRequest(route, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}
