package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 身份解析指标
	ResolutionsTotal *prometheus.CounterVec

	// 探测指标
	ProbesTotal   *prometheus.CounterVec
	ProbeFailures *prometheus.CounterVec

	// 发现指标
	DiscoveryDuration      prometheus.Histogram
	DiscoveryMailboxes     prometheus.Histogram
	DirectoryQueryFailures prometheus.Counter

	// 缓存指标
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharedmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sharedmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		ResolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharedmail_identity_resolutions_total",
				Help: "Identity resolutions by source and result",
			},
			[]string{"source", "result"},
		),

		ProbesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharedmail_probes_total",
				Help: "Access probes by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),

		ProbeFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharedmail_probe_failures_total",
				Help: "Probe errors and timeouts by strategy",
			},
			[]string{"strategy"},
		),

		DiscoveryDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sharedmail_discovery_duration_seconds",
				Help:    "Full mailbox discovery duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),

		DiscoveryMailboxes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sharedmail_discovery_mailboxes",
				Help:    "Number of accessible mailboxes per discovery run",
				Buckets: prometheus.LinearBuckets(1, 5, 10),
			},
		),

		DirectoryQueryFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sharedmail_directory_query_failures_total",
				Help: "Directory candidate queries that degraded discovery",
			},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sharedmail_discovery_cache_hits_total",
				Help: "Discovery cache hits",
			},
		),

		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sharedmail_discovery_cache_misses_total",
				Help: "Discovery cache misses",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharedmail_errors_total",
				Help: "Total errors by type and component",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sharedmail_panics_total",
				Help: "Total recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordResolution 记录一次身份解析
func (m *Metrics) RecordResolution(source, result string) {
	m.ResolutionsTotal.WithLabelValues(source, result).Inc()
}

// RecordProbe 记录一次访问探测
func (m *Metrics) RecordProbe(strategy string, granted, failed bool) {
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	m.ProbesTotal.WithLabelValues(strategy, outcome).Inc()
	if failed {
		m.ProbeFailures.WithLabelValues(strategy).Inc()
	}
}

// RecordDiscovery 记录一次完整的发现运行
func (m *Metrics) RecordDiscovery(duration time.Duration, mailboxes int) {
	m.DiscoveryDuration.Observe(duration.Seconds())
	m.DiscoveryMailboxes.Observe(float64(mailboxes))
}

// RecordDirectoryQueryFailure 记录目录候选查询失败（发现降级）
func (m *Metrics) RecordDirectoryQueryFailure() {
	m.DirectoryQueryFailures.Inc()
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// Handler 返回 Prometheus 指标暴露端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
