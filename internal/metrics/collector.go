// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	registry *prometheus.Registry

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 流指标
	streamsCreatedTotal  *prometheus.CounterVec
	streamsTerminalTotal *prometheus.CounterVec
	streamDuration       *prometheus.HistogramVec
	activeStreams        prometheus.Gauge

	// 块指标
	chunksProcessedTotal *prometheus.CounterVec
	chunkFailuresTotal   *prometheus.CounterVec
	chunkDuration        *prometheus.HistogramVec
	bytesProcessedTotal  *prometheus.CounterVec
	backpressureTotal    *prometheus.CounterVec

	// 队列与缓冲池指标
	queueDepth   prometheus.Gauge
	buffersInUse prometheus.Gauge
	workersAlive prometheus.Gauge
	workersBusy  prometheus.Gauge

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// WebSocket 指标
	wsConnections prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器。每个收集器持有自己的注册表,
// 避免测试和多实例场景下的重复注册冲突。
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 流指标
	c.streamsCreatedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_created_total",
			Help:      "Total number of streams created",
		},
		[]string{"provider"},
	)

	c.streamsTerminalTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_terminal_total",
			Help:      "Total number of streams by terminal state",
		},
		[]string{"provider", "state"},
	)

	c.streamDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Stream lifetime from creation to terminal state",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"provider", "state"},
	)

	c.activeStreams = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Number of non-terminal streams",
		},
	)

	// 块指标
	c.chunksProcessedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_processed_total",
			Help:      "Total number of chunks formatted successfully",
		},
		[]string{"provider"},
	)

	c.chunkFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_failures_total",
			Help:      "Total number of chunk processing failures",
		},
		[]string{"provider", "reason"},
	)

	c.chunkDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_duration_seconds",
			Help:      "Formatter invocation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"provider"},
	)

	c.bytesProcessedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_processed_total",
			Help:      "Total raw payload bytes formatted",
		},
		[]string{"provider"},
	)

	c.backpressureTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backpressure_rejections_total",
			Help:      "Total number of chunk submissions shed under backpressure",
		},
		[]string{"provider"},
	)

	// 队列与缓冲池指标
	c.queueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_queue_depth",
			Help:      "Jobs currently waiting in the shared queue",
		},
	)

	c.buffersInUse = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffers_in_use",
			Help:      "Pooled chunk buffers currently checked out",
		},
	)

	c.workersAlive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_alive",
			Help:      "Worker goroutines currently running",
		},
	)

	c.workersBusy = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_busy",
			Help:      "Worker goroutines currently formatting a chunk",
		},
	)

	// 缓存指标
	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// WebSocket 指标
	c.wsConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open diagnostics WebSocket connections",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// Handler 返回该收集器注册表的 Prometheus 抓取端点。
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层注册表,供调用方注册额外的收集器。
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🌊 流指标记录
// =============================================================================

// RecordStreamCreated 记录流创建
func (c *Collector) RecordStreamCreated(provider string) {
	c.streamsCreatedTotal.WithLabelValues(provider).Inc()
}

// RecordStreamTerminal 记录流终态及其生命周期时长
func (c *Collector) RecordStreamTerminal(provider, state string, lifetime time.Duration) {
	c.streamsTerminalTotal.WithLabelValues(provider, state).Inc()
	c.streamDuration.WithLabelValues(provider, state).Observe(lifetime.Seconds())
}

// =============================================================================
// 📦 块指标记录
// =============================================================================

// RecordChunkProcessed 记录成功格式化的块
func (c *Collector) RecordChunkProcessed(provider string, bytes int, duration time.Duration) {
	c.chunksProcessedTotal.WithLabelValues(provider).Inc()
	c.bytesProcessedTotal.WithLabelValues(provider).Add(float64(bytes))
	c.chunkDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordChunkFailure 记录块处理失败。reason 取值:
// formatter_error、timeout、discarded。
func (c *Collector) RecordChunkFailure(provider, reason string) {
	c.chunkFailuresTotal.WithLabelValues(provider, reason).Inc()
}

// RecordBackpressure 记录被背压拒绝的提交
func (c *Collector) RecordBackpressure(provider string) {
	c.backpressureTotal.WithLabelValues(provider).Inc()
}

// SetEngineGauges 更新引擎占用率仪表,由监督器周期性调用。
func (c *Collector) SetEngineGauges(activeStreams int64, queueDepth int, buffersInUse, workersAlive, workersBusy int64) {
	c.activeStreams.Set(float64(activeStreams))
	c.queueDepth.Set(float64(queueDepth))
	c.buffersInUse.Set(float64(buffersInUse))
	c.workersAlive.Set(float64(workersAlive))
	c.workersBusy.Set(float64(workersBusy))
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🔌 WebSocket 指标记录
// =============================================================================

// SetWSConnections 更新当前 WebSocket 连接数
func (c *Collector) SetWSConnections(n int) {
	c.wsConnections.Set(float64(n))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
