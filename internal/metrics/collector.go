// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 调度指标
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	attemptsRunning *prometheus.GaugeVec
	fallbacksTotal  *prometheus.CounterVec
	tasksTotal      *prometheus.CounterVec
	batchesTotal    *prometheus.CounterVec

	// 归档指标
	archiveWrites *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 调度指标
	c.attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocation_attempts_total",
			Help:      "Total number of model invocation attempts",
		},
		[]string{"model", "outcome"}, // outcome: success, quota, transient, terminal, cancelled
	)

	c.attemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_attempt_duration_seconds",
			Help:      "Model invocation attempt duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 90},
		},
		[]string{"model"},
	)

	c.attemptsRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "invocation_attempts_running",
			Help:      "Number of invocation attempts currently holding a slot",
		},
		[]string{"model"},
	)

	c.fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_fallbacks_total",
			Help:      "Total number of quota-driven model fallbacks",
		},
		[]string{"from_model", "to_model"},
	)

	c.tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Total number of tasks driven to a terminal status",
		},
		[]string{"status"},
	)

	c.batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of completed batches",
		},
		[]string{"outcome"}, // outcome: success, partial_failure
	)

	// 归档指标
	c.archiveWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_writes_total",
			Help:      "Total number of batch result archive writes",
		},
		[]string{"status"}, // status: ok, error
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🚀 调度指标记录
// =============================================================================

// AttemptStarted 记录占用槽位的调用尝试
func (c *Collector) AttemptStarted(model string) {
	c.attemptsRunning.WithLabelValues(model).Inc()
}

// AttemptFinished 记录调用尝试结束
func (c *Collector) AttemptFinished(model, outcome string, duration time.Duration) {
	c.attemptsRunning.WithLabelValues(model).Dec()
	c.attemptsTotal.WithLabelValues(model, outcome).Inc()
	c.attemptDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// Fallback 记录配额触发的模型降级
func (c *Collector) Fallback(fromModel, toModel string) {
	c.fallbacksTotal.WithLabelValues(fromModel, toModel).Inc()
}

// TaskCompleted 记录任务到达终态
func (c *Collector) TaskCompleted(status string) {
	c.tasksTotal.WithLabelValues(status).Inc()
}

// BatchCompleted 记录批次完成
func (c *Collector) BatchCompleted(allSucceeded bool) {
	outcome := "success"
	if !allSucceeded {
		outcome = "partial_failure"
	}
	c.batchesTotal.WithLabelValues(outcome).Inc()
}

// =============================================================================
// 💾 归档指标记录
// =============================================================================

// RecordArchiveWrite 记录批次结果归档写入
func (c *Collector) RecordArchiveWrite(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.archiveWrites.WithLabelValues(status).Inc()
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
