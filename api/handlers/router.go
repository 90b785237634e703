package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/promptflow/internal/metrics"
	"github.com/BaSui01/promptflow/orchestrator"
)

// RouterOptions 路由装配参数
type RouterOptions struct {
	// Registry 批次注册中心（必需）
	Registry *orchestrator.Registry
	// Metrics 指标收集器（可选）
	Metrics *metrics.Collector
	// Logger 日志器（可选，默认 noop）
	Logger *zap.Logger
	// HealthChecks 额外注册的就绪检查（可选）
	HealthChecks []HealthCheck
}

// NewRouter 装配完整的 HTTP 路由
func NewRouter(opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	askHandler := NewAskHandler(opts.Registry, logger)
	batchHandler := NewBatchHandler(opts.Registry, logger)
	healthHandler := NewHealthHandler(logger)
	for _, check := range opts.HealthChecks {
		healthHandler.RegisterCheck(check)
	}

	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", healthHandler.HandleReady)

	// 指标
	mux.Handle("GET /metrics", promhttp.Handler())

	// 执行接口
	mux.HandleFunc("POST /v1/ask", askHandler.HandleAsk)
	mux.HandleFunc("POST /v1/code", askHandler.HandleCode)

	// 批次接口
	mux.HandleFunc("POST /v1/batches", batchHandler.HandleSubmit)
	mux.HandleFunc("GET /v1/batches/{id}", batchHandler.HandleStatus)
	mux.HandleFunc("DELETE /v1/batches/{id}", batchHandler.HandleCancel)

	var handler http.Handler = mux
	if opts.Metrics != nil {
		handler = metricsMiddleware(opts.Metrics, handler)
	}
	return handler
}

// metricsMiddleware 记录每个请求的计数与耗时
func metricsMiddleware(collector *metrics.Collector, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := NewResponseWriter(w)
		start := time.Now()
		next.ServeHTTP(rw, r)
		collector.RecordHTTPRequest(r.Method, r.URL.Path, rw.StatusCode, time.Since(start))
	})
}
