package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 是 PromptFlow 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Orchestrator 调度引擎配置
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`

	// Gemini 上游模型配置
	Gemini GeminiConfig `yaml:"gemini" env:"GEMINI"`

	// Redis 批次归档配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时（需覆盖最长的同步单次调用）
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// OrchestratorConfig 调度引擎配置
type OrchestratorConfig struct {
	// 最大并发调用数
	MaxConcurrency int `yaml:"max_concurrency" env:"MAX_CONCURRENCY"`
	// 模型降级链，高能力档位在前
	ModelFallbackOrder []string `yaml:"model_fallback_order" env:"MODEL_FALLBACK_ORDER"`
	// 同模型瞬态失败的总尝试次数上限（含首次调用）
	RetryLimit int `yaml:"retry_limit" env:"RETRY_LIMIT"`
	// 退避初始延迟
	BackoffBase time.Duration `yaml:"backoff_base" env:"BACKOFF_BASE"`
	// 退避延迟上限
	BackoffCap time.Duration `yaml:"backoff_cap" env:"BACKOFF_CAP"`
	// 单次调用超时
	AttemptTimeout time.Duration `yaml:"attempt_timeout" env:"ATTEMPT_TIMEOUT"`
}

// GeminiConfig 上游模型配置
type GeminiConfig struct {
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 出站限速（请求/分钟，0 表示不限）
	RequestsPerMinute float64 `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
}

// RedisConfig 批次归档配置
type RedisConfig struct {
	// 是否启用归档
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 归档保留时间
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate 验证配置。调度引擎在接受任何任务之前快速失败。
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Orchestrator.MaxConcurrency <= 0 {
		errs = append(errs, "max_concurrency must be positive")
	}
	if len(c.Orchestrator.ModelFallbackOrder) == 0 {
		errs = append(errs, "model_fallback_order must not be empty")
	}
	for i, m := range c.Orchestrator.ModelFallbackOrder {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, fmt.Sprintf("model_fallback_order[%d] is blank", i))
		}
	}
	if c.Orchestrator.RetryLimit < 0 {
		errs = append(errs, "retry_limit must not be negative")
	}
	if c.Orchestrator.BackoffBase <= 0 {
		errs = append(errs, "backoff_base must be positive")
	}
	if c.Orchestrator.BackoffCap < c.Orchestrator.BackoffBase {
		errs = append(errs, "backoff_cap must not be below backoff_base")
	}
	if c.Orchestrator.AttemptTimeout <= 0 {
		errs = append(errs, "attempt_timeout must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis archive enabled but addr is empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
