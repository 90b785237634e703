// =============================================================================
// 📦 PromptFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"os"
	"time"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
		Gemini:       DefaultGeminiConfig(),
		Redis:        DefaultRedisConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultOrchestratorConfig 返回默认调度配置
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxConcurrency:     3,
		ModelFallbackOrder: []string{"gemini-2.5-pro", "gemini-2.5-flash"},
		RetryLimit:         3,
		BackoffBase:        1 * time.Second,
		BackoffCap:         30 * time.Second,
		AttemptTimeout:     90 * time.Second,
	}
}

// DefaultGeminiConfig 返回默认上游配置。
// API Key 默认从 GEMINI_API_KEY 环境变量读取。
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Timeout: 60 * time.Second,
	}
}

// DefaultRedisConfig 返回默认归档配置（默认关闭）
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled: false,
		Addr:    "localhost:6379",
		DB:      0,
		TTL:     24 * time.Hour,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "promptflow",
		SampleRate:   1.0,
	}
}
