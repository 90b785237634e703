// =============================================================================
// PromptFlow 主入口
// =============================================================================
// 完整服务入口点，包含 HTTP 服务、健康检查、Prometheus 指标
//
// 使用方法:
//
//	promptflow serve                       # 启动服务
//	promptflow serve --config config.yaml  # 指定配置文件
//	promptflow version                     # 显示版本信息
//	promptflow health                      # 健康检查
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/promptflow/api/handlers"
	"github.com/BaSui01/promptflow/config"
	"github.com/BaSui01/promptflow/internal/metrics"
	"github.com/BaSui01/promptflow/internal/server"
	"github.com/BaSui01/promptflow/internal/telemetry"
	"github.com/BaSui01/promptflow/llm"
	"github.com/BaSui01/promptflow/llm/gemini"
	"github.com/BaSui01/promptflow/orchestrator"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting PromptFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// Initialize OpenTelemetry
	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	// 上游模型客户端
	invoker, err := gemini.NewClient(gemini.Config{
		APIKey:            cfg.Gemini.APIKey,
		BaseURL:           cfg.Gemini.BaseURL,
		Timeout:           cfg.Gemini.Timeout,
		RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create Gemini client", zap.Error(err))
	}

	collector := metrics.NewCollector("promptflow", logger)

	// 调度引擎
	dispatcher, err := orchestrator.NewDispatcher(cfg.Orchestrator, invoker, logger,
		orchestrator.WithMetrics(collector))
	if err != nil {
		logger.Fatal("Failed to create dispatcher", zap.Error(err))
	}

	chain, err := llm.NewFallbackChain(cfg.Orchestrator.ModelFallbackOrder)
	if err != nil {
		logger.Fatal("Invalid model fallback chain", zap.Error(err))
	}

	// 可选的 Redis 批次归档
	var registryOpts []orchestrator.RegistryOption
	var healthChecks []handlers.HealthCheck
	var archive *orchestrator.Archive
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		archive, err = orchestrator.NewArchive(ctx, cfg.Redis, logger, orchestrator.WithArchiveMetrics(collector))
		cancel()
		if err != nil {
			logger.Warn("Batch archive not available, results are memory-only", zap.Error(err))
		} else {
			registryOpts = append(registryOpts, orchestrator.WithArchive(archive))
			healthChecks = append(healthChecks, archiveCheck{archive: archive})
		}
	}

	registry, err := orchestrator.NewRegistry(dispatcher, chain, logger, registryOpts...)
	if err != nil {
		logger.Fatal("Failed to create registry", zap.Error(err))
	}

	// HTTP 服务器
	router := handlers.NewRouter(handlers.RouterOptions{
		Registry:     registry,
		Metrics:      collector,
		Logger:       logger,
		HealthChecks: healthChecks,
	})

	serverCfg := server.DefaultConfig()
	serverCfg.Addr = fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	serverCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	srv := server.NewManager(router, serverCfg, logger)

	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	srv.WaitForShutdown()

	// 排空在途批次与遥测
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := registry.Close(shutdownCtx); err != nil {
		logger.Warn("registry drain incomplete", zap.Error(err))
	}
	if archive != nil {
		_ = archive.Close()
	}
	if err := otelProviders.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown failed", zap.Error(err))
	}

	logger.Info("PromptFlow stopped")
}

// archiveCheck 将 Redis 归档接入就绪检查
type archiveCheck struct {
	archive *orchestrator.Archive
}

func (c archiveCheck) Name() string { return "redis_archive" }

func (c archiveCheck) Check(ctx context.Context) error {
	_, err := c.archive.Load(ctx, "readiness-probe")
	if err != nil && err != orchestrator.ErrBatchNotFound {
		return err
	}
	return nil
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("PromptFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`PromptFlow - LLM Prompt Orchestration Engine

Usage:
  promptflow <command> [options]

Commands:
  serve     Start the PromptFlow server
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Examples:
  promptflow serve
  promptflow serve --config /etc/promptflow/config.yaml
  promptflow health --addr http://localhost:8080
  promptflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
