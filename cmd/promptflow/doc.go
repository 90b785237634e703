// Copyright (c) PromptFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 PromptFlow 服务端程序入口。

# 概述

cmd/promptflow 是 PromptFlow 调度引擎的可执行入口，提供 HTTP API
服务、健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、
环境变量覆盖、结构化日志（zap）、Prometheus 指标采集与
OpenTelemetry 链路追踪。

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 组件装配：Gemini 客户端 → 调度器 → 注册中心 → HTTP 路由
  - 可选 Redis 批次归档，接入 /ready 就绪检查
  - 优雅关闭：信号监听 → 关闭 HTTP → 排空在途批次 → 关闭遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
