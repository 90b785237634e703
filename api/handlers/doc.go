// Copyright (c) PromptFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 PromptFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 PromptFlow 所有 HTTP 端点的请求处理逻辑，
包括同步执行、批次生命周期、代码生成、健康检查以及统一的
响应/错误处理。所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - AskHandler       — 同步执行与代码生成（/v1/ask, /v1/code）
  - BatchHandler     — 批次提交、状态轮询与取消（/v1/batches）
  - HealthHandler    — 服务健康检查（/health, /ready）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 kind 与 message
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck      — 可插拔健康检查接口（Redis 等）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（严格模式）、ValidateContentType
  - ErrorKind → HTTP 状态码自动映射（4xx/5xx）
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
