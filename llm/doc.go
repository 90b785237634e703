// Copyright (c) PromptFlow Authors.
// Licensed under the MIT License.

/*
Package llm 定义模型调用端口与降级链。

# 概述

orchestrator 依赖的外部协作者契约在此定义：Invoker 负责一次模型调用
并在边界处完成错误分类；FallbackChain 将「配额耗尽即降级」策略编码为
数据而非控制流，便于独立测试。重试与退避逻辑均不在本包。

# 核心类型

  - Invoker — 调用端口（model + prompt + context → Result 或已分类错误）
  - FallbackChain — 非空有序模型列表，高能力档位在前
  - Result — 单次成功调用的结果与用量

具体的 Gemini REST 适配见子包 llm/gemini。
*/
package llm
