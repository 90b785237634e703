// Copyright (c) PromptFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 PromptFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 orchestrator、llm、api
等上层模块提供统一的类型契约：任务与批次的数据模型、状态机枚举，
以及贯穿全链路的结构化错误体系。

# 核心类型

  - Task / TaskStatus / TaskPriority — 单条 prompt 的执行单元与生命周期
  - Batch / BatchStatus / TaskCounts — 固定任务集合与派生聚合状态
  - Attempt / TaskResult / BatchResult — 尝试历史与物化结果
  - Error / ErrorKind — 按 Quota / Transient / Terminal 封闭分类的错误体系

# 主要能力

  - 状态不变量：任务一旦进入终态，Result 与 Err 互斥且不可变
  - 批次快照：Snapshot 在不阻塞在途 worker 的前提下读取一致视图
  - 错误工具链：KindOf / AsError / With* 构造器
*/
package types
