// Copyright (c) PromptFlow Authors.
// Licensed under the MIT License.

/*
Package orchestrator 实现 PromptFlow 的核心调度引擎。

# 概述

orchestrator 将一批 prompt 任务在固定并发上限下驱动到终态。每次调用
尝试占用一个槽位；配额耗尽触发模型降级链（如 pro → flash），瞬态失败
在退避后同模型重试，重试与降级的再入队任务与其他待执行任务平等竞争
槽位。批次通过 Registry 注册后即可并发轮询状态快照，完成后的结果可
归档至 Redis。

# 核心类型

  - Dispatcher — 槽位调度与重试/降级策略的执行者
  - Registry — 批次生命周期管理：提交、查询、等待、取消、归档
  - BackoffPolicy — 指数退避策略（含抖动与上限）
  - Archive — 基于 Redis 的已完成批次归档
  - TaskSpec / CodeRequest — 提交入口的任务描述

# 主要能力

  - 并发上界：任意时刻 Running 任务数不超过 MaxConcurrency
  - 降级链：配额失败沿 ModelChain 单调前进，耗尽则以终态错误结束
  - 重试策略：瞬态失败最多重试 RetryLimit 次，退避期间不占用槽位
  - 取消语义：取消批次立即终结待执行任务，放弃在途尝试且不泄漏槽位
  - 结果顺序：批次结果始终按提交顺序物化，与完成顺序无关
*/
package orchestrator
