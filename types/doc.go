// Copyright (c) StreamFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 StreamFlow 引擎的全局共享类型定义。

# 概述

types 是整个模块最底层的公共包，不依赖任何内部包，为 engine、formatter、
api 等上层模块提供统一的类型契约。所有跨包共享的枚举、结构体和错误码
均定义于此，以避免循环依赖。

# 核心类型

  - StreamState       — 流生命周期状态机（ACTIVE / FINALIZING / COMPLETED /
    CANCELLED / FAILED / TIMED_OUT）
  - StreamContext     — 流级元数据（提供商、模型、源格式、目标格式）
  - StreamResult      — 累积处理结果快照（内容、工具调用、令牌数、吞吐指标）
  - ToolCall          — 流式累积的工具调用（ID、参数、状态、时间戳）
  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码与 Retryable 标记

# 主要能力

  - 状态机约束：StreamState.CanTransition 定义唯一合法迁移表，
    终态互斥且不可再迁移，首个终态写入生效
  - 错误工具链：WrapError / AsError / IsErrorCode / IsRetryable
  - 常用错误构造：NewStreamNotFoundError / NewBackpressureError /
    NewCapacityError / NewTimeoutError / NewFormatterError 等
*/
package types
