// Copyright (c) StreamFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 StreamFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 StreamFlow 所有 HTTP 端点的请求处理逻辑，
包括流生命周期管理、结果查询、统计诊断、运行时配置以及统一的
响应/错误处理。所有 Handler 均遵循标准 net/http 接口，路由使用
Go 1.22 的方法感知模式（r.PathValue）。

# 核心类型

  - StreamsHandler   — 流生命周期：创建、提交块（可等待）、结果、取消
  - AdminHandler     — 统计、诊断、运行时配置与调优预设
  - HealthHandler    — 服务健康检查（/healthz, /readyz, /version）
  - DiagnosticsHub   — WebSocket 诊断推送（周期快照广播）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck      — 可插拔健康检查接口（Engine、Redis 等）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MiB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 同步提交：?wait=true 阻塞至块处理完成并携带最终结果
  - 诊断推送：慢消费者淘汰、连接数上限、连接内帧序号
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
