// Copyright (c) StreamFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 StreamFlow 服务端程序入口。

# 概述

cmd/streamflow 是流处理引擎的可执行入口，提供流生命周期 HTTP API、
运行时配置管理、统计与诊断查询、WebSocket 诊断推送、健康检查和版本
查询等能力。程序支持 YAML 配置文件加载、结构化日志（zap）、Prometheus
指标采集以及可选的 Redis 终态结果缓存。

# 核心类型

  - Server           — 主服务器，管理引擎、HTTP、Metrics 双端口及优雅关闭
  - Middleware        — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter    — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    CORS、RateLimiter（基于 IP）、APIKeyAuth（X-API-Key）或
    JWTAuth（Bearer HS256）、MetricsMiddleware、OTelTracing（可选）
  - 结果缓存：Redis 可用时终态结果写入缓存，引擎逐出后仍可查询
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 停止推送 → 关闭 HTTP/Metrics → 排空引擎 → Wait
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
