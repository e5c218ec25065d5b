// 版权所有 2025 StreamFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、流、块、队列/缓冲池、缓存与 WebSocket 六大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标。每个 Collector
持有独立的 Registry，通过 promauto.With 工厂注册，避免测试与多实例
场景下的重复注册冲突。所有指标按 namespace 隔离，支持多维度 label
分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理，并暴露 Handler 供
    抓取端点挂载。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 流指标：创建总数、终态分布、生命周期时长、活跃流数，
    按 provider/state 分组。
  - 块指标：格式化成功/失败计数、格式化耗时、原始字节量、
    背压拒绝计数，按 provider 分组。
  - 队列与缓冲池指标：共享队列深度、缓冲区占用、工作协程
    存活/忙碌数，由监督器周期性刷新。
  - 缓存指标：命中与未命中计数，按 cache_type 分组。
  - WebSocket 指标：诊断推送连接数。
*/
package metrics
