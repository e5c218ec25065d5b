// 版权所有 2025 StreamFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 observability 提供流处理引擎的 OpenTelemetry 观测能力。

# 概述

本包基于 OpenTelemetry 标准，为流的完整生命周期提供统一的观测
手段。从流创建到终态落定，自动记录块处理延迟、字节吞吐、终态
分布、背压拒绝与活跃流数，可通过 OTLP 导出至任意兼容后端。

典型使用场景：

  - 实时监控块处理速率、格式化延迟分布与失败率。
  - 按 Provider 维度统计流量与终态占比。
  - 将引擎内部事件与上游 HTTP 请求的 Trace 关联。

# 核心接口

  - StreamMetrics：基于 OpenTelemetry Meter 的指标收集器，提供
    块计数、字节计数、延迟直方图、终态计数与活跃流 UpDownCounter。

指标采集与 Prometheus 收集器(internal/metrics)互为补充：前者
走 OTLP 推送链路，后者暴露本地抓取端点，两者可独立启用。
*/
package observability
