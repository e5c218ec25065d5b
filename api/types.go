package api

import (
	"time"

	"github.com/BaSui01/streamflow/types"
)

// =============================================================================
// 流生命周期类型
// =============================================================================

// CreateStreamRequest 表示创建流请求。
// @Description 创建流请求结构
type CreateStreamRequest struct {
	// 上游提供商名称（例如 openai、anthropic）
	Provider string `json:"provider" example:"openai" binding:"required"`
	// 型号名称（例如 gpt-4、claude-3-opus）
	Model string `json:"model,omitempty" example:"gpt-4"`
	// 块格式化器名称（未指定时使用注册表默认值）
	Formatter string `json:"formatter,omitempty" example:"passthrough"`
	// 上游块的源格式（sse、json、raw）
	SourceFormat string `json:"source_format,omitempty" example:"sse"`
	// 期望的输出格式列表
	OutputFormats []string `json:"output_formats,omitempty"`
	// 自定义元数据
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CreateStreamResponse 表示创建流响应。
// @Description 创建流响应结构
type CreateStreamResponse struct {
	// 新分配的流 ID
	StreamID string `json:"stream_id" example:"f81d4fae-7dec-11d0-a765-00a0c91e6bf6"`
	// 处理请求的提供商
	Provider string `json:"provider" example:"openai"`
	// 绑定的格式化器名称
	Formatter string `json:"formatter" example:"passthrough"`
	// 流创建时间戳
	CreatedAt time.Time `json:"created_at"`
}

// SubmitChunkRequest 表示提交块请求。
// @Description 提交块请求结构
type SubmitChunkRequest struct {
	// 块负载（原始文本或 JSON 编码的块信封）
	Data string `json:"data" binding:"required"`
	// 是否为流的最后一块
	Final bool `json:"final,omitempty" example:"false"`
}

// SubmitChunkResponse 表示提交块响应。
// @Description 提交块响应结构
type SubmitChunkResponse struct {
	// 流 ID
	StreamID string `json:"stream_id" example:"f81d4fae-7dec-11d0-a765-00a0c91e6bf6"`
	// 块在流内的序号
	Seq uint64 `json:"seq" example:"3"`
	// 是否为最后一块
	Final bool `json:"final,omitempty"`
	// 提交后的流状态（仅当 ?wait=true 时填充，此时块已处理完成）
	State string `json:"state,omitempty" example:"ACTIVE"`
	// 完整结果（仅当 ?wait=true 且该块为最后一块时填充）
	Result *StreamResult `json:"result,omitempty"`
}

// CancelStreamResponse 表示取消流响应。
// @Description 取消流响应结构
type CancelStreamResponse struct {
	// 流 ID
	StreamID string `json:"stream_id" example:"f81d4fae-7dec-11d0-a765-00a0c91e6bf6"`
	// 本次调用是否完成了取消（流已终止时为 false）
	Cancelled bool `json:"cancelled" example:"true"`
}

// StreamActiveResponse 表示流活跃状态响应。
// @Description 流活跃状态响应结构
type StreamActiveResponse struct {
	// 流 ID
	StreamID string `json:"stream_id" example:"f81d4fae-7dec-11d0-a765-00a0c91e6bf6"`
	// 流是否处于非终止状态
	Active bool `json:"active" example:"true"`
}

// StreamListResponse 表示活跃流列表。
// @Description 活跃流列表响应
type StreamListResponse struct {
	// 活跃流 ID 列表
	Streams []string `json:"streams"`
	// 列表长度
	Count int `json:"count" example:"2"`
}

// StreamResult is a type alias for types.StreamResult to avoid duplicate
// definitions. The canonical definition lives in types.StreamResult
// (types/stream.go).
type StreamResult = types.StreamResult

// =============================================================================
// 运行时配置类型
// =============================================================================

// ConfigUpdateRequest 表示引擎运行时配置更新请求。
// 所有字段均为可选；为 nil 的字段保持当前配置不变。
// @Description 配置更新请求结构
type ConfigUpdateRequest struct {
	// 工作协程数量
	WorkerCount *int `json:"worker_count,omitempty" example:"8"`
	// 单个块缓冲区大小（字节）
	BufferSizeBytes *int `json:"buffer_size_bytes,omitempty" example:"1048576"`
	// 预分配的块缓冲区数量
	BufferPoolCapacity *int `json:"buffer_pool_capacity,omitempty" example:"64"`
	// 背压阈值（共享队列与单流排队上限）
	BackpressureThreshold *int `json:"backpressure_threshold,omitempty" example:"1000"`
	// 并发流数量上限
	MaxConcurrentStreams *int `json:"max_concurrent_streams,omitempty" example:"1000"`
	// 单块处理超时（Go duration 字符串，例如 "5s"）
	ChunkTimeout *string `json:"chunk_timeout,omitempty" example:"5s"`
	// 流空闲超时（Go duration 字符串，例如 "60s"）
	StreamTimeout *string `json:"stream_timeout,omitempty" example:"60s"`
	// 终止结果保留时长（Go duration 字符串，例如 "5m"）
	ResultRetention *string `json:"result_retention,omitempty" example:"5m"`
	// 是否压缩累积的片段
	EnableCompression *bool `json:"enable_compression,omitempty" example:"false"`
	// 是否启用指标采集
	EnableMetrics *bool `json:"enable_metrics,omitempty" example:"true"`
	// 健康判定的最低成功率（0-1）
	SuccessRateFloor *float64 `json:"success_rate_floor,omitempty" example:"0.95"`
	// 健康判定的最高背压比率（0-1）
	BackpressureCeiling *float64 `json:"backpressure_ceiling,omitempty" example:"0.1"`
}

// ConfigResponse 表示配置操作后的生效配置。
// @Description 配置响应结构
type ConfigResponse struct {
	// 应用的预设名称（仅预设端点填充）
	Preset string `json:"preset,omitempty" example:"throughput"`
	// 生效的引擎配置快照
	Config any `json:"config"`
}

// =============================================================================
// 错误类型
// =============================================================================

// ErrorResponse 表示错误响应。
// @Description 错误响应结构
type ErrorResponse struct {
	// 错误详情
	Error ErrorDetail `json:"error"`
}

// ErrorDetail 表示错误详细信息。
// @Description 错误详细结构
type ErrorDetail struct {
	// 错误代码
	Code string `json:"code" example:"INVALID_REQUEST"`
	// 人类可读的错误消息
	Message string `json:"message" example:"Invalid request parameters"`
	// HTTP 状态码
	HTTPStatus int `json:"http_status,omitempty" example:"400"`
	// 请求是否可以重试
	Retryable bool `json:"retryable,omitempty" example:"false"`
	// 返回错误的提供者
	Provider string `json:"provider,omitempty" example:"openai"`
}

// =============================================================================
// 诊断推送类型
// =============================================================================

// DiagnosticsFrame 表示 WebSocket 诊断通道推送的单帧快照。
// @Description 诊断推送帧结构
type DiagnosticsFrame struct {
	// 连接内单调递增的帧序号
	Seq uint64 `json:"seq" example:"42"`
	// 引擎统计快照
	Statistics any `json:"statistics"`
	// 引擎诊断快照
	Diagnostics any `json:"diagnostics"`
	// 快照时间戳
	Timestamp time.Time `json:"timestamp"`
}
