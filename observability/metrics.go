package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/BaSui01/streamflow/engine"

// StreamMetrics 流处理指标收集器
type StreamMetrics struct {
	tracer trace.Tracer
	meter  metric.Meter
	// 计数器
	chunkTotal        metric.Int64Counter
	chunkErrorTotal   metric.Int64Counter
	byteTotal         metric.Int64Counter
	streamTotal       metric.Int64Counter
	backpressureTotal metric.Int64Counter
	// 直方图
	chunkDuration  metric.Float64Histogram
	streamDuration metric.Float64Histogram
	chunkBytes     metric.Int64Histogram
	// 活跃流
	activeStreams metric.Int64UpDownCounter
}

// NewStreamMetrics 创建指标收集器
func NewStreamMetrics() (*StreamMetrics, error) {
	tracer := otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)

	m := &StreamMetrics{
		tracer: tracer,
		meter:  meter,
	}

	var err error

	// 块计数
	m.chunkTotal, err = meter.Int64Counter("stream.chunk.total",
		metric.WithDescription("Total chunks formatted successfully"),
		metric.WithUnit("{chunk}"))
	if err != nil {
		return nil, err
	}

	// 块错误计数
	m.chunkErrorTotal, err = meter.Int64Counter("stream.chunk.error.total",
		metric.WithDescription("Total chunk processing failures"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	// 字节计数
	m.byteTotal, err = meter.Int64Counter("stream.byte.total",
		metric.WithDescription("Total raw payload bytes formatted"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	// 流终态计数
	m.streamTotal, err = meter.Int64Counter("stream.terminal.total",
		metric.WithDescription("Total streams reaching a terminal state"),
		metric.WithUnit("{stream}"))
	if err != nil {
		return nil, err
	}

	// 背压拒绝计数
	m.backpressureTotal, err = meter.Int64Counter("stream.backpressure.total",
		metric.WithDescription("Total submissions shed under backpressure"),
		metric.WithUnit("{rejection}"))
	if err != nil {
		return nil, err
	}

	// 块处理延迟
	m.chunkDuration, err = meter.Float64Histogram("stream.chunk.duration",
		metric.WithDescription("Formatter invocation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5))
	if err != nil {
		return nil, err
	}

	// 流生命周期时长
	m.streamDuration, err = meter.Float64Histogram("stream.duration",
		metric.WithDescription("Stream lifetime from creation to terminal state in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 15, 30, 60, 120, 300))
	if err != nil {
		return nil, err
	}

	// 块大小分布
	m.chunkBytes, err = meter.Int64Histogram("stream.chunk.bytes",
		metric.WithDescription("Raw chunk payload size"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(64, 256, 1024, 4096, 16384, 65536, 262144, 1048576))
	if err != nil {
		return nil, err
	}

	// 活跃流数
	m.activeStreams, err = meter.Int64UpDownCounter("stream.active",
		metric.WithDescription("Number of non-terminal streams"),
		metric.WithUnit("{stream}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// StreamStarted 记录流创建
func (m *StreamMetrics) StreamStarted(ctx context.Context, provider string) {
	m.activeStreams.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)))
}

// StreamEnded 记录流终态及其生命周期时长
func (m *StreamMetrics) StreamEnded(ctx context.Context, provider, state string, lifetime time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("state", state))

	m.activeStreams.Add(ctx, -1,
		metric.WithAttributes(attribute.String("provider", provider)))
	m.streamTotal.Add(ctx, 1, attrs)
	m.streamDuration.Record(ctx, lifetime.Seconds(), attrs)
}

// ChunkProcessed 记录成功格式化的块
func (m *StreamMetrics) ChunkProcessed(ctx context.Context, provider string, bytes int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("provider", provider))

	m.chunkTotal.Add(ctx, 1, attrs)
	m.byteTotal.Add(ctx, int64(bytes), attrs)
	m.chunkDuration.Record(ctx, duration.Seconds(), attrs)
	m.chunkBytes.Record(ctx, int64(bytes), attrs)
}

// ChunkFailed 记录块处理失败
func (m *StreamMetrics) ChunkFailed(ctx context.Context, provider, reason string) {
	m.chunkErrorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("reason", reason)))
}

// Backpressure 记录被背压拒绝的提交
func (m *StreamMetrics) Backpressure(ctx context.Context, provider string) {
	m.backpressureTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)))
}

// Tracer 获取 Tracer
func (m *StreamMetrics) Tracer() trace.Tracer {
	return m.tracer
}
