// =============================================================================
// 📦 StreamFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值与引擎调优预设
// =============================================================================
package config

import (
	"fmt"
	"runtime"
	"time"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Engine:    DefaultEngineConfig(),
		Server:    DefaultServerConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultEngineConfig 返回默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		WorkerCount:           4,
		BufferSizeBytes:       1024 * 1024, // 1 MiB
		BufferPoolCapacity:    64,
		BackpressureThreshold: 1000,
		MaxConcurrentStreams:  1000,
		ChunkTimeout:          5 * time.Second,
		StreamTimeout:         60 * time.Second,
		ResultRetention:       5 * time.Minute,
		SupervisorInterval:    time.Second,
		EnableCompression:     false,
		EnableMetrics:         true,
		SuccessRateFloor:      0.95,
		BackpressureCeiling:   0.10,
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
		WSMaxConns:      64,
		WSPushInterval:  time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		ResultTTL:    time.Hour,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "streamflow",
		SampleRate:   0.1,
	}
}

// =============================================================================
// 🎯 引擎调优预设
// =============================================================================

// OptimizeForThroughput 以吞吐优先调整引擎配置：
// 更多工作协程、更高背压阈值、关闭压缩。
func (e *EngineConfig) OptimizeForThroughput() {
	e.WorkerCount = runtime.NumCPU() * 2
	e.BackpressureThreshold = 2000
	e.EnableCompression = false
}

// OptimizeForLatency 以延迟优先调整引擎配置：
// 更小的缓冲区、更浅的队列、更紧的单块超时。
func (e *EngineConfig) OptimizeForLatency() {
	e.BufferSizeBytes = 256 * 1024
	e.BackpressureThreshold = 100
	e.ChunkTimeout = time.Second
}

// OptimizeForMemory 以内存占用优先调整引擎配置：
// 少量工作协程、小缓冲池、开启压缩、限制并发流。
func (e *EngineConfig) OptimizeForMemory() {
	e.WorkerCount = 2
	e.BufferPoolCapacity = 16
	e.MaxConcurrentStreams = 100
	e.EnableCompression = true
}

// Presets 列出可用的调优预设名称
func Presets() []string {
	return []string{"throughput", "latency", "memory"}
}

// ApplyPreset 按名称应用调优预设
func (e *EngineConfig) ApplyPreset(name string) error {
	switch name {
	case "throughput":
		e.OptimizeForThroughput()
	case "latency":
		e.OptimizeForLatency()
	case "memory":
		e.OptimizeForMemory()
	default:
		return fmt.Errorf("unknown preset %q (want one of %v)", name, Presets())
	}
	return nil
}
