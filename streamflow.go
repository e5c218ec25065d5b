// Package streamflow provides a top-level convenience entry point for creating
// stream processing engines with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/streamflow"
//
//	eng, err := streamflow.New()
//	eng, err := streamflow.New(streamflow.WithPreset("latency"))
//	eng, err := streamflow.New(
//	    streamflow.WithConfig(cfg),
//	    streamflow.WithLogger(logger),
//	    streamflow.WithResultCache(resultCache),
//	)
//
// The zero-option call builds an engine from config.DefaultEngineConfig with
// a no-op logger. For the full HTTP gateway, use cmd/streamflow instead.
package streamflow

import (
	"fmt"

	"github.com/BaSui01/streamflow/config"
	"github.com/BaSui01/streamflow/engine"
	"github.com/BaSui01/streamflow/internal/metrics"

	"go.uber.org/zap"
)

// Option configures the engine created by [New].
type Option func(*options)

type options struct {
	cfg       *engine.Config
	preset    string
	logger    *zap.Logger
	collector *metrics.Collector
	sink      engine.ResultSink
}

// WithConfig sets the full engine configuration. Without it, New starts from
// config.DefaultEngineConfig.
func WithConfig(cfg engine.Config) Option {
	return func(o *options) { o.cfg = &cfg }
}

// WithPreset applies a named tuning preset ("throughput", "latency", or
// "memory") on top of the base configuration.
func WithPreset(name string) Option {
	return func(o *options) { o.preset = name }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithResultCache attaches a persistent sink for terminal stream results,
// typically a Redis-backed cache. Results evicted from the engine's in-memory
// registry remain retrievable through it.
func WithResultCache(sink engine.ResultSink) Option {
	return func(o *options) { o.sink = sink }
}

// WithMetrics attaches a Prometheus metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// New creates an [engine.Engine] with minimal configuration.
func New(opts ...Option) (*engine.Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// Resolve base configuration.
	var ec config.EngineConfig
	if o.cfg != nil {
		ec = config.EngineConfig{
			WorkerCount:           o.cfg.WorkerCount,
			BufferSizeBytes:       o.cfg.BufferSizeBytes,
			BufferPoolCapacity:    o.cfg.BufferPoolCapacity,
			BackpressureThreshold: o.cfg.BackpressureThreshold,
			MaxConcurrentStreams:  o.cfg.MaxConcurrentStreams,
			ChunkTimeout:          o.cfg.ChunkTimeout,
			StreamTimeout:         o.cfg.StreamTimeout,
			ResultRetention:       o.cfg.ResultRetention,
			SupervisorInterval:    o.cfg.SupervisorInterval,
			EnableCompression:     o.cfg.EnableCompression,
			EnableMetrics:         o.cfg.EnableMetrics,
			SuccessRateFloor:      o.cfg.SuccessRateFloor,
			BackpressureCeiling:   o.cfg.BackpressureCeiling,
		}
	} else {
		ec = config.DefaultEngineConfig()
	}

	if o.preset != "" {
		if err := ec.ApplyPreset(o.preset); err != nil {
			return nil, fmt.Errorf("apply preset: %w", err)
		}
	}

	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	engineCfg := engine.Config{
		WorkerCount:           ec.WorkerCount,
		BufferSizeBytes:       ec.BufferSizeBytes,
		BufferPoolCapacity:    ec.BufferPoolCapacity,
		BackpressureThreshold: ec.BackpressureThreshold,
		MaxConcurrentStreams:  ec.MaxConcurrentStreams,
		ChunkTimeout:          ec.ChunkTimeout,
		StreamTimeout:         ec.StreamTimeout,
		ResultRetention:       ec.ResultRetention,
		SupervisorInterval:    ec.SupervisorInterval,
		EnableCompression:     ec.EnableCompression,
		EnableMetrics:         ec.EnableMetrics,
		SuccessRateFloor:      ec.SuccessRateFloor,
		BackpressureCeiling:   ec.BackpressureCeiling,
	}

	var engineOpts []engine.Option
	if o.collector != nil {
		engineOpts = append(engineOpts, engine.WithMetricsCollector(o.collector))
	}
	if o.sink != nil {
		engineOpts = append(engineOpts, engine.WithResultSink(o.sink))
	}

	return engine.New(engineCfg, o.logger, engineOpts...)
}
