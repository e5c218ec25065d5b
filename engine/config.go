package engine

import (
	"fmt"
	"runtime"
	"time"
)

// Config carries the tunables of a streaming engine. Zero values are
// replaced with defaults by normalize, so callers may set only the
// fields they care about.
type Config struct {
	// WorkerCount is the number of goroutines draining the job queue.
	WorkerCount int

	// BufferSizeBytes is the size of each pooled chunk buffer.
	BufferSizeBytes int

	// BufferPoolCapacity is the number of preallocated chunk buffers.
	BufferPoolCapacity int

	// BackpressureThreshold bounds both the shared job queue and the
	// number of queued chunks any single stream may hold. Submissions
	// beyond either bound fail fast with a backpressure error.
	BackpressureThreshold int

	// MaxConcurrentStreams caps the number of non-terminal streams.
	MaxConcurrentStreams int

	// ChunkTimeout bounds a single formatter invocation. A chunk that
	// exceeds it fails its stream.
	ChunkTimeout time.Duration

	// StreamTimeout bounds stream inactivity. The supervisor times out
	// streams idle longer than this, and unconditionally after twice
	// this regardless of activity.
	StreamTimeout time.Duration

	// ResultRetention is how long terminal stream results are kept in
	// memory before the supervisor evicts them.
	ResultRetention time.Duration

	// SupervisorInterval is the period of the timeout and eviction scan.
	SupervisorInterval time.Duration

	// EnableCompression compresses accumulated fragments with zstd.
	EnableCompression bool

	// EnableMetrics gates Prometheus and OpenTelemetry instrumentation.
	EnableMetrics bool

	// SuccessRateFloor is the minimum stream success rate considered
	// healthy.
	SuccessRateFloor float64

	// BackpressureCeiling is the maximum tolerated ratio of rejected
	// submissions to total submissions.
	BackpressureCeiling float64
}

// DefaultConfig returns the engine defaults: 4 workers, 64 one-MiB
// buffers, a 1000-deep job queue and 60s stream timeout.
func DefaultConfig() Config {
	return Config{
		WorkerCount:           4,
		BufferSizeBytes:       1024 * 1024,
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

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.WorkerCount <= 0 {
		c.WorkerCount = def.WorkerCount
	}
	if c.BufferSizeBytes <= 0 {
		c.BufferSizeBytes = def.BufferSizeBytes
	}
	if c.BufferPoolCapacity <= 0 {
		c.BufferPoolCapacity = def.BufferPoolCapacity
	}
	if c.BackpressureThreshold <= 0 {
		c.BackpressureThreshold = def.BackpressureThreshold
	}
	if c.MaxConcurrentStreams <= 0 {
		c.MaxConcurrentStreams = def.MaxConcurrentStreams
	}
	if c.ChunkTimeout <= 0 {
		c.ChunkTimeout = def.ChunkTimeout
	}
	if c.StreamTimeout <= 0 {
		c.StreamTimeout = def.StreamTimeout
	}
	if c.ResultRetention <= 0 {
		c.ResultRetention = def.ResultRetention
	}
	if c.SupervisorInterval <= 0 {
		c.SupervisorInterval = def.SupervisorInterval
	}
	if c.SuccessRateFloor <= 0 || c.SuccessRateFloor > 1 {
		c.SuccessRateFloor = def.SuccessRateFloor
	}
	if c.BackpressureCeiling <= 0 || c.BackpressureCeiling > 1 {
		c.BackpressureCeiling = def.BackpressureCeiling
	}
	if c.WorkerCount > 64*runtime.NumCPU() {
		c.WorkerCount = 64 * runtime.NumCPU()
	}
}

func (c Config) validate() error {
	if c.WorkerCount < 0 {
		return fmt.Errorf("worker count must not be negative, got %d", c.WorkerCount)
	}
	if c.BufferSizeBytes < 0 || c.BufferPoolCapacity < 0 {
		return fmt.Errorf("buffer pool dimensions must not be negative")
	}
	if c.BackpressureThreshold < 0 {
		return fmt.Errorf("backpressure threshold must not be negative, got %d", c.BackpressureThreshold)
	}
	if c.MaxConcurrentStreams < 0 {
		return fmt.Errorf("max concurrent streams must not be negative, got %d", c.MaxConcurrentStreams)
	}
	return nil
}

// Options is a partial configuration update applied by Configure.
// Nil fields leave the corresponding setting untouched.
type Options struct {
	WorkerCount           *int
	BufferSizeBytes       *int
	BufferPoolCapacity    *int
	BackpressureThreshold *int
	MaxConcurrentStreams  *int
	ChunkTimeout          *time.Duration
	StreamTimeout         *time.Duration
	ResultRetention       *time.Duration
	EnableCompression     *bool
	EnableMetrics         *bool
	SuccessRateFloor      *float64
	BackpressureCeiling   *float64
}

func (o Options) apply(c *Config) {
	if o.WorkerCount != nil {
		c.WorkerCount = *o.WorkerCount
	}
	if o.BufferSizeBytes != nil {
		c.BufferSizeBytes = *o.BufferSizeBytes
	}
	if o.BufferPoolCapacity != nil {
		c.BufferPoolCapacity = *o.BufferPoolCapacity
	}
	if o.BackpressureThreshold != nil {
		c.BackpressureThreshold = *o.BackpressureThreshold
	}
	if o.MaxConcurrentStreams != nil {
		c.MaxConcurrentStreams = *o.MaxConcurrentStreams
	}
	if o.ChunkTimeout != nil {
		c.ChunkTimeout = *o.ChunkTimeout
	}
	if o.StreamTimeout != nil {
		c.StreamTimeout = *o.StreamTimeout
	}
	if o.ResultRetention != nil {
		c.ResultRetention = *o.ResultRetention
	}
	if o.EnableCompression != nil {
		c.EnableCompression = *o.EnableCompression
	}
	if o.EnableMetrics != nil {
		c.EnableMetrics = *o.EnableMetrics
	}
	if o.SuccessRateFloor != nil {
		c.SuccessRateFloor = *o.SuccessRateFloor
	}
	if o.BackpressureCeiling != nil {
		c.BackpressureCeiling = *o.BackpressureCeiling
	}
}
