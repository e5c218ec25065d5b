package engine

import (
	"sync/atomic"
	"time"

	"github.com/BaSui01/streamflow/internal/pool"
	"github.com/BaSui01/streamflow/internal/queue"
	"github.com/BaSui01/streamflow/types"
)

// rateRing tracks per-second chunk counts over a sliding one-minute
// window. Buckets are keyed by unix second modulo the window size;
// advancing the window clears the seconds skipped since the last
// observation.
type rateRing struct {
	buckets [60]atomic.Int64
	lastSec atomic.Int64
}

func (r *rateRing) advance(nowSec int64) {
	last := r.lastSec.Load()
	if nowSec <= last {
		return
	}
	if !r.lastSec.CompareAndSwap(last, nowSec) {
		return
	}
	gap := nowSec - last
	if gap > int64(len(r.buckets)) {
		gap = int64(len(r.buckets))
	}
	for i := int64(1); i <= gap; i++ {
		r.buckets[(last+i)%int64(len(r.buckets))].Store(0)
	}
}

func (r *rateRing) add(now time.Time, n int64) {
	sec := now.Unix()
	r.advance(sec)
	r.buckets[sec%int64(len(r.buckets))].Add(n)
}

// perSecond averages the window. Seconds with no traffic count as
// zero, so an idle engine decays toward zero instead of holding its
// last burst.
func (r *rateRing) perSecond(now time.Time) float64 {
	r.advance(now.Unix())
	var total int64
	for i := range r.buckets {
		total += r.buckets[i].Load()
	}
	return float64(total) / float64(len(r.buckets))
}

func (r *rateRing) reset() {
	for i := range r.buckets {
		r.buckets[i].Store(0)
	}
}

// counters aggregates engine-wide totals. Everything is atomic so the
// hot path never takes a lock to account for work.
type counters struct {
	streamsCreated   atomic.Uint64
	streamsCompleted atomic.Uint64
	streamsFailed    atomic.Uint64
	streamsCancelled atomic.Uint64
	streamsTimedOut  atomic.Uint64

	chunksProcessed atomic.Uint64
	chunkFailures   atomic.Uint64
	chunkTimeouts   atomic.Uint64
	bytesProcessed  atomic.Uint64
	backpressure    atomic.Uint64

	chunkRate rateRing
	byteRate  rateRing

	resetAt atomic.Int64 // unix nanos
}

func newCounters() *counters {
	c := &counters{}
	c.resetAt.Store(time.Now().UnixNano())
	return c
}

func (c *counters) noteChunk(now time.Time, rawLen int) {
	c.chunksProcessed.Add(1)
	c.bytesProcessed.Add(uint64(rawLen))
	c.chunkRate.add(now, 1)
	c.byteRate.add(now, int64(rawLen))
}

func (c *counters) noteTerminal(state types.StreamState) {
	switch state {
	case types.StreamCompleted:
		c.streamsCompleted.Add(1)
	case types.StreamCancelled:
		c.streamsCancelled.Add(1)
	case types.StreamFailed:
		c.streamsFailed.Add(1)
	case types.StreamTimedOut:
		c.streamsTimedOut.Add(1)
	}
}

// successRate counts completed streams against all outcome-bearing
// terminals. Cancellation is caller intent, not an engine failure, so
// cancelled streams do not depress the rate.
func (c *counters) successRate() float64 {
	completed := c.streamsCompleted.Load()
	denom := completed + c.streamsFailed.Load() + c.streamsTimedOut.Load()
	if denom == 0 {
		return 1.0
	}
	return float64(completed) / float64(denom)
}

// backpressureRate is the share of submissions rejected for queue
// pressure among all submissions that reached the queueing stage.
func (c *counters) backpressureRate() float64 {
	rejected := c.backpressure.Load()
	denom := rejected + c.chunksProcessed.Load() + c.chunkFailures.Load()
	if denom == 0 {
		return 0.0
	}
	return float64(rejected) / float64(denom)
}

func (c *counters) reset() {
	c.streamsCreated.Store(0)
	c.streamsCompleted.Store(0)
	c.streamsFailed.Store(0)
	c.streamsCancelled.Store(0)
	c.streamsTimedOut.Store(0)
	c.chunksProcessed.Store(0)
	c.chunkFailures.Store(0)
	c.chunkTimeouts.Store(0)
	c.bytesProcessed.Store(0)
	c.backpressure.Store(0)
	c.chunkRate.reset()
	c.byteRate.reset()
	c.resetAt.Store(time.Now().UnixNano())
}

// Statistics is a point-in-time snapshot of engine throughput and
// occupancy. Rates are averaged over a sliding sixty-second window;
// totals accumulate since startup or the last ResetStatistics.
type Statistics struct {
	ActiveStreams    int64  `json:"active_streams"`
	TrackedStreams   int    `json:"tracked_streams"`
	StreamsCreated   uint64 `json:"streams_created"`
	StreamsCompleted uint64 `json:"streams_completed"`
	StreamsFailed    uint64 `json:"streams_failed"`
	StreamsCancelled uint64 `json:"streams_cancelled"`
	StreamsTimedOut  uint64 `json:"streams_timed_out"`

	ChunksProcessed    uint64 `json:"chunks_processed"`
	ChunkFailures      uint64 `json:"chunk_failures"`
	ChunkTimeouts      uint64 `json:"chunk_timeouts"`
	BytesProcessed     uint64 `json:"bytes_processed"`
	BackpressureEvents uint64 `json:"backpressure_events"`

	ChunksPerSecond float64 `json:"chunks_per_second"`
	ThroughputMBps  float64 `json:"throughput_mbps"`

	SuccessRate      float64 `json:"success_rate"`
	BackpressureRate float64 `json:"backpressure_rate"`

	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`

	WorkersAlive int64 `json:"workers_alive"`
	WorkersBusy  int64 `json:"workers_busy"`

	BufferPool       pool.BufferPoolStats `json:"buffer_pool"`
	MemoryInUseBytes int64                `json:"memory_in_use_bytes"`
	MemoryBudget     int64                `json:"memory_budget_bytes"`

	UptimeSeconds float64   `json:"uptime_seconds"`
	CollectedAt   time.Time `json:"collected_at"`
}

// StreamDiagnostic describes one live or retained stream.
type StreamDiagnostic struct {
	ID        string            `json:"id"`
	Provider  string            `json:"provider"`
	Model     string            `json:"model,omitempty"`
	Formatter string            `json:"formatter"`
	State     types.StreamState `json:"state"`
	Chunks    uint64            `json:"chunks"`
	Bytes     uint64            `json:"bytes"`
	Queued    int               `json:"queued"`
	Inflight  int               `json:"inflight"`
	AgeMS     int64             `json:"age_ms"`
	IdleMS    int64             `json:"idle_ms"`
	Error     string            `json:"error,omitempty"`
}

// Diagnostics is the full operational snapshot served by the admin
// surface: statistics plus per-stream detail, queue internals and the
// running configuration.
type Diagnostics struct {
	Statistics Statistics         `json:"statistics"`
	Config     Config             `json:"config"`
	Queue      queue.Stats        `json:"queue"`
	Streams    []StreamDiagnostic `json:"streams"`
	StartedAt  time.Time          `json:"started_at"`
}

// Health check names reported by HealthCheck.
const (
	CheckWorkerPool   = "worker_pool_responsive"
	CheckMemory       = "memory_within_limits"
	CheckSuccessRate  = "acceptable_success_rate"
	CheckBackpressure = "acceptable_backpressure"
)

// HealthReport is the aggregate health verdict. Healthy requires every
// individual check to pass; Status degrades to "degraded" otherwise.
type HealthReport struct {
	Healthy   bool            `json:"healthy"`
	Status    string          `json:"status"`
	Checks    map[string]bool `json:"checks"`
	CheckedAt time.Time       `json:"checked_at"`
}
