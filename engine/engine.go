package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/streamflow/formatter"
	"github.com/BaSui01/streamflow/internal/compress"
	"github.com/BaSui01/streamflow/internal/metrics"
	"github.com/BaSui01/streamflow/internal/pool"
	"github.com/BaSui01/streamflow/internal/queue"
	"github.com/BaSui01/streamflow/observability"
	"github.com/BaSui01/streamflow/types"
)

// ResultSink persists terminal stream results so they survive eviction
// from the in-memory registry. GetResult falls back to the sink when a
// stream is no longer tracked.
type ResultSink interface {
	Put(ctx context.Context, result *types.StreamResult) error
	Get(ctx context.Context, streamID string) (*types.StreamResult, error)
}

// Engine schedules chunk formatting across a fixed worker pool. Chunk
// submission never blocks: payloads are copied into pooled buffers,
// queued on a shared bounded queue, and resolved asynchronously through
// ChunkHandles. A supervisor goroutine times out stale streams and
// evicts retained terminal results.
type Engine struct {
	logger *zap.Logger

	cfg    atomic.Pointer[Config]
	confMu sync.Mutex // serializes Configure, worker resize, pool swap

	mu      sync.RWMutex
	streams map[string]*stream

	active atomic.Int64 // non-terminal stream count

	jobs  *queue.Bounded[*job]
	pool  atomic.Pointer[pool.BufferPool]
	codec *compress.Codec

	workerStops  []chan struct{} // guarded by confMu
	workerWG     sync.WaitGroup
	workersAlive atomic.Int64
	workersBusy  atomic.Int64

	supStop chan struct{}
	supWG   sync.WaitGroup

	stats     *counters
	persistWG sync.WaitGroup

	metrics *metrics.Collector
	obs     *observability.StreamMetrics
	results ResultSink

	closed  atomic.Bool
	started time.Time
}

// Option customizes an Engine beyond its Config.
type Option func(*Engine)

// WithMetricsCollector attaches a Prometheus collector.
func WithMetricsCollector(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithObservability attaches OpenTelemetry stream instruments.
func WithObservability(m *observability.StreamMetrics) Option {
	return func(e *Engine) { e.obs = m }
}

// WithResultSink attaches a persistent store for terminal results.
func WithResultSink(sink ResultSink) Option {
	return func(e *Engine) { e.results = sink }
}

// New starts an engine: preallocates the buffer pool, spawns the worker
// pool and the supervisor. Callers own the returned engine and must
// Close it to release the workers.
func New(cfg Config, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	codec, err := compress.New()
	if err != nil {
		return nil, fmt.Errorf("init zstd codec: %w", err)
	}

	e := &Engine{
		logger:  logger.With(zap.String("component", "engine")),
		streams: make(map[string]*stream),
		jobs:    queue.NewBounded[*job](cfg.BackpressureThreshold),
		codec:   codec,
		stats:   newCounters(),
		supStop: make(chan struct{}),
		started: time.Now(),
	}
	e.cfg.Store(&cfg)
	e.pool.Store(pool.NewBufferPool(cfg.BufferPoolCapacity, cfg.BufferSizeBytes))

	for _, opt := range opts {
		opt(e)
	}

	e.confMu.Lock()
	e.resizeWorkersLocked(cfg.WorkerCount)
	e.confMu.Unlock()

	e.supWG.Add(1)
	go e.supervise()

	e.logger.Info("engine started",
		zap.Int("workers", cfg.WorkerCount),
		zap.Int("queue_capacity", cfg.BackpressureThreshold),
		zap.Int("buffer_pool", cfg.BufferPoolCapacity),
		zap.Int("buffer_size", cfg.BufferSizeBytes),
		zap.Int("max_streams", cfg.MaxConcurrentStreams))
	return e, nil
}

// CreateStream registers a new stream bound to the given formatter and
// returns its ID. It fails when the engine is at its concurrent-stream
// limit or the formatter's BeginStream hook rejects the stream.
func (e *Engine) CreateStream(ctx context.Context, sc types.StreamContext, f formatter.Formatter) (string, error) {
	if e.closed.Load() {
		return "", errEngineClosed()
	}
	if f == nil {
		return "", types.NewInvalidRequestError("formatter is required")
	}
	if sc.Provider == "" {
		return "", types.NewInvalidRequestError("provider is required")
	}
	cfg := e.cfg.Load()

	if lc, ok := f.(formatter.StreamLifecycle); ok {
		if err := lc.BeginStream(sc); err != nil {
			return "", types.NewFormatterError(f.Name(), err)
		}
	}

	s := newStream(uuid.NewString(), sc, f)

	e.mu.Lock()
	if e.active.Load() >= int64(cfg.MaxConcurrentStreams) {
		e.mu.Unlock()
		return "", types.NewCapacityError(cfg.MaxConcurrentStreams)
	}
	e.streams[s.id] = s
	e.active.Add(1)
	e.mu.Unlock()

	e.stats.streamsCreated.Add(1)
	if e.metricsEnabled() {
		e.metrics.RecordStreamCreated(sc.Provider)
	}
	if e.obsEnabled() {
		e.obs.StreamStarted(ctx, sc.Provider)
	}
	e.logger.Debug("stream created",
		zap.String("stream_id", s.id),
		zap.String("provider", sc.Provider),
		zap.String("formatter", f.Name()))
	return s.id, nil
}

// ProcessChunk submits one chunk for asynchronous formatting and
// returns a handle that resolves when the chunk has been handled.
// It never blocks: the payload is copied into a pooled buffer and
// queued, and submissions beyond the backpressure threshold fail fast.
// A chunk with final set moves the stream to FINALIZING on acceptance.
func (e *Engine) ProcessChunk(ctx context.Context, streamID string, payload []byte, final bool) (*ChunkHandle, error) {
	if e.closed.Load() {
		return nil, errEngineClosed()
	}
	s, ok := e.lookup(streamID)
	if !ok {
		return nil, types.NewStreamNotFoundError(streamID)
	}
	cfg := e.cfg.Load()

	s.mu.Lock()
	if s.state.Terminal() {
		st := s.state
		s.mu.Unlock()
		return nil, types.NewInvalidTransitionError(streamID, st)
	}
	if s.state == types.StreamFinalizing {
		// A second final chunk breaks the single-final contract and
		// fails the whole stream; a late non-final chunk is rejected
		// without touching stream state.
		if final {
			ferr := types.NewError(types.ErrInvalidTransition,
				fmt.Sprintf("stream %q received a second final chunk", streamID)).WithHTTPStatus(409)
			if snap := e.enterTerminalLocked(s, types.StreamFailed, ferr); snap != nil {
				e.persistResult(snap)
			}
			s.mu.Unlock()
			e.logger.Warn("duplicate final chunk failed stream", zap.String("stream_id", streamID))
			return nil, ferr
		}
		s.mu.Unlock()
		return nil, types.NewInvalidTransitionError(streamID, types.StreamFinalizing)
	}

	if s.queued >= cfg.BackpressureThreshold {
		s.mu.Unlock()
		e.noteBackpressure(ctx, s)
		return nil, types.NewBackpressureError(streamID)
	}

	buf := e.pool.Load().AcquireOrAlloc(len(payload))
	size := buf.Store(payload)

	seq := s.seq + 1
	j := &job{
		stream:   s,
		seq:      seq,
		final:    final,
		buf:      buf,
		size:     size,
		handle:   newChunkHandle(seq),
		accepted: time.Now(),
	}
	if !e.jobs.TryPush(j) {
		buf.Release()
		s.mu.Unlock()
		e.noteBackpressure(ctx, s)
		return nil, types.NewBackpressureError(streamID)
	}

	s.seq = seq
	s.queued++
	s.inflight++
	if final {
		s.transitionLocked(types.StreamFinalizing)
		s.finalSeq = seq
	}
	s.touch()
	s.mu.Unlock()

	return j.handle, nil
}

// GetResult snapshots a stream's accumulated output. It works on live
// streams (a progress snapshot) as well as terminal ones, and falls
// back to the result sink for streams already evicted from memory.
func (e *Engine) GetResult(ctx context.Context, streamID string) (*types.StreamResult, error) {
	if s, ok := e.lookup(streamID); ok {
		s.mu.Lock()
		snap := e.buildResultLocked(s)
		if s.state.Terminal() {
			s.resultRead = true
		}
		s.mu.Unlock()
		return snap, nil
	}
	if e.results != nil {
		if snap, err := e.results.Get(ctx, streamID); err == nil && snap != nil {
			if e.metricsEnabled() {
				e.metrics.RecordCacheHit("result")
			}
			return snap, nil
		}
		if e.metricsEnabled() {
			e.metrics.RecordCacheMiss("result")
		}
	}
	return nil, types.NewStreamNotFoundError(streamID)
}

// CancelStream moves a stream to CANCELLED. It reports false when the
// stream is unknown or already terminal, so concurrent cancels and a
// racing timeout agree on a single winner. Jobs still queued for the
// stream are drained and discarded by the workers.
func (e *Engine) CancelStream(streamID string) bool {
	s, ok := e.lookup(streamID)
	if !ok {
		return false
	}
	s.mu.Lock()
	snap := e.enterTerminalLocked(s, types.StreamCancelled, nil)
	s.mu.Unlock()
	if snap == nil {
		return false
	}
	e.persistResult(snap)
	e.logger.Debug("stream cancelled", zap.String("stream_id", streamID))
	return true
}

// IsStreamActive reports whether the stream exists and has not reached
// a terminal state.
func (e *Engine) IsStreamActive(streamID string) bool {
	s, ok := e.lookup(streamID)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.state.Terminal()
}

// ActiveStreamIDs lists the IDs of all non-terminal streams, sorted.
func (e *Engine) ActiveStreamIDs() []string {
	e.mu.RLock()
	ids := make([]string, 0, len(e.streams))
	for id, s := range e.streams {
		s.mu.Lock()
		terminal := s.state.Terminal()
		s.mu.Unlock()
		if !terminal {
			ids = append(ids, id)
		}
	}
	e.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Configure applies a partial configuration update at runtime. Worker
// count, queue capacity and buffer pool changes take effect without
// dropping queued jobs; buffers borrowed from a replaced pool drain
// back to it as they are released.
func (e *Engine) Configure(opts Options) error {
	if e.closed.Load() {
		return errEngineClosed()
	}
	e.confMu.Lock()
	defer e.confMu.Unlock()

	old := *e.cfg.Load()
	cfg := old
	opts.apply(&cfg)
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return types.NewInvalidRequestError(err.Error())
	}
	e.cfg.Store(&cfg)

	if cfg.BackpressureThreshold != old.BackpressureThreshold {
		e.jobs.Resize(cfg.BackpressureThreshold)
	}
	if cfg.WorkerCount != old.WorkerCount {
		e.resizeWorkersLocked(cfg.WorkerCount)
	}
	if cfg.BufferSizeBytes != old.BufferSizeBytes || cfg.BufferPoolCapacity != old.BufferPoolCapacity {
		e.pool.Store(pool.NewBufferPool(cfg.BufferPoolCapacity, cfg.BufferSizeBytes))
	}

	e.logger.Info("engine reconfigured",
		zap.Int("workers", cfg.WorkerCount),
		zap.Int("queue_capacity", cfg.BackpressureThreshold),
		zap.Int("buffer_pool", cfg.BufferPoolCapacity),
		zap.Int("buffer_size", cfg.BufferSizeBytes),
		zap.Bool("compression", cfg.EnableCompression))
	return nil
}

// Config returns the engine's current configuration.
func (e *Engine) Config() Config {
	return *e.cfg.Load()
}

// Statistics snapshots engine-wide counters and occupancy.
func (e *Engine) Statistics() Statistics {
	now := time.Now()
	p := e.pool.Load()
	qs := e.jobs.Stats()

	e.mu.RLock()
	tracked := len(e.streams)
	e.mu.RUnlock()

	return Statistics{
		ActiveStreams:    e.active.Load(),
		TrackedStreams:   tracked,
		StreamsCreated:   e.stats.streamsCreated.Load(),
		StreamsCompleted: e.stats.streamsCompleted.Load(),
		StreamsFailed:    e.stats.streamsFailed.Load(),
		StreamsCancelled: e.stats.streamsCancelled.Load(),
		StreamsTimedOut:  e.stats.streamsTimedOut.Load(),

		ChunksProcessed:    e.stats.chunksProcessed.Load(),
		ChunkFailures:      e.stats.chunkFailures.Load(),
		ChunkTimeouts:      e.stats.chunkTimeouts.Load(),
		BytesProcessed:     e.stats.bytesProcessed.Load(),
		BackpressureEvents: e.stats.backpressure.Load(),

		ChunksPerSecond: e.stats.chunkRate.perSecond(now),
		ThroughputMBps:  e.stats.byteRate.perSecond(now) / (1024 * 1024),

		SuccessRate:      e.stats.successRate(),
		BackpressureRate: e.stats.backpressureRate(),

		QueueDepth:    qs.Depth,
		QueueCapacity: qs.Capacity,

		WorkersAlive: e.workersAlive.Load(),
		WorkersBusy:  e.workersBusy.Load(),

		BufferPool:       p.Stats(),
		MemoryInUseBytes: p.MemoryInUse(),
		MemoryBudget:     p.Budget(),

		UptimeSeconds: now.Sub(e.started).Seconds(),
		CollectedAt:   now,
	}
}

// ResetStatistics zeroes all cumulative counters and rate windows.
// Per-stream accumulators and gauges are unaffected.
func (e *Engine) ResetStatistics() {
	e.stats.reset()
	e.logger.Info("statistics reset")
}

// Diagnostics returns the full operational snapshot: statistics, the
// running configuration, queue internals and one entry per tracked
// stream, sorted by stream ID.
func (e *Engine) Diagnostics() Diagnostics {
	now := time.Now()

	e.mu.RLock()
	list := make([]*stream, 0, len(e.streams))
	for _, s := range e.streams {
		list = append(list, s)
	}
	e.mu.RUnlock()

	ds := make([]StreamDiagnostic, 0, len(list))
	for _, s := range list {
		s.mu.Lock()
		d := StreamDiagnostic{
			ID:        s.id,
			Provider:  s.sc.Provider,
			Model:     s.sc.Model,
			Formatter: s.f.Name(),
			State:     s.state,
			Chunks:    s.chunks,
			Bytes:     s.bytes,
			Queued:    s.queued,
			Inflight:  s.inflight,
			AgeMS:     now.Sub(s.started).Milliseconds(),
			IdleMS:    now.Sub(s.idleSince()).Milliseconds(),
		}
		if s.failure != nil {
			d.Error = s.failure.Message
		}
		s.mu.Unlock()
		ds = append(ds, d)
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })

	return Diagnostics{
		Statistics: e.Statistics(),
		Config:     *e.cfg.Load(),
		Queue:      e.jobs.Stats(),
		Streams:    ds,
		StartedAt:  e.started,
	}
}

// HealthCheck evaluates the engine against its health thresholds:
// workers alive, buffer memory within twice the pool budget, success
// rate at or above the floor, backpressure rate at or below the
// ceiling.
func (e *Engine) HealthCheck() HealthReport {
	cfg := e.cfg.Load()
	p := e.pool.Load()

	checks := map[string]bool{
		CheckWorkerPool:   e.workersAlive.Load() > 0 && !e.closed.Load(),
		CheckMemory:       p.MemoryInUse() <= 2*p.Budget(),
		CheckSuccessRate:  e.stats.successRate() >= cfg.SuccessRateFloor,
		CheckBackpressure: e.stats.backpressureRate() <= cfg.BackpressureCeiling,
	}

	healthy := true
	for _, ok := range checks {
		healthy = healthy && ok
	}
	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	return HealthReport{
		Healthy:   healthy,
		Status:    status,
		Checks:    checks,
		CheckedAt: time.Now(),
	}
}

// Close stops the supervisor, rejects new work, drains the job queue
// through the workers and waits for them up to ctx. Streams still
// non-terminal after the drain are failed so their retained results
// reflect the shutdown.
func (e *Engine) Close(ctx context.Context) error {
	if e.closed.Swap(true) {
		return nil
	}
	e.logger.Info("engine closing", zap.Int("queued_jobs", e.jobs.Depth()))

	close(e.supStop)
	e.supWG.Wait()

	e.jobs.Close()

	workersDone := make(chan struct{})
	go func() {
		e.workerWG.Wait()
		close(workersDone)
	}()
	select {
	case <-workersDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.RLock()
	leftovers := make([]*stream, 0)
	for _, s := range e.streams {
		leftovers = append(leftovers, s)
	}
	e.mu.RUnlock()
	for _, s := range leftovers {
		s.mu.Lock()
		snap := e.enterTerminalLocked(s, types.StreamFailed,
			types.NewError(types.ErrEngineClosed, "engine closed before stream finished").WithHTTPStatus(503))
		s.mu.Unlock()
		e.persistResult(snap)
	}

	persistsDone := make(chan struct{})
	go func() {
		e.persistWG.Wait()
		close(persistsDone)
	}()
	select {
	case <-persistsDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.codec.Close()
	e.logger.Info("engine closed")
	return nil
}

func (e *Engine) lookup(streamID string) (*stream, bool) {
	e.mu.RLock()
	s, ok := e.streams[streamID]
	e.mu.RUnlock()
	return s, ok
}

func (e *Engine) metricsEnabled() bool {
	return e.metrics != nil && e.cfg.Load().EnableMetrics
}

func (e *Engine) obsEnabled() bool {
	return e.obs != nil && e.cfg.Load().EnableMetrics
}

// noteBackpressure accounts one shed submission. Both rejection paths
// (per-stream depth and shared queue capacity) funnel through here so
// a rejected call is counted exactly once.
func (e *Engine) noteBackpressure(ctx context.Context, s *stream) {
	e.stats.backpressure.Add(1)
	if e.metricsEnabled() {
		e.metrics.RecordBackpressure(s.sc.Provider)
	}
	if e.obsEnabled() {
		e.obs.Backpressure(ctx, s.sc.Provider)
	}
	e.logger.Debug("chunk shed under backpressure", zap.String("stream_id", s.id))
}

// enterTerminalLocked performs a terminal transition and its
// bookkeeping: stats, gauges, instruments and the result snapshot the
// caller persists after unlocking. It returns nil when another
// terminal transition already won. Caller holds s.mu.
func (e *Engine) enterTerminalLocked(s *stream, next types.StreamState, failure *types.Error) *types.StreamResult {
	if !s.transitionLocked(next) {
		return nil
	}
	if failure != nil {
		s.failure = failure
	}
	e.active.Add(-1)
	e.stats.noteTerminal(next)

	lifetime := s.terminalAt.Sub(s.started)
	if e.metricsEnabled() {
		e.metrics.RecordStreamTerminal(s.sc.Provider, string(next), lifetime)
	}
	if e.obsEnabled() {
		e.obs.StreamEnded(context.Background(), s.sc.Provider, string(next), lifetime)
	}
	return e.buildResultLocked(s)
}

// persistResult hands a terminal snapshot to the result sink without
// blocking the caller. Close waits for outstanding writes.
func (e *Engine) persistResult(snap *types.StreamResult) {
	if e.results == nil || snap == nil {
		return
	}
	e.persistWG.Add(1)
	go func() {
		defer e.persistWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := e.results.Put(ctx, snap); err != nil {
			e.logger.Warn("persist stream result",
				zap.String("stream_id", snap.StreamID), zap.Error(err))
		}
	}()
}

func errEngineClosed() *types.Error {
	return types.NewError(types.ErrEngineClosed, "engine is closed").WithHTTPStatus(503)
}
