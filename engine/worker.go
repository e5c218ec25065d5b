package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/streamflow/formatter"
	"github.com/BaSui01/streamflow/types"
)

// resizeWorkersLocked grows or shrinks the worker pool to target. Each
// worker owns a stop channel; shrinking closes the newest stops, which
// lets the affected workers finish their current job and exit. Caller
// holds confMu.
func (e *Engine) resizeWorkersLocked(target int) {
	for len(e.workerStops) < target {
		stop := make(chan struct{})
		e.workerStops = append(e.workerStops, stop)
		e.workerWG.Add(1)
		go e.worker(stop)
	}
	for len(e.workerStops) > target {
		last := len(e.workerStops) - 1
		close(e.workerStops[last])
		e.workerStops = e.workerStops[:last]
	}
}

// worker drains the shared job queue until stopped or the queue is
// closed and empty. A receive that reports closed on a still-open
// queue means the backing channel was swapped by a resize, so the
// worker re-snapshots and keeps going.
func (e *Engine) worker(stop <-chan struct{}) {
	defer e.workerWG.Done()
	e.workersAlive.Add(1)
	defer e.workersAlive.Add(-1)

	for {
		select {
		case <-stop:
			return
		case j, ok := <-e.jobs.Chan():
			if !ok {
				if e.jobs.Closed() {
					return
				}
				continue
			}
			e.workersBusy.Add(1)
			e.processJob(j)
			e.workersBusy.Add(-1)
		}
	}
}

// processJob runs one chunk through its stream's formatter. Jobs whose
// stream went terminal while they waited are discarded without side
// effects beyond resolving their handle with the terminal error.
func (e *Engine) processJob(j *job) {
	s := j.stream

	s.mu.Lock()
	s.queued--
	if s.state.Terminal() {
		s.inflight--
		err := s.terminalErrLocked()
		s.mu.Unlock()
		j.buf.Release()
		if e.metricsEnabled() {
			e.metrics.RecordChunkFailure(s.sc.Provider, "discarded")
		}
		j.handle.resolve(err)
		return
	}
	s.mu.Unlock()

	start := time.Now()
	res, err := e.invokeFormatter(j)
	e.resolveJob(j, res, err, time.Since(start))
}

type formatterOutcome struct {
	res formatter.Result
	err error
}

// invokeFormatter calls the stream's formatter with the chunk timeout
// enforced. The call runs in its own goroutine so a hung formatter
// cannot stall the worker: on timeout the worker abandons the call and
// the goroutine releases the payload buffer whenever it returns.
func (e *Engine) invokeFormatter(j *job) (formatter.Result, error) {
	s := j.stream
	cfg := e.cfg.Load()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ChunkTimeout)
	defer cancel()

	outcome := make(chan formatterOutcome, 1)
	go func() {
		defer j.buf.Release()
		defer func() {
			if r := recover(); r != nil {
				outcome <- formatterOutcome{err: fmt.Errorf("formatter panic: %v", r)}
			}
		}()
		res, err := s.f.Process(ctx, j.buf.Bytes(), j.final, s.sc)
		outcome <- formatterOutcome{res: res, err: err}
	}()

	select {
	case out := <-outcome:
		return out.res, out.err
	case <-ctx.Done():
		return formatter.Result{}, types.NewTimeoutError(
			fmt.Sprintf("chunk %d of stream %s", j.seq, s.id), cfg.ChunkTimeout)
	}
}

// resolveJob applies one formatter outcome to its stream and resolves
// the chunk handle. A success accumulates the result and may close out
// a FINALIZING stream; a failure moves the stream to FAILED unless a
// different terminal transition won while the formatter ran.
func (e *Engine) resolveJob(j *job, res formatter.Result, err error, dur time.Duration) {
	s := j.stream

	var out error
	var snap *types.StreamResult
	finalize := false

	s.mu.Lock()
	s.inflight--
	switch {
	case s.state.Terminal():
		out = s.terminalErrLocked()
		if e.metricsEnabled() {
			e.metrics.RecordChunkFailure(s.sc.Provider, "discarded")
		}

	case err != nil:
		timedOut := types.IsErrorCode(err, types.ErrTimeout)
		var ferr *types.Error
		if timedOut {
			e.stats.chunkTimeouts.Add(1)
			ferr, _ = types.AsError(err)
		} else {
			ferr = types.NewFormatterError(s.f.Name(), err)
		}
		e.stats.chunkFailures.Add(1)
		snap = e.enterTerminalLocked(s, types.StreamFailed, ferr)
		reason := "formatter_error"
		if timedOut {
			reason = "timeout"
		}
		if e.metricsEnabled() {
			e.metrics.RecordChunkFailure(s.sc.Provider, reason)
		}
		if e.obsEnabled() {
			e.obs.ChunkFailed(context.Background(), s.sc.Provider, reason)
		}
		e.logger.Warn("chunk failed stream",
			zap.String("stream_id", s.id),
			zap.Uint64("seq", j.seq),
			zap.String("reason", reason),
			zap.Error(err))
		out = ferr

	default:
		s.appendLocked(e.encodeFragment(res.Content), res, j.size)
		e.stats.noteChunk(time.Now(), j.size)
		if e.metricsEnabled() {
			e.metrics.RecordChunkProcessed(s.sc.Provider, j.size, dur)
		}
		if e.obsEnabled() {
			e.obs.ChunkProcessed(context.Background(), s.sc.Provider, j.size, dur)
		}
		if j.final {
			s.finalDone = true
		}
		// COMPLETED requires the final job done and nothing in flight.
		if s.state == types.StreamFinalizing && s.finalDone && s.inflight == 0 {
			finalize = true
		}
	}
	s.mu.Unlock()

	e.persistResult(snap)
	if finalize {
		e.finalizeStream(s)
	}
	j.handle.resolve(out)
}

// finalizeStream completes a stream whose last outstanding job just
// resolved. The optional EndStream hook runs outside the stream lock;
// the completion is re-validated afterwards because a cancel or
// timeout may have won in the meantime, in which case any trailing
// output is discarded.
func (e *Engine) finalizeStream(s *stream) {
	var trailing formatter.Result
	if lc, ok := s.f.(formatter.StreamLifecycle); ok {
		res, err := lc.EndStream(s.sc)
		if err != nil {
			ferr := types.NewFormatterError(s.f.Name(), err)
			s.mu.Lock()
			snap := e.enterTerminalLocked(s, types.StreamFailed, ferr)
			s.mu.Unlock()
			e.persistResult(snap)
			e.logger.Warn("end-of-stream hook failed",
				zap.String("stream_id", s.id), zap.Error(err))
			return
		}
		trailing = res
	}

	s.mu.Lock()
	if s.state == types.StreamFinalizing && s.finalDone && s.inflight == 0 {
		if !trailing.Empty() {
			if trailing.Content != "" {
				s.fragments = append(s.fragments, e.encodeFragment(trailing.Content))
			}
			if trailing.Reasoning != "" {
				s.reasoning = append(s.reasoning, trailing.Reasoning...)
			}
			if len(trailing.ToolCalls) > 0 {
				s.toolCalls = types.MergeToolCallDeltas(s.toolCalls, trailing.ToolCalls)
			}
		}
		snap := e.enterTerminalLocked(s, types.StreamCompleted, nil)
		s.mu.Unlock()
		e.persistResult(snap)
		e.logger.Debug("stream completed", zap.String("stream_id", s.id))
		return
	}
	s.mu.Unlock()
}

// encodeFragment prepares one piece of content for accumulation,
// compressing it when compression is enabled.
func (e *Engine) encodeFragment(content string) fragment {
	if content == "" {
		return fragment{}
	}
	raw := []byte(content)
	if e.cfg.Load().EnableCompression {
		return fragment{data: e.codec.Compress(raw), compressed: true, rawLen: len(raw)}
	}
	return fragment{data: raw, rawLen: len(raw)}
}
