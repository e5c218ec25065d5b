package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/streamflow/types"
)

// supervise periodically times out stale streams, evicts retained
// terminal results and refreshes occupancy gauges.
func (e *Engine) supervise() {
	defer e.supWG.Done()
	ticker := time.NewTicker(e.cfg.Load().SupervisorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.supStop:
			return
		case now := <-ticker.C:
			e.superviseOnce(now)
		}
	}
}

// superviseOnce performs one supervision sweep. A stream is timed out
// when it has been idle longer than StreamTimeout, or unconditionally
// once it is older than twice StreamTimeout; a slow but steady trickle
// of chunks cannot keep a stream alive forever. Terminal streams with
// no outstanding jobs are evicted after their retention window, or as
// soon as their result was read if a result sink holds a durable copy.
func (e *Engine) superviseOnce(now time.Time) {
	cfg := e.cfg.Load()

	e.mu.RLock()
	snapshot := make([]*stream, 0, len(e.streams))
	for _, s := range e.streams {
		snapshot = append(snapshot, s)
	}
	e.mu.RUnlock()

	var evict []string
	for _, s := range snapshot {
		s.mu.Lock()
		if !s.state.Terminal() {
			idle := now.Sub(s.idleSince())
			age := now.Sub(s.started)
			if idle > cfg.StreamTimeout || age > 2*cfg.StreamTimeout {
				terr := types.NewTimeoutError("stream "+s.id, cfg.StreamTimeout)
				if snap := e.enterTerminalLocked(s, types.StreamTimedOut, terr); snap != nil {
					e.persistResult(snap)
					e.logger.Warn("stream timed out",
						zap.String("stream_id", s.id),
						zap.Duration("idle", idle),
						zap.Duration("age", age),
						zap.Int("queued", s.queued),
						zap.Int("inflight", s.inflight))
				}
			}
		}
		if s.state.Terminal() && s.inflight == 0 && s.queued == 0 {
			expired := now.Sub(s.terminalAt) > cfg.ResultRetention
			read := s.resultRead && e.results != nil
			if expired || read {
				evict = append(evict, s.id)
			}
		}
		s.mu.Unlock()
	}

	if len(evict) > 0 {
		e.mu.Lock()
		for _, id := range evict {
			delete(e.streams, id)
		}
		e.mu.Unlock()
		e.logger.Debug("evicted terminal streams", zap.Int("count", len(evict)))
	}

	if e.metricsEnabled() {
		e.metrics.SetEngineGauges(
			e.active.Load(),
			e.jobs.Depth(),
			e.pool.Load().Stats().InUse,
			e.workersAlive.Load(),
			e.workersBusy.Load())
	}
}
