package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/streamflow/formatter"
	"github.com/BaSui01/streamflow/types"
)

// fragment is one formatted piece of stream content. Compression is
// recorded per fragment because it can be toggled while a stream is
// in flight.
type fragment struct {
	data       []byte
	compressed bool
	rawLen     int
}

// stream holds all mutable state of one logical stream. Every field
// below mu is guarded by it; the mutex is the single-writer gate the
// state machine relies on. lastActivity is atomic so the supervisor
// can sample it without contending with the hot path.
type stream struct {
	id string
	sc types.StreamContext
	f  formatter.Formatter

	started      time.Time
	lastActivity atomic.Int64 // unix nanos

	mu         sync.Mutex
	state      types.StreamState
	seq        uint64 // last accepted chunk sequence
	queued     int    // accepted, not yet dequeued by a worker
	inflight   int    // accepted, not yet resolved
	finalSeq   uint64 // sequence of the accepted final chunk, 0 if none
	finalDone  bool   // the final chunk's job resolved successfully
	fragments  []fragment
	reasoning  []byte
	toolCalls  []types.ToolCall
	chunks     uint64 // successfully formatted chunks
	bytes      uint64 // raw payload bytes successfully formatted
	failure    *types.Error
	terminalAt time.Time
	resultRead bool
}

func newStream(id string, sc types.StreamContext, f formatter.Formatter) *stream {
	now := time.Now()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	s := &stream{
		id:      id,
		sc:      sc,
		f:       f,
		started: now,
		state:   types.StreamActive,
	}
	s.lastActivity.Store(now.UnixNano())
	return s
}

func (s *stream) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *stream) idleSince() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// transitionLocked applies the state machine. It refuses illegal
// moves, so concurrent terminal causes race benignly: the first one
// through wins and later ones report false. Caller holds s.mu.
func (s *stream) transitionLocked(next types.StreamState) bool {
	if !s.state.CanTransition(next) {
		return false
	}
	s.state = next
	if next.Terminal() {
		s.terminalAt = time.Now()
	}
	return true
}

// terminalErrLocked is the error handed to jobs drained after the
// stream reached a terminal state. Caller holds s.mu.
func (s *stream) terminalErrLocked() error {
	switch s.state {
	case types.StreamCancelled:
		return types.NewError(types.ErrStreamCancelled, "stream "+s.id+" was cancelled").WithHTTPStatus(409)
	case types.StreamTimedOut:
		return types.NewError(types.ErrTimeout, "stream "+s.id+" timed out").WithHTTPStatus(504)
	default:
		if s.failure != nil {
			return s.failure
		}
		return types.NewError(types.ErrInvalidTransition, "stream "+s.id+" is "+string(s.state)).WithHTTPStatus(409)
	}
}

// appendLocked accumulates one formatter result. Caller holds s.mu.
func (s *stream) appendLocked(frag fragment, res formatter.Result, rawLen int) {
	if len(frag.data) > 0 {
		s.fragments = append(s.fragments, frag)
	}
	if res.Reasoning != "" {
		s.reasoning = append(s.reasoning, res.Reasoning...)
	}
	if len(res.ToolCalls) > 0 {
		s.toolCalls = types.MergeToolCallDeltas(s.toolCalls, res.ToolCalls)
	}
	s.chunks++
	s.bytes += uint64(rawLen)
	s.touch()
}
