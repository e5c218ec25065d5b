package types

import "time"

// StreamState identifies a stream's position in its lifecycle.
type StreamState string

const (
	// StreamActive accepts chunks; no final chunk has been seen yet.
	StreamActive StreamState = "ACTIVE"
	// StreamFinalizing has accepted its final chunk and is draining jobs.
	StreamFinalizing StreamState = "FINALIZING"
	// StreamCompleted finished successfully. Terminal.
	StreamCompleted StreamState = "COMPLETED"
	// StreamCancelled was cancelled by the caller. Terminal.
	StreamCancelled StreamState = "CANCELLED"
	// StreamFailed hit a formatter error or an internal invariant violation. Terminal.
	StreamFailed StreamState = "FAILED"
	// StreamTimedOut was reaped by the supervisor for inactivity or age. Terminal.
	StreamTimedOut StreamState = "TIMED_OUT"
)

// StreamStates lists every state a stream can report.
func StreamStates() []StreamState {
	return []StreamState{
		StreamActive,
		StreamFinalizing,
		StreamCompleted,
		StreamCancelled,
		StreamFailed,
		StreamTimedOut,
	}
}

// Terminal reports whether the state is final. A stream in a terminal
// state never transitions again; whichever terminal transition happens
// first wins.
func (s StreamState) Terminal() bool {
	switch s {
	case StreamCompleted, StreamCancelled, StreamFailed, StreamTimedOut:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle transition. COMPLETED is only reachable through FINALIZING;
// every non-terminal state can be cancelled, failed, or timed out.
func (s StreamState) CanTransition(next StreamState) bool {
	switch s {
	case StreamActive:
		switch next {
		case StreamFinalizing, StreamCancelled, StreamFailed, StreamTimedOut:
			return true
		}
	case StreamFinalizing:
		switch next {
		case StreamCompleted, StreamCancelled, StreamFailed, StreamTimedOut:
			return true
		}
	}
	return false
}

// StreamContext carries the immutable metadata a stream was created with.
// It is handed to the formatter on every chunk so formatting decisions
// can depend on the originating provider and model.
type StreamContext struct {
	Provider      string            `json:"provider"`
	Model         string            `json:"model,omitempty"`
	SourceFormat  string            `json:"source_format,omitempty"`
	OutputFormats []string          `json:"output_formats,omitempty"`
	Streaming     bool              `json:"streaming"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// StreamResult is a point-in-time snapshot of a stream's accumulated
// output. It is safe to request mid-stream; Final reports whether the
// stream reached COMPLETED and no more content will follow.
type StreamResult struct {
	StreamID         string      `json:"stream_id"`
	State            StreamState `json:"state"`
	Success          bool        `json:"success"`
	Final            bool        `json:"final"`
	Content          string      `json:"content"`
	Reasoning        string      `json:"reasoning,omitempty"`
	ToolCalls        []ToolCall  `json:"tool_calls,omitempty"`
	TokensProcessed  int         `json:"tokens_processed"`
	ChunksProcessed  uint64      `json:"chunks_processed"`
	BytesProcessed   uint64      `json:"bytes_processed"`
	Error            string      `json:"error,omitempty"`
	ErrorCode        ErrorCode   `json:"error_code,omitempty"`
	StartedAt        time.Time   `json:"started_at"`
	ProcessingTimeMS float64     `json:"processing_time_ms"`
	ChunksPerSecond  float64     `json:"chunks_per_second"`
	ThroughputMBps   float64     `json:"throughput_mbps"`
}
