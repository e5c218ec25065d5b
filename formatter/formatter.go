package formatter

import (
	"context"

	"github.com/BaSui01/streamflow/types"
)

// Result is the outcome of formatting a single chunk.
type Result struct {
	// Content is the display text extracted from the chunk. Empty for
	// keepalives, sentinels, and pure tool call deltas.
	Content string
	// Reasoning is auxiliary reasoning text some providers interleave.
	Reasoning string
	// ToolCalls holds tool call deltas carried by the chunk, to be
	// merged into the stream's accumulated set.
	ToolCalls []types.ToolCall
}

// Empty reports whether the chunk contributed nothing.
func (r Result) Empty() bool {
	return r.Content == "" && r.Reasoning == "" && len(r.ToolCalls) == 0
}

// Formatter turns raw provider chunks into accumulated stream output.
//
// Process is invoked once per accepted chunk. final marks the stream's
// last chunk. Implementations must honor ctx: the engine enforces a
// per-chunk deadline and abandons calls that outlive it.
type Formatter interface {
	Name() string
	Process(ctx context.Context, chunk []byte, final bool, sc types.StreamContext) (Result, error)
}

// StreamLifecycle is optionally implemented by formatters that want
// stream boundary notifications. BeginStream runs before the first
// chunk is accepted; EndStream runs when the stream reaches a terminal
// state and may contribute trailing output.
type StreamLifecycle interface {
	BeginStream(sc types.StreamContext) error
	EndStream(sc types.StreamContext) (Result, error)
}
