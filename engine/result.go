package engine

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/streamflow/tokenizer"
	"github.com/BaSui01/streamflow/types"
)

// buildResultLocked snapshots a stream into a StreamResult. It is
// valid mid-flight: a non-terminal stream yields a progress snapshot
// with Final false. Caller holds s.mu.
func (e *Engine) buildResultLocked(s *stream) *types.StreamResult {
	end := s.terminalAt
	if end.IsZero() {
		end = time.Now()
	}
	elapsed := end.Sub(s.started).Seconds()

	content := e.decodeContentLocked(s)

	res := &types.StreamResult{
		StreamID:  s.id,
		State:     s.state,
		Success:   streamSucceeding(s.state),
		Final:     s.state == types.StreamCompleted,
		Content:   content,
		Reasoning: string(s.reasoning),

		TokensProcessed: countTokens(s.sc.Model, content),
		ChunksProcessed: s.chunks,
		BytesProcessed:  s.bytes,

		StartedAt:        s.started,
		ProcessingTimeMS: elapsed * 1000,
	}
	if len(s.toolCalls) > 0 {
		res.ToolCalls = append([]types.ToolCall(nil), s.toolCalls...)
	}
	if elapsed > 0 {
		res.ChunksPerSecond = float64(s.chunks) / elapsed
		res.ThroughputMBps = float64(s.bytes) / (1024 * 1024) / elapsed
	}
	if s.failure != nil {
		res.Error = s.failure.Message
		res.ErrorCode = s.failure.Code
	}
	return res
}

// streamSucceeding reports whether the state carries no failure.
// Live streams count as succeeding so progress snapshots read clean.
func streamSucceeding(state types.StreamState) bool {
	switch state {
	case types.StreamFailed, types.StreamTimedOut, types.StreamCancelled:
		return false
	}
	return true
}

// decodeContentLocked joins the accumulated fragments, expanding any
// that were stored compressed. Caller holds s.mu.
func (e *Engine) decodeContentLocked(s *stream) string {
	if len(s.fragments) == 0 {
		return ""
	}
	var sb strings.Builder
	total := 0
	for i := range s.fragments {
		total += s.fragments[i].rawLen
	}
	sb.Grow(total)
	for i := range s.fragments {
		f := s.fragments[i]
		if !f.compressed {
			sb.Write(f.data)
			continue
		}
		raw, err := e.codec.Decompress(f.data)
		if err != nil {
			e.logger.Error("decompress fragment",
				zap.String("stream_id", s.id), zap.Error(err))
			continue
		}
		sb.Write(raw)
	}
	return sb.String()
}

func countTokens(model, content string) int {
	if content == "" {
		return 0
	}
	n, err := tokenizer.ForModel(model).CountTokens(content)
	if err != nil {
		n, _ = tokenizer.NewEstimator().CountTokens(content)
	}
	return n
}
