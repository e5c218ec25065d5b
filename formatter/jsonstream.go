package formatter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/BaSui01/streamflow/types"
)

// JSONStream parses OpenAI-compatible streaming chunks: the
// choices/delta envelope with optional fragmented tool calls, plus a
// fallback for simplified {"delta":"..."} / {"content":"..."} payloads.
// SSE framing ("data: " prefixes, "[DONE]" sentinels) is tolerated so
// transports can feed raw event lines straight through.
type JSONStream struct{}

// NewJSONStream creates a JSONStream formatter.
func NewJSONStream() *JSONStream {
	return &JSONStream{}
}

func (f *JSONStream) Name() string {
	return "jsonstream"
}

type deltaToolCall struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type deltaMessage struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	Reasoning string          `json:"reasoning_content,omitempty"`
	ToolCalls []deltaToolCall `json:"tool_calls,omitempty"`
}

type chunkChoice struct {
	Index        int           `json:"index"`
	Delta        *deltaMessage `json:"delta,omitempty"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

type chunkEnvelope struct {
	ID      string        `json:"id,omitempty"`
	Model   string        `json:"model,omitempty"`
	Choices []chunkChoice `json:"choices,omitempty"`
}

// simplePayload covers providers that skip the choices envelope.
type simplePayload struct {
	Delta   string `json:"delta,omitempty"`
	Content string `json:"content,omitempty"`
	Text    string `json:"text,omitempty"`
}

var (
	ssePrefix    = []byte("data:")
	doneSentinel = []byte("[DONE]")
)

func (f *JSONStream) Process(_ context.Context, chunk []byte, _ bool, _ types.StreamContext) (Result, error) {
	payload := bytes.TrimSpace(chunk)
	payload = bytes.TrimSpace(bytes.TrimPrefix(payload, ssePrefix))
	if len(payload) == 0 || bytes.Equal(payload, doneSentinel) {
		return Result{}, nil
	}

	var env chunkEnvelope
	if err := json.Unmarshal(payload, &env); err == nil && len(env.Choices) > 0 {
		return f.fromEnvelope(env), nil
	}

	var simple simplePayload
	if err := json.Unmarshal(payload, &simple); err != nil {
		return Result{}, fmt.Errorf("parse stream chunk: %w", err)
	}
	res := Result{Content: simple.Delta}
	if res.Content == "" {
		res.Content = simple.Content
	}
	if res.Content == "" {
		res.Content = simple.Text
	}
	return res, nil
}

func (f *JSONStream) fromEnvelope(env chunkEnvelope) Result {
	var res Result
	for _, choice := range env.Choices {
		if choice.Delta == nil {
			continue
		}
		res.Content += choice.Delta.Content
		res.Reasoning += choice.Delta.Reasoning
		for _, tc := range choice.Delta.ToolCalls {
			res.ToolCalls = append(res.ToolCalls, types.ToolCall{
				Index:     tc.Index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	return res
}
