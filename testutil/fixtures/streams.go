// =============================================================================
// 📦 测试数据工厂 - 流上下文与块负载测试数据
// =============================================================================
// 提供预定义的流上下文和 OpenAI 风格块负载，用于测试
// =============================================================================
package fixtures

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/streamflow/types"
)

// =============================================================================
// 🎯 StreamContext 工厂
// =============================================================================

// SimpleStreamContext 返回简单的流上下文
func SimpleStreamContext() types.StreamContext {
	return types.StreamContext{
		Provider:     "openai",
		Model:        "gpt-4o",
		SourceFormat: "openai",
		Streaming:    true,
		CreatedAt:    time.Now(),
	}
}

// StreamContextWithProvider 返回指定提供商的流上下文
func StreamContextWithProvider(provider, model string) types.StreamContext {
	sc := SimpleStreamContext()
	sc.Provider = provider
	sc.Model = model
	return sc
}

// StreamContextWithMetadata 返回带元数据的流上下文
func StreamContextWithMetadata(meta map[string]string) types.StreamContext {
	sc := SimpleStreamContext()
	sc.Metadata = meta
	return sc
}

// =============================================================================
// 🌊 OpenAI 风格块负载工厂
// =============================================================================

// openAIChunk 模拟 chat.completion.chunk 的最小结构
type openAIChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
}

type openAIChoice struct {
	Index        int         `json:"index"`
	Delta        openAIDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type openAIDelta struct {
	Content   string           `json:"content,omitempty"`
	Reasoning string           `json:"reasoning_content,omitempty"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIToolCall struct {
	Index    int                 `json:"index"`
	ID       string              `json:"id,omitempty"`
	Type     string              `json:"type,omitempty"`
	Function *openAIFunctionCall `json:"function,omitempty"`
}

type openAIFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ContentChunk 返回携带文本增量的块负载
func ContentChunk(content string) []byte {
	return marshalChunk(openAIChunk{
		ID:     "chatcmpl-test",
		Object: "chat.completion.chunk",
		Model:  "gpt-4o",
		Choices: []openAIChoice{
			{Index: 0, Delta: openAIDelta{Content: content}},
		},
	})
}

// ReasoningChunk 返回携带推理增量的块负载
func ReasoningChunk(reasoning string) []byte {
	return marshalChunk(openAIChunk{
		ID:     "chatcmpl-test",
		Object: "chat.completion.chunk",
		Model:  "gpt-4o",
		Choices: []openAIChoice{
			{Index: 0, Delta: openAIDelta{Reasoning: reasoning}},
		},
	})
}

// ToolCallChunk 返回携带工具调用增量的块负载
func ToolCallChunk(index int, id, name, arguments string) []byte {
	tc := openAIToolCall{Index: index, ID: id}
	if name != "" || arguments != "" {
		tc.Type = "function"
		tc.Function = &openAIFunctionCall{Name: name, Arguments: arguments}
	}
	return marshalChunk(openAIChunk{
		ID:     "chatcmpl-test",
		Object: "chat.completion.chunk",
		Model:  "gpt-4o",
		Choices: []openAIChoice{
			{Index: 0, Delta: openAIDelta{ToolCalls: []openAIToolCall{tc}}},
		},
	})
}

// FinalChunk 返回携带 finish_reason 的终止块负载
func FinalChunk(finishReason string) []byte {
	return marshalChunk(openAIChunk{
		ID:     "chatcmpl-test",
		Object: "chat.completion.chunk",
		Model:  "gpt-4o",
		Choices: []openAIChoice{
			{Index: 0, Delta: openAIDelta{}, FinishReason: &finishReason},
		},
	})
}

// SSEFrame 将负载包装为 SSE data 行
func SSEFrame(payload []byte) []byte {
	return []byte(fmt.Sprintf("data: %s\n\n", payload))
}

// DoneFrame 返回 OpenAI 流的结束哨兵帧
func DoneFrame() []byte {
	return []byte("data: [DONE]\n\n")
}

// ContentChunks 按词切分文本，返回一组文本增量块负载
func ContentChunks(words ...string) [][]byte {
	chunks := make([][]byte, 0, len(words))
	for _, w := range words {
		chunks = append(chunks, ContentChunk(w))
	}
	return chunks
}

func marshalChunk(c openAIChunk) []byte {
	data, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("fixtures: marshal chunk: %v", err))
	}
	return data
}
