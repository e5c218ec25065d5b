package types

import "time"

// ToolCallStatus tracks a streamed tool call through its lifecycle.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallExecuting ToolCallStatus = "executing"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallFailed    ToolCallStatus = "failed"
)

// ToolCall is a tool invocation extracted from a provider stream.
// Providers emit tool calls fragmented across chunks: the first delta
// carries ID and name, later deltas append argument fragments matched
// by Index. Accumulation happens via MergeToolCallDeltas.
type ToolCall struct {
	Index     int            `json:"index"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Arguments string         `json:"arguments,omitempty"`
	Result    string         `json:"result,omitempty"`
	Status    ToolCallStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

// Done reports whether the tool call reached a terminal status.
func (tc ToolCall) Done() bool {
	return tc.Status == ToolCallCompleted || tc.Status == ToolCallFailed
}

// MergeToolCallDeltas folds a chunk's tool call deltas into the
// accumulated set. Deltas match an existing entry by ID when present,
// otherwise by Index; argument fragments are appended in arrival order.
func MergeToolCallDeltas(acc, deltas []ToolCall) []ToolCall {
	for _, d := range deltas {
		i := matchToolCall(acc, d)
		if i < 0 {
			if d.Status == "" {
				d.Status = ToolCallPending
			}
			acc = append(acc, d)
			continue
		}
		if d.ID != "" {
			acc[i].ID = d.ID
		}
		if d.Name != "" {
			acc[i].Name = d.Name
		}
		acc[i].Arguments += d.Arguments
		if d.Result != "" {
			acc[i].Result = d.Result
		}
		if d.Status != "" {
			acc[i].Status = d.Status
		}
	}
	return acc
}

func matchToolCall(acc []ToolCall, d ToolCall) int {
	for i := range acc {
		if d.ID != "" && acc[i].ID == d.ID {
			return i
		}
		if d.ID == "" && acc[i].Index == d.Index {
			return i
		}
	}
	return -1
}
