package types

import "testing"

func TestMergeToolCallDeltas_FragmentedArguments(t *testing.T) {
	t.Parallel()

	var acc []ToolCall
	acc = MergeToolCallDeltas(acc, []ToolCall{
		{Index: 0, ID: "call_1", Name: "get_weather"},
	})
	acc = MergeToolCallDeltas(acc, []ToolCall{
		{Index: 0, Arguments: `{"city":`},
	})
	acc = MergeToolCallDeltas(acc, []ToolCall{
		{Index: 0, Arguments: `"Paris"}`},
	})

	if len(acc) != 1 {
		t.Fatalf("expected 1 accumulated call, got %d", len(acc))
	}
	if acc[0].ID != "call_1" || acc[0].Name != "get_weather" {
		t.Fatalf("identity lost during merge: %+v", acc[0])
	}
	if acc[0].Arguments != `{"city":"Paris"}` {
		t.Fatalf("arguments = %q", acc[0].Arguments)
	}
	if acc[0].Status != ToolCallPending {
		t.Fatalf("new calls default to pending, got %s", acc[0].Status)
	}
}

func TestMergeToolCallDeltas_ParallelCallsByIndex(t *testing.T) {
	t.Parallel()

	var acc []ToolCall
	acc = MergeToolCallDeltas(acc, []ToolCall{
		{Index: 0, ID: "call_a", Name: "search"},
		{Index: 1, ID: "call_b", Name: "fetch"},
	})
	acc = MergeToolCallDeltas(acc, []ToolCall{
		{Index: 1, Arguments: `{"url":"x"}`},
		{Index: 0, Arguments: `{"q":"y"}`},
	})

	if len(acc) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(acc))
	}
	if acc[0].Arguments != `{"q":"y"}` || acc[1].Arguments != `{"url":"x"}` {
		t.Fatalf("fragments routed to wrong call: %+v", acc)
	}
}

func TestMergeToolCallDeltas_MatchByIDBeatsIndex(t *testing.T) {
	t.Parallel()

	acc := []ToolCall{{Index: 0, ID: "call_a", Name: "one"}}
	acc = MergeToolCallDeltas(acc, []ToolCall{
		{Index: 5, ID: "call_a", Arguments: "xyz"},
	})

	if len(acc) != 1 {
		t.Fatalf("ID match must not append a new call, got %d", len(acc))
	}
	if acc[0].Arguments != "xyz" {
		t.Fatalf("arguments = %q", acc[0].Arguments)
	}
}

func TestToolCall_Done(t *testing.T) {
	t.Parallel()

	if (ToolCall{Status: ToolCallPending}).Done() {
		t.Fatalf("pending is not done")
	}
	if !(ToolCall{Status: ToolCallCompleted}).Done() {
		t.Fatalf("completed is done")
	}
	if !(ToolCall{Status: ToolCallFailed}).Done() {
		t.Fatalf("failed is done")
	}
}
