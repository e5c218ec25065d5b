// Package formatter defines the pluggable chunk-formatting capability
// the engine drives for every stream.
//
// A Formatter receives raw provider chunks one at a time, in per-stream
// submission order but possibly on different workers, and returns the
// text and tool call deltas extracted from each chunk. Implementations
// must be safe for concurrent use across streams; per-stream state
// belongs in the engine's accumulator, not in the formatter.
//
// Two formatters ship built in:
//
//   - Passthrough copies chunk payloads verbatim.
//   - JSONStream parses OpenAI-compatible streaming chunks (the
//     choices/delta shape) including fragmented tool call arguments,
//     with a fallback for simplified {"delta":"..."} payloads.
//
// A Registry maps formatter names to instances so transports can select
// one per stream at creation time.
package formatter
