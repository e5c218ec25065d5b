// Package engine implements the streaming-response processing core:
// a lifecycle state machine per stream, a fixed worker pool fed by a
// shared bounded job queue, pooled payload buffers, and a supervisor
// that times out stale streams.
//
// Streams move ACTIVE -> FINALIZING -> COMPLETED on the happy path.
// Any non-terminal stream can be cancelled, failed, or timed out, and
// the first terminal transition wins; everything racing it collapses
// into a no-op. COMPLETED is only reachable once the final chunk's job
// and every other outstanding job of the stream have resolved.
//
// ProcessChunk is the hot path and never blocks. The payload is copied
// into a buffer from the pool, the job is pushed with a non-blocking
// send, and callers observe completion through the returned
// ChunkHandle. When either the stream's queued count or the shared
// queue is at the backpressure threshold the submission is rejected
// immediately and counted, never queued late.
package engine
