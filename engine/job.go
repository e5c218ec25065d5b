package engine

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/streamflow/internal/pool"
)

// job is one accepted chunk waiting for, or undergoing, formatting.
// The payload lives in buf for the job's whole lifetime; whichever
// path finishes the job releases the buffer.
type job struct {
	stream   *stream
	seq      uint64
	final    bool
	buf      *pool.Buffer
	size     int // raw payload length held in buf
	handle   *ChunkHandle
	accepted time.Time
}

// ChunkHandle is the promise returned by ProcessChunk. It resolves
// exactly once, when the chunk's job leaves the system: after the
// formatter ran, or after the job was discarded because its stream
// reached a terminal state first.
type ChunkHandle struct {
	seq  uint64
	done chan struct{}
	once sync.Once
	err  error
}

func newChunkHandle(seq uint64) *ChunkHandle {
	return &ChunkHandle{seq: seq, done: make(chan struct{})}
}

func (h *ChunkHandle) resolve(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Seq reports the chunk's position in its stream's submission order,
// starting at 1.
func (h *ChunkHandle) Seq() uint64 { return h.seq }

// Done returns a channel closed when the chunk has been fully handled.
func (h *ChunkHandle) Done() <-chan struct{} { return h.done }

// Err reports the chunk outcome. It returns nil until Done is closed;
// after that, nil means the chunk was formatted and accumulated.
func (h *ChunkHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the chunk is handled or ctx expires.
func (h *ChunkHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
