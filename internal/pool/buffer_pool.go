package pool

import (
	"sync/atomic"
)

// Buffer is a fixed-size scratch buffer owned by a BufferPool. A worker
// copies one chunk payload into it and returns it once the chunk is
// resolved. Buffers allocated past the pool's fixed capacity are
// one-off overflow buffers and are dropped for GC on release.
type Buffer struct {
	data   []byte
	n      int
	pooled bool
	owner  *BufferPool
}

// Store copies p into the buffer, replacing any previous payload, and
// returns the number of bytes held.
func (b *Buffer) Store(p []byte) int {
	b.n = copy(b.data[:cap(b.data)], p)
	return b.n
}

// Bytes returns the held payload. The slice is only valid until Release.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n]
}

// Len returns the held payload length.
func (b *Buffer) Len() int {
	return b.n
}

// Cap returns the buffer's backing capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Pooled reports whether the buffer came from the fixed set.
func (b *Buffer) Pooled() bool {
	return b.pooled
}

// Release returns the buffer to the pool it was acquired from.
// Safe to call on nil.
func (b *Buffer) Release() {
	if b == nil || b.owner == nil {
		return
	}
	b.owner.Release(b)
}

// BufferPool hands out fixed-size buffers from a preallocated set.
// Acquire never blocks: when the set is exhausted it fails fast and the
// caller decides whether to fall back to a counted one-off allocation.
type BufferPool struct {
	free    chan *Buffer
	bufSize int
	cap     int

	// Metrics
	acquires      atomic.Int64
	releases      atomic.Int64
	exhausted     atomic.Int64
	overflows     atomic.Int64
	inUse         atomic.Int64
	overflowBytes atomic.Int64
}

// NewBufferPool preallocates capacity buffers of bufferSize bytes each.
func NewBufferPool(capacity, bufferSize int) *BufferPool {
	if capacity < 1 {
		capacity = 1
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	p := &BufferPool{
		free:    make(chan *Buffer, capacity),
		bufSize: bufferSize,
		cap:     capacity,
	}
	for i := 0; i < capacity; i++ {
		p.free <- &Buffer{data: make([]byte, bufferSize), pooled: true, owner: p}
	}
	return p
}

// Acquire takes a buffer from the fixed set without blocking.
// It returns false when the set is exhausted.
func (p *BufferPool) Acquire() (*Buffer, bool) {
	select {
	case b := <-p.free:
		p.acquires.Add(1)
		p.inUse.Add(1)
		return b, true
	default:
		p.exhausted.Add(1)
		return nil, false
	}
}

// AcquireOrAlloc returns a buffer able to hold n bytes. It prefers the
// fixed set; when the set is exhausted or n exceeds the pooled buffer
// size it falls back to a one-off overflow allocation, which is counted
// and never re-enters the pool.
func (p *BufferPool) AcquireOrAlloc(n int) *Buffer {
	if n <= p.bufSize {
		if b, ok := p.Acquire(); ok {
			return b
		}
	}
	size := n
	if size < p.bufSize {
		size = p.bufSize
	}
	p.overflows.Add(1)
	p.overflowBytes.Add(int64(size))
	return &Buffer{data: make([]byte, size), owner: p}
}

// Release returns a buffer to its pool. Pooled buffers re-enter the
// free set; overflow buffers only adjust accounting. Buffers borrowed
// from a replaced pool are routed back to their original owner.
func (p *BufferPool) Release(b *Buffer) {
	if b == nil {
		return
	}
	if b.owner != nil && b.owner != p {
		b.owner.Release(b)
		return
	}
	p.releases.Add(1)
	if !b.pooled {
		p.overflowBytes.Add(-int64(cap(b.data)))
		return
	}
	b.n = 0
	p.inUse.Add(-1)
	// The free set holds at most cap pooled buffers, so this send
	// cannot block unless a buffer is released twice.
	select {
	case p.free <- b:
	default:
	}
}

// Capacity returns the fixed buffer count.
func (p *BufferPool) Capacity() int {
	return p.cap
}

// BufferSize returns the size of each pooled buffer in bytes.
func (p *BufferPool) BufferSize() int {
	return p.bufSize
}

// Available returns how many pooled buffers are currently free.
func (p *BufferPool) Available() int {
	return len(p.free)
}

// MemoryInUse returns the bytes currently held by borrowers, pooled
// and overflow combined.
func (p *BufferPool) MemoryInUse() int64 {
	return p.inUse.Load()*int64(p.bufSize) + p.overflowBytes.Load()
}

// Budget returns the pool's fixed memory budget in bytes.
func (p *BufferPool) Budget() int64 {
	return int64(p.cap) * int64(p.bufSize)
}

// Stats returns a snapshot of pool counters.
func (p *BufferPool) Stats() BufferPoolStats {
	return BufferPoolStats{
		Capacity:      p.cap,
		BufferSize:    p.bufSize,
		Available:     len(p.free),
		InUse:         p.inUse.Load(),
		Acquires:      p.acquires.Load(),
		Releases:      p.releases.Load(),
		Exhausted:     p.exhausted.Load(),
		Overflows:     p.overflows.Load(),
		OverflowBytes: p.overflowBytes.Load(),
	}
}

// BufferPoolStats contains buffer pool statistics.
type BufferPoolStats struct {
	Capacity      int   `json:"capacity"`
	BufferSize    int   `json:"buffer_size"`
	Available     int   `json:"available"`
	InUse         int64 `json:"in_use"`
	Acquires      int64 `json:"acquires"`
	Releases      int64 `json:"releases"`
	Exhausted     int64 `json:"exhausted"`
	Overflows     int64 `json:"overflows"`
	OverflowBytes int64 `json:"overflow_bytes"`
}

// HitRate returns the share of acquire attempts served from the fixed set.
func (s BufferPoolStats) HitRate() float64 {
	attempts := s.Acquires + s.Exhausted
	if attempts == 0 {
		return 0
	}
	return float64(s.Acquires) / float64(attempts)
}
