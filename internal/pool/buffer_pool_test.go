package pool

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPool_AcquireRelease(t *testing.T) {
	p := NewBufferPool(2, 16)

	b1, ok := p.Acquire()
	require.True(t, ok)
	b2, ok := p.Acquire()
	require.True(t, ok)

	// Fixed set exhausted: third acquire fails fast.
	b3, ok := p.Acquire()
	assert.False(t, ok)
	assert.Nil(t, b3)
	assert.Equal(t, int64(1), p.Stats().Exhausted)

	p.Release(b1)
	assert.Equal(t, 1, p.Available())

	b4, ok := p.Acquire()
	require.True(t, ok)
	assert.Same(t, b1, b4)

	p.Release(b2)
	p.Release(b4)
	assert.Equal(t, 2, p.Available())
}

func TestBufferPool_StoreBytes(t *testing.T) {
	p := NewBufferPool(1, 8)

	b, ok := p.Acquire()
	require.True(t, ok)

	n := b.Store([]byte("hello"))
	assert.Equal(t, 5, n)
	assert.True(t, bytes.Equal([]byte("hello"), b.Bytes()))

	// Store replaces, never appends.
	n = b.Store([]byte("ok"))
	assert.Equal(t, 2, n)
	assert.Equal(t, "ok", string(b.Bytes()))

	// Payloads beyond the backing capacity are truncated; callers size
	// buffers via AcquireOrAlloc when the payload may exceed bufferSize.
	n = b.Store([]byte("0123456789"))
	assert.Equal(t, 8, n)

	b.Release()
	assert.Equal(t, 0, b.Len())
}

func TestBufferPool_OverflowAllocation(t *testing.T) {
	p := NewBufferPool(1, 8)

	pooled := p.AcquireOrAlloc(4)
	require.True(t, pooled.Pooled())

	// Set exhausted: next acquire falls back to a one-off allocation.
	over := p.AcquireOrAlloc(4)
	require.NotNil(t, over)
	assert.False(t, over.Pooled())
	assert.Equal(t, int64(1), p.Stats().Overflows)
	assert.Equal(t, int64(8), p.Stats().OverflowBytes)

	// Oversized payloads always overflow, sized to fit.
	big := p.AcquireOrAlloc(32)
	assert.False(t, big.Pooled())
	assert.Equal(t, 32, big.Cap())

	p.Release(over)
	p.Release(big)
	assert.Equal(t, int64(0), p.Stats().OverflowBytes)

	// Overflow buffers never join the fixed set.
	assert.Equal(t, 0, p.Available())
	p.Release(pooled)
	assert.Equal(t, 1, p.Available())
}

func TestBufferPool_MemoryAccounting(t *testing.T) {
	p := NewBufferPool(4, 1024)
	assert.Equal(t, int64(4*1024), p.Budget())
	assert.Equal(t, int64(0), p.MemoryInUse())

	b, _ := p.Acquire()
	assert.Equal(t, int64(1024), p.MemoryInUse())

	over := p.AcquireOrAlloc(4096)
	assert.Equal(t, int64(1024+4096), p.MemoryInUse())

	p.Release(b)
	p.Release(over)
	assert.Equal(t, int64(0), p.MemoryInUse())
}

func TestBufferPool_ReleaseRoutesToOwner(t *testing.T) {
	old := NewBufferPool(1, 8)
	replacement := NewBufferPool(1, 8)

	b, ok := old.Acquire()
	require.True(t, ok)

	// A buffer released through the wrong pool still lands home.
	replacement.Release(b)
	assert.Equal(t, 1, old.Available())
	assert.Equal(t, 1, replacement.Available())
}

func TestBufferPool_ConcurrentBorrowers(t *testing.T) {
	p := NewBufferPool(8, 64)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				b := p.AcquireOrAlloc(32)
				b.Store([]byte("payload"))
				b.Release()
			}
		}()
	}
	wg.Wait()

	st := p.Stats()
	assert.Equal(t, 8, st.Available)
	assert.Equal(t, int64(0), st.InUse)
	assert.Equal(t, int64(0), st.OverflowBytes)
	assert.Equal(t, st.Acquires+st.Overflows, st.Releases)
}
