package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/streamflow/testutil/mocks"
	"github.com/BaSui01/streamflow/types"
)

// occupyWorker submits one chunk and waits until a worker picked it up,
// so follow-up submissions pile up in the queue deterministically.
func occupyWorker(t *testing.T, e *Engine, id string) *ChunkHandle {
	t.Helper()
	h := mustProcess(t, e, id, []byte("blocker"), false)
	require.Eventually(t, func() bool {
		return e.Statistics().WorkersBusy == 1
	}, time.Second, time.Millisecond, "worker never picked up the blocking job")
	return h
}

func TestProcessChunk_PerStreamBackpressure(t *testing.T) {
	cfg := testConfig()
	cfg.WorkerCount = 1
	cfg.BackpressureThreshold = 3
	e := newTestEngine(t, cfg)

	release := make(chan struct{})
	f := mocks.NewMockFormatter().WithEcho().WithBlockUntil(release)
	id := mustCreate(t, e, f)

	handles := []*ChunkHandle{occupyWorker(t, e, id)}
	for i := 0; i < 3; i++ {
		handles = append(handles, mustProcess(t, e, id, []byte("queued"), false))
	}

	// The stream now holds threshold chunks; the next one is shed.
	_, err := e.ProcessChunk(context.Background(), id, []byte("overflow"), false)
	require.Error(t, err)
	assert.Equal(t, types.ErrBackpressureRejected, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))

	stats := e.Statistics()
	assert.Equal(t, uint64(1), stats.BackpressureEvents, "a shed chunk is counted exactly once")
	assert.Equal(t, int64(0), e.Diagnostics().Queue.Rejects,
		"the per-stream bound must trip before the shared queue")

	close(release)
	for _, h := range handles {
		assert.NoError(t, waitHandle(t, h))
	}

	// A rejected submission must not consume a sequence number.
	final := mustProcess(t, e, id, []byte("end"), true)
	assert.Equal(t, uint64(5), final.Seq())
	require.NoError(t, waitHandle(t, final))
	waitState(t, e, id, types.StreamCompleted)
}

func TestProcessChunk_SharedQueueBackpressure(t *testing.T) {
	cfg := testConfig()
	cfg.WorkerCount = 1
	cfg.BackpressureThreshold = 3
	e := newTestEngine(t, cfg)

	release := make(chan struct{})
	f := mocks.NewMockFormatter().WithEcho().WithBlockUntil(release)
	idA := mustCreate(t, e, f)
	idB := mustCreate(t, e, f)

	handles := []*ChunkHandle{occupyWorker(t, e, idA)}
	// Fill the shared queue: two chunks from A, one from B. Neither
	// stream is anywhere near its own bound.
	handles = append(handles,
		mustProcess(t, e, idA, []byte("a1"), false),
		mustProcess(t, e, idA, []byte("a2"), false),
		mustProcess(t, e, idB, []byte("b1"), false),
	)

	_, err := e.ProcessChunk(context.Background(), idB, []byte("b2"), false)
	require.Error(t, err)
	assert.Equal(t, types.ErrBackpressureRejected, types.GetErrorCode(err))

	assert.Equal(t, uint64(1), e.Statistics().BackpressureEvents)
	assert.Equal(t, int64(1), e.Diagnostics().Queue.Rejects,
		"the shared queue rejected the push")

	close(release)
	for _, h := range handles {
		assert.NoError(t, waitHandle(t, h))
	}
	require.Eventually(t, func() bool { return e.pool.Load().MemoryInUse() == 0 },
		time.Second, 5*time.Millisecond, "rejected chunk leaked its buffer")
}

func TestStatistics_BackpressureRate(t *testing.T) {
	cfg := testConfig()
	cfg.WorkerCount = 1
	cfg.BackpressureThreshold = 1
	e := newTestEngine(t, cfg)

	release := make(chan struct{})
	f := mocks.NewMockFormatter().WithEcho().WithBlockUntil(release)
	id := mustCreate(t, e, f)

	h1 := occupyWorker(t, e, id)
	h2 := mustProcess(t, e, id, []byte("queued"), false)

	_, err := e.ProcessChunk(context.Background(), id, []byte("shed"), false)
	assert.Equal(t, types.ErrBackpressureRejected, types.GetErrorCode(err))

	// Nothing finished formatting yet: one rejection out of one
	// queue-stage outcome.
	assert.Equal(t, 1.0, e.Statistics().BackpressureRate)

	close(release)
	require.NoError(t, waitHandle(t, h1))
	require.NoError(t, waitHandle(t, h2))

	// Two processed chunks against one rejection.
	assert.InDelta(t, 1.0/3.0, e.Statistics().BackpressureRate, 1e-9)
}
