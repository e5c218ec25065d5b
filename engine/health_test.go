package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/streamflow/testutil/mocks"
	"github.com/BaSui01/streamflow/types"
)

func TestHealthCheck_AllChecksPass(t *testing.T) {
	e := newTestEngine(t, testConfig())
	require.Eventually(t, func() bool { return e.Statistics().WorkersAlive == 2 },
		time.Second, 5*time.Millisecond)

	h := e.HealthCheck()
	assert.True(t, h.Healthy)
	assert.Equal(t, "healthy", h.Status)
	assert.Len(t, h.Checks, 4)
	assert.True(t, h.Checks[CheckWorkerPool])
	assert.True(t, h.Checks[CheckMemory])
	assert.True(t, h.Checks[CheckSuccessRate])
	assert.True(t, h.Checks[CheckBackpressure])
	assert.False(t, h.CheckedAt.IsZero())
}

func TestHealthCheck_LowSuccessRateDegrades(t *testing.T) {
	e := newTestEngine(t, testConfig())
	id := mustCreate(t, e, mocks.NewErrorFormatter(errors.New("broken")))

	h := mustProcess(t, e, id, []byte("x"), false)
	require.Error(t, waitHandle(t, h))
	waitState(t, e, id, types.StreamFailed)

	hr := e.HealthCheck()
	assert.False(t, hr.Healthy)
	assert.Equal(t, "degraded", hr.Status)
	assert.False(t, hr.Checks[CheckSuccessRate])
	assert.True(t, hr.Checks[CheckWorkerPool])
}

func TestHealthCheck_BackpressureStormDegrades(t *testing.T) {
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

	hr := e.HealthCheck()
	assert.False(t, hr.Healthy)
	assert.False(t, hr.Checks[CheckBackpressure])

	close(release)
	require.NoError(t, waitHandle(t, h1))
	require.NoError(t, waitHandle(t, h2))

	// Clearing the counters clears the verdict.
	e.ResetStatistics()
	assert.True(t, e.HealthCheck().Healthy)
}

func TestHealthCheck_MemoryOverBudgetDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.WorkerCount = 1
	cfg.BufferPoolCapacity = 1
	cfg.BufferSizeBytes = 1024
	cfg.BackpressureThreshold = 8
	e := newTestEngine(t, cfg)

	release := make(chan struct{})
	f := mocks.NewMockFormatter().WithEcho().WithBlockUntil(release)
	id := mustCreate(t, e, f)

	// One pooled buffer plus two counted overflow allocations puts
	// borrowed memory past twice the pool budget.
	h0 := occupyWorker(t, e, id)
	h1 := mustProcess(t, e, id, []byte("overflow one"), false)
	h2 := mustProcess(t, e, id, []byte("overflow two"), false)

	hr := e.HealthCheck()
	assert.False(t, hr.Healthy)
	assert.False(t, hr.Checks[CheckMemory])
	assert.True(t, hr.Checks[CheckWorkerPool])

	close(release)
	for _, h := range []*ChunkHandle{h0, h1, h2} {
		require.NoError(t, waitHandle(t, h))
	}

	require.Eventually(t, func() bool { return e.HealthCheck().Healthy },
		time.Second, 5*time.Millisecond, "health must recover once buffers drain")
}

func TestHealthCheck_ClosedEngineUnhealthy(t *testing.T) {
	e, err := New(testConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Close(ctx))

	hr := e.HealthCheck()
	assert.False(t, hr.Healthy)
	assert.False(t, hr.Checks[CheckWorkerPool])
}
