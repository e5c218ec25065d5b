package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/streamflow/engine"
	"github.com/BaSui01/streamflow/testutil"
	"github.com/BaSui01/streamflow/testutil/fixtures"
	"github.com/BaSui01/streamflow/testutil/mocks"
	"github.com/BaSui01/streamflow/types"
)

// ResultCache 必须满足引擎的结果持久化接口
var _ engine.ResultSink = (*ResultCache)(nil)

// =============================================================================
// 🧪 ResultCache 测试
// =============================================================================

func setupResultCache(t *testing.T) *ResultCache {
	t.Helper()
	mr, manager := setupTestRedis(t)
	t.Cleanup(func() {
		_ = manager.Close()
		mr.Close()
	})
	return NewResultCache(manager, time.Minute)
}

func TestResultCache_PutGetRoundTrip(t *testing.T) {
	rc := setupResultCache(t)
	ctx := context.Background()

	want := &types.StreamResult{
		StreamID:        "stream-42",
		State:           types.StreamCompleted,
		Success:         true,
		Final:           true,
		Content:         "hello from redis",
		TokensProcessed: 4,
		ChunksProcessed: 2,
		BytesProcessed:  16,
		ToolCalls: []types.ToolCall{
			{ID: "call_1", Name: "lookup", Arguments: `{"q":"x"}`, Status: "completed"},
		},
	}

	require.NoError(t, rc.Put(ctx, want))

	got, err := rc.Get(ctx, "stream-42")
	require.NoError(t, err)
	assert.Equal(t, want.StreamID, got.StreamID)
	assert.Equal(t, want.State, got.State)
	assert.Equal(t, want.Content, got.Content)
	assert.Equal(t, want.ToolCalls, got.ToolCalls)
	assert.True(t, got.Final)

	assert.Equal(t, uint64(1), rc.Hits())
	assert.Zero(t, rc.Misses())
}

func TestResultCache_MissReturnsStreamNotFound(t *testing.T) {
	rc := setupResultCache(t)

	_, err := rc.Get(context.Background(), "nope")
	testutil.AssertErrorCode(t, err, types.ErrStreamNotFound)
	assert.Equal(t, uint64(1), rc.Misses())
	assert.Zero(t, rc.Hits())
}

func TestResultCache_PutValidation(t *testing.T) {
	rc := setupResultCache(t)
	ctx := context.Background()

	assert.Error(t, rc.Put(ctx, nil))
	assert.Error(t, rc.Put(ctx, &types.StreamResult{}))
}

func TestResultCache_Delete(t *testing.T) {
	rc := setupResultCache(t)
	ctx := context.Background()

	require.NoError(t, rc.Put(ctx, &types.StreamResult{StreamID: "gone", State: types.StreamFailed}))
	require.NoError(t, rc.Delete(ctx, "gone"))

	_, err := rc.Get(ctx, "gone")
	testutil.AssertErrorCode(t, err, types.ErrStreamNotFound)
}

func TestResultCache_TTLExpiry(t *testing.T) {
	mr, manager := setupTestRedis(t)
	t.Cleanup(func() {
		_ = manager.Close()
		mr.Close()
	})
	rc := NewResultCache(manager, 100*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, rc.Put(ctx, &types.StreamResult{StreamID: "ttl", State: types.StreamCompleted}))

	_, err := rc.Get(ctx, "ttl")
	require.NoError(t, err)

	mr.FastForward(200 * time.Millisecond)

	_, err = rc.Get(ctx, "ttl")
	testutil.AssertErrorCode(t, err, types.ErrStreamNotFound)
}

// TestResultCache_ServesEngineEvictions 验证引擎逐出流之后，
// GetResult 仍可通过 Redis 回源提供终端结果。
func TestResultCache_ServesEngineEvictions(t *testing.T) {
	rc := setupResultCache(t)

	cfg := engine.DefaultConfig()
	cfg.WorkerCount = 1
	cfg.BufferSizeBytes = 4 * 1024
	cfg.BufferPoolCapacity = 4
	cfg.SupervisorInterval = 20 * time.Millisecond

	e, err := engine.New(cfg, zaptest.NewLogger(t), engine.WithResultSink(rc))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, e.Close(ctx))
	})

	ctx := testutil.TestContext(t)
	id, err := e.CreateStream(ctx, fixtures.SimpleStreamContext(), mocks.NewEchoFormatter())
	require.NoError(t, err)

	h, err := e.ProcessChunk(ctx, id, []byte("archived"), true)
	require.NoError(t, err)
	require.NoError(t, h.Wait(testutil.TestContextWithTimeout(t, 3*time.Second)))

	// 终端结果已持久化到 Redis
	require.Eventually(t, func() bool {
		res, gerr := rc.Get(ctx, id)
		return gerr == nil && res.State == types.StreamCompleted
	}, 3*time.Second, 10*time.Millisecond, "terminal result never persisted")

	// 读取一次，监督器即可逐出该流
	res, err := e.GetResult(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.StreamCompleted, res.State)

	require.Eventually(t, func() bool {
		return e.Statistics().TrackedStreams == 0
	}, 3*time.Second, 20*time.Millisecond, "stream never evicted")

	// 逐出后读取走缓存回源
	res, err = e.GetResult(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "archived", res.Content)
	assert.True(t, res.Final)
}
