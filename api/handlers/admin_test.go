package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/BaSui01/streamflow/api"
	"github.com/BaSui01/streamflow/engine"
	"github.com/BaSui01/streamflow/formatter"
	"github.com/BaSui01/streamflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

// newAdminMux 构建带管理路由的测试 mux
func newAdminMux(t *testing.T, cfg engine.Config) (*http.ServeMux, *engine.Engine) {
	t.Helper()

	eng, err := engine.New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Close(ctx)
	})

	h := NewAdminHandler(eng, zaptest.NewLogger(t))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/statistics", h.HandleStatistics)
	mux.HandleFunc("POST /v1/statistics/reset", h.HandleStatisticsReset)
	mux.HandleFunc("GET /v1/diagnostics", h.HandleDiagnostics)
	mux.HandleFunc("PUT /v1/config", h.HandleConfigUpdate)
	mux.HandleFunc("POST /v1/config/preset/{name}", h.HandleConfigPreset)
	return mux, eng
}

// completeOneStream 在引擎上跑完一条单块流
func completeOneStream(t *testing.T, eng *engine.Engine) string {
	t.Helper()
	ctx := context.Background()

	sc := types.StreamContext{Provider: "openai", Streaming: true, CreatedAt: time.Now()}
	id, err := eng.CreateStream(ctx, sc, formatter.NewPassthrough())
	require.NoError(t, err)

	h, err := eng.ProcessChunk(ctx, id, []byte("abc"), true)
	require.NoError(t, err)
	require.NoError(t, h.Wait(ctx))
	return id
}

// =============================================================================
// 🧪 统计端点
// =============================================================================

func TestAdminHandler_Statistics(t *testing.T) {
	mux, eng := newAdminMux(t, testEngineConfig())
	completeOneStream(t, eng)

	w := doJSON(t, mux, http.MethodGet, "/v1/statistics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	stats := envelopeData[engine.Statistics](t, w)

	assert.Equal(t, uint64(1), stats.StreamsCreated)
	assert.Equal(t, uint64(1), stats.StreamsCompleted)
	assert.Equal(t, uint64(1), stats.ChunksProcessed)
	assert.Equal(t, uint64(3), stats.BytesProcessed)
	assert.Equal(t, 1.0, stats.SuccessRate)
}

func TestAdminHandler_StatisticsReset(t *testing.T) {
	mux, eng := newAdminMux(t, testEngineConfig())
	completeOneStream(t, eng)

	w := doJSON(t, mux, http.MethodPost, "/v1/statistics/reset", nil)

	require.Equal(t, http.StatusOK, w.Code)
	stats := envelopeData[engine.Statistics](t, w)
	assert.Zero(t, stats.StreamsCreated, "counters cleared in the reset response")
	assert.Zero(t, stats.ChunksProcessed)

	w = doJSON(t, mux, http.MethodGet, "/v1/statistics", nil)
	stats = envelopeData[engine.Statistics](t, w)
	assert.Zero(t, stats.StreamsCreated)
}

// =============================================================================
// 🧪 诊断端点
// =============================================================================

func TestAdminHandler_Diagnostics(t *testing.T) {
	cfg := testEngineConfig()
	mux, eng := newAdminMux(t, cfg)

	ctx := context.Background()
	sc := types.StreamContext{Provider: "anthropic", Model: "claude-3", Streaming: true, CreatedAt: time.Now()}
	id, err := eng.CreateStream(ctx, sc, formatter.NewPassthrough())
	require.NoError(t, err)

	w := doJSON(t, mux, http.MethodGet, "/v1/diagnostics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	diags := envelopeData[engine.Diagnostics](t, w)

	assert.Equal(t, int64(1), diags.Statistics.ActiveStreams)
	assert.Equal(t, cfg.WorkerCount, diags.Config.WorkerCount)
	assert.Equal(t, cfg.BackpressureThreshold, diags.Queue.Capacity)

	require.Len(t, diags.Streams, 1)
	assert.Equal(t, id, diags.Streams[0].ID)
	assert.Equal(t, "anthropic", diags.Streams[0].Provider)
	assert.Equal(t, types.StreamActive, diags.Streams[0].State)
}

// =============================================================================
// 🧪 运行时配置
// =============================================================================

func TestAdminHandler_ConfigUpdate(t *testing.T) {
	mux, eng := newAdminMux(t, testEngineConfig())
	before := eng.Config()

	w := doJSON(t, mux, http.MethodPut, "/v1/config", api.ConfigUpdateRequest{
		WorkerCount:  intPtr(4),
		ChunkTimeout: strPtr("1s"),
	})

	require.Equal(t, http.StatusOK, w.Code)

	after := eng.Config()
	assert.Equal(t, 4, after.WorkerCount)
	assert.Equal(t, time.Second, after.ChunkTimeout)
	// 未触及的字段保持原状
	assert.Equal(t, before.BackpressureThreshold, after.BackpressureThreshold)
	assert.Equal(t, before.StreamTimeout, after.StreamTimeout)
}

func TestAdminHandler_ConfigUpdate_InvalidDuration(t *testing.T) {
	mux, eng := newAdminMux(t, testEngineConfig())
	before := eng.Config()

	w := doJSON(t, mux, http.MethodPut, "/v1/config", api.ConfigUpdateRequest{
		ChunkTimeout: strPtr("soon"),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrInvalidRequest), envelopeError(t, w).Code)
	assert.Equal(t, before, eng.Config(), "rejected update must not change config")
}

func TestAdminHandler_ConfigUpdate_UnknownField(t *testing.T) {
	mux, _ := newAdminMux(t, testEngineConfig())

	w := doJSON(t, mux, http.MethodPut, "/v1/config", map[string]any{
		"worker_count": 4,
		"bogus_knob":   true,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_ConfigPreset(t *testing.T) {
	mux, eng := newAdminMux(t, testEngineConfig())

	w := doJSON(t, mux, http.MethodPost, "/v1/config/preset/memory", nil)

	require.Equal(t, http.StatusOK, w.Code)

	cfg := eng.Config()
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 16, cfg.BufferPoolCapacity)
	assert.Equal(t, 100, cfg.MaxConcurrentStreams)
	assert.True(t, cfg.EnableCompression)
}

func TestAdminHandler_ConfigPreset_Unknown(t *testing.T) {
	mux, eng := newAdminMux(t, testEngineConfig())
	before := eng.Config()

	w := doJSON(t, mux, http.MethodPost, "/v1/config/preset/bogus", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrInvalidRequest), envelopeError(t, w).Code)
	assert.Equal(t, before, eng.Config())
}

// =============================================================================
// 🔧 指针辅助
// =============================================================================

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
