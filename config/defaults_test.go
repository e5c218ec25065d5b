// 引擎调优预设测试。
package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizeForThroughput(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.OptimizeForThroughput()

	assert.Equal(t, runtime.NumCPU()*2, cfg.WorkerCount)
	assert.Equal(t, 2000, cfg.BackpressureThreshold)
	assert.False(t, cfg.EnableCompression)
	require.NoError(t, cfg.Validate())
}

func TestOptimizeForLatency(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.OptimizeForLatency()

	assert.Equal(t, 256*1024, cfg.BufferSizeBytes)
	assert.Equal(t, 100, cfg.BackpressureThreshold)
	assert.Equal(t, time.Second, cfg.ChunkTimeout)
	require.NoError(t, cfg.Validate())
}

func TestOptimizeForMemory(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.OptimizeForMemory()

	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 16, cfg.BufferPoolCapacity)
	assert.Equal(t, 100, cfg.MaxConcurrentStreams)
	assert.True(t, cfg.EnableCompression)
	require.NoError(t, cfg.Validate())
}

func TestApplyPreset(t *testing.T) {
	for _, name := range Presets() {
		cfg := DefaultEngineConfig()
		require.NoError(t, cfg.ApplyPreset(name), "preset %s", name)
		require.NoError(t, cfg.Validate(), "preset %s", name)
	}

	cfg := DefaultEngineConfig()
	assert.Error(t, cfg.ApplyPreset("warp-speed"))
}
