package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/BaSui01/streamflow/types"
)

// =============================================================================
// 💾 流结果缓存
// =============================================================================

// resultKeyPrefix 终端流结果的 Redis 键前缀
const resultKeyPrefix = "streamflow:result:"

// ResultCache 将终端流结果持久化到 Redis。
// 引擎逐出内存中的流之后，GetResult 通过此缓存回源读取。
type ResultCache struct {
	manager *Manager
	ttl     time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewResultCache 创建流结果缓存。
// ttl <= 0 时使用 Manager 的默认过期时间。
func NewResultCache(manager *Manager, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = manager.config.DefaultTTL
	}
	return &ResultCache{manager: manager, ttl: ttl}
}

// Put 持久化一个终端流结果
func (c *ResultCache) Put(ctx context.Context, result *types.StreamResult) error {
	if result == nil || result.StreamID == "" {
		return fmt.Errorf("result cache: missing stream id")
	}
	return c.manager.SetJSON(ctx, resultKey(result.StreamID), result, c.ttl)
}

// Get 读取已持久化的流结果，未命中返回 STREAM_NOT_FOUND
func (c *ResultCache) Get(ctx context.Context, streamID string) (*types.StreamResult, error) {
	var result types.StreamResult
	err := c.manager.GetJSON(ctx, resultKey(streamID), &result)
	if IsCacheMiss(err) {
		c.misses.Add(1)
		return nil, types.NewStreamNotFoundError(streamID)
	}
	if err != nil {
		return nil, err
	}
	c.hits.Add(1)
	return &result, nil
}

// Delete 删除已持久化的流结果
func (c *ResultCache) Delete(ctx context.Context, streamID string) error {
	return c.manager.Delete(ctx, resultKey(streamID))
}

// Hits 返回缓存命中次数
func (c *ResultCache) Hits() uint64 { return c.hits.Load() }

// Misses 返回缓存未命中次数
func (c *ResultCache) Misses() uint64 { return c.misses.Load() }

func resultKey(streamID string) string {
	return resultKeyPrefix + streamID
}
