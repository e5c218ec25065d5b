// MemorySink 的结果持久化测试模拟实现。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/streamflow/types"
)

// MemorySink 是内存版结果存储，用于替代 Redis 结果缓存。
// 其方法集与 engine.ResultSink 一致。
type MemorySink struct {
	mu      sync.RWMutex
	results map[string]*types.StreamResult

	// 错误注入
	putErr error
	getErr error

	// 调用统计
	puts int
	gets int
}

// NewMemorySink 创建内存结果存储
func NewMemorySink() *MemorySink {
	return &MemorySink{
		results: make(map[string]*types.StreamResult),
	}
}

// WithPutError 设置 Put 返回的错误
func (s *MemorySink) WithPutError(err error) *MemorySink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
	return s
}

// WithGetError 设置 Get 返回的错误
func (s *MemorySink) WithGetError(err error) *MemorySink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
	return s
}

// Put 存储流结果
func (s *MemorySink) Put(ctx context.Context, result *types.StreamResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	cp := *result
	s.results[result.StreamID] = &cp
	return nil
}

// Get 获取流结果，未找到时返回 STREAM_NOT_FOUND
func (s *MemorySink) Get(ctx context.Context, streamID string) (*types.StreamResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	res, ok := s.results[streamID]
	if !ok {
		return nil, types.NewStreamNotFoundError(streamID)
	}
	cp := *res
	return &cp, nil
}

// Len 返回已存储的结果数量
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// Has 判断指定流的结果是否已存储
func (s *MemorySink) Has(streamID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.results[streamID]
	return ok
}

// PutCount 获取 Put 调用次数
func (s *MemorySink) PutCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// Reset 清空所有结果和统计
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]*types.StreamResult)
	s.puts = 0
	s.gets = 0
	s.putErr = nil
	s.getErr = nil
}
