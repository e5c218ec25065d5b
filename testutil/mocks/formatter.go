// MockFormatter 的格式化器测试模拟实现。
//
// 支持固定结果、回显、延迟注入与错误注入场景。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/streamflow/formatter"
	"github.com/BaSui01/streamflow/types"
)

// --- MockFormatter 结构 ---

// MockFormatter 是 formatter.Formatter 的模拟实现
type MockFormatter struct {
	mu sync.RWMutex

	// 响应配置
	name   string
	result formatter.Result
	err    error
	echo   bool

	// 生命周期钩子
	beginErr  error
	endResult formatter.Result
	endErr    error

	// 行为控制
	delay       time.Duration // 每次 Process 的固定延迟
	blockUntil  chan struct{} // 非 nil 时 Process 阻塞直到该通道关闭
	failAfter   int           // 在第 N 次调用后失败
	processFunc func(ctx context.Context, chunk []byte, final bool, sc types.StreamContext) (formatter.Result, error)

	// 调用记录
	calls     []MockFormatterCall
	callCount int
	begins    int
	ends      int
}

// MockFormatterCall 记录单次 Process 调用
type MockFormatterCall struct {
	Chunk []byte
	Final bool
	Error error
}

// --- 构造函数和 Builder 方法 ---

// NewMockFormatter 创建新的 MockFormatter
func NewMockFormatter() *MockFormatter {
	return &MockFormatter{
		name:  "mock",
		calls: []MockFormatterCall{},
	}
}

// WithName 设置格式化器名称
func (m *MockFormatter) WithName(name string) *MockFormatter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithResult 设置固定返回结果
func (m *MockFormatter) WithResult(res formatter.Result) *MockFormatter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = res
	return m
}

// WithEcho 设置回显模式：每次 Process 将块内容原样作为 Content 返回
func (m *MockFormatter) WithEcho() *MockFormatter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echo = true
	return m
}

// WithError 设置返回错误
func (m *MockFormatter) WithError(err error) *MockFormatter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay 设置每次调用的固定延迟
func (m *MockFormatter) WithDelay(d time.Duration) *MockFormatter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithBlockUntil 设置阻塞通道：Process 将阻塞直到通道关闭或 ctx 结束。
// 用于构造确定性的队列积压场景。
func (m *MockFormatter) WithBlockUntil(ch chan struct{}) *MockFormatter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockUntil = ch
	return m
}

// WithFailAfter 设置在第 N 次调用后失败
func (m *MockFormatter) WithFailAfter(n int) *MockFormatter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithProcessFunc 设置自定义 Process 函数
func (m *MockFormatter) WithProcessFunc(fn func(ctx context.Context, chunk []byte, final bool, sc types.StreamContext) (formatter.Result, error)) *MockFormatter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processFunc = fn
	return m
}

// WithBeginError 设置 BeginStream 返回的错误
func (m *MockFormatter) WithBeginError(err error) *MockFormatter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginErr = err
	return m
}

// WithEndResult 设置 EndStream 返回的尾部结果
func (m *MockFormatter) WithEndResult(res formatter.Result) *MockFormatter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endResult = res
	return m
}

// WithEndError 设置 EndStream 返回的错误
func (m *MockFormatter) WithEndError(err error) *MockFormatter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endErr = err
	return m
}

// --- Formatter 接口实现 ---

// Name 返回格式化器名称
func (m *MockFormatter) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

// Process 处理一个块
func (m *MockFormatter) Process(ctx context.Context, chunk []byte, final bool, sc types.StreamContext) (formatter.Result, error) {
	m.mu.Lock()
	m.callCount++
	count := m.callCount
	delay := m.delay
	block := m.blockUntil
	fn := m.processFunc
	echo := m.echo
	result := m.result
	err := m.err
	failAfter := m.failAfter
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return formatter.Result{}, ctx.Err()
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return formatter.Result{}, ctx.Err()
		}
	}

	// 检查是否应该失败
	if failAfter > 0 && count > failAfter {
		err = errors.New("mock formatter: configured to fail after N calls")
	}

	if fn != nil {
		res, ferr := fn(ctx, chunk, final, sc)
		m.record(chunk, final, ferr)
		return res, ferr
	}

	if err != nil {
		m.record(chunk, final, err)
		return formatter.Result{}, err
	}

	res := result
	if echo {
		res = formatter.Result{Content: string(chunk)}
	}
	m.record(chunk, final, nil)
	return res, nil
}

// --- StreamLifecycle 接口实现 ---

// BeginStream 记录流开始
func (m *MockFormatter) BeginStream(sc types.StreamContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.begins++
	return m.beginErr
}

// EndStream 记录流结束并返回尾部结果
func (m *MockFormatter) EndStream(sc types.StreamContext) (formatter.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ends++
	return m.endResult, m.endErr
}

func (m *MockFormatter) record(chunk []byte, final bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockFormatterCall{
		Chunk: append([]byte(nil), chunk...),
		Final: final,
		Error: err,
	})
}

// --- 查询方法 ---

// GetCalls 获取所有调用记录
func (m *MockFormatter) GetCalls() []MockFormatterCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MockFormatterCall{}, m.calls...)
}

// GetCallCount 获取调用次数
func (m *MockFormatter) GetCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount
}

// GetBeginCount 获取 BeginStream 调用次数
func (m *MockFormatter) GetBeginCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.begins
}

// GetEndCount 获取 EndStream 调用次数
func (m *MockFormatter) GetEndCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ends
}

// Reset 重置所有状态
func (m *MockFormatter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = []MockFormatterCall{}
	m.callCount = 0
	m.begins = 0
	m.ends = 0
	m.err = nil
}

// --- 预设 Formatter 工厂 ---

// NewEchoFormatter 创建回显格式化器
func NewEchoFormatter() *MockFormatter {
	return NewMockFormatter().WithEcho()
}

// NewErrorFormatter 创建总是失败的格式化器
func NewErrorFormatter(err error) *MockFormatter {
	return NewMockFormatter().WithError(err)
}

// NewSlowFormatter 创建固定延迟的格式化器
func NewSlowFormatter(d time.Duration) *MockFormatter {
	return NewMockFormatter().WithEcho().WithDelay(d)
}
