package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/streamflow/api"
	"github.com/BaSui01/streamflow/engine"
	"github.com/BaSui01/streamflow/internal/metrics"
	"github.com/BaSui01/streamflow/types"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// =============================================================================
// 🔌 WebSocket 诊断推送 Handler
// =============================================================================

// DiagnosticsHubConfig 诊断推送配置
type DiagnosticsHubConfig struct {
	// PushInterval 快照推送周期
	PushInterval time.Duration
	// MaxConns 同时在线连接数上限
	MaxConns int
	// SendBuffer 单连接出站队列深度，写满即视为慢消费者
	SendBuffer int
}

// DefaultDiagnosticsHubConfig 返回默认诊断推送配置
func DefaultDiagnosticsHubConfig() DiagnosticsHubConfig {
	return DiagnosticsHubConfig{
		PushInterval: time.Second,
		MaxConns:     64,
		SendBuffer:   8,
	}
}

// DiagnosticsHub 将引擎统计与诊断快照周期性推送给所有 WebSocket 订阅者。
// 慢消费者（出站队列写满）会被直接断开，避免拖垮广播循环。
type DiagnosticsHub struct {
	engine  *engine.Engine
	config  DiagnosticsHubConfig
	metrics *metrics.Collector // 可为 nil
	logger  *zap.Logger

	mu    sync.Mutex
	conns map[*wsClient]struct{}
}

// wsClient 单个订阅连接的推送端
type wsClient struct {
	send chan []byte
	drop chan struct{} // 由 hub 关闭：慢消费者或整体停机
	seq  uint64        // 连接内帧序号，由 hub 在锁内递增
}

// NewDiagnosticsHub 创建诊断推送 hub，collector 可为 nil
func NewDiagnosticsHub(eng *engine.Engine, config DiagnosticsHubConfig, collector *metrics.Collector, logger *zap.Logger) *DiagnosticsHub {
	def := DefaultDiagnosticsHubConfig()
	if config.PushInterval <= 0 {
		config.PushInterval = def.PushInterval
	}
	if config.MaxConns <= 0 {
		config.MaxConns = def.MaxConns
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = def.SendBuffer
	}

	return &DiagnosticsHub{
		engine:  eng,
		config:  config,
		metrics: collector,
		logger:  logger,
		conns:   make(map[*wsClient]struct{}),
	}
}

// Run 运行广播循环直至 ctx 取消，退出时断开所有订阅者
func (h *DiagnosticsHub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.config.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.broadcast()
		}
	}
}

// ConnCount 返回当前在线连接数
func (h *DiagnosticsHub) ConnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// HandleDiagnosticsWS 处理诊断订阅请求
// @Summary 诊断推送订阅
// @Description 升级为 WebSocket 并按固定周期接收统计与诊断快照帧
// @Tags 管理
// @Success 101 {string} string "协议切换"
// @Failure 503 {object} Response "连接数已达上限"
// @Security ApiKeyAuth
// @Router /v1/diagnostics/ws [get]
func (h *DiagnosticsHub) HandleDiagnosticsWS(w http.ResponseWriter, r *http.Request) {
	client := &wsClient{
		send: make(chan []byte, h.config.SendBuffer),
		drop: make(chan struct{}),
	}

	// 升级前占位，容量耗尽时仍可返回 JSON 错误
	if !h.register(client) {
		WriteErrorMessage(w, r, http.StatusServiceUnavailable, types.ErrServiceUnavailable,
			"diagnostics channel at capacity", h.logger)
		return
	}
	defer h.unregister(client)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "hub terminated")

	h.logger.Info("diagnostics subscriber connected",
		zap.String("remote", r.RemoteAddr),
		zap.Int("conns", h.ConnCount()),
	)

	// 订阅者只收不发；CloseRead 负责探测对端关闭
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client gone")
			return
		case <-client.drop:
			conn.Close(websocket.StatusPolicyViolation, "slow consumer")
			return
		case data := <-client.send:
			writeCtx, cancel := context.WithTimeout(ctx, h.config.PushInterval)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// =============================================================================
// 🔧 广播内部实现
// =============================================================================

// broadcast 对每个订阅者生成带连接内序号的快照帧并非阻塞投递
func (h *DiagnosticsHub) broadcast() {
	stats := h.engine.Statistics()
	diags := h.engine.Diagnostics()
	now := time.Now()

	h.mu.Lock()
	for c := range h.conns {
		c.seq++
		frame := api.DiagnosticsFrame{
			Seq:         c.seq,
			Statistics:  stats,
			Diagnostics: diags,
			Timestamp:   now,
		}

		data, err := json.Marshal(frame)
		if err != nil {
			h.logger.Error("marshal diagnostics frame", zap.Error(err))
			continue
		}

		select {
		case c.send <- data:
		default:
			// 出站队列已满，断开慢消费者
			delete(h.conns, c)
			close(c.drop)
			h.logger.Warn("dropping slow diagnostics consumer")
		}
	}
	n := len(h.conns)
	h.mu.Unlock()

	h.setGauge(n)
}

func (h *DiagnosticsHub) register(c *wsClient) bool {
	h.mu.Lock()
	if len(h.conns) >= h.config.MaxConns {
		h.mu.Unlock()
		return false
	}
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()

	h.setGauge(n)
	return true
}

func (h *DiagnosticsHub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.conns, c)
	n := len(h.conns)
	h.mu.Unlock()

	h.setGauge(n)
}

func (h *DiagnosticsHub) closeAll() {
	h.mu.Lock()
	for c := range h.conns {
		delete(h.conns, c)
		close(c.drop)
	}
	h.mu.Unlock()

	h.setGauge(0)
}

func (h *DiagnosticsHub) setGauge(n int) {
	if h.metrics != nil {
		h.metrics.SetWSConnections(n)
	}
}
