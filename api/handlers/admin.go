package handlers

import (
	"net/http"
	"time"

	"github.com/BaSui01/streamflow/api"
	"github.com/BaSui01/streamflow/config"
	"github.com/BaSui01/streamflow/engine"
	"github.com/BaSui01/streamflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 管理接口 Handler
// =============================================================================

// AdminHandler 统计、诊断与运行时配置处理器
type AdminHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewAdminHandler 创建管理接口处理器
func NewAdminHandler(eng *engine.Engine, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		engine: eng,
		logger: logger,
	}
}

// HandleStatistics 处理统计查询请求
// @Summary 引擎统计
// @Description 返回引擎累计统计快照
// @Tags 管理
// @Produce json
// @Success 200 {object} Response{data=engine.Statistics} "统计快照"
// @Security ApiKeyAuth
// @Router /v1/statistics [get]
func (h *AdminHandler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.engine.Statistics())
}

// HandleStatisticsReset 处理统计重置请求
// @Summary 重置统计
// @Description 清零累计计数器，活跃流计数不受影响
// @Tags 管理
// @Produce json
// @Success 200 {object} Response{data=engine.Statistics} "重置后的统计"
// @Security ApiKeyAuth
// @Router /v1/statistics/reset [post]
func (h *AdminHandler) HandleStatisticsReset(w http.ResponseWriter, r *http.Request) {
	h.engine.ResetStatistics()
	h.logger.Info("statistics reset")

	WriteSuccess(w, r, h.engine.Statistics())
}

// HandleDiagnostics 处理诊断查询请求
// @Summary 引擎诊断
// @Description 返回统计、逐流明细、队列内部状态与生效配置
// @Tags 管理
// @Produce json
// @Success 200 {object} Response{data=engine.Diagnostics} "诊断快照"
// @Security ApiKeyAuth
// @Router /v1/diagnostics [get]
func (h *AdminHandler) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.engine.Diagnostics())
}

// HandleConfigUpdate 处理运行时配置更新请求
// @Summary 更新配置
// @Description 对引擎应用部分配置更新，省略的字段保持不变
// @Tags 管理
// @Accept json
// @Produce json
// @Param request body api.ConfigUpdateRequest true "配置更新请求"
// @Success 200 {object} Response{data=api.ConfigResponse} "生效配置"
// @Failure 400 {object} Response "无效请求"
// @Security ApiKeyAuth
// @Router /v1/config [put]
func (h *AdminHandler) HandleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	// 验证 Content-Type
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	// 解码请求
	var req api.ConfigUpdateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	opts, convErr := h.buildOptions(&req)
	if convErr != nil {
		WriteError(w, r, convErr, h.logger)
		return
	}

	if err := h.engine.Configure(opts); err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	h.logger.Info("engine reconfigured")

	WriteSuccess(w, r, api.ConfigResponse{Config: h.engine.Config()})
}

// HandleConfigPreset 处理调优预设请求
// @Summary 应用调优预设
// @Description 以命名预设（throughput、latency、memory）调整引擎配置
// @Tags 管理
// @Produce json
// @Param name path string true "预设名称"
// @Success 200 {object} Response{data=api.ConfigResponse} "生效配置"
// @Failure 400 {object} Response "未知预设"
// @Security ApiKeyAuth
// @Router /v1/config/preset/{name} [post]
func (h *AdminHandler) HandleConfigPreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	opts, err := presetOptions(h.engine.Config(), name)
	if err != nil {
		WriteError(w, r, types.NewInvalidRequestError(err.Error()), h.logger)
		return
	}

	if cfgErr := h.engine.Configure(opts); cfgErr != nil {
		h.writeEngineError(w, r, cfgErr)
		return
	}

	h.logger.Info("preset applied", zap.String("preset", name))

	WriteSuccess(w, r, api.ConfigResponse{
		Preset: name,
		Config: h.engine.Config(),
	})
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// buildOptions 将 API 配置更新请求转换为引擎 Options，
// duration 字段从字符串解析
func (h *AdminHandler) buildOptions(req *api.ConfigUpdateRequest) (engine.Options, *types.Error) {
	opts := engine.Options{
		WorkerCount:           req.WorkerCount,
		BufferSizeBytes:       req.BufferSizeBytes,
		BufferPoolCapacity:    req.BufferPoolCapacity,
		BackpressureThreshold: req.BackpressureThreshold,
		MaxConcurrentStreams:  req.MaxConcurrentStreams,
		EnableCompression:     req.EnableCompression,
		EnableMetrics:         req.EnableMetrics,
		SuccessRateFloor:      req.SuccessRateFloor,
		BackpressureCeiling:   req.BackpressureCeiling,
	}

	var convErr *types.Error
	parse := func(field, raw string) *time.Duration {
		d, err := time.ParseDuration(raw)
		if err != nil {
			convErr = types.NewInvalidRequestError("invalid " + field + ": " + raw)
			return nil
		}
		return &d
	}

	if req.ChunkTimeout != nil {
		opts.ChunkTimeout = parse("chunk_timeout", *req.ChunkTimeout)
	}
	if req.StreamTimeout != nil {
		opts.StreamTimeout = parse("stream_timeout", *req.StreamTimeout)
	}
	if req.ResultRetention != nil {
		opts.ResultRetention = parse("result_retention", *req.ResultRetention)
	}
	if convErr != nil {
		return engine.Options{}, convErr
	}

	return opts, nil
}

// presetOptions 在当前引擎配置上应用命名预设，返回覆盖全部字段的 Options
func presetOptions(cur engine.Config, name string) (engine.Options, error) {
	ec := config.EngineConfig{
		WorkerCount:           cur.WorkerCount,
		BufferSizeBytes:       cur.BufferSizeBytes,
		BufferPoolCapacity:    cur.BufferPoolCapacity,
		BackpressureThreshold: cur.BackpressureThreshold,
		MaxConcurrentStreams:  cur.MaxConcurrentStreams,
		ChunkTimeout:          cur.ChunkTimeout,
		StreamTimeout:         cur.StreamTimeout,
		ResultRetention:       cur.ResultRetention,
		SupervisorInterval:    cur.SupervisorInterval,
		EnableCompression:     cur.EnableCompression,
		EnableMetrics:         cur.EnableMetrics,
		SuccessRateFloor:      cur.SuccessRateFloor,
		BackpressureCeiling:   cur.BackpressureCeiling,
	}

	if err := ec.ApplyPreset(name); err != nil {
		return engine.Options{}, err
	}

	return engine.Options{
		WorkerCount:           &ec.WorkerCount,
		BufferSizeBytes:       &ec.BufferSizeBytes,
		BufferPoolCapacity:    &ec.BufferPoolCapacity,
		BackpressureThreshold: &ec.BackpressureThreshold,
		MaxConcurrentStreams:  &ec.MaxConcurrentStreams,
		ChunkTimeout:          &ec.ChunkTimeout,
		StreamTimeout:         &ec.StreamTimeout,
		ResultRetention:       &ec.ResultRetention,
		EnableCompression:     &ec.EnableCompression,
		EnableMetrics:         &ec.EnableMetrics,
		SuccessRateFloor:      &ec.SuccessRateFloor,
		BackpressureCeiling:   &ec.BackpressureCeiling,
	}, nil
}

// writeEngineError 将引擎错误写为 API 错误响应
func (h *AdminHandler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	if typedErr, ok := types.AsError(err); ok {
		WriteError(w, r, typedErr, h.logger)
		return
	}

	internalErr := types.NewError(types.ErrInternalError, "engine error").
		WithCause(err).
		WithRetryable(false)

	WriteError(w, r, internalErr, h.logger)
}
