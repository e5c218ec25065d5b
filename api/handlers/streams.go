package handlers

import (
	"net/http"
	"time"

	"github.com/BaSui01/streamflow/api"
	"github.com/BaSui01/streamflow/engine"
	"github.com/BaSui01/streamflow/formatter"
	"github.com/BaSui01/streamflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🌊 流生命周期 Handler
// =============================================================================

// StreamsHandler 流生命周期处理器
type StreamsHandler struct {
	engine     *engine.Engine
	formatters *formatter.Registry
	logger     *zap.Logger
}

// NewStreamsHandler 创建流处理器
func NewStreamsHandler(eng *engine.Engine, formatters *formatter.Registry, logger *zap.Logger) *StreamsHandler {
	return &StreamsHandler{
		engine:     eng,
		formatters: formatters,
		logger:     logger,
	}
}

// HandleCreate 处理创建流请求
// @Summary 创建流
// @Description 注册一个新的流式响应处理会话
// @Tags 流
// @Accept json
// @Produce json
// @Param request body api.CreateStreamRequest true "创建流请求"
// @Success 200 {object} Response{data=api.CreateStreamResponse} "流已创建"
// @Failure 400 {object} Response "无效请求"
// @Failure 503 {object} Response "并发流容量耗尽"
// @Security ApiKeyAuth
// @Router /v1/streams [post]
func (h *StreamsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	// 验证 Content-Type
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	// 解码请求
	var req api.CreateStreamRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	// 验证请求
	if req.Provider == "" {
		WriteError(w, r, types.NewInvalidRequestError("provider is required"), h.logger)
		return
	}

	// 解析格式化器
	f, name, err := h.resolveFormatter(req.Formatter)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	sc := types.StreamContext{
		Provider:      req.Provider,
		Model:         req.Model,
		SourceFormat:  req.SourceFormat,
		OutputFormats: req.OutputFormats,
		Streaming:     true,
		Metadata:      req.Metadata,
		CreatedAt:     time.Now(),
	}

	streamID, createErr := h.engine.CreateStream(r.Context(), sc, f)
	if createErr != nil {
		h.writeEngineError(w, r, createErr)
		return
	}

	h.logger.Info("stream created",
		zap.String("stream_id", streamID),
		zap.String("provider", req.Provider),
		zap.String("formatter", name),
	)

	WriteSuccess(w, r, api.CreateStreamResponse{
		StreamID:  streamID,
		Provider:  req.Provider,
		Formatter: name,
		CreatedAt: sc.CreatedAt,
	})
}

// HandleSubmitChunk 处理提交块请求
// @Summary 提交块
// @Description 向流提交一个数据块；?wait=true 时阻塞至该块处理完成
// @Tags 流
// @Accept json
// @Produce json
// @Param id path string true "流 ID"
// @Param wait query bool false "是否等待处理完成"
// @Param request body api.SubmitChunkRequest true "提交块请求"
// @Success 200 {object} Response{data=api.SubmitChunkResponse} "块已受理"
// @Failure 400 {object} Response "无效请求"
// @Failure 404 {object} Response "流不存在"
// @Failure 409 {object} Response "非法状态转移"
// @Failure 429 {object} Response "背压拒绝"
// @Security ApiKeyAuth
// @Router /v1/streams/{id}/chunks [post]
func (h *StreamsHandler) HandleSubmitChunk(w http.ResponseWriter, r *http.Request) {
	streamID := r.PathValue("id")

	// 验证 Content-Type
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	// 解码请求
	var req api.SubmitChunkRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	// 非最后一块必须携带负载；最后一块允许为空（纯终止标记）
	if req.Data == "" && !req.Final {
		WriteError(w, r, types.NewInvalidRequestError("data is required for non-final chunks"), h.logger)
		return
	}

	handle, err := h.engine.ProcessChunk(r.Context(), streamID, []byte(req.Data), req.Final)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	resp := api.SubmitChunkResponse{
		StreamID: streamID,
		Seq:      handle.Seq(),
		Final:    req.Final,
	}

	// ?wait=true：阻塞至块处理完成，失败时返回处理错误
	if r.URL.Query().Get("wait") == "true" {
		if waitErr := handle.Wait(r.Context()); waitErr != nil {
			h.writeEngineError(w, r, waitErr)
			return
		}

		if req.Final {
			// 最后一块处理完毕后结果立即可读
			result, resErr := h.engine.GetResult(r.Context(), streamID)
			if resErr != nil {
				h.writeEngineError(w, r, resErr)
				return
			}
			resp.State = string(result.State)
			resp.Result = result
		} else if h.engine.IsStreamActive(streamID) {
			resp.State = string(types.StreamActive)
		}
	}

	WriteSuccess(w, r, resp)
}

// HandleResult 处理查询结果请求
// @Summary 查询流结果
// @Description 返回流的累积结果快照；终止流返回最终结果
// @Tags 流
// @Produce json
// @Param id path string true "流 ID"
// @Success 200 {object} Response{data=api.StreamResult} "结果快照"
// @Failure 404 {object} Response "流不存在"
// @Security ApiKeyAuth
// @Router /v1/streams/{id}/result [get]
func (h *StreamsHandler) HandleResult(w http.ResponseWriter, r *http.Request) {
	streamID := r.PathValue("id")

	result, err := h.engine.GetResult(r.Context(), streamID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	WriteSuccess(w, r, result)
}

// HandleCancel 处理取消流请求
// @Summary 取消流
// @Description 取消一个进行中的流；已终止的流返回 cancelled=false
// @Tags 流
// @Produce json
// @Param id path string true "流 ID"
// @Success 200 {object} Response{data=api.CancelStreamResponse} "取消结果"
// @Failure 404 {object} Response "流不存在"
// @Security ApiKeyAuth
// @Router /v1/streams/{id} [delete]
func (h *StreamsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	streamID := r.PathValue("id")

	cancelled := h.engine.CancelStream(streamID)
	if !cancelled {
		// 区分「流不存在」与「流已终止」：后者取消是幂等空操作
		if _, err := h.engine.GetResult(r.Context(), streamID); err != nil {
			h.writeEngineError(w, r, err)
			return
		}
	} else {
		h.logger.Info("stream cancelled", zap.String("stream_id", streamID))
	}

	WriteSuccess(w, r, api.CancelStreamResponse{
		StreamID:  streamID,
		Cancelled: cancelled,
	})
}

// HandleActive 处理活跃状态查询请求
// @Summary 查询流活跃状态
// @Description 返回流是否处于非终止状态
// @Tags 流
// @Produce json
// @Param id path string true "流 ID"
// @Success 200 {object} Response{data=api.StreamActiveResponse} "活跃状态"
// @Security ApiKeyAuth
// @Router /v1/streams/{id}/active [get]
func (h *StreamsHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	streamID := r.PathValue("id")

	WriteSuccess(w, r, api.StreamActiveResponse{
		StreamID: streamID,
		Active:   h.engine.IsStreamActive(streamID),
	})
}

// HandleList 处理活跃流列表请求
// @Summary 列出活跃流
// @Description 返回所有非终止流的 ID
// @Tags 流
// @Produce json
// @Success 200 {object} Response{data=api.StreamListResponse} "活跃流列表"
// @Security ApiKeyAuth
// @Router /v1/streams [get]
func (h *StreamsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ids := h.engine.ActiveStreamIDs()

	WriteSuccess(w, r, api.StreamListResponse{
		Streams: ids,
		Count:   len(ids),
	})
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// resolveFormatter 按名称解析格式化器，未指定时使用注册表默认值
func (h *StreamsHandler) resolveFormatter(name string) (formatter.Formatter, string, *types.Error) {
	if name == "" {
		f, err := h.formatters.Default()
		if err != nil {
			return nil, "", types.NewInternalError("no default formatter registered", err)
		}
		return f, f.Name(), nil
	}

	f, ok := h.formatters.Get(name)
	if !ok {
		return nil, "", types.NewInvalidRequestError("unknown formatter: " + name)
	}
	return f, name, nil
}

// writeEngineError 将引擎错误写为 API 错误响应
func (h *StreamsHandler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	if typedErr, ok := types.AsError(err); ok {
		WriteError(w, r, typedErr, h.logger)
		return
	}

	// 未知错误，包装为内部错误
	internalErr := types.NewError(types.ErrInternalError, "engine error").
		WithCause(err).
		WithRetryable(false)

	WriteError(w, r, internalErr, h.logger)
}
