package handlers

import (
	"errors"
	"net/http"

	"github.com/BaSui01/promptflow/api"
	"github.com/BaSui01/promptflow/orchestrator"
	"github.com/BaSui01/promptflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 📦 批次 Handler
// =============================================================================

// BatchHandler 批次生命周期处理器
type BatchHandler struct {
	registry *orchestrator.Registry
	logger   *zap.Logger
}

// NewBatchHandler 创建批次处理器
func NewBatchHandler(registry *orchestrator.Registry, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{
		registry: registry,
		logger:   logger,
	}
}

// HandleSubmit 处理批次提交
// @Summary 提交批次
// @Description 提交一组 prompt 任务后台执行，立即返回批次 ID 供轮询
// @Tags 批次
// @Accept json
// @Produce json
// @Param request body api.BatchRequest true "批次请求"
// @Success 202 {object} Response "批次受理回执"
// @Failure 400 {object} Response "无效请求"
// @Router /v1/batches [post]
func (h *BatchHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.BatchRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if len(req.Tasks) == 0 {
		WriteErrorMessage(w, types.KindInvalidInput, "tasks must not be empty", h.logger)
		return
	}

	parallel := true
	if req.Parallel != nil {
		parallel = *req.Parallel
	}

	specs := make([]orchestrator.TaskSpec, len(req.Tasks))
	for i, t := range req.Tasks {
		specs[i] = orchestrator.TaskSpec{
			Prompt:   t.Prompt,
			Context:  t.Context,
			Priority: t.Priority,
			Models:   t.Models,
		}
	}

	b, err := h.registry.Submit(specs, parallel)
	if err != nil {
		WriteError(w, types.AsError(err), h.logger)
		return
	}

	h.logger.Info("batch accepted",
		zap.String("batch_id", b.ID),
		zap.Int("tasks", len(specs)),
		zap.Bool("parallel", parallel),
	)

	WriteJSON(w, http.StatusAccepted, Response{
		Success: true,
		Data: api.BatchAccepted{
			BatchID:   b.ID,
			TaskCount: len(b.Tasks),
			Parallel:  b.Parallel,
			CreatedAt: b.CreatedAt,
		},
	})
}

// HandleStatus 查询批次状态
// @Summary 查询批次状态
// @Description 返回批次的一致性快照，完成后包含按提交顺序排列的结果
// @Tags 批次
// @Produce json
// @Param id path string true "批次 ID"
// @Success 200 {object} Response "批次快照"
// @Failure 404 {object} Response "批次不存在"
// @Router /v1/batches/{id} [get]
func (h *BatchHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	if batchID == "" {
		WriteErrorMessage(w, types.KindInvalidInput, "batch id is required", h.logger)
		return
	}

	snap, err := h.registry.Status(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrBatchNotFound) {
			WriteJSON(w, http.StatusNotFound, Response{
				Success: false,
				Error:   &ErrorInfo{Kind: "NOT_FOUND", Message: "batch not found"},
			})
			return
		}
		WriteError(w, types.AsError(err), h.logger)
		return
	}

	WriteSuccess(w, snap)
}

// HandleCancel 取消批次
// @Summary 取消批次
// @Description 立即终结待执行任务并放弃在途调用；已完成批次不受影响
// @Tags 批次
// @Produce json
// @Param id path string true "批次 ID"
// @Success 200 {object} Response "取消回执"
// @Failure 404 {object} Response "批次不存在"
// @Router /v1/batches/{id} [delete]
func (h *BatchHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	if batchID == "" {
		WriteErrorMessage(w, types.KindInvalidInput, "batch id is required", h.logger)
		return
	}

	if err := h.registry.Cancel(batchID); err != nil {
		if errors.Is(err, orchestrator.ErrBatchNotFound) {
			WriteJSON(w, http.StatusNotFound, Response{
				Success: false,
				Error:   &ErrorInfo{Kind: "NOT_FOUND", Message: "batch not found"},
			})
			return
		}
		WriteError(w, types.AsError(err), h.logger)
		return
	}

	h.logger.Info("batch cancel requested", zap.String("batch_id", batchID))

	WriteSuccess(w, map[string]string{"batch_id": batchID, "status": "cancelling"})
}
