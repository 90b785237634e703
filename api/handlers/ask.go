package handlers

import (
	"net/http"
	"strings"

	"github.com/BaSui01/promptflow/api"
	"github.com/BaSui01/promptflow/orchestrator"
	"github.com/BaSui01/promptflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 同步执行 Handler
// =============================================================================

// AskHandler 同步单条 prompt 处理器
type AskHandler struct {
	registry *orchestrator.Registry
	logger   *zap.Logger
}

// NewAskHandler 创建同步执行处理器
func NewAskHandler(registry *orchestrator.Registry, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		registry: registry,
		logger:   logger,
	}
}

// HandleAsk 处理单条 prompt 的同步执行
// @Summary 同步执行单条 prompt
// @Description 提交单条 prompt 并阻塞等待结果，配额耗尽时自动沿降级链切换模型
// @Tags 执行
// @Accept json
// @Produce json
// @Param request body api.AskRequest true "执行请求"
// @Success 200 {object} Response "执行结果"
// @Failure 400 {object} Response "无效请求"
// @Failure 429 {object} Response "全部模型档位配额耗尽"
// @Router /v1/ask [post]
func (h *AskHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.AskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		WriteErrorMessage(w, types.KindInvalidInput, "prompt must not be empty", h.logger)
		return
	}

	spec := orchestrator.TaskSpec{
		Prompt:   req.Prompt,
		Context:  req.Context,
		Priority: req.Priority,
		Models:   req.Models,
	}

	result, err := h.registry.SubmitWait(r.Context(), []orchestrator.TaskSpec{spec}, true)
	if err != nil {
		WriteError(w, types.AsError(err), h.logger)
		return
	}

	tr := result.Results[0]
	if tr.Status != types.TaskSucceeded {
		WriteTaskError(w, tr, h.logger)
		return
	}

	h.logger.Info("ask completed",
		zap.String("model", tr.Model),
		zap.Int("attempts", tr.Attempts),
		zap.Duration("duration", tr.Duration),
	)

	WriteSuccess(w, api.AskResponse{
		Result:   tr.Result,
		Model:    tr.Model,
		Attempts: tr.Attempts,
		Duration: tr.Duration,
	})
}

// HandleCode 处理代码生成请求
// @Summary 代码生成
// @Description 基于任务描述与上下文文件生成代码，返回提取后的代码文本
// @Tags 执行
// @Accept json
// @Produce json
// @Param request body api.CodeRequest true "代码生成请求"
// @Success 200 {object} Response "生成结果"
// @Failure 400 {object} Response "无效请求"
// @Router /v1/code [post]
func (h *AskHandler) HandleCode(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.CodeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	codeReq := orchestrator.CodeRequest{
		TaskDescription: req.TaskDescription,
		TargetPath:      req.TargetPath,
		Language:        req.Language,
		ContextFiles:    req.ContextFiles,
	}
	if err := codeReq.Validate(); err != nil {
		WriteError(w, types.AsError(err), h.logger)
		return
	}

	result, err := h.registry.SubmitWait(r.Context(), []orchestrator.TaskSpec{codeReq.TaskSpec(req.Models)}, true)
	if err != nil {
		WriteError(w, types.AsError(err), h.logger)
		return
	}

	tr := result.Results[0]
	if tr.Status != types.TaskSucceeded {
		WriteTaskError(w, tr, h.logger)
		return
	}

	h.logger.Info("code generated",
		zap.String("model", tr.Model),
		zap.String("target_path", req.TargetPath),
		zap.Int("attempts", tr.Attempts),
	)

	WriteSuccess(w, api.CodeResponse{
		Code:       orchestrator.ExtractCode(tr.Result),
		Raw:        tr.Result,
		Model:      tr.Model,
		TargetPath: req.TargetPath,
	})
}
