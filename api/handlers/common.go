package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/BaSui01/promptflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 📦 通用响应结构
// =============================================================================

// Response 统一 API 响应结构
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Kind       string          `json:"kind"`
	Message    string          `json:"message"`
	Model      string          `json:"model,omitempty"`
	Attempts   int             `json:"attempts,omitempty"`
	History    []types.Attempt `json:"history,omitempty"`
	HTTPStatus int             `json:"-"` // 不序列化到 JSON
}

// =============================================================================
// 🎯 响应辅助函数
// =============================================================================

// WriteJSON 写入 JSON 响应
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// 编码失败时响应头已写出，只能放弃
		return
	}
}

// WriteSuccess 写入成功响应
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError 写入错误响应（从 types.Error）
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	status := mapErrorKindToHTTPStatus(err.Kind)

	errorInfo := &ErrorInfo{
		Kind:       string(err.Kind),
		Message:    err.Message,
		Model:      err.Model,
		HTTPStatus: status,
	}

	if logger != nil {
		logger.Error("API error",
			zap.String("kind", string(err.Kind)),
			zap.String("message", err.Message),
			zap.Int("status", status),
			zap.Error(err.Cause),
		)
	}

	WriteJSON(w, status, Response{
		Success:   false,
		Error:     errorInfo,
		Timestamp: time.Now(),
	})
}

// WriteErrorMessage 写入简单错误消息
func WriteErrorMessage(w http.ResponseWriter, kind types.ErrorKind, message string, logger *zap.Logger) {
	WriteError(w, types.NewError(kind, message), logger)
}

// WriteTaskError 写入失败任务的错误响应，附带完整的尝试历史
func WriteTaskError(w http.ResponseWriter, tr types.TaskResult, logger *zap.Logger) {
	err := tr.Error
	if err == nil {
		err = types.NewError(types.KindInternal, "task failed without an error")
	}
	status := mapErrorKindToHTTPStatus(err.Kind)

	errorInfo := &ErrorInfo{
		Kind:       string(err.Kind),
		Message:    err.Message,
		Model:      err.Model,
		Attempts:   tr.Attempts,
		History:    tr.History,
		HTTPStatus: status,
	}

	if logger != nil {
		logger.Error("API error",
			zap.String("kind", string(err.Kind)),
			zap.String("message", err.Message),
			zap.Int("attempts", tr.Attempts),
			zap.Int("status", status),
			zap.Error(err.Cause),
		)
	}

	WriteJSON(w, status, Response{
		Success:   false,
		Error:     errorInfo,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// 🔄 错误分类到 HTTP 状态码映射
// =============================================================================

func mapErrorKindToHTTPStatus(kind types.ErrorKind) int {
	switch kind {
	case types.KindInvalidInput:
		return http.StatusBadRequest
	case types.KindAuthFailure:
		return http.StatusUnauthorized
	case types.KindQuotaExceeded, types.KindFallbackExhausted:
		return http.StatusTooManyRequests
	case types.KindTransient:
		return http.StatusServiceUnavailable
	case types.KindCancelled:
		// nginx 约定：客户端提前断开
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// 🛡️ 请求验证辅助函数
// =============================================================================

// DecodeJSONBody 解码 JSON 请求体
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.KindInvalidInput, "request body is empty")
		WriteError(w, err, logger)
		return err
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields() // 严格模式：拒绝未知字段

	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.KindInvalidInput, "invalid JSON body").WithCause(err)
		WriteError(w, apiErr, logger)
		return apiErr
	}

	return nil
}

// ValidateContentType 验证 Content-Type
func ValidateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" && contentType != "application/json; charset=utf-8" {
		err := types.NewError(types.KindInvalidInput, "Content-Type must be application/json")
		WriteError(w, err, logger)
		return false
	}
	return true
}

// =============================================================================
// 📊 响应包装器（用于捕获状态码）
// =============================================================================

// ResponseWriter 包装 http.ResponseWriter 以捕获状态码
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter 创建新的 ResponseWriter
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

// WriteHeader 重写 WriteHeader 以捕获状态码
func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write 重写 Write 以标记已写入
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
