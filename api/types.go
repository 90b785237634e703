package api

import (
	"time"

	"github.com/BaSui01/promptflow/types"
)

// =============================================================================
// 📨 请求类型
// =============================================================================

// AskRequest 单条 prompt 同步执行请求
type AskRequest struct {
	// Prompt 提示词内容
	Prompt string `json:"prompt"`
	// Context 附加上下文，按键排序后逐行前置到 prompt
	Context map[string]string `json:"context,omitempty"`
	// Models 覆盖默认降级链（可选）
	Models []string `json:"models,omitempty"`
	// Priority 任务优先级（可选，默认 medium）
	Priority types.TaskPriority `json:"priority,omitempty"`
}

// BatchRequest 批量任务提交请求
type BatchRequest struct {
	// Tasks 任务列表
	Tasks []AskRequest `json:"tasks"`
	// Parallel 是否并行执行（默认 true）
	Parallel *bool `json:"parallel,omitempty"`
}

// CodeRequest 代码生成请求
type CodeRequest struct {
	// TaskDescription 代码生成任务描述
	TaskDescription string `json:"task_description"`
	// TargetPath 目标文件路径（用于提示模型命名）
	TargetPath string `json:"target_path"`
	// Language 目标语言（默认 python）
	Language string `json:"language,omitempty"`
	// ContextFiles 上下文文件：路径 → 内容
	ContextFiles map[string]string `json:"context_files,omitempty"`
	// Models 覆盖默认降级链（可选）
	Models []string `json:"models,omitempty"`
}

// =============================================================================
// 📬 响应类型
// =============================================================================

// AskResponse 单条 prompt 执行结果
type AskResponse struct {
	Result   string        `json:"result"`
	Model    string        `json:"model"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// BatchAccepted 批次受理回执
type BatchAccepted struct {
	BatchID   string    `json:"batch_id"`
	TaskCount int       `json:"task_count"`
	Parallel  bool      `json:"parallel"`
	CreatedAt time.Time `json:"created_at"`
}

// CodeResponse 代码生成结果
type CodeResponse struct {
	// Code 从模型响应中提取的代码
	Code string `json:"code"`
	// Raw 模型原始响应
	Raw string `json:"raw,omitempty"`
	// Model 最终使用的模型
	Model string `json:"model"`
	// TargetPath 回显目标路径
	TargetPath string `json:"target_path"`
}
