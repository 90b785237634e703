// MockInvoker 的模型调用端口测试模拟实现。
//
// 支持固定响应、按模型脚本化结果与并发观测场景。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/promptflow/llm"
	"github.com/BaSui01/promptflow/types"
)

// InvokerCall 记录单次调用
type InvokerCall struct {
	Model  string
	Prompt string
}

// outcome 是脚本中的一步：成功文本或错误，二选一。
type outcome struct {
	text string
	err  error
}

// MockInvoker 是 llm.Invoker 的模拟实现。
//
// 默认行为：所有调用以 "mock:<model>" 成功返回。通过 ScriptModel 可以
// 为某个模型注入一串结果（依次消费，耗尽后回到默认行为）。通过
// InvokeFn 可以整体接管行为。并发观测字段用于断言调度器的并发上限。
type MockInvoker struct {
	mu      sync.Mutex
	scripts map[string][]outcome
	calls   []InvokerCall

	// InvokeFn 整体接管调用行为（设置后脚本失效）
	InvokeFn func(ctx context.Context, model, prompt string, taskContext map[string]string) (*llm.Result, error)

	// Block 非 nil 时，每次调用在返回前会等待该通道关闭或 ctx 结束
	Block chan struct{}

	inFlight    int
	maxInFlight int
}

// NewMockInvoker 创建新的 MockInvoker
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		scripts: make(map[string][]outcome),
	}
}

func (m *MockInvoker) Name() string { return "mock" }

// ScriptModel 为一个模型追加一次成功结果
func (m *MockInvoker) ScriptModel(model, text string) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[model] = append(m.scripts[model], outcome{text: text})
	return m
}

// ScriptModelError 为一个模型追加一次失败结果
func (m *MockInvoker) ScriptModelError(model string, err error) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[model] = append(m.scripts[model], outcome{err: err})
	return m
}

// ScriptModelQuota 为一个模型追加一次配额耗尽失败
func (m *MockInvoker) ScriptModelQuota(model string) *MockInvoker {
	return m.ScriptModelError(model, types.NewError(types.KindQuotaExceeded, "quota exceeded").WithModel(model))
}

// ScriptModelTransient 为一个模型追加一次瞬态失败
func (m *MockInvoker) ScriptModelTransient(model string) *MockInvoker {
	return m.ScriptModelError(model, types.NewError(types.KindTransient, "upstream unavailable").WithModel(model))
}

// Invoke 实现 llm.Invoker
func (m *MockInvoker) Invoke(ctx context.Context, model, prompt string, taskContext map[string]string) (*llm.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, InvokerCall{Model: model, Prompt: prompt})
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	fn := m.InvokeFn
	block := m.Block
	var next *outcome
	if fn == nil {
		if queue := m.scripts[model]; len(queue) > 0 {
			next = &queue[0]
			m.scripts[model] = queue[1:]
		}
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, types.NewError(types.KindCancelled, "invocation cancelled").WithCause(ctx.Err()).WithModel(model)
		}
	}

	if fn != nil {
		return fn(ctx, model, prompt, taskContext)
	}
	if next != nil {
		if next.err != nil {
			return nil, next.err
		}
		return &llm.Result{Model: model, Text: next.text}, nil
	}
	return &llm.Result{Model: model, Text: "mock:" + model}, nil
}

// Calls 返回调用记录的副本
func (m *MockInvoker) Calls() []InvokerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InvokerCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数
func (m *MockInvoker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// InFlight 返回当前并发调用数
func (m *MockInvoker) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// MaxInFlight 返回观测到的最大并发调用数
func (m *MockInvoker) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}
