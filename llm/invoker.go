package llm

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Result is a successful model invocation.
type Result struct {
	Model            string        `json:"model"`
	Text             string        `json:"text"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	Latency          time.Duration `json:"latency,omitempty"`
}

// Invoker is the single invocation contract the orchestrator depends on.
// Implementations talk to a remote generative-model API; they do not retry,
// back off or fall back — that is the dispatcher's job.
//
// Every returned error must be a *types.Error carrying a classification
// (quota, transient, or one of the terminal kinds). Misclassification turns
// an unrecoverable error into a retry loop or a recoverable one into a
// premature failure, so this contract is the load-bearing one. Unclassified
// errors are treated as terminal by the dispatcher.
type Invoker interface {
	// Invoke sends the prompt to the given model and returns a result or a
	// classified failure. The context carries the per-attempt deadline.
	Invoke(ctx context.Context, model, prompt string, taskContext map[string]string) (*Result, error)

	// Name identifies the backing provider, for logs and metrics.
	Name() string
}

// RenderPrompt flattens the optional structured context into "key: value"
// lines ahead of the prompt. Keys are sorted so the rendered prompt is
// deterministic.
func RenderPrompt(prompt string, taskContext map[string]string) string {
	if len(taskContext) == 0 {
		return prompt
	}
	keys := make([]string, 0, len(taskContext))
	for k := range taskContext {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(taskContext[k])
		sb.WriteString("\n")
	}
	sb.WriteString(prompt)
	return sb.String()
}
