package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/promptflow/types"
)

func TestCodeRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CodeRequest
		wantErr bool
	}{
		{
			name: "valid",
			req:  CodeRequest{TaskDescription: "a parser", TargetPath: "pkg/parser/parser.go"},
		},
		{
			name:    "missing description",
			req:     CodeRequest{TargetPath: "x.py"},
			wantErr: true,
		},
		{
			name:    "missing target path",
			req:     CodeRequest{TaskDescription: "a parser"},
			wantErr: true,
		},
		{
			name:    "blank description",
			req:     CodeRequest{TaskDescription: "   ", TargetPath: "x.py"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.KindInvalidInput, types.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCodeRequest_Prompt(t *testing.T) {
	req := CodeRequest{
		TaskDescription: "an HTTP retry helper",
		TargetPath:      "internal/httpx/retry.go",
		Language:        "go",
		ContextFiles: map[string]string{
			"internal/httpx/client.go": "package httpx",
			"internal/httpx/auth.go":   "package httpx // auth",
		},
	}

	prompt := req.Prompt()
	assert.Contains(t, prompt, "complete go code for: an HTTP retry helper")
	assert.Contains(t, prompt, "Target file path: internal/httpx/retry.go")
	assert.Contains(t, prompt, "Follow go best practices")
	assert.Contains(t, prompt, "File: internal/httpx/auth.go")
	assert.Contains(t, prompt, "File: internal/httpx/client.go")
	assert.Contains(t, prompt, "ONLY the code")

	// Context files render in deterministic path order.
	assert.Less(t,
		strings.Index(prompt, "internal/httpx/auth.go"),
		strings.Index(prompt, "internal/httpx/client.go"))
}

func TestCodeRequest_LanguageDefault(t *testing.T) {
	req := CodeRequest{TaskDescription: "a script", TargetPath: "run.py"}
	assert.Contains(t, req.Prompt(), "complete python code")

	spec := req.TaskSpec(nil)
	assert.Equal(t, "python", spec.Context["language"])
	assert.Equal(t, "run.py", spec.Context["target_file"])
	assert.Equal(t, types.PriorityHigh, spec.Priority)
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "fenced with language",
			response: "```go\npackage main\n\nfunc main() {}\n```",
			want:     "package main\n\nfunc main() {}",
		},
		{
			name:     "fenced with surrounding prose",
			response: "Here you go:\n```python\nprint(1)\n```\nHope that helps!",
			want:     "print(1)",
		},
		{
			name:     "no fence",
			response: "  package main\n",
			want:     "package main",
		},
		{
			name:     "unterminated fence",
			response: "```go\npackage main\n",
			want:     "package main",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.response))
		})
	}
}
