package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/promptflow/types"
)

// CodeRequest describes a code-generation task. The engine builds a
// specialized prompt from it and returns the generated source as text;
// writing it to disk is the caller's business.
type CodeRequest struct {
	// TaskDescription says what code to generate.
	TaskDescription string `json:"task_description"`
	// TargetPath is where the caller intends to place the file. It is
	// included in the prompt so the model can pick matching package and
	// symbol names.
	TargetPath string `json:"target_path"`
	// Language of the generated code. Defaults to "python".
	Language string `json:"language,omitempty"`
	// ContextFiles maps file paths to their contents, included verbatim
	// so the model sees the surrounding code.
	ContextFiles map[string]string `json:"context_files,omitempty"`
}

// Validate checks the request before a task is built from it.
func (r *CodeRequest) Validate() error {
	if strings.TrimSpace(r.TaskDescription) == "" {
		return types.NewError(types.KindInvalidInput, "task_description must not be empty")
	}
	if strings.TrimSpace(r.TargetPath) == "" {
		return types.NewError(types.KindInvalidInput, "target_path must not be empty")
	}
	return nil
}

func (r *CodeRequest) language() string {
	if r.Language == "" {
		return "python"
	}
	return r.Language
}

// Prompt renders the code-generation prompt. The instructions pin the
// response format to a single fenced code block so the caller can extract
// the source without heuristics.
func (r *CodeRequest) Prompt() string {
	lang := r.language()
	var b strings.Builder
	fmt.Fprintf(&b, "Generate ONLY the complete %s code for: %s\n\n", lang, r.TaskDescription)
	fmt.Fprintf(&b, "Target file path: %s\n\n", r.TargetPath)
	b.WriteString("Requirements:\n")
	b.WriteString("1. Create production-ready, well-structured code.\n")
	b.WriteString("2. Include proper imports and dependencies.\n")
	b.WriteString("3. Add comprehensive docstrings and comments.\n")
	fmt.Fprintf(&b, "4. Follow %s best practices and conventions.\n", lang)
	b.WriteString("5. Ensure the code is complete and functional.\n")

	if len(r.ContextFiles) > 0 {
		b.WriteString("\nContext from existing files:\n")
		for _, path := range sortedKeys(r.ContextFiles) {
			fmt.Fprintf(&b, "File: %s\n```%s\n%s\n```\n\n", path, lang, r.ContextFiles[path])
		}
	}

	fmt.Fprintf(&b, "\nYour response MUST contain ONLY the code, enclosed in a markdown code block (```%s ... ```). DO NOT include any conversational text, explanations, or other markdown outside of the code block.\n", lang)
	return b.String()
}

// TaskSpec converts the request into a submittable task. The language and
// target file ride along as task context.
func (r *CodeRequest) TaskSpec(models []string) TaskSpec {
	return TaskSpec{
		Prompt: r.Prompt(),
		Context: map[string]string{
			"language":    r.language(),
			"target_file": r.TargetPath,
		},
		Priority: types.PriorityHigh,
		Models:   models,
	}
}

// ExtractCode pulls the source out of a fenced code block in the model
// response. Falls back to the trimmed response when no fence is found.
func ExtractCode(response string) string {
	trimmed := strings.TrimSpace(response)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	rest := trimmed[start+3:]
	// Skip the language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimRight(rest, "\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
