package promptflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/promptflow/config"
	"github.com/BaSui01/promptflow/orchestrator"
	"github.com/BaSui01/promptflow/testutil/mocks"
	"github.com/BaSui01/promptflow/types"
)

func newTestEngine(t *testing.T, invoker *mocks.MockInvoker) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Orchestrator.BackoffBase = time.Millisecond
	cfg.Orchestrator.BackoffCap = 2 * time.Millisecond
	engine, err := New(
		WithConfig(cfg),
		WithInvoker(invoker),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = engine.Close(ctx)
	})
	return engine
}

func TestNew_DefaultInvokerRequiresAPIKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Gemini.APIKey = ""
	_, err := New(WithConfig(cfg))
	require.Error(t, err)
}

func TestEngine_Ask(t *testing.T) {
	invoker := mocks.NewMockInvoker().ScriptModel("gemini-2.5-pro", "pong")
	engine := newTestEngine(t, invoker)

	out, err := engine.Ask(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
}

func TestEngine_AskFallsBackOnQuota(t *testing.T) {
	invoker := mocks.NewMockInvoker().
		ScriptModelQuota("gemini-2.5-pro").
		ScriptModel("gemini-2.5-flash", "from flash")
	engine := newTestEngine(t, invoker)

	out, err := engine.Ask(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "from flash", out)
}

func TestEngine_AskReturnsTaskError(t *testing.T) {
	invoker := mocks.NewMockInvoker().
		ScriptModelError("gemini-2.5-pro",
			types.NewError(types.KindInvalidInput, "prompt rejected"))
	engine := newTestEngine(t, invoker)

	_, err := engine.Ask(context.Background(), "ping", nil)
	require.Error(t, err)
	assert.Equal(t, types.KindInvalidInput, types.KindOf(err))
}

func TestEngine_AskBatch(t *testing.T) {
	engine := newTestEngine(t, mocks.NewMockInvoker())

	result, err := engine.AskBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.CompletedTasks)
	assert.Len(t, result.Results, 3)
}

func TestEngine_GenerateCode(t *testing.T) {
	invoker := mocks.NewMockInvoker().
		ScriptModel("gemini-2.5-pro", "```go\npackage main\n```")
	engine := newTestEngine(t, invoker)

	code, err := engine.GenerateCode(context.Background(), orchestrator.CodeRequest{
		TaskDescription: "hello world",
		TargetPath:      "main.go",
		Language:        "go",
	})
	require.NoError(t, err)
	assert.Equal(t, "package main", code)
}

func TestEngine_GenerateCodeValidates(t *testing.T) {
	engine := newTestEngine(t, mocks.NewMockInvoker())

	_, err := engine.GenerateCode(context.Background(), orchestrator.CodeRequest{})
	require.Error(t, err)
}
