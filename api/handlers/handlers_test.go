package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/promptflow/api"
	"github.com/BaSui01/promptflow/config"
	"github.com/BaSui01/promptflow/llm"
	"github.com/BaSui01/promptflow/orchestrator"
	"github.com/BaSui01/promptflow/testutil"
	"github.com/BaSui01/promptflow/testutil/mocks"
	"github.com/BaSui01/promptflow/types"
)

const (
	modelPro   = "gemini-2.5-pro"
	modelFlash = "gemini-2.5-flash"
)

func newTestServer(t *testing.T, invoker *mocks.MockInvoker) *httptest.Server {
	t.Helper()
	cfg := config.OrchestratorConfig{
		MaxConcurrency:     3,
		ModelFallbackOrder: []string{modelPro, modelFlash},
		RetryLimit:         1,
		BackoffBase:        1 * time.Millisecond,
		BackoffCap:         2 * time.Millisecond,
		AttemptTimeout:     5 * time.Second,
	}
	d, err := orchestrator.NewDispatcher(cfg, invoker, zap.NewNop())
	require.NoError(t, err)
	chain, err := llm.NewFallbackChain(cfg.ModelFallbackOrder)
	require.NoError(t, err)
	registry, err := orchestrator.NewRegistry(d, chain, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := testutil.TestContextWithTimeout(t, 5*time.Second)
		_ = registry.Close(ctx)
	})

	srv := httptest.NewServer(NewRouter(RouterOptions{Registry: registry, Logger: zap.NewNop()}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) Response {
	t.Helper()
	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// --- /v1/ask ---

func TestHandleAsk_Success(t *testing.T) {
	invoker := mocks.NewMockInvoker()
	invoker.ScriptModel(modelPro, "the answer")
	srv := newTestServer(t, invoker)

	resp := postJSON(t, srv.URL+"/v1/ask", api.AskRequest{Prompt: "question"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeResponse(t, resp)
	assert.True(t, body.Success)

	var data api.AskResponse
	remarshal(t, body.Data, &data)
	assert.Equal(t, "the answer", data.Result)
	assert.Equal(t, modelPro, data.Model)
	assert.Equal(t, 1, data.Attempts)
}

func TestHandleAsk_EmptyPrompt(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockInvoker())

	resp := postJSON(t, srv.URL+"/v1/ask", api.AskRequest{Prompt: "  "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeResponse(t, resp)
	assert.False(t, body.Success)
	assert.Equal(t, string(types.KindInvalidInput), body.Error.Kind)
}

func TestHandleAsk_WrongContentType(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockInvoker())

	resp, err := http.Post(srv.URL+"/v1/ask", "text/plain", bytes.NewReader([]byte("hi")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleAsk_UnknownFieldRejected(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockInvoker())

	resp := postJSON(t, srv.URL+"/v1/ask", map[string]any{"prompt": "hi", "bogus": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleAsk_FallbackExhausted(t *testing.T) {
	invoker := mocks.NewMockInvoker()
	invoker.ScriptModelQuota(modelPro)
	invoker.ScriptModelQuota(modelFlash)
	srv := newTestServer(t, invoker)

	resp := postJSON(t, srv.URL+"/v1/ask", api.AskRequest{Prompt: "question"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	body := decodeResponse(t, resp)
	assert.False(t, body.Success)
	assert.Equal(t, string(types.KindFallbackExhausted), body.Error.Kind)

	// The failure carries the full attempt history, one entry per model
	// tier in the order the chain was walked. The final attempt records
	// the exhaustion error that finalized the task.
	assert.Equal(t, 2, body.Error.Attempts)
	require.Len(t, body.Error.History, 2)
	assert.Equal(t, modelPro, body.Error.History[0].Model)
	assert.Equal(t, types.KindQuotaExceeded, body.Error.History[0].Kind)
	assert.Equal(t, modelFlash, body.Error.History[1].Model)
	assert.Equal(t, types.KindFallbackExhausted, body.Error.History[1].Kind)
}

func TestHandleAsk_QuotaFallsBackTransparently(t *testing.T) {
	invoker := mocks.NewMockInvoker()
	invoker.ScriptModelQuota(modelPro)
	invoker.ScriptModel(modelFlash, "degraded answer")
	srv := newTestServer(t, invoker)

	resp := postJSON(t, srv.URL+"/v1/ask", api.AskRequest{Prompt: "question"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data api.AskResponse
	remarshal(t, decodeResponse(t, resp).Data, &data)
	assert.Equal(t, "degraded answer", data.Result)
	assert.Equal(t, modelFlash, data.Model)
	assert.Equal(t, 2, data.Attempts)
}

// --- /v1/code ---

func TestHandleCode_Success(t *testing.T) {
	invoker := mocks.NewMockInvoker()
	invoker.ScriptModel(modelPro, "```go\npackage main\n```")
	srv := newTestServer(t, invoker)

	resp := postJSON(t, srv.URL+"/v1/code", api.CodeRequest{
		TaskDescription: "a main package",
		TargetPath:      "main.go",
		Language:        "go",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data api.CodeResponse
	remarshal(t, decodeResponse(t, resp).Data, &data)
	assert.Equal(t, "package main", data.Code)
	assert.Equal(t, "main.go", data.TargetPath)
	assert.Equal(t, modelPro, data.Model)
}

func TestHandleCode_MissingFields(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockInvoker())

	resp := postJSON(t, srv.URL+"/v1/code", api.CodeRequest{TaskDescription: "no target"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// --- /v1/batches ---

func TestBatchLifecycle(t *testing.T) {
	invoker := mocks.NewMockInvoker()
	srv := newTestServer(t, invoker)

	resp := postJSON(t, srv.URL+"/v1/batches", api.BatchRequest{
		Tasks: []api.AskRequest{{Prompt: "one"}, {Prompt: "two"}, {Prompt: "three"}},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted api.BatchAccepted
	remarshal(t, decodeResponse(t, resp).Data, &accepted)
	require.NotEmpty(t, accepted.BatchID)
	assert.Equal(t, 3, accepted.TaskCount)
	assert.True(t, accepted.Parallel)

	// Poll until the batch completes.
	var snap types.Snapshot
	require.True(t, testutil.WaitFor(func() bool {
		getResp, err := http.Get(fmt.Sprintf("%s/v1/batches/%s", srv.URL, accepted.BatchID))
		if err != nil {
			return false
		}
		defer getResp.Body.Close()
		if getResp.StatusCode != http.StatusOK {
			return false
		}
		var body Response
		if err := json.NewDecoder(getResp.Body).Decode(&body); err != nil {
			return false
		}
		remarshal(t, body.Data, &snap)
		return snap.Status == types.BatchCompleted
	}, 10*time.Second))

	assert.Equal(t, 3, snap.Counts.Succeeded)
	require.Len(t, snap.Results, 3)
	require.NotNil(t, snap.CompletedAt)
}

func TestBatchSubmit_Empty(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockInvoker())

	resp := postJSON(t, srv.URL+"/v1/batches", api.BatchRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBatchStatus_NotFound(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockInvoker())

	resp, err := http.Get(srv.URL + "/v1/batches/unknown-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBatchCancel(t *testing.T) {
	invoker := mocks.NewMockInvoker()
	invoker.Block = make(chan struct{})
	defer close(invoker.Block)
	srv := newTestServer(t, invoker)

	resp := postJSON(t, srv.URL+"/v1/batches", api.BatchRequest{
		Tasks: []api.AskRequest{{Prompt: "one"}, {Prompt: "two"}},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var accepted api.BatchAccepted
	remarshal(t, decodeResponse(t, resp).Data, &accepted)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/v1/batches/%s", srv.URL, accepted.BatchID), nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	// Eventually every task fails with a cancelled error.
	require.True(t, testutil.WaitFor(func() bool {
		getResp, err := http.Get(fmt.Sprintf("%s/v1/batches/%s", srv.URL, accepted.BatchID))
		if err != nil {
			return false
		}
		defer getResp.Body.Close()
		var body Response
		if err := json.NewDecoder(getResp.Body).Decode(&body); err != nil {
			return false
		}
		var snap types.Snapshot
		remarshal(t, body.Data, &snap)
		return snap.Status == types.BatchCompleted && snap.Counts.Failed == 2
	}, 10*time.Second))
}

func TestBatchCancel_NotFound(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockInvoker())

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/batches/unknown-id", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// --- /health ---

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockInvoker())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
}

// remarshal converts the loosely-typed Data field back into a concrete type.
func remarshal(t *testing.T, from any, to any) {
	t.Helper()
	data, err := json.Marshal(from)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, to))
}
