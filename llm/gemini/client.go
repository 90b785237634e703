// Package gemini implements the llm.Invoker contract over the Google
// Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/promptflow/llm"
	"github.com/BaSui01/promptflow/types"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Config configures the Gemini client.
type Config struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// RequestsPerMinute throttles outbound calls ahead of the upstream
	// quota. Zero disables the limiter.
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
}

// Client is a thin Invoker over the Gemini REST API. It classifies every
// failure at this boundary and carries no retry or fallback logic.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a Gemini client. The API key must be set; construction
// fails otherwise so a misconfigured process dies before accepting tasks.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, types.NewError(types.KindAuthFailure, "gemini api key not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), 1)
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
	}, nil
}

func (c *Client) Name() string { return "gemini" }

// Gemini wire structures (request subset used by text generation).
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
}

type geminiErrorResp struct {
	Error struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Invoke implements llm.Invoker.
func (c *Client) Invoke(ctx context.Context, model, prompt string, taskContext map[string]string) (*llm.Result, error) {
	if strings.TrimSpace(model) == "" {
		return nil, types.NewError(types.KindInvalidInput, "model must not be empty")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, types.NewError(types.KindInvalidInput, "prompt must not be empty").WithModel(model)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classifyTransport(err, model)
		}
	}

	body := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: llm.RenderPrompt(prompt, taskContext)}},
		}},
	}
	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.KindInvalidInput, err.Error()).WithModel(model)
	}
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err, model)
	}
	defer resp.Body.Close()

	latency := time.Since(start)

	if resp.StatusCode >= 400 {
		msg := readErrMsg(resp.Body)
		apiErr := classifyStatus(resp.StatusCode, msg, model)
		c.logger.Debug("gemini call failed",
			zap.String("model", model),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(apiErr.Kind)),
			zap.Duration("latency", latency),
		)
		return nil, apiErr
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, types.NewError(types.KindTransient, "malformed gemini response").
			WithCause(err).WithModel(model).WithHTTPStatus(resp.StatusCode)
	}
	if len(gr.Candidates) == 0 {
		return nil, types.NewError(types.KindTransient, "gemini returned no candidates").
			WithModel(model).WithHTTPStatus(resp.StatusCode)
	}

	var sb strings.Builder
	for _, part := range gr.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	result := &llm.Result{
		Model:   model,
		Text:    sb.String(),
		Latency: latency,
	}
	if gr.UsageMetadata != nil {
		result.PromptTokens = gr.UsageMetadata.PromptTokenCount
		result.CompletionTokens = gr.UsageMetadata.CandidatesTokenCount
	}

	c.logger.Debug("gemini call succeeded",
		zap.String("model", model),
		zap.Duration("latency", latency),
		zap.Int("completion_tokens", result.CompletionTokens),
	)
	return result, nil
}

func readErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp geminiErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (status: %s)", errResp.Error.Message, errResp.Error.Status)
	}
	return string(data)
}

// classifyStatus maps an upstream HTTP status to the closed error taxonomy.
// 429 is the quota signal that drives model fallback; the free tier reports
// RESOURCE_EXHAUSTED through it.
func classifyStatus(status int, msg, model string) *types.Error {
	switch status {
	case http.StatusTooManyRequests:
		return types.NewError(types.KindQuotaExceeded, msg).WithModel(model).WithHTTPStatus(status)
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewError(types.KindAuthFailure, msg).WithModel(model).WithHTTPStatus(status)
	case http.StatusBadRequest:
		if strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
			return types.NewError(types.KindQuotaExceeded, msg).WithModel(model).WithHTTPStatus(status)
		}
		return types.NewError(types.KindInvalidInput, msg).WithModel(model).WithHTTPStatus(status)
	case http.StatusNotFound:
		return types.NewError(types.KindInvalidInput, msg).WithModel(model).WithHTTPStatus(status)
	default:
		if status >= 500 {
			return types.NewError(types.KindTransient, msg).WithModel(model).WithHTTPStatus(status)
		}
		return types.NewError(types.KindInternal, msg).WithModel(model).WithHTTPStatus(status)
	}
}

// classifyTransport maps client-side transport failures. Deadline expiry is
// transient per the retry policy; cancellation is terminal.
func classifyTransport(err error, model string) *types.Error {
	switch {
	case errors.Is(err, context.Canceled):
		return types.NewError(types.KindCancelled, "invocation cancelled").WithCause(err).WithModel(model)
	default:
		return types.NewError(types.KindTransient, "gemini transport error").WithCause(err).WithModel(model)
	}
}
