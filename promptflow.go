// Package promptflow provides a top-level convenience entry point for
// assembling the orchestration engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/promptflow"
//
//	engine, err := promptflow.New(promptflow.WithConfig(cfg))
//	engine, err := promptflow.New(promptflow.WithInvoker(myInvoker))
//
//	result, err := engine.Ask(ctx, "explain goroutines", nil)
//
// This is a thin wrapper around the orchestrator package; use it when you
// want a working engine in a few lines rather than wiring the dispatcher,
// fallback chain and registry yourself.
package promptflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/promptflow/config"
	"github.com/BaSui01/promptflow/llm"
	"github.com/BaSui01/promptflow/llm/gemini"
	"github.com/BaSui01/promptflow/orchestrator"
	"github.com/BaSui01/promptflow/types"
)

// Engine bundles the dispatcher and registry behind a small facade.
type Engine struct {
	registry *orchestrator.Registry
	cfg      *config.Config
}

type options struct {
	cfg     *config.Config
	invoker llm.Invoker
	logger  *zap.Logger
	archive *orchestrator.Archive
}

// Option configures the engine created by [New].
type Option func(*options)

// WithConfig supplies a full configuration. Defaults are used otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithInvoker replaces the default Gemini client with a custom invoker.
func WithInvoker(invoker llm.Invoker) Option {
	return func(o *options) { o.invoker = invoker }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithArchive stores completed batch results in Redis.
func WithArchive(a *orchestrator.Archive) Option {
	return func(o *options) { o.archive = a }
}

// New assembles an engine: invoker, dispatcher, fallback chain and
// registry. Without [WithInvoker] it builds a Gemini client from the
// configuration, which requires an API key.
func New(opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	invoker := o.invoker
	if invoker == nil {
		client, err := gemini.NewClient(gemini.Config{
			APIKey:            cfg.Gemini.APIKey,
			BaseURL:           cfg.Gemini.BaseURL,
			Timeout:           cfg.Gemini.Timeout,
			RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
		}, logger)
		if err != nil {
			return nil, err
		}
		invoker = client
	}

	dispatcher, err := orchestrator.NewDispatcher(cfg.Orchestrator, invoker, logger)
	if err != nil {
		return nil, err
	}
	chain, err := llm.NewFallbackChain(cfg.Orchestrator.ModelFallbackOrder)
	if err != nil {
		return nil, err
	}

	var registryOpts []orchestrator.RegistryOption
	if o.archive != nil {
		registryOpts = append(registryOpts, orchestrator.WithArchive(o.archive))
	}
	registry, err := orchestrator.NewRegistry(dispatcher, chain, logger, registryOpts...)
	if err != nil {
		return nil, err
	}

	return &Engine{registry: registry, cfg: cfg}, nil
}

// Registry exposes the underlying batch registry for advanced use.
func (e *Engine) Registry() *orchestrator.Registry {
	return e.registry
}

// Ask runs one prompt synchronously and returns the result text.
func (e *Engine) Ask(ctx context.Context, prompt string, taskContext map[string]string) (string, error) {
	result, err := e.registry.SubmitWait(ctx, []orchestrator.TaskSpec{{
		Prompt:  prompt,
		Context: taskContext,
	}}, true)
	if err != nil {
		return "", err
	}
	tr := result.Results[0]
	if tr.Status != types.TaskSucceeded {
		return "", tr.Error
	}
	return tr.Result, nil
}

// AskBatch submits several prompts and waits for all of them.
func (e *Engine) AskBatch(ctx context.Context, prompts []string) (*types.BatchResult, error) {
	specs := make([]orchestrator.TaskSpec, len(prompts))
	for i, p := range prompts {
		specs[i] = orchestrator.TaskSpec{Prompt: p}
	}
	return e.registry.SubmitWait(ctx, specs, true)
}

// GenerateCode runs a code-generation request and returns the extracted
// code.
func (e *Engine) GenerateCode(ctx context.Context, req orchestrator.CodeRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	result, err := e.registry.SubmitWait(ctx, []orchestrator.TaskSpec{req.TaskSpec(nil)}, true)
	if err != nil {
		return "", err
	}
	tr := result.Results[0]
	if tr.Status != types.TaskSucceeded {
		return "", tr.Error
	}
	return orchestrator.ExtractCode(tr.Result), nil
}

// Close cancels running batches and releases resources.
func (e *Engine) Close(ctx context.Context) error {
	return e.registry.Close(ctx)
}
