package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/BaSui01/promptflow/config"
	"github.com/BaSui01/promptflow/internal/metrics"
	"github.com/BaSui01/promptflow/llm"
	"github.com/BaSui01/promptflow/types"
)

// Dispatcher drives every pending task in a batch to a terminal status,
// bounded by a fixed number of invocation slots. Retry and fallback are
// explicit task-state transitions, so progress is inspectable mid-flight
// by the status-polling path.
type Dispatcher struct {
	invoker        llm.Invoker
	sem            *semaphore.Weighted
	maxConcurrency int
	retryLimit     int
	attemptTimeout time.Duration
	backoff        BackoffPolicy
	logger         *zap.Logger
	metrics        *metrics.Collector
	tracer         trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics attaches a prometheus collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = c }
}

// WithBackoffPolicy overrides the retry backoff policy.
func WithBackoffPolicy(p BackoffPolicy) Option {
	return func(d *Dispatcher) { d.backoff = p }
}

// NewDispatcher validates the configuration and builds a dispatcher.
// Invalid configuration fails here, before any task is accepted.
func NewDispatcher(cfg config.OrchestratorConfig, invoker llm.Invoker, logger *zap.Logger, opts ...Option) (*Dispatcher, error) {
	if invoker == nil {
		return nil, types.NewError(types.KindInvalidInput, "invoker must not be nil")
	}
	if cfg.MaxConcurrency <= 0 {
		return nil, types.NewError(types.KindInvalidInput, "max concurrency must be positive")
	}
	if cfg.RetryLimit < 0 {
		return nil, types.NewError(types.KindInvalidInput, "retry limit must not be negative")
	}
	if cfg.AttemptTimeout <= 0 {
		return nil, types.NewError(types.KindInvalidInput, "attempt timeout must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		invoker:        invoker,
		sem:            semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		maxConcurrency: cfg.MaxConcurrency,
		retryLimit:     cfg.RetryLimit,
		attemptTimeout: cfg.AttemptTimeout,
		backoff: BackoffPolicy{
			Base:       cfg.BackoffBase,
			Cap:        cfg.BackoffCap,
			Multiplier: 2.0,
			Jitter:     true,
		}.normalized(),
		logger: logger.With(zap.String("component", "dispatcher")),
		tracer: otel.Tracer("promptflow/orchestrator"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// MaxConcurrency returns the configured slot count.
func (d *Dispatcher) MaxConcurrency() int { return d.maxConcurrency }

// Execute drives every task in the batch to a terminal status and returns
// once the batch has completed. Individual task failures do not abort
// sibling tasks and are not returned as an error; cancellation of ctx
// fails all remaining tasks with a cancelled error and returns promptly.
func (d *Dispatcher) Execute(ctx context.Context, b *types.Batch) {
	tasks := orderByPriority(b.Tasks)

	if !b.Parallel {
		// Sequential mode still goes through slot admission so the
		// process-wide concurrency bound holds across batches.
		for _, t := range tasks {
			d.runTask(ctx, b, t)
		}
	} else {
		var wg sync.WaitGroup
		for _, t := range tasks {
			wg.Add(1)
			go func(t *types.Task) {
				defer wg.Done()
				d.runTask(ctx, b, t)
			}(t)
		}
		wg.Wait()
	}

	counts := b.Counts()
	if d.metrics != nil {
		d.metrics.BatchCompleted(counts.Failed == 0)
	}
	d.logger.Info("batch finished",
		zap.String("batch_id", b.ID),
		zap.Int("succeeded", counts.Succeeded),
		zap.Int("failed", counts.Failed),
	)
}

// orderByPriority returns the tasks sorted highest-priority-first, stable
// for equal priorities so submission order is preserved within a tier.
func orderByPriority(tasks []*types.Task) []*types.Task {
	out := make([]*types.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() > out[j].Priority.Rank()
	})
	return out
}

// runTask is the per-task attempt loop. Each iteration acquires a slot,
// runs exactly one invocation attempt, and releases the slot before any
// backoff wait — so retry and fallback re-enqueues compete for slots like
// any other pending task and a stuck task cannot starve the pool.
func (d *Dispatcher) runTask(ctx context.Context, b *types.Batch, t *types.Task) {
	log := d.logger.With(zap.String("batch_id", b.ID), zap.String("task_id", t.ID))

	for {
		if t.Terminal() {
			return
		}

		if err := d.sem.Acquire(ctx, 1); err != nil {
			b.MarkFailed(t, cancelledError(ctx), 0)
			if d.metrics != nil {
				d.metrics.TaskCompleted(string(types.TaskFailed))
			}
			return
		}

		outcome := d.attempt(ctx, b, t, log)
		d.sem.Release(1)

		switch outcome {
		case attemptDone:
			if d.metrics != nil {
				d.metrics.TaskCompleted(string(t.Status))
			}
			return
		case attemptRetry:
			// Backoff happens without holding a slot. t.Attempts is
			// stable here: the task is owned by this goroutine until
			// it reaches a terminal status.
			if err := d.backoff.Wait(ctx, t.Attempts); err != nil {
				b.MarkFailed(t, cancelledError(ctx), 0)
				if d.metrics != nil {
					d.metrics.TaskCompleted(string(types.TaskFailed))
				}
				return
			}
		case attemptFallback:
			// Next tier competes for a slot immediately.
		}
	}
}

type attemptOutcome int

const (
	attemptDone attemptOutcome = iota
	attemptRetry
	attemptFallback
)

// attempt runs one invocation while holding a slot and applies the
// retry/fallback policy to the task state.
func (d *Dispatcher) attempt(ctx context.Context, b *types.Batch, t *types.Task, log *zap.Logger) attemptOutcome {
	if !b.MarkRunning(t) {
		return attemptDone
	}
	model := t.CurrentModel()

	if d.metrics != nil {
		d.metrics.AttemptStarted(model)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	spanCtx, span := d.tracer.Start(attemptCtx, "invoke",
		trace.WithAttributes(
			attribute.String("task.id", t.ID),
			attribute.String("model", model),
			attribute.Int("attempt", t.Attempts),
		))

	start := time.Now()
	res, err := d.invoker.Invoke(spanCtx, model, t.Prompt, t.Context)
	dur := time.Since(start)

	span.End()
	cancel()

	// A cancelled batch abandons the in-flight attempt: whatever the
	// invoker returned is discarded.
	if ctx.Err() != nil {
		b.MarkFailed(t, cancelledError(ctx), dur)
		d.finishAttempt(model, "cancelled", dur)
		return attemptDone
	}

	if err == nil {
		b.MarkSucceeded(t, res.Text, dur)
		d.finishAttempt(model, "success", dur)
		log.Debug("task succeeded",
			zap.String("model", model),
			zap.Int("attempts", t.Attempts),
			zap.Duration("duration", dur),
		)
		return attemptDone
	}

	apiErr := types.AsError(err)
	switch apiErr.Kind {
	case types.KindQuotaExceeded:
		if next, ok := nextModel(t); ok {
			b.RequeueFallback(t, apiErr, dur)
			d.finishAttempt(model, "quota", dur)
			if d.metrics != nil {
				d.metrics.Fallback(model, next)
			}
			log.Info("quota exceeded, degrading to next tier",
				zap.String("from", model),
				zap.String("to", next),
			)
			return attemptFallback
		}
		exhausted := types.NewErrorf(types.KindFallbackExhausted,
			"quota exceeded for all %d model tiers", len(t.ModelChain)).
			WithModel(model).WithCause(apiErr)
		b.MarkFailed(t, exhausted, dur)
		d.finishAttempt(model, "quota", dur)
		log.Warn("fallback chain exhausted", zap.String("model", model))
		return attemptDone

	case types.KindTransient:
		if t.Attempts < d.retryLimit {
			b.RequeueRetry(t, apiErr, dur)
			d.finishAttempt(model, "transient", dur)
			log.Debug("transient failure, will retry",
				zap.String("model", model),
				zap.Int("attempt", t.Attempts),
			)
			return attemptRetry
		}
		b.MarkFailed(t, apiErr, dur)
		d.finishAttempt(model, "transient", dur)
		log.Warn("retry limit reached",
			zap.String("model", model),
			zap.Int("attempts", t.Attempts),
		)
		return attemptDone

	default:
		b.MarkFailed(t, apiErr, dur)
		d.finishAttempt(model, "terminal", dur)
		log.Warn("task failed",
			zap.String("model", model),
			zap.String("kind", string(apiErr.Kind)),
			zap.String("message", apiErr.Message),
		)
		return attemptDone
	}
}

func (d *Dispatcher) finishAttempt(model, outcome string, dur time.Duration) {
	if d.metrics != nil {
		d.metrics.AttemptFinished(model, outcome, dur)
	}
}

// nextModel reports the model after the task's current chain position.
func nextModel(t *types.Task) (string, bool) {
	if t.ChainIndex+1 < len(t.ModelChain) {
		return t.ModelChain[t.ChainIndex+1], true
	}
	return "", false
}

func cancelledError(ctx context.Context) *types.Error {
	return types.NewError(types.KindCancelled, "batch cancelled").WithCause(ctx.Err())
}
