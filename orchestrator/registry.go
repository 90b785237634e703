package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/promptflow/llm"
	"github.com/BaSui01/promptflow/types"
)

// ErrBatchNotFound is returned for lookups of unknown batch IDs.
var ErrBatchNotFound = errors.New("batch not found")

// ErrClosed is returned for submissions after the registry shut down.
var ErrClosed = errors.New("registry closed")

// TaskSpec describes one task at submission time.
type TaskSpec struct {
	Prompt   string            `json:"prompt"`
	Context  map[string]string `json:"context,omitempty"`
	Priority types.TaskPriority `json:"priority,omitempty"`
	// Models overrides the configured fallback chain for this task.
	Models []string `json:"models,omitempty"`
}

// Registry owns the lifecycle of submitted batches: it assigns IDs, hands
// batches to the dispatcher, serves status snapshots to pollers and
// archives completed results. Batches stay queryable in memory until
// removed; if an archive is configured, completed results also survive
// removal.
type Registry struct {
	dispatcher *Dispatcher
	chain      *llm.FallbackChain
	archive    *Archive
	logger     *zap.Logger

	mu      sync.RWMutex
	batches map[string]*batchEntry
	closed  bool

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type batchEntry struct {
	batch  *types.Batch
	cancel context.CancelFunc
	done   chan struct{}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithArchive stores completed batch results in Redis.
func WithArchive(a *Archive) RegistryOption {
	return func(r *Registry) { r.archive = a }
}

// NewRegistry builds a registry around a dispatcher and a default model
// fallback chain.
func NewRegistry(d *Dispatcher, chain *llm.FallbackChain, logger *zap.Logger, opts ...RegistryOption) (*Registry, error) {
	if d == nil {
		return nil, types.NewError(types.KindInvalidInput, "dispatcher must not be nil")
	}
	if chain == nil {
		return nil, types.NewError(types.KindInvalidInput, "fallback chain must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		dispatcher: d,
		chain:      chain,
		logger:     logger.With(zap.String("component", "registry")),
		batches:    make(map[string]*batchEntry),
		rootCtx:    ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Submit validates the specs, registers a new batch and starts executing
// it in the background. The returned batch is live: poll it through
// Status or wait for it through Wait.
func (r *Registry) Submit(specs []TaskSpec, parallel bool) (*types.Batch, error) {
	if len(specs) == 0 {
		return nil, types.NewError(types.KindInvalidInput, "batch must contain at least one task")
	}

	tasks := make([]*types.Task, len(specs))
	for i, spec := range specs {
		t, err := r.buildTask(spec)
		if err != nil {
			return nil, types.NewErrorf(types.KindInvalidInput, "task %d: %s", i, err.Error())
		}
		tasks[i] = t
	}

	b := types.NewBatch(uuid.NewString(), tasks, parallel)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	batchCtx, batchCancel := context.WithCancel(r.rootCtx)
	entry := &batchEntry{batch: b, cancel: batchCancel, done: make(chan struct{})}
	r.batches[b.ID] = entry
	r.wg.Add(1)
	r.mu.Unlock()

	r.logger.Info("batch submitted",
		zap.String("batch_id", b.ID),
		zap.Int("tasks", len(tasks)),
		zap.Bool("parallel", parallel),
	)

	go func() {
		defer r.wg.Done()
		defer batchCancel()
		defer close(entry.done)

		r.dispatcher.Execute(batchCtx, b)

		if r.archive != nil {
			if result, ok := b.Result(); ok {
				if err := r.archive.Store(context.Background(), result); err != nil {
					r.logger.Warn("batch archive failed",
						zap.String("batch_id", b.ID),
						zap.Error(err),
					)
				}
			}
		}
	}()

	return b, nil
}

func (r *Registry) buildTask(spec TaskSpec) (*types.Task, error) {
	if strings.TrimSpace(spec.Prompt) == "" {
		return nil, types.NewError(types.KindInvalidInput, "prompt must not be empty")
	}
	models := r.chain.Models()
	if len(spec.Models) > 0 {
		override, err := llm.NewFallbackChain(spec.Models)
		if err != nil {
			return nil, err
		}
		models = override.Models()
	}
	priority := spec.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}
	return &types.Task{
		ID:         uuid.NewString(),
		Prompt:     spec.Prompt,
		Context:    spec.Context,
		Priority:   priority,
		ModelChain: models,
		Status:     types.TaskPending,
	}, nil
}

// Get returns the live batch, if still registered.
func (r *Registry) Get(batchID string) (*types.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.batches[batchID]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return entry.batch, nil
}

// Status returns a consistent point-in-time snapshot of the batch. For
// batches no longer in memory it falls back to the archive when one is
// configured.
func (r *Registry) Status(ctx context.Context, batchID string) (types.Snapshot, error) {
	r.mu.RLock()
	entry, ok := r.batches[batchID]
	r.mu.RUnlock()
	if ok {
		return entry.batch.Snapshot(), nil
	}

	if r.archive != nil {
		result, err := r.archive.Load(ctx, batchID)
		if err == nil {
			return snapshotFromResult(result), nil
		}
		if !errors.Is(err, ErrBatchNotFound) {
			return types.Snapshot{}, err
		}
	}
	return types.Snapshot{}, ErrBatchNotFound
}

func snapshotFromResult(res *types.BatchResult) types.Snapshot {
	done := res.CompletedAt
	return types.Snapshot{
		BatchID: res.BatchID,
		Status:  types.BatchCompleted,
		Counts: types.TaskCounts{
			Succeeded: res.CompletedTasks,
			Failed:    res.FailedTasks,
		},
		CreatedAt:   res.CreatedAt,
		CompletedAt: &done,
		TotalTime:   res.TotalTime,
		Results:     res.Results,
	}
}

// Wait blocks until the batch completes or ctx expires, then returns the
// materialized result.
func (r *Registry) Wait(ctx context.Context, batchID string) (*types.BatchResult, error) {
	r.mu.RLock()
	entry, ok := r.batches[batchID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrBatchNotFound
	}

	select {
	case <-entry.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	result, ok := entry.batch.Result()
	if !ok {
		return nil, types.NewError(types.KindInternal, "batch finished without a result")
	}
	return result, nil
}

// SubmitWait submits a batch and blocks until it completes.
func (r *Registry) SubmitWait(ctx context.Context, specs []TaskSpec, parallel bool) (*types.BatchResult, error) {
	b, err := r.Submit(specs, parallel)
	if err != nil {
		return nil, err
	}
	return r.Wait(ctx, b.ID)
}

// Cancel stops a running batch. Pending tasks fail immediately with a
// cancelled error; in-flight attempts are abandoned and their results
// discarded. Completed batches are unaffected. No-op beyond the first
// call.
func (r *Registry) Cancel(batchID string) error {
	r.mu.RLock()
	entry, ok := r.batches[batchID]
	r.mu.RUnlock()
	if !ok {
		return ErrBatchNotFound
	}
	entry.cancel()
	r.logger.Info("batch cancelled", zap.String("batch_id", batchID))
	return nil
}

// Remove cancels the batch if still running and drops it from memory.
// Archived results remain retrievable through Status.
func (r *Registry) Remove(batchID string) error {
	r.mu.Lock()
	entry, ok := r.batches[batchID]
	if ok {
		delete(r.batches, batchID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrBatchNotFound
	}
	entry.cancel()
	return nil
}

// Close cancels every running batch and waits for their goroutines to
// drain, bounded by ctx.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
