package types

import (
	"sync"
	"time"
)

// BatchStatus is the derived aggregate state of a batch. It is never
// stored; it is computed from the contained task statuses.
type BatchStatus string

const (
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
)

// TaskCounts is a point-in-time tally of task statuses within a batch.
type TaskCounts struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Total returns the number of tasks counted.
func (c TaskCounts) Total() int {
	return c.Pending + c.Running + c.Succeeded + c.Failed
}

// Batch is a fixed set of tasks submitted together and tracked as a unit.
// The task set never changes after construction. All task-state
// transitions go through the batch so that pollers reading a snapshot
// never observe a half-applied transition.
type Batch struct {
	ID        string    `json:"id"`
	Tasks     []*Task   `json:"tasks"` // submission order, fixed at creation
	Parallel  bool      `json:"parallel"`
	CreatedAt time.Time `json:"created_at"`

	mu          sync.RWMutex
	completedAt time.Time
}

// NewBatch creates a batch over the given tasks. The slice is owned by the
// batch afterwards.
func NewBatch(id string, tasks []*Task, parallel bool) *Batch {
	return &Batch{
		ID:        id,
		Tasks:     tasks,
		Parallel:  parallel,
		CreatedAt: time.Now(),
	}
}

// Status derives the aggregate state: completed iff every task is terminal.
func (b *Batch) Status() BatchStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.statusLocked()
}

func (b *Batch) statusLocked() BatchStatus {
	for _, t := range b.Tasks {
		if !t.Terminal() {
			return BatchRunning
		}
	}
	return BatchCompleted
}

// CompletedAt returns the completion time and whether it has been set.
// It is set exactly once, when the last task reaches a terminal status.
func (b *Batch) CompletedAt() (time.Time, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.completedAt, !b.completedAt.IsZero()
}

// Counts tallies current task statuses.
func (b *Batch) Counts() TaskCounts {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.countsLocked()
}

func (b *Batch) countsLocked() TaskCounts {
	var c TaskCounts
	for _, t := range b.Tasks {
		switch t.Status {
		case TaskPending:
			c.Pending++
		case TaskRunning:
			c.Running++
		case TaskSucceeded:
			c.Succeeded++
		case TaskFailed:
			c.Failed++
		}
	}
	return c
}

// MarkRunning moves a pending task to running and counts the attempt.
// Returns false if the task is not pending (already terminal or running),
// in which case the caller must not invoke it.
func (b *Batch) MarkRunning(t *Task) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.Status != TaskPending {
		return false
	}
	t.Status = TaskRunning
	t.Attempts++
	return true
}

// MarkSucceeded records a successful attempt and finalizes the task.
// No-op when the task is already terminal (a cancelled task's late result
// is discarded).
func (b *Batch) MarkSucceeded(t *Task, result string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.Terminal() {
		return
	}
	t.History = append(t.History, Attempt{Model: t.CurrentModel(), Duration: d})
	t.Status = TaskSucceeded
	t.Result = result
	t.Err = nil
	b.maybeCompleteLocked()
}

// MarkFailed records a failed attempt and finalizes the task with a
// terminal error. No-op when the task is already terminal.
func (b *Batch) MarkFailed(t *Task, err *Error, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.Terminal() {
		return
	}
	if d > 0 || t.Status == TaskRunning {
		t.History = append(t.History, Attempt{Model: t.CurrentModel(), Kind: err.Kind, Message: err.Message, Duration: d})
	}
	t.Status = TaskFailed
	t.Result = ""
	t.Err = err
	b.maybeCompleteLocked()
}

// RequeueFallback records a quota failure, advances the chain cursor and
// returns the task to pending for the next model tier. The caller must
// have verified that another tier exists.
func (b *Batch) RequeueFallback(t *Task, err *Error, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.Terminal() {
		return
	}
	t.History = append(t.History, Attempt{Model: t.CurrentModel(), Kind: err.Kind, Message: err.Message, Duration: d})
	t.ChainIndex++
	t.Status = TaskPending
}

// RequeueRetry records a transient failure and returns the task to pending
// at the same chain position.
func (b *Batch) RequeueRetry(t *Task, err *Error, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.Terminal() {
		return
	}
	t.History = append(t.History, Attempt{Model: t.CurrentModel(), Kind: err.Kind, Message: err.Message, Duration: d})
	t.Status = TaskPending
}

// maybeCompleteLocked stamps completedAt once, when the last task turns
// terminal.
func (b *Batch) maybeCompleteLocked() {
	if !b.completedAt.IsZero() {
		return
	}
	if b.statusLocked() == BatchCompleted {
		b.completedAt = time.Now()
	}
}

// Results materializes the caller-visible view of every task, in original
// submission order regardless of completion order.
func (b *Batch) Results() []TaskResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]TaskResult, len(b.Tasks))
	for i, t := range b.Tasks {
		out[i] = taskResultLocked(t)
	}
	return out
}

func taskResultLocked(t *Task) TaskResult {
	var total time.Duration
	model := ""
	history := make([]Attempt, len(t.History))
	for i, a := range t.History {
		total += a.Duration
		model = a.Model
		history[i] = a
	}
	return TaskResult{
		TaskID:   t.ID,
		Status:   t.Status,
		Model:    model,
		Result:   t.Result,
		Error:    t.Err,
		Attempts: t.Attempts,
		History:  history,
		Duration: total,
	}
}

// Snapshot is a consistent point-in-time view of a batch for polling
// callers. Results are included only once the batch has completed.
type Snapshot struct {
	BatchID     string       `json:"batch_id"`
	Status      BatchStatus  `json:"status"`
	Counts      TaskCounts   `json:"counts"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	TotalTime   time.Duration `json:"total_time,omitempty"`
	Results     []TaskResult `json:"results,omitempty"`
}

// Snapshot takes a consistent snapshot without blocking in-flight workers
// beyond the read lock.
func (b *Batch) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{
		BatchID:   b.ID,
		Status:    b.statusLocked(),
		Counts:    b.countsLocked(),
		CreatedAt: b.CreatedAt,
	}
	if !b.completedAt.IsZero() {
		done := b.completedAt
		s.CompletedAt = &done
		s.TotalTime = done.Sub(b.CreatedAt)
		s.Results = make([]TaskResult, len(b.Tasks))
		for i, t := range b.Tasks {
			s.Results[i] = taskResultLocked(t)
		}
	}
	return s
}

// BatchResult is the materialized outcome of a completed batch, suitable
// for archival.
type BatchResult struct {
	BatchID        string        `json:"batch_id"`
	CompletedTasks int           `json:"completed_tasks"`
	FailedTasks    int           `json:"failed_tasks"`
	TotalTasks     int           `json:"total_tasks"`
	Results        []TaskResult  `json:"results"`
	TotalTime      time.Duration `json:"total_time"`
	CreatedAt      time.Time     `json:"created_at"`
	CompletedAt    time.Time     `json:"completed_at"`
}

// Result materializes the batch outcome. Valid only once the batch has
// completed; returns false otherwise.
func (b *Batch) Result() (*BatchResult, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.completedAt.IsZero() {
		return nil, false
	}
	c := b.countsLocked()
	results := make([]TaskResult, len(b.Tasks))
	for i, t := range b.Tasks {
		results[i] = taskResultLocked(t)
	}
	return &BatchResult{
		BatchID:        b.ID,
		CompletedTasks: c.Succeeded,
		FailedTasks:    c.Failed,
		TotalTasks:     len(b.Tasks),
		Results:        results,
		TotalTime:      b.completedAt.Sub(b.CreatedAt),
		CreatedAt:      b.CreatedAt,
		CompletedAt:    b.completedAt,
	}, true
}
