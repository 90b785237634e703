package types

import (
	"time"
)

// TaskStatus tracks a task through its lifecycle.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether no further transitions occur.
func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// TaskPriority orders tasks within a batch. Higher priorities are
// dispatched first; ordering is stable for equal priorities.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Rank returns the numeric weight of the priority. Unknown values rank
// as medium.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 1
	}
}

// Attempt is one entry in a task's attempt history.
type Attempt struct {
	Model    string        `json:"model"`
	Kind     ErrorKind     `json:"kind,omitempty"` // empty on success
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Task is the unit of work: one prompt tracked through attempts across a
// model fallback chain.
//
// ID, Prompt, Context, Priority and ModelChain are immutable after
// creation. The remaining fields are mutated only by the dispatcher while
// it owns the task; concurrent readers go through the owning Batch, which
// serializes access.
type Task struct {
	ID       string            `json:"id"`
	Prompt   string            `json:"prompt"`
	Context  map[string]string `json:"context,omitempty"`
	Priority TaskPriority      `json:"priority"`

	// ModelChain is shared read-only across tasks created from the same
	// configuration. ChainIndex advances only on quota failure and never
	// exceeds len(ModelChain)-1.
	ModelChain []string `json:"model_chain"`
	ChainIndex int      `json:"chain_index"`

	Status   TaskStatus `json:"status"`
	Attempts int        `json:"attempts"`
	History  []Attempt  `json:"history,omitempty"`

	Result string `json:"result,omitempty"` // set iff Status == TaskSucceeded
	Err    *Error `json:"error,omitempty"`  // set iff Status == TaskFailed
}

// CurrentModel returns the model the next attempt will use.
func (t *Task) CurrentModel() string {
	if t.ChainIndex < len(t.ModelChain) {
		return t.ModelChain[t.ChainIndex]
	}
	return ""
}

// Terminal reports whether the task reached a final status.
func (t *Task) Terminal() bool {
	return t.Status.Terminal()
}

// TaskResult is the caller-facing view of a finished (or in-flight) task.
type TaskResult struct {
	TaskID   string        `json:"task_id"`
	Status   TaskStatus    `json:"status"`
	Model    string        `json:"model,omitempty"`
	Result   string        `json:"result,omitempty"`
	Error    *Error        `json:"error,omitempty"`
	Attempts int           `json:"attempts"`
	History  []Attempt     `json:"history,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}
