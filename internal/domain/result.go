package domain

import "time"

// RunState tracks an orchestration run through its lifecycle.
type RunState string

const (
	RunStateSubmitted   RunState = "submitted"
	RunStateDecomposing RunState = "decomposing"
	RunStateExecuting   RunState = "executing"
	RunStateAggregating RunState = "aggregating"
	RunStateCompleted   RunState = "completed"
	RunStateFailed      RunState = "failed"
	RunStateCancelled   RunState = "cancelled"
)

// Terminal reports whether the state is final.
func (s RunState) Terminal() bool {
	return s == RunStateCompleted || s == RunStateFailed || s == RunStateCancelled
}

// SubTaskResult is produced exactly once per subtask per run and is
// immutable after creation.
type SubTaskResult struct {
	TaskID        string        `json:"task_id"`
	Description   string        `json:"description"`
	Result        string        `json:"result,omitempty"`
	Model         string        `json:"model"`
	Tokens        int           `json:"tokens"`
	Cost          float64       `json:"cost"`
	AccountUsed   string        `json:"account_used"`
	ExecutionTime time.Duration `json:"execution_time"`
	Error         string        `json:"error,omitempty"`
}

// Failed reports whether the subtask execution ended in an error.
func (r SubTaskResult) Failed() bool {
	return r.Error != ""
}

// Result is the outcome of one orchestration run. TotalTokens and TotalCost
// are sums over the subtask results only: the decomposition and aggregation
// calls are recorded against the worker pool but deliberately excluded from
// the run totals.
type Result struct {
	TaskID         string          `json:"task_id"`
	SubTaskResults []SubTaskResult `json:"sub_task_results"`
	FinalResult    string          `json:"final_result,omitempty"`
	TotalTokens    int             `json:"total_tokens"`
	TotalCost      float64         `json:"total_cost"`
	ExecutionTime  time.Duration   `json:"execution_time"`
	Strategy       Strategy        `json:"strategy,omitempty"`
	Success        bool            `json:"success"`
	Error          string          `json:"error,omitempty"`
}

// AccountStats is a read-only snapshot of one account's cumulative usage.
type AccountStats struct {
	Name     string  `json:"name"`
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	Cost     float64 `json:"cost"`
}
