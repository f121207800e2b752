package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/domain"
)

// timeoutErrorMessage is appended to a report's error list when the overall
// deadline elapses between batches.
const timeoutErrorMessage = "Parallel execution timed out"

// TaskExecutor executes one subtask. Implementations never return an error;
// failures are captured inside the result.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, st domain.SubTask) domain.SubTaskResult
}

// ProgressFunc is invoked once per settled subtask with the number of
// settled subtasks so far, the total, and the subtask's result.
type ProgressFunc func(settled, total int, result domain.SubTaskResult)

// RunnerOptions configure one runParallel invocation.
type RunnerOptions struct {
	// MaxConcurrent bounds in-flight executions. Values outside 1..10 are
	// clamped to the hard ceiling.
	MaxConcurrent int
	// BatchSize is the number of subtasks dispatched per batch. Zero means
	// batches of MaxConcurrent.
	BatchSize int
	// StopOnFirstError stops dispatching further batches once any subtask
	// in a settled batch has failed. The failing batch itself always runs
	// to completion.
	StopOnFirstError bool
	// Timeout bounds the whole invocation. It is checked between batches
	// only; in-flight work is never cancelled mid-call. Zero means no
	// timeout.
	Timeout time.Duration
	// OnProgress, if set, fires on every settled subtask.
	OnProgress ProgressFunc
}

// RunReport is the outcome of one runParallel invocation. Results holds one
// entry per dispatched subtask keyed by subtask ID; subtasks skipped by
// stop-on-first-error or timeout have no entry.
type RunReport struct {
	Results   map[string]domain.SubTaskResult
	Completed int
	Failed    int
	Errors    []string
}

// Runner executes subtask lists in priority-ordered, batch-synchronous
// batches: every batch settles completely before the next one starts.
// Each subtask's execution is isolated; a panic inside one becomes a
// failed result for that subtask only.
type Runner struct {
	executor TaskExecutor
	logger   *zap.Logger
}

// NewRunner creates a batch runner over the given executor.
func NewRunner(executor TaskExecutor, logger *zap.Logger) *Runner {
	return &Runner{executor: executor, logger: logger}
}

// RunParallel executes the subtasks per opts and returns a report. It never
// returns an error: timeouts and per-subtask failures are reported in the
// RunReport, and already-produced results survive both.
func (r *Runner) RunParallel(ctx context.Context, tasks []domain.SubTask, opts RunnerOptions) *RunReport {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 || maxConcurrent > domain.MaxConcurrentLimit {
		maxConcurrent = domain.MaxConcurrentLimit
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = maxConcurrent
	}

	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}

	ordered := sortByPriority(tasks)
	total := len(ordered)
	report := &RunReport{Results: make(map[string]domain.SubTaskResult, total)}

	for start := 0; start < total; start += batchSize {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			r.logger.Warn("batch runner timed out, truncating remaining work",
				zap.Int("settled", len(report.Results)),
				zap.Int("total", total))
			report.Errors = append(report.Errors, timeoutErrorMessage)
			return report
		}
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("execution cancelled: %v", err))
			return report
		}

		end := start + batchSize
		if end > total {
			end = total
		}
		r.runBatch(ctx, ordered[start:end], maxConcurrent, total, opts.OnProgress, report)

		if opts.StopOnFirstError && report.Failed > 0 {
			r.logger.Info("stopping after failed batch",
				zap.Int("settled", len(report.Results)),
				zap.Int("failed", report.Failed))
			return report
		}
	}

	return report
}

// runBatch dispatches one batch and waits for every member to settle.
// Subtask executions run under a context detached from cancellation: the
// only cancellation surface is "do not start the next batch".
func (r *Runner) runBatch(
	ctx context.Context,
	batch []domain.SubTask,
	maxConcurrent int,
	total int,
	onProgress ProgressFunc,
	report *RunReport,
) {
	sem := make(chan struct{}, maxConcurrent)
	results := make([]domain.SubTaskResult, len(batch))
	var wg sync.WaitGroup

	execCtx := context.WithoutCancel(ctx)
	for i, st := range batch {
		wg.Add(1)
		go func(i int, st domain.SubTask) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = r.executeSafely(execCtx, st)
		}(i, st)
	}
	wg.Wait()

	for _, res := range results {
		report.Results[res.TaskID] = res
		if res.Failed() {
			report.Failed++
			report.Errors = append(report.Errors,
				fmt.Sprintf("subtask %s: %s", res.TaskID, res.Error))
		} else {
			report.Completed++
		}
		if onProgress != nil {
			onProgress(len(report.Results), total, res)
		}
	}
}

// RunOne executes a single subtask with the runner's panic isolation. The
// sequential strategy uses it to preserve strict FIFO order, which
// RunParallel's priority sort would break.
func (r *Runner) RunOne(ctx context.Context, st domain.SubTask) domain.SubTaskResult {
	return r.executeSafely(ctx, st)
}

// executeSafely runs one subtask and converts a panic into a failed result.
func (r *Runner) executeSafely(ctx context.Context, st domain.SubTask) (result domain.SubTaskResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subtask execution panicked",
				zap.String("subtask_id", st.ID),
				zap.Any("panic", rec))
			result = domain.SubTaskResult{
				TaskID:        st.ID,
				Description:   st.Description,
				AccountUsed:   "unknown",
				ExecutionTime: time.Since(start),
				Error:         fmt.Sprintf("panic: %v", rec),
			}
		}
	}()
	return r.executor.ExecuteTask(ctx, st)
}

// sortByPriority returns the subtasks ordered by descending priority. Ties
// keep their input order.
func sortByPriority(tasks []domain.SubTask) []domain.SubTask {
	ordered := make([]domain.SubTask, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return ordered
}
