package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/domain"
)

// summaryExcerpt bounds how much of a finished subtask's result is carried
// forward into later subtasks' context.
const summaryExcerpt = 400

// StateFunc observes a run's state transitions.
type StateFunc func(taskID string, state domain.RunState)

// RunProgressFunc observes settled subtasks across a whole run.
type RunProgressFunc func(taskID string, settled, total int, result domain.SubTaskResult)

// EngineOptions configure an execution engine.
type EngineOptions struct {
	// MaxConcurrent bounds simultaneous subtask executions; clamped to
	// 1..domain.MaxConcurrentLimit by the runner.
	MaxConcurrent int
	// ExecutionTimeout bounds the executing stage of a run. Checked only
	// between batches and sequential steps. Zero means no timeout.
	ExecutionTimeout time.Duration
	// OnState, if set, fires on every run state transition.
	OnState StateFunc
	// OnProgress, if set, fires once per settled subtask.
	OnProgress RunProgressFunc
}

// Engine drives a full orchestration run: decomposition, strategy dispatch,
// subtask execution and final aggregation. Orchestrate always returns a
// Result and never panics out; outcome is communicated through the result's
// Success and Error fields.
type Engine struct {
	decomposer *Decomposer
	runner     *Runner
	aggregator *Aggregator
	opts       EngineOptions
	logger     *zap.Logger
}

// NewEngine creates an execution engine from its collaborators.
func NewEngine(
	decomposer *Decomposer,
	runner *Runner,
	aggregator *Aggregator,
	opts EngineOptions,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		decomposer: decomposer,
		runner:     runner,
		aggregator: aggregator,
		opts:       opts,
		logger:     logger,
	}
}

// Orchestrate runs one task end to end. A non-empty override beats the
// decomposer's recommended strategy. The run moves through decomposing,
// executing and aggregating; decomposition and aggregation failures are
// fatal to the run, individual subtask failures are not. Totals sum over
// subtask results only.
func (e *Engine) Orchestrate(ctx context.Context, task domain.Task, override domain.Strategy) (result *domain.Result) {
	start := time.Now()
	result = &domain.Result{TaskID: task.ID}

	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("orchestration panicked",
				zap.String("task_id", task.ID),
				zap.Any("panic", rec))
			result.Error = fmt.Sprintf("orchestration panicked: %v", rec)
		}
		result.ExecutionTime = time.Since(start)
		result.Success = result.Error == "" && allSucceeded(result.SubTaskResults)
		if result.Error != "" {
			e.setState(task.ID, domain.RunStateFailed)
		} else {
			e.setState(task.ID, domain.RunStateCompleted)
		}
	}()

	e.setState(task.ID, domain.RunStateDecomposing)
	decomposition, err := e.decomposer.Decompose(ctx, task)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	strategy := decomposition.RecommendedStrategy
	if override != "" {
		strategy = override
	}
	result.Strategy = strategy

	e.logger.Info("executing run",
		zap.String("task_id", task.ID),
		zap.String("strategy", string(strategy)),
		zap.Int("subtasks", len(decomposition.SubTasks)))

	e.setState(task.ID, domain.RunStateExecuting)
	var (
		results []domain.SubTaskResult
		runErr  string
	)
	switch strategy {
	case domain.StrategyParallel:
		results, runErr = e.runAllParallel(ctx, task.ID, decomposition.SubTasks)
	case domain.StrategySequential:
		results, runErr = e.runSequential(ctx, task.ID, decomposition.SubTasks)
	case domain.StrategyAdaptive:
		results, runErr = e.runAdaptive(ctx, task.ID, decomposition.SubTasks)
	default:
		result.Error = fmt.Sprintf("unknown execution strategy: %q", strategy)
		return result
	}

	result.SubTaskResults = results
	for _, res := range results {
		result.TotalTokens += res.Tokens
		result.TotalCost += res.Cost
	}
	if runErr != "" {
		result.Error = runErr
		return result
	}

	e.setState(task.ID, domain.RunStateAggregating)
	final, err := e.aggregator.Aggregate(ctx, task, results)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.FinalResult = final

	return result
}

// runAllParallel executes every subtask in one parallel invocation.
func (e *Engine) runAllParallel(ctx context.Context, taskID string, subTasks []domain.SubTask) ([]domain.SubTaskResult, string) {
	report := e.runner.RunParallel(ctx, subTasks, RunnerOptions{
		MaxConcurrent: e.opts.MaxConcurrent,
		Timeout:       e.opts.ExecutionTimeout,
		OnProgress:    e.batchProgress(taskID, len(subTasks)),
	})
	return resultsInOrder(subTasks, report.Results), runLevelError(report)
}

// runSequential executes subtasks one at a time in strict list order. After
// each success, a summary is appended to the context of every not-yet-run
// subtask. Propagation is additive.
func (e *Engine) runSequential(ctx context.Context, taskID string, subTasks []domain.SubTask) ([]domain.SubTaskResult, string) {
	deadline := e.executionDeadline()
	total := len(subTasks)
	results := make([]domain.SubTaskResult, 0, total)

	execCtx := context.WithoutCancel(ctx)
	for i := range subTasks {
		if msg := e.stageCheck(ctx, deadline); msg != "" {
			return results, msg
		}

		res := e.runner.RunOne(execCtx, subTasks[i])
		results = append(results, res)
		e.progress(taskID, len(results), total, res)

		if !res.Failed() {
			carryForward(subTasks[i+1:], summarize(res))
		}
	}
	return results, ""
}

// runAdaptive executes subtasks in fixed-size batches, each batch in
// parallel, with the sequential carry-forward rule applied to all later
// batches after each batch settles. A heuristic, not dependency-graph
// scheduling: DependsOn is carried on the subtask but not honored here.
func (e *Engine) runAdaptive(ctx context.Context, taskID string, subTasks []domain.SubTask) ([]domain.SubTaskResult, string) {
	deadline := e.executionDeadline()
	total := len(subTasks)
	settled := 0
	results := make([]domain.SubTaskResult, 0, total)

	for start := 0; start < total; start += domain.AdaptiveBatchSize {
		if msg := e.stageCheck(ctx, deadline); msg != "" {
			return results, msg
		}

		end := start + domain.AdaptiveBatchSize
		if end > total {
			end = total
		}
		batch := subTasks[start:end]

		report := e.runner.RunParallel(ctx, batch, RunnerOptions{
			MaxConcurrent: e.opts.MaxConcurrent,
			OnProgress: func(_, _ int, res domain.SubTaskResult) {
				settled++
				e.progress(taskID, settled, total, res)
			},
		})

		for _, st := range batch {
			res, ok := report.Results[st.ID]
			if !ok {
				continue
			}
			results = append(results, res)
			if !res.Failed() {
				carryForward(subTasks[end:], summarize(res))
			}
		}
	}
	return results, ""
}

// stageCheck is the engine's only cancellation surface: it is consulted
// between batches and sequential steps, never mid-call.
func (e *Engine) stageCheck(ctx context.Context, deadline time.Time) string {
	if !deadline.IsZero() && !time.Now().Before(deadline) {
		return timeoutErrorMessage
	}
	if err := ctx.Err(); err != nil {
		return fmt.Sprintf("execution cancelled: %v", err)
	}
	return ""
}

func (e *Engine) executionDeadline() time.Time {
	if e.opts.ExecutionTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(e.opts.ExecutionTimeout)
}

func (e *Engine) batchProgress(taskID string, total int) ProgressFunc {
	return func(settled, _ int, res domain.SubTaskResult) {
		e.progress(taskID, settled, total, res)
	}
}

func (e *Engine) progress(taskID string, settled, total int, res domain.SubTaskResult) {
	if e.opts.OnProgress != nil {
		e.opts.OnProgress(taskID, settled, total, res)
	}
}

func (e *Engine) setState(taskID string, state domain.RunState) {
	if e.opts.OnState != nil {
		e.opts.OnState(taskID, state)
	}
}

// runLevelError extracts a run-fatal message from a report. Individual
// subtask failures are not run-fatal; a timeout or cancellation is.
func runLevelError(report *RunReport) string {
	for _, msg := range report.Errors {
		if msg == timeoutErrorMessage || strings.HasPrefix(msg, "execution cancelled") {
			return msg
		}
	}
	return ""
}

// resultsInOrder reassembles the keyed results in decomposition order,
// skipping subtasks that never ran.
func resultsInOrder(subTasks []domain.SubTask, keyed map[string]domain.SubTaskResult) []domain.SubTaskResult {
	out := make([]domain.SubTaskResult, 0, len(keyed))
	for _, st := range subTasks {
		if res, ok := keyed[st.ID]; ok {
			out = append(out, res)
		}
	}
	return out
}

// carryForward appends a summary to the context of every pending subtask.
func carryForward(pending []domain.SubTask, summary string) {
	for i := range pending {
		if pending[i].Context == "" {
			pending[i].Context = summary
		} else {
			pending[i].Context += "\n" + summary
		}
	}
}

// summarize renders one finished subtask as a short carry-forward line.
func summarize(res domain.SubTaskResult) string {
	text := res.Result
	if len(text) > summaryExcerpt {
		text = text[:summaryExcerpt] + truncationMarker
	}
	return fmt.Sprintf("Completed %q: %s", res.Description, text)
}

func allSucceeded(results []domain.SubTaskResult) bool {
	for _, res := range results {
		if res.Failed() {
			return false
		}
	}
	return true
}
