package workers

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/domain"
	"github.com/disasterproject/fanout/internal/ports"
)

// unknownAccount is reported on results whose execution failed before or
// during the backend call.
const unknownAccount = "unknown"

// subtaskSystemPrompts keys the executor's system prompt by complexity.
var subtaskSystemPrompts = map[domain.Complexity]string{
	domain.ComplexitySimple: "You are a capable assistant. Complete the task " +
		"directly and concisely. Do not add commentary beyond the task itself.",
	domain.ComplexityMedium: "You are an expert assistant. Complete the task " +
		"thoroughly, explaining key decisions where they matter.",
	domain.ComplexityComplex: "You are a senior expert assistant. Reason " +
		"carefully about the task, consider edge cases, and produce a complete, " +
		"well-structured answer.",
}

// Executor runs a single subtask: it maps complexity to a model tier,
// acquires a worker from the pool, performs the backend call and records
// usage. It never returns an error; all failures are captured in the
// result. Safe to invoke concurrently for independent subtasks.
type Executor struct {
	pool      *Pool
	catalog   domain.Catalog
	estimator ports.TokenEstimator
	metrics   ports.MetricsCollector
	logger    *zap.Logger
}

// NewExecutor creates a subtask executor.
func NewExecutor(
	pool *Pool,
	catalog domain.Catalog,
	estimator ports.TokenEstimator,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		pool:      pool,
		catalog:   catalog,
		estimator: estimator,
		metrics:   metrics,
		logger:    logger,
	}
}

// ExecuteTask executes one subtask and returns its result.
func (e *Executor) ExecuteTask(ctx context.Context, st domain.SubTask) domain.SubTaskResult {
	start := time.Now()
	model := e.catalog.ModelFor(st.Complexity)

	account, err := e.pool.Acquire(st.Complexity)
	if err != nil {
		return e.failed(st, model, err, start)
	}

	messages := buildSubtaskMessages(st)
	completion, err := account.Backend().Complete(ctx, model, messages)
	if err != nil {
		e.logger.Warn("subtask execution failed",
			zap.String("subtask_id", st.ID),
			zap.String("model", model),
			zap.String("account", account.Name()),
			zap.Error(err))
		return e.failed(st, model, err, start)
	}

	var chars strings.Builder
	for _, m := range messages {
		chars.WriteString(m.Content)
	}
	chars.WriteString(completion.Content)
	tokens := e.estimator.Estimate(chars.String())
	cost := float64(tokens) / 1000 * account.PricePer1K(st.Complexity)

	if err := e.pool.RecordUsage(account.Name(), tokens, cost); err != nil {
		e.logger.Error("record usage failed",
			zap.String("account", account.Name()),
			zap.Error(err))
	}

	elapsed := time.Since(start)
	e.metrics.RecordSubTaskExecuted(model, "success", elapsed)
	e.metrics.RecordLLMUsage(model, account.Name(), tokens, cost)

	e.logger.Debug("subtask executed",
		zap.String("subtask_id", st.ID),
		zap.String("model", model),
		zap.String("account", account.Name()),
		zap.Int("tokens", tokens),
		zap.Duration("duration", elapsed))

	return domain.SubTaskResult{
		TaskID:        st.ID,
		Description:   st.Description,
		Result:        completion.Content,
		Model:         model,
		Tokens:        tokens,
		Cost:          cost,
		AccountUsed:   account.Name(),
		ExecutionTime: elapsed,
	}
}

func (e *Executor) failed(st domain.SubTask, model string, err error, start time.Time) domain.SubTaskResult {
	elapsed := time.Since(start)
	e.metrics.RecordSubTaskExecuted(model, "error", elapsed)
	return domain.SubTaskResult{
		TaskID:        st.ID,
		Description:   st.Description,
		Model:         model,
		AccountUsed:   unknownAccount,
		ExecutionTime: elapsed,
		Error:         err.Error(),
	}
}

// buildSubtaskMessages builds the two-message prompt for a subtask: a
// system prompt keyed by complexity and a user prompt with the description
// and any carried-forward context.
func buildSubtaskMessages(st domain.SubTask) []domain.Message {
	user := st.Description
	if st.Context != "" {
		user = st.Description + "\n\nContext:\n" + st.Context
	}
	return []domain.Message{
		{Role: domain.RoleSystem, Content: subtaskSystemPrompts[st.Complexity]},
		{Role: domain.RoleUser, Content: user},
	}
}
