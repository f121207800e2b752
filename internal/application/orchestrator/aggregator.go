package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/application/workers"
	"github.com/disasterproject/fanout/internal/domain"
	"github.com/disasterproject/fanout/internal/ports"
)

const (
	// maxResultExcerpt bounds how much of a subtask's result text is fed
	// into the aggregation prompt.
	maxResultExcerpt = 2000

	// truncationMarker is appended to excerpts that were cut, so a reader
	// can tell content is missing.
	truncationMarker = "\n[... truncated ...]"
)

// Aggregator performs the single top-tier synthesis call that turns the
// full subtask result set into one final answer. There is no retry and no
// partial aggregation: a failure here fails the whole run.
type Aggregator struct {
	pool      *workers.Pool
	catalog   domain.Catalog
	estimator ports.TokenEstimator
	logger    *zap.Logger
}

// NewAggregator creates a result aggregator.
func NewAggregator(
	pool *workers.Pool,
	catalog domain.Catalog,
	estimator ports.TokenEstimator,
	logger *zap.Logger,
) *Aggregator {
	return &Aggregator{
		pool:      pool,
		catalog:   catalog,
		estimator: estimator,
		logger:    logger,
	}
}

// Aggregate synthesizes the final answer from all subtask results, failed
// ones included. Errors wrap domain.ErrAggregation. The call's own usage is
// charged to the pool but deliberately excluded from run totals.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	task domain.Task,
	results []domain.SubTaskResult,
) (string, error) {
	account, err := a.pool.Acquire(domain.ComplexityComplex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAggregation, err)
	}

	prompt := fmt.Sprintf(aggregationPrompt, task.Description, formatOutcomes(results))
	messages := []domain.Message{
		{Role: domain.RoleUser, Content: prompt},
	}

	model := a.catalog.AggregatorModel()
	completion, err := account.Backend().Complete(ctx, model, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAggregation, err)
	}

	tokens := a.estimator.Estimate(prompt + completion.Content)
	cost := float64(tokens) / 1000 * account.PricePer1K(domain.ComplexityComplex)
	if err := a.pool.RecordUsage(account.Name(), tokens, cost); err != nil {
		a.logger.Error("record aggregation usage failed",
			zap.String("account", account.Name()),
			zap.Error(err))
	}

	a.logger.Debug("results aggregated",
		zap.String("task_id", task.ID),
		zap.String("model", model),
		zap.Int("subtasks", len(results)),
		zap.Int("tokens", tokens))

	return completion.Content, nil
}

// formatOutcomes renders the subtask outcomes as an enumerated list. Long
// result texts are cut at maxResultExcerpt with an explicit marker.
func formatOutcomes(results []domain.SubTaskResult) string {
	var b strings.Builder
	for i, res := range results {
		fmt.Fprintf(&b, "%d. %s", i+1, res.Description)
		if res.Failed() {
			fmt.Fprintf(&b, "\n   FAILED: %s\n", res.Error)
			continue
		}
		b.WriteString("\n   Result: ")
		b.WriteString(excerpt(res.Result))
		b.WriteString("\n")
	}
	return b.String()
}

func excerpt(text string) string {
	if len(text) <= maxResultExcerpt {
		return text
	}
	return text[:maxResultExcerpt] + truncationMarker
}
