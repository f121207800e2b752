package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/application/workers"
	"github.com/disasterproject/fanout/internal/domain"
	"github.com/disasterproject/fanout/internal/ports"
)

func newTestAggregator(t *testing.T, backend ports.Backend) (*Aggregator, *workers.Pool) {
	t.Helper()
	pool := newTestPool(t, backend)
	a := NewAggregator(pool, domain.DefaultCatalog(), workers.NewCharEstimator(), zap.NewNop())
	return a, pool
}

func TestAggregateSynthesizesFinalAnswer(t *testing.T) {
	t.Parallel()

	backend := &replyBackend{reply: "the combined answer"}
	a, pool := newTestAggregator(t, backend)

	results := []domain.SubTaskResult{
		{TaskID: "a", Description: "gather data", Result: "data gathered"},
		{TaskID: "b", Description: "analyze data", Error: "timeout talking to backend"},
	}

	final, err := a.Aggregate(context.Background(), domain.Task{ID: "t1", Description: "study the data"}, results)
	require.NoError(t, err)
	assert.Equal(t, "the combined answer", final)

	// One top-tier call carrying both outcomes, failures marked.
	catalog := domain.DefaultCatalog()
	require.Equal(t, []string{catalog.AggregatorModel()}, backend.models)
	require.Len(t, backend.prompts, 1)
	prompt := backend.prompts[0]
	assert.Contains(t, prompt, "study the data")
	assert.Contains(t, prompt, "data gathered")
	assert.Contains(t, prompt, "FAILED: timeout talking to backend")

	// Aggregation usage is charged to the pool.
	stats := pool.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].Requests)
	assert.Positive(t, stats[0].Tokens)
}

func TestAggregateTruncatesLongResults(t *testing.T) {
	t.Parallel()

	backend := &replyBackend{reply: "ok"}
	a, _ := newTestAggregator(t, backend)

	long := strings.Repeat("x", maxResultExcerpt+500)
	results := []domain.SubTaskResult{
		{TaskID: "a", Description: "long step", Result: long},
		{TaskID: "b", Description: "short step", Result: "short"},
	}

	_, err := a.Aggregate(context.Background(), domain.Task{ID: "t1", Description: "task"}, results)
	require.NoError(t, err)

	require.Len(t, backend.prompts, 1)
	prompt := backend.prompts[0]
	assert.Contains(t, prompt, truncationMarker)
	assert.NotContains(t, prompt, long)
	assert.Contains(t, prompt, long[:maxResultExcerpt])
	assert.Contains(t, prompt, "short")
}

func TestAggregateBackendFailureIsFatal(t *testing.T) {
	t.Parallel()

	backend := &replyBackend{err: errors.New("overloaded")}
	a, _ := newTestAggregator(t, backend)

	_, err := a.Aggregate(context.Background(), domain.Task{ID: "t1", Description: "task"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAggregation)
}
