package workers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/domain"
	"github.com/disasterproject/fanout/internal/ports"
)

// scriptedBackend replies with a fixed completion or a fixed error and
// records every call.
type scriptedBackend struct {
	reply string
	err   error

	mu    sync.Mutex
	calls []string // models called
}

func (b *scriptedBackend) Complete(ctx context.Context, model string, messages []domain.Message) (*domain.Completion, error) {
	b.mu.Lock()
	b.calls = append(b.calls, model)
	b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return &domain.Completion{Content: b.reply}, nil
}

func newExecutorWithBackend(t *testing.T, backend ports.Backend) (*Executor, *Pool) {
	t.Helper()
	factory := func(credential string) (ports.Backend, error) { return backend, nil }
	pool, err := NewPool(namedConfigs("main"), domain.BalanceRoundRobin, domain.DefaultCatalog(), factory, zap.NewNop())
	require.NoError(t, err)
	executor := NewExecutor(pool, domain.DefaultCatalog(), NewCharEstimator(), ports.NopMetrics{}, zap.NewNop())
	return executor, pool
}

func TestExecuteTaskSuccess(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{reply: "the answer"}
	executor, pool := newExecutorWithBackend(t, backend)

	st := domain.SubTask{
		ID:          "st-1",
		Description: "summarize the report",
		Complexity:  domain.ComplexitySimple,
	}
	res := executor.ExecuteTask(context.Background(), st)

	require.Empty(t, res.Error)
	assert.False(t, res.Failed())
	assert.Equal(t, "st-1", res.TaskID)
	assert.Equal(t, "the answer", res.Result)
	assert.Equal(t, "main", res.AccountUsed)

	catalog := domain.DefaultCatalog()
	model := catalog.ModelFor(domain.ComplexitySimple)
	assert.Equal(t, model, res.Model)
	assert.Equal(t, []string{model}, backend.calls)

	// Tokens estimated over prompt plus reply, cost from the tier price.
	chars := len(subtaskSystemPrompts[domain.ComplexitySimple]) + len(st.Description) + len("the answer")
	wantTokens := (chars + 3) / 4
	assert.Equal(t, wantTokens, res.Tokens)
	assert.InDelta(t, float64(wantTokens)/1000*catalog.PricePer1K(model), res.Cost, 1e-9)

	// Usage lands on the pool.
	stats := pool.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(wantTokens), stats[0].Tokens)
	assert.Equal(t, int64(1), stats[0].Requests)
}

func TestExecuteTaskIncludesContextInPrompt(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{reply: "ok"}
	executor, _ := newExecutorWithBackend(t, backend)

	st := domain.SubTask{
		ID:          "st-1",
		Description: "continue the work",
		Complexity:  domain.ComplexityMedium,
		Context:     "earlier findings",
	}
	res := executor.ExecuteTask(context.Background(), st)
	require.Empty(t, res.Error)

	// Context lengthens the user prompt and therefore the estimate.
	base := len(subtaskSystemPrompts[domain.ComplexityMedium]) + len(st.Description) +
		len("\n\nContext:\n") + len(st.Context) + len("ok")
	assert.Equal(t, (base+3)/4, res.Tokens)
}

func TestExecuteTaskBackendFailure(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{err: errors.New("rate limited")}
	executor, pool := newExecutorWithBackend(t, backend)

	st := domain.SubTask{
		ID:          "st-2",
		Description: "do the thing",
		Complexity:  domain.ComplexityComplex,
	}
	res := executor.ExecuteTask(context.Background(), st)

	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, "rate limited")
	assert.Zero(t, res.Tokens)
	assert.Zero(t, res.Cost)
	assert.Empty(t, res.Result)
	assert.Equal(t, "unknown", res.AccountUsed)

	// Failed calls record no usage.
	stats := pool.Stats()
	require.Len(t, stats, 1)
	assert.Zero(t, stats[0].Tokens)
}
