package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/domain"
)

// fakeExecutor runs subtasks with configurable failures, panics and delay,
// and instruments concurrency.
type fakeExecutor struct {
	delay    time.Duration
	failIDs  map[string]bool
	panicIDs map[string]bool

	active    atomic.Int32
	maxActive atomic.Int32

	mu       sync.Mutex
	executed []string
}

func (f *fakeExecutor) ExecuteTask(ctx context.Context, st domain.SubTask) domain.SubTaskResult {
	cur := f.active.Add(1)
	for {
		max := f.maxActive.Load()
		if cur <= max || f.maxActive.CompareAndSwap(max, cur) {
			break
		}
	}
	defer f.active.Add(-1)

	f.mu.Lock()
	f.executed = append(f.executed, st.ID)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicIDs[st.ID] {
		panic("boom in " + st.ID)
	}
	if f.failIDs[st.ID] {
		return domain.SubTaskResult{TaskID: st.ID, Description: st.Description, Error: "simulated failure"}
	}
	return domain.SubTaskResult{TaskID: st.ID, Description: st.Description, Result: "done", Tokens: 10, Cost: 0.01}
}

func (f *fakeExecutor) executedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.executed))
	copy(out, f.executed)
	return out
}

func makeSubTasks(n int) []domain.SubTask {
	tasks := make([]domain.SubTask, 0, n)
	for i := 0; i < n; i++ {
		tasks = append(tasks, domain.SubTask{
			ID:          fmt.Sprintf("st-%d", i),
			Description: fmt.Sprintf("step %d", i),
			Complexity:  domain.ComplexitySimple,
		})
	}
	return tasks
}

func TestRunParallelAllTasksSettle(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	runner := NewRunner(exec, zap.NewNop())

	report := runner.RunParallel(context.Background(), makeSubTasks(7), RunnerOptions{MaxConcurrent: 3})

	assert.Len(t, report.Results, 7)
	assert.Equal(t, 7, report.Completed)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.Errors)
}

func TestRunParallelConcurrencyBound(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{delay: 20 * time.Millisecond}
	runner := NewRunner(exec, zap.NewNop())

	report := runner.RunParallel(context.Background(), makeSubTasks(12), RunnerOptions{
		MaxConcurrent: 3,
		BatchSize:     12,
	})

	assert.Len(t, report.Results, 12)
	assert.LessOrEqual(t, exec.maxActive.Load(), int32(3))
}

func TestRunParallelClampsMaxConcurrent(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{delay: 10 * time.Millisecond}
	runner := NewRunner(exec, zap.NewNop())

	// Values above the hard ceiling are clamped to it.
	report := runner.RunParallel(context.Background(), makeSubTasks(25), RunnerOptions{
		MaxConcurrent: 50,
		BatchSize:     25,
	})

	assert.Len(t, report.Results, 25)
	assert.LessOrEqual(t, exec.maxActive.Load(), int32(domain.MaxConcurrentLimit))
}

func TestRunParallelPriorityOrder(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	runner := NewRunner(exec, zap.NewNop())

	tasks := []domain.SubTask{
		{ID: "low", Description: "low", Priority: 1},
		{ID: "high", Description: "high", Priority: 9},
		{ID: "mid-first", Description: "mid", Priority: 5},
		{ID: "mid-second", Description: "mid", Priority: 5},
	}

	report := runner.RunParallel(context.Background(), tasks, RunnerOptions{MaxConcurrent: 1, BatchSize: 1})

	require.Len(t, report.Results, 4)
	// Descending priority, ties keep input order.
	assert.Equal(t, []string{"high", "mid-first", "mid-second", "low"}, exec.executedIDs())
}

func TestRunParallelStopOnFirstError(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{failIDs: map[string]bool{"st-1": true}}
	runner := NewRunner(exec, zap.NewNop())

	// 4 tasks in 2 batches of 2, batch 1 has one failure.
	report := runner.RunParallel(context.Background(), makeSubTasks(4), RunnerOptions{
		MaxConcurrent:    2,
		BatchSize:        2,
		StopOnFirstError: true,
	})

	assert.Len(t, report.Results, 2)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 1, report.Failed)
	assert.NotEmpty(t, report.Errors)

	// Batch 2 never dispatched.
	assert.ElementsMatch(t, []string{"st-0", "st-1"}, exec.executedIDs())
}

func TestRunParallelFailuresDoNotStopByDefault(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{failIDs: map[string]bool{"st-0": true, "st-2": true}}
	runner := NewRunner(exec, zap.NewNop())

	report := runner.RunParallel(context.Background(), makeSubTasks(4), RunnerOptions{
		MaxConcurrent: 2,
		BatchSize:     2,
	})

	assert.Len(t, report.Results, 4)
	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 2, report.Failed)
	assert.Len(t, report.Errors, 2)
}

func TestRunParallelTimeoutBetweenBatches(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{delay: 100 * time.Millisecond}
	runner := NewRunner(exec, zap.NewNop())

	report := runner.RunParallel(context.Background(), makeSubTasks(3), RunnerOptions{
		MaxConcurrent: 1,
		BatchSize:     1,
		Timeout:       50 * time.Millisecond,
	})

	// First batch settles past the deadline; later batches never start.
	assert.Len(t, report.Results, 1)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors, "Parallel execution timed out")
}

func TestRunParallelCancelledContext(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	runner := NewRunner(exec, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := runner.RunParallel(ctx, makeSubTasks(3), RunnerOptions{MaxConcurrent: 2})

	assert.Empty(t, report.Results)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "execution cancelled")
}

func TestRunParallelPanicBecomesFailedResult(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{panicIDs: map[string]bool{"st-1": true}}
	runner := NewRunner(exec, zap.NewNop())

	report := runner.RunParallel(context.Background(), makeSubTasks(3), RunnerOptions{MaxConcurrent: 3})

	require.Len(t, report.Results, 3)
	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Results["st-1"].Error, "panic")
	assert.False(t, report.Results["st-0"].Failed())
	assert.False(t, report.Results["st-2"].Failed())
}

func TestRunParallelProgressCallback(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{failIDs: map[string]bool{"st-2": true}}
	runner := NewRunner(exec, zap.NewNop())

	var mu sync.Mutex
	var settledCounts []int
	var totals []int

	runner.RunParallel(context.Background(), makeSubTasks(5), RunnerOptions{
		MaxConcurrent: 2,
		BatchSize:     2,
		OnProgress: func(settled, total int, res domain.SubTaskResult) {
			mu.Lock()
			settledCounts = append(settledCounts, settled)
			totals = append(totals, total)
			mu.Unlock()
		},
	})

	assert.Equal(t, []int{1, 2, 3, 4, 5}, settledCounts)
	for _, total := range totals {
		assert.Equal(t, 5, total)
	}
}
