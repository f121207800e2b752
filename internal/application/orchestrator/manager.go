package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/domain"
	"github.com/disasterproject/fanout/internal/ports"
)

// Manager coordinates orchestration runs: it validates and submits tasks,
// drives the engine in the background, tracks active runs, persists results
// and publishes lifecycle events.
type Manager struct {
	engine    *Engine
	eventBus  ports.EventBus
	store     ports.ResultStore
	metrics   ports.MetricsCollector
	validator *Validator
	logger    *zap.Logger

	// Track active runs
	runs sync.Map // map[string]*runContext

	active     atomic.Int64
	runTimeout time.Duration
	wg         sync.WaitGroup
}

// runContext holds in-memory state for a single active run.
type runContext struct {
	runID      string
	state      domain.RunState
	startedAt  time.Time
	cancelFunc context.CancelFunc
	mu         sync.RWMutex
}

func (rc *runContext) setState(state domain.RunState) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.state.Terminal() {
		return
	}
	rc.state = state
}

func (rc *runContext) currentState() domain.RunState {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.state
}

// ManagerConfig carries the manager's tunables.
type ManagerConfig struct {
	// MaxConcurrent bounds simultaneous subtask executions per run.
	MaxConcurrent int
	// ExecutionTimeout bounds the executing stage of a run.
	ExecutionTimeout time.Duration
	// RunTimeout bounds a whole run from submission to completion.
	RunTimeout time.Duration
}

// NewManager creates a run manager. It builds its own engine from the
// given collaborators so that state transitions and subtask progress flow
// back through the manager's run tracking and event publishing.
func NewManager(
	decomposer *Decomposer,
	runner *Runner,
	aggregator *Aggregator,
	eventBus ports.EventBus,
	store ports.ResultStore,
	metrics ports.MetricsCollector,
	cfg ManagerConfig,
	logger *zap.Logger,
) *Manager {
	m := &Manager{
		eventBus:   eventBus,
		store:      store,
		metrics:    metrics,
		validator:  NewValidator(),
		logger:     logger,
		runTimeout: cfg.RunTimeout,
	}
	m.engine = NewEngine(decomposer, runner, aggregator, EngineOptions{
		MaxConcurrent:    cfg.MaxConcurrent,
		ExecutionTimeout: cfg.ExecutionTimeout,
		OnState:          m.onRunState,
		OnProgress:       m.onSubTaskSettled,
	}, logger)
	return m
}

// Engine exposes the manager's engine for callers that want a synchronous
// orchestration without run tracking.
func (m *Manager) Engine() *Engine {
	return m.engine
}

// Submit validates a task and starts its orchestration in the background.
// It returns the run ID immediately; progress is observable through the
// event bus and GetStatus, the outcome through GetResult.
func (m *Manager) Submit(ctx context.Context, task domain.Task, override domain.Strategy) (string, error) {
	if err := m.validator.ValidateTask(&task); err != nil {
		m.logger.Error("task validation failed",
			zap.String("task_id", task.ID),
			zap.Error(err))
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if override != "" {
		if _, err := domain.ParseStrategy(string(override)); err != nil {
			return "", err
		}
	}

	runID := task.ID
	if runID == "" {
		runID = uuid.New().String()
		task.ID = runID
	}
	if _, loaded := m.runs.Load(runID); loaded {
		return "", fmt.Errorf("run %s already active", runID)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), m.runTimeout)
	rc := &runContext{
		runID:      runID,
		state:      domain.RunStateSubmitted,
		startedAt:  time.Now(),
		cancelFunc: cancel,
	}
	m.runs.Store(runID, rc)

	m.publish(ctx, ports.EventRunSubmitted, runID, map[string]interface{}{
		"description": task.Description,
		"strategy":    string(override),
	})

	m.metrics.RecordRunSubmitted(strategyLabel(override))
	m.metrics.SetActiveRuns(int(m.active.Add(1)))
	m.logger.Info("run submitted",
		zap.String("run_id", runID),
		zap.String("strategy_override", string(override)))

	m.wg.Add(1)
	go m.execute(runCtx, rc, task, override)

	return runID, nil
}

// execute drives one run to completion in the background.
func (m *Manager) execute(ctx context.Context, rc *runContext, task domain.Task, override domain.Strategy) {
	defer m.wg.Done()
	defer rc.cancelFunc()
	defer func() {
		m.runs.Delete(rc.runID)
		m.metrics.SetActiveRuns(int(m.active.Add(-1)))
	}()

	m.publish(ctx, ports.EventRunStarted, rc.runID, nil)

	result := m.engine.Orchestrate(ctx, task, override)

	// A cancelled run ends failed at the engine level; keep the
	// cancellation visible in the stored result.
	if rc.currentState() == domain.RunStateCancelled {
		result.Success = false
		if result.Error == "" {
			result.Error = "run cancelled"
		}
	}

	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer saveCancel()
	if err := m.store.Save(saveCtx, result); err != nil {
		m.logger.Error("failed to save run result",
			zap.String("run_id", rc.runID),
			zap.Error(err))
	}

	elapsed := time.Since(rc.startedAt)
	if result.Success {
		m.metrics.RecordRunCompleted("success", elapsed)
		m.publish(saveCtx, ports.EventRunCompleted, rc.runID, map[string]interface{}{
			"total_tokens": result.TotalTokens,
			"total_cost":   result.TotalCost,
			"subtasks":     len(result.SubTaskResults),
		})
	} else {
		m.metrics.RecordRunCompleted("failure", elapsed)
		m.publish(saveCtx, ports.EventRunFailed, rc.runID, map[string]interface{}{
			"error": result.Error,
		})
	}

	m.logger.Info("run finished",
		zap.String("run_id", rc.runID),
		zap.Bool("success", result.Success),
		zap.Duration("duration", elapsed))
}

// GetStatus returns the current state of a run: the in-memory state while
// the run is active, the stored outcome afterwards.
func (m *Manager) GetStatus(ctx context.Context, runID string) (domain.RunState, error) {
	if val, ok := m.runs.Load(runID); ok {
		return val.(*runContext).currentState(), nil
	}

	result, err := m.store.Get(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	if result.Success {
		return domain.RunStateCompleted, nil
	}
	return domain.RunStateFailed, nil
}

// GetResult returns the stored outcome of a finished run.
func (m *Manager) GetResult(ctx context.Context, runID string) (*domain.Result, error) {
	result, err := m.store.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel stops a run at its next stage boundary. In-flight backend calls
// are never interrupted; their results are still recorded.
func (m *Manager) Cancel(ctx context.Context, runID string) error {
	val, ok := m.runs.Load(runID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}

	rc := val.(*runContext)
	rc.mu.Lock()
	if rc.state.Terminal() {
		state := rc.state
		rc.mu.Unlock()
		return fmt.Errorf("run already in terminal state: %s", state)
	}
	rc.state = domain.RunStateCancelled
	rc.mu.Unlock()

	rc.cancelFunc()
	m.publish(ctx, ports.EventRunCancelled, runID, nil)
	m.logger.Info("run cancelled", zap.String("run_id", runID))
	return nil
}

// Shutdown cancels all active runs and waits for their goroutines to
// finish, up to the context deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down run manager")

	m.runs.Range(func(_, value interface{}) bool {
		value.(*runContext).cancelFunc()
		return true
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("run manager shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// onRunState is the engine's state hook. Cancellation set through Cancel
// wins over the engine's terminal states.
func (m *Manager) onRunState(runID string, state domain.RunState) {
	if val, ok := m.runs.Load(runID); ok {
		val.(*runContext).setState(state)
	}
}

// onSubTaskSettled is the engine's progress hook.
func (m *Manager) onSubTaskSettled(runID string, settled, total int, res domain.SubTaskResult) {
	data := map[string]interface{}{
		"subtask_id": res.TaskID,
		"settled":    settled,
		"total":      total,
		"model":      res.Model,
		"account":    res.AccountUsed,
	}
	if res.Failed() {
		data["error"] = res.Error
	}
	m.publish(context.Background(), ports.EventSubTaskCompleted, runID, data)
}

func (m *Manager) publish(ctx context.Context, typ ports.EventType, runID string, data map[string]interface{}) {
	event := ports.Event{
		ID:        uuid.New().String(),
		Type:      typ,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
	if err := m.eventBus.Publish(ctx, ports.TopicRunEvents, event); err != nil {
		m.logger.Error("failed to publish event",
			zap.String("run_id", runID),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}

func strategyLabel(override domain.Strategy) string {
	if override == "" {
		return "recommended"
	}
	return string(override)
}
