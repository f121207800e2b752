package ports

import (
	"context"
	"time"

	"github.com/disasterproject/fanout/internal/domain"
)

// Backend is one credentialed language-model connection. The core treats
// this as the full contract: text in, text out, optional token counts. A
// call may fail with a network or auth error at any time; retrying is the
// caller's concern.
type Backend interface {
	Complete(ctx context.Context, model string, messages []domain.Message) (*domain.Completion, error)
}

// BackendFactory builds a Backend from an account credential. The worker
// pool uses it to create one connection per configured account.
type BackendFactory func(credential string) (Backend, error)

// TokenEstimator approximates the token count of a text. The default
// implementation divides character count by four; a real tokenizer can be
// substituted without touching the scheduler.
type TokenEstimator interface {
	Estimate(text string) int
}

// EventType identifies a lifecycle event of an orchestration run.
type EventType string

const (
	EventRunSubmitted      EventType = "run.submitted"
	EventRunStarted        EventType = "run.started"
	EventSubTaskCompleted  EventType = "subtask.completed"
	EventRunCompleted      EventType = "run.completed"
	EventRunFailed         EventType = "run.failed"
	EventRunCancelled      EventType = "run.cancelled"
)

// Event is published on the event bus as a run progresses.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventHandler processes a single event.
type EventHandler func(ctx context.Context, event Event) error

// EventBus distributes run lifecycle events to subscribers.
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}

// TopicRunEvents is the topic carrying all run lifecycle events.
const TopicRunEvents = "run.events"

// ResultStore persists orchestration results keyed by run ID.
type ResultStore interface {
	Save(ctx context.Context, result *domain.Result) error
	Get(ctx context.Context, runID string) (*domain.Result, error)
	List(ctx context.Context) ([]*domain.Result, error)
	Delete(ctx context.Context, runID string) error
}

// MetricsCollector records orchestration metrics.
type MetricsCollector interface {
	RecordRunSubmitted(strategy string)
	RecordRunCompleted(status string, duration time.Duration)
	RecordSubTaskExecuted(model, status string, duration time.Duration)
	RecordLLMUsage(model, account string, tokens int, cost float64)
	RecordPoolStats(stats []domain.AccountStats)
	SetActiveRuns(count int)
}

// NopMetrics is a MetricsCollector that discards everything. Useful for
// tests and for embedding the engine without an exporter.
type NopMetrics struct{}

func (NopMetrics) RecordRunSubmitted(string)                           {}
func (NopMetrics) RecordRunCompleted(string, time.Duration)            {}
func (NopMetrics) RecordSubTaskExecuted(string, string, time.Duration) {}
func (NopMetrics) RecordLLMUsage(string, string, int, float64)         {}
func (NopMetrics) RecordPoolStats([]domain.AccountStats)               {}
func (NopMetrics) SetActiveRuns(int)                                   {}
