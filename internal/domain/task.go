package domain

import "fmt"

// Complexity classifies a subtask to pick a model tier.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// ParseComplexity parses a complexity value. Unknown values are rejected
// rather than defaulted so a subtask is never silently routed to the wrong
// model tier.
func ParseComplexity(s string) (Complexity, error) {
	switch Complexity(s) {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
		return Complexity(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownComplexity, s)
	}
}

// Strategy is the execution strategy for an orchestration run.
type Strategy string

const (
	StrategyParallel   Strategy = "parallel"
	StrategySequential Strategy = "sequential"
	StrategyAdaptive   Strategy = "adaptive"
)

// ParseStrategy parses an execution strategy value, rejecting unknowns.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyParallel, StrategySequential, StrategyAdaptive:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// BalanceStrategy is the worker-pool load-balancing policy. It is fixed for
// the lifetime of a pool.
type BalanceStrategy string

const (
	BalanceRoundRobin    BalanceStrategy = "round-robin"
	BalanceLeastLoaded   BalanceStrategy = "least-loaded"
	BalanceCostOptimized BalanceStrategy = "cost-optimized"
)

// ParseBalanceStrategy parses a load-balancing policy value.
func ParseBalanceStrategy(s string) (BalanceStrategy, error) {
	switch BalanceStrategy(s) {
	case BalanceRoundRobin, BalanceLeastLoaded, BalanceCostOptimized:
		return BalanceStrategy(s), nil
	default:
		return "", fmt.Errorf("unknown balancing strategy: %q", s)
	}
}

const (
	// MaxConcurrentLimit is the hard ceiling on simultaneously in-flight
	// subtask executions, regardless of configuration.
	MaxConcurrentLimit = 10

	// DefaultMaxSubTasks bounds a decomposition when the caller does not set
	// Task.MaxSubTasks.
	DefaultMaxSubTasks = 5

	// AdaptiveBatchSize is the fixed batch size used by the adaptive
	// strategy. Decomposer-reported dependencies are carried on the SubTask
	// but not scheduled as a DAG.
	AdaptiveBatchSize = 2
)

// Task is one high-level orchestration request.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Context     string `json:"context,omitempty"`
	MaxSubTasks int    `json:"max_subtasks,omitempty"`
}

// SubTask is one unit of work produced by decomposition (or supplied
// directly by the caller). Context is the only mutable field: the engine
// appends carry-forward summaries to it between sequential/adaptive steps.
type SubTask struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Complexity  Complexity `json:"complexity"`
	Context     string     `json:"context,omitempty"`
	Priority    int        `json:"priority,omitempty"`
	DependsOn   []string   `json:"depends_on,omitempty"`
}

// Decomposition is the validated output of the task decomposer.
type Decomposition struct {
	SubTasks            []SubTask `json:"sub_tasks"`
	RecommendedStrategy Strategy  `json:"recommended_strategy"`
}

// Message is one chat message sent to a backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Completion is the backend's reply. Token counts are optional; the engine
// relies on its own estimator for accounting.
type Completion struct {
	Content      string
	InputTokens  int64
	OutputTokens int64
}
