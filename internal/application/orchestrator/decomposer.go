package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/application/workers"
	"github.com/disasterproject/fanout/internal/domain"
	"github.com/disasterproject/fanout/internal/ports"
)

// decompositionReply mirrors the JSON shape demanded by decompositionPrompt.
// Fields are parsed as plain strings and validated strictly afterwards.
type decompositionReply struct {
	SubTasks []struct {
		ID           string   `json:"id"`
		Description  string   `json:"description"`
		Complexity   string   `json:"complexity"`
		Dependencies []string `json:"dependencies"`
	} `json:"subTasks"`
	RecommendedStrategy string `json:"recommendedStrategy"`
}

// Decomposer performs the single mid-tier planning call that breaks a task
// into subtasks. Decomposition failure is a hard failure: a run with no
// plan cannot proceed, so every parse or validation problem is surfaced as
// an error wrapping domain.ErrDecompositionParse.
type Decomposer struct {
	pool        *workers.Pool
	catalog     domain.Catalog
	estimator   ports.TokenEstimator
	validator   *Validator
	maxSubTasks int
	logger      *zap.Logger
}

// NewDecomposer creates a task decomposer. defaultMaxSubTasks applies when a
// task does not set its own limit; left unset it falls back to
// domain.DefaultMaxSubTasks.
func NewDecomposer(
	pool *workers.Pool,
	catalog domain.Catalog,
	estimator ports.TokenEstimator,
	defaultMaxSubTasks int,
	logger *zap.Logger,
) *Decomposer {
	if defaultMaxSubTasks <= 0 {
		defaultMaxSubTasks = domain.DefaultMaxSubTasks
	}
	return &Decomposer{
		pool:        pool,
		catalog:     catalog,
		estimator:   estimator,
		validator:   NewValidator(),
		maxSubTasks: defaultMaxSubTasks,
		logger:      logger,
	}
}

// Decompose plans a task. It issues one backend call on the mid tier,
// extracts the first balanced JSON object from the reply and validates it
// strictly: unknown complexity or strategy values are rejected rather than
// coerced. The subtask list is truncated at the task's limit.
func (d *Decomposer) Decompose(ctx context.Context, task domain.Task) (*domain.Decomposition, error) {
	limit := task.MaxSubTasks
	if limit <= 0 {
		limit = d.maxSubTasks
	}

	account, err := d.pool.Acquire(domain.ComplexityMedium)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}

	messages := buildDecompositionMessages(task, limit)
	model := d.catalog.DecomposerModel()
	completion, err := account.Backend().Complete(ctx, model, messages)
	if err != nil {
		return nil, fmt.Errorf("decompose: backend call failed: %w", err)
	}

	d.recordUsage(account, messages, completion.Content)

	decomposition, err := parseDecomposition(completion.Content)
	if err != nil {
		return nil, err
	}
	if err := d.validator.ValidateDecomposition(decomposition); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecompositionParse, err)
	}

	if len(decomposition.SubTasks) > limit {
		d.logger.Warn("decomposition exceeded subtask limit, truncating",
			zap.String("task_id", task.ID),
			zap.Int("subtasks", len(decomposition.SubTasks)),
			zap.Int("limit", limit))
		decomposition.SubTasks = decomposition.SubTasks[:limit]
	}

	d.logger.Info("task decomposed",
		zap.String("task_id", task.ID),
		zap.Int("subtasks", len(decomposition.SubTasks)),
		zap.String("strategy", string(decomposition.RecommendedStrategy)))

	return decomposition, nil
}

// recordUsage charges the planning call to the acquired account. Planning
// usage counts toward account statistics but is excluded from run totals.
func (d *Decomposer) recordUsage(account *workers.Account, messages []domain.Message, reply string) {
	var chars strings.Builder
	for _, m := range messages {
		chars.WriteString(m.Content)
	}
	chars.WriteString(reply)
	tokens := d.estimator.Estimate(chars.String())
	cost := float64(tokens) / 1000 * account.PricePer1K(domain.ComplexityMedium)
	if err := d.pool.RecordUsage(account.Name(), tokens, cost); err != nil {
		d.logger.Error("record decomposition usage failed",
			zap.String("account", account.Name()),
			zap.Error(err))
	}
}

func buildDecompositionMessages(task domain.Task, limit int) []domain.Message {
	user := task.Description
	if task.Context != "" {
		user = task.Description + "\n\nContext:\n" + task.Context
	}
	return []domain.Message{
		{Role: domain.RoleSystem, Content: fmt.Sprintf(decompositionPrompt, limit, limit)},
		{Role: domain.RoleUser, Content: user},
	}
}

// parseDecomposition extracts and decodes the first balanced JSON object
// from a backend reply. Models often wrap JSON in prose or code fences, so
// the extractor scans for the first '{' and tracks brace depth, honoring
// string literals and escapes.
func parseDecomposition(raw string) (*domain.Decomposition, error) {
	blob, ok := extractJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in response", domain.ErrDecompositionParse)
	}

	var reply decompositionReply
	if err := json.Unmarshal([]byte(blob), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecompositionParse, err)
	}

	subTasks := make([]domain.SubTask, 0, len(reply.SubTasks))
	for _, st := range reply.SubTasks {
		cx, err := domain.ParseComplexity(st.Complexity)
		if err != nil {
			return nil, fmt.Errorf("%w: subtask %q: %v", domain.ErrDecompositionParse, st.ID, err)
		}
		subTasks = append(subTasks, domain.SubTask{
			ID:          st.ID,
			Description: st.Description,
			Complexity:  cx,
			DependsOn:   st.Dependencies,
		})
	}

	strategy, err := domain.ParseStrategy(reply.RecommendedStrategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecompositionParse, err)
	}

	return &domain.Decomposition{
		SubTasks:            subTasks,
		RecommendedStrategy: strategy,
	}, nil
}

// extractJSONObject returns the first balanced top-level {...} in s.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
