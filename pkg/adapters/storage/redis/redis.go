package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/domain"
)

const resultKeyPrefix = "fanout:result:"

// ResultStore implements ports.ResultStore using Redis with JSON
// serialization and a per-result TTL.
type ResultStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewResultStore creates a new Redis result store.
func NewResultStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ResultStore {
	return &ResultStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Save persists a run result with the configured TTL.
func (s *ResultStore) Save(ctx context.Context, result *domain.Result) error {
	if result == nil || result.TaskID == "" {
		return fmt.Errorf("result must have a task ID")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := s.client.Set(ctx, resultKey(result.TaskID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	s.logger.Debug("result saved",
		zap.String("run_id", result.TaskID),
		zap.Bool("success", result.Success))

	return nil
}

// Get retrieves a run result.
func (s *ResultStore) Get(ctx context.Context, runID string) (*domain.Result, error) {
	data, err := s.client.Get(ctx, resultKey(runID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrResultNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	var result domain.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &result, nil
}

// List returns all stored run results, scanning keys in batches.
func (s *ResultStore) List(ctx context.Context) ([]*domain.Result, error) {
	var cursor uint64
	var keys []string

	for {
		batch, next, err := s.client.Scan(ctx, cursor, resultKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	results := make([]*domain.Result, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				// Key expired between scan and get
				continue
			}
			return nil, fmt.Errorf("failed to get result %s: %w", key, err)
		}

		var result domain.Result
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result %s: %w", key, err)
		}
		results = append(results, &result)
	}

	return results, nil
}

// Delete removes a stored run result.
func (s *ResultStore) Delete(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, resultKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}

	s.logger.Debug("result deleted", zap.String("run_id", runID))
	return nil
}

func resultKey(runID string) string {
	return resultKeyPrefix + runID
}
