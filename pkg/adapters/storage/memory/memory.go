package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/disasterproject/fanout/internal/domain"
)

// ResultStore implements ports.ResultStore using an in-memory map. This is
// for testing and single-process setups; results do not survive a restart.
type ResultStore struct {
	results map[string]*domain.Result
	mu      sync.RWMutex
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		results: make(map[string]*domain.Result),
	}
}

// Save stores a copy of the result keyed by its task ID.
func (s *ResultStore) Save(ctx context.Context, result *domain.Result) error {
	if result == nil || result.TaskID == "" {
		return fmt.Errorf("result must have a task ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to guard against caller mutation
	cp := *result
	s.results[result.TaskID] = &cp
	return nil
}

// Get retrieves a stored result by run ID.
func (s *ResultStore) Get(ctx context.Context, runID string) (*domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.results[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrResultNotFound, runID)
	}

	cp := *result
	return &cp, nil
}

// List returns all stored results.
func (s *ResultStore) List(ctx context.Context) ([]*domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*domain.Result, 0, len(s.results))
	for _, result := range s.results {
		cp := *result
		results = append(results, &cp)
	}
	return results, nil
}

// Delete removes a stored result.
func (s *ResultStore) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.results, runID)
	return nil
}
