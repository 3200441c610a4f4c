package memory

import (
	"context"
	"sort"
	"sync"

	"liquidify/internal/domain"
	"liquidify/internal/storage"
)

// CycleHistoryStore is an in-memory implementation of storage.CycleHistoryStore.
type CycleHistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CycleResult // keyed by cycle_id
}

// NewCycleHistoryStore creates a new in-memory cycle history store.
func NewCycleHistoryStore() *CycleHistoryStore {
	return &CycleHistoryStore{
		data: make(map[string]*domain.CycleResult),
	}
}

// Compile-time interface check.
var _ storage.CycleHistoryStore = (*CycleHistoryStore)(nil)

// Insert adds a cycle with its operations. Returns ErrDuplicateKey if cycle_id exists.
func (s *CycleHistoryStore) Insert(_ context.Context, r *domain.CycleResult) error {
	if r == nil || r.CycleID == "" || r.TokenID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.CycleID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.CycleID] = r.Clone()
	return nil
}

// GetByID retrieves a cycle. Returns ErrNotFound if not exists.
func (s *CycleHistoryStore) GetByID(_ context.Context, cycleID string) (*domain.CycleResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[cycleID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

// ListByToken returns the most recent cycles of a token, newest first.
func (s *CycleHistoryStore) ListByToken(_ context.Context, tokenID string, limit int) ([]*domain.CycleResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CycleResult
	for _, r := range s.data {
		if r.TokenID == tokenID {
			result = append(result, r.Clone())
		}
	}

	// Sort by started_at DESC, cycle_id DESC
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt != result[j].StartedAt {
			return result[i].StartedAt > result[j].StartedAt
		}
		return result[i].CycleID > result[j].CycleID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
