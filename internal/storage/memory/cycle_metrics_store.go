package memory

import (
	"context"
	"sync"

	"liquidify/internal/domain"
	"liquidify/internal/storage"
)

// CycleMetricsStore is an in-memory implementation of storage.CycleMetricsStore.
type CycleMetricsStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CycleResult // keyed by cycle_id
}

// NewCycleMetricsStore creates a new in-memory cycle metrics store.
func NewCycleMetricsStore() *CycleMetricsStore {
	return &CycleMetricsStore{
		data: make(map[string]*domain.CycleResult),
	}
}

// Compile-time interface check.
var _ storage.CycleMetricsStore = (*CycleMetricsStore)(nil)

// Insert adds one analytics row. Returns ErrDuplicateKey if cycle_id exists.
func (s *CycleMetricsStore) Insert(_ context.Context, r *domain.CycleResult) error {
	if r == nil || r.CycleID == "" {
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

// Summary aggregates cycles of a token finished within [start, end] (inclusive).
func (s *CycleMetricsStore) Summary(_ context.Context, tokenID string, start, end int64) (*domain.CycleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &domain.CycleSummary{TokenID: tokenID}
	for _, r := range s.data {
		if r.TokenID == tokenID && r.FinishedAt >= start && r.FinishedAt <= end {
			summary.Add(r)
		}
	}
	return summary, nil
}
