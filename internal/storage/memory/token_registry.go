package memory

import (
	"context"
	"sort"
	"sync"

	"liquidify/internal/domain"
	"liquidify/internal/storage"
)

// TokenRegistry is an in-memory implementation of storage.TokenRegistry.
type TokenRegistry struct {
	mu     sync.RWMutex
	data   map[string]*domain.TokenRecord // keyed by id
	byMint map[string]string              // mint -> id
}

// NewTokenRegistry creates a new in-memory token registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		data:   make(map[string]*domain.TokenRecord),
		byMint: make(map[string]string),
	}
}

// Compile-time interface check.
var _ storage.TokenRegistry = (*TokenRegistry)(nil)

// Insert adds a new token. Returns ErrDuplicateKey if id or mint exists.
func (s *TokenRegistry) Insert(_ context.Context, t *domain.TokenRecord) error {
	if t == nil || t.ID == "" || t.Mint == "" || !t.Status.IsValid() || !t.FeeSplit.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byMint[t.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[t.ID] = t.Clone()
	s.byMint[t.Mint] = t.ID
	return nil
}

// GetByID retrieves a token by its ID. Returns ErrNotFound if not exists.
func (s *TokenRegistry) GetByID(_ context.Context, id string) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

// GetByMint retrieves a token by mint address. Returns ErrNotFound if not exists.
func (s *TokenRegistry) GetByMint(_ context.Context, mint string) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byMint[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return s.data[id].Clone(), nil
}

// ListEligible returns tokens in pending, bonding or graduated status.
func (s *TokenRegistry) ListEligible(_ context.Context) ([]*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenRecord
	for _, t := range s.data {
		if t.Status.IsEligible() {
			result = append(result, t.Clone())
		}
	}

	// Sort by created_at ASC, id ASC
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// AddCycleTotals adds a cycle's amounts to the token counters.
func (s *TokenRegistry) AddCycleTotals(_ context.Context, id string, totals storage.CycleTotals) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}

	t.TotalFeesClaimed += totals.FeesClaimed
	t.TotalBuybackSpent += totals.BuybackSpent
	t.TotalLiquiditySpent += totals.LiquiditySpent
	t.CycleCount++
	at := totals.At
	t.LastCycleAt = &at
	t.UpdatedAt = totals.At
	return nil
}

// MarkGraduated flips the token to graduated on first observation.
func (s *TokenRegistry) MarkGraduated(_ context.Context, id string, at int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[id]
	if !exists {
		return false, storage.ErrNotFound
	}
	if t.Status == domain.TokenStatusGraduated {
		return false, nil
	}

	t.Status = domain.TokenStatusGraduated
	if t.GraduatedAt == nil {
		graduatedAt := at
		t.GraduatedAt = &graduatedAt
	}
	t.UpdatedAt = at
	return true, nil
}

// SetStatus changes the lifecycle status.
func (s *TokenRegistry) SetStatus(_ context.Context, id string, status domain.TokenStatus) error {
	if !status.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	t.Status = status
	return nil
}
