package storage

import (
	"context"

	"liquidify/internal/domain"
)

// CycleTotals is the amount added to a token's counters by one cycle.
type CycleTotals struct {
	FeesClaimed    uint64
	BuybackSpent   uint64
	LiquiditySpent uint64
	At             int64 // Unix ms, becomes last_cycle_at
}

// TokenRegistry provides access to tokens storage.
type TokenRegistry interface {
	// Insert adds a new token. Returns ErrDuplicateKey if id or mint exists.
	Insert(ctx context.Context, t *domain.TokenRecord) error

	// GetByID retrieves a token by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.TokenRecord, error)

	// GetByMint retrieves a token by mint address. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.TokenRecord, error)

	// ListEligible returns tokens in pending, bonding or graduated status,
	// ordered by created_at ASC, id ASC.
	ListEligible(ctx context.Context) ([]*domain.TokenRecord, error)

	// AddCycleTotals adds a cycle's amounts to the token counters, increments
	// cycle_count and sets last_cycle_at. Returns ErrNotFound if not exists.
	AddCycleTotals(ctx context.Context, id string, totals CycleTotals) error

	// MarkGraduated sets status graduated and graduated_at if the token is not
	// graduated yet. Reports whether the status changed.
	MarkGraduated(ctx context.Context, id string, at int64) (bool, error)

	// SetStatus changes the lifecycle status. Returns ErrNotFound if not exists.
	SetStatus(ctx context.Context, id string, status domain.TokenStatus) error
}

// CycleHistoryStore provides access to the append-only cycles and
// cycle_operations storage.
type CycleHistoryStore interface {
	// Insert adds a cycle with its operations. Returns ErrDuplicateKey if cycle_id exists.
	Insert(ctx context.Context, r *domain.CycleResult) error

	// GetByID retrieves a cycle with operations in log order. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, cycleID string) (*domain.CycleResult, error)

	// ListByToken returns the most recent cycles of a token, newest first.
	// A limit <= 0 returns all cycles.
	ListByToken(ctx context.Context, tokenID string, limit int) ([]*domain.CycleResult, error)
}

// CycleMetricsStore provides access to cycle analytics storage.
type CycleMetricsStore interface {
	// Insert adds one analytics row per cycle. Returns ErrDuplicateKey if cycle_id exists.
	Insert(ctx context.Context, r *domain.CycleResult) error

	// Summary aggregates cycles of a token finished within [start, end] (inclusive, Unix ms).
	Summary(ctx context.Context, tokenID string, start, end int64) (*domain.CycleSummary, error)
}
