package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidify/internal/domain"
	"liquidify/internal/storage"
)

func newCycle(id, tokenID string, finishedAt int64, succeeded bool, state domain.CycleState) *domain.CycleResult {
	return &domain.CycleResult{
		CycleID:      id,
		TokenID:      tokenID,
		Mint:         "Mint-" + tokenID,
		Succeeded:    succeeded,
		Phase:        domain.PhaseBonding,
		FinalState:   state,
		FeesClaimed:  10_500_000,
		BuybackSpent: 10_000_000,
		OperationLog: []domain.Operation{
			{Kind: domain.OperationClaimFees, ExternalReference: id + "-claim"},
			{Kind: domain.OperationBuyback, ExternalReference: id + "-buy"},
		},
		StartedAt:  finishedAt - 2000,
		FinishedAt: finishedAt,
	}
}

func TestCycleMetricsStore_InsertAndSummary(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCycleMetricsStore(conn)
	ctx := context.Background()

	cycles := []*domain.CycleResult{
		newCycle("c1", "tok-1", 10_000, true, domain.StateComplete),
		newCycle("c2", "tok-1", 20_000, true, domain.StateComplete),
		newCycle("c3", "tok-1", 30_000, false, domain.StateAborted),
		newCycle("c4", "tok-2", 20_000, true, domain.StateComplete),
	}
	cycles[2].FeesClaimed = 0
	cycles[2].BuybackSpent = 0
	cycles[1].SharesBurned = 777

	for _, c := range cycles {
		require.NoError(t, store.Insert(ctx, c))
	}

	s, err := store.Summary(ctx, "tok-1", 0, 100_000)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", s.TokenID)
	assert.Equal(t, int64(3), s.Cycles)
	assert.Equal(t, int64(2), s.Succeeded)
	assert.Equal(t, int64(1), s.Aborted)
	assert.Equal(t, uint64(21_000_000), s.FeesClaimed)
	assert.Equal(t, uint64(20_000_000), s.BuybackSpent)
	assert.Equal(t, uint64(777), s.SharesBurned)
	assert.Equal(t, int64(30_000), s.LastFinishedAt)

	windowed, err := store.Summary(ctx, "tok-1", 15_000, 25_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), windowed.Cycles)
}

func TestCycleMetricsStore_EmptySummary(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCycleMetricsStore(conn)

	s, err := store.Summary(context.Background(), "unknown", 0, 100_000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Cycles)
	assert.Equal(t, uint64(0), s.FeesClaimed)
	assert.Equal(t, int64(0), s.LastFinishedAt)
}

func TestCycleMetricsStore_InsertDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCycleMetricsStore(conn)
	ctx := context.Background()

	c := newCycle("c1", "tok-1", 10_000, true, domain.StateComplete)
	require.NoError(t, store.Insert(ctx, c))
	assert.ErrorIs(t, store.Insert(ctx, c), storage.ErrDuplicateKey)
}
