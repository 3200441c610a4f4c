package clickhouse

import (
	"context"
	"fmt"

	"liquidify/internal/domain"
	"liquidify/internal/storage"
)

// CycleMetricsStore implements storage.CycleMetricsStore using ClickHouse.
type CycleMetricsStore struct {
	conn *Conn
}

// NewCycleMetricsStore creates a new CycleMetricsStore.
func NewCycleMetricsStore(conn *Conn) *CycleMetricsStore {
	return &CycleMetricsStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CycleMetricsStore = (*CycleMetricsStore)(nil)

// Insert adds one analytics row. Returns ErrDuplicateKey if cycle_id exists.
func (s *CycleMetricsStore) Insert(ctx context.Context, r *domain.CycleResult) error {
	if r == nil || r.CycleID == "" {
		return storage.ErrInvalidInput
	}

	// MergeTree does not enforce uniqueness; keep append-only semantics explicitly
	exists, err := s.exists(ctx, r.CycleID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	var succeeded uint8
	if r.Succeeded {
		succeeded = 1
	}
	var duration uint64
	if r.FinishedAt > r.StartedAt {
		duration = uint64(r.FinishedAt - r.StartedAt)
	}

	query := `
		INSERT INTO cycle_metrics (
			cycle_id, token_id, mint, phase, final_state, status, succeeded,
			fees_claimed, fee_split_sent, buyback_spent, buyback_received,
			liquidity_spent, liquidity_shares, shares_burned,
			operation_count, started_at, finished_at, duration_ms
		) VALUES (
			?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?
		)
	`

	err = s.conn.Exec(ctx, query,
		r.CycleID, r.TokenID, r.Mint, string(r.Phase), string(r.FinalState), r.Status(), succeeded,
		r.FeesClaimed, r.FeeSplitSent, r.BuybackSpent, r.BuybackReceived,
		r.LiquiditySpent, r.LiquidityShares, r.SharesBurned,
		uint32(len(r.OperationLog)), uint64(r.StartedAt), uint64(r.FinishedAt), duration,
	)
	if err != nil {
		return fmt.Errorf("insert cycle metrics: %w", err)
	}
	return nil
}

// Summary aggregates cycles of a token finished within [start, end] (inclusive).
func (s *CycleMetricsStore) Summary(ctx context.Context, tokenID string, start, end int64) (*domain.CycleSummary, error) {
	query := `
		SELECT
			count(),
			countIf(succeeded = 1),
			countIf(final_state = ?),
			sum(fees_claimed),
			sum(fee_split_sent),
			sum(buyback_spent),
			sum(liquidity_spent),
			sum(shares_burned),
			max(finished_at)
		FROM cycle_metrics
		WHERE token_id = ? AND finished_at >= ? AND finished_at <= ?
	`

	var cycles, succeeded, aborted uint64
	var lastFinished uint64
	summary := &domain.CycleSummary{TokenID: tokenID}

	row := s.conn.QueryRow(ctx, query, string(domain.StateAborted), tokenID, clampUint(start), clampUint(end))
	err := row.Scan(
		&cycles,
		&succeeded,
		&aborted,
		&summary.FeesClaimed,
		&summary.FeeSplitSent,
		&summary.BuybackSpent,
		&summary.LiquiditySpent,
		&summary.SharesBurned,
		&lastFinished,
	)
	if err != nil {
		return nil, fmt.Errorf("query cycle summary: %w", err)
	}

	summary.Cycles = int64(cycles)
	summary.Succeeded = int64(succeeded)
	summary.Aborted = int64(aborted)
	summary.LastFinishedAt = int64(lastFinished)
	return summary, nil
}

func (s *CycleMetricsStore) exists(ctx context.Context, cycleID string) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM cycle_metrics WHERE cycle_id = ?`, cycleID)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func clampUint(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
