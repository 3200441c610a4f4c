package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"liquidify/internal/domain"
	"liquidify/internal/storage"
)

// CycleHistoryStore implements storage.CycleHistoryStore using PostgreSQL.
// A cycle and its operation log are written in one transaction.
type CycleHistoryStore struct {
	pool *Pool
}

// NewCycleHistoryStore creates a new CycleHistoryStore.
func NewCycleHistoryStore(pool *Pool) *CycleHistoryStore {
	return &CycleHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CycleHistoryStore = (*CycleHistoryStore)(nil)

const cycleColumns = `
	cycle_id, token_id, mint, succeeded, phase, pool_identifier, final_state,
	fees_claimed, fee_split_sent, buyback_spent, buyback_received,
	liquidity_spent, liquidity_shares, shares_burned,
	failure_reason, notes, started_at, finished_at`

// Insert adds a cycle with its operations. Returns ErrDuplicateKey if cycle_id exists.
func (s *CycleHistoryStore) Insert(ctx context.Context, r *domain.CycleResult) error {
	if r == nil || r.CycleID == "" || r.TokenID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	notes := r.Notes
	if notes == nil {
		notes = []string{}
	}

	query := `INSERT INTO cycles (` + cycleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = tx.Exec(ctx, query,
		r.CycleID,
		r.TokenID,
		r.Mint,
		r.Succeeded,
		string(r.Phase),
		r.PoolIdentifier,
		string(r.FinalState),
		toBigint(r.FeesClaimed),
		toBigint(r.FeeSplitSent),
		toBigint(r.BuybackSpent),
		toBigint(r.BuybackReceived),
		toBigint(r.LiquiditySpent),
		toBigint(r.LiquidityShares),
		toBigint(r.SharesBurned),
		r.FailureReason,
		notes,
		r.StartedAt,
		r.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert cycle: %w", err)
	}

	if len(r.OperationLog) > 0 {
		batch := &pgx.Batch{}
		for i, op := range r.OperationLog {
			batch.Queue(
				`INSERT INTO cycle_operations (cycle_id, seq, kind, signature) VALUES ($1, $2, $3, $4)`,
				r.CycleID, i, string(op.Kind), op.ExternalReference,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert cycle operations: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cycle: %w", err)
	}
	return nil
}

// GetByID retrieves a cycle with its operations. Returns ErrNotFound if not exists.
func (s *CycleHistoryStore) GetByID(ctx context.Context, cycleID string) (*domain.CycleResult, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE cycle_id = $1`, cycleID)
	r, err := scanCycle(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get cycle by id: %w", err)
	}

	if err := s.loadOperations(ctx, []*domain.CycleResult{r}); err != nil {
		return nil, err
	}
	return r, nil
}

// ListByToken returns the most recent cycles of a token, newest first.
// A non-positive limit returns all cycles.
func (s *CycleHistoryStore) ListByToken(ctx context.Context, tokenID string, limit int) ([]*domain.CycleResult, error) {
	query := `SELECT ` + cycleColumns + `
		FROM cycles
		WHERE token_id = $1
		ORDER BY started_at DESC, cycle_id DESC`
	args := []any{tokenID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cycles by token: %w", err)
	}
	defer rows.Close()

	var result []*domain.CycleResult
	for rows.Next() {
		r, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}

	if err := s.loadOperations(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// loadOperations fills the operation log of each cycle in one query.
func (s *CycleHistoryStore) loadOperations(ctx context.Context, cycles []*domain.CycleResult) error {
	if len(cycles) == 0 {
		return nil
	}

	ids := make([]string, len(cycles))
	byID := make(map[string]*domain.CycleResult, len(cycles))
	for i, r := range cycles {
		ids[i] = r.CycleID
		byID[r.CycleID] = r
	}

	rows, err := s.pool.Query(ctx, `
		SELECT cycle_id, kind, signature
		FROM cycle_operations
		WHERE cycle_id = ANY($1)
		ORDER BY cycle_id, seq ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("load cycle operations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cycleID, kind, signature string
		if err := rows.Scan(&cycleID, &kind, &signature); err != nil {
			return fmt.Errorf("scan cycle operation: %w", err)
		}
		if r, ok := byID[cycleID]; ok {
			r.Record(domain.OperationKind(kind), signature)
		}
	}
	return rows.Err()
}

// scanCycle scans a single row into CycleResult without operations.
func scanCycle(row pgx.Row) (*domain.CycleResult, error) {
	var r domain.CycleResult
	var phase, state string
	var fees, split, spent, received, liqSpent, shares, burned int64

	err := row.Scan(
		&r.CycleID,
		&r.TokenID,
		&r.Mint,
		&r.Succeeded,
		&phase,
		&r.PoolIdentifier,
		&state,
		&fees,
		&split,
		&spent,
		&received,
		&liqSpent,
		&shares,
		&burned,
		&r.FailureReason,
		&r.Notes,
		&r.StartedAt,
		&r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Phase = domain.Phase(phase)
	r.FinalState = domain.CycleState(state)
	r.FeesClaimed = fromBigint(fees)
	r.FeeSplitSent = fromBigint(split)
	r.BuybackSpent = fromBigint(spent)
	r.BuybackReceived = fromBigint(received)
	r.LiquiditySpent = fromBigint(liqSpent)
	r.LiquidityShares = fromBigint(shares)
	r.SharesBurned = fromBigint(burned)
	if len(r.Notes) == 0 {
		r.Notes = nil
	}
	return &r, nil
}
