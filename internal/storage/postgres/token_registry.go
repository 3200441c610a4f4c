package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"liquidify/internal/domain"
	"liquidify/internal/storage"
)

// TokenRegistry implements storage.TokenRegistry using PostgreSQL.
type TokenRegistry struct {
	pool *Pool
}

// NewTokenRegistry creates a new TokenRegistry.
func NewTokenRegistry(pool *Pool) *TokenRegistry {
	return &TokenRegistry{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenRegistry = (*TokenRegistry)(nil)

const tokenColumns = `
	id, mint, name, symbol, sealed_wallet_secret, status,
	fee_split_recipient, fee_split_bps,
	total_fees_claimed, total_buyback_spent, total_liquidity_spent,
	cycle_count, last_cycle_at, graduated_at, created_at, updated_at`

// Insert adds a new token. Returns ErrDuplicateKey if id or mint exists.
func (s *TokenRegistry) Insert(ctx context.Context, t *domain.TokenRecord) error {
	if t == nil || t.ID == "" || t.Mint == "" || !t.Status.IsValid() || !t.FeeSplit.IsValid() {
		return storage.ErrInvalidInput
	}

	var recipient *string
	var bps *int32
	if t.FeeSplit != nil {
		r := t.FeeSplit.Recipient
		b := int32(t.FeeSplit.Bps)
		recipient, bps = &r, &b
	}

	query := `INSERT INTO tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := s.pool.Exec(ctx, query,
		t.ID,
		t.Mint,
		t.Name,
		t.Symbol,
		t.SealedWalletSecret,
		string(t.Status),
		recipient,
		bps,
		toBigint(t.TotalFeesClaimed),
		toBigint(t.TotalBuybackSpent),
		toBigint(t.TotalLiquiditySpent),
		t.CycleCount,
		t.LastCycleAt,
		t.GraduatedAt,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByID retrieves a token by its ID. Returns ErrNotFound if not exists.
func (s *TokenRegistry) GetByID(ctx context.Context, id string) (*domain.TokenRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, id)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by id: %w", err)
	}
	return t, nil
}

// GetByMint retrieves a token by mint address. Returns ErrNotFound if not exists.
func (s *TokenRegistry) GetByMint(ctx context.Context, mint string) (*domain.TokenRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE mint = $1`, mint)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by mint: %w", err)
	}
	return t, nil
}

// ListEligible returns tokens in pending, bonding or graduated status,
// ordered by created_at, id.
func (s *TokenRegistry) ListEligible(ctx context.Context) ([]*domain.TokenRecord, error) {
	query := `SELECT ` + tokenColumns + `
		FROM tokens
		WHERE status IN ('pending', 'bonding', 'graduated')
		ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list eligible tokens: %w", err)
	}
	defer rows.Close()

	var result []*domain.TokenRecord
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return result, nil
}

// AddCycleTotals adds a cycle's amounts to the token counters.
func (s *TokenRegistry) AddCycleTotals(ctx context.Context, id string, totals storage.CycleTotals) error {
	query := `
		UPDATE tokens SET
			total_fees_claimed    = total_fees_claimed + $2,
			total_buyback_spent   = total_buyback_spent + $3,
			total_liquidity_spent = total_liquidity_spent + $4,
			cycle_count           = cycle_count + 1,
			last_cycle_at         = $5,
			updated_at            = $5
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		id,
		toBigint(totals.FeesClaimed),
		toBigint(totals.BuybackSpent),
		toBigint(totals.LiquiditySpent),
		totals.At,
	)
	if err != nil {
		return fmt.Errorf("add cycle totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkGraduated flips the token to graduated on first observation.
// Returns false when the token was already graduated.
func (s *TokenRegistry) MarkGraduated(ctx context.Context, id string, at int64) (bool, error) {
	query := `
		UPDATE tokens SET
			status       = 'graduated',
			graduated_at = COALESCE(graduated_at, $2),
			updated_at   = $2
		WHERE id = $1 AND status <> 'graduated'
	`

	tag, err := s.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark graduated: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tokens WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check token exists: %w", err)
	}
	if !exists {
		return false, storage.ErrNotFound
	}
	return false, nil
}

// SetStatus changes the lifecycle status.
func (s *TokenRegistry) SetStatus(ctx context.Context, id string, status domain.TokenStatus) error {
	if !status.IsValid() {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `UPDATE tokens SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("set token status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanToken scans a single row into TokenRecord.
func scanToken(row pgx.Row) (*domain.TokenRecord, error) {
	var t domain.TokenRecord
	var status string
	var recipient *string
	var bps *int32
	var fees, buyback, liquidity int64

	err := row.Scan(
		&t.ID,
		&t.Mint,
		&t.Name,
		&t.Symbol,
		&t.SealedWalletSecret,
		&status,
		&recipient,
		&bps,
		&fees,
		&buyback,
		&liquidity,
		&t.CycleCount,
		&t.LastCycleAt,
		&t.GraduatedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = domain.TokenStatus(status)
	t.TotalFeesClaimed = fromBigint(fees)
	t.TotalBuybackSpent = fromBigint(buyback)
	t.TotalLiquiditySpent = fromBigint(liquidity)
	if recipient != nil && bps != nil {
		t.FeeSplit = &domain.FeeSplitPolicy{Recipient: *recipient, Bps: uint32(*bps)}
	}
	return &t, nil
}
