package domain

// TokenStatus is the lifecycle status of a registered token.
type TokenStatus string

const (
	TokenStatusPending    TokenStatus = "pending"
	TokenStatusBonding    TokenStatus = "bonding"
	TokenStatusGraduating TokenStatus = "graduating"
	TokenStatusGraduated  TokenStatus = "graduated"
	TokenStatusPaused     TokenStatus = "paused"
)

// String returns the string representation of TokenStatus.
func (s TokenStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known value.
func (s TokenStatus) IsValid() bool {
	switch s {
	case TokenStatusPending, TokenStatusBonding, TokenStatusGraduating, TokenStatusGraduated, TokenStatusPaused:
		return true
	}
	return false
}

// IsEligible reports whether tokens in this status take part in scheduled cycles.
func (s TokenStatus) IsEligible() bool {
	return s == TokenStatusPending || s == TokenStatusBonding || s == TokenStatusGraduated
}

// TokenRecord is a registered token managed by the cycle engine.
// Corresponds to tokens table in PostgreSQL.
type TokenRecord struct {
	ID                  string          // PRIMARY KEY
	Mint                string          // token mint address
	Name                string          // display name
	Symbol              string          // ticker
	SealedWalletSecret  string          // operating wallet secret sealed by secrets.Keyring (empty = no credential)
	Status              TokenStatus     // lifecycle status
	FeeSplit            *FeeSplitPolicy // optional fee split (nullable)
	TotalFeesClaimed    uint64          // lamports, cumulative
	TotalBuybackSpent   uint64          // lamports, cumulative
	TotalLiquiditySpent uint64          // lamports, cumulative
	CycleCount          int64           // number of recorded cycles
	LastCycleAt         *int64          // Unix ms of last recorded cycle (nullable)
	GraduatedAt         *int64          // Unix ms when graduation was first observed (nullable)
	CreatedAt           int64           // record creation timestamp (ms)
	UpdatedAt           int64           // last update timestamp (ms)
}

// FeeSplitPolicy routes a fraction of claimed fees to a fixed recipient
// before the remainder is used for buyback and liquidity.
type FeeSplitPolicy struct {
	Recipient string // base58 wallet address
	Bps       uint32 // share in basis points, 1..10000
}

// MaxBps is the basis point denominator.
const MaxBps = 10_000

// IsValid checks the policy bounds. A nil policy is valid (no split).
func (p *FeeSplitPolicy) IsValid() bool {
	if p == nil {
		return true
	}
	return p.Recipient != "" && p.Bps > 0 && p.Bps <= MaxBps
}

// Share returns the portion of amount routed to the recipient.
func (p *FeeSplitPolicy) Share(amount uint64) uint64 {
	if p == nil || p.Bps == 0 {
		return 0
	}
	bps := uint64(p.Bps)
	if bps > MaxBps {
		bps = MaxBps
	}
	// amount/10000*bps + remainder term avoids overflow for large balances.
	return amount/MaxBps*bps + amount%MaxBps*bps/MaxBps
}

// TokenCycleConfig is the input of a single cycle. The wallet secret is
// held only for the duration of the cycle and never persisted by the engine.
type TokenCycleConfig struct {
	TokenID               string          // registry ID, used for attribution only
	Symbol                string          // ticker, used for log lines only
	TokenIdentifier       string          // mint address
	OperatingWalletSecret string          // base58-encoded 64-byte secret key
	FeeSplit              *FeeSplitPolicy // optional
}

// String implements fmt.Stringer without exposing the wallet secret.
func (c TokenCycleConfig) String() string {
	if c.Symbol != "" {
		return c.Symbol + " (" + c.TokenIdentifier + ")"
	}
	return c.TokenIdentifier
}

// GoString keeps %#v from printing the wallet secret.
func (c TokenCycleConfig) GoString() string {
	return "domain.TokenCycleConfig{" + c.String() + "}"
}

// Clone returns a deep copy of the record.
func (t *TokenRecord) Clone() *TokenRecord {
	cp := *t
	if t.FeeSplit != nil {
		fs := *t.FeeSplit
		cp.FeeSplit = &fs
	}
	if t.LastCycleAt != nil {
		v := *t.LastCycleAt
		cp.LastCycleAt = &v
	}
	if t.GraduatedAt != nil {
		v := *t.GraduatedAt
		cp.GraduatedAt = &v
	}
	return &cp
}

// CycleConfig builds the input of one cycle from the record and its opened secret.
func (t *TokenRecord) CycleConfig(walletSecret string) TokenCycleConfig {
	return TokenCycleConfig{
		TokenID:               t.ID,
		Symbol:                t.Symbol,
		TokenIdentifier:       t.Mint,
		OperatingWalletSecret: walletSecret,
		FeeSplit:              t.FeeSplit,
	}
}
