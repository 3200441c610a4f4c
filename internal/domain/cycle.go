package domain

import "time"

// Phase is the venue phase of a token observed during a cycle.
type Phase string

const (
	PhaseBonding   Phase = "bonding"
	PhaseGraduated Phase = "graduated"
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	return string(p)
}

// OperationKind classifies an on-chain operation performed by a cycle.
type OperationKind string

const (
	OperationClaimFees    OperationKind = "claim_fees"
	OperationFeeSplit     OperationKind = "fee_split"
	OperationBuyback      OperationKind = "buyback"
	OperationAddLiquidity OperationKind = "add_liquidity"
	OperationBurnLP       OperationKind = "burn_lp"
)

// String returns the string representation of OperationKind.
func (k OperationKind) String() string {
	return string(k)
}

// ExplorerBaseURL is the transaction explorer used for operation links.
const ExplorerBaseURL = "https://solscan.io/tx/"

// Operation is one submitted and confirmed transaction.
type Operation struct {
	Kind              OperationKind
	ExternalReference string // transaction signature
}

// ExplorerURL returns the explorer link for the operation.
func (o Operation) ExplorerURL() string {
	return ExplorerBaseURL + o.ExternalReference
}

// CycleState is a state of the cycle state machine.
type CycleState string

const (
	StateStart            CycleState = "START"
	StateFeesClaimed      CycleState = "FEES_CLAIMED"
	StateAmountDetermined CycleState = "AMOUNT_DETERMINED"
	StateBuybackDone      CycleState = "BUYBACK_DONE"
	StateLiquidityDone    CycleState = "LIQUIDITY_DONE"
	StateComplete         CycleState = "COMPLETE"
	StateAborted          CycleState = "ABORTED"
)

// CycleResult is the structured outcome of one cycle for one token.
// All amounts are lamports except BuybackReceived and LiquidityShares,
// which are raw token units.
type CycleResult struct {
	CycleID         string // assigned by the batch runner
	TokenID         string
	Mint            string
	Succeeded       bool
	Phase           Phase
	PoolIdentifier  string // pool used for the liquidity step (may be empty)
	FinalState      CycleState
	FeesClaimed     uint64
	FeeSplitSent    uint64
	BuybackSpent    uint64
	BuybackReceived uint64
	LiquiditySpent  uint64
	LiquidityShares uint64
	SharesBurned    uint64
	OperationLog    []Operation
	FailureReason   string
	Notes           []string // non-fatal step outcomes, in order
	StartedAt       int64    // Unix ms
	FinishedAt      int64    // Unix ms
}

// NewCycleResult returns a result in the START state.
func NewCycleResult(cfg TokenCycleConfig, now time.Time) *CycleResult {
	return &CycleResult{
		TokenID:    cfg.TokenID,
		Mint:       cfg.TokenIdentifier,
		Phase:      PhaseBonding,
		FinalState: StateStart,
		StartedAt:  now.UnixMilli(),
	}
}

// Record appends an operation to the log.
func (r *CycleResult) Record(kind OperationKind, signature string) {
	r.OperationLog = append(r.OperationLog, Operation{Kind: kind, ExternalReference: signature})
}

// Note appends a non-fatal outcome.
func (r *CycleResult) Note(msg string) {
	r.Notes = append(r.Notes, msg)
}

// Operations returns the operations of the given kind in log order.
func (r *CycleResult) Operations(kind OperationKind) []Operation {
	var out []Operation
	for _, op := range r.OperationLog {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// Duration returns the wall time of the cycle.
func (r *CycleResult) Duration() time.Duration {
	if r.FinishedAt == 0 {
		return 0
	}
	return time.Duration(r.FinishedAt-r.StartedAt) * time.Millisecond
}

// Status returns a short label for metrics and logs.
func (r *CycleResult) Status() string {
	switch {
	case r.FinalState == StateAborted:
		return "aborted"
	case !r.Succeeded:
		return "failed"
	case r.BuybackSpent == 0 && r.LiquiditySpent == 0:
		return "idle"
	default:
		return "success"
	}
}

// CycleSummary aggregates recorded cycles of one token for reporting.
type CycleSummary struct {
	TokenID        string
	Cycles         int64
	Succeeded      int64
	Aborted        int64
	FeesClaimed    uint64
	FeeSplitSent   uint64
	BuybackSpent   uint64
	LiquiditySpent uint64
	SharesBurned   uint64
	LastFinishedAt int64 // Unix ms, zero when no cycles
}

// Add folds a result into the summary.
func (s *CycleSummary) Add(r *CycleResult) {
	s.Cycles++
	if r.Succeeded {
		s.Succeeded++
	}
	if r.FinalState == StateAborted {
		s.Aborted++
	}
	s.FeesClaimed += r.FeesClaimed
	s.FeeSplitSent += r.FeeSplitSent
	s.BuybackSpent += r.BuybackSpent
	s.LiquiditySpent += r.LiquiditySpent
	s.SharesBurned += r.SharesBurned
	if r.FinishedAt > s.LastFinishedAt {
		s.LastFinishedAt = r.FinishedAt
	}
}

// Clone returns a deep copy of the result.
func (r *CycleResult) Clone() *CycleResult {
	cp := *r
	cp.OperationLog = append([]Operation(nil), r.OperationLog...)
	cp.Notes = append([]string(nil), r.Notes...)
	return &cp
}
