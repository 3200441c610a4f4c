package archive

import "liquidify/internal/domain"

// document is the archived JSON form of a cycle result.
type document struct {
	CycleID         string      `json:"cycle_id"`
	TokenID         string      `json:"token_id"`
	Mint            string      `json:"mint"`
	Status          string      `json:"status"`
	Succeeded       bool        `json:"succeeded"`
	Phase           string      `json:"phase"`
	PoolIdentifier  string      `json:"pool_identifier,omitempty"`
	FinalState      string      `json:"final_state"`
	FeesClaimed     uint64      `json:"fees_claimed"`
	FeeSplitSent    uint64      `json:"fee_split_sent"`
	BuybackSpent    uint64      `json:"buyback_spent"`
	BuybackReceived uint64      `json:"buyback_received"`
	LiquiditySpent  uint64      `json:"liquidity_spent"`
	LiquidityShares uint64      `json:"liquidity_shares"`
	SharesBurned    uint64      `json:"shares_burned"`
	Operations      []operation `json:"operations"`
	FailureReason   string      `json:"failure_reason,omitempty"`
	Notes           []string    `json:"notes,omitempty"`
	StartedAt       int64       `json:"started_at"`
	FinishedAt      int64       `json:"finished_at"`
}

type operation struct {
	Kind      string `json:"kind"`
	Signature string `json:"signature"`
	Explorer  string `json:"explorer"`
}

func newDocument(r *domain.CycleResult) document {
	ops := make([]operation, 0, len(r.OperationLog))
	for _, op := range r.OperationLog {
		ops = append(ops, operation{
			Kind:      string(op.Kind),
			Signature: op.ExternalReference,
			Explorer:  op.ExplorerURL(),
		})
	}

	return document{
		CycleID:         r.CycleID,
		TokenID:         r.TokenID,
		Mint:            r.Mint,
		Status:          r.Status(),
		Succeeded:       r.Succeeded,
		Phase:           string(r.Phase),
		PoolIdentifier:  r.PoolIdentifier,
		FinalState:      string(r.FinalState),
		FeesClaimed:     r.FeesClaimed,
		FeeSplitSent:    r.FeeSplitSent,
		BuybackSpent:    r.BuybackSpent,
		BuybackReceived: r.BuybackReceived,
		LiquiditySpent:  r.LiquiditySpent,
		LiquidityShares: r.LiquidityShares,
		SharesBurned:    r.SharesBurned,
		Operations:      ops,
		FailureReason:   r.FailureReason,
		Notes:           r.Notes,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
	}
}
