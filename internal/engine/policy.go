package engine

import "fmt"

// Thresholds are the lamport limits that turn balance deltas into spendable amounts.
type Thresholds struct {
	Dust         uint64 // deltas at or below are not fees
	ClaimCeiling uint64 // larger deltas are clamped to this value
	TxFeeReserve uint64 // kept back from fees for transaction costs
	MinSpendable uint64 // below this nothing is spent
}

// DefaultThresholds returns the production limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Dust:         100_000,     // 0.0001 SOL
		ClaimCeiling: 500_000_000, // 0.5 SOL
		TxFeeReserve: 500_000,     // 0.0005 SOL
		MinSpendable: 1_000_000,   // 0.001 SOL
	}
}

// Validate checks that the thresholds are consistent.
func (t Thresholds) Validate() error {
	if t.ClaimCeiling == 0 {
		return fmt.Errorf("claim ceiling must be positive")
	}
	if t.Dust >= t.ClaimCeiling {
		return fmt.Errorf("dust threshold %d must be below claim ceiling %d", t.Dust, t.ClaimCeiling)
	}
	if t.TxFeeReserve >= t.ClaimCeiling {
		return fmt.Errorf("tx fee reserve %d must be below claim ceiling %d", t.TxFeeReserve, t.ClaimCeiling)
	}
	return nil
}

// ClaimedFees converts the balance change across a claim into fees.
// Decreases and dust are zero; implausibly large deltas are clamped.
func (t Thresholds) ClaimedFees(before, after uint64) uint64 {
	if after <= before {
		return 0
	}
	delta := after - before
	if delta <= t.Dust {
		return 0
	}
	if delta > t.ClaimCeiling {
		return t.ClaimCeiling
	}
	return delta
}

// Spendable returns the amount available for buyback and liquidity,
// zero when it would fall below MinSpendable.
func (t Thresholds) Spendable(fees uint64) uint64 {
	if fees <= t.TxFeeReserve {
		return 0
	}
	s := fees - t.TxFeeReserve
	if s < t.MinSpendable {
		return 0
	}
	return s
}

// SplitHalf divides spendable between buyback and liquidity. The buyback
// half is rounded down so buy+liquidity always equals spendable.
func SplitHalf(spendable uint64) (buy, liquidity uint64) {
	buy = spendable / 2
	return buy, spendable - buy
}
