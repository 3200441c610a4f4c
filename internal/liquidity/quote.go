package liquidity

import (
	"errors"
	"math/big"
)

// ErrInsufficientToken is returned when the wallet holds too few tokens to
// pair with any meaningful amount of SOL.
var ErrInsufficientToken = errors.New("insufficient token balance for deposit")

// DepositQuote sizes a proportional deposit.
type DepositQuote struct {
	QuoteIn  uint64 // lamports paired
	BaseIn   uint64 // tokens required at the current ratio
	LPOut    uint64 // pool shares minted
	MaxQuote uint64
	MaxBase  uint64
}

// QuoteDeposit sizes a deposit of quoteIn lamports at the pool's reserve ratio.
//
//	base = quote * baseReserve / quoteReserve  (rounded up)
//	lp   = quote * lpSupply / quoteReserve
//	max  = amount * (100 + slippage) / 100
func QuoteDeposit(pool *PoolState, quoteIn uint64, slippagePct int) (*DepositQuote, error) {
	if pool.QuoteReserve == 0 || pool.BaseReserve == 0 || pool.LPSupply == 0 {
		return nil, errors.New("pool has no liquidity")
	}
	if slippagePct < 0 {
		slippagePct = 0
	}

	base := mulDiv(quoteIn, pool.BaseReserve, pool.QuoteReserve, true)
	lp := mulDiv(quoteIn, pool.LPSupply, pool.QuoteReserve, false)

	return &DepositQuote{
		QuoteIn:  quoteIn,
		BaseIn:   base,
		LPOut:    lp,
		MaxQuote: withSlippage(quoteIn, slippagePct),
		MaxBase:  withSlippage(base, slippagePct),
	}, nil
}

// FitDeposit quotes quoteIn lamports, or the largest amount tokenBalance can
// pair when the wallet holds fewer tokens than quoteIn requires. MaxBase never
// exceeds tokenBalance.
func FitDeposit(pool *PoolState, quoteIn, tokenBalance uint64, slippagePct int) (*DepositQuote, error) {
	q, err := QuoteDeposit(pool, quoteIn, slippagePct)
	if err != nil {
		return nil, err
	}

	if q.BaseIn > tokenBalance {
		scaled := mulDiv(tokenBalance, pool.QuoteReserve, pool.BaseReserve, false)
		if scaled > quoteIn {
			scaled = quoteIn
		}
		q, err = QuoteDeposit(pool, scaled, slippagePct)
		if err != nil {
			return nil, err
		}
		// Rounding up base may overshoot the balance by one unit.
		if q.BaseIn > tokenBalance {
			q.BaseIn = tokenBalance
		}
	}

	if q.QuoteIn == 0 || q.BaseIn == 0 || q.LPOut == 0 {
		return nil, ErrInsufficientToken
	}
	if q.MaxBase > tokenBalance {
		q.MaxBase = tokenBalance
	}
	return q, nil
}

func withSlippage(amount uint64, pct int) uint64 {
	return mulDiv(amount, uint64(100+pct), 100, false)
}

// mulDiv returns a*b/d without intermediate overflow, saturating at MaxUint64.
func mulDiv(a, b, d uint64, roundUp bool) uint64 {
	n := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	den := new(big.Int).SetUint64(d)
	q, r := new(big.Int).QuoRem(n, den, new(big.Int))
	if roundUp && r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	if !q.IsUint64() {
		return ^uint64(0)
	}
	return q.Uint64()
}
