// Package venue buys a token with native SOL on a bonding curve, an AMM pool
// or through an aggregator, and reports the realized fill.
package venue

import (
	"context"
	"errors"
	"fmt"

	"liquidify/internal/solana"
	"liquidify/internal/wallet"
)

// Classified buy failures.
var (
	ErrAssetNotFound       = errors.New("asset not found on venue")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSlippageExceeded    = errors.New("slippage exceeded")
	ErrVenue               = errors.New("venue error")
)

// Kind identifies where a buy is executed.
type Kind string

// Venue kinds.
const (
	KindBondingCurve Kind = "bonding_curve"
	KindOpenMarket   Kind = "open_market"
	KindAggregator   Kind = "aggregator"
)

// BuyResult is the outcome of a confirmed buy.
type BuyResult struct {
	Signature      string
	TokensReceived uint64 // measured from the wallet's token balance
	Venue          Kind
}

// Buyer spends lamports of native SOL on mint.
// poolHint is the pool identifier when known and may be empty.
type Buyer interface {
	Buy(ctx context.Context, w *wallet.Wallet, mint string, lamports uint64, poolHint string) (*BuyResult, error)
}

// fillMeter measures tokens received by comparing the wallet's holding of a
// mint before and after a trade, across both token programs.
type fillMeter struct {
	rpc    solana.AccountReader
	owner  string
	mint   string
	before uint64
}

func startFill(ctx context.Context, rpc solana.AccountReader, owner, mint string) (*fillMeter, error) {
	h, err := solana.FindTokenHolding(ctx, rpc, owner, mint)
	if err != nil {
		return nil, fmt.Errorf("read token balance: %w", err)
	}
	return &fillMeter{rpc: rpc, owner: owner, mint: mint, before: h.Total}, nil
}

// received returns the positive balance delta, or zero.
func (m *fillMeter) received(ctx context.Context) (uint64, error) {
	h, err := solana.FindTokenHolding(ctx, m.rpc, m.owner, m.mint)
	if err != nil {
		return 0, fmt.Errorf("read token balance: %w", err)
	}
	if h.Total <= m.before {
		return 0, nil
	}
	return h.Total - m.before, nil
}
