// Package feeclaim collects accrued pump.fun creator fees into the operating wallet.
package feeclaim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"liquidify/internal/txn"
	"liquidify/internal/venue"
	"liquidify/internal/wallet"
)

// ErrNoFeesAvailable is returned when there is nothing to claim.
var ErrNoFeesAvailable = errors.New("no creator fees available")

// Receipt identifies a submitted claim.
type Receipt struct {
	Signature string
}

// Claimer claims creator fees for the wallet.
type Claimer interface {
	Claim(ctx context.Context, w *wallet.Wallet) (*Receipt, error)
}

// DefaultPriorityFeeSOL is the priority fee attached to claim transactions.
const DefaultPriorityFeeSOL = 0.0001

// PumpPortal claims through the PumpPortal collectCreatorFee action.
type PumpPortal struct {
	client         *venue.PumpPortalClient
	submitter      *txn.Submitter
	priorityFeeSOL float64
}

// Compile-time interface check.
var _ Claimer = (*PumpPortal)(nil)

// NewPumpPortal creates a claimer. A zero priority fee uses DefaultPriorityFeeSOL.
func NewPumpPortal(client *venue.PumpPortalClient, submitter *txn.Submitter, priorityFeeSOL float64) *PumpPortal {
	if priorityFeeSOL <= 0 {
		priorityFeeSOL = DefaultPriorityFeeSOL
	}
	return &PumpPortal{client: client, submitter: submitter, priorityFeeSOL: priorityFeeSOL}
}

// Claim requests, signs and submits the claim transaction.
func (p *PumpPortal) Claim(ctx context.Context, w *wallet.Wallet) (*Receipt, error) {
	raw, err := p.client.TradeTransaction(ctx, venue.TradeRequest{
		PublicKey:   w.Address(),
		Action:      "collectCreatorFee",
		PriorityFee: p.priorityFeeSOL,
	})
	if err != nil {
		if noFees(err) {
			return nil, fmt.Errorf("%w: %v", ErrNoFeesAvailable, err)
		}
		return nil, fmt.Errorf("request claim: %w", err)
	}

	sig, err := p.submitter.ExecuteSerialized(ctx, w, raw)
	if err != nil {
		if noFees(err) {
			return nil, fmt.Errorf("%w: %v", ErrNoFeesAvailable, err)
		}
		return nil, fmt.Errorf("submit claim: %w", err)
	}
	return &Receipt{Signature: sig}, nil
}

func noFees(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no creator fees") || strings.Contains(msg, "no fees")
}
