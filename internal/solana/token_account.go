package solana

import (
	"context"
	"fmt"
)

// AccountReader is the subset of RPCClient needed to read accounts.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}

// TokenHolding is a wallet's position in one mint.
type TokenHolding struct {
	Account string // associated token account holding the larger balance
	Program string // token program owning Account
	Amount  uint64 // balance of Account
	Total   uint64 // sum across all probed token programs

	// Funded lists every probed account with a non-zero balance, in
	// TokenPrograms order.
	Funded []TokenAccountBalance
}

// TokenAccountBalance is the balance of one associated token account.
type TokenAccountBalance struct {
	Account string
	Program string
	Amount  uint64
}

// FindTokenHolding probes the owner's associated token accounts for mint under
// both the SPL Token and Token-2022 programs. Missing accounts count as zero.
// When neither exists, Account is the Token-2022 address and Amount is zero.
func FindTokenHolding(ctx context.Context, rpc AccountReader, owner, mint string) (*TokenHolding, error) {
	var holding *TokenHolding

	for _, program := range TokenPrograms {
		ata, err := AssociatedTokenAddress(owner, mint, program)
		if err != nil {
			return nil, fmt.Errorf("derive token account: %w", err)
		}

		info, err := rpc.GetAccountInfo(ctx, ata)
		if err != nil {
			return nil, fmt.Errorf("get token account %s: %w", ata, err)
		}

		var amount uint64
		if info != nil && info.Data != "" {
			amount, err = TokenAccountAmount(info.Data)
			if err != nil {
				return nil, fmt.Errorf("parse token account %s: %w", ata, err)
			}
		}

		if holding == nil {
			holding = &TokenHolding{Account: ata, Program: program, Amount: amount}
		} else if amount > holding.Amount {
			holding.Account = ata
			holding.Program = program
			holding.Amount = amount
		}
		holding.Total += amount
		if amount > 0 {
			holding.Funded = append(holding.Funded, TokenAccountBalance{Account: ata, Program: program, Amount: amount})
		}
	}

	return holding, nil
}
