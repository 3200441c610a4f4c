// Package liquidity deposits native SOL and tokens into a PumpSwap pool and
// burns the resulting pool-share (LP) tokens.
package liquidity

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"liquidify/internal/solana"
	"liquidify/internal/txn"
	"liquidify/internal/wallet"
)

// ErrNothingToBurn is returned when the wallet holds no pool shares.
var ErrNothingToBurn = errors.New("no pool shares to burn")

var depositDiscriminator = []byte{0xf2, 0x23, 0xc6, 0x89, 0x52, 0xe1, 0xf2, 0xb6}

// DepositResult reports a confirmed deposit. Amounts are measured from wallet
// balances where possible; quoted values are used only when a read fails.
type DepositResult struct {
	Signature      string
	LPMint         string
	SharesReceived uint64
	QuoteSpent     uint64
	BaseSpent      uint64
}

// Provider adds liquidity and burns pool shares.
type Provider interface {
	Deposit(ctx context.Context, w *wallet.Wallet, pool string, lamports uint64, slippagePct int) (*DepositResult, error)
	Burn(ctx context.Context, w *wallet.Wallet, lpMint string, amount uint64) (string, error)
	ShareBalance(ctx context.Context, w *wallet.Wallet, lpMint string) (*solana.TokenHolding, error)
}

// PumpSwapConfig configures deposit transactions.
type PumpSwapConfig struct {
	ComputeUnitPrice uint64 // micro-lamports per CU, default 100_000
	ComputeUnitLimit uint32 // default 300_000
}

// PumpSwap implements Provider against the PumpSwap AMM program.
type PumpSwap struct {
	rpc       ChainReader
	submitter *txn.Submitter
	cfg       PumpSwapConfig
}

// Compile-time interface check.
var _ Provider = (*PumpSwap)(nil)

// NewPumpSwap creates a PumpSwap provider.
func NewPumpSwap(rpc ChainReader, submitter *txn.Submitter, cfg PumpSwapConfig) *PumpSwap {
	if cfg.ComputeUnitPrice == 0 {
		cfg.ComputeUnitPrice = 100_000
	}
	if cfg.ComputeUnitLimit == 0 {
		cfg.ComputeUnitLimit = 300_000
	}
	return &PumpSwap{rpc: rpc, submitter: submitter, cfg: cfg}
}

// Deposit pairs up to lamports of SOL with the wallet's tokens at the pool ratio.
// When the wallet holds fewer tokens than the full amount requires, the SOL side
// is reduced to what the token balance supports.
func (p *PumpSwap) Deposit(ctx context.Context, w *wallet.Wallet, poolAddr string, lamports uint64, slippagePct int) (*DepositResult, error) {
	pool, err := LoadPool(ctx, p.rpc, poolAddr)
	if err != nil {
		return nil, err
	}
	if pool.QuoteMint != solana.WrappedSOLMint {
		return nil, fmt.Errorf("pool %s quote mint %s is not wrapped SOL", poolAddr, pool.QuoteMint)
	}

	baseProgram, err := p.mintProgram(ctx, pool.BaseMint)
	if err != nil {
		return nil, err
	}

	baseATA, err := solana.AssociatedTokenAddress(w.Address(), pool.BaseMint, baseProgram)
	if err != nil {
		return nil, err
	}
	baseBalance, err := p.accountAmount(ctx, baseATA)
	if err != nil {
		return nil, fmt.Errorf("read token balance: %w", err)
	}

	quote, err := FitDeposit(pool, lamports, baseBalance, slippagePct)
	if err != nil {
		return nil, err
	}

	sharesBefore, err := solana.FindTokenHolding(ctx, p.rpc, w.Address(), pool.LPMint)
	if err != nil {
		return nil, fmt.Errorf("read share balance: %w", err)
	}
	nativeBefore, err := p.rpc.GetBalance(ctx, w.Address())
	if err != nil {
		return nil, fmt.Errorf("read native balance: %w", err)
	}

	instructions, err := p.depositInstructions(w.PublicKey(), pool, baseProgram, quote)
	if err != nil {
		return nil, err
	}

	sig, err := p.submitter.Execute(ctx, w, instructions...)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	res := &DepositResult{
		Signature:      sig,
		LPMint:         pool.LPMint,
		SharesReceived: quote.LPOut,
		QuoteSpent:     quote.QuoteIn,
		BaseSpent:      quote.BaseIn,
	}

	if after, err := solana.FindTokenHolding(ctx, p.rpc, w.Address(), pool.LPMint); err == nil && after.Total > sharesBefore.Total {
		res.SharesReceived = after.Total - sharesBefore.Total
	}
	if after, err := p.accountAmount(ctx, baseATA); err == nil && baseBalance > after {
		res.BaseSpent = baseBalance - after
	}
	// The wrapped SOL account is closed in the same transaction, so the native
	// delta is the quote paid plus fees and any rent for new share accounts.
	// It is capped at the deposit budget.
	if after, err := p.rpc.GetBalance(ctx, w.Address()); err == nil && nativeBefore > after {
		res.QuoteSpent = min(nativeBefore-after, lamports)
	}
	return res, nil
}

// accountAmount returns the balance of a token account, zero when it does not exist.
func (p *PumpSwap) accountAmount(ctx context.Context, account string) (uint64, error) {
	info, err := p.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		return 0, err
	}
	if info == nil || info.Data == "" {
		return 0, nil
	}
	return solana.TokenAccountAmount(info.Data)
}

func (p *PumpSwap) mintProgram(ctx context.Context, mint string) (string, error) {
	info, err := p.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return "", fmt.Errorf("get mint %s: %w", mint, err)
	}
	if info == nil {
		return "", fmt.Errorf("mint %s not found", mint)
	}
	switch info.Owner {
	case solana.TokenProgramID, solana.Token2022ProgramID:
		return info.Owner, nil
	}
	return "", fmt.Errorf("mint %s owned by unknown program %s", mint, info.Owner)
}

// depositInstructions wraps SOL, deposits, and unwraps the remainder.
func (p *PumpSwap) depositInstructions(user solanago.PublicKey, pool *PoolState, baseProgram string, q *DepositQuote) ([]solanago.Instruction, error) {
	keys, err := parseKeys(map[string]string{
		"pool":        pool.Address,
		"baseMint":    pool.BaseMint,
		"quoteMint":   pool.QuoteMint,
		"lpMint":      pool.LPMint,
		"baseVault":   pool.BaseVault,
		"quoteVault":  pool.QuoteVault,
		"baseProgram": baseProgram,
	})
	if err != nil {
		return nil, err
	}

	tokenProgram := solanago.MustPublicKeyFromBase58(solana.TokenProgramID)
	token2022 := solanago.MustPublicKeyFromBase58(solana.Token2022ProgramID)

	owner := user.String()
	baseATA, err := ata(owner, pool.BaseMint, baseProgram)
	if err != nil {
		return nil, err
	}
	wsolATA, err := ata(owner, solana.WrappedSOLMint, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	lpATA, err := ata(owner, pool.LPMint, solana.Token2022ProgramID)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 8+24)
	copy(data, depositDiscriminator)
	binary.LittleEndian.PutUint64(data[8:], q.LPOut)
	binary.LittleEndian.PutUint64(data[16:], q.MaxBase)
	binary.LittleEndian.PutUint64(data[24:], q.MaxQuote)

	deposit := solanago.NewInstruction(
		solanago.MustPublicKeyFromBase58(PumpSwapProgramID),
		solanago.AccountMetaSlice{
			solanago.Meta(keys["pool"]).WRITE(),
			solanago.Meta(solanago.MustPublicKeyFromBase58(PumpSwapGlobalConfig)),
			solanago.Meta(user).WRITE().SIGNER(),
			solanago.Meta(keys["baseMint"]),
			solanago.Meta(keys["quoteMint"]),
			solanago.Meta(keys["lpMint"]).WRITE(),
			solanago.Meta(baseATA).WRITE(),
			solanago.Meta(wsolATA).WRITE(),
			solanago.Meta(lpATA).WRITE(),
			solanago.Meta(keys["baseVault"]).WRITE(),
			solanago.Meta(keys["quoteVault"]).WRITE(),
			solanago.Meta(keys["baseProgram"]),
			solanago.Meta(token2022),
			solanago.Meta(solanago.MustPublicKeyFromBase58(PumpSwapEventAuthority)),
			solanago.Meta(solanago.MustPublicKeyFromBase58(PumpSwapProgramID)),
		},
		data,
	)

	return []solanago.Instruction{
		txn.ComputeUnitPrice(p.cfg.ComputeUnitPrice),
		txn.ComputeUnitLimit(p.cfg.ComputeUnitLimit),
		txn.CreateAssociatedTokenAccountIdempotent(user, wsolATA, user, keys["quoteMint"], tokenProgram),
		txn.Transfer(user, wsolATA, q.MaxQuote),
		txn.SyncNative(wsolATA, tokenProgram),
		txn.CreateAssociatedTokenAccountIdempotent(user, lpATA, user, keys["lpMint"], token2022),
		deposit,
		txn.CloseAccount(wsolATA, user, user, tokenProgram),
	}, nil
}

// ShareBalance returns the wallet's pool-share holding under either token program.
func (p *PumpSwap) ShareBalance(ctx context.Context, w *wallet.Wallet, lpMint string) (*solana.TokenHolding, error) {
	h, err := solana.FindTokenHolding(ctx, p.rpc, w.Address(), lpMint)
	if err != nil {
		return nil, fmt.Errorf("read share balance: %w", err)
	}
	return h, nil
}

// Burn destroys up to amount pool shares in one transaction, drawing from
// every share account the wallet holds, SPL Token and Token-2022 alike.
func (p *PumpSwap) Burn(ctx context.Context, w *wallet.Wallet, lpMint string, amount uint64) (string, error) {
	h, err := p.ShareBalance(ctx, w, lpMint)
	if err != nil {
		return "", err
	}
	mint, err := solanago.PublicKeyFromBase58(lpMint)
	if err != nil {
		return "", fmt.Errorf("lp mint: %w", err)
	}

	var instructions []solanago.Instruction
	remaining := amount
	for _, acct := range h.Funded {
		if remaining == 0 {
			break
		}
		n := min(remaining, acct.Amount)
		account, err := solanago.PublicKeyFromBase58(acct.Account)
		if err != nil {
			return "", fmt.Errorf("share account: %w", err)
		}
		program := solanago.MustPublicKeyFromBase58(acct.Program)
		instructions = append(instructions, txn.Burn(account, mint, w.PublicKey(), program, n))
		remaining -= n
	}
	if len(instructions) == 0 {
		return "", ErrNothingToBurn
	}

	sig, err := p.submitter.Execute(ctx, w, instructions...)
	if err != nil {
		return sig, fmt.Errorf("burn: %w", err)
	}
	return sig, nil
}

func ata(owner, mint, program string) (solanago.PublicKey, error) {
	addr, err := solana.AssociatedTokenAddress(owner, mint, program)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("derive token account: %w", err)
	}
	return solanago.MustPublicKeyFromBase58(addr), nil
}

func parseKeys(in map[string]string) (map[string]solanago.PublicKey, error) {
	out := make(map[string]solanago.PublicKey, len(in))
	for name, s := range in {
		k, err := solanago.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = k
	}
	return out, nil
}
