package liquidity

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"liquidify/internal/solana"
)

// PumpSwap program accounts.
const (
	PumpSwapProgramID      = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"
	PumpSwapGlobalConfig   = "ADyA8hdefvWN2dbGGWFotbzWxrAvLW83WG6QCVXvJKqw"
	PumpSwapEventAuthority = "GS4CU59F31iL7aR2Q8zVS8DRrcRnXX1yjQ66TqNVQnaR"
)

// Pool account layout: discriminator(8) | bump(1) | index(2) | creator(32) | ...
const (
	offBaseMint   = 43
	offQuoteMint  = 75
	offLPMint     = 107
	offBaseVault  = 139
	offQuoteVault = 171
	offLPSupply   = 203
	poolMinLen    = offLPSupply + 8
)

// ErrPoolNotFound is returned when the pool account does not exist.
var ErrPoolNotFound = errors.New("pool not found")

// ChainReader is the RPC subset needed to read pool state.
type ChainReader interface {
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
	GetTokenAccountBalance(ctx context.Context, account string) (*solana.TokenAmount, error)
}

// PoolState is a snapshot of a PumpSwap pool with its vault reserves.
type PoolState struct {
	Address      string
	BaseMint     string
	QuoteMint    string
	LPMint       string
	BaseVault    string
	QuoteVault   string
	LPSupply     uint64
	BaseReserve  uint64
	QuoteReserve uint64
}

// LoadPool reads the pool account and both vault balances.
func LoadPool(ctx context.Context, rpc ChainReader, address string) (*PoolState, error) {
	info, err := rpc.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", address, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, address)
	}
	if info.Owner != PumpSwapProgramID {
		return nil, fmt.Errorf("pool %s owned by %s, not PumpSwap", address, info.Owner)
	}

	data, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode pool %s: %w", address, err)
	}

	state, err := ParsePool(address, data)
	if err != nil {
		return nil, err
	}

	base, err := rpc.GetTokenAccountBalance(ctx, state.BaseVault)
	if err != nil {
		return nil, fmt.Errorf("get base vault balance: %w", err)
	}
	quote, err := rpc.GetTokenAccountBalance(ctx, state.QuoteVault)
	if err != nil {
		return nil, fmt.Errorf("get quote vault balance: %w", err)
	}
	state.BaseReserve = base.Amount
	state.QuoteReserve = quote.Amount

	return state, nil
}

// ParsePool decodes the static part of a pool account.
func ParsePool(address string, data []byte) (*PoolState, error) {
	if len(data) < poolMinLen {
		return nil, fmt.Errorf("pool %s data too short: %d", address, len(data))
	}
	key := func(off int) string { return base58.Encode(data[off : off+32]) }

	return &PoolState{
		Address:    address,
		BaseMint:   key(offBaseMint),
		QuoteMint:  key(offQuoteMint),
		LPMint:     key(offLPMint),
		BaseVault:  key(offBaseVault),
		QuoteVault: key(offQuoteVault),
		LPSupply:   binary.LittleEndian.Uint64(data[offLPSupply:]),
	}, nil
}

// EncodePool is the inverse of ParsePool for the fields it reads.
func EncodePool(p *PoolState) ([]byte, error) {
	data := make([]byte, 300)
	put := func(off int, addr string) error {
		b, err := base58.Decode(addr)
		if err != nil || len(b) != 32 {
			return fmt.Errorf("invalid pubkey %q", addr)
		}
		copy(data[off:off+32], b)
		return nil
	}
	for off, addr := range map[int]string{
		offBaseMint:   p.BaseMint,
		offQuoteMint:  p.QuoteMint,
		offLPMint:     p.LPMint,
		offBaseVault:  p.BaseVault,
		offQuoteVault: p.QuoteVault,
	} {
		if err := put(off, addr); err != nil {
			return nil, err
		}
	}
	binary.LittleEndian.PutUint64(data[offLPSupply:], p.LPSupply)
	return data, nil
}
