package solana

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
)

func TestAssociatedTokenAddress_Derivation(t *testing.T) {
	wallet := "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	mint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	addr, err := AssociatedTokenAddress(wallet, mint, TokenProgramID)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress: %v", err)
	}

	again, err := AssociatedTokenAddress(wallet, mint, TokenProgramID)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress: %v", err)
	}
	if addr != again {
		t.Errorf("derivation not deterministic: %s != %s", addr, again)
	}

	other, err := AssociatedTokenAddress(wallet, mint, Token2022ProgramID)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress: %v", err)
	}
	if addr == other {
		t.Error("expected distinct addresses per token program")
	}

	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		t.Fatalf("derived address is not a pubkey: %s", addr)
	}
	if isOnCurve(raw) {
		t.Error("derived address must be off curve")
	}
}

func TestAssociatedTokenAddress_InvalidInput(t *testing.T) {
	if _, err := AssociatedTokenAddress("not-base58!", WrappedSOLMint, TokenProgramID); err == nil {
		t.Error("expected error for invalid wallet")
	}
	if _, err := AssociatedTokenAddress(SystemProgramID, "abc", TokenProgramID); err == nil {
		t.Error("expected error for short mint")
	}
}

func TestIsValidPubkey(t *testing.T) {
	cases := map[string]bool{
		WrappedSOLMint:  true,
		SystemProgramID: true,
		"":              false,
		"0OIl":          false,
		"abc":           false,
	}
	for in, want := range cases {
		if got := IsValidPubkey(in); got != want {
			t.Errorf("IsValidPubkey(%q) = %v, want %v", in, got, want)
		}
	}
}

type accountMap map[string]*AccountInfo

func (m accountMap) GetAccountInfo(_ context.Context, pubkey string) (*AccountInfo, error) {
	return m[pubkey], nil
}

func tokenAccountData(amount uint64) string {
	data := make([]byte, 165)
	binary.LittleEndian.PutUint64(data[64:72], amount)
	return base64.StdEncoding.EncodeToString(data)
}

func TestFindTokenHolding(t *testing.T) {
	owner := "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	mint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	legacy, _ := AssociatedTokenAddress(owner, mint, TokenProgramID)
	t22, _ := AssociatedTokenAddress(owner, mint, Token2022ProgramID)

	t.Run("none", func(t *testing.T) {
		h, err := FindTokenHolding(context.Background(), accountMap{}, owner, mint)
		if err != nil {
			t.Fatalf("FindTokenHolding: %v", err)
		}
		if h.Total != 0 || h.Account != t22 || h.Program != Token2022ProgramID {
			t.Errorf("unexpected holding: %+v", h)
		}
		if len(h.Funded) != 0 {
			t.Errorf("expected no funded accounts, got %+v", h.Funded)
		}
	})

	t.Run("legacy program", func(t *testing.T) {
		rpc := accountMap{legacy: {Owner: TokenProgramID, Data: tokenAccountData(500)}}
		h, err := FindTokenHolding(context.Background(), rpc, owner, mint)
		if err != nil {
			t.Fatalf("FindTokenHolding: %v", err)
		}
		if h.Account != legacy || h.Program != TokenProgramID || h.Amount != 500 || h.Total != 500 {
			t.Errorf("unexpected holding: %+v", h)
		}
	})

	t.Run("both programs", func(t *testing.T) {
		rpc := accountMap{
			legacy: {Owner: TokenProgramID, Data: tokenAccountData(100)},
			t22:    {Owner: Token2022ProgramID, Data: tokenAccountData(900)},
		}
		h, err := FindTokenHolding(context.Background(), rpc, owner, mint)
		if err != nil {
			t.Fatalf("FindTokenHolding: %v", err)
		}
		if h.Account != t22 || h.Amount != 900 || h.Total != 1000 {
			t.Errorf("unexpected holding: %+v", h)
		}
		if len(h.Funded) != 2 {
			t.Fatalf("expected both accounts funded, got %+v", h.Funded)
		}
		var sum uint64
		for _, acct := range h.Funded {
			sum += acct.Amount
		}
		if sum != h.Total {
			t.Errorf("funded accounts sum to %d, total %d", sum, h.Total)
		}
	})
}
