package solana

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program and mint addresses.
const (
	SystemProgramID          = "11111111111111111111111111111111"
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID       = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	ComputeBudgetProgramID   = "ComputeBudget111111111111111111111111111111"
	WrappedSOLMint           = "So11111111111111111111111111111111111111112"
)

// TokenPrograms lists the token programs a mint may belong to, in probe order.
var TokenPrograms = []string{Token2022ProgramID, TokenProgramID}

// FindProgramAddress derives a Program Derived Address and its bump seed.
//
// PDA derivation:
//  1. Concatenate all seeds with bump
//  2. Append program ID and "ProgramDerivedAddress" marker
//  3. SHA256 hash
//  4. First bump from 255 down whose hash is off the ed25519 curve
func FindProgramAddress(seeds [][]byte, programID string) (string, uint8, error) {
	programBytes, err := decodePubkey(programID)
	if err != nil {
		return "", 0, fmt.Errorf("program id: %w", err)
	}

	for bump := 255; bump >= 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programBytes...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), uint8(bump), nil
		}
	}

	return "", 0, fmt.Errorf("no viable bump seed")
}

// AssociatedTokenAddress derives the associated token account of wallet for mint
// under the given token program.
func AssociatedTokenAddress(wallet, mint, tokenProgram string) (string, error) {
	walletBytes, err := decodePubkey(wallet)
	if err != nil {
		return "", fmt.Errorf("wallet: %w", err)
	}
	mintBytes, err := decodePubkey(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	programBytes, err := decodePubkey(tokenProgram)
	if err != nil {
		return "", fmt.Errorf("token program: %w", err)
	}

	addr, _, err := FindProgramAddress([][]byte{walletBytes, programBytes, mintBytes}, AssociatedTokenProgramID)
	return addr, err
}

// IsValidPubkey reports whether s decodes to a 32-byte public key.
func IsValidPubkey(s string) bool {
	_, err := decodePubkey(s)
	return err == nil
}

func decodePubkey(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", s, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("pubkey %q has %d bytes", s, len(b))
	}
	return b, nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
