package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL uint64 = 1_000_000_000

// Lamports is an amount of native currency in its smallest unit.
type Lamports uint64

// SOL formats the amount as a decimal SOL string with 9 fractional digits trimmed.
func (l Lamports) SOL() string {
	whole := uint64(l) / LamportsPerSOL
	frac := uint64(l) % LamportsPerSOL
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	s := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, s)
}

// String implements fmt.Stringer.
func (l Lamports) String() string {
	return l.SOL() + " SOL"
}

// ParseSOL converts a decimal SOL string ("0.0005") to lamports.
// More than 9 fractional digits is an error.
func ParseSOL(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("invalid SOL amount %q", s)
	}
	if r.Sign() < 0 {
		return 0, fmt.Errorf("negative SOL amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt64(int64(LamportsPerSOL)))
	if !r.IsInt() {
		return 0, fmt.Errorf("SOL amount %q has more than 9 decimals", s)
	}
	n := r.Num()
	if !n.IsUint64() {
		return 0, fmt.Errorf("SOL amount %q overflows", s)
	}
	return n.Uint64(), nil
}

// MustParseSOL is ParseSOL for constants.
func MustParseSOL(s string) uint64 {
	v, err := ParseSOL(s)
	if err != nil {
		panic(err)
	}
	return v
}

// SOLFloat returns the amount in SOL as a float for display and analytics.
func SOLFloat(lamports uint64) float64 {
	return float64(lamports) / float64(LamportsPerSOL)
}
