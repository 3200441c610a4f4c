package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholds_ClaimedFees(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name          string
		before, after uint64
		want          uint64
	}{
		{"unchanged", 1_000_000_000, 1_000_000_000, 0},
		{"decreased by tx fee", 1_000_000_000, 999_995_000, 0},
		{"dust", 1_000_000_000, 1_000_100_000, 0},
		{"just above dust", 1_000_000_000, 1_000_100_001, 100_001},
		{"half a thousandth", 1_000_000_000, 1_000_500_000, 500_000},
		{"at ceiling", 0, 500_000_000, 500_000_000},
		{"above ceiling", 0, 3_000_000_000, 500_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, th.ClaimedFees(tt.before, tt.after))
		})
	}
}

func TestThresholds_Spendable(t *testing.T) {
	th := DefaultThresholds()

	assert.Zero(t, th.Spendable(0))
	assert.Zero(t, th.Spendable(300_000), "below reserve")
	assert.Zero(t, th.Spendable(500_000), "equal to reserve")
	assert.Zero(t, th.Spendable(1_499_999), "below minimum after reserve")
	assert.Equal(t, uint64(1_000_000), th.Spendable(1_500_000))
	assert.Equal(t, uint64(10_000_000), th.Spendable(10_500_000))
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())

	bad := DefaultThresholds()
	bad.Dust = bad.ClaimCeiling
	assert.Error(t, bad.Validate())

	bad = DefaultThresholds()
	bad.ClaimCeiling = 0
	assert.Error(t, bad.Validate())
}

func TestSplitHalf(t *testing.T) {
	buy, lp := SplitHalf(20_000_000)
	assert.Equal(t, uint64(10_000_000), buy)
	assert.Equal(t, uint64(10_000_000), lp)

	buy, lp = SplitHalf(7)
	assert.Equal(t, uint64(3), buy)
	assert.Equal(t, uint64(4), lp)
}
