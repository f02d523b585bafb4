package fees

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeApply(t *testing.T) {
	tests := []struct {
		name   string
		bp     uint32
		amount uint64
		want   uint64
	}{
		{"zero amount", 27, 0, 0},
		{"zero fee", 0, 1_000_000, 0},
		{"operation fee", 27, 1_000_000, 2_700},
		{"rounds down", 1, 9_999, 0},
		{"full", 10_000, 123_456, 123_456},
		{"no overflow at max amount", 10_000, math.MaxUint64, math.MaxUint64},
		{"half of max amount", 5_000, math.MaxUint64, math.MaxUint64 / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromBasisPoints(tt.bp).Apply(tt.amount))
		})
	}
}

func TestFeeApplyBoundedAndMonotonic(t *testing.T) {
	amounts := []uint64{0, 1, 2, 99, 10_000, 10_001, 1 << 32, 1<<63 - 1, 1 << 63, math.MaxUint64}
	for _, bp := range []uint32{0, 1, 27, 50, 999, 5_000, 9_999, 10_000} {
		fee := FromBasisPoints(bp)
		var prev uint64
		for _, amount := range amounts {
			got := fee.Apply(amount)
			assert.LessOrEqual(t, got, amount, "bp=%d amount=%d", bp, amount)
			assert.GreaterOrEqual(t, got, prev, "bp=%d amount=%d", bp, amount)
			prev = got
		}
	}
}

func TestFeeCheck(t *testing.T) {
	require.NoError(t, FromBasisPoints(10_000).Check())
	require.ErrorIs(t, FromBasisPoints(10_001).Check(), ErrFeeTooHigh)

	require.NoError(t, FromBasisPoints(50).CheckMax(MaxOperationFeeBasisPoints))
	require.ErrorIs(t, FromBasisPoints(51).CheckMax(MaxOperationFeeBasisPoints), ErrFeeTooHigh)
}

func TestParsePercent(t *testing.T) {
	fee, err := ParsePercent("4.5")
	require.NoError(t, err)
	assert.Equal(t, uint32(450), fee.BasisPoints)
	assert.Equal(t, "4.5%", fee.String())

	fee, err = ParsePercent(" 0.27% ")
	require.NoError(t, err)
	assert.Equal(t, uint32(27), fee.BasisPoints)

	fee, err = ParsePercent("0.29")
	require.NoError(t, err)
	assert.Equal(t, uint32(29), fee.BasisPoints)

	fee, err = ParsePercent("0.275")
	require.NoError(t, err)
	assert.Equal(t, uint32(27), fee.BasisPoints)

	_, err = ParsePercent("101")
	assert.ErrorIs(t, err, ErrFeeTooHigh)

	_, err = ParsePercent("-1")
	assert.ErrorIs(t, err, ErrInvalidFee)

	_, err = ParsePercent("abc")
	assert.ErrorIs(t, err, ErrInvalidFee)
}
