package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakereferral/internal/referral"
	"stakereferral/pkg/fees"
)

func TestPoolFromEnv(t *testing.T) {
	a, err := PoolFromEnv(envOf(nil))
	require.NoError(t, err)
	b, err := PoolFromEnv(envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, a, b, "derived addresses are stable")
	assert.NotEqual(t, a.Reserve, a.LiquidityPool)
	assert.Equal(t, fees.FromBasisPoints(30), a.LiquidUnstakeFee)
	assert.Equal(t, fees.FromBasisPoints(7_500), a.TreasuryCut)

	other, err := PoolFromEnv(envOf(map[string]string{"POOL_SEED": "other"}))
	require.NoError(t, err)
	assert.NotEqual(t, a.MsolMint, other.MsolMint)

	mint := devKey("x", "y")
	p, err := PoolFromEnv(envOf(map[string]string{
		"POOL_MSOL_MINT":      mint.String(),
		"POOL_PRICE_LAMPORTS": "11",
		"POOL_PRICE_MSOL":     "10",
	}))
	require.NoError(t, err)
	assert.Equal(t, mint, p.MsolMint)
	assert.Equal(t, uint64(11), p.PriceLamports)

	for name, env := range map[string]map[string]string{
		"bad key":    {"POOL_TREASURY": "nope"},
		"zero price": {"POOL_PRICE_MSOL": "0"},
		"bad fee":    {"POOL_LIQUID_UNSTAKE_FEE": "abc"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := PoolFromEnv(envOf(env))
			require.ErrorIs(t, err, referral.ErrInvalidConfig)
		})
	}
}
