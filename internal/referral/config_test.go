package referral_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakereferral/internal/referral"
	"stakereferral/internal/referraltest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := referral.DefaultConfig()
	assert.Equal(t, uint32(2_592_000), cfg.Defaults.TransferDuration)
	assert.Equal(t, uint32(1_000), cfg.Defaults.BaseFee)
	assert.Equal(t, uint32(10_000), cfg.Defaults.MaxFee)
	assert.Equal(t, referral.ResetWithSettlement, cfg.ResetGrouping)

	require.ErrorIs(t, cfg.Validate(), referral.ErrInvalidConfig, "proxy authority is required")
	cfg.ProxyAuthority = referraltest.NewKey()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	valid := referral.DefaultConfig()
	valid.ProxyAuthority = referraltest.NewKey()

	tests := []struct {
		name   string
		mutate func(*referral.Config)
	}{
		{"net stake metric", func(c *referral.Config) { c.NetStakeMetric = "all" }},
		{"reset grouping", func(c *referral.Config) { c.ResetGrouping = "" }},
		{"settlement policy", func(c *referral.Config) { c.SettlementPolicy = "anyone" }},
		{"update policy", func(c *referral.Config) { c.UpdatePolicy = "partner" }},
		{"stake amount source", func(c *referral.Config) { c.StakeAmountSource = "guess" }},
		{"base above max", func(c *referral.Config) { c.Defaults.BaseFee = 10_000; c.Defaults.MaxFee = 9_000 }},
		{"max above 100%", func(c *referral.Config) { c.Defaults.MaxFee = 10_001 }},
		{"zero net stake", func(c *referral.Config) { c.Defaults.MaxNetStake = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), referral.ErrInvalidConfig)
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, referral.KindAuthorization, referral.KindOf(referral.ErrAccessDenied))
	assert.Equal(t, referral.KindValidation, referral.KindOf(referral.ErrFeeOverMax))
	assert.Equal(t, referral.KindValidation, referral.KindOf(referral.ErrInsufficientBalance))
	assert.Equal(t, referral.KindState, referral.KindOf(referral.ErrTransferNotAvailable))
	assert.Equal(t, referral.KindNotFound, referral.KindOf(referral.ErrPartnerNotFound))
	assert.Equal(t, referral.KindArithmetic, referral.KindOf(referral.ErrCalculationFailure))
	assert.Equal(t, referral.KindUpstream, referral.KindOf(referral.ErrInsufficientFunds))
	assert.Equal(t, referral.KindInternal, referral.KindOf(assert.AnError))
}
