package referral

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"stakereferral/pkg/fees"
)

const (
	// MaxPartnerNameLength is the byte length limit of a partner name.
	MaxPartnerNameLength = 20
	// MaxForemen bounds the fixed operator list.
	MaxForemen = 2

	// DefaultTransferDuration is 30 days in seconds.
	DefaultTransferDuration uint32 = 2_592_000
	DefaultBaseFee          uint32 = 1_000
	DefaultMaxFee           uint32 = 10_000
	// DefaultMaxNetStake is 100k SOL in lamports.
	DefaultMaxNetStake uint64 = 100_000 * 1_000_000_000
)

// NetStakeMetric selects which deposit accumulators count as "deposited"
// when computing net stake. Unstaked is always the liquid-unstake native
// total.
type NetStakeMetric string

const (
	NetStakeDepositSol         NetStakeMetric = "deposit_sol"
	NetStakeDepositSolAndStake NetStakeMetric = "deposit_sol_and_stake"
)

// ResetGrouping selects which accumulators a settlement clears.
type ResetGrouping string

const (
	// ResetWithSettlement clears every accumulator on settle.
	ResetWithSettlement ResetGrouping = "with_settlement"
	// ResetIndependent keeps delayed-unstake accumulators until
	// ResetDelayedUnstake is called.
	ResetIndependent ResetGrouping = "independent"
)

// SettlementPolicy selects who may trigger a settlement.
type SettlementPolicy string

const (
	SettlementPermissionless SettlementPolicy = "permissionless"
	SettlementAdmin          SettlementPolicy = "admin"
)

// UpdatePolicy selects who may update a partner record.
type UpdatePolicy string

const (
	UpdateAdmin                  UpdatePolicy = "admin"
	UpdateAdminOrOperator        UpdatePolicy = "admin_or_operator"
	UpdateAdminOperatorOrPartner UpdatePolicy = "admin_operator_or_partner"
)

// StakeAmountSource selects how a stake-account deposit is measured.
type StakeAmountSource string

const (
	// StakeFromBalanceDiff measures the lamports leaving the stake account.
	StakeFromBalanceDiff StakeAmountSource = "balance_diff"
	// StakeFromDelegation reads the delegation record before the call.
	StakeFromDelegation StakeAmountSource = "delegation"
)

// PartnerDefaults seeds new partner records.
type PartnerDefaults struct {
	TransferDuration uint32
	BaseFee          uint32
	MaxFee           uint32
	MaxNetStake      uint64
}

// Config holds the engine policies.
type Config struct {
	NetStakeMetric    NetStakeMetric
	ResetGrouping     ResetGrouping
	SettlementPolicy  SettlementPolicy
	UpdatePolicy      UpdatePolicy
	StakeAmountSource StakeAmountSource
	// ProxyAuthority signs the fee skims. It must be the owner or the
	// delegate of the accounts the fee is taken from.
	ProxyAuthority solana.PublicKey
	Defaults       PartnerDefaults
}

// DefaultConfig returns the production defaults with no proxy authority.
func DefaultConfig() Config {
	return Config{
		NetStakeMetric:    NetStakeDepositSol,
		ResetGrouping:     ResetWithSettlement,
		SettlementPolicy:  SettlementPermissionless,
		UpdatePolicy:      UpdateAdminOrOperator,
		StakeAmountSource: StakeFromDelegation,
		Defaults: PartnerDefaults{
			TransferDuration: DefaultTransferDuration,
			BaseFee:          DefaultBaseFee,
			MaxFee:           DefaultMaxFee,
			MaxNetStake:      DefaultMaxNetStake,
		},
	}
}

// Validate checks that every policy has a known value and the defaults are
// a valid tier.
func (c Config) Validate() error {
	switch c.NetStakeMetric {
	case NetStakeDepositSol, NetStakeDepositSolAndStake:
	default:
		return fmt.Errorf("%w: net stake metric %q", ErrInvalidConfig, c.NetStakeMetric)
	}
	switch c.ResetGrouping {
	case ResetWithSettlement, ResetIndependent:
	default:
		return fmt.Errorf("%w: reset grouping %q", ErrInvalidConfig, c.ResetGrouping)
	}
	switch c.SettlementPolicy {
	case SettlementPermissionless, SettlementAdmin:
	default:
		return fmt.Errorf("%w: settlement policy %q", ErrInvalidConfig, c.SettlementPolicy)
	}
	switch c.UpdatePolicy {
	case UpdateAdmin, UpdateAdminOrOperator, UpdateAdminOperatorOrPartner:
	default:
		return fmt.Errorf("%w: update policy %q", ErrInvalidConfig, c.UpdatePolicy)
	}
	switch c.StakeAmountSource {
	case StakeFromBalanceDiff, StakeFromDelegation:
	default:
		return fmt.Errorf("%w: stake amount source %q", ErrInvalidConfig, c.StakeAmountSource)
	}
	if c.ProxyAuthority.IsZero() {
		return fmt.Errorf("%w: proxy authority not set", ErrInvalidConfig)
	}
	if err := validateTier(c.Defaults.BaseFee, c.Defaults.MaxFee, c.Defaults.MaxNetStake); err != nil {
		return fmt.Errorf("%w: defaults: %v", ErrInvalidConfig, err)
	}
	return nil
}

func validateTier(base, max uint32, maxNetStake uint64) error {
	if err := fees.FromBasisPoints(max).Check(); err != nil {
		return fmt.Errorf("%w: max fee %d bp", ErrFeeOverMax, max)
	}
	if base > max {
		return fmt.Errorf("%w: base fee %d bp > max fee %d bp", ErrFeeOverMax, base, max)
	}
	if maxNetStake == 0 && base != max {
		return ErrInvalidNetStakeConfig
	}
	return nil
}
