package models

import (
	"time"

	"stakereferral/pkg/fees"
)

// Accumulators 结算周期内的累计值，结算后清零
//
// Native amounts (DepositSol*, LiqUnstakeSolAmount) are lamports measured
// around the protocol call. mSOL amounts are measured derivative deltas.
// The *Fees totals are flat fees skimmed to the payout account, always in
// mSOL. Deposits pay it from the minted mSOL after the call. Unstakes pay it
// from the mSOL source before the call, so LiqUnstakeMsolAmount and
// DelayedUnstakeAmount count what the protocol burned, net of that fee.
type Accumulators struct {
	DepositSolAmount              uint64 `gorm:"column:deposit_sol_amount;default:0" json:"deposit_sol_amount"`
	DepositSolOperations          uint64 `gorm:"column:deposit_sol_operations;default:0" json:"deposit_sol_operations"`
	DepositSolFees                uint64 `gorm:"column:deposit_sol_fees;default:0" json:"deposit_sol_fees"`
	DepositStakeAccountAmount     uint64 `gorm:"column:deposit_stake_account_amount;default:0" json:"deposit_stake_account_amount"`
	DepositStakeAccountOperations uint64 `gorm:"column:deposit_stake_account_operations;default:0" json:"deposit_stake_account_operations"`
	DepositStakeAccountFees       uint64 `gorm:"column:deposit_stake_account_fees;default:0" json:"deposit_stake_account_fees"`
	LiqUnstakeMsolAmount          uint64 `gorm:"column:liq_unstake_msol_amount;default:0" json:"liq_unstake_msol_amount"`
	LiqUnstakeSolAmount           uint64 `gorm:"column:liq_unstake_sol_amount;default:0" json:"liq_unstake_sol_amount"`
	LiqUnstakeOperations          uint64 `gorm:"column:liq_unstake_operations;default:0" json:"liq_unstake_operations"`
	LiqUnstakeMsolFees            uint64 `gorm:"column:liq_unstake_msol_fees;default:0" json:"liq_unstake_msol_fees"`
	LiqUnstakeOperationFees       uint64 `gorm:"column:liq_unstake_operation_fees;default:0" json:"liq_unstake_operation_fees"`
	DelayedUnstakeAmount          uint64 `gorm:"column:delayed_unstake_amount;default:0" json:"delayed_unstake_amount"`
	DelayedUnstakeOperations      uint64 `gorm:"column:delayed_unstake_operations;default:0" json:"delayed_unstake_operations"`
	DelayedUnstakeFees            uint64 `gorm:"column:delayed_unstake_fees;default:0" json:"delayed_unstake_fees"`
}

// OperationFees 每类代理操作的固定费率 (bp)
type OperationFees struct {
	DepositSol          uint32 `gorm:"column:operation_deposit_sol_fee;default:0" json:"deposit_sol"`
	DepositStakeAccount uint32 `gorm:"column:operation_deposit_stake_account_fee;default:0" json:"deposit_stake_account"`
	LiquidUnstake       uint32 `gorm:"column:operation_liquid_unstake_fee;default:0" json:"liquid_unstake"`
	DelayedUnstake      uint32 `gorm:"column:operation_delayed_unstake_fee;default:0" json:"delayed_unstake"`
}

// All returns the four fees in a fixed order for validation.
func (f OperationFees) All() []fees.Fee {
	return []fees.Fee{
		fees.FromBasisPoints(f.DepositSol),
		fees.FromBasisPoints(f.DepositStakeAccount),
		fees.FromBasisPoints(f.LiquidUnstake),
		fees.FromBasisPoints(f.DelayedUnstake),
	}
}

// ReferralState 合作方 (推荐码) 记录
type ReferralState struct {
	ID               uint   `gorm:"primarykey" json:"id"`
	PartnerAccount   string `gorm:"column:partner_account;size:44;uniqueIndex;not null" json:"partner_account"`
	PayoutAccount    string `gorm:"column:payout_account;size:44;not null" json:"payout_account"`
	PartnerName      string `gorm:"column:partner_name;size:20;not null" json:"partner_name"`
	Pause            bool   `gorm:"column:pause;default:false" json:"pause"`
	TransferDuration uint32 `gorm:"column:transfer_duration;not null" json:"transfer_duration"`
	LastTransferTime int64  `gorm:"column:last_transfer_time;not null" json:"last_transfer_time"`
	BaseFee          uint32 `gorm:"column:base_fee;not null" json:"base_fee"`
	MaxFee           uint32 `gorm:"column:max_fee;not null" json:"max_fee"`
	MaxNetStake      uint64 `gorm:"column:max_net_stake;not null" json:"max_net_stake"`

	OperationFees OperationFees `gorm:"embedded" json:"operation_fees"`
	Accumulators  Accumulators  `gorm:"embedded" json:"accumulators"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ReferralState) TableName() string {
	return "referral_state"
}

// Tier returns the share calculator configured on the record.
func (r *ReferralState) Tier() fees.TierConfig {
	return fees.TierConfig{
		BaseFee:     fees.FromBasisPoints(r.BaseFee),
		MaxFee:      fees.FromBasisPoints(r.MaxFee),
		MaxNetStake: r.MaxNetStake,
	}
}
