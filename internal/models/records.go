package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	OperationDeposit             = "deposit"
	OperationDepositStakeAccount = "deposit_stake_account"
	OperationLiquidUnstake       = "liquid_unstake"
	OperationOrderUnstake        = "order_unstake"
)

// OperationRecord 代理操作审计记录
type OperationRecord struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	PartnerAccount string    `gorm:"column:partner_account;size:44;not null;index" json:"partner_account"`
	Operation      string    `gorm:"column:operation;size:32;not null" json:"operation"`
	Caller         string    `gorm:"column:caller;size:44;not null" json:"caller"`
	Requested      uint64    `gorm:"column:requested" json:"requested"`
	Measured       uint64    `gorm:"column:measured" json:"measured"`
	NativeAmount   uint64    `gorm:"column:native_amount" json:"native_amount"`
	Fee            uint64    `gorm:"column:fee" json:"fee"`
	FeeBasisPoints uint32    `gorm:"column:fee_basis_points" json:"fee_basis_points"`
	CreatedAt      time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (OperationRecord) TableName() string {
	return "operation_record"
}

// SettlementRecord 结算记录
type SettlementRecord struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	PartnerAccount  string    `gorm:"column:partner_account;size:44;not null;index" json:"partner_account"`
	Caller          string    `gorm:"column:caller;size:44;not null" json:"caller"`
	NetStake        uint64    `gorm:"column:net_stake" json:"net_stake"`
	RateBasisPoints uint32    `gorm:"column:rate_basis_points" json:"rate_basis_points"`
	Pool            uint64    `gorm:"column:pool" json:"pool"`
	ShareAmount     uint64    `gorm:"column:share_amount" json:"share_amount"`
	PayoutAccount   string    `gorm:"column:payout_account;size:44" json:"payout_account"`
	SettledAt       time.Time `gorm:"column:settled_at;index" json:"settled_at"`
}

func (SettlementRecord) TableName() string {
	return "settlement_record"
}

// AutoMigrate creates or updates every table of the module.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&GlobalState{},
		&ReferralState{},
		&TokenAccount{},
		&OperationRecord{},
		&SettlementRecord{},
	)
}
