package store

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stakereferral/internal/models"
	"stakereferral/internal/referral"
)

// Gorm runs each unit of work in a database transaction. Partner, registry
// and account rows are read with SELECT ... FOR UPDATE.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

var _ referral.Store = (*Gorm)(nil)

func (s *Gorm) Atomic(ctx context.Context, fn func(tx referral.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

// OpenAccount adds a ledger account.
func (s *Gorm) OpenAccount(ctx context.Context, account models.TokenAccount) error {
	return s.Atomic(ctx, func(tx referral.Tx) error {
		return openAccount(ctx, tx.(*gormTx), account)
	})
}

// Approve sets the delegate of an account. The signer must be its owner.
func (s *Gorm) Approve(ctx context.Context, address, owner, delegate string) error {
	return s.Atomic(ctx, func(tx referral.Tx) error {
		return approve(ctx, tx.(*gormTx), address, owner, delegate)
	})
}

// ListAccounts returns the accounts of owner, or every account when owner
// is empty, in creation order.
func (s *Gorm) ListAccounts(ctx context.Context, owner string) ([]models.TokenAccount, error) {
	query := s.db.WithContext(ctx).Order("id")
	if owner != "" {
		query = query.Where("owner_address = ?", owner)
	}
	accounts := make([]models.TokenAccount, 0)
	if err := query.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) forUpdate() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *gormTx) Registry(context.Context) (*models.GlobalState, error) {
	var state models.GlobalState
	if err := t.forUpdate().Order("id asc").First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, referral.ErrRegistryNotInitialized
		}
		return nil, err
	}
	return &state, nil
}

func (t *gormTx) CreateRegistry(_ context.Context, state *models.GlobalState) error {
	var count int64
	if err := t.db.Model(&models.GlobalState{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return referral.ErrAlreadyInitialized
	}
	// a fixed id makes a concurrent second insert fail on the primary key
	state.ID = 1
	return t.db.Create(state).Error
}

func (t *gormTx) SaveRegistry(_ context.Context, state *models.GlobalState) error {
	return t.db.Save(state).Error
}

func (t *gormTx) Partner(_ context.Context, partner string) (*models.ReferralState, error) {
	var state models.ReferralState
	if err := t.forUpdate().Where("partner_account = ?", partner).First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", referral.ErrPartnerNotFound, partner)
		}
		return nil, err
	}
	return &state, nil
}

func (t *gormTx) CreatePartner(_ context.Context, state *models.ReferralState) error {
	var count int64
	if err := t.db.Model(&models.ReferralState{}).Where("partner_account = ?", state.PartnerAccount).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: partner %s", referral.ErrAlreadyInitialized, state.PartnerAccount)
	}
	if err := checkColumns(partnerColumns(state)...); err != nil {
		return err
	}
	return t.db.Create(state).Error
}

func (t *gormTx) SavePartner(_ context.Context, state *models.ReferralState) error {
	if err := checkColumns(partnerColumns(state)...); err != nil {
		return err
	}
	return t.db.Save(state).Error
}

func (t *gormTx) DeletePartner(_ context.Context, partner string) error {
	res := t.db.Where("partner_account = ?", partner).Delete(&models.ReferralState{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", referral.ErrPartnerNotFound, partner)
	}
	return nil
}

func (t *gormTx) ListPartners(context.Context) ([]models.ReferralState, error) {
	var out []models.ReferralState
	if err := t.db.Order("id asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (t *gormTx) RecordOperation(_ context.Context, record *models.OperationRecord) error {
	err := checkColumns(
		column{"requested", record.Requested},
		column{"measured", record.Measured},
		column{"native_amount", record.NativeAmount},
		column{"fee", record.Fee},
	)
	if err != nil {
		return err
	}
	return t.db.Create(record).Error
}

func (t *gormTx) RecordSettlement(_ context.Context, record *models.SettlementRecord) error {
	err := checkColumns(
		column{"net_stake", record.NetStake},
		column{"pool", record.Pool},
		column{"share_amount", record.ShareAmount},
	)
	if err != nil {
		return err
	}
	return t.db.Create(record).Error
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func (t *gormTx) ListOperations(_ context.Context, partner string, limit int) ([]models.OperationRecord, error) {
	var out []models.OperationRecord
	err := t.db.Where("partner_account = ?", partner).
		Order("created_at desc").
		Limit(limitOrAll(limit)).
		Find(&out).Error
	return out, err
}

func (t *gormTx) ListSettlements(_ context.Context, partner string, limit int) ([]models.SettlementRecord, error) {
	var out []models.SettlementRecord
	err := t.db.Where("partner_account = ?", partner).
		Order("settled_at desc").
		Limit(limitOrAll(limit)).
		Find(&out).Error
	return out, err
}

func (t *gormTx) Ledger() referral.Ledger {
	return ledger{book: t}
}

func (t *gormTx) getAccount(_ context.Context, address string) (*models.TokenAccount, error) {
	var account models.TokenAccount
	if err := t.forUpdate().Where("account_address = ?", address).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", referral.ErrAccountNotFound, address)
		}
		return nil, err
	}
	return &account, nil
}

func (t *gormTx) putAccount(_ context.Context, account *models.TokenAccount) error {
	if err := checkColumns(column{"amount", account.Amount}); err != nil {
		return err
	}
	if account.ID == 0 {
		return t.db.Create(account).Error
	}
	return t.db.Save(account).Error
}

// column is a uint64 field stored in a BIGINT column. database/sql refuses
// uint64 values with the high bit set, so those are rejected here.
type column struct {
	name  string
	value uint64
}

func checkColumns(cols ...column) error {
	for _, c := range cols {
		if c.value > math.MaxInt64 {
			return fmt.Errorf("%w: %s %d exceeds the storable range", referral.ErrCalculationFailure, c.name, c.value)
		}
	}
	return nil
}

func partnerColumns(s *models.ReferralState) []column {
	acc := s.Accumulators
	return []column{
		{"max_net_stake", s.MaxNetStake},
		{"deposit_sol_amount", acc.DepositSolAmount},
		{"deposit_sol_operations", acc.DepositSolOperations},
		{"deposit_sol_fees", acc.DepositSolFees},
		{"deposit_stake_account_amount", acc.DepositStakeAccountAmount},
		{"deposit_stake_account_operations", acc.DepositStakeAccountOperations},
		{"deposit_stake_account_fees", acc.DepositStakeAccountFees},
		{"liq_unstake_msol_amount", acc.LiqUnstakeMsolAmount},
		{"liq_unstake_sol_amount", acc.LiqUnstakeSolAmount},
		{"liq_unstake_operations", acc.LiqUnstakeOperations},
		{"liq_unstake_msol_fees", acc.LiqUnstakeMsolFees},
		{"liq_unstake_operation_fees", acc.LiqUnstakeOperationFees},
		{"delayed_unstake_amount", acc.DelayedUnstakeAmount},
		{"delayed_unstake_operations", acc.DelayedUnstakeOperations},
		{"delayed_unstake_fees", acc.DelayedUnstakeFees},
	}
}
