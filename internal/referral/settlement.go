package referral

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"stakereferral/internal/models"
	"stakereferral/pkg/fees"
	"stakereferral/pkg/metrics"
)

// deposited sums the accumulators counted by the net stake metric.
func (e *Engine) deposited(acc models.Accumulators) (uint64, error) {
	total := acc.DepositSolAmount
	if e.cfg.NetStakeMetric == NetStakeDepositSolAndStake {
		if err := addChecked(&total, acc.DepositStakeAccountAmount, "deposited"); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// transferAvailable requires strictly more than TransferDuration seconds
// since the last settlement.
func transferAvailable(state *models.ReferralState, now int64) bool {
	elapsed := now - state.LastTransferTime
	return elapsed > int64(state.TransferDuration)
}

func (e *Engine) resetAccumulators(state *models.ReferralState) {
	acc := &state.Accumulators
	if e.cfg.ResetGrouping == ResetIndependent {
		delayed := *acc
		*acc = models.Accumulators{
			DelayedUnstakeAmount:     delayed.DelayedUnstakeAmount,
			DelayedUnstakeOperations: delayed.DelayedUnstakeOperations,
			DelayedUnstakeFees:       delayed.DelayedUnstakeFees,
		}
		return
	}
	*acc = models.Accumulators{}
}

// Settle pays the partner its tiered share of the liquid-unstake fee pool
// from the treasury and starts a new period. Who may call it depends on the
// settlement policy.
func (e *Engine) Settle(ctx context.Context, caller, partner solana.PublicKey) (*models.SettlementRecord, error) {
	var record *models.SettlementRecord
	err := e.atomic(ctx, "settle", func(tx Tx, emit emitFunc) error {
		registry, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		if e.cfg.SettlementPolicy == SettlementAdmin {
			if err := checkAdmin(registry, caller); err != nil {
				return err
			}
		}
		state, err := tx.Partner(ctx, partner.String())
		if err != nil {
			return err
		}
		now := e.now()
		if !transferAvailable(state, now) {
			return fmt.Errorf("%w: next at %d", ErrTransferNotAvailable, state.LastTransferTime+int64(state.TransferDuration)+1)
		}

		deposited, err := e.deposited(state.Accumulators)
		if err != nil {
			return err
		}
		unstaked := state.Accumulators.LiqUnstakeSolAmount
		pool := state.Accumulators.LiqUnstakeMsolFees
		rate, share := state.Tier().Share(deposited, unstaked, pool)
		if share > 0 {
			err := tx.Ledger().Transfer(ctx,
				solana.MustPublicKeyFromBase58(registry.TreasuryMsolAccount),
				solana.MustPublicKeyFromBase58(state.PayoutAccount),
				solana.MustPublicKeyFromBase58(registry.TreasuryAuthority),
				share,
			)
			if err != nil {
				return err
			}
		}

		record = &models.SettlementRecord{
			ID:              uuid.NewString(),
			PartnerAccount:  state.PartnerAccount,
			Caller:          caller.String(),
			NetStake:        fees.NetStake(deposited, unstaked),
			RateBasisPoints: rate.BasisPoints,
			Pool:            pool,
			ShareAmount:     share,
			PayoutAccount:   state.PayoutAccount,
			SettledAt:       e.clock.Now().UTC(),
		}
		state.LastTransferTime = now
		e.resetAccumulators(state)
		if err := tx.SavePartner(ctx, state); err != nil {
			return err
		}
		if err := tx.RecordSettlement(ctx, record); err != nil {
			return err
		}
		emit(EventSettled, state.PartnerAccount, map[string]string{
			"rate":  rate.String(),
			"share": strconv.FormatUint(share, 10),
			"pool":  strconv.FormatUint(pool, 10),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveSettlement(record.ShareAmount)
	log.WithFields(log.Fields{
		"partner": record.PartnerAccount,
		"rate_bp": record.RateBasisPoints,
		"share":   record.ShareAmount,
	}).Info("partner settled")
	return record, nil
}

// ResetDelayedUnstake clears the delayed-unstake accumulators. Admin or
// operator.
func (e *Engine) ResetDelayedUnstake(ctx context.Context, caller solana.PublicKey, proof *OperatorProof, partner solana.PublicKey) error {
	return e.atomic(ctx, "reset_delayed_unstake", func(tx Tx, emit emitFunc) error {
		registry, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		if err := checkOperator(registry, caller, proof); err != nil {
			return err
		}
		state, err := tx.Partner(ctx, partner.String())
		if err != nil {
			return err
		}
		acc := &state.Accumulators
		acc.DelayedUnstakeAmount = 0
		acc.DelayedUnstakeOperations = 0
		acc.DelayedUnstakeFees = 0
		if err := tx.SavePartner(ctx, state); err != nil {
			return err
		}
		emit(EventDelayedUnstakeReset, state.PartnerAccount, nil)
		return nil
	})
}

// DuePartners lists partners whose settlement window has elapsed.
func (e *Engine) DuePartners(ctx context.Context) ([]models.ReferralState, error) {
	all, err := e.ListPartners(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()
	due := make([]models.ReferralState, 0, len(all))
	for i := range all {
		if transferAvailable(&all[i], now) {
			due = append(due, all[i])
		}
	}
	return due, nil
}

// SettleDue settles every due partner and returns how many succeeded. A
// failing partner does not stop the others.
func (e *Engine) SettleDue(ctx context.Context, caller solana.PublicKey) (int, error) {
	due, err := e.DuePartners(ctx)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, p := range due {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if _, err := e.Settle(ctx, caller, solana.MustPublicKeyFromBase58(p.PartnerAccount)); err != nil {
			log.WithFields(log.Fields{"partner": p.PartnerAccount}).WithError(err).Error("settlement failed")
			continue
		}
		settled++
	}
	return settled, nil
}
