package referral

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"

	"stakereferral/internal/models"
	"stakereferral/pkg/fees"
)

// CreatePartnerInput describes a new partner channel.
type CreatePartnerInput struct {
	Partner       solana.PublicKey
	PayoutAccount solana.PublicKey
	Name          string
}

// UpdatePartnerInput changes the non-nil fields of a partner record.
type UpdatePartnerInput struct {
	Partner          solana.PublicKey
	PayoutAccount    *solana.PublicKey
	Name             *string
	Pause            *bool
	TransferDuration *uint32
	OperationFees    *models.OperationFees
}

// privileged reports whether the update touches fields that only the admin
// or an operator may change.
func (in UpdatePartnerInput) privileged() bool {
	return in.Pause != nil || in.TransferDuration != nil || in.OperationFees != nil
}

func checkName(name string) error {
	if len(name) > MaxPartnerNameLength {
		return fmt.Errorf("%w: %d bytes, max %d", ErrPartnerNameTooLong, len(name), MaxPartnerNameLength)
	}
	return nil
}

// checkPayout requires the payout account to be owned by the partner and
// to hold the registry mint.
func (e *Engine) checkPayout(ctx context.Context, tx Tx, registry *models.GlobalState, partner, payout solana.PublicKey) error {
	account, err := e.resolveAccount(ctx, tx, payout)
	if err != nil {
		return err
	}
	if account.OwnerAddress != partner.String() {
		return fmt.Errorf("%w: owner %s", ErrInvalidPayoutOwner, account.OwnerAddress)
	}
	if account.Mint != registry.MsolMint {
		return fmt.Errorf("%w: mint %s", ErrInvalidPayoutMint, account.Mint)
	}
	return nil
}

func checkOperationFees(f models.OperationFees) error {
	for _, fee := range f.All() {
		if err := fee.CheckMax(fees.MaxOperationFeeBasisPoints); err != nil {
			return fmt.Errorf("%w: %v", ErrFeeOverMax, err)
		}
	}
	return nil
}

// checkUpdater applies the update policy. Partners updating themselves may
// only change unprivileged fields.
func (e *Engine) checkUpdater(registry *models.GlobalState, state *models.ReferralState, caller solana.PublicKey, proof *OperatorProof, privileged bool) error {
	switch e.cfg.UpdatePolicy {
	case UpdateAdmin:
		return checkAdmin(registry, caller)
	case UpdateAdminOrOperator:
		return checkOperator(registry, caller, proof)
	default:
		err := checkOperator(registry, caller, proof)
		if err == nil {
			return nil
		}
		if !privileged && state.PartnerAccount == caller.String() {
			return nil
		}
		return err
	}
}

// CreatePartner creates a partner record with the configured default tier,
// zero operation fees and LastTransferTime set to now. Admin or operator.
func (e *Engine) CreatePartner(ctx context.Context, caller solana.PublicKey, proof *OperatorProof, in CreatePartnerInput) (*models.ReferralState, error) {
	if err := checkName(in.Name); err != nil {
		return nil, err
	}
	if err := requireKey("partner", in.Partner); err != nil {
		return nil, err
	}
	if err := requireKey("payout account", in.PayoutAccount); err != nil {
		return nil, err
	}
	var state *models.ReferralState
	err := e.atomic(ctx, "create_partner", func(tx Tx, emit emitFunc) error {
		registry, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		if err := checkOperator(registry, caller, proof); err != nil {
			return err
		}
		if err := e.checkPayout(ctx, tx, registry, in.Partner, in.PayoutAccount); err != nil {
			return err
		}
		d := e.cfg.Defaults
		state = &models.ReferralState{
			PartnerAccount:   in.Partner.String(),
			PayoutAccount:    in.PayoutAccount.String(),
			PartnerName:      in.Name,
			TransferDuration: d.TransferDuration,
			LastTransferTime: e.now(),
			BaseFee:          d.BaseFee,
			MaxFee:           d.MaxFee,
			MaxNetStake:      d.MaxNetStake,
		}
		if err := tx.CreatePartner(ctx, state); err != nil {
			return err
		}
		emit(EventPartnerCreated, state.PartnerAccount, map[string]string{
			"name":   state.PartnerName,
			"payout": state.PayoutAccount,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"partner": state.PartnerAccount, "name": state.PartnerName}).Info("partner created")
	return state, nil
}

// UpdatePartner applies in according to the update policy.
func (e *Engine) UpdatePartner(ctx context.Context, caller solana.PublicKey, proof *OperatorProof, in UpdatePartnerInput) (*models.ReferralState, error) {
	if in.Name != nil {
		if err := checkName(*in.Name); err != nil {
			return nil, err
		}
	}
	if in.OperationFees != nil {
		if err := checkOperationFees(*in.OperationFees); err != nil {
			return nil, err
		}
	}
	var state *models.ReferralState
	err := e.atomic(ctx, "update_partner", func(tx Tx, emit emitFunc) error {
		registry, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		state, err = tx.Partner(ctx, in.Partner.String())
		if err != nil {
			return err
		}
		if err := e.checkUpdater(registry, state, caller, proof, in.privileged()); err != nil {
			return err
		}
		if in.PayoutAccount != nil {
			if err := e.checkPayout(ctx, tx, registry, in.Partner, *in.PayoutAccount); err != nil {
				return err
			}
			state.PayoutAccount = in.PayoutAccount.String()
		}
		if in.Name != nil {
			state.PartnerName = *in.Name
		}
		if in.Pause != nil {
			state.Pause = *in.Pause
		}
		if in.TransferDuration != nil {
			state.TransferDuration = *in.TransferDuration
		}
		if in.OperationFees != nil {
			state.OperationFees = *in.OperationFees
		}
		if err := tx.SavePartner(ctx, state); err != nil {
			return err
		}
		emit(EventPartnerUpdated, state.PartnerAccount, map[string]string{
			"payout": state.PayoutAccount,
			"pause":  strconv.FormatBool(state.Pause),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SetPause toggles the pause flag. Same permission as a privileged update.
func (e *Engine) SetPause(ctx context.Context, caller solana.PublicKey, proof *OperatorProof, partner solana.PublicKey, paused bool) error {
	return e.atomic(ctx, "set_pause", func(tx Tx, emit emitFunc) error {
		registry, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		state, err := tx.Partner(ctx, partner.String())
		if err != nil {
			return err
		}
		if err := e.checkUpdater(registry, state, caller, proof, true); err != nil {
			return err
		}
		state.Pause = paused
		if err := tx.SavePartner(ctx, state); err != nil {
			return err
		}
		emit(EventPartnerPaused, state.PartnerAccount, map[string]string{"pause": strconv.FormatBool(paused)})
		return nil
	})
}

// SetTier replaces the share tier. Admin or operator.
func (e *Engine) SetTier(ctx context.Context, caller solana.PublicKey, proof *OperatorProof, partner solana.PublicKey, baseFee, maxFee uint32, maxNetStake uint64) error {
	if err := validateTier(baseFee, maxFee, maxNetStake); err != nil {
		return err
	}
	return e.atomic(ctx, "set_tier", func(tx Tx, emit emitFunc) error {
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
		state.BaseFee = baseFee
		state.MaxFee = maxFee
		state.MaxNetStake = maxNetStake
		if err := tx.SavePartner(ctx, state); err != nil {
			return err
		}
		emit(EventTierUpdated, state.PartnerAccount, map[string]string{
			"base_fee":      strconv.FormatUint(uint64(baseFee), 10),
			"max_fee":       strconv.FormatUint(uint64(maxFee), 10),
			"max_net_stake": strconv.FormatUint(maxNetStake, 10),
		})
		return nil
	})
}

// DeletePartner removes a partner record. Admin only.
func (e *Engine) DeletePartner(ctx context.Context, caller, partner solana.PublicKey) error {
	return e.atomic(ctx, "delete_partner", func(tx Tx, emit emitFunc) error {
		registry, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		if err := checkAdmin(registry, caller); err != nil {
			return err
		}
		if err := tx.DeletePartner(ctx, partner.String()); err != nil {
			return err
		}
		emit(EventPartnerDeleted, partner.String(), nil)
		return nil
	})
}

// Partner returns one partner record.
func (e *Engine) Partner(ctx context.Context, partner solana.PublicKey) (*models.ReferralState, error) {
	var state *models.ReferralState
	err := e.store.Atomic(ctx, func(tx Tx) error {
		var err error
		state, err = tx.Partner(ctx, partner.String())
		return err
	})
	return state, err
}

// ListPartners returns every partner record ordered by creation.
func (e *Engine) ListPartners(ctx context.Context) ([]models.ReferralState, error) {
	var out []models.ReferralState
	err := e.store.Atomic(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListPartners(ctx)
		return err
	})
	return out, err
}

// Operations returns the latest operation records of a partner.
func (e *Engine) Operations(ctx context.Context, partner solana.PublicKey, limit int) ([]models.OperationRecord, error) {
	var out []models.OperationRecord
	err := e.store.Atomic(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListOperations(ctx, partner.String(), limit)
		return err
	})
	return out, err
}

// Settlements returns the latest settlement records of a partner.
func (e *Engine) Settlements(ctx context.Context, partner solana.PublicKey, limit int) ([]models.SettlementRecord, error) {
	var out []models.SettlementRecord
	err := e.store.Atomic(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListSettlements(ctx, partner.String(), limit)
		return err
	})
	return out, err
}
