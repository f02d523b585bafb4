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

// DepositRequest deposits native SOL through a partner.
type DepositRequest struct {
	Partner       solana.PublicKey
	PayoutAccount solana.PublicKey
	TransferFrom  solana.PublicKey
	MintTo        solana.PublicKey
	Lamports      uint64
}

// DepositStakeRequest deposits an existing stake position through a partner.
type DepositStakeRequest struct {
	Partner        solana.PublicKey
	PayoutAccount  solana.PublicKey
	StakeAccount   solana.PublicKey
	MintTo         solana.PublicKey
	ValidatorIndex uint32
}

// LiquidUnstakeRequest swaps mSOL for SOL instantly through a partner.
type LiquidUnstakeRequest struct {
	Partner       solana.PublicKey
	PayoutAccount solana.PublicKey
	GetMsolFrom   solana.PublicKey
	TransferSolTo solana.PublicKey
	MsolAmount    uint64
}

// OrderUnstakeRequest orders a delayed unstake through a partner.
type OrderUnstakeRequest struct {
	Partner       solana.PublicKey
	PayoutAccount solana.PublicKey
	BurnMsolFrom  solana.PublicKey
	TicketAccount solana.PublicKey
	MsolAmount    uint64
}

// OperationResult is what a forwarded operation measured and skimmed.
type OperationResult struct {
	Record *models.OperationRecord `json:"record"`
}

// forwardSpec describes one proxied operation. apply turns the measured
// deltas into the fee skim and the accumulator update.
//
// Operations with an inputFee take the fee from source before the call and
// forward requested minus the fee, so a full balance can be spent. The
// others take it from the call's output afterwards.
type forwardSpec struct {
	op        string
	event     string
	partner   solana.PublicKey
	payout    solana.PublicKey
	caller    solana.PublicKey
	requested uint64
	source    solana.PublicKey
	inputFee  func(state *models.ReferralState) fees.Fee
	meters    func(registry *models.GlobalState) []EffectMeter
	invoke    func(led Ledger, amount uint64) error
	apply     func(state *models.ReferralState, deltas []uint64) (skim, error)
}

type skim struct {
	// from is ignored for operations skimmed before the call
	from     solana.PublicKey
	fee      fees.Fee
	measured uint64
	native   uint64

	// accumulate receives the skimmed fee amount
	accumulate func(fee uint64) error
}

// forward runs the partner guards, the protocol call between meter reads,
// the fee skim and the audit record as one unit of work.
func (e *Engine) forward(ctx context.Context, spec forwardSpec) (*OperationResult, error) {
	var record *models.OperationRecord
	err := e.atomic(ctx, spec.op, func(tx Tx, emit emitFunc) error {
		registry, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		state, err := tx.Partner(ctx, spec.partner.String())
		if err != nil {
			return err
		}
		if state.Pause {
			return fmt.Errorf("%w: %s", ErrPaused, state.PartnerAccount)
		}
		if state.PayoutAccount != spec.payout.String() {
			return fmt.Errorf("%w: payout account %s does not match partner", ErrAccessDenied, spec.payout)
		}

		led := tx.Ledger()
		payout := solana.MustPublicKeyFromBase58(state.PayoutAccount)
		forwarded, amount := spec.requested, uint64(0)
		if spec.inputFee != nil {
			balance, err := led.Balance(ctx, spec.source)
			if err != nil {
				return err
			}
			if balance < spec.requested {
				return fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficientBalance, spec.source, balance, spec.requested)
			}
			amount = spec.inputFee(state).Apply(spec.requested)
			if amount > 0 {
				if err := led.Transfer(ctx, spec.source, payout, e.cfg.ProxyAuthority, amount); err != nil {
					return err
				}
			}
			forwarded = spec.requested - amount
		}

		deltas, err := measure(ctx, led, func() error { return spec.invoke(led, forwarded) }, spec.meters(registry)...)
		if err != nil {
			return err
		}
		s, err := spec.apply(state, deltas)
		if err != nil {
			return err
		}
		if spec.inputFee == nil {
			amount = s.fee.Apply(s.measured)
			if amount > 0 {
				if err := led.Transfer(ctx, s.from, payout, e.cfg.ProxyAuthority, amount); err != nil {
					return err
				}
			}
		}
		if err := s.accumulate(amount); err != nil {
			return err
		}
		if err := tx.SavePartner(ctx, state); err != nil {
			return err
		}

		record = &models.OperationRecord{
			ID:             uuid.NewString(),
			PartnerAccount: state.PartnerAccount,
			Operation:      spec.op,
			Caller:         spec.caller.String(),
			Requested:      spec.requested,
			Measured:       s.measured,
			NativeAmount:   s.native,
			Fee:            amount,
			FeeBasisPoints: s.fee.BasisPoints,
			CreatedAt:      e.clock.Now().UTC(),
		}
		if err := tx.RecordOperation(ctx, record); err != nil {
			return err
		}
		emit(spec.event, state.PartnerAccount, map[string]string{
			"caller":   record.Caller,
			"measured": strconv.FormatUint(record.Measured, 10),
			"native":   strconv.FormatUint(record.NativeAmount, 10),
			"fee":      strconv.FormatUint(record.Fee, 10),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveOperation(spec.op, record.Measured, record.Fee)
	log.WithFields(log.Fields{
		"op":       spec.op,
		"partner":  record.PartnerAccount,
		"measured": record.Measured,
		"fee":      record.Fee,
	}).Info("operation forwarded")
	return &OperationResult{Record: record}, nil
}

// Deposit forwards a native deposit. The flat fee is taken from the minted
// mSOL; DepositSolAmount grows by the lamports that left TransferFrom.
func (e *Engine) Deposit(ctx context.Context, caller solana.PublicKey, req DepositRequest) (*OperationResult, error) {
	return e.forward(ctx, forwardSpec{
		op:        models.OperationDeposit,
		event:     EventDeposit,
		partner:   req.Partner,
		payout:    req.PayoutAccount,
		caller:    caller,
		requested: req.Lamports,
		meters: func(*models.GlobalState) []EffectMeter {
			return []EffectMeter{
				BalanceDiffMeter{Account: req.MintTo, Increase: true},
				BalanceDiffMeter{Account: req.TransferFrom},
			}
		},
		invoke: func(led Ledger, _ uint64) error {
			return e.protocol.Deposit(ctx, led, DepositParams{
				Lamports:     req.Lamports,
				TransferFrom: req.TransferFrom,
				Authority:    caller,
				MintTo:       req.MintTo,
			})
		},
		apply: func(state *models.ReferralState, d []uint64) (skim, error) {
			minted, native := d[0], d[1]
			acc := &state.Accumulators
			return skim{
				from:     req.MintTo,
				fee:      fees.FromBasisPoints(state.OperationFees.DepositSol),
				measured: minted,
				native:   native,
				accumulate: func(fee uint64) error {
					if err := addChecked(&acc.DepositSolAmount, native, "deposit_sol_amount"); err != nil {
						return err
					}
					if err := addChecked(&acc.DepositSolOperations, 1, "deposit_sol_operations"); err != nil {
						return err
					}
					return addChecked(&acc.DepositSolFees, fee, "deposit_sol_fees")
				},
			}, nil
		},
	})
}

// DepositStakeAccount forwards a stake-position deposit. The accumulated
// amount comes from the configured StakeAmountSource; the fee is taken from
// the minted mSOL.
func (e *Engine) DepositStakeAccount(ctx context.Context, caller solana.PublicKey, req DepositStakeRequest) (*OperationResult, error) {
	var stakeMeter EffectMeter = BalanceDiffMeter{Account: req.StakeAccount}
	if e.cfg.StakeAmountSource == StakeFromDelegation {
		stakeMeter = DelegationMeter{Reader: e.positions, StakeAccount: req.StakeAccount}
	}
	return e.forward(ctx, forwardSpec{
		op:      models.OperationDepositStakeAccount,
		event:   EventDepositStakeAccount,
		partner: req.Partner,
		payout:  req.PayoutAccount,
		caller:  caller,
		meters: func(*models.GlobalState) []EffectMeter {
			return []EffectMeter{
				BalanceDiffMeter{Account: req.MintTo, Increase: true},
				stakeMeter,
			}
		},
		invoke: func(led Ledger, _ uint64) error {
			return e.protocol.DepositStake(ctx, led, DepositStakeParams{
				StakeAccount:   req.StakeAccount,
				StakeAuthority: caller,
				MintTo:         req.MintTo,
				ValidatorIndex: req.ValidatorIndex,
			})
		},
		apply: func(state *models.ReferralState, d []uint64) (skim, error) {
			minted, staked := d[0], d[1]
			acc := &state.Accumulators
			return skim{
				from:     req.MintTo,
				fee:      fees.FromBasisPoints(state.OperationFees.DepositStakeAccount),
				measured: minted,
				native:   staked,
				accumulate: func(fee uint64) error {
					if err := addChecked(&acc.DepositStakeAccountAmount, staked, "deposit_stake_account_amount"); err != nil {
						return err
					}
					if err := addChecked(&acc.DepositStakeAccountOperations, 1, "deposit_stake_account_operations"); err != nil {
						return err
					}
					return addChecked(&acc.DepositStakeAccountFees, fee, "deposit_stake_account_fees")
				},
			}, nil
		},
	})
}

// LiquidUnstake forwards an instant unstake. The flat fee is computed on
// MsolAmount and taken from GetMsolFrom first; the protocol receives the
// rest. Accumulated mSOL and SOL amounts are what the protocol burned and
// paid out. The protocol's cut that landed in the treasury is accumulated
// too, as the pool the partner share is paid from.
func (e *Engine) LiquidUnstake(ctx context.Context, caller solana.PublicKey, req LiquidUnstakeRequest) (*OperationResult, error) {
	return e.forward(ctx, forwardSpec{
		op:        models.OperationLiquidUnstake,
		event:     EventLiquidUnstake,
		partner:   req.Partner,
		payout:    req.PayoutAccount,
		caller:    caller,
		requested: req.MsolAmount,
		source:    req.GetMsolFrom,
		meters: func(registry *models.GlobalState) []EffectMeter {
			return []EffectMeter{
				BalanceDiffMeter{Account: req.GetMsolFrom},
				BalanceDiffMeter{Account: req.TransferSolTo, Increase: true},
				BalanceDiffMeter{Account: solana.MustPublicKeyFromBase58(registry.TreasuryMsolAccount), Increase: true},
			}
		},
		inputFee: func(state *models.ReferralState) fees.Fee {
			return fees.FromBasisPoints(state.OperationFees.LiquidUnstake)
		},
		invoke: func(led Ledger, amount uint64) error {
			return e.protocol.LiquidUnstake(ctx, led, LiquidUnstakeParams{
				MsolAmount:    amount,
				GetMsolFrom:   req.GetMsolFrom,
				Authority:     caller,
				TransferSolTo: req.TransferSolTo,
			})
		},
		apply: func(state *models.ReferralState, d []uint64) (skim, error) {
			burned, received, treasuryCut := d[0], d[1], d[2]
			acc := &state.Accumulators
			return skim{
				fee:      fees.FromBasisPoints(state.OperationFees.LiquidUnstake),
				measured: burned,
				native:   received,
				accumulate: func(fee uint64) error {
					if err := addChecked(&acc.LiqUnstakeMsolAmount, burned, "liq_unstake_msol_amount"); err != nil {
						return err
					}
					if err := addChecked(&acc.LiqUnstakeSolAmount, received, "liq_unstake_sol_amount"); err != nil {
						return err
					}
					if err := addChecked(&acc.LiqUnstakeMsolFees, treasuryCut, "liq_unstake_msol_fees"); err != nil {
						return err
					}
					if err := addChecked(&acc.LiqUnstakeOperations, 1, "liq_unstake_operations"); err != nil {
						return err
					}
					return addChecked(&acc.LiqUnstakeOperationFees, fee, "liq_unstake_operation_fees")
				},
			}, nil
		},
	})
}

// OrderUnstake forwards a delayed unstake. The fee is computed on
// MsolAmount and taken from BurnMsolFrom before the protocol burns the rest.
func (e *Engine) OrderUnstake(ctx context.Context, caller solana.PublicKey, req OrderUnstakeRequest) (*OperationResult, error) {
	return e.forward(ctx, forwardSpec{
		op:        models.OperationOrderUnstake,
		event:     EventOrderUnstake,
		partner:   req.Partner,
		payout:    req.PayoutAccount,
		caller:    caller,
		requested: req.MsolAmount,
		source:    req.BurnMsolFrom,
		meters: func(*models.GlobalState) []EffectMeter {
			return []EffectMeter{BalanceDiffMeter{Account: req.BurnMsolFrom}}
		},
		inputFee: func(state *models.ReferralState) fees.Fee {
			return fees.FromBasisPoints(state.OperationFees.DelayedUnstake)
		},
		invoke: func(led Ledger, amount uint64) error {
			return e.protocol.OrderUnstake(ctx, led, OrderUnstakeParams{
				MsolAmount:    amount,
				BurnMsolFrom:  req.BurnMsolFrom,
				Authority:     caller,
				TicketAccount: req.TicketAccount,
			})
		},
		apply: func(state *models.ReferralState, d []uint64) (skim, error) {
			burned := d[0]
			acc := &state.Accumulators
			return skim{
				fee:      fees.FromBasisPoints(state.OperationFees.DelayedUnstake),
				measured: burned,
				accumulate: func(fee uint64) error {
					if err := addChecked(&acc.DelayedUnstakeAmount, burned, "delayed_unstake_amount"); err != nil {
						return err
					}
					if err := addChecked(&acc.DelayedUnstakeOperations, 1, "delayed_unstake_operations"); err != nil {
						return err
					}
					return addChecked(&acc.DelayedUnstakeFees, fee, "delayed_unstake_fees")
				},
			}, nil
		},
	})
}
