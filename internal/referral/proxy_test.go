package referral_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakereferral/internal/models"
	"stakereferral/internal/protocol"
	"stakereferral/internal/referral"
	"stakereferral/internal/referraltest"
)

type recordingEmitter struct {
	events []referral.Event
}

func (r *recordingEmitter) Emit(ev referral.Event) { r.events = append(r.events, ev) }

// failAfter runs the pool call and then fails, leaving partial ledger
// changes inside the unit of work.
type failAfter struct {
	*protocol.Pool
	err error
}

func (p failAfter) Deposit(ctx context.Context, led referral.Ledger, in referral.DepositParams) error {
	if err := p.Pool.Deposit(ctx, led, in); err != nil {
		return err
	}
	return p.err
}

func TestDepositSkimsFlatFee(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)
	f.SetOperationFees(t, 27)
	events := &recordingEmitter{}
	f.Engine.SetEmitter(events)

	res, err := f.Engine.Deposit(ctx, f.User, f.DepositRequest(1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), res.Record.Measured)
	assert.Equal(t, uint64(2_700_000), res.Record.Fee)

	assert.Equal(t, uint64(997_300_000), f.Balance(t, f.UserMsol))
	assert.Equal(t, uint64(2_700_000), f.Balance(t, f.Payout))
	assert.Equal(t, referraltest.UserLamports-1_000_000_000, f.Balance(t, f.UserSol))
	assert.Equal(t, uint64(1_000_000_000), f.Balance(t, f.Pool.Reserve))

	acc := f.State(t).Accumulators
	assert.Equal(t, uint64(1_000_000_000), acc.DepositSolAmount)
	assert.Equal(t, uint64(1), acc.DepositSolOperations)
	assert.Equal(t, uint64(2_700_000), acc.DepositSolFees)

	require.Len(t, events.events, 1)
	assert.Equal(t, referral.EventDeposit, events.events[0].Type)
	assert.Equal(t, "2700000", events.events[0].Attributes["fee"])

	records, err := f.Engine.Operations(ctx, f.Partner, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.OperationDeposit, records[0].Operation)
	assert.Equal(t, f.User.String(), records[0].Caller)
}

func TestDepositZeroFeeSkipsTransfer(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)
	// without a delegate any skim would fail
	require.NoError(t, f.Store.Approve(ctx, f.UserMsol.String(), f.User.String(), ""))

	_, err := f.Engine.Deposit(ctx, f.User, f.DepositRequest(5_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), f.Balance(t, f.Payout))
	assert.Equal(t, uint64(5_000), f.Balance(t, f.UserMsol))
	assert.Equal(t, uint64(0), f.State(t).Accumulators.DepositSolFees)
}

func TestDepositRejectsWrongPayout(t *testing.T) {
	f := referraltest.New(t)
	req := f.DepositRequest(1_000)
	req.PayoutAccount = f.UserMsol
	_, err := f.Engine.Deposit(context.Background(), f.User, req)
	require.ErrorIs(t, err, referral.ErrAccessDenied)
	assert.Equal(t, referraltest.UserLamports, f.Balance(t, f.UserSol))
}

func TestUpstreamFailureRollsBack(t *testing.T) {
	ctx := context.Background()

	t.Run("protocol rejects", func(t *testing.T) {
		f := referraltest.New(t)
		events := &recordingEmitter{}
		f.Engine.SetEmitter(events)
		_, err := f.Engine.Deposit(ctx, f.User, f.DepositRequest(0))
		require.ErrorIs(t, err, protocol.ErrZeroAmount)
		require.ErrorIs(t, err, referral.ErrUpstream)
		assert.Empty(t, events.events)
	})

	t.Run("protocol fails after moving funds", func(t *testing.T) {
		f := referraltest.New(t)
		boom := errors.New("cpi failed")
		engine, err := referral.NewEngine(f.Store, failAfter{Pool: f.Pool, err: boom}, f.Config)
		require.NoError(t, err)

		_, err = engine.Deposit(ctx, f.User, f.DepositRequest(1_000_000))
		require.ErrorIs(t, err, boom)
		assert.Equal(t, referraltest.UserLamports, f.Balance(t, f.UserSol))
		assert.Equal(t, uint64(0), f.Balance(t, f.UserMsol))
		assert.Equal(t, uint64(0), f.Balance(t, f.Pool.Reserve))
		assert.Equal(t, models.Accumulators{}, f.State(t).Accumulators)
	})

	t.Run("fee skim not authorized", func(t *testing.T) {
		f := referraltest.New(t)
		f.SetOperationFees(t, 10)
		require.NoError(t, f.Store.Approve(ctx, f.UserMsol.String(), f.User.String(), ""))

		_, err := f.Engine.Deposit(ctx, f.User, f.DepositRequest(1_000_000))
		require.ErrorIs(t, err, referral.ErrUnauthorized)
		assert.Equal(t, referraltest.UserLamports, f.Balance(t, f.UserSol))
		assert.Equal(t, uint64(0), f.Balance(t, f.UserMsol))
	})

	t.Run("caller does not own the source", func(t *testing.T) {
		f := referraltest.New(t)
		_, err := f.Engine.Deposit(ctx, referraltest.NewKey(), f.DepositRequest(1_000_000))
		require.ErrorIs(t, err, referral.ErrUnauthorized)
		assert.Equal(t, referraltest.UserLamports, f.Balance(t, f.UserSol))
	})
}

func TestAccumulatorOverflowFailsClosed(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)

	err := f.Store.Atomic(ctx, func(tx referral.Tx) error {
		state, err := tx.Partner(ctx, f.Partner.String())
		if err != nil {
			return err
		}
		state.Accumulators.DepositSolAmount = math.MaxUint64 - 10
		return tx.SavePartner(ctx, state)
	})
	require.NoError(t, err)

	_, err = f.Engine.Deposit(ctx, f.User, f.DepositRequest(100))
	require.ErrorIs(t, err, referral.ErrCalculationFailure)
	assert.Equal(t, uint64(math.MaxUint64-10), f.State(t).Accumulators.DepositSolAmount)
	assert.Equal(t, referraltest.UserLamports, f.Balance(t, f.UserSol))
}

func TestDepositStakeAccount(t *testing.T) {
	for _, source := range []referral.StakeAmountSource{referral.StakeFromDelegation, referral.StakeFromBalanceDiff} {
		t.Run(string(source), func(t *testing.T) {
			ctx := context.Background()
			f := referraltest.New(t, func(c *referral.Config) { c.StakeAmountSource = source })
			f.SetOperationFees(t, 27)

			res, err := f.Engine.DepositStakeAccount(ctx, f.User, referral.DepositStakeRequest{
				Partner:       f.Partner,
				PayoutAccount: f.Payout,
				StakeAccount:  f.UserStake,
				MintTo:        f.UserMsol,
			})
			require.NoError(t, err)
			assert.Equal(t, uint64(13_500_000), res.Record.Fee)

			acc := f.State(t).Accumulators
			assert.Equal(t, referraltest.UserStakeLamports, acc.DepositStakeAccountAmount)
			assert.Equal(t, uint64(1), acc.DepositStakeAccountOperations)
			assert.Equal(t, uint64(13_500_000), acc.DepositStakeAccountFees)
			assert.Equal(t, referraltest.UserStakeLamports-13_500_000, f.Balance(t, f.UserMsol))
			assert.Equal(t, uint64(0), f.Balance(t, f.UserStake))
			assert.Equal(t, uint64(0), acc.DepositSolAmount)
		})
	}
}

// fixedDelegation reports the same delegated stake for any account.
type fixedDelegation uint64

func (d fixedDelegation) Delegation(context.Context, referral.Ledger, solana.PublicKey) (uint64, error) {
	return uint64(d), nil
}

func TestDepositStakeAccountPositionReader(t *testing.T) {
	ctx := context.Background()
	req := func(f *referraltest.Fixture) referral.DepositStakeRequest {
		return referral.DepositStakeRequest{
			Partner:       f.Partner,
			PayoutAccount: f.Payout,
			StakeAccount:  f.UserStake,
			MintTo:        f.UserMsol,
		}
	}

	f := referraltest.New(t)
	f.Engine.SetPositionReader(fixedDelegation(4_000_000_000))
	res, err := f.Engine.DepositStakeAccount(ctx, f.User, req(f))
	require.NoError(t, err)
	assert.Equal(t, uint64(4_000_000_000), res.Record.NativeAmount)
	assert.Equal(t, uint64(4_000_000_000), f.State(t).Accumulators.DepositStakeAccountAmount)

	f = referraltest.New(t)
	f.Engine.SetPositionReader(nil)
	_, err = f.Engine.DepositStakeAccount(ctx, f.User, req(f))
	require.ErrorIs(t, err, referral.ErrInvalidConfig)
	assert.Equal(t, referraltest.UserStakeLamports, f.Balance(t, f.UserStake))
	assert.Equal(t, models.Accumulators{}, f.State(t).Accumulators)
}

func TestLiquidUnstake(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)
	f.SetOperationFees(t, 27)
	_, err := f.Engine.Deposit(ctx, f.User, f.DepositRequest(1_000_000_000))
	require.NoError(t, err)

	// 27 bp of 500_000_000 is skimmed first; the pool takes 30 bp of the
	// remaining 498_650_000 and sends 75% of that to the treasury.
	res, err := f.Engine.LiquidUnstake(ctx, f.User, f.LiquidUnstakeRequest(500_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000), res.Record.Requested)
	assert.Equal(t, uint64(498_650_000), res.Record.Measured)
	assert.Equal(t, uint64(497_154_050), res.Record.NativeAmount)
	assert.Equal(t, uint64(1_350_000), res.Record.Fee)

	acc := f.State(t).Accumulators
	assert.Equal(t, uint64(498_650_000), acc.LiqUnstakeMsolAmount)
	assert.Equal(t, uint64(497_154_050), acc.LiqUnstakeSolAmount)
	assert.Equal(t, uint64(1_121_962), acc.LiqUnstakeMsolFees)
	assert.Equal(t, uint64(1), acc.LiqUnstakeOperations)
	assert.Equal(t, uint64(1_350_000), acc.LiqUnstakeOperationFees)

	assert.Equal(t, uint64(1_121_962), f.Balance(t, f.Pool.Treasury))
	assert.Equal(t, uint64(997_300_000-500_000_000), f.Balance(t, f.UserMsol))
	assert.Equal(t, uint64(4_050_000), f.Balance(t, f.Payout))
	assert.Equal(t, referraltest.UserLamports-1_000_000_000+497_154_050, f.Balance(t, f.UserSol))
}

func TestLiquidUnstakeInsufficientBalance(t *testing.T) {
	f := referraltest.New(t)
	_, err := f.Engine.LiquidUnstake(context.Background(), f.User, f.LiquidUnstakeRequest(1))
	require.ErrorIs(t, err, referral.ErrInsufficientBalance)
	assert.Equal(t, referral.KindValidation, referral.KindOf(err))
	assert.Equal(t, models.Accumulators{}, f.State(t).Accumulators)
}

func TestUnstakeFullBalanceWithFee(t *testing.T) {
	tests := []struct {
		name    string
		unstake func(f *referraltest.Fixture, amount uint64) (*referral.OperationResult, error)
		check   func(t *testing.T, f *referraltest.Fixture, acc models.Accumulators)
	}{
		{
			name: "liquid",
			unstake: func(f *referraltest.Fixture, amount uint64) (*referral.OperationResult, error) {
				return f.Engine.LiquidUnstake(context.Background(), f.User, f.LiquidUnstakeRequest(amount))
			},
			check: func(t *testing.T, f *referraltest.Fixture, acc models.Accumulators) {
				assert.Equal(t, uint64(998_001), acc.LiqUnstakeMsolAmount)
				assert.Equal(t, uint64(995_007), acc.LiqUnstakeSolAmount)
				assert.Equal(t, uint64(2_245), acc.LiqUnstakeMsolFees)
				assert.Equal(t, uint64(999), acc.LiqUnstakeOperationFees)
			},
		},
		{
			name: "delayed",
			unstake: func(f *referraltest.Fixture, amount uint64) (*referral.OperationResult, error) {
				return f.Engine.OrderUnstake(context.Background(), f.User, referral.OrderUnstakeRequest{
					Partner:       f.Partner,
					PayoutAccount: f.Payout,
					BurnMsolFrom:  f.UserMsol,
					TicketAccount: f.Ticket,
					MsolAmount:    amount,
				})
			},
			check: func(t *testing.T, f *referraltest.Fixture, acc models.Accumulators) {
				assert.Equal(t, uint64(998_001), acc.DelayedUnstakeAmount)
				assert.Equal(t, uint64(999), acc.DelayedUnstakeFees)
				assert.Equal(t, uint64(998_001), f.Balance(t, f.Ticket))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := referraltest.New(t)
			f.SetOperationFees(t, 10)
			_, err := f.Engine.Deposit(ctx, f.User, f.DepositRequest(1_000_000))
			require.NoError(t, err)
			balance := f.Balance(t, f.UserMsol)
			require.Equal(t, uint64(999_000), balance)

			res, err := tt.unstake(f, balance)
			require.NoError(t, err)
			assert.Equal(t, uint64(999), res.Record.Fee)
			assert.Equal(t, uint64(998_001), res.Record.Measured)
			assert.Equal(t, uint64(0), f.Balance(t, f.UserMsol))
			assert.Equal(t, uint64(1_000+999), f.Balance(t, f.Payout))
			tt.check(t, f, f.State(t).Accumulators)

			_, err = tt.unstake(f, 1)
			require.ErrorIs(t, err, referral.ErrInsufficientBalance)
		})
	}
}

func TestOrderUnstake(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)
	f.SetOperationFees(t, 27)
	_, err := f.Engine.Deposit(ctx, f.User, f.DepositRequest(1_000_000_000))
	require.NoError(t, err)

	res, err := f.Engine.OrderUnstake(ctx, f.User, referral.OrderUnstakeRequest{
		Partner:       f.Partner,
		PayoutAccount: f.Payout,
		BurnMsolFrom:  f.UserMsol,
		TicketAccount: f.Ticket,
		MsolAmount:    100_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(270_000), res.Record.Fee)
	assert.Equal(t, uint64(99_730_000), f.Balance(t, f.Ticket))

	acc := f.State(t).Accumulators
	assert.Equal(t, uint64(99_730_000), acc.DelayedUnstakeAmount)
	assert.Equal(t, uint64(1), acc.DelayedUnstakeOperations)
	assert.Equal(t, uint64(270_000), acc.DelayedUnstakeFees)
	assert.Equal(t, uint64(997_300_000-100_000_000), f.Balance(t, f.UserMsol))
}
