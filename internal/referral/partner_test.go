package referral_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakereferral/internal/models"
	"stakereferral/internal/referral"
	"stakereferral/internal/referraltest"
)

func TestCreatePartnerDefaults(t *testing.T) {
	f := referraltest.New(t)
	state := f.State(t)

	assert.Equal(t, f.Partner.String(), state.PartnerAccount)
	assert.Equal(t, f.Payout.String(), state.PayoutAccount)
	assert.Equal(t, referraltest.PartnerName, state.PartnerName)
	assert.False(t, state.Pause)
	assert.Equal(t, referraltest.Start.Unix(), state.LastTransferTime)
	assert.Equal(t, referral.DefaultTransferDuration, state.TransferDuration)
	assert.Equal(t, referral.DefaultBaseFee, state.BaseFee)
	assert.Equal(t, referral.DefaultMaxFee, state.MaxFee)
	assert.Equal(t, referral.DefaultMaxNetStake, state.MaxNetStake)
	assert.Equal(t, models.OperationFees{}, state.OperationFees)
	assert.Equal(t, models.Accumulators{}, state.Accumulators)
}

func TestCreatePartnerValidation(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)

	openPayout := func(t *testing.T, owner, mint solana.PublicKey) solana.PublicKey {
		addr := referraltest.NewKey()
		require.NoError(t, f.Store.OpenAccount(ctx, models.TokenAccount{
			AccountAddress: addr.String(),
			OwnerAddress:   owner.String(),
			Mint:           mint.String(),
		}))
		return addr
	}

	tests := []struct {
		name    string
		caller  solana.PublicKey
		input   func(t *testing.T) referral.CreatePartnerInput
		wantErr error
	}{
		{
			name:   "name too long",
			caller: f.Admin,
			input: func(t *testing.T) referral.CreatePartnerInput {
				p := referraltest.NewKey()
				return referral.CreatePartnerInput{Partner: p, PayoutAccount: openPayout(t, p, f.Pool.MsolMint), Name: strings.Repeat("x", 21)}
			},
			wantErr: referral.ErrPartnerNameTooLong,
		},
		{
			name:   "payout owned by someone else",
			caller: f.Admin,
			input: func(t *testing.T) referral.CreatePartnerInput {
				return referral.CreatePartnerInput{Partner: referraltest.NewKey(), PayoutAccount: openPayout(t, referraltest.NewKey(), f.Pool.MsolMint), Name: "a"}
			},
			wantErr: referral.ErrInvalidPayoutOwner,
		},
		{
			name:   "payout with another mint",
			caller: f.Admin,
			input: func(t *testing.T) referral.CreatePartnerInput {
				p := referraltest.NewKey()
				return referral.CreatePartnerInput{Partner: p, PayoutAccount: openPayout(t, p, solana.WrappedSol), Name: "a"}
			},
			wantErr: referral.ErrInvalidPayoutMint,
		},
		{
			name:   "payout does not exist",
			caller: f.Admin,
			input: func(t *testing.T) referral.CreatePartnerInput {
				return referral.CreatePartnerInput{Partner: referraltest.NewKey(), PayoutAccount: referraltest.NewKey(), Name: "a"}
			},
			wantErr: referral.ErrAccountNotFound,
		},
		{
			name:   "caller not an operator",
			caller: referraltest.NewKey(),
			input: func(t *testing.T) referral.CreatePartnerInput {
				p := referraltest.NewKey()
				return referral.CreatePartnerInput{Partner: p, PayoutAccount: openPayout(t, p, f.Pool.MsolMint), Name: "a"}
			},
			wantErr: referral.ErrAccessDenied,
		},
		{
			name:   "existing partner",
			caller: f.Admin,
			input: func(t *testing.T) referral.CreatePartnerInput {
				return referral.CreatePartnerInput{Partner: f.Partner, PayoutAccount: f.Payout, Name: "again"}
			},
			wantErr: referral.ErrAlreadyInitialized,
		},
		{
			name:   "name at limit",
			caller: f.Foreman,
			input: func(t *testing.T) referral.CreatePartnerInput {
				p := referraltest.NewKey()
				return referral.CreatePartnerInput{Partner: p, PayoutAccount: openPayout(t, p, f.Pool.MsolMint), Name: strings.Repeat("x", 20)}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Engine.CreatePartner(ctx, tt.caller, nil, tt.input(t))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	partners, err := f.Engine.ListPartners(ctx)
	require.NoError(t, err)
	assert.Len(t, partners, 2)
}

func TestUpdatePartnerFeesCapped(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)

	_, err := f.Engine.UpdatePartner(ctx, f.Foreman, nil, referral.UpdatePartnerInput{
		Partner:       f.Partner,
		OperationFees: &models.OperationFees{LiquidUnstake: 51},
	})
	require.ErrorIs(t, err, referral.ErrFeeOverMax)

	duration := uint32(60)
	state, err := f.Engine.UpdatePartner(ctx, f.Foreman, nil, referral.UpdatePartnerInput{
		Partner:          f.Partner,
		OperationFees:    &models.OperationFees{DepositSol: 50, DepositStakeAccount: 1, LiquidUnstake: 27, DelayedUnstake: 0},
		TransferDuration: &duration,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(50), state.OperationFees.DepositSol)
	assert.Equal(t, uint32(27), state.OperationFees.LiquidUnstake)
	assert.Equal(t, duration, f.State(t).TransferDuration)
}

func TestUpdatePartnerPayout(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)

	other := referraltest.NewKey()
	require.NoError(t, f.Store.OpenAccount(ctx, models.TokenAccount{
		AccountAddress: other.String(),
		OwnerAddress:   referraltest.NewKey().String(),
		Mint:           f.Pool.MsolMint.String(),
	}))
	_, err := f.Engine.UpdatePartner(ctx, f.Admin, nil, referral.UpdatePartnerInput{Partner: f.Partner, PayoutAccount: &other})
	require.ErrorIs(t, err, referral.ErrInvalidPayoutOwner)

	second := referraltest.NewKey()
	require.NoError(t, f.Store.OpenAccount(ctx, models.TokenAccount{
		AccountAddress: second.String(),
		OwnerAddress:   f.Partner.String(),
		Mint:           f.Pool.MsolMint.String(),
	}))
	state, err := f.Engine.UpdatePartner(ctx, f.Admin, nil, referral.UpdatePartnerInput{Partner: f.Partner, PayoutAccount: &second})
	require.NoError(t, err)
	assert.Equal(t, second.String(), state.PayoutAccount)
}

func TestUpdatePolicies(t *testing.T) {
	ctx := context.Background()
	name := "renamed"
	paused := true

	t.Run("admin only", func(t *testing.T) {
		f := referraltest.New(t, func(c *referral.Config) { c.UpdatePolicy = referral.UpdateAdmin })
		_, err := f.Engine.UpdatePartner(ctx, f.Foreman, nil, referral.UpdatePartnerInput{Partner: f.Partner, Name: &name})
		require.ErrorIs(t, err, referral.ErrAccessDenied)
		_, err = f.Engine.UpdatePartner(ctx, f.Admin, nil, referral.UpdatePartnerInput{Partner: f.Partner, Name: &name})
		require.NoError(t, err)
	})

	t.Run("admin or operator", func(t *testing.T) {
		f := referraltest.New(t)
		_, err := f.Engine.UpdatePartner(ctx, f.Partner, nil, referral.UpdatePartnerInput{Partner: f.Partner, Name: &name})
		require.ErrorIs(t, err, referral.ErrAccessDenied)
		_, err = f.Engine.UpdatePartner(ctx, f.Foreman, nil, referral.UpdatePartnerInput{Partner: f.Partner, Name: &name})
		require.NoError(t, err)
		assert.Equal(t, name, f.State(t).PartnerName)
	})

	t.Run("partner may rename itself", func(t *testing.T) {
		f := referraltest.New(t, func(c *referral.Config) { c.UpdatePolicy = referral.UpdateAdminOperatorOrPartner })
		_, err := f.Engine.UpdatePartner(ctx, f.Partner, nil, referral.UpdatePartnerInput{Partner: f.Partner, Name: &name})
		require.NoError(t, err)

		_, err = f.Engine.UpdatePartner(ctx, f.Partner, nil, referral.UpdatePartnerInput{Partner: f.Partner, Pause: &paused})
		require.ErrorIs(t, err, referral.ErrAccessDenied)
		require.ErrorIs(t, f.Engine.SetPause(ctx, f.Partner, nil, f.Partner, true), referral.ErrAccessDenied)

		_, err = f.Engine.UpdatePartner(ctx, referraltest.NewKey(), nil, referral.UpdatePartnerInput{Partner: f.Partner, Name: &name})
		require.ErrorIs(t, err, referral.ErrAccessDenied)
	})

	t.Run("unknown partner", func(t *testing.T) {
		f := referraltest.New(t)
		_, err := f.Engine.UpdatePartner(ctx, f.Admin, nil, referral.UpdatePartnerInput{Partner: referraltest.NewKey(), Name: &name})
		require.ErrorIs(t, err, referral.ErrPartnerNotFound)
	})
}

func TestSetTier(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)

	tests := []struct {
		name        string
		base, max   uint32
		maxNetStake uint64
		wantErr     error
	}{
		{"base above max", 6_000, 5_000, 1_000, referral.ErrFeeOverMax},
		{"max above 100%", 1_000, 10_001, 1_000, referral.ErrFeeOverMax},
		{"zero net stake with a range", 1_000, 2_000, 0, referral.ErrInvalidNetStakeConfig},
		{"zero net stake flat", 2_000, 2_000, 0, nil},
		{"range", 500, 9_000, 1_000_000, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.Engine.SetTier(ctx, f.Foreman, nil, f.Partner, tt.base, tt.max, tt.maxNetStake)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			state := f.State(t)
			assert.Equal(t, tt.base, state.BaseFee)
			assert.Equal(t, tt.max, state.MaxFee)
			assert.Equal(t, tt.maxNetStake, state.MaxNetStake)
		})
	}

	require.ErrorIs(t, f.Engine.SetTier(ctx, f.Partner, nil, f.Partner, 0, 0, 0), referral.ErrAccessDenied)
}

func TestPauseGatesOperations(t *testing.T) {
	tests := []struct {
		name string
		run  func(ctx context.Context, f *referraltest.Fixture) error
	}{
		{"deposit", func(ctx context.Context, f *referraltest.Fixture) error {
			_, err := f.Engine.Deposit(ctx, f.User, f.DepositRequest(1_000))
			return err
		}},
		{"deposit stake account", func(ctx context.Context, f *referraltest.Fixture) error {
			_, err := f.Engine.DepositStakeAccount(ctx, f.User, referral.DepositStakeRequest{
				Partner:       f.Partner,
				PayoutAccount: f.Payout,
				StakeAccount:  f.UserStake,
				MintTo:        f.UserMsol,
			})
			return err
		}},
		{"liquid unstake", func(ctx context.Context, f *referraltest.Fixture) error {
			_, err := f.Engine.LiquidUnstake(ctx, f.User, f.LiquidUnstakeRequest(1_000))
			return err
		}},
		{"order unstake", func(ctx context.Context, f *referraltest.Fixture) error {
			_, err := f.Engine.OrderUnstake(ctx, f.User, referral.OrderUnstakeRequest{
				Partner:       f.Partner,
				PayoutAccount: f.Payout,
				BurnMsolFrom:  f.UserMsol,
				TicketAccount: f.Ticket,
				MsolAmount:    1_000,
			})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := referraltest.New(t)
			f.SetOperationFees(t, 27)
			_, err := f.Engine.Deposit(ctx, f.User, f.DepositRequest(1_000_000))
			require.NoError(t, err)

			accounts := []solana.PublicKey{f.UserSol, f.UserMsol, f.UserStake, f.Ticket, f.Payout, f.Pool.Treasury}
			balances := func() []uint64 {
				out := make([]uint64, len(accounts))
				for i, a := range accounts {
					out[i] = f.Balance(t, a)
				}
				return out
			}
			before, acc := balances(), f.State(t).Accumulators

			require.NoError(t, f.Engine.SetPause(ctx, f.Foreman, nil, f.Partner, true))
			require.ErrorIs(t, tt.run(ctx, f), referral.ErrPaused)
			assert.Equal(t, before, balances())
			assert.Equal(t, acc, f.State(t).Accumulators)

			require.NoError(t, f.Engine.SetPause(ctx, f.Admin, nil, f.Partner, false))
			require.NoError(t, tt.run(ctx, f))
			assert.NotEqual(t, acc, f.State(t).Accumulators)
		})
	}
}

// chainAccounts resolves from a fixed set, as the RPC resolver would.
type chainAccounts map[string]models.TokenAccount

func (c chainAccounts) TokenAccount(_ context.Context, address solana.PublicKey) (*models.TokenAccount, error) {
	account, ok := c[address.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", referral.ErrAccountNotFound, address)
	}
	return &account, nil
}

func TestPayoutMustExistInLedgerWithResolver(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)
	msol := f.Pool.MsolMint.String()

	chain := chainAccounts{}
	f.Engine.SetAccountResolver(chain)

	onChainOnly := func(owner solana.PublicKey) solana.PublicKey {
		addr := referraltest.NewKey()
		chain[addr.String()] = models.TokenAccount{AccountAddress: addr.String(), OwnerAddress: owner.String(), Mint: msol}
		return addr
	}
	both := func(t *testing.T, owner solana.PublicKey, onChain models.TokenAccount) solana.PublicKey {
		addr := referraltest.NewKey()
		require.NoError(t, f.Store.OpenAccount(ctx, models.TokenAccount{AccountAddress: addr.String(), OwnerAddress: owner.String(), Mint: msol}))
		onChain.AccountAddress = addr.String()
		chain[addr.String()] = onChain
		return addr
	}

	tests := []struct {
		name    string
		payout  func(t *testing.T, partner solana.PublicKey) solana.PublicKey
		wantErr error
	}{
		{
			name:    "resolver only",
			payout:  func(t *testing.T, p solana.PublicKey) solana.PublicKey { return onChainOnly(p) },
			wantErr: referral.ErrAccountNotFound,
		},
		{
			name: "owner differs",
			payout: func(t *testing.T, p solana.PublicKey) solana.PublicKey {
				return both(t, p, models.TokenAccount{OwnerAddress: referraltest.NewKey().String(), Mint: msol})
			},
			wantErr: referral.ErrAccountNotFound,
		},
		{
			name: "closed on chain",
			payout: func(t *testing.T, p solana.PublicKey) solana.PublicKey {
				return both(t, p, models.TokenAccount{OwnerAddress: p.String(), Mint: msol, IsClose: true})
			},
			wantErr: referral.ErrAccountNotFound,
		},
		{
			name: "ledger and chain agree",
			payout: func(t *testing.T, p solana.PublicKey) solana.PublicKey {
				return both(t, p, models.TokenAccount{OwnerAddress: p.String(), Mint: msol})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			partner := referraltest.NewKey()
			payout := tt.payout(t, partner)
			_, err := f.Engine.CreatePartner(ctx, f.Admin, nil, referral.CreatePartnerInput{Partner: partner, PayoutAccount: payout, Name: "p"})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				_, err = f.Engine.Partner(ctx, partner)
				require.ErrorIs(t, err, referral.ErrPartnerNotFound)
				return
			}
			require.NoError(t, err)
			_, err = f.Engine.UpdatePartner(ctx, f.Admin, nil, referral.UpdatePartnerInput{
				Partner:       partner,
				OperationFees: &models.OperationFees{DepositSol: 27},
			})
			require.NoError(t, err)

			req := f.DepositRequest(1_000_000_000)
			req.Partner, req.PayoutAccount = partner, payout
			res, err := f.Engine.Deposit(ctx, f.User, req)
			require.NoError(t, err)
			assert.Equal(t, uint64(2_700_000), res.Record.Fee)
			assert.Equal(t, uint64(2_700_000), f.Balance(t, payout))
		})
	}
}

func TestDeletePartner(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)

	require.ErrorIs(t, f.Engine.DeletePartner(ctx, f.Foreman, f.Partner), referral.ErrAccessDenied)
	require.NoError(t, f.Engine.DeletePartner(ctx, f.Admin, f.Partner))
	_, err := f.Engine.Partner(ctx, f.Partner)
	require.ErrorIs(t, err, referral.ErrPartnerNotFound)
	require.ErrorIs(t, f.Engine.DeletePartner(ctx, f.Admin, f.Partner), referral.ErrPartnerNotFound)
}
