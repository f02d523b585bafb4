package protocol_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakereferral/internal/protocol"
	"stakereferral/internal/referral"
	"stakereferral/internal/referraltest"
	"stakereferral/internal/store"
)

func TestPrice(t *testing.T) {
	p := &protocol.Pool{PriceLamports: 11, PriceMsol: 10}

	msol, err := p.MsolFor(1_100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), msol)

	lamports, err := p.LamportsFor(1_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_100), lamports)

	zero := &protocol.Pool{PriceLamports: 0, PriceMsol: 1}
	_, err = zero.MsolFor(1)
	require.ErrorIs(t, err, protocol.ErrInvalidPrice)

	huge := &protocol.Pool{PriceLamports: 1, PriceMsol: 1 << 40}
	_, err = huge.MsolFor(1 << 40)
	require.ErrorIs(t, err, protocol.ErrOverflow)
}

func run(t *testing.T, f *referraltest.Fixture, fn func(led referral.Ledger) error) error {
	t.Helper()
	return f.Store.Atomic(context.Background(), func(tx referral.Tx) error { return fn(tx.Ledger()) })
}

func TestDepositAndLiquidUnstake(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)
	p := f.Pool

	require.NoError(t, run(t, f, func(led referral.Ledger) error {
		return p.Deposit(ctx, led, referral.DepositParams{Lamports: 2_000_000, TransferFrom: f.UserSol, Authority: f.User, MintTo: f.UserMsol})
	}))
	assert.Equal(t, uint64(2_000_000), f.Balance(t, f.UserMsol))
	assert.Equal(t, uint64(2_000_000), f.Balance(t, p.Reserve))

	// 30bp of 1_000_000 is 3_000, three quarters of it to the treasury
	require.NoError(t, run(t, f, func(led referral.Ledger) error {
		return p.LiquidUnstake(ctx, led, referral.LiquidUnstakeParams{MsolAmount: 1_000_000, GetMsolFrom: f.UserMsol, Authority: f.User, TransferSolTo: f.UserSol})
	}))
	assert.Equal(t, uint64(2_250), f.Balance(t, p.Treasury))
	assert.Equal(t, uint64(1_000_000), f.Balance(t, f.UserMsol))
	assert.Equal(t, referraltest.PoolLiquidity-997_000, f.Balance(t, p.LiquidityPool))
	assert.Equal(t, referraltest.UserLamports-2_000_000+997_000, f.Balance(t, f.UserSol))
}

func TestPoolRejects(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)
	p := f.Pool

	err := run(t, f, func(led referral.Ledger) error {
		return p.Deposit(ctx, led, referral.DepositParams{Lamports: 0, TransferFrom: f.UserSol, Authority: f.User, MintTo: f.UserMsol})
	})
	require.ErrorIs(t, err, protocol.ErrZeroAmount)

	err = run(t, f, func(led referral.Ledger) error {
		return p.Deposit(ctx, led, referral.DepositParams{Lamports: 10, TransferFrom: f.UserSol, Authority: f.User, MintTo: f.UserSol})
	})
	require.ErrorIs(t, err, protocol.ErrWrongMint)

	err = run(t, f, func(led referral.Ledger) error {
		_, err := p.Delegation(ctx, led, f.UserSol)
		return err
	})
	require.ErrorIs(t, err, protocol.ErrNotStake)

	err = run(t, f, func(led referral.Ledger) error {
		return p.OrderUnstake(ctx, led, referral.OrderUnstakeParams{MsolAmount: 0, BurnMsolFrom: f.UserMsol, Authority: f.User, TicketAccount: f.Ticket})
	})
	require.ErrorIs(t, err, protocol.ErrZeroAmount)
}

func TestDepositStakeMovesWholePosition(t *testing.T) {
	ctx := context.Background()
	f := referraltest.New(t)
	p := f.Pool

	require.NoError(t, run(t, f, func(led referral.Ledger) error {
		return p.DepositStake(ctx, led, referral.DepositStakeParams{StakeAccount: f.UserStake, StakeAuthority: f.User, MintTo: f.UserMsol})
	}))
	assert.Equal(t, uint64(0), f.Balance(t, f.UserStake))
	assert.Equal(t, referraltest.UserStakeLamports, f.Balance(t, p.StakeReserve))
	assert.Equal(t, referraltest.UserStakeLamports, f.Balance(t, f.UserMsol))

	err := run(t, f, func(led referral.Ledger) error {
		return p.DepositStake(ctx, led, referral.DepositStakeParams{StakeAccount: f.UserStake, StakeAuthority: f.User, MintTo: f.UserMsol})
	})
	require.ErrorIs(t, err, protocol.ErrZeroAmount)
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := &protocol.Pool{
		MsolMint:          referraltest.NewKey(),
		Authority:         referraltest.NewKey(),
		Reserve:           referraltest.NewKey(),
		LiquidityPool:     referraltest.NewKey(),
		StakeReserve:      referraltest.NewKey(),
		Treasury:          referraltest.NewKey(),
		TreasuryAuthority: referraltest.NewKey(),
	}
	require.NoError(t, p.Open(ctx, mem))
	require.NoError(t, p.Open(ctx, mem))

	accounts, err := mem.ListAccounts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, accounts, 4)
}
