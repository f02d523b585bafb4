// Package referraltest builds a funded in-memory engine for tests.
package referraltest

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"stakereferral/internal/models"
	"stakereferral/internal/protocol"
	"stakereferral/internal/referral"
	"stakereferral/internal/store"
	"stakereferral/pkg/fees"
)

const (
	UserLamports      uint64 = 10_000_000_000
	UserStakeLamports uint64 = 5_000_000_000
	PoolLiquidity     uint64 = 1_000_000_000_000
	PartnerName              = "partner"
)

// Start is the fake clock origin.
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Backend is a store that can also open, approve and list ledger accounts.
type Backend interface {
	referral.Store
	OpenAccount(ctx context.Context, account models.TokenAccount) error
	Approve(ctx context.Context, address, owner, delegate string) error
	ListAccounts(ctx context.Context, owner string) ([]models.TokenAccount, error)
}

// Fixture is an initialized registry with one partner and one funded user.
type Fixture struct {
	Store  Backend
	Pool   *protocol.Pool
	Engine *referral.Engine
	Clock  *clockwork.FakeClock
	Config referral.Config

	Admin          solana.PublicKey
	Foreman        solana.PublicKey
	Partner        solana.PublicKey
	Payout         solana.PublicKey
	User           solana.PublicKey
	UserSol        solana.PublicKey
	UserMsol       solana.PublicKey
	UserStake      solana.PublicKey
	Ticket         solana.PublicKey
	ProxyAuthority solana.PublicKey
}

// NewKey returns a random public key.
func NewKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

// New builds the fixture on a memory store. Options adjust the engine
// config before the engine is created.
func New(t testing.TB, opts ...func(*referral.Config)) *Fixture {
	t.Helper()
	return NewWithStore(t, store.NewMemory(), opts...)
}

// NewWithStore builds the fixture on backend, which must be empty.
func NewWithStore(t testing.TB, backend Backend, opts ...func(*referral.Config)) *Fixture {
	t.Helper()
	ctx := context.Background()

	f := &Fixture{
		Store:          backend,
		Clock:          clockwork.NewFakeClockAt(Start),
		Admin:          NewKey(),
		Foreman:        NewKey(),
		Partner:        NewKey(),
		Payout:         NewKey(),
		User:           NewKey(),
		UserSol:        NewKey(),
		UserMsol:       NewKey(),
		UserStake:      NewKey(),
		Ticket:         NewKey(),
		ProxyAuthority: NewKey(),
	}
	f.Pool = &protocol.Pool{
		MsolMint:          NewKey(),
		Authority:         NewKey(),
		Reserve:           NewKey(),
		LiquidityPool:     NewKey(),
		StakeReserve:      NewKey(),
		Treasury:          NewKey(),
		TreasuryAuthority: NewKey(),
		PriceLamports:     1,
		PriceMsol:         1,
		LiquidUnstakeFee:  fees.FromBasisPoints(30),
		TreasuryCut:       fees.FromBasisPoints(7_500),
	}

	native := solana.WrappedSol.String()
	msol := f.Pool.MsolMint.String()
	accounts := append(f.Pool.Accounts(),
		models.TokenAccount{AccountAddress: f.Payout.String(), OwnerAddress: f.Partner.String(), Mint: msol},
		models.TokenAccount{AccountAddress: f.UserSol.String(), OwnerAddress: f.User.String(), Mint: native},
		models.TokenAccount{AccountAddress: f.UserMsol.String(), OwnerAddress: f.User.String(), DelegateAddress: f.ProxyAuthority.String(), Mint: msol},
		models.TokenAccount{AccountAddress: f.UserStake.String(), OwnerAddress: f.User.String(), Mint: protocol.StakeMint.String()},
		models.TokenAccount{AccountAddress: f.Ticket.String(), OwnerAddress: f.User.String(), Mint: native},
	)
	for _, a := range accounts {
		require.NoError(t, f.Store.OpenAccount(ctx, a))
	}
	f.Fund(t, f.UserSol, UserLamports)
	f.Fund(t, f.UserStake, UserStakeLamports)
	f.Fund(t, f.Pool.LiquidityPool, PoolLiquidity)

	cfg := referral.DefaultConfig()
	cfg.ProxyAuthority = f.ProxyAuthority
	for _, opt := range opts {
		opt(&cfg)
	}
	f.Config = cfg
	engine, err := referral.NewEngine(f.Store, f.Pool, cfg)
	require.NoError(t, err)
	engine.SetClock(f.Clock)
	f.Engine = engine

	_, err = engine.InitializeRegistry(ctx, f.Admin, referral.RegistryInput{
		Admin:               f.Admin,
		MsolMint:            f.Pool.MsolMint,
		TreasuryMsolAccount: f.Pool.Treasury,
		TreasuryAuthority:   f.Pool.TreasuryAuthority,
		Foremen:             []solana.PublicKey{f.Foreman},
	})
	require.NoError(t, err)

	_, err = engine.CreatePartner(ctx, f.Foreman, nil, referral.CreatePartnerInput{
		Partner:       f.Partner,
		PayoutAccount: f.Payout,
		Name:          PartnerName,
	})
	require.NoError(t, err)
	return f
}

// Fund mints amount into an existing ledger account.
func (f *Fixture) Fund(t testing.TB, account solana.PublicKey, amount uint64) {
	t.Helper()
	err := f.Store.Atomic(context.Background(), func(tx referral.Tx) error {
		return tx.Ledger().Mint(context.Background(), account, amount)
	})
	require.NoError(t, err)
}

// Balance reads a ledger balance.
func (f *Fixture) Balance(t testing.TB, account solana.PublicKey) uint64 {
	t.Helper()
	var amount uint64
	err := f.Store.Atomic(context.Background(), func(tx referral.Tx) error {
		var err error
		amount, err = tx.Ledger().Balance(context.Background(), account)
		return err
	})
	require.NoError(t, err)
	return amount
}

// State reads the partner record.
func (f *Fixture) State(t testing.TB) *models.ReferralState {
	t.Helper()
	state, err := f.Engine.Partner(context.Background(), f.Partner)
	require.NoError(t, err)
	return state
}

// SetOperationFees sets every flat fee to bp through the admin.
func (f *Fixture) SetOperationFees(t testing.TB, bp uint32) {
	t.Helper()
	_, err := f.Engine.UpdatePartner(context.Background(), f.Admin, nil, referral.UpdatePartnerInput{
		Partner: f.Partner,
		OperationFees: &models.OperationFees{
			DepositSol:          bp,
			DepositStakeAccount: bp,
			LiquidUnstake:       bp,
			DelayedUnstake:      bp,
		},
	})
	require.NoError(t, err)
}

// DepositRequest deposits lamports from the user's SOL account into the
// user's mSOL account.
func (f *Fixture) DepositRequest(lamports uint64) referral.DepositRequest {
	return referral.DepositRequest{
		Partner:       f.Partner,
		PayoutAccount: f.Payout,
		TransferFrom:  f.UserSol,
		MintTo:        f.UserMsol,
		Lamports:      lamports,
	}
}

// LiquidUnstakeRequest unstakes msol from the user's mSOL account.
func (f *Fixture) LiquidUnstakeRequest(msol uint64) referral.LiquidUnstakeRequest {
	return referral.LiquidUnstakeRequest{
		Partner:       f.Partner,
		PayoutAccount: f.Payout,
		GetMsolFrom:   f.UserMsol,
		TransferSolTo: f.UserSol,
		MsolAmount:    msol,
	}
}
