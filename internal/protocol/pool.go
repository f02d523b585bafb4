// Package protocol is an in-ledger liquid staking pool used for development
// and tests. It moves balances the way the real protocol does from the
// proxy's point of view: SOL in and mSOL out on deposit, mSOL in and SOL out
// on unstake, with the unstake fee cut landing in the treasury account.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"

	"stakereferral/internal/models"
	"stakereferral/internal/referral"
	"stakereferral/pkg/fees"
)

var (
	ErrZeroAmount   = errors.New("protocol: zero amount")
	ErrOverflow     = errors.New("protocol: amount overflow")
	ErrNotStake     = errors.New("protocol: not a stake account")
	ErrInvalidPrice = errors.New("protocol: invalid price")
	ErrWrongMint    = errors.New("protocol: account does not hold mSOL")
)

// StakeMint marks ledger accounts that represent stake positions.
var StakeMint = solana.StakeProgramID

// Pool holds the pool-side accounts, all owned by Authority except the
// treasury which belongs to TreasuryAuthority.
type Pool struct {
	MsolMint          solana.PublicKey
	Authority         solana.PublicKey
	Reserve           solana.PublicKey // native, receives deposits and pays tickets
	LiquidityPool     solana.PublicKey // native, pays liquid unstakes
	StakeReserve      solana.PublicKey // stake positions deposited into the pool
	Treasury          solana.PublicKey // mSOL fee pool
	TreasuryAuthority solana.PublicKey

	// PriceLamports lamports are worth PriceMsol mSOL.
	PriceLamports uint64
	PriceMsol     uint64
	// LiquidUnstakeFee is charged in mSOL; TreasuryCut of it goes to Treasury.
	LiquidUnstakeFee fees.Fee
	TreasuryCut      fees.Fee
}

var (
	_ referral.StakingProtocol     = (*Pool)(nil)
	_ referral.StakePositionReader = (*Pool)(nil)
)

// Accounts returns the ledger accounts the pool needs, all with zero
// balances.
func (p *Pool) Accounts() []models.TokenAccount {
	native := solana.WrappedSol.String()
	return []models.TokenAccount{
		{AccountAddress: p.Reserve.String(), OwnerAddress: p.Authority.String(), Mint: native},
		{AccountAddress: p.LiquidityPool.String(), OwnerAddress: p.Authority.String(), Mint: native},
		{AccountAddress: p.StakeReserve.String(), OwnerAddress: p.Authority.String(), Mint: StakeMint.String()},
		{AccountAddress: p.Treasury.String(), OwnerAddress: p.TreasuryAuthority.String(), Mint: p.MsolMint.String()},
	}
}

// AccountOpener creates ledger accounts.
type AccountOpener interface {
	OpenAccount(ctx context.Context, account models.TokenAccount) error
}

// Open creates the pool accounts that do not exist yet.
func (p *Pool) Open(ctx context.Context, opener AccountOpener) error {
	for _, account := range p.Accounts() {
		err := opener.OpenAccount(ctx, account)
		if err != nil && !errors.Is(err, referral.ErrAlreadyInitialized) {
			return fmt.Errorf("open %s: %w", account.AccountAddress, err)
		}
	}
	return nil
}

func (p *Pool) requireMsol(ctx context.Context, led referral.Ledger, address solana.PublicKey) error {
	account, err := led.Account(ctx, address)
	if err != nil {
		return err
	}
	if account.Mint != p.MsolMint.String() {
		return fmt.Errorf("%w: %s", ErrWrongMint, address)
	}
	return nil
}

func mulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrInvalidPrice
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, c)
	return quo, nil
}

// MsolFor converts lamports to mSOL at the pool price.
func (p *Pool) MsolFor(lamports uint64) (uint64, error) {
	return mulDiv(lamports, p.PriceMsol, p.PriceLamports)
}

// LamportsFor converts mSOL to lamports at the pool price.
func (p *Pool) LamportsFor(msol uint64) (uint64, error) {
	return mulDiv(msol, p.PriceLamports, p.PriceMsol)
}

func (p *Pool) Deposit(ctx context.Context, led referral.Ledger, in referral.DepositParams) error {
	if in.Lamports == 0 {
		return ErrZeroAmount
	}
	if err := p.requireMsol(ctx, led, in.MintTo); err != nil {
		return err
	}
	minted, err := p.MsolFor(in.Lamports)
	if err != nil {
		return err
	}
	if err := led.Transfer(ctx, in.TransferFrom, p.Reserve, in.Authority, in.Lamports); err != nil {
		return err
	}
	return led.Mint(ctx, in.MintTo, minted)
}

func (p *Pool) Delegation(ctx context.Context, led referral.Ledger, stakeAccount solana.PublicKey) (uint64, error) {
	account, err := led.Account(ctx, stakeAccount)
	if err != nil {
		return 0, err
	}
	if account.Mint != StakeMint.String() {
		return 0, fmt.Errorf("%w: %s", ErrNotStake, stakeAccount)
	}
	return account.Amount, nil
}

// DepositStake moves the whole position into the stake reserve and mints
// its value.
func (p *Pool) DepositStake(ctx context.Context, led referral.Ledger, in referral.DepositStakeParams) error {
	staked, err := p.Delegation(ctx, led, in.StakeAccount)
	if err != nil {
		return err
	}
	if staked == 0 {
		return ErrZeroAmount
	}
	if err := p.requireMsol(ctx, led, in.MintTo); err != nil {
		return err
	}
	minted, err := p.MsolFor(staked)
	if err != nil {
		return err
	}
	if err := led.Transfer(ctx, in.StakeAccount, p.StakeReserve, in.StakeAuthority, staked); err != nil {
		return err
	}
	return led.Mint(ctx, in.MintTo, minted)
}

// LiquidUnstake takes MsolAmount from the user, sends the treasury cut of
// the fee to Treasury, burns the rest and pays the value net of the fee
// from the liquidity pool.
func (p *Pool) LiquidUnstake(ctx context.Context, led referral.Ledger, in referral.LiquidUnstakeParams) error {
	if in.MsolAmount == 0 {
		return ErrZeroAmount
	}
	if err := p.requireMsol(ctx, led, in.GetMsolFrom); err != nil {
		return err
	}
	fee := p.LiquidUnstakeFee.Apply(in.MsolAmount)
	cut := p.TreasuryCut.Apply(fee)
	lamports, err := p.LamportsFor(in.MsolAmount - fee)
	if err != nil {
		return err
	}
	if cut > 0 {
		if err := led.Transfer(ctx, in.GetMsolFrom, p.Treasury, in.Authority, cut); err != nil {
			return err
		}
	}
	if err := led.Burn(ctx, in.GetMsolFrom, in.Authority, in.MsolAmount-cut); err != nil {
		return err
	}
	return led.Transfer(ctx, p.LiquidityPool, in.TransferSolTo, p.Authority, lamports)
}

// OrderUnstake burns the mSOL and funds the ticket account from the reserve.
func (p *Pool) OrderUnstake(ctx context.Context, led referral.Ledger, in referral.OrderUnstakeParams) error {
	if in.MsolAmount == 0 {
		return ErrZeroAmount
	}
	if err := p.requireMsol(ctx, led, in.BurnMsolFrom); err != nil {
		return err
	}
	lamports, err := p.LamportsFor(in.MsolAmount)
	if err != nil {
		return err
	}
	if err := led.Burn(ctx, in.BurnMsolFrom, in.Authority, in.MsolAmount); err != nil {
		return err
	}
	return led.Transfer(ctx, p.Reserve, in.TicketAccount, p.Authority, lamports)
}
