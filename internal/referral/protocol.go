package referral

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// DepositParams forwards a native deposit.
type DepositParams struct {
	Lamports     uint64
	TransferFrom solana.PublicKey
	Authority    solana.PublicKey
	MintTo       solana.PublicKey
}

// DepositStakeParams forwards a stake-position deposit.
type DepositStakeParams struct {
	StakeAccount   solana.PublicKey
	StakeAuthority solana.PublicKey
	MintTo         solana.PublicKey
	ValidatorIndex uint32
}

// LiquidUnstakeParams forwards an instant unstake.
type LiquidUnstakeParams struct {
	MsolAmount    uint64
	GetMsolFrom   solana.PublicKey
	Authority     solana.PublicKey
	TransferSolTo solana.PublicKey
}

// OrderUnstakeParams forwards a delayed unstake.
type OrderUnstakeParams struct {
	MsolAmount    uint64
	BurnMsolFrom  solana.PublicKey
	Authority     solana.PublicKey
	TicketAccount solana.PublicKey
}

// StakingProtocol is the external liquid-staking protocol. Every call acts
// on the ledger of the current unit of work.
type StakingProtocol interface {
	Deposit(ctx context.Context, led Ledger, p DepositParams) error
	DepositStake(ctx context.Context, led Ledger, p DepositStakeParams) error
	LiquidUnstake(ctx context.Context, led Ledger, p LiquidUnstakeParams) error
	OrderUnstake(ctx context.Context, led Ledger, p OrderUnstakeParams) error
}

// StakePositionReader exposes the delegated amount of a stake position.
type StakePositionReader interface {
	Delegation(ctx context.Context, led Ledger, stakeAccount solana.PublicKey) (uint64, error)
}
