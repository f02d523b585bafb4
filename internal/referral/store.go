package referral

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"stakereferral/internal/models"
)

// Ledger is the token balance book of one unit of work. Balances of
// native SOL use the wrapped-SOL mint.
type Ledger interface {
	// Account returns ErrAccountNotFound for unknown addresses.
	Account(ctx context.Context, address solana.PublicKey) (*models.TokenAccount, error)
	Balance(ctx context.Context, address solana.PublicKey) (uint64, error)
	// Transfer moves amount between two accounts of the same mint. The
	// authority must be the owner or the delegate of from.
	Transfer(ctx context.Context, from, to, authority solana.PublicKey, amount uint64) error
	Mint(ctx context.Context, to solana.PublicKey, amount uint64) error
	Burn(ctx context.Context, from, authority solana.PublicKey, amount uint64) error
}

// Tx is a single unit of work. Nothing is visible to other units until the
// function passed to Store.Atomic returns nil.
type Tx interface {
	// Registry returns ErrRegistryNotInitialized when absent.
	Registry(ctx context.Context) (*models.GlobalState, error)
	// CreateRegistry returns ErrAlreadyInitialized when a registry exists.
	CreateRegistry(ctx context.Context, state *models.GlobalState) error
	SaveRegistry(ctx context.Context, state *models.GlobalState) error

	// Partner loads a partner record for update. ErrPartnerNotFound when absent.
	Partner(ctx context.Context, partner string) (*models.ReferralState, error)
	// CreatePartner returns ErrAlreadyInitialized when the partner exists.
	CreatePartner(ctx context.Context, state *models.ReferralState) error
	SavePartner(ctx context.Context, state *models.ReferralState) error
	DeletePartner(ctx context.Context, partner string) error
	ListPartners(ctx context.Context) ([]models.ReferralState, error)

	RecordOperation(ctx context.Context, record *models.OperationRecord) error
	RecordSettlement(ctx context.Context, record *models.SettlementRecord) error
	ListOperations(ctx context.Context, partner string, limit int) ([]models.OperationRecord, error)
	ListSettlements(ctx context.Context, partner string, limit int) ([]models.SettlementRecord, error)

	Ledger() Ledger
}

// Store runs units of work.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// AccountResolver looks up token accounts for payout and treasury
// validation. The unit-of-work ledger is used when none is configured.
type AccountResolver interface {
	TokenAccount(ctx context.Context, address solana.PublicKey) (*models.TokenAccount, error)
}
