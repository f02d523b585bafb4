package store

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"

	"stakereferral/internal/models"
	"stakereferral/internal/referral"
)

// accountBook is the row access a ledger needs from a backend.
type accountBook interface {
	getAccount(ctx context.Context, address string) (*models.TokenAccount, error)
	putAccount(ctx context.Context, account *models.TokenAccount) error
}

// ledger enforces the token rules shared by every backend.
type ledger struct {
	book accountBook
}

var _ referral.Ledger = ledger{}

func (l ledger) Account(ctx context.Context, address solana.PublicKey) (*models.TokenAccount, error) {
	account, err := l.book.getAccount(ctx, address.String())
	if err != nil {
		return nil, err
	}
	if account.IsClose {
		return nil, fmt.Errorf("%w: %s is closed", referral.ErrAccountNotFound, address)
	}
	return account, nil
}

func (l ledger) Balance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	account, err := l.Account(ctx, address)
	if err != nil {
		return 0, err
	}
	return account.Amount, nil
}

func (l ledger) debit(ctx context.Context, from, authority solana.PublicKey, amount uint64) (*models.TokenAccount, error) {
	source, err := l.Account(ctx, from)
	if err != nil {
		return nil, err
	}
	if !source.Authorizes(authority.String()) {
		return nil, fmt.Errorf("%w: %s on %s", referral.ErrUnauthorized, authority, from)
	}
	if source.Amount < amount {
		return nil, fmt.Errorf("%w: %s has %d, need %d", referral.ErrInsufficientFunds, from, source.Amount, amount)
	}
	source.Amount -= amount
	return source, nil
}

func credit(account *models.TokenAccount, amount uint64) error {
	sum, carry := bits.Add64(account.Amount, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: balance overflow on %s", referral.ErrCalculationFailure, account.AccountAddress)
	}
	account.Amount = sum
	return nil
}

func (l ledger) Transfer(ctx context.Context, from, to, authority solana.PublicKey, amount uint64) error {
	source, err := l.debit(ctx, from, authority, amount)
	if err != nil {
		return err
	}
	if from.Equals(to) {
		return nil
	}
	dest, err := l.Account(ctx, to)
	if err != nil {
		return err
	}
	if dest.Mint != source.Mint {
		return fmt.Errorf("%w: %s is %s, %s is %s", referral.ErrMintMismatch, from, source.Mint, to, dest.Mint)
	}
	if err := credit(dest, amount); err != nil {
		return err
	}
	if err := l.book.putAccount(ctx, source); err != nil {
		return err
	}
	return l.book.putAccount(ctx, dest)
}

func (l ledger) Mint(ctx context.Context, to solana.PublicKey, amount uint64) error {
	dest, err := l.Account(ctx, to)
	if err != nil {
		return err
	}
	if err := credit(dest, amount); err != nil {
		return err
	}
	return l.book.putAccount(ctx, dest)
}

func (l ledger) Burn(ctx context.Context, from, authority solana.PublicKey, amount uint64) error {
	source, err := l.debit(ctx, from, authority, amount)
	if err != nil {
		return err
	}
	return l.book.putAccount(ctx, source)
}
