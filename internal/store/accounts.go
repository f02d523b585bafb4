package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"stakereferral/internal/models"
	"stakereferral/internal/referral"
)

func openAccount(ctx context.Context, book accountBook, account models.TokenAccount) error {
	for _, addr := range []string{account.AccountAddress, account.OwnerAddress, account.Mint} {
		if _, err := solana.PublicKeyFromBase58(addr); err != nil {
			return fmt.Errorf("%w: %q", referral.ErrInvalidAddress, addr)
		}
	}
	if account.DelegateAddress != "" {
		if _, err := solana.PublicKeyFromBase58(account.DelegateAddress); err != nil {
			return fmt.Errorf("%w: %q", referral.ErrInvalidAddress, account.DelegateAddress)
		}
	}
	_, err := book.getAccount(ctx, account.AccountAddress)
	switch {
	case err == nil:
		return fmt.Errorf("%w: account %s", referral.ErrAlreadyInitialized, account.AccountAddress)
	case !errors.Is(err, referral.ErrAccountNotFound):
		return err
	}
	account.ID = 0
	return book.putAccount(ctx, &account)
}

func approve(ctx context.Context, book accountBook, address, owner, delegate string) error {
	account, err := book.getAccount(ctx, address)
	if err != nil {
		return err
	}
	if owner == "" || account.OwnerAddress != owner {
		return fmt.Errorf("%w: only the owner may approve a delegate", referral.ErrUnauthorized)
	}
	account.DelegateAddress = delegate
	return book.putAccount(ctx, account)
}
