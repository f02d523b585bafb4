package solana

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"

	"stakereferral/internal/models"
	"stakereferral/internal/referral"
)

// SPL token account layout
const (
	tokenAccountSize = 165
	offsetMint       = 0
	offsetOwner      = 32
	offsetAmount     = 64
	offsetDelegate   = 72 // COption<Pubkey>: u32 tag + 32 bytes
	offsetState      = 108
)

var ErrNotTokenAccount = errors.New("solana: not a token account")

// AccountInfoGetter is the part of *rpc.Client the resolver needs.
type AccountInfoGetter interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}

// AccountResolver reads payout and treasury token accounts from the chain.
type AccountResolver struct {
	client     AccountInfoGetter
	commitment rpc.CommitmentType
}

var _ referral.AccountResolver = (*AccountResolver)(nil)

// NewAccountResolver uses the confirmed commitment when commitment is empty.
func NewAccountResolver(client AccountInfoGetter, commitment rpc.CommitmentType) *AccountResolver {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &AccountResolver{client: client, commitment: commitment}
}

// TokenAccount 查询链上 token 账户并转换为 TokenAccount 模型
func (r *AccountResolver) TokenAccount(ctx context.Context, address solana.PublicKey) (*models.TokenAccount, error) {
	resp, err := r.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: r.commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", referral.ErrAccountNotFound, address)
		}
		log.Errorf("> 查询账户 %s 失败: %v", address, err)
		return nil, fmt.Errorf("%w: %w", referral.ErrUpstream, err)
	}
	if resp == nil || resp.Value == nil {
		return nil, fmt.Errorf("%w: %s", referral.ErrAccountNotFound, address)
	}
	if !resp.Value.Owner.Equals(solana.TokenProgramID) {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrNotTokenAccount, address, resp.Value.Owner)
	}
	account, err := DecodeTokenAccount(resp.Value.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, address)
	}
	account.AccountAddress = address.String()
	return account, nil
}

// DecodeTokenAccount parses the raw SPL token account data. Frozen
// accounts are reported closed so they cannot receive payouts.
func DecodeTokenAccount(data []byte) (*models.TokenAccount, error) {
	if len(data) < tokenAccountSize {
		return nil, fmt.Errorf("%w: data is %d bytes", ErrNotTokenAccount, len(data))
	}
	account := &models.TokenAccount{
		Mint:         solana.PublicKeyFromBytes(data[offsetMint : offsetMint+32]).String(),
		OwnerAddress: solana.PublicKeyFromBytes(data[offsetOwner : offsetOwner+32]).String(),
		Amount:       binary.LittleEndian.Uint64(data[offsetAmount : offsetAmount+8]),
	}
	if binary.LittleEndian.Uint32(data[offsetDelegate:offsetDelegate+4]) == 1 {
		account.DelegateAddress = solana.PublicKeyFromBytes(data[offsetDelegate+4 : offsetDelegate+36]).String()
	}
	switch data[offsetState] {
	case 1:
	case 2:
		account.IsClose = true
	default:
		return nil, fmt.Errorf("%w: account is uninitialized", ErrNotTokenAccount)
	}
	return account, nil
}
