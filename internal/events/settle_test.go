package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakereferral/internal/models"
	"stakereferral/internal/referral"
	"stakereferral/pkg/config"
)

type fakeSettler struct {
	err     error
	partner solana.PublicKey
	calls   int
}

func (f *fakeSettler) Settle(_ context.Context, _, partner solana.PublicKey) (*models.SettlementRecord, error) {
	f.calls++
	f.partner = partner
	if f.err != nil {
		return nil, f.err
	}
	return &models.SettlementRecord{ID: "r1", PartnerAccount: partner.String(), ShareAmount: 7}, nil
}

func message(t *testing.T, partner, caller string) []byte {
	t.Helper()
	body, err := json.Marshal(SettleRequest{Partner: partner, Caller: caller})
	require.NoError(t, err)
	return body
}

func TestSettleHandler(t *testing.T) {
	ctx := context.Background()
	partner := solana.NewWallet().PublicKey()
	caller := solana.NewWallet().PublicKey()

	t.Run("settles", func(t *testing.T) {
		s := &fakeSettler{}
		require.NoError(t, SettleHandler(s)(ctx, message(t, partner.String(), caller.String())))
		assert.Equal(t, partner, s.partner)
	})

	t.Run("malformed messages are discarded", func(t *testing.T) {
		s := &fakeSettler{}
		h := SettleHandler(s)
		require.ErrorIs(t, h(ctx, []byte("{")), config.ErrDiscard)
		require.ErrorIs(t, h(ctx, message(t, "bad", caller.String())), config.ErrDiscard)
		require.ErrorIs(t, h(ctx, message(t, partner.String(), "")), config.ErrDiscard)
		assert.Zero(t, s.calls)
	})

	tests := []struct {
		name    string
		err     error
		discard bool
	}{
		{"not yet available", referral.ErrTransferNotAvailable, true},
		{"unknown partner", referral.ErrPartnerNotFound, true},
		{"denied", referral.ErrAccessDenied, true},
		{"protocol failure", fmt.Errorf("%w: rpc down", referral.ErrUpstream), false},
		{"store failure", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SettleHandler(&fakeSettler{err: tt.err})(ctx, message(t, partner.String(), caller.String()))
			require.Error(t, err)
			assert.Equal(t, tt.discard, errors.Is(err, config.ErrDiscard))
			require.ErrorIs(t, err, tt.err)
		})
	}
}
