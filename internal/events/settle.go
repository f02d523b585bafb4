package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"

	"stakereferral/internal/models"
	"stakereferral/internal/referral"
	"stakereferral/pkg/config"
)

// SettleRequest is the message consumed by the settlement worker.
type SettleRequest struct {
	Partner     string    `json:"partner"`
	Caller      string    `json:"caller"`
	RequestedAt time.Time `json:"requested_at"`
}

// Settler is satisfied by *referral.Engine.
type Settler interface {
	Settle(ctx context.Context, caller, partner solana.PublicKey) (*models.SettlementRecord, error)
}

// SettleHandler returns a consumer handler settling one partner per
// message. Malformed messages and rejections that a retry cannot fix are
// discarded. Store and protocol failures are requeued.
func SettleHandler(settler Settler) func(context.Context, []byte) error {
	return func(ctx context.Context, body []byte) error {
		var req SettleRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return fmt.Errorf("%w: %v", config.ErrDiscard, err)
		}
		partner, err := solana.PublicKeyFromBase58(req.Partner)
		if err != nil {
			return fmt.Errorf("%w: partner: %v", config.ErrDiscard, err)
		}
		caller, err := solana.PublicKeyFromBase58(req.Caller)
		if err != nil {
			return fmt.Errorf("%w: caller: %v", config.ErrDiscard, err)
		}

		fields := log.Fields{"partner": req.Partner, "caller": req.Caller}
		record, err := settler.Settle(ctx, caller, partner)
		if err != nil {
			switch referral.KindOf(err) {
			case referral.KindUpstream, referral.KindInternal:
				log.WithFields(fields).WithError(err).Error("settlement failed, requeue")
				return err
			default:
				log.WithFields(fields).WithError(err).Warn("settlement rejected")
				return fmt.Errorf("%w: %w", config.ErrDiscard, err)
			}
		}
		fields["share"] = record.ShareAmount
		fields["record"] = record.ID
		log.WithFields(fields).Info("settled")
		return nil
	}
}
