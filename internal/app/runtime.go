// Package app builds the engine and its stores from the environment. It is
// shared by the API server, the settlement worker and the scheduler.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"

	"stakereferral/internal/protocol"
	"stakereferral/internal/referral"
	"stakereferral/internal/store"
	"stakereferral/pkg/config"
	solanakit "stakereferral/pkg/solana"
)

// Runtime is the wired engine of one process.
type Runtime struct {
	Store  *store.Gorm
	Pool   *protocol.Pool
	Engine *referral.Engine
}

// New connects to the database, opens the pool accounts and builds the
// engine. When SOLANA_RPC_URL is set, payout and treasury accounts are
// resolved on chain instead of in the ledger.
func New(ctx context.Context) (*Runtime, error) {
	config.InitDB()
	st := store.NewGorm(config.DB)

	pool, err := config.LoadPoolConfig()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadReferralConfig()
	if err != nil {
		return nil, err
	}
	engine, err := referral.NewEngine(st, pool, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Open(ctx, st); err != nil {
		return nil, fmt.Errorf("open pool accounts: %w", err)
	}

	if url := os.Getenv("SOLANA_RPC_URL"); url != "" {
		engine.SetAccountResolver(solanakit.NewAccountResolver(rpc.New(url), rpc.CommitmentConfirmed))
		log.WithField("rpc", url).Info("payout accounts cross-checked on chain")
	}

	log.WithFields(log.Fields{
		"msol_mint":         pool.MsolMint.String(),
		"treasury":          pool.Treasury.String(),
		"settlement_policy": cfg.SettlementPolicy,
		"net_stake_metric":  cfg.NetStakeMetric,
	}).Info("engine ready")
	return &Runtime{Store: st, Pool: pool, Engine: engine}, nil
}

// RPCEndpoints lists SOLANA_RPC_URL and the comma separated
// SOLANA_RPC_HEALTH_URLS for health checks.
func RPCEndpoints() []string {
	var out []string
	for _, v := range append([]string{os.Getenv("SOLANA_RPC_URL")}, strings.Split(os.Getenv("SOLANA_RPC_HEALTH_URLS"), ",")...) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
