package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"stakereferral/internal/protocol"
	"stakereferral/internal/referral"
	"stakereferral/pkg/fees"
)

const defaultPoolSeed = "stakereferral-dev"

// LoadPoolConfig reads the simulated pool from the environment.
func LoadPoolConfig() (*protocol.Pool, error) {
	return PoolFromEnv(os.Getenv)
}

// devKey derives a stable address so a restarted process finds the same
// pool accounts in the database.
func devKey(seed, name string) solana.PublicKey {
	sum := sha256.Sum256([]byte(seed + "/" + name))
	return solana.PublicKeyFromBytes(sum[:])
}

// PoolFromEnv builds the pool. POOL_<ACCOUNT> variables override the
// addresses derived from POOL_SEED.
func PoolFromEnv(getenv func(string) string) (*protocol.Pool, error) {
	seed := getenv("POOL_SEED")
	if seed == "" {
		seed = defaultPoolSeed
	}
	key := func(name string) (solana.PublicKey, error) {
		v := getenv("POOL_" + name)
		if v == "" {
			return devKey(seed, name), nil
		}
		k, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("%w: POOL_%s: %v", referral.ErrInvalidConfig, name, err)
		}
		return k, nil
	}

	p := &protocol.Pool{}
	for name, dst := range map[string]*solana.PublicKey{
		"MSOL_MINT":          &p.MsolMint,
		"AUTHORITY":          &p.Authority,
		"RESERVE":            &p.Reserve,
		"LIQUIDITY":          &p.LiquidityPool,
		"STAKE_RESERVE":      &p.StakeReserve,
		"TREASURY":           &p.Treasury,
		"TREASURY_AUTHORITY": &p.TreasuryAuthority,
	} {
		k, err := key(name)
		if err != nil {
			return nil, err
		}
		*dst = k
	}

	var err error
	if p.PriceLamports, err = uintEnv(getenv, "POOL_PRICE_LAMPORTS", 1); err != nil {
		return nil, err
	}
	if p.PriceMsol, err = uintEnv(getenv, "POOL_PRICE_MSOL", 1); err != nil {
		return nil, err
	}
	if p.PriceLamports == 0 || p.PriceMsol == 0 {
		return nil, fmt.Errorf("%w: pool price must be positive", referral.ErrInvalidConfig)
	}
	if p.LiquidUnstakeFee, err = percentEnv(getenv, "POOL_LIQUID_UNSTAKE_FEE", "0.3"); err != nil {
		return nil, err
	}
	if p.TreasuryCut, err = percentEnv(getenv, "POOL_TREASURY_CUT", "75"); err != nil {
		return nil, err
	}
	return p, nil
}

func uintEnv(getenv func(string) string, name string, def uint64) (uint64, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", referral.ErrInvalidConfig, name, err)
	}
	return n, nil
}

func percentEnv(getenv func(string) string, name, def string) (fees.Fee, error) {
	v := getenv(name)
	if v == "" {
		v = def
	}
	fee, err := fees.ParsePercent(v)
	if err != nil {
		return fees.Fee{}, fmt.Errorf("%w: %s: %v", referral.ErrInvalidConfig, name, err)
	}
	return fee, nil
}
