package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"stakereferral/internal/referral"
	"stakereferral/pkg/fees"
	solanakit "stakereferral/pkg/solana"
)

// LoadReferralConfig reads the engine policies from the environment.
func LoadReferralConfig() (referral.Config, error) {
	return ReferralConfigFromEnv(os.Getenv)
}

// ReferralConfigFromEnv builds the engine config from getenv. Unset
// variables keep referral.DefaultConfig values. The proxy authority comes
// from REFERRAL_PROXY_AUTHORITY or, when unset, from the keystore entry
// named by REFERRAL_PROXY_KEYSTORE.
func ReferralConfigFromEnv(getenv func(string) string) (referral.Config, error) {
	cfg := referral.DefaultConfig()

	if v := getenv("REFERRAL_NET_STAKE_METRIC"); v != "" {
		cfg.NetStakeMetric = referral.NetStakeMetric(v)
	}
	if v := getenv("REFERRAL_RESET_GROUPING"); v != "" {
		cfg.ResetGrouping = referral.ResetGrouping(v)
	}
	if v := getenv("REFERRAL_SETTLEMENT_POLICY"); v != "" {
		cfg.SettlementPolicy = referral.SettlementPolicy(v)
	}
	if v := getenv("REFERRAL_UPDATE_POLICY"); v != "" {
		cfg.UpdatePolicy = referral.UpdatePolicy(v)
	}
	if v := getenv("REFERRAL_STAKE_AMOUNT_SOURCE"); v != "" {
		cfg.StakeAmountSource = referral.StakeAmountSource(v)
	}

	if v := getenv("REFERRAL_DEFAULT_TRANSFER_DURATION"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return cfg, fmt.Errorf("%w: REFERRAL_DEFAULT_TRANSFER_DURATION: %v", referral.ErrInvalidConfig, err)
		}
		cfg.Defaults.TransferDuration = uint32(n)
	}
	if v := getenv("REFERRAL_DEFAULT_BASE_FEE"); v != "" {
		fee, err := fees.ParsePercent(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: REFERRAL_DEFAULT_BASE_FEE: %v", referral.ErrInvalidConfig, err)
		}
		cfg.Defaults.BaseFee = fee.BasisPoints
	}
	if v := getenv("REFERRAL_DEFAULT_MAX_FEE"); v != "" {
		fee, err := fees.ParsePercent(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: REFERRAL_DEFAULT_MAX_FEE: %v", referral.ErrInvalidConfig, err)
		}
		cfg.Defaults.MaxFee = fee.BasisPoints
	}
	if v := getenv("REFERRAL_DEFAULT_MAX_NET_STAKE"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("%w: REFERRAL_DEFAULT_MAX_NET_STAKE: %v", referral.ErrInvalidConfig, err)
		}
		cfg.Defaults.MaxNetStake = n
	}

	authority, err := proxyAuthority(getenv)
	if err != nil {
		return cfg, err
	}
	cfg.ProxyAuthority = authority

	return cfg, cfg.Validate()
}

func proxyAuthority(getenv func(string) string) (solana.PublicKey, error) {
	if v := getenv("REFERRAL_PROXY_AUTHORITY"); v != "" {
		key, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("%w: REFERRAL_PROXY_AUTHORITY: %v", referral.ErrInvalidConfig, err)
		}
		return key, nil
	}
	address := getenv("REFERRAL_PROXY_KEYSTORE")
	if address == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: REFERRAL_PROXY_AUTHORITY or REFERRAL_PROXY_KEYSTORE is required", referral.ErrInvalidConfig)
	}
	ks := solanakit.NewKeystore(getenv("REFERRAL_KEYSTORE_DIR"))
	key, err := ks.PublicKey(address, getenv("REFERRAL_PROXY_KEYSTORE_PASSWORD"))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: proxy keystore: %v", referral.ErrInvalidConfig, err)
	}
	return key, nil
}
