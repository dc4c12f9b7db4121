package config

import (
	"fmt"
	"math/big"
	"strings"

	"defiledger/core/types"
)

const (
	maxBps           = 10_000
	maxBorrowRateBps = 5_000
)

// Validate checks every address, rate and amount in the configuration before
// the node wires its engines.
func (cfg *Config) Validate() error {
	switch cfg.Backend {
	case "memory":
	case "leveldb":
		if strings.TrimSpace(cfg.DataDir) == "" {
			return fmt.Errorf("config: leveldb backend requires DataDir")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", cfg.Backend)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", cfg.LogFormat)
	}

	for i, admin := range cfg.Admins {
		if _, err := types.ParseAddress(admin); err != nil {
			return fmt.Errorf("config: admin %d: %w", i, err)
		}
	}
	for i, admin := range cfg.OracleAdmins {
		if _, err := types.ParseAddress(admin); err != nil {
			return fmt.Errorf("config: oracle admin %d: %w", i, err)
		}
	}

	if strings.TrimSpace(cfg.Staking.StakeToken) == "" {
		return fmt.Errorf("config: staking stake token required")
	}
	if strings.TrimSpace(cfg.Staking.RewardToken) == "" {
		return fmt.Errorf("config: staking reward token required")
	}
	if _, err := types.ParseAddress(cfg.Staking.ModuleAddress); err != nil {
		return fmt.Errorf("config: staking module address: %w", err)
	}
	if _, err := types.ParseAddress(cfg.Staking.RewardTreasury); err != nil {
		return fmt.Errorf("config: staking reward treasury: %w", err)
	}
	for i, pool := range cfg.Staking.Pools {
		if pool.RateBps > maxBps {
			return fmt.Errorf("config: staking pool %d: rate %d exceeds %d bps", i, pool.RateBps, maxBps)
		}
	}

	if _, err := types.ParseAddress(cfg.Lending.ModuleAddress); err != nil {
		return fmt.Errorf("config: lending module address: %w", err)
	}
	if cfg.Lending.LiquidationThresholdBps > maxBps {
		return fmt.Errorf("config: liquidation threshold %d exceeds %d bps", cfg.Lending.LiquidationThresholdBps, maxBps)
	}
	for i, market := range cfg.Lending.Markets {
		if strings.TrimSpace(market.Token) == "" {
			return fmt.Errorf("config: lending market %d: token required", i)
		}
		if market.CollateralFactorBps > maxBps {
			return fmt.Errorf("config: lending market %q: collateral factor %d exceeds %d bps", market.Token, market.CollateralFactorBps, maxBps)
		}
		if market.BorrowRateBps > maxBorrowRateBps {
			return fmt.Errorf("config: lending market %q: borrow rate %d exceeds %d bps", market.Token, market.BorrowRateBps, maxBorrowRateBps)
		}
	}
	for i, price := range cfg.Lending.Prices {
		if strings.TrimSpace(price.Token) == "" {
			return fmt.Errorf("config: oracle price %d: token required", i)
		}
		if _, err := parseAmount(price.Price); err != nil {
			return fmt.Errorf("config: oracle price %q: %w", price.Token, err)
		}
	}

	for i, alloc := range cfg.Genesis {
		if strings.TrimSpace(alloc.Token) == "" {
			return fmt.Errorf("config: genesis allocation %d: token required", i)
		}
		if _, err := types.ParseAddress(alloc.Address); err != nil {
			return fmt.Errorf("config: genesis allocation %d: %w", i, err)
		}
		if _, err := parseAmount(alloc.Amount); err != nil {
			return fmt.Errorf("config: genesis allocation %d: %w", i, err)
		}
	}
	return nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", raw)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be positive", raw)
	}
	return amount, nil
}

// ParseAmount exposes the decimal parser used during validation so startup
// code mints exactly what was validated.
func ParseAmount(raw string) (*big.Int, error) {
	return parseAmount(raw)
}
