package config

// StakingConfig selects the staked asset pair and custody addresses and
// optionally overrides the built-in pool schedule.
type StakingConfig struct {
	StakeToken     string       `toml:"StakeToken"`
	RewardToken    string       `toml:"RewardToken"`
	ModuleAddress  string       `toml:"ModuleAddress"`
	RewardTreasury string       `toml:"RewardTreasury"`
	Pools          []PoolConfig `toml:"Pools,omitempty"`
}

// PoolConfig is one staking pool definition. Listing any pool replaces the
// default schedule entirely.
type PoolConfig struct {
	LockPeriodSeconds uint64 `toml:"LockPeriodSeconds"`
	RateBps           uint64 `toml:"RateBps"`
}

// LendingConfig carries the lending custody address, the risk parameters and
// the markets listed at startup.
type LendingConfig struct {
	ModuleAddress           string         `toml:"ModuleAddress"`
	LiquidationThresholdBps uint64         `toml:"LiquidationThresholdBps"`
	LiquidationBonusBps     uint64         `toml:"LiquidationBonusBps"`
	Markets                 []MarketConfig `toml:"Markets,omitempty"`
	Prices                  []PriceConfig  `toml:"Prices,omitempty"`
}

// MarketConfig is one lending market listed during startup.
type MarketConfig struct {
	Token               string `toml:"Token"`
	CollateralFactorBps uint64 `toml:"CollateralFactorBps"`
	BorrowRateBps       uint64 `toml:"BorrowRateBps"`
	SupplyRateBps       uint64 `toml:"SupplyRateBps"`
}

// PriceConfig seeds the static oracle with a 1e18-scaled USD price.
type PriceConfig struct {
	Token string `toml:"Token"`
	Price string `toml:"Price"`
}

// GenesisAllocation mints an initial balance when the node starts with an
// empty database.
type GenesisAllocation struct {
	Token   string `toml:"Token"`
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}
