// Package config loads the node configuration from a TOML file, creating a
// commented default on first run.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full ledgerd configuration.
type Config struct {
	RPCAddress string `toml:"RPCAddress"`
	DataDir    string `toml:"DataDir"`
	// Backend selects the storage engine, "memory" or "leveldb".
	Backend   string `toml:"Backend"`
	LogLevel  string `toml:"LogLevel"`
	LogFormat string `toml:"LogFormat"`
	// RPCAuthSecretEnv names the environment variable holding the shared
	// secret required on mutating RPC calls. Empty disables auth, which is
	// only acceptable for local development.
	RPCAuthSecretEnv string `toml:"RPCAuthSecretEnv"`
	// Admins hold the admin role for pool and market administration.
	Admins []string `toml:"Admins,omitempty"`
	// OracleAdmins may push oracle price updates.
	OracleAdmins []string `toml:"OracleAdmins,omitempty"`

	Staking StakingConfig       `toml:"staking"`
	Lending LendingConfig       `toml:"lending"`
	Genesis []GenesisAllocation `toml:"genesis,omitempty"`
}

// Load reads the configuration at path, writing and returning the default
// configuration when the file does not exist yet. The result is validated.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration a fresh node starts with: in-memory
// storage, the native token pair and no listed lending markets.
func Default() *Config {
	cfg := &Config{
		RPCAddress: ":8080",
		DataDir:    "./ledger-data",
		Backend:    "memory",
		LogLevel:   "info",
		LogFormat:  "json",
		Staking: StakingConfig{
			StakeToken:     "NHB",
			RewardToken:    "ZNHB",
			ModuleAddress:  "0x0000000000000000000000000000000000000100",
			RewardTreasury: "0x0000000000000000000000000000000000000101",
		},
		Lending: LendingConfig{
			ModuleAddress: "0x0000000000000000000000000000000000000200",
		},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.RPCAddress == "" {
		cfg.RPCAddress = ":8080"
	}
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.Lending.LiquidationThresholdBps == 0 {
		cfg.Lending.LiquidationThresholdBps = 8_500
	}
	if cfg.Lending.LiquidationBonusBps == 0 {
		cfg.Lending.LiquidationBonusBps = 500
	}
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
