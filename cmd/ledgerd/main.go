// Command ledgerd runs the staking and lending engines behind the HTTP API,
// persisting snapshots through the configured storage backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"defiledger/config"
	"defiledger/core/events"
	"defiledger/core/state"
	"defiledger/core/types"
	"defiledger/native/bank"
	"defiledger/native/common"
	"defiledger/native/lending"
	"defiledger/native/staking"
	"defiledger/observability/logging"
	"defiledger/observability/metrics"
	"defiledger/rpc"
	"defiledger/storage"
)

const snapshotInterval = 30 * time.Second

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("ledgerd", cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("ledgerd exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()
	manager := state.NewManager(db)

	node, err := buildNode(cfg, manager, logger)
	if err != nil {
		return err
	}

	server := rpc.NewServer(rpc.ServerConfig{
		Staking:    node.staking,
		Lending:    node.lending,
		Oracle:     node.oracle,
		Roles:      node.roles,
		AuthSecret: authSecret(cfg, logger),
		Logger:     logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc listening", "addr", cfg.RPCAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := node.snapshot(manager); err != nil {
				logger.Error("periodic snapshot failed", "err", err)
			}
		case err := <-errCh:
			return fmt.Errorf("rpc server: %w", err)
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("http shutdown", "err", err)
			}
			if err := node.snapshot(manager); err != nil {
				return fmt.Errorf("final snapshot: %w", err)
			}
			logger.Info("state persisted")
			return nil
		}
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	if cfg.Backend == "leveldb" {
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	}
	return storage.NewMemDB(), nil
}

func authSecret(cfg *config.Config, logger *slog.Logger) string {
	if cfg.RPCAuthSecretEnv == "" {
		logger.Warn("rpc auth disabled: no RPCAuthSecretEnv configured")
		return ""
	}
	secret := os.Getenv(cfg.RPCAuthSecretEnv)
	if secret == "" {
		logger.Warn("rpc auth disabled: secret env is empty", "env", cfg.RPCAuthSecretEnv)
	}
	return secret
}

// node bundles the wired engine set.
type node struct {
	ledger  *bank.Ledger
	staking *staking.Engine
	lending *lending.Engine
	oracle  *lending.StaticOracle
	roles   *common.Roles
}

func (n *node) snapshot(manager *state.Manager) error {
	if err := manager.SaveStaking(n.staking.Export()); err != nil {
		return err
	}
	if err := manager.SaveLending(n.lending.Export()); err != nil {
		return err
	}
	return manager.SaveBank(n.ledger.Export())
}

func buildNode(cfg *config.Config, manager *state.Manager, logger *slog.Logger) (*node, error) {
	roles := common.NewRoles()
	for _, raw := range cfg.Admins {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		roles.Grant(addr, common.RoleAdmin)
	}
	for _, raw := range cfg.OracleAdmins {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		roles.Grant(addr, common.RoleOracleAdmin)
	}
	pauses := common.NewPauses("staking", "lending")

	ledger := bank.NewLedger()
	entries, restored, err := manager.LoadBank()
	if err != nil {
		return nil, err
	}
	if restored {
		if err := ledger.Restore(entries); err != nil {
			return nil, err
		}
	} else {
		for _, alloc := range cfg.Genesis {
			addr, err := types.ParseAddress(alloc.Address)
			if err != nil {
				return nil, err
			}
			amount, err := config.ParseAmount(alloc.Amount)
			if err != nil {
				return nil, err
			}
			if err := ledger.Mint(alloc.Token, addr, amount); err != nil {
				return nil, fmt.Errorf("genesis mint %s: %w", alloc.Token, err)
			}
		}
		logger.Info("genesis balances minted", "allocations", len(cfg.Genesis))
	}

	stakingEngine, err := buildStaking(cfg, manager, ledger, roles, pauses, logger)
	if err != nil {
		return nil, err
	}
	lendingEngine, oracle, err := buildLending(cfg, manager, ledger, roles, pauses, logger)
	if err != nil {
		return nil, err
	}

	return &node{
		ledger:  ledger,
		staking: stakingEngine,
		lending: lendingEngine,
		oracle:  oracle,
		roles:   roles,
	}, nil
}

func buildStaking(cfg *config.Config, manager *state.Manager, ledger *bank.Ledger, roles *common.Roles, pauses *common.Pauses, logger *slog.Logger) (*staking.Engine, error) {
	moduleAddr, err := types.ParseAddress(cfg.Staking.ModuleAddress)
	if err != nil {
		return nil, err
	}
	treasury, err := types.ParseAddress(cfg.Staking.RewardTreasury)
	if err != nil {
		return nil, err
	}
	engine := staking.NewEngine(ledger, staking.Config{
		StakeToken:     cfg.Staking.StakeToken,
		RewardToken:    cfg.Staking.RewardToken,
		ModuleAddress:  moduleAddr,
		RewardTreasury: treasury,
	})
	engine.SetRoles(roles)
	engine.SetPauses(pauses)
	engine.SetLogger(logger.With("module", "staking"))
	engine.SetMetrics(metrics.Engine())
	engine.SetEmitter(events.NewLogEmitter(logger))

	snapshot, err := manager.LoadStaking()
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		if err := engine.Restore(snapshot); err != nil {
			return nil, fmt.Errorf("restore staking state: %w", err)
		}
		return engine, nil
	}
	if len(cfg.Staking.Pools) > 0 {
		pools := make([]staking.Pool, len(cfg.Staking.Pools))
		for i, pool := range cfg.Staking.Pools {
			pools[i] = staking.Pool{
				ID:                uint64(i),
				LockPeriodSeconds: pool.LockPeriodSeconds,
				RateBps:           pool.RateBps,
				TotalStaked:       new(big.Int),
				Active:            true,
			}
		}
		if err := engine.Restore(&staking.State{Pools: pools}); err != nil {
			return nil, fmt.Errorf("apply configured pools: %w", err)
		}
	}
	return engine, nil
}

func buildLending(cfg *config.Config, manager *state.Manager, ledger *bank.Ledger, roles *common.Roles, pauses *common.Pauses, logger *slog.Logger) (*lending.Engine, *lending.StaticOracle, error) {
	moduleAddr, err := types.ParseAddress(cfg.Lending.ModuleAddress)
	if err != nil {
		return nil, nil, err
	}
	engine := lending.NewEngine(ledger, moduleAddr, lending.RiskParameters{
		LiquidationThresholdBps: cfg.Lending.LiquidationThresholdBps,
		LiquidationBonusBps:     cfg.Lending.LiquidationBonusBps,
	})
	engine.SetRoles(roles)
	engine.SetPauses(pauses)
	engine.SetLogger(logger.With("module", "lending"))
	engine.SetMetrics(metrics.Engine())
	engine.SetEmitter(events.NewLogEmitter(logger))

	oracle := lending.NewStaticOracle()
	for _, price := range cfg.Lending.Prices {
		value, err := config.ParseAmount(price.Price)
		if err != nil {
			return nil, nil, err
		}
		if err := oracle.SetPrice(price.Token, value); err != nil {
			return nil, nil, err
		}
	}
	engine.SetOracle(oracle)

	snapshot, err := manager.LoadLending()
	if err != nil {
		return nil, nil, err
	}
	if snapshot != nil {
		if err := engine.Restore(snapshot); err != nil {
			return nil, nil, fmt.Errorf("restore lending state: %w", err)
		}
		return engine, oracle, nil
	}
	if len(cfg.Lending.Markets) > 0 {
		markets := make([]lending.Market, len(cfg.Lending.Markets))
		for i, market := range cfg.Lending.Markets {
			markets[i] = lending.Market{
				Token:               market.Token,
				CollateralFactorBps: market.CollateralFactorBps,
				BorrowRateBps:       market.BorrowRateBps,
				SupplyRateBps:       market.SupplyRateBps,
				TotalDeposits:       new(big.Int),
				TotalBorrows:        new(big.Int),
				Active:              true,
			}
		}
		if err := engine.Restore(&lending.State{Markets: markets}); err != nil {
			return nil, nil, fmt.Errorf("apply configured markets: %w", err)
		}
	}
	return engine, oracle, nil
}
