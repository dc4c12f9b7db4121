package lending

import (
	"math/big"

	"defiledger/core/types"
)

// Market captures the per-asset accounting state for the lending protocol.
// One market exists per token; markets are listed by an admin and never
// removed, only deactivated.
type Market struct {
	Token string
	// CollateralFactorBps is the fraction of a deposited asset's value counted
	// toward borrowing power, at most 10000.
	CollateralFactorBps uint64
	// BorrowRateBps is the annual borrow rate, at most 5000.
	BorrowRateBps uint64
	// SupplyRateBps is the annual supply rate advertised to depositors.
	SupplyRateBps uint64
	// TotalDeposits aggregates depositor balances in token units.
	TotalDeposits *big.Int
	// TotalBorrows aggregates outstanding debt in token units.
	TotalBorrows *big.Int
	// Active gates deposits and borrows; withdraw, repay and liquidate remain
	// available on an inactive market.
	Active bool
}

// Account maintains the lending position for a single user across all
// markets. The USD aggregates are derived state: they are recomputed from
// scratch over every listed market on each mutation, never patched
// incrementally.
type Account struct {
	Owner    types.Address
	Deposits map[string]*big.Int
	Borrows  map[string]*big.Int
	// TotalCollateralValue is the collateral-factor-adjusted USD value of all
	// deposits, 1e18 scaled.
	TotalCollateralValue *big.Int
	// TotalBorrowValue is the USD value of all debt, 1e18 scaled.
	TotalBorrowValue *big.Int
}

// RiskParameters groups the protocol-wide safety limits.
type RiskParameters struct {
	// LiquidationThresholdBps is the health factor, in basis points, below
	// which an account becomes liquidatable.
	LiquidationThresholdBps uint64
	// LiquidationBonusBps is the extra collateral share awarded to a
	// liquidator as incentive.
	LiquidationBonusBps uint64
}

// DefaultRiskParameters matches the protocol defaults: 85% liquidation
// threshold, 5% liquidation bonus.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{LiquidationThresholdBps: 8500, LiquidationBonusBps: 500}
}

// Balance pairs a token with an amount for map-free export records.
type Balance struct {
	Token  string
	Amount *big.Int
}

// AccountRecord is the exportable form of an Account. Balances are sorted by
// token so exports are deterministic.
type AccountRecord struct {
	Owner    types.Address
	Deposits []Balance
	Borrows  []Balance
}

// State is the full exportable engine state.
type State struct {
	Markets  []Market
	Accounts []AccountRecord
}

// MarketInfo is the query-side market snapshot.
type MarketInfo struct {
	Token               string   `json:"token"`
	CollateralFactorBps uint64   `json:"collateralFactorBps"`
	BorrowRateBps       uint64   `json:"borrowRateBps"`
	SupplyRateBps       uint64   `json:"supplyRateBps"`
	TotalDeposits       *big.Int `json:"totalDeposits"`
	TotalBorrows        *big.Int `json:"totalBorrows"`
	Active              bool     `json:"active"`
}

// AccountInfo is the query-side account snapshot. HealthFactor is omitted
// when the account carries no debt, which reads as maximal health.
type AccountInfo struct {
	Owner                types.Address       `json:"owner"`
	Deposits             map[string]*big.Int `json:"deposits"`
	Borrows              map[string]*big.Int `json:"borrows"`
	TotalCollateralValue *big.Int            `json:"totalCollateralValue"`
	TotalBorrowValue     *big.Int            `json:"totalBorrowValue"`
	HealthFactor         *big.Int            `json:"healthFactor,omitempty"`
}
