package events

import (
	"math/big"
	"strconv"

	"defiledger/core/types"
)

const (
	// TypeLendingMarketListed is emitted when an admin lists a new market.
	TypeLendingMarketListed = "lending.marketListed"
	// TypeLendingMarketToggled is emitted when a market's active flag flips.
	TypeLendingMarketToggled = "lending.marketToggled"
	// TypeLendingDeposited captures collateral entering a market.
	TypeLendingDeposited = "lending.deposited"
	// TypeLendingWithdrawn captures collateral leaving a market.
	TypeLendingWithdrawn = "lending.withdrawn"
	// TypeLendingBorrowed captures a draw against an account's collateral.
	TypeLendingBorrowed = "lending.borrowed"
	// TypeLendingRepaid captures a debt repayment.
	TypeLendingRepaid = "lending.repaid"
	// TypeLendingLiquidated captures a third-party liquidation.
	TypeLendingLiquidated = "lending.liquidated"
)

// MarketListed captures a new market's risk parameters.
type MarketListed struct {
	Token               string
	CollateralFactorBps uint64
	BorrowRateBps       uint64
	SupplyRateBps       uint64
}

// EventType satisfies the Event interface.
func (MarketListed) EventType() string { return TypeLendingMarketListed }

// Event converts the payload into a broadcastable event.
func (e MarketListed) Event() *types.Event {
	return &types.Event{Type: TypeLendingMarketListed, Attributes: map[string]string{
		"token":               e.Token,
		"collateralFactorBps": strconv.FormatUint(e.CollateralFactorBps, 10),
		"borrowRateBps":       strconv.FormatUint(e.BorrowRateBps, 10),
		"supplyRateBps":       strconv.FormatUint(e.SupplyRateBps, 10),
	}}
}

// MarketToggled captures a market activation flip.
type MarketToggled struct {
	Token  string
	Active bool
}

// EventType satisfies the Event interface.
func (MarketToggled) EventType() string { return TypeLendingMarketToggled }

// Event converts the payload into a broadcastable event.
func (e MarketToggled) Event() *types.Event {
	return &types.Event{Type: TypeLendingMarketToggled, Attributes: map[string]string{
		"token":  e.Token,
		"active": strconv.FormatBool(e.Active),
	}}
}

// Deposited captures collateral entering a market.
type Deposited struct {
	Owner  types.Address
	Token  string
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (Deposited) EventType() string { return TypeLendingDeposited }

// Event converts the payload into a broadcastable event.
func (e Deposited) Event() *types.Event {
	return &types.Event{Type: TypeLendingDeposited, Attributes: map[string]string{
		"owner":  e.Owner.String(),
		"token":  e.Token,
		"amount": formatAmount(e.Amount),
	}}
}

// Withdrawn captures collateral returned to its owner.
type Withdrawn struct {
	Owner  types.Address
	Token  string
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (Withdrawn) EventType() string { return TypeLendingWithdrawn }

// Event converts the payload into a broadcastable event.
func (e Withdrawn) Event() *types.Event {
	return &types.Event{Type: TypeLendingWithdrawn, Attributes: map[string]string{
		"owner":  e.Owner.String(),
		"token":  e.Token,
		"amount": formatAmount(e.Amount),
	}}
}

// Borrowed captures a draw paid out to the borrower.
type Borrowed struct {
	Owner  types.Address
	Token  string
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (Borrowed) EventType() string { return TypeLendingBorrowed }

// Event converts the payload into a broadcastable event.
func (e Borrowed) Event() *types.Event {
	return &types.Event{Type: TypeLendingBorrowed, Attributes: map[string]string{
		"owner":  e.Owner.String(),
		"token":  e.Token,
		"amount": formatAmount(e.Amount),
	}}
}

// Repaid captures a clamped debt repayment.
type Repaid struct {
	Owner  types.Address
	Token  string
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (Repaid) EventType() string { return TypeLendingRepaid }

// Event converts the payload into a broadcastable event.
func (e Repaid) Event() *types.Event {
	return &types.Event{Type: TypeLendingRepaid, Attributes: map[string]string{
		"owner":  e.Owner.String(),
		"token":  e.Token,
		"amount": formatAmount(e.Amount),
	}}
}

// Liquidated captures a third-party liquidation of an unhealthy account.
type Liquidated struct {
	Liquidator      types.Address
	Borrower        types.Address
	BorrowToken     string
	CollateralToken string
	Repaid          *big.Int
	Seized          *big.Int
}

// EventType satisfies the Event interface.
func (Liquidated) EventType() string { return TypeLendingLiquidated }

// Event converts the payload into a broadcastable event.
func (e Liquidated) Event() *types.Event {
	return &types.Event{Type: TypeLendingLiquidated, Attributes: map[string]string{
		"liquidator":      e.Liquidator.String(),
		"borrower":        e.Borrower.String(),
		"borrowToken":     e.BorrowToken,
		"collateralToken": e.CollateralToken,
		"repaid":          formatAmount(e.Repaid),
		"seized":          formatAmount(e.Seized),
	}}
}
