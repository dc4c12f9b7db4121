package lending

import "defiledger/native/common"

var (
	// ErrMarketNotFound rejects references to unlisted tokens.
	ErrMarketNotFound = common.Validation("lending: market not found")
	// ErrMarketExists rejects listing a token twice.
	ErrMarketExists = common.Validation("lending: market already listed")
	// ErrInvalidCollateralFactor rejects factors above 10000 basis points.
	ErrInvalidCollateralFactor = common.Validation("lending: collateral factor exceeds 10000 basis points")
	// ErrRateTooHigh rejects borrow rates above 5000 basis points.
	ErrRateTooHigh = common.Validation("lending: borrow rate exceeds 5000 basis points")
	// ErrMarketInactive rejects deposits and borrows against a disabled market.
	ErrMarketInactive = common.State("lending: market inactive")
	// ErrInvalidAmount rejects zero or negative amounts.
	ErrInvalidAmount = common.Validation("lending: amount must be positive")
	// ErrInsufficientDeposit rejects withdrawals exceeding the deposit balance.
	ErrInsufficientDeposit = common.Validation("lending: insufficient deposit")
	// ErrInsufficientLiquidity rejects borrows exceeding the lendable reserve.
	ErrInsufficientLiquidity = common.State("lending: insufficient liquidity")
	// ErrUnhealthy rejects operations that would leave the account below the
	// liquidation threshold.
	ErrUnhealthy = common.State("lending: account health below threshold")
	// ErrNoDebt rejects repayments when nothing is owed.
	ErrNoDebt = common.State("lending: no outstanding debt")
	// ErrSelfLiquidation rejects borrowers liquidating themselves.
	ErrSelfLiquidation = common.Validation("lending: self liquidation")
	// ErrAccountHealthy rejects liquidation of accounts above the threshold.
	ErrAccountHealthy = common.State("lending: account not eligible for liquidation")
	// ErrRepayExceedsDebt rejects liquidation repayments above the debt.
	ErrRepayExceedsDebt = common.Validation("lending: repay exceeds outstanding debt")
	// ErrInsufficientCollateral rejects seizures exceeding the borrower's
	// collateral balance.
	ErrInsufficientCollateral = common.State("lending: insufficient collateral")
)
