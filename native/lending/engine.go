package lending

import (
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"

	"defiledger/core/events"
	"defiledger/core/types"
	"defiledger/native/bank"
	"defiledger/native/common"
	"defiledger/native/fixedmath"
	"defiledger/observability/metrics"
)

const moduleName = "lending"

// maxBorrowRateBps caps the annual borrow rate accepted at listing time.
const maxBorrowRateBps = 5_000

// Engine orchestrates the lending state transitions: market listing,
// collateral deposits, borrowing against risk-adjusted collateral value and
// liquidation of unhealthy accounts. Mutations follow a speculate-then-commit
// discipline: all validation and aggregate recomputation happens against a
// cloned account, external transfers run next, and state is committed only
// when everything succeeded, so any failure leaves the engine untouched.
type Engine struct {
	mu    sync.RWMutex
	guard common.CallGuard

	ledger  bank.AssetLedger
	oracle  PriceOracle
	roles   common.RoleStore
	pauses  common.PauseView
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.EngineMetrics

	moduleAddr types.Address
	params     RiskParameters

	markets    map[string]*Market
	marketList []string
	accounts   map[types.Address]*Account
}

// NewEngine constructs a lending engine holding custody at moduleAddr. Zero
// risk parameters fall back to the protocol defaults.
func NewEngine(ledger bank.AssetLedger, moduleAddr types.Address, params RiskParameters) *Engine {
	defaults := DefaultRiskParameters()
	if params.LiquidationThresholdBps == 0 {
		params.LiquidationThresholdBps = defaults.LiquidationThresholdBps
	}
	if params.LiquidationBonusBps == 0 {
		params.LiquidationBonusBps = defaults.LiquidationBonusBps
	}
	return &Engine{
		ledger:     ledger,
		moduleAddr: moduleAddr,
		params:     params,
		emitter:    events.NoopEmitter{},
		markets:    make(map[string]*Market),
		accounts:   make(map[types.Address]*Account),
	}
}

// SetOracle wires the price feed. A nil oracle keeps the 1:1 valuation
// fallback for every asset.
func (e *Engine) SetOracle(oracle PriceOracle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.oracle = oracle
}

// SetRoles wires the role membership store consulted by admin operations.
func (e *Engine) SetRoles(store common.RoleStore) { e.roles = store }

// SetPauses wires the governance pause switches.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger configures structured logging for the engine.
func (e *Engine) SetLogger(logger *slog.Logger) { e.logger = logger }

// SetMetrics wires the prometheus collectors.
func (e *Engine) SetMetrics(m *metrics.EngineMetrics) { e.metrics = m }

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

func (e *Engine) finish(op string, err error) error {
	if err != nil {
		e.metrics.ObserveRejection(moduleName, op, common.KindOf(err).String())
		return err
	}
	e.metrics.ObserveOperation(moduleName, op)
	return nil
}

func (e *Engine) transfer(token string, from, to types.Address, amount *big.Int) error {
	e.guard.Arm()
	defer e.guard.Disarm()
	if err := e.ledger.Transfer(token, from, to, amount); err != nil {
		if common.KindOf(err) == common.KindTransfer {
			return err
		}
		return fmt.Errorf("%w: %v", bank.ErrTransferFailed, err)
	}
	return nil
}

// ListMarket registers a new market for token. Admin only.
func (e *Engine) ListMarket(caller types.Address, token string, collateralFactorBps, borrowRateBps, supplyRateBps uint64) error {
	const op = "listMarket"
	if err := e.guard.Enter(); err != nil {
		return e.finish(op, err)
	}
	if err := common.RequireRole(e.roles, caller, common.RoleAdmin); err != nil {
		return e.finish(op, err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return e.finish(op, common.Validation("lending: token symbol required"))
	}
	if collateralFactorBps > fixedmath.MaxBps {
		return e.finish(op, ErrInvalidCollateralFactor)
	}
	if borrowRateBps > maxBorrowRateBps {
		return e.finish(op, ErrRateTooHigh)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.markets[token]; exists {
		return e.finish(op, ErrMarketExists)
	}
	e.markets[token] = &Market{
		Token:               token,
		CollateralFactorBps: collateralFactorBps,
		BorrowRateBps:       borrowRateBps,
		SupplyRateBps:       supplyRateBps,
		TotalDeposits:       big.NewInt(0),
		TotalBorrows:        big.NewInt(0),
		Active:              true,
	}
	e.marketList = append(e.marketList, token)
	e.emitter.Emit(events.MarketListed{Token: token, CollateralFactorBps: collateralFactorBps, BorrowRateBps: borrowRateBps, SupplyRateBps: supplyRateBps})
	e.log().Info("market listed", "token", token, "collateralFactorBps", collateralFactorBps, "borrowRateBps", borrowRateBps)
	return e.finish(op, nil)
}

// ToggleMarket flips a market's active flag. Deactivation blocks new deposits
// and borrows only.
func (e *Engine) ToggleMarket(caller types.Address, token string) (bool, error) {
	const op = "toggleMarket"
	if err := e.guard.Enter(); err != nil {
		return false, e.finish(op, err)
	}
	if err := common.RequireRole(e.roles, caller, common.RoleAdmin); err != nil {
		return false, e.finish(op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	market, ok := e.markets[token]
	if !ok {
		return false, e.finish(op, ErrMarketNotFound)
	}
	market.Active = !market.Active
	e.emitter.Emit(events.MarketToggled{Token: token, Active: market.Active})
	return market.Active, e.finish(op, nil)
}

// Deposit pulls amount of token from the caller into the market. Deposits can
// only improve health, so no health check runs.
func (e *Engine) Deposit(caller types.Address, token string, amount *big.Int) error {
	const op = "deposit"
	if err := e.guard.Enter(); err != nil {
		return e.finish(op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return e.finish(op, err)
	}
	market, ok := e.markets[token]
	if !ok {
		return e.finish(op, ErrMarketNotFound)
	}
	if !market.Active {
		return e.finish(op, ErrMarketInactive)
	}
	if !fixedmath.IsPositive(amount) {
		return e.finish(op, ErrInvalidAmount)
	}
	if err := fixedmath.CheckRange(amount); err != nil {
		return e.finish(op, err)
	}

	account := e.ensureAccount(caller).clone()
	addTo(account.Deposits, token, amount)
	if err := e.refreshAggregates(account); err != nil {
		return e.finish(op, err)
	}

	if err := e.transfer(token, caller, e.moduleAddr, amount); err != nil {
		return e.finish(op, err)
	}

	e.accounts[caller] = account
	market.TotalDeposits = new(big.Int).Add(market.TotalDeposits, amount)
	e.publishMarketGauges(market)
	e.emitter.Emit(events.Deposited{Owner: caller, Token: token, Amount: amount})
	e.log().Info("deposit", "owner", caller.String(), "token", token, "amount", amount.String())
	return e.finish(op, nil)
}

// Withdraw returns deposited tokens to the caller provided the account stays
// healthy afterwards. The decrement is speculative: an unhealthy result or a
// failed payout leaves the stored account untouched.
func (e *Engine) Withdraw(caller types.Address, token string, amount *big.Int) error {
	const op = "withdraw"
	if err := e.guard.Enter(); err != nil {
		return e.finish(op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return e.finish(op, err)
	}
	market, ok := e.markets[token]
	if !ok {
		return e.finish(op, ErrMarketNotFound)
	}
	if !fixedmath.IsPositive(amount) {
		return e.finish(op, ErrInvalidAmount)
	}
	stored := e.ensureAccount(caller)
	if balanceIn(stored.Deposits, token).Cmp(amount) < 0 {
		return e.finish(op, ErrInsufficientDeposit)
	}

	account := stored.clone()
	subFrom(account.Deposits, token, amount)
	if err := e.refreshAggregates(account); err != nil {
		return e.finish(op, err)
	}
	if !e.healthy(account.TotalCollateralValue, account.TotalBorrowValue) {
		return e.finish(op, ErrUnhealthy)
	}

	if err := e.transfer(token, e.moduleAddr, caller, amount); err != nil {
		return e.finish(op, err)
	}

	e.accounts[caller] = account
	market.TotalDeposits = new(big.Int).Sub(market.TotalDeposits, amount)
	e.publishMarketGauges(market)
	e.emitter.Emit(events.Withdrawn{Owner: caller, Token: token, Amount: amount})
	e.log().Info("withdraw", "owner", caller.String(), "token", token, "amount", amount.String())
	return e.finish(op, nil)
}

// Borrow pays out amount of token against the caller's collateral. Liquidity
// accounting treats deposits as owed and existing borrows as already lent:
// available = balanceHeld - totalDeposits + totalBorrows.
func (e *Engine) Borrow(caller types.Address, token string, amount *big.Int) error {
	const op = "borrow"
	if err := e.guard.Enter(); err != nil {
		return e.finish(op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return e.finish(op, err)
	}
	market, ok := e.markets[token]
	if !ok {
		return e.finish(op, ErrMarketNotFound)
	}
	if !market.Active {
		return e.finish(op, ErrMarketInactive)
	}
	if !fixedmath.IsPositive(amount) {
		return e.finish(op, ErrInvalidAmount)
	}
	if err := fixedmath.CheckRange(amount); err != nil {
		return e.finish(op, err)
	}

	held := e.ledger.BalanceOf(token, e.moduleAddr)
	available := new(big.Int).Sub(held, market.TotalDeposits)
	available.Add(available, market.TotalBorrows)
	if available.Cmp(amount) < 0 {
		return e.finish(op, ErrInsufficientLiquidity)
	}

	account := e.ensureAccount(caller).clone()
	addTo(account.Borrows, token, amount)
	if err := e.refreshAggregates(account); err != nil {
		return e.finish(op, err)
	}
	if !e.healthy(account.TotalCollateralValue, account.TotalBorrowValue) {
		return e.finish(op, ErrUnhealthy)
	}

	if err := e.transfer(token, e.moduleAddr, caller, amount); err != nil {
		return e.finish(op, err)
	}

	e.accounts[caller] = account
	market.TotalBorrows = new(big.Int).Add(market.TotalBorrows, amount)
	e.publishMarketGauges(market)
	e.emitter.Emit(events.Borrowed{Owner: caller, Token: token, Amount: amount})
	e.log().Info("borrow", "owner", caller.String(), "token", token, "amount", amount.String())
	return e.finish(op, nil)
}

// Repay pulls in at most the outstanding debt; paying above the debt never
// fails, the excess is simply not pulled. The amount actually repaid is
// returned.
func (e *Engine) Repay(caller types.Address, token string, amount *big.Int) (*big.Int, error) {
	const op = "repay"
	if err := e.guard.Enter(); err != nil {
		return nil, e.finish(op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, e.finish(op, err)
	}
	market, ok := e.markets[token]
	if !ok {
		return nil, e.finish(op, ErrMarketNotFound)
	}
	if !fixedmath.IsPositive(amount) {
		return nil, e.finish(op, ErrInvalidAmount)
	}

	stored := e.ensureAccount(caller)
	debt := balanceIn(stored.Borrows, token)
	repay := fixedmath.Clone(amount)
	if repay.Cmp(debt) > 0 {
		repay = fixedmath.Clone(debt)
	}
	if repay.Sign() == 0 {
		return nil, e.finish(op, ErrNoDebt)
	}

	account := stored.clone()
	subFrom(account.Borrows, token, repay)
	if err := e.refreshAggregates(account); err != nil {
		return nil, e.finish(op, err)
	}

	if err := e.transfer(token, caller, e.moduleAddr, repay); err != nil {
		return nil, e.finish(op, err)
	}

	e.accounts[caller] = account
	market.TotalBorrows = new(big.Int).Sub(market.TotalBorrows, repay)
	e.publishMarketGauges(market)
	e.emitter.Emit(events.Repaid{Owner: caller, Token: token, Amount: repay})
	e.log().Info("repay", "owner", caller.String(), "token", token, "amount", repay.String())
	return repay, e.finish(op, nil)
}

// Liquidate lets a third party repay part of an unhealthy borrower's debt in
// exchange for collateral plus the liquidation bonus. Liquidation may be
// partial and may leave the account below the threshold; it is the single
// operation permitted to run against an unhealthy account.
func (e *Engine) Liquidate(liquidator, borrower types.Address, borrowToken, collateralToken string, repayAmount *big.Int) (*big.Int, *big.Int, error) {
	const op = "liquidate"
	if err := e.guard.Enter(); err != nil {
		return nil, nil, e.finish(op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, e.finish(op, err)
	}
	if liquidator == borrower {
		return nil, nil, e.finish(op, ErrSelfLiquidation)
	}
	borrowMarket, ok := e.markets[borrowToken]
	if !ok {
		return nil, nil, e.finish(op, ErrMarketNotFound)
	}
	collateralMarket, ok := e.markets[collateralToken]
	if !ok {
		return nil, nil, e.finish(op, ErrMarketNotFound)
	}
	if !fixedmath.IsPositive(repayAmount) {
		return nil, nil, e.finish(op, ErrInvalidAmount)
	}

	stored := e.ensureAccount(borrower)
	collateralValue, borrowValue, err := e.accountValues(stored)
	if err != nil {
		return nil, nil, e.finish(op, err)
	}
	if e.healthy(collateralValue, borrowValue) {
		return nil, nil, e.finish(op, ErrAccountHealthy)
	}
	debt := balanceIn(stored.Borrows, borrowToken)
	if repayAmount.Cmp(debt) > 0 {
		return nil, nil, e.finish(op, ErrRepayExceedsDebt)
	}

	repayValue, err := e.tokenValue(borrowToken, repayAmount)
	if err != nil {
		return nil, nil, e.finish(op, err)
	}
	seizeValue, err := fixedmath.MulBps(repayValue, fixedmath.MaxBps+e.params.LiquidationBonusBps)
	if err != nil {
		return nil, nil, e.finish(op, err)
	}
	seizeAmount, err := e.tokenAmount(collateralToken, seizeValue)
	if err != nil {
		return nil, nil, e.finish(op, err)
	}
	if seizeAmount.Cmp(balanceIn(stored.Deposits, collateralToken)) > 0 {
		return nil, nil, e.finish(op, ErrInsufficientCollateral)
	}

	account := stored.clone()
	subFrom(account.Borrows, borrowToken, repayAmount)
	subFrom(account.Deposits, collateralToken, seizeAmount)
	if err := e.refreshAggregates(account); err != nil {
		return nil, nil, e.finish(op, err)
	}

	if err := e.transfer(borrowToken, liquidator, e.moduleAddr, repayAmount); err != nil {
		return nil, nil, e.finish(op, err)
	}
	if err := e.transfer(collateralToken, e.moduleAddr, liquidator, seizeAmount); err != nil {
		return nil, nil, e.finish(op, err)
	}

	e.accounts[borrower] = account
	borrowMarket.TotalBorrows = new(big.Int).Sub(borrowMarket.TotalBorrows, repayAmount)
	collateralMarket.TotalDeposits = new(big.Int).Sub(collateralMarket.TotalDeposits, seizeAmount)
	e.publishMarketGauges(borrowMarket)
	e.publishMarketGauges(collateralMarket)
	e.emitter.Emit(events.Liquidated{
		Liquidator:      liquidator,
		Borrower:        borrower,
		BorrowToken:     borrowToken,
		CollateralToken: collateralToken,
		Repaid:          repayAmount,
		Seized:          seizeAmount,
	})
	e.log().Info("liquidation", "liquidator", liquidator.String(), "borrower", borrower.String(),
		"repaid", repayAmount.String(), "seized", seizeAmount.String())
	return fixedmath.Clone(repayAmount), seizeAmount, e.finish(op, nil)
}

// Markets returns every market snapshot in listing order.
func (e *Engine) Markets() []MarketInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]MarketInfo, 0, len(e.marketList))
	for _, token := range e.marketList {
		out = append(out, e.marketInfo(e.markets[token]))
	}
	return out
}

// MarketByToken returns a single market snapshot.
func (e *Engine) MarketByToken(token string) (MarketInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	market, ok := e.markets[token]
	if !ok {
		return MarketInfo{}, ErrMarketNotFound
	}
	return e.marketInfo(market), nil
}

func (e *Engine) marketInfo(market *Market) MarketInfo {
	return MarketInfo{
		Token:               market.Token,
		CollateralFactorBps: market.CollateralFactorBps,
		BorrowRateBps:       market.BorrowRateBps,
		SupplyRateBps:       market.SupplyRateBps,
		TotalDeposits:       fixedmath.Clone(market.TotalDeposits),
		TotalBorrows:        fixedmath.Clone(market.TotalBorrows),
		Active:              market.Active,
	}
}

// AccountInfo returns the owner's balances and freshly computed aggregates.
// Unknown owners read as an empty, maximally healthy account.
func (e *Engine) AccountInfo(owner types.Address) (AccountInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	account, ok := e.accounts[owner]
	if !ok {
		account = newAccount(owner)
	}
	collateralValue, borrowValue, err := e.accountValues(account)
	if err != nil {
		return AccountInfo{}, err
	}
	info := AccountInfo{
		Owner:                owner,
		Deposits:             cloneBalances(account.Deposits),
		Borrows:              cloneBalances(account.Borrows),
		TotalCollateralValue: collateralValue,
		TotalBorrowValue:     borrowValue,
	}
	if borrowValue.Sign() > 0 {
		hf, err := fixedmath.MulDiv(collateralValue, fixedmath.ValueScale, borrowValue)
		if err != nil {
			return AccountInfo{}, err
		}
		info.HealthFactor = hf
	}
	return info, nil
}

// HealthFactor returns collateralValue*1e18/borrowValue and true, or nil and
// false when the account carries no debt (maximal health).
func (e *Engine) HealthFactor(owner types.Address) (*big.Int, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	account, ok := e.accounts[owner]
	if !ok {
		return nil, false, nil
	}
	collateralValue, borrowValue, err := e.accountValues(account)
	if err != nil {
		return nil, false, err
	}
	if borrowValue.Sign() == 0 {
		return nil, false, nil
	}
	hf, err := fixedmath.MulDiv(collateralValue, fixedmath.ValueScale, borrowValue)
	if err != nil {
		return nil, false, err
	}
	return hf, true, nil
}

// Export deep-copies the engine state for persistence. Markets keep listing
// order; accounts sort by address and balances by token so exports are
// deterministic. Zero balances are dropped.
func (e *Engine) Export() *State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	state := &State{}
	for _, token := range e.marketList {
		market := e.markets[token]
		state.Markets = append(state.Markets, Market{
			Token:               market.Token,
			CollateralFactorBps: market.CollateralFactorBps,
			BorrowRateBps:       market.BorrowRateBps,
			SupplyRateBps:       market.SupplyRateBps,
			TotalDeposits:       fixedmath.Clone(market.TotalDeposits),
			TotalBorrows:        fixedmath.Clone(market.TotalBorrows),
			Active:              market.Active,
		})
	}
	owners := make([]types.Address, 0, len(e.accounts))
	for owner := range e.accounts {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool {
		return string(owners[i].Bytes()) < string(owners[j].Bytes())
	})
	for _, owner := range owners {
		account := e.accounts[owner]
		record := AccountRecord{
			Owner:    owner,
			Deposits: exportBalances(account.Deposits),
			Borrows:  exportBalances(account.Borrows),
		}
		if len(record.Deposits) == 0 && len(record.Borrows) == 0 {
			continue
		}
		state.Accounts = append(state.Accounts, record)
	}
	return state
}

// Restore replaces the engine state with a previously exported snapshot and
// recomputes every account's aggregates.
func (e *Engine) Restore(state *State) error {
	if state == nil {
		return common.Validation("lending: nil state")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	markets := make(map[string]*Market, len(state.Markets))
	var marketList []string
	for _, market := range state.Markets {
		token := strings.TrimSpace(market.Token)
		if token == "" {
			return common.Validation("lending: market token required")
		}
		if _, exists := markets[token]; exists {
			return ErrMarketExists
		}
		if market.CollateralFactorBps > fixedmath.MaxBps {
			return ErrInvalidCollateralFactor
		}
		if market.BorrowRateBps > maxBorrowRateBps {
			return ErrRateTooHigh
		}
		markets[token] = &Market{
			Token:               token,
			CollateralFactorBps: market.CollateralFactorBps,
			BorrowRateBps:       market.BorrowRateBps,
			SupplyRateBps:       market.SupplyRateBps,
			TotalDeposits:       fixedmath.Clone(market.TotalDeposits),
			TotalBorrows:        fixedmath.Clone(market.TotalBorrows),
			Active:              market.Active,
		}
		marketList = append(marketList, token)
	}
	accounts := make(map[types.Address]*Account, len(state.Accounts))
	for _, record := range state.Accounts {
		account := newAccount(record.Owner)
		for _, balance := range record.Deposits {
			if _, ok := markets[balance.Token]; !ok {
				return ErrMarketNotFound
			}
			addTo(account.Deposits, balance.Token, fixedmath.Clone(balance.Amount))
		}
		for _, balance := range record.Borrows {
			if _, ok := markets[balance.Token]; !ok {
				return ErrMarketNotFound
			}
			addTo(account.Borrows, balance.Token, fixedmath.Clone(balance.Amount))
		}
		accounts[record.Owner] = account
	}
	e.markets = markets
	e.marketList = marketList
	e.accounts = accounts
	for _, account := range e.accounts {
		if err := e.refreshAggregates(account); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) ensureAccount(owner types.Address) *Account {
	account, ok := e.accounts[owner]
	if !ok {
		account = newAccount(owner)
		e.accounts[owner] = account
	}
	return account
}

func newAccount(owner types.Address) *Account {
	return &Account{
		Owner:                owner,
		Deposits:             make(map[string]*big.Int),
		Borrows:              make(map[string]*big.Int),
		TotalCollateralValue: big.NewInt(0),
		TotalBorrowValue:     big.NewInt(0),
	}
}

func (a *Account) clone() *Account {
	return &Account{
		Owner:                a.Owner,
		Deposits:             cloneBalances(a.Deposits),
		Borrows:              cloneBalances(a.Borrows),
		TotalCollateralValue: fixedmath.Clone(a.TotalCollateralValue),
		TotalBorrowValue:     fixedmath.Clone(a.TotalBorrowValue),
	}
}

func cloneBalances(src map[string]*big.Int) map[string]*big.Int {
	out := make(map[string]*big.Int, len(src))
	for token, amount := range src {
		out[token] = fixedmath.Clone(amount)
	}
	return out
}

func exportBalances(src map[string]*big.Int) []Balance {
	out := make([]Balance, 0, len(src))
	for token, amount := range src {
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		out = append(out, Balance{Token: token, Amount: fixedmath.Clone(amount)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

func balanceIn(m map[string]*big.Int, token string) *big.Int {
	amount := m[token]
	if amount == nil {
		return big.NewInt(0)
	}
	return amount
}

func addTo(m map[string]*big.Int, token string, delta *big.Int) {
	m[token] = new(big.Int).Add(balanceIn(m, token), delta)
}

func subFrom(m map[string]*big.Int, token string, delta *big.Int) {
	m[token] = new(big.Int).Sub(balanceIn(m, token), delta)
}

// tokenValue converts a native-unit amount into USD units using the oracle
// price (1e18 scaled). Unpriced assets value at one USD unit per token unit.
func (e *Engine) tokenValue(token string, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if e.oracle != nil {
		if price, ok := e.oracle.Price(token); ok {
			return fixedmath.MulDiv(amount, price, fixedmath.ValueScale)
		}
	}
	return fixedmath.Clone(amount), nil
}

// tokenAmount converts a USD value back into native token units.
func (e *Engine) tokenAmount(token string, value *big.Int) (*big.Int, error) {
	if value == nil || value.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if e.oracle != nil {
		if price, ok := e.oracle.Price(token); ok {
			return fixedmath.MulDiv(value, fixedmath.ValueScale, price)
		}
	}
	return fixedmath.Clone(value), nil
}

// accountValues recomputes the USD aggregates from scratch over every listed
// market. The scan is O(markets) per call, a deliberate bound: markets are a
// short admin-controlled list.
func (e *Engine) accountValues(account *Account) (*big.Int, *big.Int, error) {
	collateral := big.NewInt(0)
	borrow := big.NewInt(0)
	for _, token := range e.marketList {
		market := e.markets[token]
		if deposit := balanceIn(account.Deposits, token); deposit.Sign() > 0 {
			value, err := e.tokenValue(token, deposit)
			if err != nil {
				return nil, nil, err
			}
			adjusted, err := fixedmath.MulBps(value, market.CollateralFactorBps)
			if err != nil {
				return nil, nil, err
			}
			collateral.Add(collateral, adjusted)
		}
		if debt := balanceIn(account.Borrows, token); debt.Sign() > 0 {
			value, err := e.tokenValue(token, debt)
			if err != nil {
				return nil, nil, err
			}
			borrow.Add(borrow, value)
		}
	}
	return collateral, borrow, nil
}

func (e *Engine) refreshAggregates(account *Account) error {
	collateral, borrow, err := e.accountValues(account)
	if err != nil {
		return err
	}
	account.TotalCollateralValue = collateral
	account.TotalBorrowValue = borrow
	return nil
}

// healthy reports whether the position clears the liquidation threshold.
// Zero debt is maximally healthy. The comparison cross-multiplies instead of
// dividing, which matches the truncating health factor exactly.
func (e *Engine) healthy(collateralValue, borrowValue *big.Int) bool {
	if borrowValue == nil || borrowValue.Sign() == 0 {
		return true
	}
	if collateralValue == nil || collateralValue.Sign() == 0 {
		return false
	}
	lhs := new(big.Int).Mul(collateralValue, fixedmath.BpsDenominator)
	rhs := new(big.Int).Mul(borrowValue, new(big.Int).SetUint64(e.params.LiquidationThresholdBps))
	return lhs.Cmp(rhs) >= 0
}

func (e *Engine) publishMarketGauges(market *Market) {
	if e.metrics == nil {
		return
	}
	deposits, _ := new(big.Float).SetInt(market.TotalDeposits).Float64()
	borrows, _ := new(big.Float).SetInt(market.TotalBorrows).Float64()
	e.metrics.SetMarketTotal(market.Token, "deposits", deposits)
	e.metrics.SetMarketTotal(market.Token, "borrows", borrows)
}
