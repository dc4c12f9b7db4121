package staking

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"defiledger/core/events"
	"defiledger/core/types"
	"defiledger/native/bank"
	"defiledger/native/common"
	"defiledger/native/fixedmath"
)

const (
	stakeToken  = "NHB"
	rewardToken = "ZNHB"
)

func makeAddress(last byte) types.Address {
	var a types.Address
	a[types.AddressLength-1] = last
	return a
}

type fixture struct {
	engine   *Engine
	ledger   *bank.Ledger
	clock    *fakeClock
	owner    types.Address
	admin    types.Address
	module   types.Address
	treasury types.Address
}

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() time.Time { return time.Unix(c.now, 0).UTC() }

func (c *fakeClock) Advance(seconds int64) { c.now += seconds }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   bank.NewLedger(),
		clock:    &fakeClock{now: 1_700_000_000},
		owner:    makeAddress(0x01),
		admin:    makeAddress(0x02),
		module:   makeAddress(0x10),
		treasury: makeAddress(0x11),
	}
	f.engine = NewEngine(f.ledger, Config{
		StakeToken:     stakeToken,
		RewardToken:    rewardToken,
		ModuleAddress:  f.module,
		RewardTreasury: f.treasury,
	})
	f.engine.SetNowFunc(f.clock.Now)
	roles := common.NewRoles()
	roles.Grant(f.admin, common.RoleAdmin)
	f.engine.SetRoles(roles)
	if err := f.ledger.Mint(stakeToken, f.owner, big.NewInt(10_000)); err != nil {
		t.Fatalf("mint stake token: %v", err)
	}
	if err := f.ledger.Mint(rewardToken, f.treasury, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("mint reward token: %v", err)
	}
	return f
}

func TestDefaultPools(t *testing.T) {
	f := newFixture(t)
	pools := f.engine.Pools()
	if len(pools) != 4 {
		t.Fatalf("expected 4 default pools, got %d", len(pools))
	}
	wantRates := []uint64{800, 1200, 1800, 2500}
	wantLocks := []uint64{0, 2_592_000, 7_776_000, 15_552_000}
	for i, pool := range pools {
		if pool.RateBps != wantRates[i] || pool.LockPeriodSeconds != wantLocks[i] {
			t.Fatalf("pool %d: got rate=%d lock=%d", i, pool.RateBps, pool.LockPeriodSeconds)
		}
		if !pool.Active {
			t.Fatalf("pool %d should be active", i)
		}
	}
}

func TestCreatePoolValidation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.CreatePool(f.owner, 0, 500); !errors.Is(err, common.ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if _, err := f.engine.CreatePool(f.admin, 0, 10_001); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected invalid rate, got %v", err)
	}
	id, err := f.engine.CreatePool(f.admin, 60, 10_000)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if id != 4 {
		t.Fatalf("expected sequential id 4, got %d", id)
	}
}

func TestStakeValidation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Stake(f.owner, 99, big.NewInt(100)); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected pool not found, got %v", err)
	}
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := f.engine.TogglePool(f.admin, 0); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(100)); !errors.Is(err, ErrPoolInactive) {
		t.Fatalf("expected pool inactive, got %v", err)
	}
}

func TestStakeMovesPrincipalIn(t *testing.T) {
	f := newFixture(t)
	stakeID, err := f.engine.Stake(f.owner, 0, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	if stakeID != 0 {
		t.Fatalf("expected first stake id 0, got %d", stakeID)
	}
	if got := f.ledger.BalanceOf(stakeToken, f.owner); got.Cmp(big.NewInt(9_000)) != 0 {
		t.Fatalf("unexpected owner balance: %s", got)
	}
	if got := f.ledger.BalanceOf(stakeToken, f.module); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected module balance: %s", got)
	}
	pool, err := f.engine.PoolByID(0)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool.TotalStaked.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected pool total: %s", pool.TotalStaked)
	}
}

func TestStakeFailedTransferLeavesNoState(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Stake(f.owner, 0, big.NewInt(100_000))
	if !errors.Is(err, bank.ErrTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	if len(f.engine.Positions(f.owner)) != 0 {
		t.Fatalf("failed stake must not create a position")
	}
	pool, _ := f.engine.PoolByID(0)
	if pool.TotalStaked.Sign() != 0 {
		t.Fatalf("failed stake must not move pool total: %s", pool.TotalStaked)
	}
}

func TestRewardAccruesLinearly(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(1_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	reward, err := f.engine.CalculateReward(f.owner, 0)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if reward.Sign() != 0 {
		t.Fatalf("expected zero reward immediately, got %s", reward)
	}

	f.clock.Advance(fixedmath.SecondsPerYear)
	reward, err = f.engine.CalculateReward(f.owner, 0)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// 1000 at 8% over exactly one year.
	if reward.Cmp(big.NewInt(80)) != 0 {
		t.Fatalf("expected 80 after one year, got %s", reward)
	}

	f.clock.Advance(fixedmath.SecondsPerYear)
	reward, err = f.engine.CalculateReward(f.owner, 0)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if reward.Cmp(big.NewInt(160)) != 0 {
		t.Fatalf("expected linear accrual to 160, got %s", reward)
	}
}

func TestCalculateRewardIsTotal(t *testing.T) {
	f := newFixture(t)
	reward, err := f.engine.CalculateReward(makeAddress(0x99), 7)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if reward.Sign() != 0 {
		t.Fatalf("unknown stake must yield zero, got %s", reward)
	}
}

func TestClaimRewards(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(1_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.clock.Advance(fixedmath.SecondsPerYear)
	reward, err := f.engine.ClaimRewards(f.owner, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if reward.Cmp(big.NewInt(80)) != 0 {
		t.Fatalf("expected 80, got %s", reward)
	}
	if got := f.ledger.BalanceOf(rewardToken, f.owner); got.Cmp(big.NewInt(80)) != 0 {
		t.Fatalf("reward not paid: %s", got)
	}

	// Immediately claiming again accrues nothing.
	if _, err := f.engine.ClaimRewards(f.owner, 0); !errors.Is(err, ErrNoReward) {
		t.Fatalf("expected no reward on immediate re-claim, got %v", err)
	}
}

func TestUnstakeRoundTrip(t *testing.T) {
	f := newFixture(t)
	before := f.ledger.BalanceOf(stakeToken, f.owner)
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(1_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	principal, reward, err := f.engine.Unstake(f.owner, 0)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if principal.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected exact principal back, got %s", principal)
	}
	if reward.Sign() != 0 {
		t.Fatalf("no time elapsed means zero reward, got %s", reward)
	}
	if got := f.ledger.BalanceOf(stakeToken, f.owner); got.Cmp(before) != 0 {
		t.Fatalf("round trip must restore balance: %s vs %s", got, before)
	}
	positions := f.engine.Positions(f.owner)
	if len(positions) != 1 || positions[0].Amount.Sign() != 0 {
		t.Fatalf("position must remain with zero amount")
	}
}

func TestUnstakeLockBoundaryInclusive(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Stake(f.owner, 1, big.NewInt(500)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	lock := int64(2_592_000)
	f.clock.Advance(lock - 1)
	if _, _, err := f.engine.Unstake(f.owner, 0); !errors.Is(err, ErrStillLocked) {
		t.Fatalf("expected still locked one second early, got %v", err)
	}
	f.clock.Advance(1)
	if _, _, err := f.engine.Unstake(f.owner, 0); err != nil {
		t.Fatalf("unstake exactly at boundary must succeed: %v", err)
	}
}

func TestUnstakePaysRewardThenPrincipal(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(1_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.clock.Advance(fixedmath.SecondsPerYear)
	principal, reward, err := f.engine.Unstake(f.owner, 0)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if principal.Cmp(big.NewInt(1_000)) != 0 || reward.Cmp(big.NewInt(80)) != 0 {
		t.Fatalf("unexpected payout: principal=%s reward=%s", principal, reward)
	}
	if got := f.ledger.BalanceOf(rewardToken, f.owner); got.Cmp(big.NewInt(80)) != 0 {
		t.Fatalf("reward not paid: %s", got)
	}
	if _, _, err := f.engine.Unstake(f.owner, 0); !errors.Is(err, ErrEmptyStake) {
		t.Fatalf("expected empty stake on re-unstake, got %v", err)
	}
}

func TestUnstakeBlockedByFailedRewardTransfer(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(1_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.clock.Advance(fixedmath.SecondsPerYear)
	// Drain the reward treasury so the reward leg fails.
	drained := f.ledger.BalanceOf(rewardToken, f.treasury)
	if err := f.ledger.Transfer(rewardToken, f.treasury, makeAddress(0x77), drained); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if _, _, err := f.engine.Unstake(f.owner, 0); !errors.Is(err, common.ErrTransfer) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	positions := f.engine.Positions(f.owner)
	if positions[0].Amount.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("failed unstake must leave position open")
	}
	pool, _ := f.engine.PoolByID(0)
	if pool.TotalStaked.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("failed unstake must leave pool total: %s", pool.TotalStaked)
	}
}

// failingLedger rejects transfers of one token out of one address once armed,
// so a specific transfer leg can be made to fail mid-operation.
type failingLedger struct {
	inner     *bank.Ledger
	armed     bool
	failToken string
	failFrom  types.Address
}

func (l *failingLedger) Transfer(token string, from, to types.Address, amount *big.Int) error {
	if l.armed && token == l.failToken && from == l.failFrom {
		return errors.New("ledger unavailable")
	}
	return l.inner.Transfer(token, from, to, amount)
}

func (l *failingLedger) BalanceOf(token string, holder types.Address) *big.Int {
	return l.inner.BalanceOf(token, holder)
}

func TestUnstakeFailedPrincipalSettlesReward(t *testing.T) {
	inner := bank.NewLedger()
	owner := makeAddress(0x01)
	module := makeAddress(0x10)
	treasury := makeAddress(0x11)
	if err := inner.Mint(stakeToken, owner, big.NewInt(10_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := inner.Mint(rewardToken, treasury, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	clock := &fakeClock{now: 1_700_000_000}
	ledger := &failingLedger{inner: inner, failToken: stakeToken, failFrom: module}
	engine := NewEngine(ledger, Config{
		StakeToken:     stakeToken,
		RewardToken:    rewardToken,
		ModuleAddress:  module,
		RewardTreasury: treasury,
	})
	engine.SetNowFunc(clock.Now)

	if _, err := engine.Stake(owner, 0, big.NewInt(1_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	clock.Advance(fixedmath.SecondsPerYear)

	ledger.armed = true
	if _, _, err := engine.Unstake(owner, 0); !errors.Is(err, common.ErrTransfer) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	// The reward was paid and the claim anchor advanced with it, so the same
	// reward is not claimable a second time.
	if got := inner.BalanceOf(rewardToken, owner); got.Cmp(big.NewInt(80)) != 0 {
		t.Fatalf("reward not paid before principal leg: %s", got)
	}
	if _, err := engine.ClaimRewards(owner, 0); !errors.Is(err, ErrNoReward) {
		t.Fatalf("expected no reward after settled payout, got %v", err)
	}
	// The principal stays staked and withdrawable once the ledger recovers.
	ledger.armed = false
	principal, reward, err := engine.Unstake(owner, 0)
	if err != nil {
		t.Fatalf("unstake after recovery: %v", err)
	}
	if principal.Cmp(big.NewInt(1_000)) != 0 || reward.Sign() != 0 {
		t.Fatalf("unexpected payout: principal=%s reward=%s", principal, reward)
	}
}

func TestTotalPendingRewards(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(1_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := f.engine.Stake(f.owner, 1, big.NewInt(1_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.clock.Advance(fixedmath.SecondsPerYear)
	total, err := f.engine.TotalPendingRewards(f.owner)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	// 8% + 12% on 1000 each.
	if total.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected 200, got %s", total)
	}
}

func TestTogglePoolKeepsExistingPositionsWithdrawable(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := f.engine.TogglePool(f.admin, 0); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, _, err := f.engine.Unstake(f.owner, 0); err != nil {
		t.Fatalf("existing position must unstake from inactive pool: %v", err)
	}
}

func TestFreshIndexAfterClose(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, _, err := f.engine.Unstake(f.owner, 0); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	stakeID, err := f.engine.Stake(f.owner, 0, big.NewInt(100))
	if err != nil {
		t.Fatalf("restake: %v", err)
	}
	if stakeID != 1 {
		t.Fatalf("closed slot must not be reused, got id %d", stakeID)
	}
}

func TestPauseBlocksMutations(t *testing.T) {
	f := newFixture(t)
	pauses := common.NewPauses(moduleName)
	f.engine.SetPauses(pauses)
	pauses.SetPaused(moduleName, true)
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(100)); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected pause rejection, got %v", err)
	}
	pauses.SetPaused(moduleName, false)
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(100)); err != nil {
		t.Fatalf("unpaused stake: %v", err)
	}
}

func TestEventsEmitted(t *testing.T) {
	f := newFixture(t)
	recorder := &events.Recorder{}
	f.engine.SetEmitter(recorder)
	if _, err := f.engine.Stake(f.owner, 0, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, _, err := f.engine.Unstake(f.owner, 0); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	recorded := recorder.Events()
	if len(recorded) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recorded))
	}
	if recorded[0].Type != events.TypeStakingStaked || recorded[1].Type != events.TypeStakingUnstaked {
		t.Fatalf("unexpected event types: %s, %s", recorded[0].Type, recorded[1].Type)
	}
	if recorded[1].Attributes["principal"] != "100" {
		t.Fatalf("unexpected principal attribute: %s", recorded[1].Attributes["principal"])
	}
}

func TestExportRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Stake(f.owner, 1, big.NewInt(750)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	state := f.engine.Export()

	restored := NewEngine(f.ledger, Config{
		StakeToken:     stakeToken,
		RewardToken:    rewardToken,
		ModuleAddress:  f.module,
		RewardTreasury: f.treasury,
	})
	restored.SetNowFunc(f.clock.Now)
	if err := restored.Restore(state); err != nil {
		t.Fatalf("restore: %v", err)
	}
	positions := restored.Positions(f.owner)
	if len(positions) != 1 || positions[0].Amount.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("restored positions mismatch")
	}
	pool, err := restored.PoolByID(1)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool.TotalStaked.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("restored pool total mismatch: %s", pool.TotalStaked)
	}
}

// reentrantLedger calls back into the engine from inside a transfer, modelling
// a malicious asset contract.
type reentrantLedger struct {
	inner  *bank.Ledger
	engine *Engine
	owner  types.Address
	errs   []error
}

func (l *reentrantLedger) Transfer(token string, from, to types.Address, amount *big.Int) error {
	if l.engine != nil {
		_, err := l.engine.Stake(l.owner, 0, big.NewInt(1))
		l.errs = append(l.errs, err)
	}
	return l.inner.Transfer(token, from, to, amount)
}

func (l *reentrantLedger) BalanceOf(token string, holder types.Address) *big.Int {
	return l.inner.BalanceOf(token, holder)
}

func TestReentrantTransferRejected(t *testing.T) {
	inner := bank.NewLedger()
	owner := makeAddress(0x01)
	module := makeAddress(0x10)
	treasury := makeAddress(0x11)
	if err := inner.Mint(stakeToken, owner, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	ledger := &reentrantLedger{inner: inner, owner: owner}
	engine := NewEngine(ledger, Config{
		StakeToken:     stakeToken,
		RewardToken:    rewardToken,
		ModuleAddress:  module,
		RewardTreasury: treasury,
	})
	ledger.engine = engine

	if _, err := engine.Stake(owner, 0, big.NewInt(100)); err != nil {
		t.Fatalf("outer stake must succeed: %v", err)
	}
	if len(ledger.errs) != 1 || !errors.Is(ledger.errs[0], common.ErrReentrantCall) {
		t.Fatalf("expected reentrant rejection, got %v", ledger.errs)
	}
	// Only the outer stake may have committed.
	if got := len(engine.Positions(owner)); got != 1 {
		t.Fatalf("expected a single position, got %d", got)
	}
}
