package staking

import (
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"defiledger/core/events"
	"defiledger/core/types"
	"defiledger/native/bank"
	"defiledger/native/common"
	"defiledger/native/fixedmath"
	"defiledger/observability/metrics"
)

const moduleName = "staking"

// Default pools created at construction: lock period seconds and annual rate
// basis points.
var defaultPools = []struct {
	lockSeconds uint64
	rateBps     uint64
}{
	{0, 800},
	{30 * 24 * 60 * 60, 1200},
	{90 * 24 * 60 * 60, 1800},
	{180 * 24 * 60 * 60, 2500},
}

// Config wires the engine to its custody addresses and asset denominations.
type Config struct {
	// StakeToken is the asset pulled in on stake and returned on unstake.
	StakeToken string
	// RewardToken is the asset reward payouts are denominated in.
	RewardToken string
	// ModuleAddress holds staked principal.
	ModuleAddress types.Address
	// RewardTreasury funds reward payouts.
	RewardTreasury types.Address
}

// Engine manages pools and per-user stake positions with time-proportional
// reward accrual. Every mutating operation executes atomically end-to-end:
// state is written only after all external transfers succeed, so a failed
// transfer leaves no partial state behind.
type Engine struct {
	mu    sync.RWMutex
	guard common.CallGuard

	ledger  bank.AssetLedger
	cfg     Config
	roles   common.RoleStore
	pauses  common.PauseView
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.EngineMetrics
	nowFn   func() time.Time

	pools     []*Pool
	positions map[types.Address][]*Position
}

// NewEngine constructs a staking engine with the four default pools.
func NewEngine(ledger bank.AssetLedger, cfg Config) *Engine {
	e := &Engine{
		ledger:    ledger,
		cfg:       cfg,
		emitter:   events.NoopEmitter{},
		nowFn:     func() time.Time { return time.Now().UTC() },
		positions: make(map[types.Address][]*Position),
	}
	for _, def := range defaultPools {
		e.pools = append(e.pools, &Pool{
			ID:                uint64(len(e.pools)),
			LockPeriodSeconds: def.lockSeconds,
			RateBps:           def.rateBps,
			TotalStaked:       big.NewInt(0),
			Active:            true,
		})
	}
	return e
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

// SetNowFunc overrides the clock, primarily for tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now != nil {
		e.nowFn = now
	}
}

func (e *Engine) now() uint64 {
	return uint64(e.nowFn().Unix())
}

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

// transfer moves assets through the external ledger with the reentrancy
// guard armed for the duration of the call.
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

// CreatePool appends a new pool. Admin only; existing pool ids are never
// mutated.
func (e *Engine) CreatePool(caller types.Address, lockPeriodSeconds, rateBps uint64) (uint64, error) {
	const op = "createPool"
	if err := e.guard.Enter(); err != nil {
		return 0, e.finish(op, err)
	}
	if err := common.RequireRole(e.roles, caller, common.RoleAdmin); err != nil {
		return 0, e.finish(op, err)
	}
	if rateBps > fixedmath.MaxBps {
		return 0, e.finish(op, ErrInvalidRate)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool := &Pool{
		ID:                uint64(len(e.pools)),
		LockPeriodSeconds: lockPeriodSeconds,
		RateBps:           rateBps,
		TotalStaked:       big.NewInt(0),
		Active:            true,
	}
	e.pools = append(e.pools, pool)
	e.emitter.Emit(events.PoolCreated{PoolID: pool.ID, LockPeriod: lockPeriodSeconds, RateBps: rateBps})
	e.log().Info("staking pool created", "poolId", pool.ID, "lockPeriod", lockPeriodSeconds, "rateBps", rateBps)
	return pool.ID, e.finish(op, nil)
}

// TogglePool flips a pool's active flag. Deactivation only blocks new stakes;
// existing positions may still unstake and claim.
func (e *Engine) TogglePool(caller types.Address, poolID uint64) (bool, error) {
	const op = "togglePool"
	if err := e.guard.Enter(); err != nil {
		return false, e.finish(op, err)
	}
	if err := common.RequireRole(e.roles, caller, common.RoleAdmin); err != nil {
		return false, e.finish(op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if poolID >= uint64(len(e.pools)) {
		return false, e.finish(op, ErrPoolNotFound)
	}
	pool := e.pools[poolID]
	pool.Active = !pool.Active
	e.emitter.Emit(events.PoolToggled{PoolID: poolID, Active: pool.Active})
	return pool.Active, e.finish(op, nil)
}

// Stake pulls amount of the stake token from the caller and opens a new
// position against the pool. The position index is returned.
func (e *Engine) Stake(caller types.Address, poolID uint64, amount *big.Int) (uint64, error) {
	const op = "stake"
	if err := e.guard.Enter(); err != nil {
		return 0, e.finish(op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return 0, e.finish(op, err)
	}
	if poolID >= uint64(len(e.pools)) {
		return 0, e.finish(op, ErrPoolNotFound)
	}
	pool := e.pools[poolID]
	if !pool.Active {
		return 0, e.finish(op, ErrPoolInactive)
	}
	if !fixedmath.IsPositive(amount) {
		return 0, e.finish(op, ErrInvalidAmount)
	}
	if err := fixedmath.CheckRange(amount); err != nil {
		return 0, e.finish(op, err)
	}

	if err := e.transfer(e.cfg.StakeToken, caller, e.cfg.ModuleAddress, amount); err != nil {
		return 0, e.finish(op, err)
	}

	now := e.now()
	position := &Position{
		Owner:         caller,
		PoolID:        poolID,
		Amount:        fixedmath.Clone(amount),
		StakeTime:     now,
		LastClaimTime: now,
	}
	stakeID := uint64(len(e.positions[caller]))
	e.positions[caller] = append(e.positions[caller], position)
	pool.TotalStaked = new(big.Int).Add(pool.TotalStaked, amount)
	e.publishPoolGauge(pool)

	e.emitter.Emit(events.Staked{Owner: caller, PoolID: poolID, StakeID: stakeID, Amount: amount})
	e.log().Info("stake opened", "owner", caller.String(), "poolId", poolID, "stakeId", stakeID, "amount", amount.String())
	return stakeID, e.finish(op, nil)
}

// Unstake withdraws a position in full once the lock period has elapsed. The
// boundary is inclusive: unstaking exactly at stakeTime+lockPeriod succeeds.
// Any pending reward is paid first, advancing the claim anchor with it, then
// the principal, then the position is zeroed. A failed reward leg leaves
// state untouched; a failed principal leg leaves the position open with the
// reward already settled, so it cannot be paid again.
func (e *Engine) Unstake(caller types.Address, stakeID uint64) (*big.Int, *big.Int, error) {
	const op = "unstake"
	if err := e.guard.Enter(); err != nil {
		return nil, nil, e.finish(op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, e.finish(op, err)
	}
	position, err := e.position(caller, stakeID)
	if err != nil {
		return nil, nil, e.finish(op, err)
	}
	pool := e.pools[position.PoolID]
	now := e.now()
	if now < position.StakeTime+pool.LockPeriodSeconds {
		return nil, nil, e.finish(op, ErrStillLocked)
	}

	reward, err := e.pendingReward(position, now)
	if err != nil {
		return nil, nil, e.finish(op, err)
	}
	principal := fixedmath.Clone(position.Amount)

	if reward.Sign() > 0 {
		if err := e.transfer(e.cfg.RewardToken, e.cfg.RewardTreasury, caller, reward); err != nil {
			return nil, nil, e.finish(op, err)
		}
		// The reward has left the treasury; anchor the claim time before the
		// principal leg so the same reward cannot be paid twice.
		position.LastClaimTime = now
	}
	if err := e.transfer(e.cfg.StakeToken, e.cfg.ModuleAddress, caller, principal); err != nil {
		return nil, nil, e.finish(op, err)
	}

	position.Amount = big.NewInt(0)
	position.LastClaimTime = now
	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, principal)
	e.publishPoolGauge(pool)

	e.emitter.Emit(events.Unstaked{Owner: caller, PoolID: position.PoolID, StakeID: stakeID, Principal: principal, Reward: reward})
	e.log().Info("stake withdrawn", "owner", caller.String(), "stakeId", stakeID, "principal", principal.String(), "reward", reward.String())
	return principal, reward, e.finish(op, nil)
}

// ClaimRewards pays out the pending reward and advances the claim anchor. A
// second claim without time passing fails with ErrNoReward.
func (e *Engine) ClaimRewards(caller types.Address, stakeID uint64) (*big.Int, error) {
	const op = "claimRewards"
	if err := e.guard.Enter(); err != nil {
		return nil, e.finish(op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, e.finish(op, err)
	}
	position, err := e.position(caller, stakeID)
	if err != nil {
		return nil, e.finish(op, err)
	}
	now := e.now()
	reward, err := e.pendingReward(position, now)
	if err != nil {
		return nil, e.finish(op, err)
	}
	if reward.Sign() == 0 {
		return nil, e.finish(op, ErrNoReward)
	}

	if err := e.transfer(e.cfg.RewardToken, e.cfg.RewardTreasury, caller, reward); err != nil {
		return nil, e.finish(op, err)
	}

	position.LastClaimTime = now
	e.emitter.Emit(events.RewardsClaimed{Owner: caller, StakeID: stakeID, Reward: reward})
	e.log().Info("rewards claimed", "owner", caller.String(), "stakeId", stakeID, "reward", reward.String())
	return reward, e.finish(op, nil)
}

// CalculateReward is a total query: unknown owners, unknown stake ids and
// empty positions yield zero rather than an error.
func (e *Engine) CalculateReward(owner types.Address, stakeID uint64) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	positions := e.positions[owner]
	if stakeID >= uint64(len(positions)) {
		return big.NewInt(0), nil
	}
	return e.pendingReward(positions[stakeID], e.now())
}

// TotalPendingRewards sums the pending reward across all of the owner's stake
// indices.
func (e *Engine) TotalPendingRewards(owner types.Address) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	now := e.now()
	total := big.NewInt(0)
	for _, position := range e.positions[owner] {
		reward, err := e.pendingReward(position, now)
		if err != nil {
			return nil, err
		}
		total.Add(total, reward)
	}
	return total, nil
}

// Pools returns a snapshot of every pool in id order.
func (e *Engine) Pools() []PoolInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]PoolInfo, 0, len(e.pools))
	for _, pool := range e.pools {
		out = append(out, PoolInfo{
			ID:                pool.ID,
			LockPeriodSeconds: pool.LockPeriodSeconds,
			RateBps:           pool.RateBps,
			TotalStaked:       fixedmath.Clone(pool.TotalStaked),
			Active:            pool.Active,
		})
	}
	return out
}

// PoolByID returns a single pool snapshot.
func (e *Engine) PoolByID(poolID uint64) (PoolInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if poolID >= uint64(len(e.pools)) {
		return PoolInfo{}, ErrPoolNotFound
	}
	pool := e.pools[poolID]
	return PoolInfo{
		ID:                pool.ID,
		LockPeriodSeconds: pool.LockPeriodSeconds,
		RateBps:           pool.RateBps,
		TotalStaked:       fixedmath.Clone(pool.TotalStaked),
		Active:            pool.Active,
	}, nil
}

// Positions returns the owner's full position history, closed slots included.
func (e *Engine) Positions(owner types.Address) []PositionInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	positions := e.positions[owner]
	out := make([]PositionInfo, 0, len(positions))
	for i, position := range positions {
		out = append(out, PositionInfo{
			StakeID:       uint64(i),
			PoolID:        position.PoolID,
			Amount:        fixedmath.Clone(position.Amount),
			StakeTime:     position.StakeTime,
			LastClaimTime: position.LastClaimTime,
		})
	}
	return out
}

// Export deep-copies the engine state for persistence. Owners are ordered by
// address bytes so exports are deterministic.
func (e *Engine) Export() *State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	state := &State{}
	for _, pool := range e.pools {
		state.Pools = append(state.Pools, Pool{
			ID:                pool.ID,
			LockPeriodSeconds: pool.LockPeriodSeconds,
			RateBps:           pool.RateBps,
			TotalStaked:       fixedmath.Clone(pool.TotalStaked),
			Active:            pool.Active,
		})
	}
	owners := make([]types.Address, 0, len(e.positions))
	for owner := range e.positions {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool {
		return string(owners[i].Bytes()) < string(owners[j].Bytes())
	})
	for _, owner := range owners {
		entry := OwnerPositions{Owner: owner}
		for _, position := range e.positions[owner] {
			entry.Positions = append(entry.Positions, Position{
				Owner:         position.Owner,
				PoolID:        position.PoolID,
				Amount:        fixedmath.Clone(position.Amount),
				StakeTime:     position.StakeTime,
				LastClaimTime: position.LastClaimTime,
			})
		}
		state.Owners = append(state.Owners, entry)
	}
	return state
}

// Restore replaces the engine state with a previously exported snapshot.
func (e *Engine) Restore(state *State) error {
	if state == nil {
		return common.Validation("staking: nil state")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pools := make([]*Pool, 0, len(state.Pools))
	for i, pool := range state.Pools {
		if pool.ID != uint64(i) {
			return common.Validation("staking: pool ids must be sequential")
		}
		if pool.RateBps > fixedmath.MaxBps {
			return ErrInvalidRate
		}
		pools = append(pools, &Pool{
			ID:                pool.ID,
			LockPeriodSeconds: pool.LockPeriodSeconds,
			RateBps:           pool.RateBps,
			TotalStaked:       fixedmath.Clone(pool.TotalStaked),
			Active:            pool.Active,
		})
	}
	positions := make(map[types.Address][]*Position, len(state.Owners))
	for _, entry := range state.Owners {
		for _, position := range entry.Positions {
			if position.PoolID >= uint64(len(pools)) {
				return ErrPoolNotFound
			}
			positions[entry.Owner] = append(positions[entry.Owner], &Position{
				Owner:         entry.Owner,
				PoolID:        position.PoolID,
				Amount:        fixedmath.Clone(position.Amount),
				StakeTime:     position.StakeTime,
				LastClaimTime: position.LastClaimTime,
			})
		}
	}
	e.pools = pools
	e.positions = positions
	return nil
}

// position resolves an open position owned by the caller. Mutations require an
// open position; queries use pendingReward directly instead.
func (e *Engine) position(owner types.Address, stakeID uint64) (*Position, error) {
	positions := e.positions[owner]
	if stakeID >= uint64(len(positions)) {
		return nil, ErrStakeNotFound
	}
	position := positions[stakeID]
	if position.Amount.Sign() == 0 {
		return nil, ErrEmptyStake
	}
	return position, nil
}

// pendingReward computes amount * rateBps / 10000 * elapsed / secondsPerYear
// with truncation after each division. Empty positions accrue nothing.
func (e *Engine) pendingReward(position *Position, now uint64) (*big.Int, error) {
	if position == nil || position.Amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	pool := e.pools[position.PoolID]
	base, err := fixedmath.MulBps(position.Amount, pool.RateBps)
	if err != nil {
		return nil, err
	}
	if now <= position.LastClaimTime {
		return big.NewInt(0), nil
	}
	elapsed := new(big.Int).SetUint64(now - position.LastClaimTime)
	return fixedmath.MulDiv(base, elapsed, big.NewInt(fixedmath.SecondsPerYear))
}

func (e *Engine) publishPoolGauge(pool *Pool) {
	if e.metrics == nil {
		return
	}
	total, _ := new(big.Float).SetInt(pool.TotalStaked).Float64()
	e.metrics.SetPoolTotal(fmt.Sprintf("%d", pool.ID), total)
}
