package events

import (
	"math/big"
	"strconv"

	"defiledger/core/types"
)

const (
	// TypeStakingPoolCreated is emitted when an admin appends a new pool.
	TypeStakingPoolCreated = "staking.poolCreated"
	// TypeStakingPoolToggled is emitted when a pool's active flag flips.
	TypeStakingPoolToggled = "staking.poolToggled"
	// TypeStakingStaked captures a new stake position.
	TypeStakingStaked = "staking.staked"
	// TypeStakingUnstaked captures a full withdrawal of a position.
	TypeStakingUnstaked = "staking.unstaked"
	// TypeStakingRewardsClaimed captures a reward payout without withdrawal.
	TypeStakingRewardsClaimed = "staking.rewardsClaimed"
)

// PoolCreated captures the parameters of a freshly appended pool.
type PoolCreated struct {
	PoolID     uint64
	LockPeriod uint64
	RateBps    uint64
}

// EventType satisfies the Event interface.
func (PoolCreated) EventType() string { return TypeStakingPoolCreated }

// Event converts the payload into a broadcastable event.
func (e PoolCreated) Event() *types.Event {
	return &types.Event{Type: TypeStakingPoolCreated, Attributes: map[string]string{
		"poolId":     strconv.FormatUint(e.PoolID, 10),
		"lockPeriod": strconv.FormatUint(e.LockPeriod, 10),
		"rateBps":    strconv.FormatUint(e.RateBps, 10),
	}}
}

// PoolToggled captures a pool activation flip.
type PoolToggled struct {
	PoolID uint64
	Active bool
}

// EventType satisfies the Event interface.
func (PoolToggled) EventType() string { return TypeStakingPoolToggled }

// Event converts the payload into a broadcastable event.
func (e PoolToggled) Event() *types.Event {
	return &types.Event{Type: TypeStakingPoolToggled, Attributes: map[string]string{
		"poolId": strconv.FormatUint(e.PoolID, 10),
		"active": strconv.FormatBool(e.Active),
	}}
}

// Staked captures a new position opened against a pool.
type Staked struct {
	Owner   types.Address
	PoolID  uint64
	StakeID uint64
	Amount  *big.Int
}

// EventType satisfies the Event interface.
func (Staked) EventType() string { return TypeStakingStaked }

// Event converts the payload into a broadcastable event.
func (e Staked) Event() *types.Event {
	return &types.Event{Type: TypeStakingStaked, Attributes: map[string]string{
		"owner":   e.Owner.String(),
		"poolId":  strconv.FormatUint(e.PoolID, 10),
		"stakeId": strconv.FormatUint(e.StakeID, 10),
		"amount":  formatAmount(e.Amount),
	}}
}

// Unstaked captures a position closed and paid out in full.
type Unstaked struct {
	Owner     types.Address
	PoolID    uint64
	StakeID   uint64
	Principal *big.Int
	Reward    *big.Int
}

// EventType satisfies the Event interface.
func (Unstaked) EventType() string { return TypeStakingUnstaked }

// Event converts the payload into a broadcastable event.
func (e Unstaked) Event() *types.Event {
	return &types.Event{Type: TypeStakingUnstaked, Attributes: map[string]string{
		"owner":     e.Owner.String(),
		"poolId":    strconv.FormatUint(e.PoolID, 10),
		"stakeId":   strconv.FormatUint(e.StakeID, 10),
		"principal": formatAmount(e.Principal),
		"reward":    formatAmount(e.Reward),
	}}
}

// RewardsClaimed captures a reward payout that leaves the position open.
type RewardsClaimed struct {
	Owner   types.Address
	StakeID uint64
	Reward  *big.Int
}

// EventType satisfies the Event interface.
func (RewardsClaimed) EventType() string { return TypeStakingRewardsClaimed }

// Event converts the payload into a broadcastable event.
func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{Type: TypeStakingRewardsClaimed, Attributes: map[string]string{
		"owner":   e.Owner.String(),
		"stakeId": strconv.FormatUint(e.StakeID, 10),
		"reward":  formatAmount(e.Reward),
	}}
}
