package staking

import (
	"math/big"

	"defiledger/core/types"
)

// Pool groups stake positions sharing a lock period and annual reward rate.
// Pools are append-only: ids are sequential and a pool is never deleted, only
// deactivated.
type Pool struct {
	ID uint64
	// LockPeriodSeconds is the minimum duration a stake must remain before
	// principal withdrawal is permitted.
	LockPeriodSeconds uint64
	// RateBps is the annual reward rate in basis points, at most 10000.
	RateBps uint64
	// TotalStaked aggregates the open principal across the pool's positions.
	TotalStaked *big.Int
	// Active gates new stakes only; existing positions may always unstake and
	// claim.
	Active bool
}

// Position is a single stake. Positions are never removed from storage: a full
// withdrawal zeroes Amount and the slot is terminal, new stakes always receive
// a fresh index.
type Position struct {
	Owner  types.Address
	PoolID uint64
	// Amount is strictly positive while the position is open and exactly zero
	// after unstake.
	Amount *big.Int
	// StakeTime anchors the lock period.
	StakeTime uint64
	// LastClaimTime anchors reward accrual; it advances on every claim.
	LastClaimTime uint64
}

// OwnerPositions pairs an owner with their position history for export.
type OwnerPositions struct {
	Owner     types.Address
	Positions []Position
}

// State is the full exportable engine state, map-free so it round-trips
// through RLP unchanged.
type State struct {
	Pools  []Pool
	Owners []OwnerPositions
}

// PoolInfo is the query-side pool snapshot.
type PoolInfo struct {
	ID                uint64   `json:"id"`
	LockPeriodSeconds uint64   `json:"lockPeriodSeconds"`
	RateBps           uint64   `json:"rateBps"`
	TotalStaked       *big.Int `json:"totalStaked"`
	Active            bool     `json:"active"`
}

// PositionInfo is the query-side position snapshot.
type PositionInfo struct {
	StakeID       uint64   `json:"stakeId"`
	PoolID        uint64   `json:"poolId"`
	Amount        *big.Int `json:"amount"`
	StakeTime     uint64   `json:"stakeTime"`
	LastClaimTime uint64   `json:"lastClaimTime"`
}
